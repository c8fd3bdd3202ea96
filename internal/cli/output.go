// Package cli renders kotae answers, status and chunk listings for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json" in any case; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("invalid output format %q (use text or json)", s)
}

const rule = "─────────────────────────────────────────────────────────"

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, resp *models.AnswerResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n\n", resp.Answer)
	fmt.Fprintf(w, "Confidence: %s\n", resp.Confidence)
	if len(resp.SourceSections) > 0 {
		fmt.Fprintf(w, "\nSources (%d):\n", len(resp.SourceSections))
		for _, s := range resp.SourceSections {
			fmt.Fprintln(w, rule)
			if s.Section != "" {
				fmt.Fprintf(w, "%s\n", s.Section)
			}
			if s.Content != "" {
				fmt.Fprintf(w, "  %s\n", utils.Truncate(s.Content, 300))
			}
			if s.Relevance != "" {
				fmt.Fprintf(w, "  Why: %s\n", s.Relevance)
			}
		}
		fmt.Fprintln(w, rule)
	}
	if resp.AdditionalInfo != "" {
		fmt.Fprintf(w, "\n%s\n", resp.AdditionalInfo)
	}
	return nil
}

// ChunkPreview is one entry of a chunk listing.
type ChunkPreview struct {
	ChunkID     int                    `json:"chunk_id"`
	TextPreview string                 `json:"text_preview"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// ChunkList is the debug chunk listing served at /debug/chunks.
type ChunkList struct {
	TotalChunks int            `json:"total_chunks"`
	Chunks      []ChunkPreview `json:"chunks"`
}

// WriteChunks writes a chunk listing to w in the given format.
func WriteChunks(w io.Writer, list *ChunkList, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, list)
	}
	fmt.Fprintf(w, "%d chunks\n", list.TotalChunks)
	for _, c := range list.Chunks {
		fmt.Fprintln(w, rule)
		header := fmt.Sprintf("#%d", c.ChunkID)
		if name, ok := c.Metadata["filename"].(string); ok && name != "" {
			header += "  " + name
		}
		if title, ok := c.Metadata["section_title"].(string); ok && title != "" {
			header += "  [" + title + "]"
		}
		fmt.Fprintln(w, header)
		fmt.Fprintf(w, "%s\n", c.TextPreview)
	}
	return nil
}

// WriteStatus writes the server status object to w. Text output lists top-level keys in
// sorted order with the config summary indented below.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	cfg, _ := status["config"].(map[string]interface{})
	for _, k := range sortedKeys(status) {
		if k == "config" {
			continue
		}
		fmt.Fprintf(w, "%-20s %v\n", k+":", formatValue(k, status[k]))
	}
	if len(cfg) > 0 {
		fmt.Fprintln(w, "config:")
		for _, k := range sortedKeys(cfg) {
			fmt.Fprintf(w, "  %-22s %v\n", k+":", cfg[k])
		}
	}
	return nil
}

func formatValue(key string, v interface{}) interface{} {
	if key == "disk_usage_bytes" {
		if f, ok := v.(float64); ok {
			return FormatBytes(int64(f))
		}
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
