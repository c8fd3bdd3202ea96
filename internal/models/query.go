package models

import "strings"

// QueryRequest is the body of an ask-query call.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResult pairs a chunk with its nearest-neighbour distance. Lower is more relevant.
type QueryResult struct {
	Chunk *Chunk  `json:"chunk"`
	Score float32 `json:"relevance_score"`
}

// Confidence is the answer confidence level.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps free text onto a Confidence. The second return is false when s
// names no known level.
func ParseConfidence(s string) (Confidence, bool) {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh, true
	case ConfidenceMedium:
		return ConfidenceMedium, true
	case ConfidenceLow:
		return ConfidenceLow, true
	}
	return ConfidenceMedium, false
}

// SourceSection is one cited passage of an answer.
type SourceSection struct {
	Section   string `json:"section"`
	Content   string `json:"content"`
	Relevance string `json:"relevance"`
}

// AnswerResponse is the only result shape of a query, whatever happened internally.
type AnswerResponse struct {
	Answer         string          `json:"answer"`
	Confidence     Confidence      `json:"confidence"`
	SourceSections []SourceSection `json:"source_sections"`
	AdditionalInfo string          `json:"additional_info"`
}
