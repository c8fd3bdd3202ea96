package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const openDocumentContentPath = "content.xml"

var (
	// odBlock matches a text:p or text:h paragraph; self-closing empty paragraphs are skipped.
	odBlock     = regexp.MustCompile(`(?s)<text:(p|h)(?:\s[^>]*[^/>])?>(.*?)</text:(?:p|h)>`)
	odSpace     = regexp.MustCompile(`<text:(?:s|tab|line-break)\b[^>]*/>`)
	odAnyTag    = regexp.MustCompile(`<[^>]+>`)
	odMultiWhit = regexp.MustCompile(`[ \t]+`)
)

// extractOpenDocument handles .odp and .ods: paragraphs and headings from content.xml,
// in document order, one per line.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return "", err
	}
	contentXML, err := readZipEntry(zr, openDocumentContentPath)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}

	var lines []string
	for _, m := range odBlock.FindAllSubmatch(contentXML, -1) {
		inner := odSpace.ReplaceAll(m[2], []byte(" "))
		inner = odAnyTag.ReplaceAll(inner, nil)
		line := strings.TrimSpace(odMultiWhit.ReplaceAllString(html.UnescapeString(string(inner)), " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
