package chunker

import (
	"regexp"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

const (
	maxNumbers  = 5
	maxCurrency = 3
)

// sectionPatterns are tried in order; the first with a match wins.
var sectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(Section|Clause|Article|Part)\s*(\d+[\.\d]*)[:\s]+(.+)`),
	regexp.MustCompile(`(?i)(\d+[\.\d]*)\s*[:\s]+(.+)`),
	regexp.MustCompile(`(?i)([A-Z][A-Z\s]+)[:\s]+(.+)`),
}

var (
	numberPattern   = regexp.MustCompile(`\d+[\.\d]*%?`)
	currencyPattern = regexp.MustCompile(`₹\s*\d+[,\d]*|\$\s*\d+[,\d]*|Rs\.?\s*\d+[,\d]*`)
)

// ExtractMetadata finds the first structural marker, the first five numeric tokens and the
// first three currency amounts in text. Missing markers leave the fields unset.
func ExtractMetadata(text string) models.ChunkMetadata {
	var md models.ChunkMetadata

	for _, re := range sectionPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		groups := m[1:]
		var typ, num string
		if len(groups) > 2 {
			typ, num = groups[0], groups[1]
		} else {
			typ, num = "Section", groups[0]
		}
		title := strings.TrimSpace(groups[len(groups)-1])
		md.SectionType, md.SectionNumber, md.SectionTitle = &typ, &num, &title
		break
	}

	md.Numbers = numberPattern.FindAllString(text, maxNumbers)
	md.CurrencyAmounts = currencyPattern.FindAllString(text, maxCurrency)
	return md
}
