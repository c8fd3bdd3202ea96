package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as text; invalid UTF-8 becomes U+FFFD.
// A leading byte-order mark is dropped.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	return strings.TrimPrefix(string(content), "\ufeff"), nil
}
