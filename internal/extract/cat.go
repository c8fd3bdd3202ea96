package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractWithCat handles .odt and .rtf, formats cat detects from content.
func extractWithCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract with cat: %w", err)
	}
	return text, nil
}
