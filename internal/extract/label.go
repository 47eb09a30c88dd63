package extract

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const (
	// MaxLabelLength bounds a sanitized directory label, in characters.
	MaxLabelLength = 100

	// LabelPlaceholder replaces a label with nothing usable left in it.
	LabelPlaceholder = "unnamed"
)

// SanitizeLabel reduces label to a single safe path element: letters, digits,
// '-' and '_' only, at most MaxLabelLength characters.
func SanitizeLabel(label string) string {
	var b strings.Builder
	n := 0
	meaningful := false
	for _, r := range label {
		if n == MaxLabelLength {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			meaningful = true
		case r == '-' || r == '_':
		default:
			continue
		}
		b.WriteRune(r)
		n++
	}
	if !meaningful {
		return LabelPlaceholder
	}
	return b.String()
}

// DefaultLabel derives a stable directory name from an article URL.
func DefaultLabel(articleURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(articleURL)).String()[:8]
}
