package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns text in NFC form with Unicode case folding applied, suitable
// for case-insensitive comparison.
func Fold(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return cases.Fold().String(norm.NFC.String(text))
}
