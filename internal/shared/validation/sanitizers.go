package validation

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictHTMLPolicy = bluemonday.StrictPolicy()

// SanitizeProviderText cleans free text received from the MISA provider
// (notes, category names, item names) before it is persisted or rendered:
// strips all HTML, drops unprintable runes, and collapses surrounding space.
func SanitizeProviderText(s string) string {
	s = strictHTMLPolicy.Sanitize(s)
	s = stripUnprintable(s)
	return strings.TrimSpace(s)
}

func stripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' {
			return r
		}
		return -1
	}, s)
}
