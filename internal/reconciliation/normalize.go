package reconciliation

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var parenGroup = regexp.MustCompile(`\s*\([^)]*\)`)

// letters that carry no combining mark under NFD
var foldTable = strings.NewReplacer(
	"ø", "o",
	"ł", "l",
	"đ", "d",
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ı", "i",
	"þ", "th",
)

// Normalize canonicalizes a team or league name for comparison.
// "Atlético Madrid (W)" becomes "atletico madrid".
func Normalize(name string) string {
	if name == "" {
		return ""
	}
	s := parenGroup.ReplaceAllString(name, "")
	s = strings.TrimSpace(strings.ToLower(s))
	return foldDiacritics(s)
}

// LookupKey is the logo-directory key for a name: normalized, spaces as hyphens
func LookupKey(name string) string {
	return strings.ReplaceAll(Normalize(name), " ", "-")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return foldTable.Replace(folded)
}
