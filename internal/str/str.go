package str

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// optionCodeMax caps the length of option codes minted from labels.
const optionCodeMax = 64

var truthySet = map[string]struct{}{
	"1": {}, "true": {}, "vrai": {}, "yes": {}, "oui": {},
	"y": {}, "x": {}, "checked": {},
}

var accentFold = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Slugify converts a label to a lower-case ASCII slug. Accented letters are
// folded to their base form, anything else outside [a-z0-9] collapses to a
// single dash.
func Slugify(s string) string {
	folded, _, err := transform.String(accentFold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	dash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// OptionCode derives a stable option code from an observed label. Empty
// slugs become "na" so a code is never blank.
func OptionCode(label string) string {
	code := Slugify(label)
	if code == "" {
		code = "na"
	}
	if len(code) > optionCodeMax {
		code = code[:optionCodeMax]
	}
	return code
}

// Truthy reports whether a cell value marks a boolean indicator column as
// selected. The test is permissive: case-insensitive membership in a small
// set of yes-words, or any positive integer string.
func Truthy(val string) bool {
	s := strings.ToLower(strings.TrimSpace(val))
	if s == "" {
		return false
	}
	if _, ok := truthySet[s]; ok {
		return true
	}
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}
