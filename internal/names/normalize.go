// Package names turns display names into ordered name tokens and ranked
// username candidates.
package names

import (
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that NFKD leaves alone but have an obvious ASCII spelling.
var foldReplacer = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "ae", "œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o", "ł", "l", "Ł", "l", "đ", "d", "Đ", "d",
	"þ", "th", "Þ", "th", "ı", "i",
	"'", "", "’", "", "`", "",
)

// Nicknames and asides: `Robert "Bob" Smith`, `Robert (Bob) Smith`.
var asides = regexp2.MustCompile(`\([^)]*\)|"[^"]*"|“[^”]*”`, regexp2.None)

var honorifics = map[string]struct{}{
	"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "mx": {}, "prof": {}, "sir": {}, "dame": {},
}

var suffixes = map[string]struct{}{
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {}, "phd": {}, "md": {}, "esq": {},
}

// Normalize lowercases name, strips diacritics and returns its tokens in
// order. Leading honorifics and trailing generational or degree suffixes
// are dropped. An empty or unparseable name yields an empty slice.
func Normalize(name string) []string {
	if s, err := asides.Replace(name, " ", -1, -1); err == nil {
		name = s
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if s, _, err := transform.String(t, name); err == nil {
		name = s
	}
	name = strings.ToLower(foldReplacer.Replace(name))

	tokens := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for len(tokens) > 1 {
		if _, ok := honorifics[tokens[0]]; !ok {
			break
		}
		tokens = tokens[1:]
	}
	for len(tokens) > 1 {
		if _, ok := suffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}

	if tokens == nil {
		return []string{}
	}
	return tokens
}
