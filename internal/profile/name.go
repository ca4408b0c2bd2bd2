package profile

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ClassTokens are the line prefixes that carry the character name in a
// /simc addon export, e.g. `warrior=Thrall`.
var ClassTokens = []string{
	"warrior",
	"paladin",
	"hunter",
	"rogue",
	"priest",
	"deathknight",
	"shaman",
	"mage",
	"warlock",
	"monk",
	"druid",
}

// DisplayName extracts the character name from character text. The first
// line starting with a class token names the character: the text after its
// first '=' is unquoted and capitalized. Without such a line fallback is
// returned unchanged.
func DisplayName(character, fallback string) string {
	for line := range strings.Lines(character) {
		line = strings.TrimRight(line, "\r\n")
		if !hasClassPrefix(line) {
			continue
		}
		_, name, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.Trim(strings.TrimSpace(name), `"'`)
		if name == "" {
			continue
		}
		return capitalize(name)
	}
	return fallback
}

func hasClassPrefix(line string) bool {
	for _, c := range ClassTokens {
		if strings.HasPrefix(line, c) {
			return true
		}
	}
	return false
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
