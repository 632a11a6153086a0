package keyword

import (
	"strings"
	"unicode"
)

// Single-character tokens that stay meaningful in tribunal text
// ("section 214(s)", schedule item "a").
var shortTokenAllowList = map[string]struct{}{
	"s": {},
	"a": {},
}

// Tokenize lowercases, strips everything except alphanumerics and
// hyphens, drops sub-two-character tokens outside the allow list, and
// drops purely numeric tokens unless they look like a year. Years are
// high-signal in this domain ("Housing Act 2004").
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	cleaned := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return ' '
	}, text)

	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len(tok) < 2 {
			if _, ok := shortTokenAllowList[tok]; !ok {
				continue
			}
			tokens = append(tokens, tok)
			continue
		}
		if isDigits(tok) {
			if len(tok) == 4 {
				tokens = append(tokens, tok)
			}
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
