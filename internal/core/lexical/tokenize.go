package lexical

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text, keeps runs of letters and digits, and drops
// English stopwords.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	tokens := make([]string, 0, 24)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		token := b.String()
		b.Reset()
		if _, stop := stopwords[token]; stop {
			return
		}
		tokens = append(tokens, token)
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return tokens
}
