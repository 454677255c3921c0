package span

// Token is a single token extracted from free text with its character offsets.
type Token struct {
	Text  string
	Start int
	End   int
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Tokenize splits text into word tokens (runs of [A-Za-z0-9_]) with their
// character offsets. When includePunctuation is true, each non-word,
// non-space ASCII byte becomes its own single-character token.
func Tokenize(text string, includePunctuation bool) []Token {
	var out []Token
	i := 0
	for i < len(text) {
		b := text[i]

		if isSpaceByte(b) {
			i++
			continue
		}

		if isWordByte(b) {
			start := i
			i++
			for i < len(text) && isWordByte(text[i]) {
				i++
			}
			out = append(out, Token{Text: text[start:i], Start: start, End: i})
			continue
		}

		if includePunctuation {
			out = append(out, Token{Text: text[i : i+1], Start: i, End: i + 1})
		}
		i++
	}
	return out
}

// ContextWindow returns up to size tokens on each side of the half-open
// range [start,end), in document order. Tokens overlapping the range itself
// are excluded; the window describes surroundings, not the match.
func ContextWindow(text string, start, end, size int) []string {
	tokens := Tokenize(text, false)

	var before, after []string
	for _, tok := range tokens {
		switch {
		case tok.End <= start:
			before = append(before, tok.Text)
		case tok.Start >= end:
			after = append(after, tok.Text)
		}
	}

	if len(before) > size {
		before = before[len(before)-size:]
	}
	if len(after) > size {
		after = after[:size]
	}

	window := make([]string, 0, len(before)+len(after))
	window = append(window, before...)
	window = append(window, after...)
	return window
}
