package preprocessor

import "github.com/slaide/pacc/internal/cc/lexer"

// ConcatStrings fuses adjacent string-literal tokens into one (translation
// phase 6): the closing quote of the left literal and the opening quote of
// the right one are dropped, and the merged token keeps the left token's
// locations. The pass is idempotent; running it on already concatenated
// output changes nothing.
func ConcatStrings(tokens []lexer.Token) []lexer.Token {
	var out []lexer.Token

	for _, tok := range tokens {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if prev.Type == lexer.TokenType_LiteralString && tok.Type == lexer.TokenType_LiteralString {
				prev.S = prev.S[:len(prev.S)-1] + tok.S[1:]
				continue
			}
		}
		out = append(out, tok)
	}

	return out
}
