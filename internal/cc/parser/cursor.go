package parser

import "github.com/slaide/pacc/internal/cc/lexer"

// cursor is a position in a shared token slice. It is a small value type:
// speculative parsing saves a copy and restores it on failure, so no parse
// path ever mutates state it does not own.
type cursor struct {
	toks []lexer.Token
	idx  int
}

func newCursor(toks []lexer.Token) cursor {
	return cursor{toks: toks}
}

func (c cursor) empty() bool { return c.idx >= len(c.toks) }

// at returns the token i positions ahead, or a zero token past the end so
// that lookahead never needs a bounds check.
func (c cursor) at(i int) lexer.Token {
	if c.idx+i >= len(c.toks) || c.idx+i < 0 {
		return lexer.Token{}
	}
	return c.toks[c.idx+i]
}

func (c cursor) peek() lexer.Token { return c.at(0) }

func (c *cursor) advance() { c.idx++ }

// take returns the current token and advances past it.
func (c *cursor) take() lexer.Token {
	tok := c.peek()
	c.idx++
	return tok
}
