package lexer

import "strings"

// GroupLines partitions tokens into logical-line buckets keyed by the logical
// line number, dropping whitespace and comment tokens. The result is the
// preprocessor's input: one []Token per logical line, in source order.
func GroupLines(tokens []Token) [][]Token {
	lines := [][]Token{{}}
	currentLine := 0
	for _, tok := range tokens {
		if tok.Type == TokenType_Whitespace || tok.Type == TokenType_Comment {
			continue
		}
		if tok.LogLoc.Line != currentLine {
			currentLine = tok.LogLoc.Line
			lines = append(lines, nil)
		}
		lines[len(lines)-1] = append(lines[len(lines)-1], tok)
	}
	return lines
}

// Render reconstructs source text from tokens using their physical locations:
// missing lines become newlines, missing columns become spaces. Tokenizing a
// file and rendering the result reproduces the file up to whitespace
// normalisation and escape-sequence decoding.
func Render(tokens []Token) string {
	var b strings.Builder
	line, col := 0, 0

	for _, tok := range tokens {
		if tok.SrcLoc.Line > line {
			for ; line < tok.SrcLoc.Line; line++ {
				b.WriteByte('\n')
			}
			col = 0
		}
		for ; col < tok.SrcLoc.Col; col++ {
			b.WriteByte(' ')
		}

		b.WriteString(tok.S)

		if newlines := strings.Count(tok.S, "\n"); newlines > 0 {
			line += newlines
			col = len(tok.S) - strings.LastIndexByte(tok.S, '\n') - 1
		} else {
			col += len(tok.S)
		}
	}
	return b.String()
}
