// Package lexer converts C source bytes into a sequence of tokens carrying
// both physical and logical source coordinates.
//
// The physical location (SrcLoc) is the byte position in the on-disk file and
// is what diagnostics render. The logical location (LogLoc) is the position
// after backslash-newline line continuations have been collapsed; it is what
// the preprocessor and parser operate on. Whitespace and comments are kept in
// the token stream so the original text can be reconstructed; GroupLines
// strips them when forming logical lines.
package lexer

import (
	"fmt"
	"os"
	"strings"

	"github.com/slaide/pacc/internal/cc"
)

// Characters that terminate a symbol and are tokenized on their own (or as
// part of a compound operator).
const specialChars = "(){}[]<>,.+-/*&|%^;:=?!\"'@#~"

// Compound operators, longest first so that maximal munch holds: "<<=" must
// win over "<<" when both match.
var compoundSymbols = []string{
	"<<=", ">>=", "...",
	"->", "++", "--", "||", "&&", "==", "!=", "<=", ">=",
	"-=", "+=", "|=", "&=", "^=", "<<", ">>",
}

// first bytes of the compound operators, to skip the compound scan for
// characters that cannot start one
var compoundStartChars = func() string {
	var b strings.Builder
	for _, sym := range compoundSymbols {
		b.WriteByte(sym[0])
	}
	return b.String()
}()

func isWhitespace(c byte, newlineAllowed bool) bool {
	switch c {
	case ' ', '\t':
		return true
	case '\r', '\n':
		return newlineAllowed
	default:
		return false
	}
}

func isSpecial(c byte) bool {
	return strings.IndexByte(specialChars, c) >= 0
}

func isNumeric(c byte) bool {
	return c >= '0' && c <= '9'
}

// Tokenize reads filename and converts its contents into tokens.
func Tokenize(filename string) ([]Token, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cc.ErrLexical, err)
	}
	return TokenizeBytes(filename, src)
}

// TokenizeBytes converts src into tokens, attributing locations to filename.
func TokenizeBytes(filename string, src []byte) ([]Token, error) {
	t := &tokenizer{filename: filename, src: string(src)}
	return t.run()
}

// tokenizer iterates the source character by character, maintaining physical
// and logical cursors. The logical cursor diverges from the physical one only
// across line continuations (see adv).
type tokenizer struct {
	filename string
	src      string
	i        int

	line, col       int
	logLine, logCol int

	// first failure observed inside adv, where no error can be returned
	err error
}

func (t *tokenizer) remaining() bool { return t.i < len(t.src) }

// rem returns the number of characters after the current one.
func (t *tokenizer) rem() int { return len(t.src) - t.i - 1 }

func (t *tokenizer) c() byte { return t.src[t.i] }

// fut returns the character n positions ahead, or 0 past the end.
func (t *tokenizer) fut(n int) byte {
	if t.i+n >= len(t.src) {
		return 0
	}
	return t.src[t.i+n]
}

func (t *tokenizer) loc() SourceLocation {
	return SourceLocation{Filename: t.filename, Line: t.line, Col: t.col}
}

func (t *tokenizer) logLoc() SourceLocation {
	return SourceLocation{Filename: t.filename, Line: t.logLine, Col: t.logCol}
}

func (t *tokenizer) failf(loc SourceLocation, format string, args ...any) error {
	err := fmt.Errorf("%w: %s at %s", cc.ErrLexical, fmt.Sprintf(format, args...), loc)
	if t.err == nil {
		t.err = err
	}
	return err
}

// adv moves the cursor to the next character. A newline advances the physical
// line; the logical line follows only when logicalLineAdjust is set, which is
// how line continuations keep the logical line number stable.
//
// After moving, adv collapses a line continuation in place: a backslash
// followed by a whitespace run ending in a newline advances the physical
// cursor past the run while decrementing the logical column once, so the
// logical column stays contiguous across the splice.
func (t *tokenizer) adv(logicalLineAdjust bool) {
	if t.remaining() && t.c() == '\n' {
		t.line++
		if logicalLineAdjust {
			t.logLine++
			t.logCol = 0
		}
		t.col = 0
	} else {
		t.logCol++
		t.col++
	}
	t.i++

	if t.rem() >= 1 && t.c() == '\\' && isWhitespace(t.fut(1), true) {
		// the continuation backslash does not exist in the logical source
		t.logCol--

		t.adv(false)
		for t.remaining() && isWhitespace(t.c(), false) {
			t.adv(true)
		}

		if !t.remaining() || t.c() != '\n' {
			t.failf(t.loc(), "stray backslash, expected newline after line continuation")
			return
		}
		t.adv(false)
	}
}

// compoundPresent checks whether the compound operator sym starts at the
// cursor. On a match the cursor is left on the last character of the operator
// and cur is filled in.
func (t *tokenizer) compoundPresent(sym string, cur *Token) bool {
	if t.c() != sym[0] || t.rem() < len(sym)-1 {
		return false
	}
	for i := 1; i < len(sym); i++ {
		if t.fut(i) != sym[i] {
			return false
		}
	}
	for i := 1; i < len(sym); i++ {
		t.adv(true)
	}
	cur.S = sym
	cur.Type = TokenType_OperatorPunctuation
	return true
}

// lexTerminated scans a character or string literal delimited by startChar
// and endChar, decoding the supported escape sequences in place. It reports
// whether a literal was actually consumed.
func (t *tokenizer) lexTerminated(startChar, endChar byte, cur *Token, tokType TokenType) (bool, error) {
	if cur.S != "" || t.c() != startChar {
		return false, nil
	}

	startLoc := t.loc()
	cur.S += string(t.c())
	t.adv(true)

	terminated := false
	for t.remaining() {
		if t.c() == '\\' {
			t.adv(true)
			if !t.remaining() {
				break
			}
			switch t.c() {
			case 'n':
				cur.S += "\n"
			case '"':
				cur.S += "\""
			case '\\':
				cur.S += "\\"
			case '\'':
				cur.S += "'"
			case '0':
				cur.S += "\x00"
			default:
				return false, t.failf(t.loc(), "unimplemented escape sequence '\\%c'", t.c())
			}
			t.adv(true)
			continue
		}

		if t.c() == '\n' {
			return false, t.failf(t.loc(), "missing terminating %c", endChar)
		}

		cur.S += string(t.c())
		if t.c() == endChar {
			t.adv(true)
			terminated = true
			break
		}
		t.adv(true)
	}

	if !terminated {
		return false, t.failf(startLoc, "unterminated literal, missing %c", endChar)
	}

	cur.Type = tokType
	return true, nil
}

// lexNumber scans a numeric literal after the leading digit (or dot followed
// by a digit) has been identified. Digit separators, one decimal point, one
// signed exponent, and a greedy alphanumeric suffix are accepted; everything
// else is a diagnostic. Reports whether the caller should skip the trailing
// cursor advance.
func (t *tokenizer) lexNumber(cur *Token) (skip bool, err error) {
	parsedDot := false
	parsedExponent := false
	parsedExponentSign := false
	numExponentDigits := 0

scan:
	for t.remaining() {
		c := t.c()
		switch {
		case isNumeric(c):
			cur.S += string(c)
			t.adv(true)
			if parsedExponent {
				numExponentDigits++
			}

		case (c == '-' || c == '+') && parsedExponent:
			if parsedExponentSign {
				return false, t.failf(t.loc(), "already parsed exponent sign")
			}
			parsedExponentSign = true
			cur.S += string(c)
			t.adv(true)
			numExponentDigits++

		case c == '.':
			if parsedDot {
				return false, t.failf(t.loc(), "dot already parsed in float literal")
			}
			parsedDot = true
			cur.S += string(c)
			t.adv(true)
			if parsedExponent {
				numExponentDigits++
			}

		case c == 'e' || c == 'E':
			if parsedExponent {
				return false, t.failf(t.loc(), "exponent already parsed in float literal")
			}
			parsedExponent = true
			cur.S += string(c)
			t.adv(true)

		case c == '\'':
			if !(t.rem() > 0 && isNumeric(t.fut(1))) {
				return false, t.failf(t.loc(), "digit separator cannot appear at end of digit sequence")
			}
			if parsedExponent && numExponentDigits == 0 {
				return false, t.failf(t.loc(), "digit separator cannot appear at start of digit sequence")
			}
			cur.S += string(c)
			t.adv(true)

		default:
			// suffix characters are collected verbatim until a special
			// character or whitespace; interpretation is deferred
			for t.remaining() && !isSpecial(t.c()) && !isWhitespace(t.c(), true) {
				cur.S += string(t.c())
				t.adv(true)
			}
			skip = true
			break scan
		}
	}

	if parsedExponent && numExponentDigits == 0 {
		return false, t.failf(t.loc(), "exponent has no digits")
	}
	return skip, nil
}

func (t *tokenizer) run() ([]Token, error) {
	var tokens []Token

	for t.remaining() {
		if t.err != nil {
			return nil, t.err
		}

		cur := Token{SrcLoc: t.loc(), LogLoc: t.logLoc(), Type: TokenType_Symbol}
		skipColIncrement := false

		for t.remaining() && t.err == nil {
			c := t.c()

			if isWhitespace(c, true) {
				if cur.S == "" {
					cur.Type = TokenType_Whitespace
				}
				if cur.Type == TokenType_Whitespace {
					cur.S += string(c)
					t.adv(true)
					continue
				}
				break
			} else if cur.Type == TokenType_Whitespace {
				skipColIncrement = true
				break
			}

			charIsLeadingNumeric := cur.S == "" && isNumeric(c)
			charIsDotFollowedByNumeric := c == '.' && t.rem() > 0 && isNumeric(t.fut(1))
			if charIsLeadingNumeric || charIsDotFollowedByNumeric {
				// a trailing digit is a legal symbol character, so only a
				// fresh token starts a numeric literal here
				if charIsDotFollowedByNumeric && cur.S != "" {
					skipColIncrement = true
					break
				}

				cur.Type = TokenType_LiteralNumber
				skip, err := t.lexNumber(&cur)
				if err != nil {
					return nil, err
				}
				skipColIncrement = skip
				break
			}

			matched, err := t.lexTerminated('\'', '\'', &cur, TokenType_LiteralChar)
			if err != nil {
				return nil, err
			}
			if matched {
				skipColIncrement = true
				break
			}

			matched, err = t.lexTerminated('"', '"', &cur, TokenType_LiteralString)
			if err != nil {
				return nil, err
			}
			if matched {
				skipColIncrement = true
				break
			}

			if isSpecial(c) {
				if cur.S != "" {
					skipColIncrement = true
					break
				}

				// line comment runs to the end of the line, exclusive
				if c == '/' && t.rem() > 0 && t.fut(1) == '/' {
					cur.Type = TokenType_Comment
					for t.remaining() && t.c() != '\n' {
						cur.S += string(t.c())
						t.adv(true)
					}
					break
				}

				// block comment runs to */, inclusive
				if c == '/' && t.rem() > 0 && t.fut(1) == '*' {
					cur.Type = TokenType_Comment
					startLoc := cur.SrcLoc

					cur.S += string(t.c())
					t.adv(true)

					terminated := false
					for t.remaining() {
						cur.S += string(t.c())
						if len(cur.S) >= 4 && strings.HasSuffix(cur.S, "*/") {
							terminated = true
							break
						}
						t.adv(true)
					}
					if !terminated {
						return nil, t.failf(startLoc, "unterminated multi-line comment")
					}
					break
				}

				if strings.IndexByte(compoundStartChars, c) >= 0 {
					matchedCompound := false
					for _, sym := range compoundSymbols {
						if t.compoundPresent(sym, &cur) {
							matchedCompound = true
							break
						}
					}
					if matchedCompound {
						break
					}
				}

				cur.Type = TokenType_OperatorPunctuation
				cur.S = string(c)
				break
			}

			cur.S += string(c)
			t.adv(true)
		}

		if t.err != nil {
			return nil, t.err
		}

		if cur.S != "" {
			tokens = append(tokens, cur)
		}

		if !skipColIncrement {
			t.adv(true)
		}
	}

	if t.err != nil {
		return nil, t.err
	}
	return tokens, nil
}
