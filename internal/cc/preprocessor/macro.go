package preprocessor

import (
	"fmt"
	"strings"

	"github.com/slaide/pacc/internal/cc"
	"github.com/slaide/pacc/internal/cc/lexer"
)

// VarargName is the parameter-list spelling that makes a macro variadic.
const VarargName = "..."

// varargArgName collects the remaining call arguments of a variadic macro.
const varargArgName = "__VA_ARGS__"

// Define is one entry in the macro table. Params distinguishes the two macro
// shapes: nil means object-like, non-nil (possibly empty) means function-like.
type Define struct {
	Name      string
	Params    []lexer.Token
	HasVararg bool
	Body      []lexer.Token
}

func numberToken(text string) lexer.Token {
	return lexer.Token{S: text, Type: lexer.TokenType_LiteralNumber, SrcLoc: lexer.Placeholder(), LogLoc: lexer.Placeholder()}
}

// expand rewrites tokens until no macro invocation is left. Expansion repeats
// over its own output, so macros produced by other macros are resolved too; a
// token whose own name is already in its expansion trail is left alone, which
// is what blocks self-recursive macros.
func (p *Preprocessor) expand(tokens []lexer.Token) ([]lexer.Token, error) {
	in := tokens
	var ret []lexer.Token

	for {
		expandedAny := false

		i := 0
		for i < len(in) {
			tok := in[i]
			i++

			var target *Define
			if tok.Type == lexer.TokenType_Symbol {
				target = p.defines[tok.S]
			}
			if target != nil && tok.IsExpandedFrom(tok.S) {
				target = nil
			}
			if target == nil {
				ret = append(ret, tok)
				continue
			}

			expandedAny = true

			macroArgs := map[string][]lexer.Token{}
			if target.Params != nil {
				if i >= len(in) || in[i].S != "(" {
					return nil, fmt.Errorf("%w: macro %s expects an argument list at %s", cc.ErrPreprocess, target.Name, tok.SrcLoc)
				}
				i++
				if i >= len(in) {
					return nil, fmt.Errorf("%w: unterminated argument list of macro %s at %s", cc.ErrPreprocess, target.Name, tok.SrcLoc)
				}
				cur := in[i]
				i++

				paramNames := make([]string, 0, len(target.Params)+1)
				for _, param := range target.Params {
					paramNames = append(paramNames, param.S)
				}
				if target.HasVararg {
					paramNames = append(paramNames, varargArgName)
				}

				for _, param := range paramNames {
					var arg []lexer.Token
					// only parentheses nest; other delimiters may stay unpaired
					nestingDepth := 0

				argScan:
					for {
						switch {
						case cur.S == "(":
							nestingDepth++
						case cur.S == ")":
							if nestingDepth == 0 {
								break argScan
							}
							nestingDepth--
						case cur.S == "," && nestingDepth == 0 && param != varargArgName:
							if i >= len(in) {
								return nil, fmt.Errorf("%w: unterminated argument list of macro %s at %s", cc.ErrPreprocess, target.Name, tok.SrcLoc)
							}
							cur = in[i]
							i++
							break argScan
						}

						arg = append(arg, cur)

						if i >= len(in) {
							return nil, fmt.Errorf("%w: unterminated argument list of macro %s at %s", cc.ErrPreprocess, target.Name, tok.SrcLoc)
						}
						cur = in[i]
						i++
					}

					macroArgs[param] = arg
				}

				if cur.S != ")" {
					return nil, fmt.Errorf("%w: expected ) after arguments of macro %s, got %v", cc.ErrPreprocess, target.Name, cur)
				}
			}

			if err := substituteBody(target, tok.ExpandedFrom, macroArgs, &ret); err != nil {
				return nil, err
			}
		}

		// nothing was expanded, so another pass cannot change the output
		if !expandedAny {
			break
		}

		in = ret
		ret = nil
	}

	return ret, nil
}

// substituteBody walks the macro body once, replacing parameter names with
// their argument tokens and applying the # and ## operators, appending the
// result to out. Tokens taken from the body inherit trail, the expansion
// trail of the invoking name token, and every produced token is then stamped
// with the macro's name.
func substituteBody(target *Define, trail []string, macroArgs map[string][]lexer.Token, out *[]lexer.Token) error {
	body := target.Body

	i := 0
	for i < len(body) {
		tok := body[i]
		i++

		if args, isParam := macroArgs[tok.S]; isParam {
			for _, arg := range args {
				copied := arg.Copy()
				copied.ExpandFrom(target.Name)
				*out = append(*out, copied)
			}
			continue
		}

		if tok.S == "#" {
			if i >= len(body) {
				return fmt.Errorf("%w: # at end of body of macro %s", cc.ErrPreprocess, target.Name)
			}
			tok = body[i]
			i++

			// a second # forms the token-pasting operator
			if tok.S == "#" {
				if len(*out) == 0 || i >= len(body) {
					return fmt.Errorf("%w: ## needs a token on both sides in macro %s", cc.ErrPreprocess, target.Name)
				}
				concatTok := body[i]
				i++

				last := &(*out)[len(*out)-1]
				if args, isParam := macroArgs[concatTok.S]; isParam {
					if len(args) != 1 {
						return fmt.Errorf("%w: can only paste individual tokens in macro %s, got %d", cc.ErrPreprocess, target.Name, len(args))
					}
					last.S += args[0].S
				} else {
					last.S += concatTok.S
				}
				continue
			}

			args, isParam := macroArgs[tok.S]
			if !isParam {
				return fmt.Errorf("%w: # must be followed by a parameter of macro %s, got %q", cc.ErrPreprocess, target.Name, tok.S)
			}

			var joined strings.Builder
			for argIndex, arg := range args {
				if argIndex > 0 && arg.Type == lexer.TokenType_Symbol {
					joined.WriteByte(' ')
				}
				joined.WriteString(arg.S)
			}

			strTok := lexer.Token{
				S:      `"` + joined.String() + `"`,
				Type:   lexer.TokenType_LiteralString,
				SrcLoc: lexer.Placeholder(),
				LogLoc: lexer.Placeholder(),
			}
			strTok.ExpandedFrom = append(strTok.ExpandedFrom, trail...)
			strTok.ExpandFrom(target.Name)
			*out = append(*out, strTok)
			continue
		}

		copied := tok.Copy()
		copied.ExpandedFrom = append(copied.ExpandedFrom, trail...)
		copied.ExpandFrom(target.Name)
		*out = append(*out, copied)
	}

	return nil
}
