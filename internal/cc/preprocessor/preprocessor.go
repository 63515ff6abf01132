// Package preprocessor executes the C preprocessing phase over logical lines
// of tokens: directive handling, conditional inclusion, macro expansion, file
// inclusion, and adjacent string-literal concatenation (translation phase 6).
//
// The engine is line oriented. A logical line starting with # is a directive;
// every other line has its macros expanded and goes to the output. Included
// files are tokenized, grouped into lines, and spliced into the line stream
// at the current position, so their directives and macros take effect exactly
// where the #include stood.
package preprocessor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/slaide/pacc/internal/cc"
	"github.com/slaide/pacc/internal/cc/lexer"
)

// IncludeRef tracks one included file. HasIncludeGuard is set by a
// #pragma once inside the file; later includes of the same resolved path are
// then skipped entirely.
type IncludeRef struct {
	Filename        string
	HasIncludeGuard bool
}

// IfFrame is one element of the conditional-inclusion state: a single
// #if/#elif/#else arm. Frames of the same #if...#endif group live in one
// slice on the stack, so at most one of them can have Value set.
type IfFrame struct {
	CondTokens []lexer.Token
	Value      bool

	// DoEval records whether this arm's condition was worth evaluating: false
	// when the enclosing conditional is inactive or a previous arm of the
	// same group already matched. A frame with DoEval false always has
	// Value false.
	DoEval bool

	// FirstIf is set on the #if/#ifdef/#ifndef frame that opened the group.
	FirstIf bool

	// IsElse is set on #else frames.
	IsElse bool
}

// DefaultLookupDirs is the builtin system include search path.
var DefaultLookupDirs = []string{".", "include", "musl/include"}

// Preprocessor holds the per-translation-unit directive state. It is not
// reusable across translation units; create a new one per input file.
type Preprocessor struct {
	lookupDirs []string
	diag       io.Writer

	lines            [][]lexer.Token
	currentLineIndex int

	outLines [][]lexer.Token

	filesIncluded map[string]*IncludeRef
	defines       map[string]*Define

	ifStack [][]*IfFrame
}

// New creates a preprocessor with the given system include directories
// (DefaultLookupDirs when nil) writing diagnostics to diag.
func New(lookupDirs []string, diag io.Writer) *Preprocessor {
	if lookupDirs == nil {
		lookupDirs = DefaultLookupDirs
	}
	if diag == nil {
		diag = os.Stderr
	}

	return &Preprocessor{
		lookupDirs:    lookupDirs,
		diag:          diag,
		filesIncluded: map[string]*IncludeRef{},
		defines: map[string]*Define{
			"__STDC__": {Name: "__STDC__", Body: []lexer.Token{numberToken("1")}},
			// 202311L marks C23, per the standard predefined macro list
			"__STDC_VERSION__": {Name: "__STDC_VERSION__", Body: []lexer.Token{numberToken("202311L")}},
		},
	}
}

// IsDefined reports whether name is currently defined as a macro.
func (p *Preprocessor) IsDefined(name string) bool {
	_, ok := p.defines[name]
	return ok
}

func (p *Preprocessor) isEmpty() bool {
	return p.currentLineIndex >= len(p.lines)
}

func (p *Preprocessor) getNextLine() []lexer.Token {
	line := p.lines[p.currentLineIndex]
	p.currentLineIndex++
	return line
}

// addLines splices lines into the stream at the current position, which is
// how included files take effect in place.
func (p *Preprocessor) addLines(tokenizedLines [][]lexer.Token) {
	rest := slices.Clone(p.lines[p.currentLineIndex:])
	p.lines = append(p.lines[:p.currentLineIndex:p.currentLineIndex], tokenizedLines...)
	p.lines = append(p.lines, rest...)
}

// anyFrameTrue reports whether any arm of the top group already matched.
func (p *Preprocessor) anyFrameTrue() bool {
	if len(p.ifStack) == 0 {
		return false
	}
	for _, frame := range p.ifStack[len(p.ifStack)-1] {
		if frame.Value {
			return true
		}
	}
	return false
}

// activeState reports whether lines at the current position are included:
// true when the stack is empty or the newest arm of the top group matched.
func (p *Preprocessor) activeState() bool {
	if len(p.ifStack) == 0 {
		return true
	}
	group := p.ifStack[len(p.ifStack)-1]
	return group[len(group)-1].Value
}

// frameDoEval decides whether the next frame's condition should be evaluated.
// The first arm of a new group inherits the enclosing active state; later
// arms additionally require that no earlier arm of the group matched.
func (p *Preprocessor) frameDoEval(firstIf bool) bool {
	if firstIf {
		return p.activeState()
	}
	if len(p.ifStack) == 0 {
		return false
	}
	group := p.ifStack[len(p.ifStack)-1]
	return group[len(group)-1].DoEval && !p.anyFrameTrue()
}

func (p *Preprocessor) pushFrame(frame *IfFrame) {
	if len(p.ifStack) == 0 || frame.FirstIf {
		p.ifStack = append(p.ifStack, nil)
	}
	top := len(p.ifStack) - 1
	p.ifStack[top] = append(p.ifStack[top], frame)
}

// evalIf builds a frame for #if/#elif by evaluating the condition tokens.
func (p *Preprocessor) evalIf(condTokens []lexer.Token, firstIf bool) (*IfFrame, error) {
	doEval := p.frameDoEval(firstIf)
	value := false
	if doEval {
		var err error
		value, err = p.evalCondition(condTokens)
		if err != nil {
			return nil, err
		}
	}
	return &IfFrame{CondTokens: condTokens, Value: value, DoEval: doEval, FirstIf: firstIf}, nil
}

// evalIfdef builds a frame for #ifdef/#elifdef (or the ndef variants when
// negate is set). Extra tokens after the name are ignored.
func (p *Preprocessor) evalIfdef(condTokens []lexer.Token, firstIf, negate bool) (*IfFrame, error) {
	doEval := p.frameDoEval(firstIf)
	value := false
	if doEval {
		if len(condTokens) == 0 {
			return nil, fmt.Errorf("%w: #ifdef without a macro name", cc.ErrPreprocess)
		}
		value = p.IsDefined(condTokens[0].S)
		if negate {
			value = !value
		}
	}
	return &IfFrame{CondTokens: condTokens, Value: value, DoEval: doEval, FirstIf: firstIf}, nil
}

// evalElse builds the unconditional #else frame: it matches exactly when no
// earlier arm of the group did and the enclosing state is active.
func (p *Preprocessor) evalElse() *IfFrame {
	doEval := p.frameDoEval(false)
	return &IfFrame{Value: doEval, DoEval: doEval, IsElse: true}
}

// Run executes all directives over the grouped logical lines and returns the
// expanded token stream. Adjacent string literals are not concatenated here;
// that is left to ConcatStrings.
func (p *Preprocessor) Run(lines [][]lexer.Token) ([]lexer.Token, error) {
	p.lines = lines
	p.currentLineIndex = 0
	p.outLines = nil

	skipFetchLineNext := false
	var line []lexer.Token

	for !p.isEmpty() || skipFetchLineNext {
		if !skipFetchLineNext {
			line = p.getNextLine()
		}
		skipFetchLineNext = false

		if len(line) == 0 {
			continue
		}

		if line[0].S == "#" {
			if len(line) < 2 {
				// a lone # is a null directive
				continue
			}
			if err := p.runDirective(line); err != nil {
				return nil, err
			}
			continue
		}

		// batch consecutive non-directive lines so that a macro invocation
		// can span lines
		skipParsingLines := !p.activeState()
		var expandTokens []lexer.Token
		for line[0].S != "#" {
			if !skipParsingLines {
				expandTokens = append(expandTokens, line...)
			}
			if p.isEmpty() {
				break
			}
			line = p.getNextLine()
			if len(line) == 0 {
				break
			}
		}
		// a directive line fetched above is handled by the next iteration; a
		// text line left here was already added to the batch
		skipFetchLineNext = len(line) > 0 && line[0].S == "#"

		if !skipParsingLines {
			newLine, err := p.expand(expandTokens)
			if err != nil {
				return nil, err
			}
			p.outLines = append(p.outLines, newLine)
		}
	}

	if len(p.ifStack) > 0 {
		return nil, fmt.Errorf("%w: missing #endif at end of input", cc.ErrPreprocess)
	}

	var out []lexer.Token
	for _, outLine := range p.outLines {
		out = append(out, outLine...)
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (p *Preprocessor) runDirective(line []lexer.Token) error {
	directive := line[1]

	switch directive.S {
	case "if":
		frame, err := p.evalIf(line[2:], true)
		if err != nil {
			return err
		}
		p.pushFrame(frame)

	case "ifdef", "ifndef":
		frame, err := p.evalIfdef(line[2:], true, directive.S == "ifndef")
		if err != nil {
			return err
		}
		p.pushFrame(frame)

	case "elif":
		if len(p.ifStack) == 0 {
			return fmt.Errorf("%w: #elif without #if at %s", cc.ErrPreprocess, directive.SrcLoc)
		}
		frame, err := p.evalIf(line[2:], false)
		if err != nil {
			return err
		}
		p.pushFrame(frame)

	case "elifdef", "elifndef":
		if len(p.ifStack) == 0 {
			return fmt.Errorf("%w: #%s without #if at %s", cc.ErrPreprocess, directive.S, directive.SrcLoc)
		}
		frame, err := p.evalIfdef(line[2:], false, directive.S == "elifndef")
		if err != nil {
			return err
		}
		p.pushFrame(frame)

	case "else":
		if len(p.ifStack) == 0 {
			return fmt.Errorf("%w: #else without #if at %s", cc.ErrPreprocess, directive.SrcLoc)
		}
		p.pushFrame(p.evalElse())

	case "endif":
		if len(p.ifStack) == 0 {
			return fmt.Errorf("%w: #endif without #if at %s", cc.ErrPreprocess, directive.SrcLoc)
		}
		p.ifStack = p.ifStack[:len(p.ifStack)-1]

	case "error":
		if !p.activeState() {
			return nil
		}
		fmt.Fprintf(p.diag, "ERROR - %s\n", joinTokens(line[2:]))

	case "warning":
		if !p.activeState() {
			return nil
		}
		fmt.Fprintf(p.diag, "WARNING - %s\n", joinTokens(line[2:]))

	case "pragma":
		if !p.activeState() {
			return nil
		}
		return p.runPragma(line)

	case "include":
		if !p.activeState() {
			return nil
		}
		return p.runInclude(line)

	case "define":
		if !p.activeState() {
			return nil
		}
		return p.runDefine(line)

	case "undef":
		if !p.activeState() {
			return nil
		}
		if len(line) < 3 {
			return fmt.Errorf("%w: #undef without a macro name at %s", cc.ErrPreprocess, directive.SrcLoc)
		}
		delete(p.defines, line[2].S)

	case "line":
		if !p.activeState() {
			return nil
		}
		fmt.Fprintf(p.diag, "WARNING - directive line not implemented, ignored at %s\n", directive.SrcLoc)

	case "embed":
		if !p.activeState() {
			return nil
		}
		fmt.Fprintf(p.diag, "WARNING - directive embed not implemented, ignored at %s\n", directive.SrcLoc)

	default:
		// nested conditionals must stay balanced even in dead branches, so
		// unknown directives only fail when the line would be processed
		if !p.activeState() {
			return nil
		}
		return fmt.Errorf("%w: unknown directive %q at %s", cc.ErrPreprocess, directive.S, directive.SrcLoc)
	}

	return nil
}

func (p *Preprocessor) runPragma(line []lexer.Token) error {
	if len(line) < 3 {
		return fmt.Errorf("%w: #pragma without an argument at %s", cc.ErrPreprocess, line[1].SrcLoc)
	}

	switch line[2].S {
	case "once":
		filename := line[2].SrcLoc.Filename
		if ref, ok := p.filesIncluded[filename]; ok {
			ref.HasIncludeGuard = true
		} else {
			p.filesIncluded[filename] = &IncludeRef{Filename: filename, HasIncludeGuard: true}
		}
		return nil
	default:
		return fmt.Errorf("%w: unimplemented pragma %q at %s", cc.ErrPreprocess, line[2].S, line[2].SrcLoc)
	}
}

func (p *Preprocessor) runInclude(line []lexer.Token) error {
	if len(line) < 3 {
		return fmt.Errorf("%w: #include without a path at %s", cc.ErrPreprocess, line[1].SrcLoc)
	}

	// extra tokens after the path are legal and ignored

	var path string
	switch {
	case strings.HasPrefix(line[2].S, `"`):
		localInclude := strings.Trim(line[2].S, `"`)
		candidate := filepath.Join(filepath.Dir(line[2].SrcLoc.Filename), localInclude)
		if !fileExists(candidate) {
			return fmt.Errorf("%w: unresolved local include %q at %s", cc.ErrPreprocess, localInclude, line[2].SrcLoc)
		}
		path = candidate

	case line[2].S == "<":
		// the path between the angle brackets must keep its exact spelling,
		// so it is re-serialised from the tokens' logical columns
		var globalInclude strings.Builder
		colIndex := line[2].LogLoc.Col + 1
		for _, tok := range line[3:] {
			if tok.S == ">" {
				break
			}
			if tok.LogLoc.Col != colIndex {
				globalInclude.WriteString(strings.Repeat(" ", tok.LogLoc.Col-colIndex))
				colIndex = tok.LogLoc.Col
			}
			globalInclude.WriteString(tok.S)
			colIndex += len(tok.S)
		}

		for _, dir := range p.lookupDirs {
			candidate := filepath.Join(dir, globalInclude.String())
			if fileExists(candidate) {
				path = candidate
				break
			}
		}
		if path == "" {
			return fmt.Errorf("%w: unresolved global include %q at %s", cc.ErrPreprocess, globalInclude.String(), line[2].SrcLoc)
		}

	default:
		return fmt.Errorf("%w: unexpected include form %v", cc.ErrPreprocess, line[2])
	}

	if ref, ok := p.filesIncluded[path]; ok && ref.HasIncludeGuard {
		return nil
	}

	tokens, err := lexer.Tokenize(path)
	if err != nil {
		return err
	}

	p.filesIncluded[path] = &IncludeRef{Filename: path}
	p.addLines(lexer.GroupLines(tokens))
	return nil
}

func (p *Preprocessor) runDefine(line []lexer.Token) error {
	if len(line) < 3 {
		return fmt.Errorf("%w: #define without a macro name at %s", cc.ErrPreprocess, line[1].SrcLoc)
	}

	define := &Define{Name: line[2].S}

	if len(line) > 3 {
		firstBodyIndex := 3

		// a parameter list only counts when the paren touches the name
		if line[3].S == "(" && line[3].LogLoc.Col == line[2].LogLoc.Col+len(line[2].S) {
			define.Params = []lexer.Token{}

			tokIndex := 4
			for {
				if tokIndex >= len(line) {
					return fmt.Errorf("%w: unterminated parameter list of macro %s at %s", cc.ErrPreprocess, define.Name, line[2].SrcLoc)
				}
				if line[tokIndex].S == ")" {
					break
				}

				if line[tokIndex].S == VarargName {
					define.HasVararg = true
					tokIndex++
					// the vararg must be the last parameter
					break
				}

				define.Params = append(define.Params, line[tokIndex])
				tokIndex++
				if tokIndex < len(line) && line[tokIndex].S == "," {
					tokIndex++
				}
			}

			if tokIndex >= len(line) || line[tokIndex].S != ")" {
				return fmt.Errorf("%w: unterminated parameter list of macro %s at %s", cc.ErrPreprocess, define.Name, line[2].SrcLoc)
			}
			tokIndex++

			firstBodyIndex = tokIndex
		}

		define.Body = append(define.Body, line[firstBodyIndex:]...)
	}

	// redefinition silently overwrites
	p.defines[define.Name] = define
	return nil
}

func joinTokens(tokens []lexer.Token) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.S
	}
	return strings.Join(parts, " ")
}
