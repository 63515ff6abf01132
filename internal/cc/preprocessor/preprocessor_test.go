package preprocessor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slaide/pacc/internal/cc"
	"github.com/slaide/pacc/internal/cc/lexer"
)

func preprocessString(t *testing.T, input string) []lexer.Token {
	t.Helper()
	tokens, err := lexer.TokenizeBytes("test.c", []byte(input))
	require.NoError(t, err)

	p := New(nil, os.Stderr)
	out, err := p.Run(lexer.GroupLines(tokens))
	require.NoError(t, err)
	return out
}

func tokenStrings(tokens []lexer.Token) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.S
	}
	return out
}

func TestObjectLikeMacro(t *testing.T) {
	out := preprocessString(t, "#define N 10\nint x = N;")
	assert.Equal(t, []string{"int", "x", "=", "10", ";"}, tokenStrings(out))
}

func TestFunctionLikeMacro(t *testing.T) {
	out := preprocessString(t, "#define SQ(x) x * x\nint y = SQ(3);")
	assert.Equal(t, []string{"int", "y", "=", "3", "*", "3", ";"}, tokenStrings(out))
}

func TestMacroWithoutParenIsNotFunctionLike(t *testing.T) {
	// a space before ( makes the parenthesis part of the body
	out := preprocessString(t, "#define P (1)\nint x = P;")
	assert.Equal(t, []string{"int", "x", "=", "(", "1", ")", ";"}, tokenStrings(out))
}

func TestNestedMacroExpansion(t *testing.T) {
	out := preprocessString(t, "#define A B\n#define B 3\nint x = A;")
	assert.Equal(t, []string{"int", "x", "=", "3", ";"}, tokenStrings(out))
}

func TestRecursiveMacroStops(t *testing.T) {
	// the trail blocks re-expansion, so the inner name survives
	out := preprocessString(t, "#define A A\nint x = A;")
	assert.Equal(t, []string{"int", "x", "=", "A", ";"}, tokenStrings(out))
}

func TestMutuallyRecursiveMacrosStop(t *testing.T) {
	out := preprocessString(t, "#define A B\n#define B A\nint x = A;")
	// A -> B -> A, then the trail on the produced A contains A
	assert.Equal(t, []string{"int", "x", "=", "A", ";"}, tokenStrings(out))
}

func TestStringificationOperator(t *testing.T) {
	out := preprocessString(t, "#define S(x) #x\nconst char *t = S(hello);")
	assert.Equal(t, []string{"const", "char", "*", "t", "=", `"hello"`, ";"}, tokenStrings(out))

	strTok := out[5]
	assert.Equal(t, lexer.TokenType_LiteralString, strTok.Type)
}

func TestStringificationJoinsSymbolsWithSpaces(t *testing.T) {
	out := preprocessString(t, "#define S(x) #x\nconst char *t = S(a b);")
	assert.Equal(t, `"a b"`, out[5].S)
}

func TestTokenPastingOperator(t *testing.T) {
	out := preprocessString(t, "#define CAT(a,b) a##b\nint CAT(foo,1) = 0;")
	assert.Equal(t, []string{"int", "foo1", "=", "0", ";"}, tokenStrings(out))
	assert.Equal(t, lexer.TokenType_Symbol, out[1].Type)
}

func TestVarargMacro(t *testing.T) {
	out := preprocessString(t, "#define CALL(f, ...) f(__VA_ARGS__)\nint x = CALL(g, 1, 2);")
	assert.Equal(t, []string{"int", "x", "=", "g", "(", "1", ",", "2", ")", ";"}, tokenStrings(out))
}

func TestMacroArgumentsNestParentheses(t *testing.T) {
	out := preprocessString(t, "#define ID(x) x\nint y = ID((1, 2));")
	assert.Equal(t, []string{"int", "y", "=", "(", "1", ",", "2", ")", ";"}, tokenStrings(out))
}

func TestMultiLineMacroInvocation(t *testing.T) {
	out := preprocessString(t, "#define ADD(a,b) a + b\nint x = ADD(1,\n2);")
	assert.Equal(t, []string{"int", "x", "=", "1", "+", "2", ";"}, tokenStrings(out))
}

func TestUndef(t *testing.T) {
	out := preprocessString(t, "#define N 10\n#undef N\nint x = N;")
	assert.Equal(t, []string{"int", "x", "=", "N", ";"}, tokenStrings(out))
}

func TestRedefinitionOverwrites(t *testing.T) {
	out := preprocessString(t, "#define N 10\n#define N 20\nint x = N;")
	assert.Equal(t, []string{"int", "x", "=", "20", ";"}, tokenStrings(out))
}

func TestConditionalInclusion(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "if true",
			input:    "#if 1\nint a;\n#endif",
			expected: []string{"int", "a", ";"},
		},
		{
			name:     "if false",
			input:    "#if 0\nint a;\n#endif",
			expected: nil,
		},
		{
			name:     "if else",
			input:    "#if 0\nint a;\n#else\nint b;\n#endif",
			expected: []string{"int", "b", ";"},
		},
		{
			name:     "elif chain picks first true",
			input:    "#if 0\nint a;\n#elif 1\nint b;\n#elif 1\nint c;\n#else\nint d;\n#endif",
			expected: []string{"int", "b", ";"},
		},
		{
			name:     "ifdef defined",
			input:    "#define X\n#ifdef X\nint a;\n#endif",
			expected: []string{"int", "a", ";"},
		},
		{
			name:     "ifdef undefined",
			input:    "#ifdef X\nint a;\n#endif",
			expected: nil,
		},
		{
			name:     "ifndef",
			input:    "#ifndef X\nint a;\n#endif",
			expected: []string{"int", "a", ";"},
		},
		{
			name:     "elifdef",
			input:    "#define Y\n#ifdef X\nint a;\n#elifdef Y\nint b;\n#endif",
			expected: []string{"int", "b", ";"},
		},
		{
			name:     "elifndef",
			input:    "#ifdef X\nint a;\n#elifndef X\nint b;\n#endif",
			expected: []string{"int", "b", ";"},
		},
		{
			name:     "nested inner false in outer else",
			input:    "#if 1\n#if 0\nint a;\n#endif\nint b;\n#else\nint c;\n#endif",
			expected: []string{"int", "b", ";"},
		},
		{
			name:     "inner if inside dead branch stays dead",
			input:    "#if 0\n#if 1\nint a;\n#endif\n#else\nint b;\n#endif",
			expected: []string{"int", "b", ";"},
		},
		{
			name:     "else of inner if inside dead branch stays dead",
			input:    "#if 0\n#if 0\nint a;\n#else\nint b;\n#endif\n#endif",
			expected: nil,
		},
		{
			name:     "defined operator",
			input:    "#define X 1\n#if defined(X) && !defined(Y)\nint a;\n#endif",
			expected: []string{"int", "a", ";"},
		},
		{
			name:     "defined without parens",
			input:    "#define X 1\n#if defined X\nint a;\n#endif",
			expected: []string{"int", "a", ";"},
		},
		{
			name:     "macro in condition",
			input:    "#define V 3\n#if V >= 2\nint a;\n#endif",
			expected: []string{"int", "a", ";"},
		},
		{
			name:     "undefined identifier evaluates to zero",
			input:    "#if UNDEFINED_THING\nint a;\n#endif",
			expected: nil,
		},
		{
			name:     "stdc version comparison",
			input:    "#if __STDC_VERSION__ >= 202311L\nint a;\n#endif",
			expected: []string{"int", "a", ";"},
		},
		{
			name:     "arithmetic in condition",
			input:    "#if 1 + 2 == 3\nint a;\n#endif",
			expected: []string{"int", "a", ";"},
		},
		{
			name:     "parenthesised condition",
			input:    "#if (1 || 0) && 1\nint a;\n#endif",
			expected: []string{"int", "a", ";"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := preprocessString(t, tc.input)
			assert.Equal(t, tc.expected, tokenStrings(out))
		})
	}
}

func TestConditionalExclusivity(t *testing.T) {
	// at most one arm of a group may contribute tokens
	out := preprocessString(t, "#if 1\nint a;\n#elif 1\nint b;\n#else\nint c;\n#endif")
	assert.Equal(t, []string{"int", "a", ";"}, tokenStrings(out))
}

func TestPreprocessErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "missing endif", input: "#if 1\nint a;"},
		{name: "endif without if", input: "#endif"},
		{name: "else without if", input: "#else"},
		{name: "elif without if", input: "#elif 1"},
		{name: "unknown directive", input: "#frobnicate"},
		{name: "unresolved include", input: `#include "no/such/file.h"`},
		{name: "unterminated macro args", input: "#define F(a) a\nint x = F(1;"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, err := lexer.TokenizeBytes("test.c", []byte(tc.input))
			require.NoError(t, err)

			p := New(nil, os.Stderr)
			_, err = p.Run(lexer.GroupLines(tokens))
			require.Error(t, err)
			assert.ErrorIs(t, err, cc.ErrPreprocess)
		})
	}
}

func TestUnknownDirectiveInDeadBranchIsIgnored(t *testing.T) {
	out := preprocessString(t, "#if 0\n#frobnicate\n#endif\nint a;")
	assert.Equal(t, []string{"int", "a", ";"}, tokenStrings(out))
}

func TestErrorAndWarningDirectivesDoNotAbort(t *testing.T) {
	tokens, err := lexer.TokenizeBytes("test.c", []byte("#error this is bad\n#warning this is odd\nint a;"))
	require.NoError(t, err)

	var diag strings.Builder
	p := New(nil, &diag)
	out, err := p.Run(lexer.GroupLines(tokens))
	require.NoError(t, err)

	assert.Equal(t, []string{"int", "a", ";"}, tokenStrings(out))
	assert.Contains(t, diag.String(), "ERROR - this is bad")
	assert.Contains(t, diag.String(), "WARNING - this is odd")
}

func TestErrorDirectiveInDeadBranchIsSilent(t *testing.T) {
	tokens, err := lexer.TokenizeBytes("test.c", []byte("#if 0\n#error unreachable\n#endif\nint a;"))
	require.NoError(t, err)

	var diag strings.Builder
	p := New(nil, &diag)
	_, err = p.Run(lexer.GroupLines(tokens))
	require.NoError(t, err)
	assert.Empty(t, diag.String())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func preprocessFile(t *testing.T, path string, lookupDirs []string) []lexer.Token {
	t.Helper()
	tokens, err := lexer.Tokenize(path)
	require.NoError(t, err)

	p := New(lookupDirs, os.Stderr)
	out, err := p.Run(lexer.GroupLines(tokens))
	require.NoError(t, err)
	return out
}

func TestLocalInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "header.h", "int from_header;\n")
	main := writeFile(t, dir, "main.c", "#include \"header.h\"\nint x;\n")

	out := preprocessFile(t, main, nil)
	assert.Equal(t, []string{"int", "from_header", ";", "int", "x", ";"}, tokenStrings(out))
}

func TestGlobalInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "include/sys.h", "int from_sys;\n")
	main := writeFile(t, dir, "main.c", "#include <sys.h>\nint x;\n")

	out := preprocessFile(t, main, []string{filepath.Join(dir, "include")})
	assert.Equal(t, []string{"int", "from_sys", ";", "int", "x", ";"}, tokenStrings(out))
}

func TestIncludeDefinesPropagate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defs.h", "#define ANSWER 42\n")
	main := writeFile(t, dir, "main.c", "#include \"defs.h\"\nint x = ANSWER;\n")

	out := preprocessFile(t, main, nil)
	assert.Equal(t, []string{"int", "x", "=", "42", ";"}, tokenStrings(out))
}

func TestPragmaOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guarded.h", "#pragma once\nint only_once;\n")
	main := writeFile(t, dir, "main.c", "#include \"guarded.h\"\n#include \"guarded.h\"\nint x;\n")

	out := preprocessFile(t, main, nil)
	assert.Equal(t, []string{"int", "only_once", ";", "int", "x", ";"}, tokenStrings(out))
}

func TestUnguardedIncludeRepeats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plain.h", "int again;\n")
	main := writeFile(t, dir, "main.c", "#include \"plain.h\"\n#include \"plain.h\"\n")

	out := preprocessFile(t, main, nil)
	assert.Equal(t, []string{"int", "again", ";", "int", "again", ";"}, tokenStrings(out))
}

func TestNestedInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inner.h", "int inner;\n")
	writeFile(t, dir, "outer.h", "#include \"inner.h\"\nint outer;\n")
	main := writeFile(t, dir, "main.c", "#include \"outer.h\"\nint x;\n")

	out := preprocessFile(t, main, nil)
	assert.Equal(t, []string{"int", "inner", ";", "int", "outer", ";", "int", "x", ";"}, tokenStrings(out))
}

func TestConcatStrings(t *testing.T) {
	out := preprocessString(t, `const char *s = "abc" "def";`)
	concatenated := ConcatStrings(out)

	strIndex := -1
	for i, tok := range concatenated {
		if tok.Type == lexer.TokenType_LiteralString {
			strIndex = i
			break
		}
	}
	require.GreaterOrEqual(t, strIndex, 0)
	assert.Equal(t, `"abcdef"`, concatenated[strIndex].S)

	// idempotence
	again := ConcatStrings(concatenated)
	assert.Equal(t, tokenStrings(concatenated), tokenStrings(again))
}

func TestConcatKeepsLeftLocation(t *testing.T) {
	tokens, err := lexer.TokenizeBytes("test.c", []byte(`"ab" "cd"`))
	require.NoError(t, err)

	var strs []lexer.Token
	for _, tok := range tokens {
		if tok.Type == lexer.TokenType_LiteralString {
			strs = append(strs, tok)
		}
	}
	require.Len(t, strs, 2)

	merged := ConcatStrings(strs)
	require.Len(t, merged, 1)
	assert.Equal(t, `"abcd"`, merged[0].S)
	assert.Equal(t, strs[0].SrcLoc, merged[0].SrcLoc)
}
