package driver

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slaide/pacc/internal/cc"
	"github.com/slaide/pacc/internal/cc/lexer"
	"github.com/slaide/pacc/internal/cc/parser"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func tokenStrings(tokens []lexer.Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.S
	}
	return out
}

func runSource(t *testing.T, content string, opts Options) *Result {
	t.Helper()
	path := writeSource(t, t.TempDir(), "main.c", content)
	if opts.Diag == nil {
		opts.Diag = io.Discard
	}
	result, err := Run(path, opts)
	require.NoError(t, err)
	return result
}

func TestFunctionWithStringLiteral(t *testing.T) {
	result := runSource(t, `int main(){ char *s = "hi"; return 0; }`, Options{StopAfter: Phase_Parse})

	require.NotNil(t, result.AST)
	require.Len(t, result.AST.Statements, 1)

	fn, ok := result.AST.Statements[0].(*parser.Function)
	require.True(t, ok)
	require.Len(t, fn.Block.Statements, 2)

	require.NotNil(t, result.AST.Symbols["main"])
}

func TestMacrosWithStringifyAndPaste(t *testing.T) {
	source := "#define S(x) #x\n" +
		"#define CAT(a,b) a##b\n" +
		"int CAT(foo,1) = 0;\n" +
		"const char *t = S(hello);\n"

	result := runSource(t, source, Options{StopAfter: Phase_Parse})

	foo1 := result.AST.Symbols["foo1"]
	require.NotNil(t, foo1)
	assert.Equal(t, "int", foo1.Type.Flatten().PrimitiveName)

	tSym := result.AST.Symbols["t"]
	require.NotNil(t, tSym)
	require.Equal(t, parser.CTypeKind_Pointer, tSym.Type.Kind)
	assert.True(t, tSym.Type.Base.IsConst)

	symDef := result.AST.Statements[1].(*parser.SymbolDef)
	lit, ok := symDef.Symbols[0].Init.(*parser.ValueLiteral)
	require.True(t, ok)
	assert.Equal(t, `"hello"`, lit.Value)
}

func TestNestedConditionalInclusion(t *testing.T) {
	source := "#if 1\n" +
		"#if 0\n" +
		"int dead;\n" +
		"#endif\n" +
		"int live;\n" +
		"#else\n" +
		"int other;\n" +
		"#endif\n"

	result := runSource(t, source, Options{StopAfter: Phase_Preprocess})

	if diff := cmp.Diff([]string{"int", "live", ";"}, tokenStrings(result.Tokens)); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}
}

func TestPragmaOnceIdempotence(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "guard.h", "#pragma once\nint guarded;\n")
	main := writeSource(t, dir, "main.c", "#include \"guard.h\"\n#include \"guard.h\"\nint x;\n")

	result, err := Run(main, Options{StopAfter: Phase_Preprocess, Diag: io.Discard})
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"int", "guarded", ";", "int", "x", ";"}, tokenStrings(result.Tokens)); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "sys/deep.h", "int from_sys;\n")
	main := writeSource(t, dir, "main.c", "#include <deep.h>\nint x;\n")

	result, err := Run(main, Options{
		StopAfter:   Phase_Preprocess,
		IncludeDirs: []string{filepath.Join(dir, "sys")},
		Diag:        io.Discard,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"int", "from_sys", ";", "int", "x", ";"}, tokenStrings(result.Tokens))
}

func TestStructFieldAssignment(t *testing.T) {
	result := runSource(t, `struct P{int x,y;}; struct P p; int main(){ p.x = 3; return 0; }`, Options{StopAfter: Phase_Parse})

	structP := result.AST.StructTags["P"]
	require.NotNil(t, structP)

	fn := result.AST.Statements[len(result.AST.Statements)-1].(*parser.Function)
	assign := fn.Block.Statements[0].(*parser.ExpressionStatement).Value.(*parser.Operation)
	require.Equal(t, parser.Op_Assign, assign.Op)

	lhsType, err := assign.A.ResultType()
	require.NoError(t, err)
	assert.Equal(t, "int", lhsType.Flatten().PrimitiveName)

	dot := assign.A.(*parser.Operation)
	fieldRef := dot.B.(*parser.ValueField)
	assert.Same(t, structP.Fields[0], fieldRef.Field)
}

func TestSizeofInt(t *testing.T) {
	result := runSource(t, `int x = sizeof(int);`, Options{StopAfter: Phase_Parse})

	symDef := result.AST.Statements[0].(*parser.SymbolDef)
	lit, ok := symDef.Symbols[0].Init.(*parser.ValueLiteral)
	require.True(t, ok)
	assert.Equal(t, "int", lit.Type.PrimitiveName)
	assert.NotEqual(t, "0", lit.Value)
}

func TestAdjacentStringConcatenation(t *testing.T) {
	result := runSource(t, `const char *s = "abc" "def";`, Options{StopAfter: Phase_Preprocess})

	var strCount int
	for _, tok := range result.Tokens {
		if tok.Type == lexer.TokenType_LiteralString {
			strCount++
			assert.Equal(t, `"abcdef"`, tok.S)
		}
	}
	assert.Equal(t, 1, strCount)
}

func TestStopAfterTokenize(t *testing.T) {
	result := runSource(t, "#define X 1\nint x = X;\n", Options{StopAfter: Phase_Tokenize})

	assert.Nil(t, result.AST)
	// directives are untouched in tokenize-only mode
	assert.Contains(t, tokenStrings(result.Tokens), "define")
}

func TestPipelineErrors(t *testing.T) {
	testCases := []struct {
		name    string
		source  string
		wantErr error
	}{
		{name: "lexical", source: "char c = 'x;\n", wantErr: cc.ErrLexical},
		{name: "preprocess", source: "#include \"missing.h\"\n", wantErr: cc.ErrPreprocess},
		{name: "parse", source: "int x = ;\n", wantErr: cc.ErrParse},
		{name: "type", source: "struct P{int x;}; struct P p; int main(){ p.nope = 1; return 0; }", wantErr: cc.ErrType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeSource(t, t.TempDir(), "main.c", tc.source)
			_, err := Run(path, Options{StopAfter: Phase_Parse, Diag: io.Discard})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestMissingFileFails(t *testing.T) {
	_, err := Run(filepath.Join(t.TempDir(), "nope.c"), Options{Diag: io.Discard})
	require.Error(t, err)
	assert.ErrorIs(t, err, cc.ErrLexical)
}
