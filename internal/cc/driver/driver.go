// Package driver runs the front-end pipeline over one translation unit:
// tokenize, group logical lines, preprocess, concatenate adjacent string
// literals, parse. Each run builds all state fresh; nothing is shared across
// translation units.
package driver

import (
	"io"
	"os"

	"github.com/slaide/pacc/internal/cc/lexer"
	"github.com/slaide/pacc/internal/cc/parser"
	"github.com/slaide/pacc/internal/cc/preprocessor"
)

// Phase selects how far the pipeline runs.
type Phase int

const (
	// Phase_Tokenize stops after lexing (translation phases 1-3).
	Phase_Tokenize Phase = iota
	// Phase_Preprocess stops after preprocessing and string concatenation
	// (translation phases 4-6).
	Phase_Preprocess
	// Phase_Parse runs through syntactic and semantic analysis (phase 7).
	Phase_Parse
)

// Options configures one translation-unit run.
type Options struct {
	// IncludeDirs is appended to the default system include search path, in
	// order.
	IncludeDirs []string

	// StopAfter bounds the pipeline; later stages are skipped.
	StopAfter Phase

	// Diag receives warnings and #error/#warning output. Defaults to stderr.
	Diag io.Writer
}

// Result carries the outputs of the phases that ran.
type Result struct {
	// Tokens is the token stream of the last completed token-producing
	// phase: raw lexer output for Phase_Tokenize, the expanded and
	// concatenated stream otherwise.
	Tokens []lexer.Token

	// AST is the translation-unit block; nil unless Phase_Parse ran.
	AST *parser.Block
}

// Run processes one source file through the configured phases.
func Run(filename string, opts Options) (*Result, error) {
	diag := opts.Diag
	if diag == nil {
		diag = os.Stderr
	}

	tokens, err := lexer.Tokenize(filename)
	if err != nil {
		return nil, err
	}

	result := &Result{Tokens: tokens}
	if opts.StopAfter == Phase_Tokenize {
		return result, nil
	}

	lookupDirs := append(append([]string{}, preprocessor.DefaultLookupDirs...), opts.IncludeDirs...)

	pp := preprocessor.New(lookupDirs, diag)
	expanded, err := pp.Run(lexer.GroupLines(tokens))
	if err != nil {
		return nil, err
	}

	result.Tokens = preprocessor.ConcatStrings(expanded)
	if opts.StopAfter == Phase_Preprocess {
		return result, nil
	}

	ast, err := parser.Parse(result.Tokens)
	if err != nil {
		return nil, err
	}
	result.AST = ast

	return result, nil
}
