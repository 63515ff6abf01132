// Package cc holds the plumbing shared by every stage of the C front-end:
// the error kinds a translation unit can fail with.
//
// Each stage wraps one of these sentinels with fmt.Errorf and %w, so callers
// can classify a failure with errors.Is without parsing message text.
package cc

import "errors"

var (
	// ErrLexical covers malformed tokens: unterminated literals, unknown
	// escape sequences, bad numeric literals.
	ErrLexical = errors.New("lexical error")

	// ErrPreprocess covers directive-level failures: unresolved includes,
	// unknown directives, mismatched #endif, bad macro argument lists.
	ErrPreprocess = errors.New("preprocess error")

	// ErrType covers type-construction failures: pointer to nothing, length
	// modifier out of range, incomplete type used where a complete one is
	// required, unknown field.
	ErrType = errors.New("type error")

	// ErrParse covers syntactic failures: expected token not found, leftover
	// tokens at the end of a unit, cast to a declaration.
	ErrParse = errors.New("parse error")

	// ErrInternal marks code paths that are not implemented for the given
	// input. C constructs outside the supported subset end up here.
	ErrInternal = errors.New("internal error")
)
