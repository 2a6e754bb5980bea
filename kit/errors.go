package kit

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes the compiler can produce.
// Callers match them with errors.Is; every error returned by CompileFile
// and CompileSource wraps exactly one of these.
var (
	// ErrTokenize reports input that cannot be scanned, such as text that
	// is not valid UTF-8.
	ErrTokenize = errors.New("unreadable input")

	// ErrSyntax reports a malformed directive: an unterminated comment or
	// a comment classified as a directive with no keyword inside.
	ErrSyntax = errors.New("malformed directive")

	// ErrCycle reports a file importing itself, directly or through a
	// chain of imports.
	ErrCycle = errors.New("import cycle")

	// ErrUndefinedVar reports a variable used before any assignment.
	ErrUndefinedVar = errors.New("undefined variable")

	// ErrMissingFile reports an import or partial target that cannot be
	// resolved to an existing file.
	ErrMissingFile = errors.New("file not found")

	// ErrIO reports an underlying read failure unrelated to resolution.
	ErrIO = errors.New("read failed")
)

// Error locates a compile failure at a 1-based line of a source file.
// It wraps one of the sentinel errors above, so both errors.Is and
// errors.As work on the result of a compile.
type Error struct {
	Path string
	Line int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// fail anchors err at path:line. Errors already carrying a position
// pass through unchanged so the innermost location wins.
func fail(err error, path string, line int) error {
	var positioned *Error
	if errors.As(err, &positioned) {
		return err
	}
	return &Error{Path: path, Line: line, Err: err}
}
