// Package macro evaluates macro bodies and constant initializers as typed
// integer expressions, resolves references between them, and classifies
// function-like macros.
package macro

import (
	"errors"
	"fmt"

	"github.com/raymyers/ralph-bindgen/pkg/literal"
)

// IntType is a fixed-width integer type.
type IntType struct {
	Width  literal.Width
	Signed bool
}

// GoType names the Go type with the same representation.
func (t IntType) GoType() string { return literal.TypeName(t.Width, t.Signed) }

func (t IntType) String() string { return t.GoType() }

// Common integer types.
var (
	Int32  = IntType{literal.W32, true}
	Uint32 = IntType{literal.W32, false}
	Int64  = IntType{literal.W64, true}
	Uint64 = IntType{literal.W64, false}
)

// UnsupportedError marks a body the evaluator cannot express. Reason is the
// short text reported to the user.
type UnsupportedError struct {
	Reason string
}

func (e *UnsupportedError) Error() string { return e.Reason }

func unsupported(format string, args ...any) error {
	return &UnsupportedError{Reason: fmt.Sprintf(format, args...)}
}

// IsUnsupported reports whether err is, or wraps, an UnsupportedError.
func IsUnsupported(err error) bool {
	var u *UnsupportedError
	return errors.As(err, &u)
}

// errPending signals that a referenced item has not been resolved yet.
var errPending = errors.New("pending reference")

// PendingError names the reference an evaluation is waiting on.
type PendingError struct {
	Name string
}

func (e *PendingError) Error() string { return "waiting on " + e.Name }

func (e *PendingError) Is(target error) bool { return target == errPending }
