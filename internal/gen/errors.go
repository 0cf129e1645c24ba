package gen

import (
	"errors"
	"fmt"
	"go/token"
)

var (
	// ErrMalformedDeclaration reports a directive that does not follow the
	// //effers:program grammar.
	ErrMalformedDeclaration = errors.New("malformed effect declaration")

	// ErrUnresolvableDefaultName reports that no program name could be derived.
	ErrUnresolvableDefaultName = errors.New("unresolvable default program name")

	// ErrUnsupportedFunc reports an annotated function that cannot become a
	// Run method (methods and generic functions).
	ErrUnsupportedFunc = errors.New("unsupported program function")

	// ErrAmbiguousOperation reports a call name exposed by more than one
	// declared effect. Only returned in strict mode.
	ErrAmbiguousOperation = errors.New("ambiguous effect operation")
)

// DirectiveError locates a malformed directive clause.
type DirectiveError struct {
	Pos    token.Position
	Clause string
	Msg    string
}

func (e *DirectiveError) Error() string {
	if e.Clause == "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: %s (in %q)", e.Pos, e.Msg, e.Clause)
}

func (e *DirectiveError) Unwrap() error {
	return ErrMalformedDeclaration
}
