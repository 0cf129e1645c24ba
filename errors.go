package effers

import "github.com/jward/effers/internal/gen"

// Errors reported while generating a file. Match them with errors.Is; a
// malformed directive also unwraps to a *DirectiveError carrying its
// position.
var (
	ErrMalformedDeclaration    = gen.ErrMalformedDeclaration
	ErrUnresolvableDefaultName = gen.ErrUnresolvableDefaultName
	ErrUnsupportedFunc         = gen.ErrUnsupportedFunc
	ErrAmbiguousOperation      = gen.ErrAmbiguousOperation
)

// DirectiveError locates a malformed directive clause.
type DirectiveError = gen.DirectiveError

// Namer chooses the name of a program whose directive has none.
type Namer = gen.Namer

// NamerFunc adapts a function to a Namer.
type NamerFunc = gen.NamerFunc
