package gen

import (
	"fmt"
	"go/token"
	"strings"
)

// Mode is the declared self-access mode of an effect operation. Every
// rewritten call passes the attached handler as the method receiver; the
// mode is kept in the manifest as the declaration's intent.
type Mode int

const (
	// ModeNone marks an operation declared without a receiver.
	ModeNone Mode = iota
	// ModeOwned hands the handler over by value.
	ModeOwned
	// ModeShared hands the handler over for read-only use.
	ModeShared
	// ModeMutable hands the handler over for mutation.
	ModeMutable
)

var modeNames = map[Mode]string{
	ModeNone:    "none",
	ModeOwned:   "owned",
	ModeShared:  "shared",
	ModeMutable: "mutable",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode resolves a mode annotation. Besides the canonical names it
// accepts the receiver spellings self, &self, mut and &mut self.
func ParseMode(s string) (Mode, error) {
	switch strings.Join(strings.Fields(s), " ") {
	case "", "none":
		return ModeNone, nil
	case "owned", "self":
		return ModeOwned, nil
	case "shared", "&self", "& self":
		return ModeShared, nil
	case "mutable", "mut", "&mut self", "& mut self":
		return ModeMutable, nil
	}
	return ModeNone, fmt.Errorf("unknown self-access mode %q", s)
}

// Operation is one operation of an effect interface.
type Operation struct {
	// Name is the interface method name.
	Name string
	// Alias, when set, is the identifier used at call sites instead of Name.
	Alias string
	Mode  Mode
}

// CallName is the identifier a call site uses for this operation.
func (o Operation) CallName() string {
	if o.Alias != "" {
		return o.Alias
	}
	return o.Name
}

// Effect is one declared effect: an interface reference and the operations
// the program calls through it.
type Effect struct {
	// Name is the display name used in layer type names.
	Name string
	// Path is the interface reference split on dots, e.g. [inc Incrementer].
	Path []string
	Ops  []Operation
	// Pos is where the effect clause starts, for diagnostics.
	Pos token.Position
}

// NewEffect validates and normalizes an effect declaration. Name defaults
// to the last path segment.
func NewEffect(path []string, ops []Operation) (Effect, error) {
	if len(path) == 0 {
		return Effect{}, fmt.Errorf("%w: interface reference has no path segments", ErrMalformedDeclaration)
	}
	for _, seg := range path {
		if !token.IsIdentifier(seg) {
			return Effect{}, fmt.Errorf("%w: invalid path segment %q", ErrMalformedDeclaration, seg)
		}
	}
	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		if !token.IsIdentifier(op.Name) {
			return Effect{}, fmt.Errorf("%w: invalid operation name %q", ErrMalformedDeclaration, op.Name)
		}
		if op.Alias != "" && !token.IsIdentifier(op.Alias) {
			return Effect{}, fmt.Errorf("%w: invalid alias %q for %s", ErrMalformedDeclaration, op.Alias, op.Name)
		}
		call := op.CallName()
		if seen[call] {
			return Effect{}, fmt.Errorf("%w: %s declares %q twice", ErrMalformedDeclaration, strings.Join(path, "."), call)
		}
		seen[call] = true
	}
	return Effect{
		Name: path[len(path)-1],
		Path: append([]string(nil), path...),
		Ops:  append([]Operation(nil), ops...),
	}, nil
}

// Interface returns the dotted interface reference.
func (e Effect) Interface() string {
	return strings.Join(e.Path, ".")
}

// Lookup finds an operation by its call name (alias, or canonical name when
// no alias is set).
func (e Effect) Lookup(call string) (Operation, bool) {
	for _, op := range e.Ops {
		if op.CallName() == call {
			return op, true
		}
	}
	return Operation{}, false
}

// Declaration is the parsed content of one //effers:program directive.
type Declaration struct {
	// Program is the explicit program name, empty when defaulted.
	Program string
	Effects []Effect
}
