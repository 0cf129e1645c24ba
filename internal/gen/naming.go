package gen

import (
	"context"
	"fmt"
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Namer derives the program name of a function whose directive does not
// name one.
type Namer interface {
	ProgramName(ctx context.Context, funcName string) (string, error)
}

// NamerFunc adapts a function to the Namer interface.
type NamerFunc func(ctx context.Context, funcName string) (string, error)

func (f NamerFunc) ProgramName(ctx context.Context, funcName string) (string, error) {
	return f(ctx, funcName)
}

// Fingerprinter is implemented by namers that can summarize their naming
// rule. Outputs recorded under a different fingerprint are regenerated.
type Fingerprinter interface {
	Fingerprint() string
}

// DefaultNamer upper-cases the first letter of each underscore-separated
// part of the function name: myProgram becomes MyProgram, my_program
// becomes MyProgram.
var DefaultNamer Namer = defaultNamer{}

type defaultNamer struct{}

func (defaultNamer) ProgramName(_ context.Context, funcName string) (string, error) {
	return DefaultProgramName(funcName)
}

func (defaultNamer) Fingerprint() string { return "default" }

// DefaultProgramName implements DefaultNamer.
func DefaultProgramName(funcName string) (string, error) {
	var b strings.Builder
	for _, part := range strings.Split(funcName, "_") {
		b.WriteString(UpperFirst(part))
	}
	name := b.String()
	if !token.IsIdentifier(name) {
		return "", fmt.Errorf("%w: %q", ErrUnresolvableDefaultName, funcName)
	}
	return name, nil
}

// UpperFirst upper-cases the first rune of s.
func UpperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
