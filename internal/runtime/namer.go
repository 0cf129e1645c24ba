package runtime

import (
	"context"
	"fmt"
	"go/token"

	"github.com/cespare/xxhash/v2"
	"github.com/risor-io/risor/object"

	"github.com/jward/effers/internal/gen"
)

// ScriptNamer derives default program names with a Risor script. The
// script sees the annotated function's name as func_name and must
// evaluate to a string, for example:
//
//	upper_first(func_name) + "Program"
type ScriptNamer struct {
	rt     *Runtime
	source string
	label  string
}

var (
	_ gen.Namer         = (*ScriptNamer)(nil)
	_ gen.Fingerprinter = (*ScriptNamer)(nil)
)

// NewScriptNamer loads the naming script at path.
func NewScriptNamer(rt *Runtime, path string) (*ScriptNamer, error) {
	src, err := rt.LoadScript(path)
	if err != nil {
		return nil, err
	}
	return &ScriptNamer{rt: rt, source: src, label: path}, nil
}

// NewSourceNamer wraps inline script source.
func NewSourceNamer(rt *Runtime, source string) *ScriptNamer {
	return &ScriptNamer{rt: rt, source: source, label: "<inline>"}
}

// Fingerprint hashes the script source.
func (n *ScriptNamer) Fingerprint() string {
	return fmt.Sprintf("script:%016x", xxhash.Sum64String(n.source))
}

// ProgramName runs the script for funcName.
func (n *ScriptNamer) ProgramName(ctx context.Context, funcName string) (string, error) {
	result, err := n.rt.eval(ctx, n.source, n.label, map[string]any{
		"func_name": object.NewString(funcName),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", gen.ErrUnresolvableDefaultName, funcName, err)
	}
	s, ok := result.(*object.String)
	if !ok {
		return "", fmt.Errorf("%w: %s: naming script returned %s, want string",
			gen.ErrUnresolvableDefaultName, funcName, result.Type())
	}
	name := s.Value()
	if !token.IsIdentifier(name) {
		return "", fmt.Errorf("%w: %s: naming script returned %q",
			gen.ErrUnresolvableDefaultName, funcName, name)
	}
	return name, nil
}
