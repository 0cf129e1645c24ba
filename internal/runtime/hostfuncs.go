package runtime

import (
	"context"

	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/effers/internal/gen"
)

// makeUpperFirstFn creates the "upper_first" host function.
//
// upper_first(s) → string
func makeUpperFirstFn() *object.Builtin {
	return object.NewBuiltin("upper_first", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("upper_first", 1, len(args))
		}
		s, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("upper_first: argument must be a string, got %s", args[0].Type())
		}
		return object.NewString(gen.UpperFirst(s.Value()))
	})
}

// makeDefaultNameFn creates "default_name", the built-in naming rule, so
// scripts can decorate it instead of reimplementing it.
//
// default_name(func_name) → string
func makeDefaultNameFn() *object.Builtin {
	return object.NewBuiltin("default_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("default_name", 1, len(args))
		}
		s, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("default_name: argument must be a string, got %s", args[0].Type())
		}
		name, err := gen.DefaultProgramName(s.Value())
		if err != nil {
			return object.Errorf("default_name: %v", err)
		}
		return object.NewString(name)
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *zap.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
