package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"
)

// stringArgs checks that args are exactly n strings.
func stringArgs(name string, n int, args []object.Object) ([]string, *object.Error) {
	if len(args) != n {
		return nil, object.NewArgsError(name, n, len(args))
	}
	out := make([]string, n)
	for i, a := range args {
		s, ok := a.(*object.String)
		if !ok {
			return nil, object.Errorf("%s: argument %d must be a string, got %s", name, i+1, a.Type())
		}
		out[i] = s.Value()
	}
	return out, nil
}

// makeRegisterExtenderFn creates "register_extender".
//
// register_extender(module, python_source)
func makeRegisterExtenderFn(h Host) *object.Builtin {
	return object.NewBuiltin("register_extender", func(ctx context.Context, args ...object.Object) object.Object {
		a, err := stringArgs("register_extender", 2, args)
		if err != nil {
			return err
		}
		if a[0] == "" {
			return object.Errorf("register_extender: module name is empty")
		}
		h.RegisterModuleExtender(a[0], a[1])
		return object.Nil
	})
}

// makeRegisterCallStubFn creates "register_call_stub".
//
// register_call_stub(qualified_function, python_source)
func makeRegisterCallStubFn(h Host) *object.Builtin {
	return object.NewBuiltin("register_call_stub", func(ctx context.Context, args ...object.Object) object.Object {
		a, err := stringArgs("register_call_stub", 2, args)
		if err != nil {
			return err
		}
		if regErr := h.RegisterCallStub(a[0], a[1]); regErr != nil {
			return object.Errorf("register_call_stub: %v", regErr)
		}
		return object.Nil
	})
}

// makeRegisterSourceFn creates "register_source".
//
// register_source(module, python_source[, is_package])
func makeRegisterSourceFn(h Host) *object.Builtin {
	return object.NewBuiltin("register_source", func(ctx context.Context, args ...object.Object) object.Object {
		pkg := false
		if len(args) == 3 {
			b, ok := args[2].(*object.Bool)
			if !ok {
				return object.Errorf("register_source: is_package must be a bool, got %s", args[2].Type())
			}
			pkg = b.Value()
			args = args[:2]
		}
		a, err := stringArgs("register_source", 2, args)
		if err != nil {
			return err
		}
		h.RegisterSource(a[0], a[1], pkg)
		return object.Nil
	})
}

// logObject backs the scripts' log global: log.Info, log.Warn, log.Error
// and log.Debug.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) { l.logger.Info(msg, slog.String("source", "plugin")) }

func (l *logObject) Warn(msg string) { l.logger.Warn(msg, slog.String("source", "plugin")) }

func (l *logObject) Error(msg string) { l.logger.Error(msg, slog.String("source", "plugin")) }

func (l *logObject) Debug(msg string) { l.logger.Debug(msg, slog.String("source", "plugin")) }
