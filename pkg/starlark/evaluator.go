// Package starlark runs user supplied Starlark scripts that customise the
// compiler, such as the unit naming hook.
package starlark

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"go.starlark.net/starlark"
	"golang.org/x/text/cases"
)

// Evaluator executes Starlark with a fixed set of builtins. Globals are
// frozen after ExecFile, so functions they define may be called from many
// goroutines; each call runs on its own thread.
type Evaluator struct {
	builtins starlark.StringDict
	globals  starlark.StringDict
}

// NewEvaluator creates an evaluator. extra builtins override the defaults.
func NewEvaluator(extra starlark.StringDict) *Evaluator {
	builtins := CreateBuiltins()
	maps.Copy(builtins, extra)
	return &Evaluator{
		builtins: builtins,
		globals:  make(starlark.StringDict),
	}
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			slog.Info("starlark", "thread", name, "msg", msg)
		},
	}
}

// SetGlobal exposes a Go value to scripts.
func (e *Evaluator) SetGlobal(name string, value any) {
	e.globals[name] = ConvertToStarlark(value)
}

func (e *Evaluator) predeclared() starlark.StringDict {
	out := make(starlark.StringDict, len(e.builtins)+len(e.globals))
	maps.Copy(out, e.builtins)
	maps.Copy(out, e.globals)
	return out
}

// Eval evaluates an expression against the builtins and current globals.
func (e *Evaluator) Eval(expr string) (any, error) {
	val, err := starlark.Eval(newThread("eval"), "<eval>", expr, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark evaluation error: %w", err)
	}
	return ConvertFromStarlark(val), nil
}

// ExecFile executes a script and merges its globals into the evaluator.
// src may be nil to read filename from disk.
func (e *Evaluator) ExecFile(filename string, src any) (starlark.StringDict, error) {
	globals, err := starlark.ExecFile(newThread(filename), filename, src, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark execution error: %w", err)
	}
	maps.Copy(e.globals, globals)
	return globals, nil
}

// ExecString executes a script held in memory.
func (e *Evaluator) ExecString(script string) (starlark.StringDict, error) {
	return e.ExecFile("<script>", script)
}

// GetGlobal returns a global as a Go value.
func (e *Evaluator) GetGlobal(name string) (any, bool) {
	if val, ok := e.globals[name]; ok {
		return ConvertFromStarlark(val), true
	}
	return nil, false
}

// CallString calls the global function name with string arguments and
// requires a string result.
func (e *Evaluator) CallString(name string, args ...string) (string, error) {
	fn, ok := e.globals[name].(starlark.Callable)
	if !ok {
		return "", fmt.Errorf("%s is not a function", name)
	}
	tuple := make(starlark.Tuple, len(args))
	for i, a := range args {
		tuple[i] = starlark.String(a)
	}
	out, err := starlark.Call(newThread(name), fn, tuple, nil)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", name, err)
	}
	s, ok := out.(starlark.String)
	if !ok {
		return "", fmt.Errorf("%s returned %s, want string", name, out.Type())
	}
	return string(s), nil
}

// CreateBuiltins returns the helpers available to every script.
func CreateBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"fold": stringBuiltin("fold", func(s string) string {
			return cases.Fold().String(s)
		}),
		"replace_all": starlark.NewBuiltin("replace_all", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s, old, repl string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 3, &s, &old, &repl); err != nil {
				return nil, err
			}
			return starlark.String(strings.ReplaceAll(s, old, repl)), nil
		}),
	}
}

func stringBuiltin(name string, f func(string) string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var s string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &s); err != nil {
			return nil, err
		}
		return starlark.String(f(s)), nil
	})
}

// NamingFunction is the global a naming script must define.
const NamingFunction = "unit_name"

// LoadNamer executes the naming script at path and returns a unit naming
// strategy backed by its unit_name(name) function. The default strategy is
// exposed to the script as default_name(name) and is used whenever the
// script fails for a particular name.
func LoadNamer(path string, src any, fallback func(string) string) (func(string) string, error) {
	e := NewEvaluator(starlark.StringDict{
		"default_name": stringBuiltin("default_name", fallback),
	})
	if _, err := e.ExecFile(path, src); err != nil {
		return nil, err
	}
	if _, ok := e.globals[NamingFunction].(starlark.Callable); !ok {
		return nil, fmt.Errorf("%s: no %s(name) function defined", path, NamingFunction)
	}
	return func(name string) string {
		out, err := e.CallString(NamingFunction, name)
		if err != nil || out == "" {
			slog.Warn("naming script failed, using default name", "script", path, "partial", name, "error", err)
			return fallback(name)
		}
		return out
	}, nil
}
