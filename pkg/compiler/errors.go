package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neurodesk/tmplc/pkg/jinja2"
)

// UnsupportedNodeError reports a template construct with no lowering rule.
type UnsupportedNodeError struct {
	Kind   string
	Node   jinja2.Node
	Reason string
}

func (e *UnsupportedNodeError) Error() string {
	msg := fmt.Sprintf("unsupported node %s", e.Kind)
	if e.Node != nil {
		p := e.Node.Pos()
		msg = fmt.Sprintf("line %d, column %d: %s", p.Line, p.Col, msg)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// MultipleOperandError reports a chained comparison such as `a < b < c`.
type MultipleOperandError struct {
	Ops []string
	Pos jinja2.Position
}

func (e *MultipleOperandError) Error() string {
	return fmt.Sprintf("line %d, column %d: chained comparison %q is not supported, use 'and'",
		e.Pos.Line, e.Pos.Col, strings.Join(e.Ops, " "))
}

// DynamicIncludeError reports an include whose target is not a string literal.
type DynamicIncludeError struct {
	Kind string
	Pos  jinja2.Position
}

func (e *DynamicIncludeError) Error() string {
	return fmt.Sprintf("line %d, column %d: include target must be a string literal, got %s",
		e.Pos.Line, e.Pos.Col, e.Kind)
}

// MissingPartialError reports an include of a partial that was not supplied.
type MissingPartialError struct {
	Name string
	From string
	Pos  jinja2.Position
}

func (e *MissingPartialError) Error() string {
	return fmt.Sprintf("%s:%d:%d: partial not found: %s", e.From, e.Pos.Line, e.Pos.Col, e.Name)
}

// IncludeCycleError reports a partial that transitively includes itself.
// Chain starts at the first file of the cycle and ends with the repeat.
type IncludeCycleError struct {
	Chain []string
}

func (e *IncludeCycleError) Error() string {
	return "include cycle: " + strings.Join(e.Chain, " -> ")
}

// PartialError wraps an error raised while compiling a partial with the
// partial's name.
type PartialError struct {
	Name string
	Err  error
}

func (e *PartialError) Error() string { return fmt.Sprintf("partial %q: %v", e.Name, e.Err) }

func (e *PartialError) Unwrap() error { return e.Err }

// Locate reports the file and position a compile error points at. Errors
// raised inside partials are attributed to the innermost partial.
func Locate(err error, rootFile string) (file string, pos jinja2.Position, ok bool) {
	file = rootFile
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch t := e.(type) {
		case *PartialError:
			file = t.Name
		case *jinja2.ParseError:
			return file, t.Pos, true
		case *UnsupportedNodeError:
			if t.Node != nil {
				return file, t.Node.Pos(), true
			}
		case *MultipleOperandError:
			return file, t.Pos, true
		case *DynamicIncludeError:
			return file, t.Pos, true
		case *MissingPartialError:
			return t.From, t.Pos, true
		}
	}
	return file, jinja2.Position{}, false
}
