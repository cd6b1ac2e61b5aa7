// Package scope partitions the names referenced by a generated unit into
// hoisted locals and free inputs.
package scope

import (
	"slices"

	"github.com/neurodesk/tmplc/pkg/common"
	"github.com/neurodesk/tmplc/pkg/ir"
)

// Record is the result of resolving one unit. Declared and Free are
// disjoint and keep first-occurrence order.
type Record struct {
	Declared []string
	Free     []string
}

// Resolve analyses a unit's statements and body. reserved names are never
// reported as free in addition to the runtime helpers.
func Resolve(unit *ir.FunctionUnit, reserved ...string) Record {
	r := newResolver(reserved)
	for _, st := range unit.Statements {
		r.walk(st)
	}
	if unit.Body != nil {
		r.walk(unit.Body)
	}
	return r.record()
}

// ResolveNode analyses a single expression tree.
func ResolveNode(n ir.Node, reserved ...string) Record {
	r := newResolver(reserved)
	r.walk(n)
	return r.record()
}

type resolver struct {
	reserved map[string]bool
	frames   []map[string]bool
	declared []string
	free     []string
}

func newResolver(reserved []string) *resolver {
	r := &resolver{reserved: map[string]bool{}}
	for _, name := range common.Reserved() {
		r.reserved[name] = true
	}
	for _, name := range reserved {
		r.reserved[common.BindingName(name)] = true
	}
	return r
}

func (r *resolver) bound(name string) bool {
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i][name] {
			return true
		}
	}
	return false
}

func (r *resolver) push(params []ir.Node) {
	frame := map[string]bool{}
	for _, p := range params {
		switch t := p.(type) {
		case *ir.Identifier:
			frame[t.Name] = true
		case *ir.Destructure:
			for _, id := range t.Names {
				frame[id.Name] = true
			}
		}
	}
	r.frames = append(r.frames, frame)
}

func (r *resolver) pop() { r.frames = r.frames[:len(r.frames)-1] }

func (r *resolver) walk(n ir.Node) {
	switch t := n.(type) {
	case nil:
	case *ir.Identifier:
		if t.Builtin || r.reserved[t.Name] || r.bound(t.Name) {
			return
		}
		if !slices.Contains(r.free, t.Name) {
			r.free = append(r.free, t.Name)
		}
	case *ir.Member:
		r.walk(t.Object)
		if t.Computed {
			r.walk(t.Property)
		}
	case *ir.Assign:
		if id, ok := t.Target.(*ir.Identifier); ok {
			if !r.bound(id.Name) && !r.reserved[id.Name] && !slices.Contains(r.declared, id.Name) {
				r.declared = append(r.declared, id.Name)
			}
		} else {
			r.walk(t.Target)
		}
		r.walk(t.Value)
	case *ir.Lambda:
		r.push(t.Params)
		r.walk(t.Body)
		for _, st := range t.Block {
			r.walk(st)
		}
		r.pop()
	case *ir.FunctionUnit:
		r.push(t.Params)
		for _, st := range t.Statements {
			r.walk(st)
		}
		r.walk(t.Body)
		r.pop()
	default:
		for _, c := range ir.Children(n) {
			r.walk(c)
		}
	}
}

func (r *resolver) record() Record {
	rec := Record{Declared: r.declared}
	for _, name := range r.free {
		if !slices.Contains(r.declared, name) {
			rec.Free = append(rec.Free, name)
		}
	}
	return rec
}
