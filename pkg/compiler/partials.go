package compiler

import (
	"slices"

	"github.com/neurodesk/tmplc/pkg/common"
	"github.com/neurodesk/tmplc/pkg/ir"
	"github.com/neurodesk/tmplc/pkg/jinja2"
)

type entryState int

const (
	stateLowering entryState = iota
	stateDone
)

// entry is one partial known to the registry.
type entry struct {
	name  string
	unit  string
	state entryState
	refs  int
	fn    *ir.FunctionUnit
}

// registry maps partial names to generated units for one compilation.
type registry struct {
	entries map[string]*entry
	units   map[string]*entry
	namer   *namer
}

func newRegistry(rootName string, naming func(string) string) *registry {
	r := &registry{
		entries: map[string]*entry{},
		units:   map[string]*entry{},
		namer:   newNamer(naming),
	}
	r.namer.reserve(rootName)
	for _, id := range common.Reserved() {
		r.namer.reserve(id)
	}
	return r
}

func (r *registry) lookup(name string) *entry { return r.entries[name] }

func (r *registry) byUnit(unit string) *entry { return r.units[unit] }

// register allocates a unit identifier for name. It must be called before
// the partial is lowered so re-entrant includes are detected.
func (r *registry) register(name string) *entry {
	e := &entry{name: name, unit: r.namer.allocate(name), state: stateLowering}
	r.entries[name] = e
	r.units[e.unit] = e
	return e
}

// parsePartial parses a partial once per session.
func (s *session) parsePartial(name, src string) (*jinja2.NodeList, error) {
	if tree, ok := s.parsed[name]; ok {
		return tree, nil
	}
	tree, err := s.opts.Parser.Parse(src)
	if err != nil {
		return nil, &PartialError{Name: name, Err: err}
	}
	s.parsed[name] = tree
	return tree, nil
}

func (s *session) lowerInclude(t *jinja2.Include, c lowerCtx) (ir.Node, error) {
	lit, ok := t.Template.(*jinja2.Literal)
	if !ok {
		return nil, &DynamicIncludeError{Kind: t.Template.Kind(), Pos: t.Template.Pos()}
	}
	name, ok := lit.Value.(string)
	if !ok {
		return nil, &DynamicIncludeError{Kind: "non-string literal", Pos: t.Template.Pos()}
	}
	src, ok := s.partials[name]
	if !ok {
		if t.IgnoreMissing {
			s.log.Debug("ignoring missing partial", "partial", name, "from", c.file())
			return ir.Null(), nil
		}
		return nil, &MissingPartialError{Name: name, From: c.file(), Pos: t.Pos()}
	}
	if slices.Contains(c.stack[1:], name) {
		return nil, &IncludeCycleError{Chain: cycle(c.stack, name)}
	}
	if !s.opts.ModuleMode {
		return s.inlinePartial(name, src, c)
	}
	return s.referencePartial(name, src, c)
}

// cycle returns the include chain from the first occurrence of name.
func cycle(stack []string, name string) []string {
	i := slices.Index(stack, name)
	if i < 0 {
		i = 0
	}
	return append(slices.Clone(stack[i:]), name)
}

// inlinePartial lowers the partial at the include site. Every include
// produces an independent subtree.
func (s *session) inlinePartial(name, src string, c lowerCtx) (ir.Node, error) {
	tree, err := s.parsePartial(name, src)
	if err != nil {
		return nil, err
	}
	out, err := s.lower(tree, c.push(name))
	if err != nil {
		return nil, wrapPartial(name, err)
	}
	return out, nil
}

// referencePartial compiles the partial into its own unit on first use and
// returns a call to it.
func (s *session) referencePartial(name, src string, c lowerCtx) (ir.Node, error) {
	e := s.registry.lookup(name)
	switch {
	case e == nil:
		tree, err := s.parsePartial(name, src)
		if err != nil {
			return nil, err
		}
		e = s.registry.register(name)
		s.log.Debug("registered partial", "partial", name, "unit", e.unit)
		fn, err := s.compileUnit(e.unit, tree, c.push(name))
		if err != nil {
			return nil, wrapPartial(name, err)
		}
		e.fn = fn
		e.state = stateDone
		s.units = append(s.units, fn)
	case e.state == stateLowering:
		return nil, &IncludeCycleError{Chain: cycle(c.stack, name)}
	}
	e.refs++
	if e.refs > 1 {
		s.log.Debug("partial cache hit", "partial", name, "unit", e.unit, "refs", e.refs)
	}
	return s.reference(e), nil
}

// reference builds `unit({inputs...}, _F)`. Inputs are passed by name, so
// the caller's scope resolution picks them up as its own references.
func (s *session) reference(e *entry) ir.Node {
	inputs := &ir.Object{}
	for _, p := range e.fn.Params {
		d, ok := p.(*ir.Destructure)
		if !ok {
			continue
		}
		for i, id := range d.Names {
			inputs.Props = append(inputs.Props, ir.Property{Key: d.Key(i), Value: ir.Ident(id.Name)})
		}
	}
	return &ir.Call{
		Callee: &ir.Identifier{Name: e.unit, Builtin: true},
		Args:   []ir.Node{inputs, ir.Ident(common.FilterNamespace)},
	}
}

// wrapPartial names the partial an error came from, once. Cycle errors
// already carry the chain.
func wrapPartial(name string, err error) error {
	if pe, ok := err.(*PartialError); ok && pe.Name == name {
		return err
	}
	if _, ok := err.(*IncludeCycleError); ok {
		return err
	}
	return &PartialError{Name: name, Err: err}
}
