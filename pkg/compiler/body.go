package compiler

import (
	"strings"

	"github.com/neurodesk/tmplc/pkg/common"
	"github.com/neurodesk/tmplc/pkg/ir"
	"github.com/neurodesk/tmplc/pkg/jinja2"
	"github.com/neurodesk/tmplc/pkg/scope"
)

// flatten replaces each Output by its children so text and expressions
// form a single run/hole sequence.
func flatten(nodes []jinja2.Node) []jinja2.Node {
	out := make([]jinja2.Node, 0, len(nodes))
	for _, n := range nodes {
		if o, ok := n.(*jinja2.Output); ok {
			out = append(out, o.Children...)
			continue
		}
		out = append(out, n)
	}
	return out
}

// lowerNodes lowers a body. Adjacent text is merged into one run and every
// other node becomes a hole. A body without holes is a plain string and a
// body with a single node is that node.
func (s *session) lowerNodes(nodes []jinja2.Node, at jinja2.Node, c lowerCtx) (ir.Node, error) {
	switch len(nodes) {
	case 0:
		return attach(s.loc, ir.Str(""), at, c), nil
	case 1:
		return s.lower(nodes[0], c)
	}
	var (
		runs  = []string{""}
		holes []ir.Node
	)
	for _, n := range nodes {
		if td, ok := n.(*jinja2.TemplateData); ok {
			runs[len(runs)-1] += td.Value
			continue
		}
		hole, err := s.lower(n, c)
		if err != nil {
			return nil, err
		}
		holes = append(holes, hole)
		runs = append(runs, "")
	}
	if len(holes) == 0 {
		return attach(s.loc, ir.Str(strings.Join(runs, "")), at, c), nil
	}
	return attach(s.loc, &ir.Interpolation{Tag: common.HTMLTag, Runs: runs, Holes: holes}, at, c), nil
}

// lowerUnitBody lowers the top level of a unit. Sets that precede the first
// hole become unit statements; later ones stay inline so evaluation order
// is preserved.
func (s *session) lowerUnitBody(b ir.Builder, tree *jinja2.NodeList, c lowerCtx) (ir.Builder, ir.Node, error) {
	flat := flatten(tree.Children)
	rest := make([]jinja2.Node, 0, len(flat))
	hoisting := true
	for _, n := range flat {
		switch t := n.(type) {
		case *jinja2.Set:
			if hoisting {
				stmts, err := s.lowerAssignments(t, c)
				if err != nil {
					return nil, nil, err
				}
				for _, st := range stmts {
					b = b.AddStatement(st)
				}
				continue
			}
		case *jinja2.TemplateData:
		default:
			hoisting = false
		}
		rest = append(rest, n)
	}
	body, err := s.lowerNodes(rest, tree, c)
	if err != nil {
		return nil, nil, err
	}
	return b, body, nil
}

// compileUnit lowers tree into a FunctionUnit named name and resolves its
// scope: free names become the destructured first parameter, declared
// names become locals.
func (s *session) compileUnit(name string, tree *jinja2.NodeList, c lowerCtx) (*ir.FunctionUnit, error) {
	b, body, err := s.lowerUnitBody(ir.NewUnit(name, c.file()), tree, c)
	if err != nil {
		return nil, err
	}
	b = b.SetBody(body)
	draft, err := b.Build()
	if err != nil {
		return nil, err
	}
	rec := scope.Resolve(draft, s.opts.ReservedIdentifiers...)

	inputs := &ir.Destructure{}
	for _, name := range rec.Free {
		inputs.Add(common.TemplateName(name), ir.Ident(name))
	}
	b = b.SetParams(inputs, ir.Ident(common.FilterNamespace)).SetLocals(rec.Declared...)
	for _, ref := range s.collectImports(draft) {
		b = b.AddImport(ref)
	}
	unit, err := b.Build()
	if err != nil {
		return nil, err
	}
	attach(s.loc, unit, tree, c)
	s.log.Debug("compiled unit",
		"unit", unit.Name,
		"source", unit.Source,
		"inputs", rec.Free,
		"locals", rec.Declared,
		"imports", len(unit.Imports))
	return unit, nil
}

// collectImports finds the calls to other units in u. Unit callees are
// builtin identifiers named after a registered unit.
func (s *session) collectImports(u *ir.FunctionUnit) []*ir.ImportRef {
	var refs []*ir.ImportRef
	ir.Inspect(u, func(n ir.Node) bool {
		id, ok := n.(*ir.Identifier)
		if !ok || !id.Builtin {
			return true
		}
		if e := s.registry.byUnit(id.Name); e != nil {
			refs = append(refs, &ir.ImportRef{Meta: ir.Meta{Location: id.Loc()}, Unit: e.unit, Source: e.name})
		}
		return true
	})
	return refs
}
