package compiler

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/neurodesk/tmplc/pkg/common"
	"github.com/neurodesk/tmplc/pkg/ir"
	"github.com/neurodesk/tmplc/pkg/jinja2"
)

// session is the mutable state of one compilation.
type session struct {
	opts     Options
	partials map[string]string
	parsed   map[string]*jinja2.NodeList
	registry *registry
	units    []*ir.FunctionUnit
	loc      *tracker
	log      *slog.Logger
}

func newSession(partials map[string]string, opts Options) *session {
	return &session{
		opts:     opts,
		partials: partials,
		parsed:   map[string]*jinja2.NodeList{},
		registry: newRegistry(opts.RootName, opts.UnitNaming),
		loc:      &tracker{},
		log:      opts.Logger,
	}
}

// lowerCtx is threaded by value through the recursion.
type lowerCtx struct {
	// stack is the include stack; stack[0] is the root file.
	stack []string
}

func newContext(file string) lowerCtx { return lowerCtx{stack: []string{file}} }

func (c lowerCtx) file() string { return c.stack[len(c.stack)-1] }

func (c lowerCtx) push(name string) lowerCtx {
	c.stack = append(c.stack[:len(c.stack):len(c.stack)], name)
	return c
}

var logicalOps = map[jinja2.BinOpKind]string{
	jinja2.OpOr:  "||",
	jinja2.OpAnd: "&&",
}

// Concat and Add share "+", Div and FloorDiv share "/".
var binaryOps = map[jinja2.BinOpKind]string{
	jinja2.OpIn:       "in",
	jinja2.OpIs:       "===",
	jinja2.OpAdd:      "+",
	jinja2.OpConcat:   "+",
	jinja2.OpSub:      "-",
	jinja2.OpMul:      "*",
	jinja2.OpDiv:      "/",
	jinja2.OpFloorDiv: "/",
	jinja2.OpMod:      "%",
	jinja2.OpPow:      "**",
}

// lower dispatches on the AST node kind. Every returned node carries a
// location.
func (s *session) lower(n jinja2.Node, c lowerCtx) (ir.Node, error) {
	out, err := s.lowerNode(n, c)
	if err != nil {
		return nil, err
	}
	return attach(s.loc, out, n, c), nil
}

func (s *session) lowerNode(n jinja2.Node, c lowerCtx) (ir.Node, error) {
	switch t := n.(type) {
	case *jinja2.NodeList:
		return s.lowerNodes(flatten(t.Children), t, c)
	case *jinja2.Output:
		if len(t.Children) == 1 {
			if td, ok := t.Children[0].(*jinja2.TemplateData); ok {
				return ir.Str(td.Value), nil
			}
		}
		return s.lowerNodes(t.Children, t, c)
	case *jinja2.TemplateData:
		return ir.Str(t.Value), nil
	case *jinja2.If:
		return s.lowerConditional(t, t.Cond, listOrNil(t.Body), listOrNil(t.Else), c)
	case *jinja2.InlineIf:
		return s.lowerConditional(t, t.Cond, t.Body, t.Else, c)
	case *jinja2.For:
		return s.lowerFor(t, c)
	case *jinja2.Set:
		return s.lowerSet(t, c)
	case *jinja2.Include:
		return s.lowerInclude(t, c)
	case *jinja2.LookupVal:
		return s.lowerLookup(t, c)
	case *jinja2.Symbol:
		return binding(t, t.Value)
	case *jinja2.Value:
		return binding(t, t.Value)
	case *jinja2.FunCall:
		return s.lowerCall(t, c)
	case *jinja2.Literal:
		lit, err := ir.NewLiteral(t.Value)
		if err != nil {
			return nil, &UnsupportedNodeError{Kind: t.Kind(), Node: t, Reason: err.Error()}
		}
		return lit, nil
	case *jinja2.Compare:
		if len(t.Ops) != 1 {
			ops := make([]string, len(t.Ops))
			for i, op := range t.Ops {
				ops[i] = op.Type
			}
			return nil, &MultipleOperandError{Ops: ops, Pos: t.Pos()}
		}
		left, err := s.lower(t.Expr, c)
		if err != nil {
			return nil, err
		}
		right, err := s.lower(t.Ops[0].Expr, c)
		if err != nil {
			return nil, err
		}
		return &ir.Binary{Op: t.Ops[0].Type, Left: left, Right: right}, nil
	case *jinja2.Not:
		arg, err := s.lower(t.Target, c)
		if err != nil {
			return nil, err
		}
		return &ir.Unary{Op: "!", Arg: arg}, nil
	case *jinja2.Neg:
		arg, err := s.lower(t.Target, c)
		if err != nil {
			return nil, err
		}
		return &ir.Unary{Op: "-", Arg: arg}, nil
	case *jinja2.BinOp:
		return s.lowerBinOp(t, c)
	case *jinja2.Array:
		elems, err := s.lowerAll(t.Children, c)
		if err != nil {
			return nil, err
		}
		return &ir.Array{Elements: elems}, nil
	case *jinja2.Dict:
		return s.lowerDict(t, c)
	case *jinja2.Group:
		switch len(t.Children) {
		case 0:
			return nil, &UnsupportedNodeError{Kind: t.Kind(), Node: t, Reason: "empty group"}
		case 1:
			return s.lower(t.Children[0], c)
		}
		exprs, err := s.lowerAll(t.Children, c)
		if err != nil {
			return nil, err
		}
		return &ir.Sequence{Exprs: exprs}, nil
	case nil:
		return nil, &UnsupportedNodeError{Kind: "nil"}
	default:
		return nil, &UnsupportedNodeError{Kind: n.Kind(), Node: n}
	}
}

func listOrNil(l *jinja2.NodeList) jinja2.Node {
	if l == nil {
		return nil
	}
	return l
}

func (s *session) lowerAll(nodes []jinja2.Node, c lowerCtx) ([]ir.Node, error) {
	out := make([]ir.Node, 0, len(nodes))
	for _, n := range nodes {
		v, err := s.lower(n, c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// lowerConditional lowers If and InlineIf. A missing else yields "".
func (s *session) lowerConditional(at, cond, body, alt jinja2.Node, c lowerCtx) (ir.Node, error) {
	test, err := s.lower(cond, c)
	if err != nil {
		return nil, err
	}
	cons, err := s.lower(body, c)
	if err != nil {
		return nil, err
	}
	var alternate ir.Node
	if alt == nil {
		alternate = attach(s.loc, ir.Str(""), at, c)
	} else if alternate, err = s.lower(alt, c); err != nil {
		return nil, err
	}
	return &ir.Conditional{Test: test, Consequent: cons, Alternate: alternate}, nil
}

// lowerFor produces
//
//	Array.isArray(src) ? src.map((item, index) => body) : ""
//
// With an else clause the guard also requires src.length and the else body
// replaces "".
func (s *session) lowerFor(t *jinja2.For, c lowerCtx) (ir.Node, error) {
	src, err := s.lower(t.Arr, c)
	if err != nil {
		return nil, err
	}
	var (
		param ir.Node
		names []string
	)
	switch name := t.Name.(type) {
	case *jinja2.Symbol:
		id, err := binding(name, name.Value)
		if err != nil {
			return nil, err
		}
		param = attach(s.loc, id, name, c)
		names = append(names, id.Name)
	case *jinja2.Array:
		d := &ir.Destructure{}
		for _, child := range name.Children {
			sym, ok := child.(*jinja2.Symbol)
			if !ok {
				return nil, &UnsupportedNodeError{Kind: child.Kind(), Node: child, Reason: "loop variables must be names"}
			}
			id, err := binding(sym, sym.Value)
			if err != nil {
				return nil, err
			}
			if slices.Contains(names, id.Name) {
				return nil, &UnsupportedNodeError{Kind: sym.Kind(), Node: sym, Reason: fmt.Sprintf("loop variable %q repeated", sym.Value)}
			}
			d.Add(sym.Value, attach(s.loc, id, sym, c))
			names = append(names, id.Name)
		}
		param = d
	default:
		return nil, &UnsupportedNodeError{Kind: t.Name.Kind(), Node: t.Name, Reason: "loop variables must be names"}
	}
	body, err := s.lower(t.Body, c)
	if err != nil {
		return nil, err
	}
	mapped := &ir.Call{
		Callee: &ir.Member{Object: src, Property: ir.Ident("map")},
		Args: []ir.Node{&ir.Lambda{
			Params: []ir.Node{param, ir.Ident(loopCounter(names))},
			Body:   body,
		}},
	}
	var test ir.Node = &ir.Call{
		Callee: &ir.Member{Object: &ir.Identifier{Name: "Array", Builtin: true}, Property: ir.Ident("isArray")},
		Args:   []ir.Node{src},
	}
	var alternate ir.Node = ir.Str("")
	if t.Else != nil {
		test = &ir.Logical{Op: "&&", Left: test, Right: &ir.Member{Object: src, Property: ir.Ident("length")}}
		if alternate, err = s.lower(t.Else, c); err != nil {
			return nil, err
		}
	}
	return &ir.Conditional{Test: test, Consequent: mapped, Alternate: alternate}, nil
}

// loopCounter names the index parameter of a loop body. It is "index"
// unless a loop variable already takes that name.
func loopCounter(names []string) string {
	counter := "index"
	for i := 2; slices.Contains(names, counter); i++ {
		counter = fmt.Sprintf("index_%d", i)
	}
	return counter
}

// binding lowers a template name read or written by generated code.
// Keywords of the target language bind with KeywordSuffix; names already
// spelled that way are rejected so the two never meet.
func binding(n jinja2.Node, name string) (*ir.Identifier, error) {
	if common.TemplateName(name) != name {
		return nil, &UnsupportedNodeError{Kind: n.Kind(), Node: n, Reason: fmt.Sprintf("name %q is reserved for the keyword %q", name, common.TemplateName(name))}
	}
	return ir.Ident(common.BindingName(name)), nil
}

// lowerAssignments returns one Assign per target. Extra targets copy the
// first one so the value is evaluated once.
func (s *session) lowerAssignments(t *jinja2.Set, c lowerCtx) ([]ir.Node, error) {
	var (
		value ir.Node
		err   error
	)
	switch {
	case t.Value != nil:
		value, err = s.lower(t.Value, c)
	case t.Body != nil:
		value, err = s.lower(t.Body, c)
	default:
		return nil, &UnsupportedNodeError{Kind: t.Kind(), Node: t, Reason: "set without a value"}
	}
	if err != nil {
		return nil, err
	}
	out := make([]ir.Node, 0, len(t.Targets))
	for i, target := range t.Targets {
		lhs, err := s.lowerTarget(target, c)
		if err != nil {
			return nil, err
		}
		v := value
		if i > 0 {
			if v, err = s.lowerTarget(t.Targets[0], c); err != nil {
				return nil, err
			}
		}
		out = append(out, attach(s.loc, &ir.Assign{Target: lhs, Value: v}, t, c))
	}
	return out, nil
}

func (s *session) lowerTarget(n jinja2.Node, c lowerCtx) (ir.Node, error) {
	switch n.(type) {
	case *jinja2.Symbol, *jinja2.LookupVal:
		return s.lower(n, c)
	}
	return nil, &UnsupportedNodeError{Kind: n.Kind(), Node: n, Reason: "invalid assignment target"}
}

// lowerSet wraps the assignments in an immediately invoked arrow function so
// they can sit where an expression is expected.
func (s *session) lowerSet(t *jinja2.Set, c lowerCtx) (ir.Node, error) {
	stmts, err := s.lowerAssignments(t, c)
	if err != nil {
		return nil, err
	}
	return &ir.Call{Callee: &ir.Lambda{Block: stmts}}, nil
}

func (s *session) lowerLookup(t *jinja2.LookupVal, c lowerCtx) (ir.Node, error) {
	obj, err := s.lower(t.Target, c)
	if err != nil {
		return nil, err
	}
	if lit, ok := t.Val.(*jinja2.Literal); ok {
		switch v := lit.Value.(type) {
		case int64:
			return &ir.Member{Object: obj, Property: attach(s.loc, ir.Int(v), lit, c), Computed: true}, nil
		case string:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil && strconv.FormatInt(i, 10) == v {
				return &ir.Member{Object: obj, Property: attach(s.loc, ir.Int(i), lit, c), Computed: true}, nil
			}
			if common.IsIdentifier(v) {
				return &ir.Member{Object: obj, Property: attach(s.loc, ir.Ident(v), lit, c)}, nil
			}
		}
	}
	key, err := s.lower(t.Val, c)
	if err != nil {
		return nil, err
	}
	return &ir.Member{Object: obj, Property: key, Computed: true}, nil
}

// lowerCall sends named calls through the filter namespace: `a|f(b)` and
// `f(a, b)` both become `_F.f(a, b)`. Other callees are called directly.
func (s *session) lowerCall(t *jinja2.FunCall, c lowerCtx) (ir.Node, error) {
	args, err := s.lowerAll(t.Args, c)
	if err != nil {
		return nil, err
	}
	var callee ir.Node
	if sym, ok := t.Name.(*jinja2.Symbol); ok {
		callee = ir.Ident(common.FilterNamespace)
		for _, part := range strings.Split(sym.Value, ".") {
			callee = &ir.Member{Object: callee, Property: ir.Ident(part)}
		}
		callee = attach(s.loc, callee, sym, c)
	} else if callee, err = s.lower(t.Name, c); err != nil {
		return nil, err
	}
	return &ir.Call{Callee: callee, Args: args}, nil
}

func (s *session) lowerBinOp(t *jinja2.BinOp, c lowerCtx) (ir.Node, error) {
	left, err := s.lower(t.Left, c)
	if err != nil {
		return nil, err
	}
	right, err := s.lower(t.Right, c)
	if err != nil {
		return nil, err
	}
	if op, ok := logicalOps[t.Op]; ok {
		return &ir.Logical{Op: op, Left: left, Right: right}, nil
	}
	if op, ok := binaryOps[t.Op]; ok {
		return &ir.Binary{Op: op, Left: left, Right: right}, nil
	}
	return nil, &UnsupportedNodeError{Kind: t.Kind(), Node: t, Reason: fmt.Sprintf("operator %s", t.Op)}
}

// lowerDict forces keys into string form.
func (s *session) lowerDict(t *jinja2.Dict, c lowerCtx) (ir.Node, error) {
	obj := &ir.Object{}
	for _, p := range t.Pairs {
		var key string
		switch k := p.Key.(type) {
		case *jinja2.Symbol:
			key = k.Value
		case *jinja2.Literal:
			key = literalKey(k.Value)
		default:
			return nil, &UnsupportedNodeError{Kind: k.Kind(), Node: k, Reason: "object keys must be names or literals"}
		}
		v, err := s.lower(p.Value, c)
		if err != nil {
			return nil, err
		}
		obj.Props = append(obj.Props, ir.Property{Key: key, Value: v})
	}
	return obj, nil
}

// literalKey spells a literal object key the way the target language
// converts it to a property name.
func literalKey(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
