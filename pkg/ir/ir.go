// Package ir is the code-shaped intermediate representation produced by the
// compiler and consumed by the printer. Node shapes follow JavaScript
// expressions closely enough that printing is a direct traversal.
package ir

import "fmt"

// Location attributes a node to the template source it was lowered from.
type Location struct {
	File   string `yaml:"file"`
	Line   int    `yaml:"line"`
	Column int    `yaml:"column"`
	// Index increases monotonically within one compilation.
	Index uint32 `yaml:"index"`
}

func (l *Location) String() string {
	if l == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

type Node interface {
	Loc() *Location
	SetLoc(l *Location)
	isNode()
}

// Meta carries the location shared by every node kind.
type Meta struct {
	Location *Location
}

func (m *Meta) Loc() *Location     { return m.Location }
func (m *Meta) SetLoc(l *Location) { m.Location = l }

// isNode implements Node.
func (*Meta) isNode() {}

type LiteralKind int

const (
	StringLit LiteralKind = iota
	NumberLit
	BoolLit
	NullLit
)

func (k LiteralKind) String() string {
	switch k {
	case StringLit:
		return "string"
	case NumberLit:
		return "number"
	case BoolLit:
		return "boolean"
	case NullLit:
		return "null"
	}
	return "unknown"
}

// Literal is a string, number (int64 or float64), boolean or null value.
type Literal struct {
	Meta
	Kind  LiteralKind
	Value any
}

func Str(s string) *Literal { return &Literal{Kind: StringLit, Value: s} }
func Int(i int64) *Literal { return &Literal{Kind: NumberLit, Value: i} }
func Float(f float64) *Literal { return &Literal{Kind: NumberLit, Value: f} }
func Bool(b bool) *Literal { return &Literal{Kind: BoolLit, Value: b} }
func Null() *Literal { return &Literal{Kind: NullLit} }

// NewLiteral maps a Go value onto the matching literal kind.
func NewLiteral(v any) (*Literal, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return Str(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		return Float(t), nil
	}
	return nil, fmt.Errorf("unsupported literal value %T", v)
}

// Identifier references a name. Builtin marks globals of the target
// language (such as Array) that are never template inputs.
type Identifier struct {
	Meta
	Name    string
	Builtin bool
}

func Ident(name string) *Identifier { return &Identifier{Name: name} }

// Member is `Object.Property` or, when Computed, `Object[Property]`.
// A non-computed Property is always an *Identifier.
type Member struct {
	Meta
	Object   Node
	Property Node
	Computed bool
}

type Call struct {
	Meta
	Callee Node
	Args   []Node
}

type Unary struct {
	Meta
	Op  string
	Arg Node
}

type Binary struct {
	Meta
	Op    string
	Left  Node
	Right Node
}

// Logical is a short-circuiting `&&` or `||`.
type Logical struct {
	Meta
	Op    string
	Left  Node
	Right Node
}

type Conditional struct {
	Meta
	Test       Node
	Consequent Node
	Alternate  Node
}

type Array struct {
	Meta
	Elements []Node
}

type Property struct {
	Key   string
	Value Node
}

type Object struct {
	Meta
	Props []Property
}

// Sequence evaluates every expression and yields the last.
type Sequence struct {
	Meta
	Exprs []Node
}

// Interpolation is a tagged template: Runs[0] Holes[0] Runs[1] ... Runs[n].
// len(Runs) == len(Holes)+1 always holds.
type Interpolation struct {
	Meta
	Tag   string
	Runs  []string
	Holes []Node
}

// Assign is `Target = Value`; Target is an *Identifier or a *Member.
type Assign struct {
	Meta
	Target Node
	Value  Node
}

// Lambda is an arrow function. Exactly one of Body (expression body) or
// Block (statement body) is set. Params are *Identifier or *Destructure.
type Lambda struct {
	Meta
	Params []Node
	Body   Node
	Block  []Node
}

// Destructure is an object pattern parameter `{a, b}`. Keys, when set,
// holds the property read into each name; an empty key means the property
// has the name's spelling, otherwise the pattern is `{key: name}`.
type Destructure struct {
	Meta
	Names []*Identifier
	Keys  []string
}

// Add appends a binding of property key to id.
func (d *Destructure) Add(key string, id *Identifier) {
	if key != id.Name || d.Keys != nil {
		for len(d.Keys) < len(d.Names) {
			d.Keys = append(d.Keys, "")
		}
		if key == id.Name {
			key = ""
		}
		d.Keys = append(d.Keys, key)
	}
	d.Names = append(d.Names, id)
}

// Key returns the property bound to Names[i].
func (d *Destructure) Key(i int) string {
	if i < len(d.Keys) && d.Keys[i] != "" {
		return d.Keys[i]
	}
	return d.Names[i].Name
}

// FunctionUnit is one generated function: the root template or a partial
// compiled in module mode. Statements run before Body is returned.
type FunctionUnit struct {
	Meta
	Name       string
	Source     string
	Params     []Node
	Locals     []string
	Statements []Node
	Body       Node
	Imports    []*ImportRef
}

// ImportRef records that a unit calls another unit compiled separately.
type ImportRef struct {
	Meta
	Unit   string
	Source string
}

// Program is the output of one compilation. Units holds partial units in
// dependency order, callees before callers; it is empty in inline mode.
type Program struct {
	Root    *FunctionUnit
	Units   []*FunctionUnit
	Imports []*ImportRef
}

// AllUnits returns Units followed by Root.
func (p *Program) AllUnits() []*FunctionUnit {
	out := make([]*FunctionUnit, 0, len(p.Units)+1)
	out = append(out, p.Units...)
	if p.Root != nil {
		out = append(out, p.Root)
	}
	return out
}

var (
	_ Node = &Literal{}
	_ Node = &Identifier{}
	_ Node = &Member{}
	_ Node = &Call{}
	_ Node = &Unary{}
	_ Node = &Binary{}
	_ Node = &Logical{}
	_ Node = &Conditional{}
	_ Node = &Array{}
	_ Node = &Object{}
	_ Node = &Sequence{}
	_ Node = &Interpolation{}
	_ Node = &Assign{}
	_ Node = &Lambda{}
	_ Node = &Destructure{}
	_ Node = &FunctionUnit{}
	_ Node = &ImportRef{}
)
