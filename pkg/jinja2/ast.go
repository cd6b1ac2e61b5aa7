package jinja2

// Position is a 1-based line/column location in template source.
type Position struct {
	Line int
	Col  int
}

// Node is any AST node in a parsed template.
type Node interface {
	// Kind returns the node's type tag, e.g. "Output" or "LookupVal".
	Kind() string
	Pos() Position
	node()
}

type base struct {
	At Position
}

func (b base) Pos() Position { return b.At }
func (base) node()           {}

// NodeList is the root node produced by Parse and the body of every block.
type NodeList struct {
	base
	Children []Node
}

func (*NodeList) Kind() string { return "NodeList" }

// Output wraps what a template writes: either literal TemplateData or a
// {{ expr }} expression.
type Output struct {
	base
	Children []Node
}

func (*Output) Kind() string { return "Output" }

// TemplateData represents literal text between tags.
type TemplateData struct {
	base
	Value string
}

func (*TemplateData) Kind() string { return "TemplateData" }

// If represents an if/elif/else block. elif branches are nested Ifs in Else.
type If struct {
	base
	Cond Node
	Body *NodeList
	Else *NodeList
}

func (*If) Kind() string { return "If" }

// InlineIf represents `body if cond else other` inside an expression.
type InlineIf struct {
	base
	Cond Node
	Body Node
	Else Node
}

func (*InlineIf) Kind() string { return "InlineIf" }

// For represents {% for name in arr %}. Name is a *Symbol or, for
// `k, v in arr`, an *Array of symbols.
type For struct {
	base
	Name Node
	Arr  Node
	Body *NodeList
	Else *NodeList
}

func (*For) Kind() string { return "For" }

// Set represents {% set a, b = value %} or the block form
// {% set a %}body{% endset %}, in which case Value is nil.
type Set struct {
	base
	Targets []Node
	Value   Node
	Body    *NodeList
}

func (*Set) Kind() string { return "Set" }

// Include includes another template.
type Include struct {
	base
	Template      Node
	IgnoreMissing bool
}

func (*Include) Kind() string { return "Include" }

// LookupVal is `target.val` or `target[val]`.
type LookupVal struct {
	base
	Target Node
	Val    Node
}

func (*LookupVal) Kind() string { return "LookupVal" }

// Symbol is a bare name.
type Symbol struct {
	base
	Value string
}

func (*Symbol) Kind() string { return "Symbol" }

// FunCall is a call or a filter application. For `a|f(b)` the parser
// produces FunCall{Name: f, Args: [a, b]}.
type FunCall struct {
	base
	Name Node
	Args []Node
}

func (*FunCall) Kind() string { return "FunCall" }

// Literal holds a string, int64, float64, bool or nil value.
type Literal struct {
	base
	Value any
}

func (*Literal) Kind() string { return "Literal" }

// Value is a named value reference that is not a plain symbol.
type Value struct {
	base
	Value string
}

func (*Value) Kind() string { return "Value" }

// CompareOperand is one `op expr` link of a comparison chain.
type CompareOperand struct {
	Type string
	Expr Node
}

// Compare is `expr op1 e1 op2 e2 ...`.
type Compare struct {
	base
	Expr Node
	Ops  []CompareOperand
}

func (*Compare) Kind() string { return "Compare" }

// Not is logical negation.
type Not struct {
	base
	Target Node
}

func (*Not) Kind() string { return "Not" }

// Neg is unary minus.
type Neg struct {
	base
	Target Node
}

func (*Neg) Kind() string { return "Neg" }

// BinOpKind names a binary operator the way Jinja does.
type BinOpKind string

const (
	OpOr       BinOpKind = "Or"
	OpAnd      BinOpKind = "And"
	OpIn       BinOpKind = "In"
	OpIs       BinOpKind = "Is"
	OpAdd      BinOpKind = "Add"
	OpConcat   BinOpKind = "Concat"
	OpSub      BinOpKind = "Sub"
	OpMul      BinOpKind = "Mul"
	OpDiv      BinOpKind = "Div"
	OpFloorDiv BinOpKind = "FloorDiv"
	OpMod      BinOpKind = "Mod"
	OpPow      BinOpKind = "Pow"
)

// BinOp is a binary operation.
type BinOp struct {
	base
	Op    BinOpKind
	Left  Node
	Right Node
}

func (*BinOp) Kind() string { return "BinOp" }

// Array is `[a, b]`; it is also the target of `for k, v in ...`.
type Array struct {
	base
	Children []Node
}

func (*Array) Kind() string { return "Array" }

// Pair is one key/value entry of a Dict.
type Pair struct {
	Key   Node
	Value Node
}

// Dict is `{k: v}`.
type Dict struct {
	base
	Pairs []Pair
}

func (*Dict) Kind() string { return "Dict" }

// Group is a parenthesized, comma separated expression list.
type Group struct {
	base
	Children []Node
}

func (*Group) Kind() string { return "Group" }

// Extends declares that this template extends a parent template.
type Extends struct {
	base
	Template Node
}

func (*Extends) Kind() string { return "Extends" }

// Block is a named block for template inheritance.
type Block struct {
	base
	Name string
	Body *NodeList
}

func (*Block) Kind() string { return "Block" }

var (
	_ Node = &NodeList{}
	_ Node = &Output{}
	_ Node = &TemplateData{}
	_ Node = &If{}
	_ Node = &InlineIf{}
	_ Node = &For{}
	_ Node = &Set{}
	_ Node = &Include{}
	_ Node = &LookupVal{}
	_ Node = &Symbol{}
	_ Node = &FunCall{}
	_ Node = &Literal{}
	_ Node = &Value{}
	_ Node = &Compare{}
	_ Node = &Not{}
	_ Node = &Neg{}
	_ Node = &BinOp{}
	_ Node = &Array{}
	_ Node = &Dict{}
	_ Node = &Group{}
	_ Node = &Extends{}
	_ Node = &Block{}
)
