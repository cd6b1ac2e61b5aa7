// Package printer serializes IR as JavaScript source, optionally with a
// version 3 source map.
package printer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/neurodesk/tmplc/pkg/common"
	"github.com/neurodesk/tmplc/pkg/ir"
)

type Options struct {
	// Indent is one indentation level. Defaults to two spaces.
	Indent string
	// Export prefixes exported functions with `export`.
	Export bool
	// SourceMap records mappings from generated positions to Locations.
	SourceMap bool
	// File names the generated file in the source map.
	File string
	// Split writes one module per unit in PrintProgram.
	Split bool
}

type Result struct {
	Code      string
	SourceMap *SourceMap
}

// Print renders a single node: a FunctionUnit as a function declaration,
// an ImportRef as an import declaration, anything else as an expression.
func Print(n ir.Node, opts Options) (Result, error) {
	p := newPrinter(opts)
	if err := p.node(n, opts.Export); err != nil {
		return Result{}, err
	}
	return p.result(), nil
}

// JavaScript operator precedence levels.
const (
	precSequence = 1
	precAssign   = 2
	precCond     = 3
	precOr       = 4
	precAnd      = 5
	precEquality = 9
	precRelation = 10
	precAdditive = 12
	precMultiply = 13
	precExponent = 14
	precUnary    = 15
	precCall     = 18
	precPrimary  = 20
)

var binaryPrec = map[string]int{
	"==": precEquality, "!=": precEquality, "===": precEquality, "!==": precEquality,
	"<": precRelation, ">": precRelation, "<=": precRelation, ">=": precRelation,
	"in": precRelation, "instanceof": precRelation,
	"+": precAdditive, "-": precAdditive,
	"*": precMultiply, "/": precMultiply, "%": precMultiply,
	"**": precExponent,
}

type printer struct {
	opts   Options
	buf    strings.Builder
	line   int
	col    int
	indent int
	smap   *mapBuilder
}

func newPrinter(opts Options) *printer {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	p := &printer{opts: opts}
	if opts.SourceMap {
		p.smap = newMapBuilder(opts.File)
	}
	return p
}

func (p *printer) result() Result {
	r := Result{Code: p.buf.String()}
	if p.smap != nil {
		r.SourceMap = p.smap.build()
	}
	return r
}

func (p *printer) write(s string) {
	p.buf.WriteString(s)
	for _, r := range s {
		if r == '\n' {
			p.line++
			p.col = 0
			continue
		}
		p.col += utf16.RuneLen(r)
	}
}

func (p *printer) newline() {
	p.write("\n")
	p.write(strings.Repeat(p.opts.Indent, p.indent))
}

func (p *printer) mark(n ir.Node) {
	if p.smap == nil {
		return
	}
	if loc := n.Loc(); loc != nil {
		p.smap.add(p.line, p.col, loc)
	}
}

func (p *printer) node(n ir.Node, export bool) error {
	switch t := n.(type) {
	case *ir.FunctionUnit:
		return p.function(t, export)
	case *ir.ImportRef:
		p.importDecl(t)
		return nil
	}
	return p.expr(n, precSequence)
}

func (p *printer) importDecl(ref *ir.ImportRef) {
	p.mark(ref)
	p.write(fmt.Sprintf("import { %s } from %s;", ref.Unit, quote("./"+ref.Unit+".js")))
}

func (p *printer) function(u *ir.FunctionUnit, export bool) error {
	p.mark(u)
	if export {
		p.write("export ")
	}
	p.write("function " + u.Name + "(")
	if err := p.params(u.Params); err != nil {
		return err
	}
	p.write(") {")
	p.indent++
	if len(u.Locals) > 0 {
		p.newline()
		p.write("var " + strings.Join(u.Locals, ", ") + ";")
	}
	for _, st := range u.Statements {
		p.newline()
		if err := p.statement(st); err != nil {
			return err
		}
	}
	p.newline()
	p.write("return ")
	if err := p.expr(u.Body, precSequence); err != nil {
		return err
	}
	p.write(";")
	p.indent--
	p.newline()
	p.write("}")
	return nil
}

func (p *printer) statement(n ir.Node) error {
	// An expression statement cannot start with `{`.
	min := precSequence
	if _, ok := n.(*ir.Object); ok {
		min = precPrimary + 1
	}
	if err := p.expr(n, min); err != nil {
		return err
	}
	p.write(";")
	return nil
}

func (p *printer) params(params []ir.Node) error {
	for i, param := range params {
		if i > 0 {
			p.write(", ")
		}
		p.mark(param)
		switch t := param.(type) {
		case *ir.Identifier:
			p.write(t.Name)
		case *ir.Destructure:
			p.destructure(t)
		default:
			return fmt.Errorf("invalid parameter %T", param)
		}
	}
	return nil
}

func (p *printer) destructure(d *ir.Destructure) {
	p.write("{")
	for i, id := range d.Names {
		if i > 0 {
			p.write(", ")
		}
		if key := d.Key(i); key != id.Name {
			p.write(key + ": ")
		}
		p.mark(id)
		p.write(id.Name)
	}
	p.write("}")
}

func precedence(n ir.Node) int {
	switch t := n.(type) {
	case *ir.Sequence:
		return precSequence
	case *ir.Assign, *ir.Lambda:
		return precAssign
	case *ir.Conditional:
		return precCond
	case *ir.Logical:
		if t.Op == "&&" {
			return precAnd
		}
		return precOr
	case *ir.Binary:
		if prec, ok := binaryPrec[t.Op]; ok {
			return prec
		}
		return precRelation
	case *ir.Unary:
		return precUnary
	case *ir.Literal:
		if negative(t) {
			return precUnary
		}
		return precPrimary
	case *ir.Call, *ir.Member, *ir.Interpolation:
		return precCall
	}
	return precPrimary
}

func negative(l *ir.Literal) bool {
	switch v := l.Value.(type) {
	case int64:
		return v < 0
	case float64:
		return v < 0
	}
	return false
}

func (p *printer) expr(n ir.Node, min int) error {
	if n == nil {
		return fmt.Errorf("missing expression")
	}
	paren := precedence(n) < min
	if paren {
		p.write("(")
	}
	p.mark(n)
	if err := p.exprInner(n); err != nil {
		return err
	}
	if paren {
		p.write(")")
	}
	return nil
}

func (p *printer) exprInner(n ir.Node) error {
	switch t := n.(type) {
	case *ir.Literal:
		p.write(literal(t))
	case *ir.Identifier:
		p.write(t.Name)
	case *ir.Member:
		min := precCall
		if lit, ok := t.Object.(*ir.Literal); ok && lit.Kind == ir.NumberLit {
			min = precPrimary + 1
		}
		if err := p.expr(t.Object, min); err != nil {
			return err
		}
		if t.Computed {
			p.write("[")
			if err := p.expr(t.Property, precSequence); err != nil {
				return err
			}
			p.write("]")
			return nil
		}
		id, ok := t.Property.(*ir.Identifier)
		if !ok {
			return fmt.Errorf("static member property must be an identifier, got %T", t.Property)
		}
		p.write(".")
		p.mark(id)
		p.write(id.Name)
	case *ir.Call:
		if err := p.expr(t.Callee, precCall); err != nil {
			return err
		}
		p.write("(")
		if err := p.list(t.Args); err != nil {
			return err
		}
		p.write(")")
	case *ir.Unary:
		p.write(t.Op)
		if startsWithSign(t.Arg) {
			p.write(" ")
		}
		return p.expr(t.Arg, precUnary)
	case *ir.Binary:
		prec := precedence(t)
		left, right := prec, prec+1
		if t.Op == "**" {
			// The base of ** cannot be a bare unary expression.
			left, right = precUnary+1, prec
		}
		if err := p.expr(t.Left, left); err != nil {
			return err
		}
		p.write(" " + t.Op + " ")
		return p.expr(t.Right, right)
	case *ir.Logical:
		prec := precedence(t)
		if err := p.expr(t.Left, prec); err != nil {
			return err
		}
		p.write(" " + t.Op + " ")
		return p.expr(t.Right, prec+1)
	case *ir.Conditional:
		if err := p.expr(t.Test, precOr); err != nil {
			return err
		}
		p.write(" ? ")
		if err := p.expr(t.Consequent, precAssign); err != nil {
			return err
		}
		p.write(" : ")
		return p.expr(t.Alternate, precAssign)
	case *ir.Array:
		p.write("[")
		if err := p.list(t.Elements); err != nil {
			return err
		}
		p.write("]")
	case *ir.Object:
		return p.object(t)
	case *ir.Sequence:
		for i, e := range t.Exprs {
			if i > 0 {
				p.write(", ")
			}
			if err := p.expr(e, precAssign); err != nil {
				return err
			}
		}
	case *ir.Interpolation:
		return p.interpolation(t)
	case *ir.Assign:
		if err := p.expr(t.Target, precCall); err != nil {
			return err
		}
		p.write(" = ")
		return p.expr(t.Value, precAssign)
	case *ir.Lambda:
		return p.lambda(t)
	default:
		return fmt.Errorf("cannot print %T as an expression", n)
	}
	return nil
}

func startsWithSign(n ir.Node) bool {
	switch t := n.(type) {
	case *ir.Unary:
		return t.Op == "-" || t.Op == "+"
	case *ir.Literal:
		return negative(t)
	}
	return false
}

func (p *printer) list(nodes []ir.Node) error {
	for i, n := range nodes {
		if i > 0 {
			p.write(", ")
		}
		if err := p.expr(n, precAssign); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) object(o *ir.Object) error {
	if len(o.Props) == 0 {
		p.write("{}")
		return nil
	}
	p.write("{")
	for i, prop := range o.Props {
		if i > 0 {
			p.write(",")
		}
		p.write(" ")
		if id, ok := prop.Value.(*ir.Identifier); ok && id.Name == prop.Key && common.IsIdentifier(prop.Key) {
			p.mark(id)
			p.write(id.Name)
			continue
		}
		if common.IsIdentifier(prop.Key) {
			p.write(prop.Key)
		} else {
			p.write(quote(prop.Key))
		}
		p.write(": ")
		if err := p.expr(prop.Value, precAssign); err != nil {
			return err
		}
	}
	p.write(" }")
	return nil
}

func (p *printer) interpolation(t *ir.Interpolation) error {
	if len(t.Runs) != len(t.Holes)+1 {
		return fmt.Errorf("interpolation has %d runs for %d holes", len(t.Runs), len(t.Holes))
	}
	p.write(t.Tag + "`")
	for i, run := range t.Runs {
		p.write(escapeTemplate(run))
		if i < len(t.Holes) {
			p.write("${")
			if err := p.expr(t.Holes[i], precSequence); err != nil {
				return err
			}
			p.write("}")
		}
	}
	p.write("`")
	return nil
}

func (p *printer) lambda(l *ir.Lambda) error {
	p.write("(")
	if err := p.params(l.Params); err != nil {
		return err
	}
	p.write(") => ")
	if l.Body != nil {
		min := precAssign
		if _, ok := l.Body.(*ir.Object); ok {
			min = precPrimary + 1
		}
		return p.expr(l.Body, min)
	}
	if len(l.Block) == 0 {
		p.write("{}")
		return nil
	}
	p.write("{ ")
	for _, st := range l.Block {
		if err := p.statement(st); err != nil {
			return err
		}
		p.write(" ")
	}
	p.write("}")
	return nil
}

func literal(l *ir.Literal) string {
	switch v := l.Value.(type) {
	case string:
		return quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	}
	return fmt.Sprint(l.Value)
}

// quote writes a double-quoted JavaScript string literal.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\u2028', '\u2029':
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// escapeTemplate escapes a run for use inside a template literal.
func escapeTemplate(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`", "${", "\\${")
	return r.Replace(s)
}
