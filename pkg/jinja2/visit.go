package jinja2

import (
	"bytes"
	"fmt"
)

type Visitor interface {
	Visit(n Node) error
}

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	switch t := n.(type) {
	case *NodeList:
		return t.Children
	case *Output:
		return t.Children
	case *If:
		return appendNonNil(nil, t.Cond, listOrNil(t.Body), listOrNil(t.Else))
	case *InlineIf:
		return appendNonNil(nil, t.Cond, t.Body, t.Else)
	case *For:
		return appendNonNil(nil, t.Name, t.Arr, listOrNil(t.Body), listOrNil(t.Else))
	case *Set:
		out := append([]Node{}, t.Targets...)
		return appendNonNil(out, t.Value, listOrNil(t.Body))
	case *Include:
		return []Node{t.Template}
	case *LookupVal:
		return []Node{t.Target, t.Val}
	case *FunCall:
		return append([]Node{t.Name}, t.Args...)
	case *Compare:
		out := []Node{t.Expr}
		for _, op := range t.Ops {
			out = append(out, op.Expr)
		}
		return out
	case *Not:
		return []Node{t.Target}
	case *Neg:
		return []Node{t.Target}
	case *BinOp:
		return []Node{t.Left, t.Right}
	case *Array:
		return t.Children
	case *Dict:
		var out []Node
		for _, p := range t.Pairs {
			out = append(out, p.Key, p.Value)
		}
		return out
	case *Group:
		return t.Children
	case *Extends:
		return []Node{t.Template}
	case *Block:
		return appendNonNil(nil, listOrNil(t.Body))
	}
	return nil
}

// listOrNil avoids storing a typed nil *NodeList in a Node interface.
func listOrNil(l *NodeList) Node {
	if l == nil {
		return nil
	}
	return l
}

func appendNonNil(out []Node, nodes ...Node) []Node {
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Walk visits n and then its descendants depth-first.
func Walk(v Visitor, n Node) error {
	if err := v.Visit(n); err != nil {
		return err
	}
	for _, c := range Children(n) {
		if err := Walk(v, c); err != nil {
			return err
		}
	}
	return nil
}

// VisitorFunc adapts a function to a Visitor.
type VisitorFunc func(n Node) error

func (f VisitorFunc) Visit(n Node) error { return f(n) }

// Pretty returns a line-oriented string representation of the AST.
func Pretty(n Node) string {
	var buf bytes.Buffer
	ppNode(&buf, 0, n)
	return buf.String()
}

func ppNode(buf *bytes.Buffer, indent int, n Node) {
	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}
	switch t := n.(type) {
	case *TemplateData:
		fmt.Fprintf(buf, "TemplateData(%q)\n", t.Value)
		return
	case *Symbol:
		fmt.Fprintf(buf, "Symbol(%s)\n", t.Value)
		return
	case *Value:
		fmt.Fprintf(buf, "Value(%s)\n", t.Value)
		return
	case *Literal:
		if s, ok := t.Value.(string); ok {
			fmt.Fprintf(buf, "Literal(%q)\n", s)
		} else {
			fmt.Fprintf(buf, "Literal(%v)\n", t.Value)
		}
		return
	case *BinOp:
		fmt.Fprintf(buf, "BinOp(%s)\n", t.Op)
	case *Compare:
		buf.WriteString("Compare(")
		for i, op := range t.Ops {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(op.Type)
		}
		buf.WriteString(")\n")
	case *Include:
		if t.IgnoreMissing {
			buf.WriteString("Include(ignore missing)\n")
		} else {
			buf.WriteString("Include\n")
		}
	case *Block:
		fmt.Fprintf(buf, "Block(%s)\n", t.Name)
	default:
		buf.WriteString(n.Kind())
		buf.WriteByte('\n')
	}
	for _, c := range Children(n) {
		ppNode(buf, indent+2, c)
	}
}
