package ir

// Children returns the direct children of n in evaluation order. The
// static property of a non-computed Member is included; callers that only
// care about references must skip it.
func Children(n Node) []Node {
	switch t := n.(type) {
	case *Member:
		return []Node{t.Object, t.Property}
	case *Call:
		return append([]Node{t.Callee}, t.Args...)
	case *Unary:
		return []Node{t.Arg}
	case *Binary:
		return []Node{t.Left, t.Right}
	case *Logical:
		return []Node{t.Left, t.Right}
	case *Conditional:
		return []Node{t.Test, t.Consequent, t.Alternate}
	case *Array:
		return t.Elements
	case *Object:
		out := make([]Node, 0, len(t.Props))
		for _, p := range t.Props {
			out = append(out, p.Value)
		}
		return out
	case *Sequence:
		return t.Exprs
	case *Interpolation:
		return t.Holes
	case *Assign:
		return []Node{t.Target, t.Value}
	case *Lambda:
		out := append([]Node{}, t.Params...)
		if t.Body != nil {
			out = append(out, t.Body)
		}
		return append(out, t.Block...)
	case *Destructure:
		out := make([]Node, len(t.Names))
		for i, id := range t.Names {
			out[i] = id
		}
		return out
	case *FunctionUnit:
		out := append([]Node{}, t.Params...)
		out = append(out, t.Statements...)
		if t.Body != nil {
			out = append(out, t.Body)
		}
		return out
	}
	return nil
}

// Inspect traverses n depth-first, calling f for each node. If f returns
// false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// Count returns the number of nodes in the tree rooted at n.
func Count(n Node) int {
	count := 0
	Inspect(n, func(Node) bool {
		count++
		return true
	})
	return count
}
