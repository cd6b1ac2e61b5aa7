package ir

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Dump renders a program as a YAML document for inspection. Field order
// follows the node definitions.
func Dump(p *Program) ([]byte, error) {
	doc := mapping()
	units := &yaml.Node{Kind: yaml.SequenceNode}
	for _, u := range p.Units {
		units.Content = append(units.Content, toYAML(u))
	}
	if len(units.Content) > 0 {
		add(doc, "units", units)
	}
	if len(p.Imports) > 0 {
		imports := &yaml.Node{Kind: yaml.SequenceNode}
		for _, ref := range p.Imports {
			imports.Content = append(imports.Content, toYAML(ref))
		}
		add(doc, "imports", imports)
	}
	if p.Root != nil {
		add(doc, "root", toYAML(p.Root))
	}
	return yaml.Marshal(doc)
}

func mapping() *yaml.Node { return &yaml.Node{Kind: yaml.MappingNode} }

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func quoted(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v, Style: yaml.DoubleQuotedStyle}
}

func add(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalar(key), value)
}

func list(nodes []Node) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, n := range nodes {
		seq.Content = append(seq.Content, toYAML(n))
	}
	return seq
}

func stringList(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		seq.Content = append(seq.Content, quoted(v))
	}
	return seq
}

func toYAML(n Node) *yaml.Node {
	if n == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	m := mapping()
	switch t := n.(type) {
	case *Literal:
		add(m, "literal", scalar(t.Kind.String()))
		switch v := t.Value.(type) {
		case string:
			add(m, "value", quoted(v))
		case nil:
		default:
			add(m, "value", scalar(fmt.Sprint(v)))
		}
	case *Identifier:
		add(m, "identifier", scalar(t.Name))
		if t.Builtin {
			add(m, "builtin", scalar("true"))
		}
	case *Member:
		add(m, "member", scalar(strconv.FormatBool(t.Computed)))
		add(m, "object", toYAML(t.Object))
		add(m, "property", toYAML(t.Property))
	case *Call:
		add(m, "call", toYAML(t.Callee))
		add(m, "args", list(t.Args))
	case *Unary:
		add(m, "unary", quoted(t.Op))
		add(m, "arg", toYAML(t.Arg))
	case *Binary:
		add(m, "binary", quoted(t.Op))
		add(m, "left", toYAML(t.Left))
		add(m, "right", toYAML(t.Right))
	case *Logical:
		add(m, "logical", quoted(t.Op))
		add(m, "left", toYAML(t.Left))
		add(m, "right", toYAML(t.Right))
	case *Conditional:
		add(m, "test", toYAML(t.Test))
		add(m, "consequent", toYAML(t.Consequent))
		add(m, "alternate", toYAML(t.Alternate))
	case *Array:
		add(m, "array", list(t.Elements))
	case *Object:
		props := mapping()
		for _, p := range t.Props {
			add(props, p.Key, toYAML(p.Value))
		}
		add(m, "object", props)
	case *Sequence:
		add(m, "sequence", list(t.Exprs))
	case *Interpolation:
		add(m, "interpolation", scalar(t.Tag))
		add(m, "runs", stringList(t.Runs))
		add(m, "holes", list(t.Holes))
	case *Assign:
		add(m, "assign", toYAML(t.Target))
		add(m, "value", toYAML(t.Value))
	case *Lambda:
		add(m, "lambda", list(t.Params))
		if t.Body != nil {
			add(m, "body", toYAML(t.Body))
		} else {
			add(m, "block", list(t.Block))
		}
	case *Destructure:
		names := make([]string, len(t.Names))
		for i, id := range t.Names {
			names[i] = id.Name
			if key := t.Key(i); key != id.Name {
				names[i] = key + ": " + id.Name
			}
		}
		add(m, "destructure", stringList(names))
	case *FunctionUnit:
		add(m, "unit", scalar(t.Name))
		if t.Source != "" {
			add(m, "source", quoted(t.Source))
		}
		add(m, "params", list(t.Params))
		if len(t.Locals) > 0 {
			add(m, "locals", stringList(t.Locals))
		}
		if len(t.Statements) > 0 {
			add(m, "statements", list(t.Statements))
		}
		add(m, "body", toYAML(t.Body))
	case *ImportRef:
		add(m, "import", scalar(t.Unit))
		add(m, "from", quoted(t.Source))
	default:
		add(m, "unknown", scalar(fmt.Sprintf("%T", n)))
	}
	if loc := n.Loc(); loc != nil {
		add(m, "at", scalar(loc.String()))
	}
	return m
}
