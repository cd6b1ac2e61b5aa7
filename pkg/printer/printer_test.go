package printer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodesk/tmplc/pkg/compiler"
	"github.com/neurodesk/tmplc/pkg/ir"
)

func id(name string) *ir.Identifier { return ir.Ident(name) }

func bin(op string, l, r ir.Node) *ir.Binary { return &ir.Binary{Op: op, Left: l, Right: r} }

func at(n ir.Node, line, col int) ir.Node {
	n.SetLoc(&ir.Location{File: "page.liquid", Line: line, Column: col})
	return n
}

func TestPrintExpressions(t *testing.T) {
	for _, tt := range []struct {
		name string
		node ir.Node
		want string
	}{
		{"left assoc", bin("-", bin("-", id("a"), id("b")), id("c")), "a - b - c"},
		{"right operand", bin("-", id("a"), bin("-", id("b"), id("c"))), "a - (b - c)"},
		{"mul over add", bin("*", bin("+", id("a"), id("b")), id("c")), "(a + b) * c"},
		{"pow right assoc", bin("**", id("a"), bin("**", id("b"), id("c"))), "a ** b ** c"},
		{"pow unary base", bin("**", &ir.Unary{Op: "-", Arg: id("a")}, id("b")), "(-a) ** b"},
		{"in", bin("in", id("a"), id("b")), "a in b"},
		{"and in or", &ir.Logical{Op: "||", Left: &ir.Logical{Op: "&&", Left: id("a"), Right: id("b")}, Right: id("c")}, "a && b || c"},
		{"or in and", &ir.Logical{Op: "&&", Left: &ir.Logical{Op: "||", Left: id("a"), Right: id("b")}, Right: id("c")}, "(a || b) && c"},
		{"nested alternate", &ir.Conditional{Test: id("a"), Consequent: id("b"), Alternate: &ir.Conditional{Test: id("c"), Consequent: id("d"), Alternate: id("e")}}, "a ? b : c ? d : e"},
		{"nested test", &ir.Conditional{Test: &ir.Conditional{Test: id("a"), Consequent: id("b"), Alternate: id("c")}, Consequent: id("d"), Alternate: id("e")}, "(a ? b : c) ? d : e"},
		{"not", &ir.Unary{Op: "!", Arg: bin("==", id("a"), id("b"))}, "!(a == b)"},
		{"double minus", &ir.Unary{Op: "-", Arg: ir.Int(-1)}, "- -1"},
		{"number member", &ir.Member{Object: ir.Int(1), Property: id("toString")}, "(1).toString"},
		{"computed member", &ir.Member{Object: id("a"), Property: ir.Int(0), Computed: true}, "a[0]"},
		{"filter call", &ir.Call{Callee: &ir.Member{Object: id("_F"), Property: id("upper")}, Args: []ir.Node{id("a")}}, "_F.upper(a)"},
		{"sequence arg", &ir.Call{Callee: id("f"), Args: []ir.Node{&ir.Sequence{Exprs: []ir.Node{id("a"), id("b")}}}}, "f((a, b))"},
		{"array", &ir.Array{Elements: []ir.Node{ir.Int(1), ir.Null(), ir.Bool(true), ir.Float(1.5)}}, "[1, null, true, 1.5]"},
		{"object", &ir.Object{Props: []ir.Property{
			{Key: "a", Value: id("a")},
			{Key: "b-c", Value: ir.Int(1)},
			{Key: "b", Value: ir.Str("x")},
		}}, `{ a, "b-c": 1, b: "x" }`},
		{"empty object", &ir.Object{}, "{}"},
		{"string escapes", ir.Str("a\"b\n\u2028"), `"a\"b\n\u2028"`},
		{"object body", &ir.Lambda{Params: []ir.Node{id("x")}, Body: &ir.Object{}}, "(x) => ({})"},
		{"destructure param", &ir.Lambda{Params: []ir.Node{&ir.Destructure{Names: []*ir.Identifier{id("a"), id("b")}}, id("i")}, Body: id("a")}, "({a, b}, i) => a"},
		{"iife", &ir.Call{Callee: &ir.Lambda{Block: []ir.Node{&ir.Assign{Target: id("a"), Value: ir.Int(1)}}}}, "(() => { a = 1; })()"},
		{"interpolation", &ir.Interpolation{Tag: "html", Runs: []string{"a`", "${x}\\"}, Holes: []ir.Node{id("b")}}, "html`a\\`${b}\\${x}\\\\`"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Print(tt.node, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Code)
			assert.Nil(t, res.SourceMap)
		})
	}
}

func TestPrintErrors(t *testing.T) {
	_, err := Print(&ir.Interpolation{Tag: "html", Runs: []string{"a"}, Holes: []ir.Node{id("b")}}, Options{})
	assert.ErrorContains(t, err, "1 runs for 1 holes")

	_, err = Print(&ir.Member{Object: id("a"), Property: ir.Str("b")}, Options{})
	assert.ErrorContains(t, err, "static member property")

	_, err = Print(&ir.Binary{Op: "+", Left: id("a")}, Options{})
	assert.ErrorContains(t, err, "missing expression")
}

func TestPrintFunction(t *testing.T) {
	u := &ir.FunctionUnit{
		Name:   "template",
		Params: []ir.Node{&ir.Destructure{Names: []*ir.Identifier{id("a"), id("b")}}, id("_F")},
		Locals: []string{"x"},
		Statements: []ir.Node{
			&ir.Assign{Target: id("x"), Value: ir.Int(1)},
		},
		Body: &ir.Interpolation{Tag: "html", Runs: []string{"", " ", ""}, Holes: []ir.Node{id("x"), id("a")}},
	}
	res, err := Print(u, Options{Export: true})
	require.NoError(t, err)
	assert.Equal(t, "export function template({a, b}, _F) {\n  var x;\n  x = 1;\n  return html`${x} ${a}`;\n}", res.Code)

	res, err = Print(u, Options{Indent: "\t"})
	require.NoError(t, err)
	assert.Equal(t, "function template({a, b}, _F) {\n\tvar x;\n\tx = 1;\n\treturn html`${x} ${a}`;\n}", res.Code)
}

func TestPrintDestructureKeys(t *testing.T) {
	d := &ir.Destructure{}
	d.Add("a", id("a"))
	d.Add("class", id("class$"))
	d.Add("b", id("b"))
	assert.Equal(t, []string{"", "class", ""}, d.Keys)
	assert.Equal(t, "b", d.Key(2))

	u := &ir.FunctionUnit{Name: "template", Params: []ir.Node{d, id("_F")}, Body: id("class$")}
	res, err := Print(u, Options{})
	require.NoError(t, err)
	assert.Equal(t, "function template({a, class: class$, b}, _F) {\n  return class$;\n}", res.Code)

	prog, err := compiler.Compile("{{ class }}", nil, compiler.Options{})
	require.NoError(t, err)
	res, err = Print(prog.Root, Options{})
	require.NoError(t, err)
	assert.Equal(t, "function template({class: class$}, _F) {\n  return class$;\n}", res.Code)
}

func TestPrintCompiledFilter(t *testing.T) {
	prog, err := compiler.Compile("{{ a | filterThis(1) }}", nil, compiler.Options{})
	require.NoError(t, err)
	res, err := Print(prog.Root, Options{})
	require.NoError(t, err)
	assert.Equal(t, "function template({a}, _F) {\n  return _F.filterThis(a, 1);\n}", res.Code)
}

func programWithPartial() *ir.Program {
	card := &ir.FunctionUnit{
		Name:   "partial_card",
		Source: "card",
		Params: []ir.Node{&ir.Destructure{Names: []*ir.Identifier{id("title")}}, id("_F")},
		Body:   id("title"),
	}
	ref := &ir.ImportRef{Unit: "partial_card", Source: "card"}
	root := &ir.FunctionUnit{
		Name:   "template",
		Params: []ir.Node{&ir.Destructure{Names: []*ir.Identifier{id("item")}}, id("_F")},
		Body: &ir.Call{
			Callee: &ir.Identifier{Name: "partial_card", Builtin: true},
			Args: []ir.Node{
				&ir.Object{Props: []ir.Property{{Key: "title", Value: &ir.Member{Object: id("item"), Property: id("title")}}}},
				id("_F"),
			},
		},
		Imports: []*ir.ImportRef{ref},
	}
	return &ir.Program{Root: root, Units: []*ir.FunctionUnit{card}, Imports: []*ir.ImportRef{ref}}
}

func TestPrintProgramBundle(t *testing.T) {
	files, err := PrintProgram(programWithPartial(), Options{Export: true})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "template.js", files[0].Name)
	assert.Equal(t, "function partial_card({title}, _F) {\n  return title;\n}\n\n"+
		"export function template({item}, _F) {\n  return partial_card({ title: item.title }, _F);\n}\n", files[0].Code)
}

func TestPrintProgramSplit(t *testing.T) {
	files, err := PrintProgram(programWithPartial(), Options{Split: true, File: "page.js"})
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "partial_card.js", files[0].Name)
	assert.Equal(t, "export function partial_card({title}, _F) {\n  return title;\n}\n", files[0].Code)

	assert.Equal(t, "page.js", files[1].Name)
	assert.Equal(t, "import { partial_card } from \"./partial_card.js\";\n\n"+
		"export function template({item}, _F) {\n  return partial_card({ title: item.title }, _F);\n}\n", files[1].Code)
}

func TestPrintProgramNoRoot(t *testing.T) {
	_, err := PrintProgram(&ir.Program{}, Options{})
	assert.Error(t, err)
}

func TestSourceMapSegments(t *testing.T) {
	n := at(bin("+", at(id("a"), 1, 4), at(id("b"), 2, 1)), 1, 1)
	res, err := Print(n, Options{SourceMap: true, File: "out.js"})
	require.NoError(t, err)
	require.NotNil(t, res.SourceMap)

	sm := res.SourceMap
	assert.Equal(t, 3, sm.Version)
	assert.Equal(t, "out.js", sm.File)
	assert.Equal(t, []string{"page.liquid"}, sm.Sources)
	// The binary and `a` share column 0; only the first is kept.
	assert.Equal(t, "AAAA,IACA", sm.Mappings)

	data, err := sm.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version":3`)
	assert.Contains(t, string(data), `"names":[]`)
}

func TestSourceMapLines(t *testing.T) {
	u := at(&ir.FunctionUnit{
		Name:   "t",
		Params: []ir.Node{id("_F")},
		Body:   at(id("a"), 2, 3),
	}, 1, 1)
	res, err := Print(u, Options{SourceMap: true})
	require.NoError(t, err)
	assert.Equal(t, "function t(_F) {\n  return a;\n}", res.Code)
	assert.Equal(t, "AAAA;SACE", res.SourceMap.Mappings)

	segs, err := decodeMappings(res.SourceMap.Mappings)
	require.NoError(t, err)
	assert.Equal(t, [][][]int{{{0, 0, 0, 0}}, {{9, 0, 1, 2}}}, segs)
}

func TestSourceMapUTF16Columns(t *testing.T) {
	n := bin("+", ir.Str("😀"), at(id("b"), 1, 1))
	res, err := Print(n, Options{SourceMap: true})
	require.NoError(t, err)
	// `"😀" + ` is seven UTF-16 code units wide.
	assert.Equal(t, "OAAA", res.SourceMap.Mappings)
}

func TestSourceMapProgramSplit(t *testing.T) {
	prog := programWithPartial()
	at(prog.Root.Body, 3, 2)
	prog.Units[0].Body.SetLoc(&ir.Location{File: "card", Line: 1, Column: 4})
	files, err := PrintProgram(prog, Options{Split: true, SourceMap: true})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, []string{"card"}, files[0].SourceMap.Sources)
	assert.Equal(t, "partial_card.js", files[0].SourceMap.File)
	assert.Equal(t, []string{"page.liquid"}, files[1].SourceMap.Sources)
	assert.Equal(t, "template.js", files[1].SourceMap.File)
}

func TestVLQRoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, -1, 15, 16, -16, 31, 32, 1000, -123456, 1 << 20} {
		var sb strings.Builder
		writeVLQ(&sb, v)
		got, rest, err := decodeVLQ(sb.String())
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
		assert.Empty(t, rest)
	}
}

func decodeVLQ(s string) (int, string, error) {
	var v, shift int
	for i := 0; i < len(s); i++ {
		digit := strings.IndexByte(base64Digits, s[i])
		if digit < 0 {
			return 0, "", fmt.Errorf("invalid base64 digit %q", s[i])
		}
		v |= (digit & 31) << shift
		shift += 5
		if digit&32 == 0 {
			if v&1 == 1 {
				return -(v >> 1), s[i+1:], nil
			}
			return v >> 1, s[i+1:], nil
		}
	}
	return 0, "", fmt.Errorf("truncated VLQ")
}

// decodeMappings returns the absolute fields of every segment, per line.
func decodeMappings(m string) ([][][]int, error) {
	var (
		out  [][][]int
		prev [4]int
	)
	for _, line := range strings.Split(m, ";") {
		prev[0] = 0
		var segs [][]int
		for _, seg := range strings.Split(line, ",") {
			if seg == "" {
				continue
			}
			var fields []int
			for i := 0; seg != ""; i++ {
				v, rest, err := decodeVLQ(seg)
				if err != nil {
					return nil, err
				}
				prev[i] += v
				fields = append(fields, prev[i])
				seg = rest
			}
			segs = append(segs, fields)
		}
		out = append(out, segs)
	}
	return out, nil
}
