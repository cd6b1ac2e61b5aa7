package jinja2

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Parse parses a template string into a NodeList AST.
// It recognizes text, output expressions, comments, whitespace control and
// the block statements if/elif/else/endif, for/else/endfor, set/endset,
// include, raw/endraw, extends and block/endblock.
func Parse(src string) (*NodeList, error) {
	p := newParser(src)
	nodes, end, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	if end != nil {
		return nil, p.errorf(end.pos, "unexpected '%s'", end.name)
	}
	return &NodeList{base: base{At: Position{Line: 1, Col: 1}}, Children: nodes}, nil
}

// ParseExpr parses a standalone expression such as `a.b | upper`.
func ParseExpr(src string) (Node, error) {
	p := newParser(src)
	return p.parseExpr(src, 0)
}

type parser struct {
	l        *lexer
	src      string
	lines    []int // byte offsets of line starts
	trimNext bool
}

// tag is a parsed {% name args %} statement.
type tag struct {
	name    string
	args    string
	argsOff int
	pos     int
}

func newParser(src string) *parser {
	lines := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &parser{l: newLexer([]byte(src)), src: src, lines: lines}
}

func (p *parser) pos(off int) Position {
	i := sort.Search(len(p.lines), func(i int) bool { return p.lines[i] > off }) - 1
	return Position{Line: i + 1, Col: off - p.lines[i] + 1}
}

func (p *parser) at(off int) base { return base{At: p.pos(off)} }

func (p *parser) errorf(off int, format string, args ...any) error {
	return &ParseError{Pos: p.pos(off), Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseExpr(src string, off int) (Node, error) {
	toks, err := tokenizeExpr(src, off, p.pos)
	if err != nil {
		return nil, err
	}
	return newExprParser(toks, off+len(src), p.pos).parseAll()
}

// parseNodes parses until a statement whose name is in until is encountered
// and returns it. If until is empty, parses to EOF.
func (p *parser) parseNodes(until map[string]bool) (nodes []Node, end *tag, err error) {
	for {
		tok := p.l.nextTokenOutside()
		if tok.kind != tokText {
			if tok.trim {
				nodes = trimTrailing(nodes)
			}
			p.trimNext = false
		}
		switch tok.kind {
		case tokEOF:
			return nodes, nil, nil
		case tokText:
			text := tok.val
			if p.trimNext {
				text = strings.TrimLeft(text, " \t\r\n")
				p.trimNext = false
			}
			if text != "" {
				nodes = append(nodes, &Output{
					base:     p.at(tok.pos),
					Children: []Node{&TemplateData{base: p.at(tok.pos), Value: text}},
				})
			}
		case tokVarStart:
			content, off, err := p.readUntil(tokVarEnd, tok.pos)
			if err != nil {
				return nil, nil, err
			}
			expr, err := p.parseExpr(content, off)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, &Output{base: p.at(tok.pos), Children: []Node{expr}})
		case tokCommStart:
			if _, _, err := p.readUntil(tokCommEnd, tok.pos); err != nil {
				return nil, nil, err
			}
		case tokStmtStart:
			t, err := p.readTag(tok.pos)
			if err != nil {
				return nil, nil, err
			}
			if until[t.name] {
				return nodes, t, nil
			}
			n, err := p.parseStatement(t)
			if err != nil {
				return nil, nil, err
			}
			if n != nil {
				nodes = append(nodes, n)
			}
		default:
			return nil, nil, p.errorf(tok.pos, "unexpected %s", tok.kind)
		}
	}
}

func (p *parser) parseStatement(t *tag) (Node, error) {
	switch t.name {
	case "raw", "verbatim":
		return p.parseRaw(t)
	case "if":
		return p.parseIf(t)
	case "for":
		return p.parseFor(t)
	case "set":
		return p.parseSet(t)
	case "include":
		return p.parseInclude(t)
	case "extends":
		tmpl, err := p.parseExpr(t.args, t.argsOff)
		if err != nil {
			return nil, err
		}
		return &Extends{base: p.at(t.pos), Template: tmpl}, nil
	case "block":
		return p.parseBlock(t)
	case "":
		return nil, p.errorf(t.pos, "empty block tag")
	case "elif", "else", "endif", "endfor", "endset", "endblock", "endraw":
		return nil, p.errorf(t.pos, "unexpected '%s'", t.name)
	}
	return nil, p.errorf(t.pos, "unknown block tag: %s", t.name)
}

// readUntil consumes tag content up to the closing delimiter and returns it
// with its source offset. The closing delimiter's trim flag is recorded.
func (p *parser) readUntil(close tokenKind, start int) (string, int, error) {
	var b strings.Builder
	off := -1
	for {
		t := p.l.nextTokenInside(close)
		switch t.kind {
		case tokContent:
			if off < 0 {
				off = t.pos
			}
			b.WriteString(t.val)
		case close:
			if off < 0 {
				off = t.pos
			}
			p.trimNext = t.trim
			return b.String(), off, nil
		case tokEOF:
			return "", 0, p.errorf(start, "unterminated tag, expected %s", close)
		default:
			return "", 0, p.errorf(t.pos, "unexpected %s", t.kind)
		}
	}
}

func (p *parser) readTag(start int) (*tag, error) {
	content, off, err := p.readUntil(tokStmtEnd, start)
	if err != nil {
		return nil, err
	}
	i := 0
	for i < len(content) && isSpace(content[i]) {
		i++
	}
	j := i
	for j < len(content) && !isSpace(content[j]) {
		j++
	}
	return &tag{
		name:    content[i:j],
		args:    content[j:],
		argsOff: off + j,
		pos:     start,
	}, nil
}

func trimTrailing(nodes []Node) []Node {
	if len(nodes) == 0 {
		return nodes
	}
	out, ok := nodes[len(nodes)-1].(*Output)
	if !ok || len(out.Children) != 1 {
		return nodes
	}
	data, ok := out.Children[0].(*TemplateData)
	if !ok {
		return nodes
	}
	text := strings.TrimRight(data.Value, " \t\r\n")
	if text == "" {
		return nodes[:len(nodes)-1]
	}
	trimmed := *data
	trimmed.Value = text
	nodes[len(nodes)-1] = &Output{base: out.base, Children: []Node{&trimmed}}
	return nodes
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

var endRaw = map[string]*regexp.Regexp{
	"raw":      regexp.MustCompile(`\{%-?\s*endraw\s*-?%\}`),
	"verbatim": regexp.MustCompile(`\{%-?\s*endverbatim\s*-?%\}`),
}

// parseRaw copies source verbatim up to the matching end tag.
func (p *parser) parseRaw(t *tag) (Node, error) {
	rest := p.src[p.l.i:]
	loc := endRaw[t.name].FindStringIndex(rest)
	if loc == nil {
		return nil, p.errorf(t.pos, "unterminated %s block, expected {%% end%s %%}", t.name, t.name)
	}
	start := p.l.i
	text := rest[:loc[0]]
	p.l.i += loc[1]
	if text == "" {
		return nil, nil
	}
	return &Output{
		base:     p.at(start),
		Children: []Node{&TemplateData{base: p.at(start), Value: text}},
	}, nil
}

var (
	ifEnds   = map[string]bool{"elif": true, "elseif": true, "else": true, "endif": true}
	forEnds  = map[string]bool{"else": true, "endfor": true}
	endIf    = map[string]bool{"endif": true}
	endFor   = map[string]bool{"endfor": true}
	endSet   = map[string]bool{"endset": true}
	endBlock = map[string]bool{"endblock": true}
)

func (p *parser) body(at int, nodes []Node) *NodeList {
	return &NodeList{base: p.at(at), Children: nodes}
}

// parseIf parses an if statement. An elif chain becomes nested Ifs in Else;
// the innermost one consumes the shared endif.
func (p *parser) parseIf(t *tag) (*If, error) {
	cond, err := p.parseExpr(t.args, t.argsOff)
	if err != nil {
		return nil, err
	}
	n := &If{base: p.at(t.pos), Cond: cond}
	body, end, err := p.parseNodes(ifEnds)
	if err != nil {
		return nil, err
	}
	n.Body = p.body(t.pos, body)
	if end == nil {
		return nil, p.errorf(t.pos, "expected endif")
	}
	switch end.name {
	case "elif", "elseif":
		nested, err := p.parseIf(end)
		if err != nil {
			return nil, err
		}
		n.Else = p.body(end.pos, []Node{nested})
	case "else":
		elseBody, end2, err := p.parseNodes(endIf)
		if err != nil {
			return nil, err
		}
		if end2 == nil {
			return nil, p.errorf(end.pos, "expected endif after else")
		}
		n.Else = p.body(end.pos, elseBody)
	}
	return n, nil
}

// splitTop returns the index of the first token satisfying match at
// bracket depth zero, or -1.
func splitTop(toks []exprTok, match func(exprTok) bool) int {
	depth := 0
	for i, tk := range toks {
		if tk.kind == etOp {
			switch tk.val {
			case "(", "[", "{":
				depth++
				continue
			case ")", "]", "}":
				depth--
				continue
			}
		}
		if depth == 0 && match(tk) {
			return i
		}
	}
	return -1
}

func (p *parser) parseFor(t *tag) (*For, error) {
	toks, err := tokenizeExpr(t.args, t.argsOff, p.pos)
	if err != nil {
		return nil, err
	}
	in := splitTop(toks, func(tk exprTok) bool { return tk.is(etName, "in") })
	if in <= 0 {
		return nil, p.errorf(t.pos, "invalid for statement, expected 'target in iterable'")
	}
	var names []Node
	for i := 0; i < in; i++ {
		tk := toks[i]
		if i%2 == 1 {
			if !tk.is(etOp, ",") {
				return nil, p.errorf(tk.off, "expected ',' in for target, got %s", tk.describe())
			}
			continue
		}
		if tk.kind != etName {
			return nil, p.errorf(tk.off, "invalid for target %s", tk.describe())
		}
		names = append(names, &Symbol{base: p.at(tk.off), Value: tk.val})
	}
	if in%2 == 0 {
		return nil, p.errorf(toks[in].off, "trailing ',' in for target")
	}
	n := &For{base: p.at(t.pos)}
	if len(names) == 1 {
		n.Name = names[0]
	} else {
		n.Name = &Array{base: p.at(toks[0].off), Children: names}
	}
	if n.Arr, err = newExprParser(toks[in+1:], t.argsOff+len(t.args), p.pos).parseAll(); err != nil {
		return nil, err
	}

	body, end, err := p.parseNodes(forEnds)
	if err != nil {
		return nil, err
	}
	n.Body = p.body(t.pos, body)
	if end == nil {
		return nil, p.errorf(t.pos, "expected endfor")
	}
	if end.name == "else" {
		elseBody, end2, err := p.parseNodes(endFor)
		if err != nil {
			return nil, err
		}
		if end2 == nil {
			return nil, p.errorf(end.pos, "expected endfor after else")
		}
		n.Else = p.body(end.pos, elseBody)
	}
	return n, nil
}

func (p *parser) parseSet(t *tag) (*Set, error) {
	toks, err := tokenizeExpr(t.args, t.argsOff, p.pos)
	if err != nil {
		return nil, err
	}
	end := t.argsOff + len(t.args)
	eq := splitTop(toks, func(tk exprTok) bool { return tk.is(etOp, "=") })
	lhs := toks[:len(toks)-1]
	if eq >= 0 {
		lhs = toks[:eq]
	}
	n := &Set{base: p.at(t.pos)}
	if n.Targets, err = p.parseTargets(lhs, t); err != nil {
		return nil, err
	}
	if eq >= 0 {
		if n.Value, err = newExprParser(toks[eq+1:], end, p.pos).parseAll(); err != nil {
			return nil, err
		}
		return n, nil
	}
	body, endTag, err := p.parseNodes(endSet)
	if err != nil {
		return nil, err
	}
	if endTag == nil {
		return nil, p.errorf(t.pos, "expected endset")
	}
	n.Body = p.body(t.pos, body)
	return n, nil
}

// parseTargets parses the comma separated assignment targets of a set.
func (p *parser) parseTargets(toks []exprTok, t *tag) ([]Node, error) {
	if len(toks) == 0 {
		return nil, p.errorf(t.pos, "invalid set statement, expected a target")
	}
	var targets []Node
	for len(toks) > 0 {
		comma := splitTop(toks, func(tk exprTok) bool { return tk.is(etOp, ",") })
		part := toks
		if comma >= 0 {
			part, toks = toks[:comma], toks[comma+1:]
		} else {
			toks = nil
		}
		if len(part) == 0 {
			return nil, p.errorf(t.pos, "invalid set statement, empty target")
		}
		target, err := newExprParser(part, part[len(part)-1].off, p.pos).parseAll()
		if err != nil {
			return nil, err
		}
		switch target.(type) {
		case *Symbol, *LookupVal:
		default:
			return nil, p.errorf(part[0].off, "cannot assign to %s", target.Kind())
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func (p *parser) parseInclude(t *tag) (*Include, error) {
	toks, err := tokenizeExpr(t.args, t.argsOff, p.pos)
	if err != nil {
		return nil, err
	}
	n := &Include{base: p.at(t.pos)}
	// toks always ends with EOF.
	if k := len(toks); k >= 3 && toks[k-3].is(etName, "ignore") && toks[k-2].is(etName, "missing") {
		n.IgnoreMissing = true
		toks = append(toks[:k-3:k-3], toks[k-1])
	}
	if n.Template, err = newExprParser(toks, t.argsOff+len(t.args), p.pos).parseAll(); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) parseBlock(t *tag) (*Block, error) {
	name := strings.TrimSpace(t.args)
	if name == "" {
		return nil, p.errorf(t.pos, "block requires a name")
	}
	body, end, err := p.parseNodes(endBlock)
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, p.errorf(t.pos, "expected endblock for block %q", name)
	}
	if endName := strings.TrimSpace(end.args); endName != "" && endName != name {
		return nil, p.errorf(end.pos, "endblock name %q does not match block name %q", endName, name)
	}
	return &Block{base: p.at(t.pos), Name: name, Body: p.body(t.pos, body)}, nil
}
