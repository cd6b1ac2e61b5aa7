package jinja2

import (
	"fmt"
	"strconv"
)

// exprParser is a recursive descent parser over the tokens of one tag.
// Operator precedence follows Jinja, lowest first: inline if, or, and,
// not, in, is, comparisons, ~, + -, * / // %, **, unary, filters, postfix.
type exprParser struct {
	toks []exprTok
	i    int
	pos  func(int) Position
}

var compareOps = map[string]bool{
	"==": true, "===": true, "!=": true, "!==": true,
	"<": true, ">": true, "<=": true, ">=": true,
}

func newExprParser(toks []exprTok, end int, pos func(int) Position) *exprParser {
	if len(toks) == 0 || toks[len(toks)-1].kind != etEOF {
		toks = append(toks[:len(toks):len(toks)], exprTok{kind: etEOF, off: end})
	}
	return &exprParser{toks: toks, pos: pos}
}

func (p *exprParser) peek() exprTok { return p.toks[p.i] }

func (p *exprParser) peekN(n int) exprTok {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *exprParser) next() exprTok {
	t := p.toks[p.i]
	if t.kind != etEOF {
		p.i++
	}
	return t
}

func (p *exprParser) accept(kind exprTokKind, val string) bool {
	if p.peek().is(kind, val) {
		p.next()
		return true
	}
	return false
}

func (p *exprParser) expect(kind exprTokKind, val string) (exprTok, error) {
	t := p.next()
	if !t.is(kind, val) {
		return t, p.errorf(t, "expected %q, got %s", val, t.describe())
	}
	return t, nil
}

func (p *exprParser) errorf(t exprTok, format string, args ...any) error {
	return &ParseError{Pos: p.pos(t.off), Msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) at(t exprTok) base { return base{At: p.pos(t.off)} }

// parseAll parses a complete expression and rejects trailing tokens.
func (p *exprParser) parseAll() (Node, error) {
	if p.peek().kind == etEOF {
		return nil, p.errorf(p.peek(), "expected expression")
	}
	n, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != etEOF {
		return nil, p.errorf(t, "unexpected %s", t.describe())
	}
	return n, nil
}

func (p *exprParser) parseExpression() (Node, error) {
	return p.parseInlineIf()
}

func (p *exprParser) parseInlineIf() (Node, error) {
	start := p.peek()
	body, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.accept(etName, "if") {
		return body, nil
	}
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	n := &InlineIf{base: p.at(start), Cond: cond, Body: body}
	if p.accept(etName, "else") {
		if n.Else, err = p.parseOr(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *exprParser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().is(etName, "or") {
		t := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinOp{base: p.at(t), Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().is(etName, "and") {
		t := p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinOp{base: p.at(t), Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) parseNot() (Node, error) {
	if t := p.peek(); t.is(etName, "not") {
		p.next()
		target, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{base: p.at(t), Target: target}, nil
	}
	return p.parseIn()
}

func (p *exprParser) parseIn() (Node, error) {
	left, err := p.parseIs()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		negate := false
		switch {
		case t.is(etName, "not") && p.peekN(1).is(etName, "in"):
			p.next()
			p.next()
			negate = true
		case t.is(etName, "in"):
			p.next()
		default:
			return left, nil
		}
		right, err := p.parseIs()
		if err != nil {
			return nil, err
		}
		left = &BinOp{base: p.at(t), Op: OpIn, Left: left, Right: right}
		if negate {
			left = &Not{base: p.at(t), Target: left}
		}
	}
}

func (p *exprParser) parseIs() (Node, error) {
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if !t.is(etName, "is") {
		return left, nil
	}
	p.next()
	negate := p.accept(etName, "not")
	right, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	var n Node = &BinOp{base: p.at(t), Op: OpIs, Left: left, Right: right}
	if negate {
		n = &Not{base: p.at(t), Target: n}
	}
	return n, nil
}

func (p *exprParser) parseCompare() (Node, error) {
	start := p.peek()
	expr, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	var ops []CompareOperand
	for {
		t := p.peek()
		if t.kind != etOp || !compareOps[t.val] {
			break
		}
		p.next()
		operand, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		ops = append(ops, CompareOperand{Type: t.val, Expr: operand})
	}
	if len(ops) == 0 {
		return expr, nil
	}
	return &Compare{base: p.at(start), Expr: expr, Ops: ops}, nil
}

// binaryLevel parses one left-associative precedence level.
func (p *exprParser) binaryLevel(ops map[string]BinOpKind, operand func() (Node, error)) (Node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		kind, ok := ops[t.val]
		if t.kind != etOp || !ok {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &BinOp{base: p.at(t), Op: kind, Left: left, Right: right}
	}
}

var (
	concatOps = map[string]BinOpKind{"~": OpConcat}
	addOps    = map[string]BinOpKind{"+": OpAdd, "-": OpSub}
	mulOps    = map[string]BinOpKind{"*": OpMul, "/": OpDiv, "//": OpFloorDiv, "%": OpMod}
)

func (p *exprParser) parseConcat() (Node, error) { return p.binaryLevel(concatOps, p.parseAdd) }
func (p *exprParser) parseAdd() (Node, error)    { return p.binaryLevel(addOps, p.parseMul) }
func (p *exprParser) parseMul() (Node, error)    { return p.binaryLevel(mulOps, p.parsePow) }

func (p *exprParser) parsePow() (Node, error) {
	left, err := p.parseUnary(false)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.is(etOp, "**") {
		p.next()
		right, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		return &BinOp{base: p.at(t), Op: OpPow, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *exprParser) parseUnary(noFilters bool) (Node, error) {
	t := p.peek()
	var (
		n   Node
		err error
	)
	switch {
	case t.is(etOp, "-"):
		p.next()
		target, err := p.parseUnary(true)
		if err != nil {
			return nil, err
		}
		n = negate(p.at(t), target)
	case t.is(etOp, "+"):
		p.next()
		if n, err = p.parseUnary(true); err != nil {
			return nil, err
		}
	default:
		if n, err = p.parsePrimary(); err != nil {
			return nil, err
		}
	}
	if noFilters {
		return n, nil
	}
	return p.parseFilters(n)
}

// negate folds a minus sign into numeric literals.
func negate(b base, target Node) Node {
	if lit, ok := target.(*Literal); ok {
		switch v := lit.Value.(type) {
		case int64:
			return &Literal{base: b, Value: -v}
		case float64:
			return &Literal{base: b, Value: -v}
		}
	}
	return &Neg{base: b, Target: target}
}

func (p *exprParser) parsePrimary() (Node, error) {
	t := p.next()
	var n Node
	switch t.kind {
	case etString:
		n = &Literal{base: p.at(t), Value: t.val}
	case etInt:
		v, err := strconv.ParseInt(t.val, 10, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid integer %s: %v", t.val, err)
		}
		n = &Literal{base: p.at(t), Value: v}
	case etFloat:
		v, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %s: %v", t.val, err)
		}
		n = &Literal{base: p.at(t), Value: v}
	case etName:
		switch t.val {
		case "true", "True":
			n = &Literal{base: p.at(t), Value: true}
		case "false", "False":
			n = &Literal{base: p.at(t), Value: false}
		case "none", "None", "null":
			n = &Literal{base: p.at(t), Value: nil}
		default:
			n = &Symbol{base: p.at(t), Value: t.val}
		}
	case etOp:
		switch t.val {
		case "(", "[", "{":
			agg, err := p.parseAggregate(t)
			if err != nil {
				return nil, err
			}
			n = agg
		default:
			return nil, p.errorf(t, "unexpected %s", t.describe())
		}
	default:
		return nil, p.errorf(t, "unexpected %s", t.describe())
	}
	return p.parsePostfix(n)
}

func (p *exprParser) parsePostfix(n Node) (Node, error) {
	for {
		t := p.peek()
		switch {
		case t.is(etOp, "("):
			p.next()
			args, err := p.parseArgs(")")
			if err != nil {
				return nil, err
			}
			n = &FunCall{base: p.at(t), Name: n, Args: args}
		case t.is(etOp, "["):
			p.next()
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(etOp, "]"); err != nil {
				return nil, err
			}
			n = &LookupVal{base: p.at(t), Target: n, Val: val}
		case t.is(etOp, "."):
			p.next()
			key := p.next()
			var val any
			switch key.kind {
			case etName:
				val = key.val
			case etInt:
				i, err := strconv.ParseInt(key.val, 10, 64)
				if err != nil {
					return nil, p.errorf(key, "invalid index %s", key.val)
				}
				val = i
			default:
				return nil, p.errorf(key, "expected attribute name after '.', got %s", key.describe())
			}
			n = &LookupVal{base: p.at(t), Target: n, Val: &Literal{base: p.at(key), Value: val}}
		default:
			return n, nil
		}
	}
}

// parseArgs parses call arguments up to closer. Keyword arguments are
// collected into a trailing Dict, as Jinja does.
func (p *exprParser) parseArgs(closer string) ([]Node, error) {
	var (
		args   []Node
		kwargs *Dict
	)
	for first := true; ; first = false {
		if p.accept(etOp, closer) {
			break
		}
		if !first {
			if _, err := p.expect(etOp, ","); err != nil {
				return nil, err
			}
			if p.accept(etOp, closer) {
				break
			}
		}
		t := p.peek()
		if t.kind == etName && p.peekN(1).is(etOp, "=") {
			p.next()
			p.next()
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if kwargs == nil {
				kwargs = &Dict{base: p.at(t)}
			}
			kwargs.Pairs = append(kwargs.Pairs, Pair{Key: &Symbol{base: p.at(t), Value: t.val}, Value: val})
			continue
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if kwargs != nil {
		args = append(args, kwargs)
	}
	return args, nil
}

func (p *exprParser) parseAggregate(open exprTok) (Node, error) {
	var closer string
	switch open.val {
	case "(":
		closer = ")"
	case "[":
		closer = "]"
	default:
		closer = "}"
	}
	var (
		children []Node
		pairs    []Pair
	)
	for first := true; ; first = false {
		if p.accept(etOp, closer) {
			break
		}
		if !first {
			if _, err := p.expect(etOp, ","); err != nil {
				return nil, err
			}
			if p.accept(etOp, closer) {
				break
			}
		}
		if open.val == "{" {
			key, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(etOp, ":"); err != nil {
				return nil, err
			}
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, Pair{Key: key, Value: val})
			continue
		}
		child, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	switch open.val {
	case "(":
		return &Group{base: p.at(open), Children: children}, nil
	case "[":
		return &Array{base: p.at(open), Children: children}, nil
	}
	return &Dict{base: p.at(open), Pairs: pairs}, nil
}

func (p *exprParser) parseFilters(n Node) (Node, error) {
	for p.peek().is(etOp, "|") {
		p.next()
		name := p.next()
		if name.kind != etName {
			return nil, p.errorf(name, "expected filter name, got %s", name.describe())
		}
		fname := name.val
		for p.peek().is(etOp, ".") && p.peekN(1).kind == etName {
			p.next()
			fname += "." + p.next().val
		}
		call := &FunCall{
			base: p.at(name),
			Name: &Symbol{base: p.at(name), Value: fname},
			Args: []Node{n},
		}
		if p.accept(etOp, "(") {
			args, err := p.parseArgs(")")
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, args...)
		}
		n = call
	}
	return n, nil
}
