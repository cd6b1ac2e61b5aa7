package jinja2

import (
	"fmt"
	"strings"
)

type exprTokKind int

const (
	etEOF exprTokKind = iota
	etName
	etString
	etInt
	etFloat
	etOp
)

type exprTok struct {
	kind exprTokKind
	val  string
	off  int // byte offset in the template source
}

func (t exprTok) is(kind exprTokKind, val string) bool {
	return t.kind == kind && t.val == val
}

func (t exprTok) describe() string {
	switch t.kind {
	case etEOF:
		return "end of expression"
	case etString:
		return fmt.Sprintf("string %q", t.val)
	}
	return fmt.Sprintf("%q", t.val)
}

// Longest operators first so that "===" wins over "==" and "=".
var exprOperators = []string{
	"===", "!==",
	"**", "//", "==", "!=", "<=", ">=",
	"+", "-", "*", "/", "%", "~", "<", ">", "=",
	"(", ")", "[", "]", "{", "}", ",", ".", ":", "|",
}

func isNameStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// tokenizeExpr splits the content of a tag into expression tokens. base is
// the byte offset of src within the template, used for error positions.
func tokenizeExpr(src string, base int, pos func(int) Position) ([]exprTok, error) {
	var toks []exprTok
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case isSpace(c):
			i++
		case c == '"' || c == '\'':
			start := i
			i++
			var b strings.Builder
			closed := false
			for i < len(src) {
				ch := src[i]
				if ch == '\\' && i+1 < len(src) {
					i++
					switch src[i] {
					case 'n':
						b.WriteByte('\n')
					case 't':
						b.WriteByte('\t')
					case 'r':
						b.WriteByte('\r')
					default:
						b.WriteByte(src[i])
					}
					i++
					continue
				}
				if ch == c {
					closed = true
					i++
					break
				}
				b.WriteByte(ch)
				i++
			}
			if !closed {
				return nil, &ParseError{Pos: pos(base + start), Msg: "unterminated string literal"}
			}
			toks = append(toks, exprTok{kind: etString, val: b.String(), off: base + start})
		case isDigit(c):
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			kind := etInt
			if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
				kind = etFloat
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			toks = append(toks, exprTok{kind: kind, val: src[start:i], off: base + start})
		case isNameStart(c):
			start := i
			for i < len(src) && (isNameStart(src[i]) || isDigit(src[i])) {
				i++
			}
			toks = append(toks, exprTok{kind: etName, val: src[start:i], off: base + start})
		default:
			matched := ""
			for _, op := range exprOperators {
				if strings.HasPrefix(src[i:], op) {
					matched = op
					break
				}
			}
			if matched == "" {
				return nil, &ParseError{Pos: pos(base + i), Msg: fmt.Sprintf("unexpected character %q", c)}
			}
			toks = append(toks, exprTok{kind: etOp, val: matched, off: base + i})
			i += len(matched)
		}
	}
	toks = append(toks, exprTok{kind: etEOF, off: base + len(src)})
	return toks, nil
}
