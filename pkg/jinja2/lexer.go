package jinja2

// The lexer scans template source and yields tokens for text and the three
// delimiter forms: variables {{ }}, statements {% %}, and comments {# #}.
// A '-' directly inside a delimiter requests whitespace trimming on that side.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokText
	tokVarStart  // {{ or {{-
	tokVarEnd    // }} or -}}
	tokStmtStart // {% or {%-
	tokStmtEnd   // %} or -%}
	tokCommStart // {# or {#-
	tokCommEnd   // #} or -#}
	tokContent   // content inside a tag (parser requests it)
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokText:
		return "text"
	case tokVarStart:
		return "'{{'"
	case tokVarEnd:
		return "'}}'"
	case tokStmtStart:
		return "'{%'"
	case tokStmtEnd:
		return "'%}'"
	case tokCommStart:
		return "'{#'"
	case tokCommEnd:
		return "'#}'"
	case tokContent:
		return "tag content"
	}
	return "unknown token"
}

type token struct {
	kind tokenKind
	val  string
	pos  int // byte offset in source
	trim bool
}

type lexer struct {
	src []byte
	i   int
	n   int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, n: len(src)}
}

func (l *lexer) hasPrefix(s string) bool {
	if l.i+len(s) > l.n {
		return false
	}
	return string(l.src[l.i:l.i+len(s)]) == s
}

// nextTokenOutside scans in normal text context and emits either a text token
// up to the next opening delimiter, or an opening delimiter token, or EOF.
func (l *lexer) nextTokenOutside() token {
	if l.i >= l.n {
		return token{kind: tokEOF, pos: l.i}
	}
	start := l.i
	for l.i < l.n {
		if l.i+2 <= l.n {
			var kind tokenKind
			switch string(l.src[l.i : l.i+2]) {
			case "{{":
				kind = tokVarStart
			case "{%":
				kind = tokStmtStart
			case "{#":
				kind = tokCommStart
			}
			if kind != tokEOF {
				if l.i > start {
					return token{kind: tokText, val: string(l.src[start:l.i]), pos: start}
				}
				l.i += 2
				trim := false
				if l.i < l.n && l.src[l.i] == '-' {
					l.i++
					trim = true
				}
				return token{kind: kind, pos: start, trim: trim}
			}
		}
		l.i++
	}
	return token{kind: tokText, val: string(l.src[start:l.n]), pos: start}
}

var closers = map[tokenKind]string{
	tokVarEnd:  "}}",
	tokStmtEnd: "%}",
	tokCommEnd: "#}",
}

// nextTokenInside scans inside a tag of the given closing kind, returning
// either a tokContent chunk or the closing token.
func (l *lexer) nextTokenInside(close tokenKind) token {
	if l.i >= l.n {
		return token{kind: tokEOF, pos: l.i}
	}
	delim := closers[close]
	start := l.i
	var quote byte
	for l.i < l.n {
		c := l.src[l.i]
		if quote != 0 {
			if c == '\\' {
				l.i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			l.i++
			continue
		}
		if close != tokCommEnd && (c == '"' || c == '\'') {
			quote = c
			l.i++
			continue
		}
		if c == '-' && l.i+1 < l.n && string(l.src[l.i+1:min(l.i+3, l.n)]) == delim {
			if l.i > start {
				return token{kind: tokContent, val: string(l.src[start:l.i]), pos: start}
			}
			l.i += 3
			return token{kind: close, pos: start, trim: true}
		}
		if l.hasPrefix(delim) {
			if l.i > start {
				return token{kind: tokContent, val: string(l.src[start:l.i]), pos: start}
			}
			l.i += 2
			return token{kind: close, pos: start}
		}
		l.i++
	}
	// Unterminated tag; return remaining content then EOF.
	return token{kind: tokContent, val: string(l.src[start:l.n]), pos: start}
}
