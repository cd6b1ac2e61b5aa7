package common

import "strings"

// Names the generated code relies on at runtime. Templates never receive
// them as inputs.
const (
	// HTMLTag tags every interpolation.
	HTMLTag = "html"
	// RepeatHelper is the keyed list helper available to templates.
	RepeatHelper = "repeat"
	// FilterNamespace receives every filter call: `a|f(b)` becomes `_F.f(a, b)`.
	FilterNamespace = "_F"
	// RootUnit is the default name of the generated root function.
	RootUnit = "template"
	// UnitPrefix is prepended to generated partial unit names.
	UnitPrefix = "partial_"
)

// Reserved lists the runtime helper identifiers.
func Reserved() []string {
	return []string{HTMLTag, RepeatHelper, FilterNamespace}
}

// Builtins are globals of the target language referenced by generated code.
var Builtins = map[string]bool{
	"Array":     true,
	"Object":    true,
	"Math":      true,
	"undefined": true,
}

// Keywords cannot be used as bare identifiers in generated code.
var Keywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true, "let": true, "static": true,
	"await": true,
}

// IsIdentifier reports whether s can be written as a bare identifier or a
// static member name.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// KeywordSuffix is appended to template names that are keywords of the
// target language, so `class` binds as `class$`.
const KeywordSuffix = "$"

// BindingName returns the identifier generated code uses for template name n.
func BindingName(n string) string {
	if Keywords[n] {
		return n + KeywordSuffix
	}
	return n
}

// TemplateName inverts BindingName.
func TemplateName(b string) string {
	if n, ok := strings.CutSuffix(b, KeywordSuffix); ok && Keywords[n] {
		return n
	}
	return b
}
