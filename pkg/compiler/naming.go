package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/neurodesk/tmplc/pkg/common"
)

// DefaultUnitName derives a unit identifier from a partial name:
// "Partials/Header-Nav" becomes "partial_partials_header_nav".
func DefaultUnitName(name string) string {
	return common.UnitPrefix + sanitize(cases.Fold().String(norm.NFC.String(name)))
}

// sanitize maps s onto identifier characters, collapsing runs of anything
// else into a single underscore.
func sanitize(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	if unicode.IsDigit([]rune(out)[0]) {
		out = "_" + out
	}
	return out
}

// namer hands out unique unit identifiers. Two partials whose names
// normalize to the same identifier get counter suffixes.
type namer struct {
	naming func(string) string
	taken  map[string]bool
}

func newNamer(naming func(string) string) *namer {
	if naming == nil {
		naming = DefaultUnitName
	}
	return &namer{naming: naming, taken: map[string]bool{}}
}

func (n *namer) reserve(id string) { n.taken[id] = true }

func (n *namer) allocate(name string) string {
	base := sanitize(n.naming(name))
	if common.Keywords[base] || common.Builtins[base] {
		base = "_" + base
	}
	id := base
	for i := 2; n.taken[id]; i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	n.taken[id] = true
	return id
}
