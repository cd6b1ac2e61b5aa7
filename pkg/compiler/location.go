package compiler

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/neurodesk/tmplc/pkg/ir"
	"github.com/neurodesk/tmplc/pkg/jinja2"
)

// tracker numbers locations in the order nodes are attributed.
type tracker struct {
	count int
}

func (t *tracker) next(file string, pos jinja2.Position) *ir.Location {
	idx, err := safecast.Conv[uint32](t.count)
	if err != nil {
		panic(fmt.Errorf("location index overflow: %w", err))
	}
	t.count++
	return &ir.Location{File: file, Line: pos.Line, Column: pos.Col, Index: idx}
}

// attach stamps the position of src, in the file on top of the include
// stack, on n and on every synthesized descendant that has no location yet.
// Descendants that already carry one were attached when they were lowered.
func attach[N ir.Node](t *tracker, n N, src jinja2.Node, c lowerCtx) N {
	var pos jinja2.Position
	if src != nil {
		pos = src.Pos()
	}
	file := c.file()
	ir.Inspect(n, func(m ir.Node) bool {
		if m.Loc() != nil {
			return false
		}
		m.SetLoc(t.next(file, pos))
		return true
	})
	return n
}
