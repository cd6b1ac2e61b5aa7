package printer

import (
	"encoding/json"
	"strings"

	"github.com/neurodesk/tmplc/pkg/ir"
)

// SourceMap is a version 3 source map.
type SourceMap struct {
	Version  int      `json:"version"`
	File     string   `json:"file,omitempty"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

func (m *SourceMap) JSON() ([]byte, error) {
	return json.Marshal(m)
}

type mapping struct {
	genLine, genCol int
	source          int
	srcLine, srcCol int
}

type mapBuilder struct {
	file     string
	sources  []string
	index    map[string]int
	mappings []mapping
}

func newMapBuilder(file string) *mapBuilder {
	return &mapBuilder{file: file, index: map[string]int{}}
}

func (b *mapBuilder) add(genLine, genCol int, loc *ir.Location) {
	src, ok := b.index[loc.File]
	if !ok {
		src = len(b.sources)
		b.sources = append(b.sources, loc.File)
		b.index[loc.File] = src
	}
	m := mapping{genLine: genLine, genCol: genCol, source: src, srcLine: max(loc.Line-1, 0), srcCol: max(loc.Column-1, 0)}
	// Keep only the first mapping for a generated position.
	if n := len(b.mappings); n > 0 {
		last := b.mappings[n-1]
		if last.genLine == genLine && last.genCol == genCol {
			return
		}
	}
	b.mappings = append(b.mappings, m)
}

// build encodes the mappings. Fields are deltas against the previous
// segment; the generated column resets on every line.
func (b *mapBuilder) build() *SourceMap {
	var (
		sb                        strings.Builder
		line, prevCol             int
		prevSrc, prevLine, prevSC int
	)
	lineStart := true
	for _, m := range b.mappings {
		for line < m.genLine {
			sb.WriteByte(';')
			line++
			prevCol = 0
			lineStart = true
		}
		if !lineStart {
			sb.WriteByte(',')
		}
		lineStart = false
		writeVLQ(&sb, m.genCol-prevCol)
		writeVLQ(&sb, m.source-prevSrc)
		writeVLQ(&sb, m.srcLine-prevLine)
		writeVLQ(&sb, m.srcCol-prevSC)
		prevCol, prevSrc, prevLine, prevSC = m.genCol, m.source, m.srcLine, m.srcCol
	}
	sources := b.sources
	if sources == nil {
		sources = []string{}
	}
	return &SourceMap{Version: 3, File: b.file, Sources: sources, Names: []string{}, Mappings: sb.String()}
}

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// writeVLQ appends v as a base64 variable length quantity with the sign in
// the lowest bit.
func writeVLQ(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & 31
		u >>= 5
		if u > 0 {
			digit |= 32
		}
		sb.WriteByte(base64Digits[digit])
		if u == 0 {
			return
		}
	}
}
