// Package compiler lowers parsed templates into the code-shaped IR of
// package ir. One Compile call is one session: it owns the partial
// registry, the include stack and the location counter.
package compiler

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/neurodesk/tmplc/pkg/common"
	"github.com/neurodesk/tmplc/pkg/ir"
	"github.com/neurodesk/tmplc/pkg/jinja2"
)

// Parser turns template source into an AST.
type Parser interface {
	Parse(src string) (*jinja2.NodeList, error)
}

// ParserFunc adapts a function to a Parser.
type ParserFunc func(src string) (*jinja2.NodeList, error)

func (f ParserFunc) Parse(src string) (*jinja2.NodeList, error) { return f(src) }

type Options struct {
	// ModuleMode compiles every distinct partial once into its own unit and
	// calls it from each include site. Otherwise partials are inlined.
	ModuleMode bool
	// ReservedIdentifiers are never requested as template inputs.
	ReservedIdentifiers []string
	// UnitNaming maps a partial name to a unit identifier. The result is
	// sanitized and de-duplicated. Defaults to DefaultUnitName.
	UnitNaming func(name string) string
	// RootName names the root function. Defaults to "template".
	RootName string
	// FileName attributes root template locations. Defaults to RootName.
	FileName string
	// Parser defaults to jinja2.Parse.
	Parser Parser
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RootName == "" {
		o.RootName = common.RootUnit
	}
	if o.FileName == "" {
		o.FileName = o.RootName
	}
	if o.UnitNaming == nil {
		o.UnitNaming = DefaultUnitName
	}
	if o.Parser == nil {
		o.Parser = ParserFunc(jinja2.Parse)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Compile compiles one root template against a partial name -> source map.
func Compile(source string, partials map[string]string, opts Options) (*ir.Program, error) {
	s := newSession(partials, opts.withDefaults())
	return s.run(source)
}

// Compiler holds options and partials shared by many compilations. It is
// safe for concurrent use; each call runs an independent session.
type Compiler struct {
	opts     Options
	partials map[string]string
}

func New(partials map[string]string, opts Options) *Compiler {
	return &Compiler{opts: opts.withDefaults(), partials: maps.Clone(partials)}
}

// Compile compiles source, attributing locations to fileName.
func (c *Compiler) Compile(fileName, source string) (*ir.Program, error) {
	opts := c.opts
	if fileName != "" {
		opts.FileName = fileName
	}
	s := newSession(c.partials, opts)
	return s.run(source)
}

// Partials returns the names of the partials available to includes.
func (c *Compiler) Partials() []string {
	return slices.Sorted(maps.Keys(c.partials))
}

func (s *session) run(source string) (*ir.Program, error) {
	tree, err := s.opts.Parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.opts.FileName, err)
	}
	root, err := s.compileUnit(s.opts.RootName, tree, newContext(s.opts.FileName))
	if err != nil {
		return nil, err
	}
	prog := &ir.Program{Root: root, Units: s.units}
	seen := map[string]bool{}
	for _, u := range prog.AllUnits() {
		for _, ref := range u.Imports {
			if !seen[ref.Unit] {
				seen[ref.Unit] = true
				prog.Imports = append(prog.Imports, ref)
			}
		}
	}
	s.log.Debug("compiled template",
		"file", s.opts.FileName,
		"units", len(prog.Units)+1,
		"nodes", s.loc.count)
	return prog, nil
}
