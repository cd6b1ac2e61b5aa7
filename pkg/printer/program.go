package printer

import (
	"fmt"

	"github.com/neurodesk/tmplc/pkg/ir"
)

// File is one generated JavaScript file.
type File struct {
	Name      string
	Code      string
	SourceMap *SourceMap
}

// PrintProgram renders a compiled program. By default every unit goes into
// one file named opts.File, partial units first and the root last; with
// opts.Export only the root is exported. With opts.Split each unit becomes
// its own module that imports the units it calls.
func PrintProgram(prog *ir.Program, opts Options) ([]File, error) {
	if prog == nil || prog.Root == nil {
		return nil, fmt.Errorf("program has no root unit")
	}
	if opts.File == "" {
		opts.File = prog.Root.Name + ".js"
	}
	if opts.Split {
		return printSplit(prog, opts)
	}
	p := newPrinter(opts)
	for i, u := range prog.AllUnits() {
		if i > 0 {
			p.write("\n\n")
		}
		if err := p.function(u, opts.Export && u == prog.Root); err != nil {
			return nil, fmt.Errorf("unit %s: %w", u.Name, err)
		}
	}
	p.write("\n")
	r := p.result()
	return []File{{Name: opts.File, Code: r.Code, SourceMap: r.SourceMap}}, nil
}

func printSplit(prog *ir.Program, opts Options) ([]File, error) {
	var files []File
	for _, u := range prog.AllUnits() {
		name := u.Name + ".js"
		if u == prog.Root {
			name = opts.File
		}
		unitOpts := opts
		unitOpts.File = name
		p := newPrinter(unitOpts)
		for _, ref := range u.Imports {
			p.importDecl(ref)
			p.write("\n")
		}
		if len(u.Imports) > 0 {
			p.write("\n")
		}
		if err := p.function(u, true); err != nil {
			return nil, fmt.Errorf("unit %s: %w", u.Name, err)
		}
		p.write("\n")
		r := p.result()
		files = append(files, File{Name: name, Code: r.Code, SourceMap: r.SourceMap})
	}
	return files, nil
}
