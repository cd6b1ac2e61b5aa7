package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/neurodesk/tmplc/pkg/buildcache"
	"github.com/neurodesk/tmplc/pkg/common"
	"github.com/neurodesk/tmplc/pkg/compiler"
	"github.com/neurodesk/tmplc/pkg/config"
	"github.com/neurodesk/tmplc/pkg/ir"
	"github.com/neurodesk/tmplc/pkg/jinja2"
	"github.com/neurodesk/tmplc/pkg/loader"
	"github.com/neurodesk/tmplc/pkg/printer"
	"github.com/neurodesk/tmplc/pkg/scope"
)

const (
	emitJS  = "js"
	emitIR  = "ir"
	emitAST = "ast"
)

var emitModes = []string{emitJS, emitIR, emitAST}

// unitInfo summarises one generated unit for `check`.
type unitInfo struct {
	Name   string
	Inputs []string
	Locals []string
}

// result is the outcome of compiling one root template. Err holds a compile
// error; it is reported as a diagnostic rather than aborting the run.
type result struct {
	Path   string
	Name   string
	Source string
	Files  []buildcache.File
	Units  []unitInfo
	Cached bool
	Err    error
}

type pipeline struct {
	cfg      config.Config
	partials loader.Partials
	compiler *compiler.Compiler
	cache    *buildcache.Cache
	emit     string
	log      *slog.Logger
}

func newPipeline(cfg config.Config, cache *buildcache.Cache, emit string, log *slog.Logger) (*pipeline, error) {
	partials, err := loader.LoadDir(cfg.Path(cfg.Views), cfg.LoaderOptions())
	if err != nil {
		return nil, fmt.Errorf("loading partials: %w", err)
	}
	log.Debug("discovered partials", "views", cfg.Views, "count", len(partials))
	return &pipeline{
		cfg:      cfg,
		partials: partials,
		compiler: compiler.New(partials, cfg.CompilerOptions(log)),
		cache:    cache,
		emit:     emit,
		log:      log,
	}, nil
}

// run compiles every path in parallel. Results keep the order of paths.
func (p *pipeline) run(ctx context.Context, paths []string) ([]result, error) {
	jobs := p.cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(paths))))
	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = p.compileOne(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func templateName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *pipeline) compileOne(path string) result {
	r := result{Path: path, Name: templateName(path)}
	src, err := loader.ReadTemplate(path, p.cfg.LoaderOptions())
	if err != nil {
		r.Err = err
		return r
	}
	r.Source = src

	if p.emit == emitAST {
		tree, err := jinja2.Parse(src)
		if err != nil {
			r.Err = err
			return r
		}
		r.Files = []buildcache.File{{Name: r.Name + ".ast", Code: jinja2.Pretty(tree)}}
		return r
	}

	settings := p.cfg.CacheSettings()
	settings["emit"] = p.emit
	settings["file"] = r.Name
	key, err := buildcache.Key(src, p.partials, settings)
	if err != nil {
		r.Err = err
		return r
	}
	if entry, ok, err := p.cache.Get(key); err != nil {
		p.log.Warn("cache read failed", "template", path, "error", err)
	} else if ok {
		p.log.Debug("cache hit", "template", path, "key", key[:12])
		r.Files = entry.Files
		r.Units = []unitInfo{{Name: p.cfg.RootName, Inputs: entry.Inputs, Locals: entry.Locals}}
		r.Cached = true
		return r
	}

	prog, err := p.compiler.Compile(path, src)
	if err != nil {
		r.Err = err
		return r
	}
	for _, u := range prog.AllUnits() {
		rec := scope.Resolve(u, p.cfg.ReservedIdentifiers...)
		inputs := make([]string, len(rec.Free))
		for i, name := range rec.Free {
			inputs[i] = common.TemplateName(name)
		}
		r.Units = append(r.Units, unitInfo{Name: u.Name, Inputs: inputs, Locals: u.Locals})
	}

	switch p.emit {
	case emitIR:
		out, err := ir.Dump(prog)
		if err != nil {
			r.Err = err
			return r
		}
		r.Files = []buildcache.File{{Name: r.Name + ".ir.yaml", Code: string(out)}}
	default:
		files, err := printer.PrintProgram(prog, p.cfg.PrinterOptions(r.Name+".js"))
		if err != nil {
			r.Err = err
			return r
		}
		for _, f := range files {
			out := buildcache.File{Name: f.Name, Code: f.Code}
			if f.SourceMap != nil {
				if out.SourceMap, err = f.SourceMap.JSON(); err != nil {
					r.Err = err
					return r
				}
			}
			r.Files = append(r.Files, out)
		}
	}

	root := r.Units[len(r.Units)-1]
	if err := p.cache.Put(key, &buildcache.Entry{Files: r.Files, Inputs: root.Inputs, Locals: root.Locals}); err != nil {
		p.log.Warn("cache write failed", "template", path, "error", err)
	}
	return r
}

// source looks up template text for diagnostics.
func (p *pipeline) source(r result) func(string) (string, bool) {
	return func(file string) (string, bool) {
		if file == r.Path {
			return r.Source, true
		}
		s, ok := p.partials[file]
		return s, ok
	}
}

// write stores the generated files of r under dir. Split output goes to a
// directory per template so shared unit files never collide.
func write(dir string, r result, split bool) ([]string, error) {
	if split {
		dir = filepath.Join(dir, r.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, f := range r.Files {
		code := f.Code
		if f.SourceMap != nil {
			mapName := f.Name + ".map"
			if err := writeFile(filepath.Join(dir, mapName), f.SourceMap); err != nil {
				return nil, err
			}
			code += "//# sourceMappingURL=" + mapName + "\n"
		}
		p := filepath.Join(dir, f.Name)
		if err := writeFile(p, []byte(code)); err != nil {
			return nil, err
		}
		written = append(written, p)
	}
	return written, nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
