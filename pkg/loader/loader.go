// Package loader discovers partial templates on disk.
package loader

import (
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"
)

// DefaultExtensions are the partial file extensions used when none are
// configured.
var DefaultExtensions = []string{".liquid"}

type Options struct {
	Extensions []string
	// AssignAsSet rewrites `{% assign` tags to `{% set` before parsing.
	AssignAsSet bool
}

func (o Options) extensions() []string {
	if len(o.Extensions) == 0 {
		return DefaultExtensions
	}
	return o.Extensions
}

// Preprocess applies the source rewrites selected by opts.
func (o Options) Preprocess(src string) string {
	if o.AssignAsSet {
		return AssignToSet(src)
	}
	return src
}

var assignTag = regexp.MustCompile(`\{%(-?)\s*assign\b`)

// AssignToSet rewrites Liquid `{% assign x = y %}` tags into `{% set x = y %}`.
func AssignToSet(src string) string {
	return assignTag.ReplaceAllString(src, "{%$1 set")
}

// ErrPartialNotFound is returned by Partials.Get for unknown names.
type ErrPartialNotFound struct{ Name string }

func (e ErrPartialNotFound) Error() string { return "partial not found: " + e.Name }

// Partials maps a partial name, its path relative to the views root without
// the extension, to its preprocessed source.
type Partials map[string]string

func (p Partials) Get(name string) (string, error) {
	if s, ok := p[name]; ok {
		return s, nil
	}
	return "", ErrPartialNotFound{name}
}

func (p Partials) Names() []string { return slices.Sorted(maps.Keys(p)) }

// Name returns the partial name for a file path, or false when the path
// does not carry one of the configured extensions.
func (o Options) Name(p string) (string, bool) {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	for _, ext := range o.extensions() {
		if strings.HasSuffix(p, ext) && len(p) > len(ext) {
			return strings.TrimSuffix(p, ext), true
		}
	}
	return "", false
}

// Load reads every partial below the root of fsys.
func Load(fsys fs.FS, opts Options) (Partials, error) {
	out := Partials{}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name, ok := opts.Name(p)
		if !ok {
			return nil
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("reading partial %q: %w", p, err)
		}
		if _, dup := out[name]; dup {
			slog.Warn("partial defined twice, keeping the first", "name", name, "path", p)
			return nil
		}
		out[name] = opts.Preprocess(string(content))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded partials", "count", len(out))
	return out, nil
}

// LoadDir reads every partial below dir. An empty dir yields no partials.
func LoadDir(dir string, opts Options) (Partials, error) {
	if dir == "" {
		return Partials{}, nil
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("views directory: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("views directory %q is not a directory", dir)
	}
	return Load(os.DirFS(dir), opts)
}

// ReadTemplate reads a root template from disk and preprocesses it.
func ReadTemplate(file string, opts Options) (string, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return opts.Preprocess(string(content)), nil
}
