// Package config loads tmplc project configuration from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/neurodesk/tmplc/pkg/common"
	"github.com/neurodesk/tmplc/pkg/compiler"
	"github.com/neurodesk/tmplc/pkg/loader"
	"github.com/neurodesk/tmplc/pkg/printer"
	"github.com/neurodesk/tmplc/pkg/starlark"
	v "github.com/neurodesk/tmplc/pkg/validator"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "tmplc.yaml"

type Preprocess struct {
	// AssignAsSet accepts Liquid `{% assign %}` as `{% set %}`.
	AssignAsSet bool `yaml:"assign_as_set" toml:"assign_as_set"`
}

type Config struct {
	// Views is the directory partials are discovered in.
	Views      string   `yaml:"views" toml:"views"`
	Extensions []string `yaml:"extensions,omitempty" toml:"extensions"`

	ModuleMode   bool `yaml:"module_mode" toml:"module_mode"`
	SplitModules bool `yaml:"split_modules" toml:"split_modules"`
	Export       bool `yaml:"export" toml:"export"`

	ReservedIdentifiers []string `yaml:"reserved_identifiers,omitempty" toml:"reserved_identifiers"`
	RootName            string   `yaml:"root_name" toml:"root_name"`
	// NamingScript is a Starlark file defining unit_name(name).
	NamingScript string `yaml:"naming_script,omitempty" toml:"naming_script"`

	OutDir     string `yaml:"out_dir" toml:"out_dir"`
	SourceMaps bool   `yaml:"source_maps" toml:"source_maps"`
	CacheDir   string `yaml:"cache_dir,omitempty" toml:"cache_dir"`
	Jobs       int    `yaml:"jobs" toml:"jobs"`

	Preprocess Preprocess `yaml:"preprocess" toml:"preprocess"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Extensions: slices.Clone(loader.DefaultExtensions),
		Export:     true,
		RootName:   common.RootUnit,
		OutDir:     "dist",
		Jobs:       runtime.NumCPU(),
		Preprocess: Preprocess{AssignAsSet: true},
	}
}

// Load reads the file at path. Keys absent from the file keep their default
// values; unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(f, &cfg)
	case ".yaml", ".yml", "":
		err = decodeYAML(f, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist and was not requested explicitly.
func LoadOrDefault(path string, explicit bool) (Config, error) {
	cfg, err := Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", path)
		return Default(), nil
	}
	return cfg, err
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(r io.Reader, cfg *Config) error {
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func (c Config) Validate() error {
	return v.All(
		v.Each(c.Extensions, v.Extension, "extensions"),
		v.NoDuplicates(c.Extensions, "extensions"),
		v.Identifier(c.RootName, "root_name"),
		v.Each(c.ReservedIdentifiers, v.Identifier, "reserved_identifiers"),
		v.NonNegative(c.Jobs, "jobs"),
		v.HasNoTemplate(c.OutDir, "out_dir"),
		v.HasNoTemplate(c.Views, "views"),
	)
}

// Path resolves p against the directory of the config file.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

func (c Config) LoaderOptions() loader.Options {
	return loader.Options{Extensions: c.Extensions, AssignAsSet: c.Preprocess.AssignAsSet}
}

// CompilerOptions builds compiler options. A naming script that fails to
// load is reported and the default naming strategy is used instead.
func (c Config) CompilerOptions(log *slog.Logger) compiler.Options {
	opts := compiler.Options{
		ModuleMode:          c.ModuleMode,
		ReservedIdentifiers: c.ReservedIdentifiers,
		RootName:            c.RootName,
		Logger:              log,
	}
	if c.NamingScript != "" {
		if log == nil {
			log = slog.Default()
		}
		namer, err := starlark.LoadNamer(c.Path(c.NamingScript), nil, compiler.DefaultUnitName)
		if err != nil {
			log.Warn("ignoring naming script", "script", c.NamingScript, "error", err)
		} else {
			opts.UnitNaming = namer
		}
	}
	return opts
}

func (c Config) PrinterOptions(file string) printer.Options {
	return printer.Options{
		Export:    c.Export,
		SourceMap: c.SourceMaps,
		File:      file,
		Split:     c.ModuleMode && c.SplitModules,
	}
}

// CacheSettings lists every setting that changes generated output. The
// naming script contributes its contents.
func (c Config) CacheSettings() map[string]any {
	var naming string
	if c.NamingScript != "" {
		if b, err := os.ReadFile(c.Path(c.NamingScript)); err == nil {
			naming = string(b)
		}
	}
	return map[string]any{
		"module":   c.ModuleMode,
		"split":    c.SplitModules,
		"export":   c.Export,
		"reserved": c.ReservedIdentifiers,
		"root":     c.RootName,
		"naming":   naming,
		"maps":     c.SourceMaps,
		"assign":   c.Preprocess.AssignAsSet,
	}
}
