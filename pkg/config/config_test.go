package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodesk/tmplc/pkg/compiler"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "tmplc.yaml", `
views: views
module_mode: true
reserved_identifiers: [site, page]
root_name: render
preprocess:
  assign_as_set: false
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.True(t, cfg.ModuleMode)
	assert.Equal(t, []string{"site", "page"}, cfg.ReservedIdentifiers)
	assert.Equal(t, "render", cfg.RootName)
	assert.False(t, cfg.Preprocess.AssignAsSet)
	// Defaults survive for absent keys.
	assert.Equal(t, []string{".liquid"}, cfg.Extensions)
	assert.Equal(t, "dist", cfg.OutDir)
	assert.True(t, cfg.Export)
	assert.Equal(t, filepath.Join(dir, "views"), cfg.Path(cfg.Views))
}

func TestLoadYAMLUnknownField(t *testing.T) {
	p := write(t, t.TempDir(), "tmplc.yaml", "modul_mode: true\n")
	_, err := Load(p)
	assert.ErrorContains(t, err, "modul_mode")
}

func TestLoadEmptyYAML(t *testing.T) {
	p := write(t, t.TempDir(), "tmplc.yml", "")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "template", cfg.RootName)
}

func TestLoadTOML(t *testing.T) {
	p := write(t, t.TempDir(), "tmplc.toml", `
views = "templates/partials"
extensions = [".liquid", ".njk"]
split_modules = true
module_mode = true
jobs = 2

[preprocess]
assign_as_set = true
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{".liquid", ".njk"}, cfg.Extensions)
	assert.Equal(t, 2, cfg.Jobs)
	assert.True(t, cfg.PrinterOptions("x.js").Split)
	assert.Equal(t, "x.js", cfg.PrinterOptions("x.js").File)
}

func TestLoadTOMLUnknownKey(t *testing.T) {
	p := write(t, t.TempDir(), "tmplc.toml", "bogus = 1\n")
	_, err := Load(p)
	assert.ErrorContains(t, err, "bogus")
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"extension":  func(c *Config) { c.Extensions = []string{"liquid"} },
		"duplicate":  func(c *Config) { c.Extensions = []string{".a", ".a"} },
		"root name":  func(c *Config) { c.RootName = "my-template" },
		"reserved":   func(c *Config) { c.ReservedIdentifiers = []string{"ok", "not ok"} },
		"jobs":       func(c *Config) { c.Jobs = -1 },
		"out dir":    func(c *Config) { c.OutDir = "{{ out }}" },
		"empty root": func(c *Config) { c.RootName = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadOrDefault(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "tmplc.yaml")
	cfg, err := LoadOrDefault(missing, false)
	require.NoError(t, err)
	assert.Equal(t, Default().RootName, cfg.RootName)

	_, err = LoadOrDefault(missing, true)
	assert.Error(t, err)
}

func TestUnsupportedFormat(t *testing.T) {
	p := write(t, t.TempDir(), "tmplc.json", "{}")
	_, err := Load(p)
	assert.ErrorContains(t, err, "unsupported")
}

func TestCompilerOptionsNamingScript(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "naming.star", "def unit_name(name):\n    return 'view_' + fold(name)\n")
	p := write(t, dir, "tmplc.yaml", "naming_script: naming.star\nmodule_mode: true\n")
	cfg, err := Load(p)
	require.NoError(t, err)

	opts := cfg.CompilerOptions(nil)
	require.NotNil(t, opts.UnitNaming)
	prog, err := compiler.Compile(`{% include "Card" %}`, map[string]string{"Card": "x"}, opts)
	require.NoError(t, err)
	require.Len(t, prog.Units, 1)
	assert.Equal(t, "view_card", prog.Units[0].Name)
}

func TestCompilerOptionsBrokenScript(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "naming.star", "def unit_name(:\n")
	p := write(t, dir, "tmplc.yaml", "naming_script: naming.star\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Nil(t, cfg.CompilerOptions(nil).UnitNaming)
}

func TestCacheSettingsTrackScript(t *testing.T) {
	dir := t.TempDir()
	script := write(t, dir, "naming.star", "def unit_name(n):\n    return n\n")
	p := write(t, dir, "tmplc.yaml", "naming_script: naming.star\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	before := cfg.CacheSettings()["naming"]
	require.NoError(t, os.WriteFile(script, []byte("def unit_name(n):\n    return 'x' + n\n"), 0o644))
	assert.NotEqual(t, before, cfg.CacheSettings()["naming"])
}
