package buildcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settings struct {
	Module bool
	Naming map[string]string
}

func TestKeyStability(t *testing.T) {
	partials := map[string]string{"b": "2", "a": "1"}
	k1, err := Key("src", partials, settings{Naming: map[string]string{"x": "1", "y": "2"}})
	require.NoError(t, err)
	k2, err := Key("src", map[string]string{"a": "1", "b": "2"}, settings{Naming: map[string]string{"y": "2", "x": "1"}})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)

	k3, err := Key("src", partials, settings{Module: true, Naming: map[string]string{"x": "1", "y": "2"}})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestKeyFieldBoundaries(t *testing.T) {
	k1, err := Key("ab", map[string]string{"c": ""}, nil)
	require.NoError(t, err)
	k2, err := Key("a", map[string]string{"bc": ""}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestPutGet(t *testing.T) {
	c := New(t.TempDir())
	key, err := Key("{{ a }}", nil, nil)
	require.NoError(t, err)

	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	entry := &Entry{
		Files:  []File{{Name: "template.js", Code: "function template({a}, _F) {}", SourceMap: []byte(`{"version":3}`)}},
		Inputs: []string{"a"},
	}
	require.NoError(t, c.Put(key, entry))

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Files, got.Files)
	assert.Equal(t, []string{"a"}, got.Inputs)
	assert.Equal(t, schemaVersion, got.Schema)
}

func TestGetCorrupt(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	key := "abcdef"
	p := c.pathFor(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte{0xc1}, 0o644))
	_, ok, err := c.Get(key)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestNilCache(t *testing.T) {
	var c *Cache
	_, ok, err := c.Get("abc")
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.NoError(t, c.Put("abc", &Entry{}))
	assert.NoError(t, c.Clear())
}

func TestClear(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, c.Put("abcd", &Entry{}))
	require.NoError(t, c.Clear())
	_, ok, err := c.Get("abcd")
	require.NoError(t, err)
	assert.False(t, ok)
}
