package content

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func TestRoot_Resolve(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html":        "root",
		"about/index.html":  "about",
		"images/logo.png":   "png",
		"with space.txt":    "space",
		"empty/.keep":       "",
		"nested/a/b/c.json": "{}",
	})
	root, err := NewRoot(dir, Options{})
	require.NoError(t, err)

	tests := []struct {
		path string
		file string
		ok   bool
	}{
		{path: "/", file: "/index.html", ok: true},
		{path: "/index.html", file: "/index.html", ok: true},
		{path: "/about", file: "/about/index.html", ok: true},
		{path: "/about/", file: "/about/index.html", ok: true},
		{path: "/images/logo.png", file: "/images/logo.png", ok: true},
		{path: "/with%20space.txt", file: "/with space.txt", ok: true},
		{path: "/nested/a/b/c.json?x=1", file: "/nested/a/b/c.json", ok: true},
		{path: "/empty", ok: false},
		{path: "/missing.html", ok: false},
		{path: "/images/logo.png/", ok: false},
		{path: "/../../etc/passwd", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			file, ok := root.Resolve(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.file, file)
		})
	}
}

func TestRoot_TraversalStaysInRoot(t *testing.T) {
	dir := writeTree(t, map[string]string{"index.html": "root"})
	root, err := NewRoot(dir, Options{})
	require.NoError(t, err)

	file, ok := root.Resolve("/../index.html")
	require.True(t, ok)
	assert.Equal(t, "/index.html", file)
}

func TestRoot_Open(t *testing.T) {
	dir := writeTree(t, map[string]string{"a/b.txt": "hello"})
	root, err := NewRoot(dir, Options{})
	require.NoError(t, err)

	f, err := root.Open("/a/b.txt")
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestRoot_CacheAndPurge(t *testing.T) {
	dir := writeTree(t, map[string]string{"index.html": "root"})
	root, err := NewRoot(dir, Options{CacheSize: 16, CacheTTL: time.Hour})
	require.NoError(t, err)

	assert.False(t, root.Exists("/late.html"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.html"), []byte("x"), 0o644))
	assert.False(t, root.Exists("/late.html"), "negative lookup is cached")

	root.Purge()
	assert.True(t, root.Exists("/late.html"))
}

func TestNewRoot_Errors(t *testing.T) {
	_, err := NewRoot(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)

	dir := writeTree(t, map[string]string{"file.txt": "x"})
	_, err = NewRoot(filepath.Join(dir, "file.txt"), Options{})
	assert.ErrorIs(t, err, ErrNotDir)
}
