// Package content answers questions about the static content root: whether a
// URL path exists, and which file serves it.
package content

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheSize bounds the existence cache.
	DefaultCacheSize = 4096
	// DefaultCacheTTL keeps lookups short-lived so edits show up quickly.
	DefaultCacheTTL = 2 * time.Second

	indexFile = "index.html"
)

// ErrNotDir is returned when the content root is not a directory.
var ErrNotDir = errors.New("content: root is not a directory")

type entry struct {
	file string
	ok   bool
}

// Root is a read-only view of the content root with a small lookup cache.
type Root struct {
	dir   string
	fsys  fs.FS
	cache *expirable.LRU[string, entry]
}

// Options configures a Root.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// NewRoot opens dir as a content root. A zero CacheSize disables caching.
func NewRoot(dir string, opts Options) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotDir
	}

	r := &Root{dir: abs, fsys: os.DirFS(abs)}
	if opts.CacheSize > 0 {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		r.cache = expirable.NewLRU[string, entry](opts.CacheSize, nil, ttl)
	}
	return r, nil
}

// Dir returns the absolute content root.
func (r *Root) Dir() string { return r.dir }

// FS returns the content root as an fs.FS.
func (r *Root) FS() fs.FS { return r.fsys }

// Resolve maps a URL path to the file that serves it. The path is percent
// decoded; a trailing slash or a directory resolves to its index.html.
func (r *Root) Resolve(urlPath string) (string, bool) {
	if r.cache != nil {
		if e, ok := r.cache.Get(urlPath); ok {
			return e.file, e.ok
		}
	}
	file, ok := r.resolve(urlPath)
	if r.cache != nil {
		r.cache.Add(urlPath, entry{file: file, ok: ok})
	}
	return file, ok
}

// Exists reports whether urlPath resolves to a file.
func (r *Root) Exists(urlPath string) bool {
	_, ok := r.Resolve(urlPath)
	return ok
}

// Purge drops every cached lookup.
func (r *Root) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func (r *Root) resolve(urlPath string) (string, bool) {
	if i := strings.IndexByte(urlPath, '?'); i >= 0 {
		urlPath = urlPath[:i]
	}
	p, err := url.PathUnescape(urlPath)
	if err != nil {
		p = urlPath
	}
	trailing := strings.HasSuffix(p, "/")

	// Cleaning an absolute path removes any ".." that would escape the root.
	clean := path.Clean("/" + p)
	if trailing {
		clean = path.Join(clean, indexFile)
	}

	name := strings.TrimPrefix(clean, "/")
	if name == "" {
		name = "."
	}
	info, err := fs.Stat(r.fsys, name)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		return clean, true
	}

	idx := path.Join(clean, indexFile)
	if info, err := fs.Stat(r.fsys, strings.TrimPrefix(idx, "/")); err == nil && !info.IsDir() {
		return idx, true
	}
	return "", false
}

// Open opens the file returned by Resolve.
func (r *Root) Open(file string) (fs.File, error) {
	return r.fsys.Open(strings.TrimPrefix(path.Clean("/"+file), "/"))
}
