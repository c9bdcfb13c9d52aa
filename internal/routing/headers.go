package routing

import (
	"net/http"
	"sort"
)

const (
	// CacheControl is the default Cache-Control value for static content.
	CacheControl = "must-revalidate, max-age=30"
	// ETag is the fixed entity tag sent with static content.
	ETag = `"SWA-CLI-ETAG"`
)

// defaultHeaders is the base layer of every composed header set.
var defaultHeaders = [][2]string{
	{"Strict-Transport-Security", "max-age=10886400; includeSubDomains; preload"},
	{"Referrer-Policy", "same-origin"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-XSS-Protection", "1; mode=block"},
	{"X-DNS-Prefetch-Control", "off"},
	{"Cache-Control", CacheControl},
	{"ETag", ETag},
}

// Headers is the result of layering default, global and route headers.
// Removed lists headers an overlay asked to delete; they must also be
// stripped from anything the file server or proxy adds.
type Headers struct {
	values  http.Header
	removed map[string]struct{}
}

// ComposeHeaders layers defaults < global < route. An empty value in an
// overlay deletes the header instead of setting it.
func ComposeHeaders(global, route map[string]string) Headers {
	h := Headers{
		values:  make(http.Header, len(defaultHeaders)+len(global)+len(route)),
		removed: make(map[string]struct{}),
	}
	for _, kv := range defaultHeaders {
		h.values.Set(kv[0], kv[1])
	}
	h.overlay(global)
	h.overlay(route)
	return h
}

func (h *Headers) overlay(layer map[string]string) {
	// Sorted so that two spellings of the same header resolve the same way every time.
	keys := make([]string, 0, len(layer))
	for k := range layer {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := http.CanonicalHeaderKey(k)
		if v := layer[k]; v == "" {
			h.values.Del(name)
			h.removed[name] = struct{}{}
		} else {
			h.values.Set(name, v)
			delete(h.removed, name)
		}
	}
}

// Get returns the composed value of a header.
func (h Headers) Get(name string) string {
	return h.values.Get(name)
}

// Values returns a copy of the composed headers.
func (h Headers) Values() http.Header {
	return h.values.Clone()
}

// Removed returns the canonical names of deleted headers, sorted.
func (h Headers) Removed() []string {
	out := make([]string, 0, len(h.removed))
	for k := range h.removed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsRemoved reports whether name was deleted by an overlay.
func (h Headers) IsRemoved(name string) bool {
	_, ok := h.removed[http.CanonicalHeaderKey(name)]
	return ok
}

// Apply writes the composed headers into dst and deletes removed ones.
func (h Headers) Apply(dst http.Header) {
	for k, v := range h.values {
		dst[k] = append([]string(nil), v...)
	}
	for k := range h.removed {
		dst.Del(k)
	}
}
