package routing

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzerik/swa-emulator/internal/model"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

// fakeFiles resolves paths against a fixed set, with directory indexes.
type fakeFiles map[string]bool

func (f fakeFiles) Resolve(p string) (string, bool) {
	if strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	if f[p] {
		return p, true
	}
	if idx := strings.TrimSuffix(p, "/") + "/index.html"; f[idx] {
		return idx, true
	}
	return "", false
}

type fakePrincipals struct {
	p *model.ClientPrincipal
}

func (f fakePrincipals) Principal(*http.Request) (*model.ClientPrincipal, error) {
	if f.p == nil {
		return nil, errors.New("no cookie")
	}
	return f.p, nil
}

func newEngine(files fakeFiles, p *model.ClientPrincipal) *Engine {
	return NewEngine(Options{
		Protocol:      "http",
		APIPrefix:     "/api/",
		DataAPIPrefix: "/data-api/",
	}, files, fakePrincipals{p: p})
}

func loadConfig(t *testing.T, doc string) *swaconfig.Config {
	t.Helper()
	cfg, err := swaconfig.Parse([]byte(doc), false)
	require.NoError(t, err)
	return cfg
}

func TestEngine_Decide(t *testing.T) {
	files := fakeFiles{
		"/index.html":        true,
		"/index2.html":       true,
		"/png_gif.html":      true,
		"/about/index.html":  true,
		"/custom-404.html":   true,
		"/members/area.html": true,
		"/style.css":         true,
	}
	cfg := loadConfig(t, `{
		"routes": [
			{"route": "/redirect/*", "redirect": "/index2.html"},
			{"route": "/*.{png,gif}", "redirect": "/png_gif.html"},
			{"route": "/old", "redirect": "https://example.com/new", "statusCode": 301},
			{"route": "/members/*", "allowedRoles": ["authenticated"]},
			{"route": "/secret", "statusCode": 403},
			{"route": "/login", "rewrite": "/.auth/login/github?post_login_redirect_uri=/home"},
			{"route": "/logout", "rewrite": "/.auth/logout"},
			{"route": "/backend", "rewrite": "/api/items?limit=5"},
			{"route": "/teapot", "rewrite": "/index.html", "statusCode": 418},
			{"route": "/style.css", "headers": {"Cache-Control": "no-store", "ETag": ""}}
		],
		"navigationFallback": {"rewrite": "/index.html", "exclude": ["/*.txt"]},
		"mimeTypes": {".css": "text/css; charset=utf-8"},
		"globalHeaders": {"X-Frame-Options": "DENY"}
	}`)

	tests := []struct {
		name      string
		method    string
		target    string
		principal *model.ClientPrincipal
		check     func(t *testing.T, d Decision)
	}{
		{
			name: "wildcard redirect", method: "GET", target: "/redirect/foo",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindRedirect, d.Kind)
				assert.Equal(t, 302, d.Status)
				assert.Equal(t, "/index2.html", d.Location)
			},
		},
		{
			name: "extension redirect", method: "GET", target: "/thing.png",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindRedirect, d.Kind)
				assert.Equal(t, "/png_gif.html", d.Location)
			},
		},
		{
			name: "extension rule miss falls back", method: "GET", target: "/thing.jpg",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindStatic, d.Kind)
				assert.Equal(t, "/index.html", d.File)
			},
		},
		{
			name: "cross origin permanent redirect", method: "GET", target: "/old",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, 301, d.Status)
				assert.Equal(t, "https://example.com/new", d.Location)
			},
		},
		{
			name: "navigation fallback", method: "GET", target: "/does_not_exist.html",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindStatic, d.Kind)
				assert.Equal(t, "/index.html", d.File)
				assert.Equal(t, "/index.html", d.URL)
				assert.Equal(t, "text/html", d.ContentType)
				assert.Equal(t, "DENY", d.Headers.Get("X-Frame-Options"))
			},
		},
		{
			name: "excluded missing file is 404", method: "GET", target: "/does_not_exist.txt",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindErrorPage, d.Kind)
				assert.Equal(t, 404, d.Status)
				assert.Equal(t, "/404.html", d.File)
				assert.True(t, d.Builtin)
			},
		},
		{
			name: "directory index", method: "GET", target: "/about",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindStatic, d.Kind)
				assert.Equal(t, "/about/index.html", d.File)
			},
		},
		{
			name: "roles without cookie", method: "GET", target: "/members/area.html",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindErrorPage, d.Kind)
				assert.Equal(t, 401, d.Status)
				assert.Equal(t, "/401.html", d.File)
			},
		},
		{
			name: "roles with cookie", method: "GET", target: "/members/area.html",
			principal: &model.ClientPrincipal{UserID: "u", UserRoles: []string{"authenticated", "anonymous"}},
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindStatic, d.Kind)
				assert.Equal(t, "/members/area.html", d.File)
				require.NotNil(t, d.Route)
				assert.Equal(t, 3, d.Route.Index)
			},
		},
		{
			name: "rule status code", method: "GET", target: "/secret",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindErrorPage, d.Kind)
				assert.Equal(t, 403, d.Status)
				assert.Equal(t, "/403.html", d.File)
			},
		},
		{
			name: "auth endpoint", method: "GET", target: "/.auth/me",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindAuth, d.Kind)
				assert.Equal(t, "/.auth/me", d.URL)
				assert.Equal(t, model.NoAuth, d.AuthStatus)
			},
		},
		{
			name: "login rewrite keeps query", method: "GET", target: "/login",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindAuth, d.Kind)
				assert.Equal(t, model.HostNameAuthLogin, d.AuthStatus)
				assert.Equal(t, "/.auth/login/github?post_login_redirect_uri=/home", d.URL)
			},
		},
		{
			name: "logout rewrite", method: "GET", target: "/logout",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindAuth, d.Kind)
				assert.Equal(t, model.HostNameAuthLogout, d.AuthStatus)
			},
		},
		{
			name: "function request any method", method: "DELETE", target: "/api/items/1?x=1",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindFunction, d.Kind)
				assert.Equal(t, "/api/items/1?x=1", d.URL)
				assert.Equal(t, "http://localhost:4280/api/items/1?x=1", d.OriginalURL)
			},
		},
		{
			name: "function rewrite", method: "GET", target: "/backend",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindFunction, d.Kind)
				assert.Equal(t, "/api/items?limit=5", d.URL)
				assert.Equal(t, "http://localhost:4280/backend", d.OriginalURL)
			},
		},
		{
			name: "data api", method: "POST", target: "/data-api/graphql",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindDataAPI, d.Kind)
			},
		},
		{
			name: "static rejects post", method: "POST", target: "/index.html",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindEmpty, d.Kind)
				assert.Equal(t, 405, d.Status)
				assert.Equal(t, "GET, HEAD, OPTIONS", d.Allow)
			},
		},
		{
			name: "config file is hidden", method: "GET", target: "/staticwebapp.config.json",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindErrorPage, d.Kind)
				assert.Equal(t, 404, d.Status)
			},
		},
		{
			name: "rewrite with custom status", method: "GET", target: "/teapot",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindStatic, d.Kind)
				assert.Equal(t, 418, d.Status)
				assert.Equal(t, "/index.html", d.File)
			},
		},
		{
			name: "route headers and mime override", method: "GET", target: "/style.css",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, "text/css; charset=utf-8", d.ContentType)
				assert.Equal(t, "no-store", d.Headers.Get("Cache-Control"))
				assert.True(t, d.Headers.IsRemoved("ETag"))
			},
		},
		{
			name: "websocket", method: "GET", target: "/sockjs-node/info",
			check: func(t *testing.T, d Decision) {
				assert.Equal(t, KindWebsocket, d.Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(files, tt.principal)
			d := e.Decide(newRequest(tt.method, tt.target), cfg)
			tt.check(t, d)
		})
	}
}

func TestEngine_ResponseOverrides(t *testing.T) {
	files := fakeFiles{"/index.html": true, "/custom-404.html": true}
	cfg := loadConfig(t, `{
		"routes": [{"route": "/admin/*", "allowedRoles": ["admin"]}],
		"responseOverrides": {
			"401": {"redirect": "/.auth/login/github?post_login_redirect_uri=.referrer", "statusCode": 302},
			"404": {"rewrite": "/custom-404.html"}
		}
	}`)
	e := newEngine(files, nil)

	t.Run("401 redirects to login", func(t *testing.T) {
		d := e.Decide(newRequest("GET", "/admin/panel"), cfg)
		assert.Equal(t, KindRedirect, d.Kind)
		assert.Equal(t, 302, d.Status)
		assert.Equal(t, "/.auth/login/github?post_login_redirect_uri=%2Fadmin%2Fpanel", d.Location)
	})

	t.Run("404 serves custom page", func(t *testing.T) {
		d := e.Decide(newRequest("GET", "/nope"), cfg)
		assert.Equal(t, KindErrorPage, d.Kind)
		assert.Equal(t, 404, d.Status)
		assert.Equal(t, "/custom-404.html", d.File)
		assert.False(t, d.Builtin)
		assert.Equal(t, "swa://custom-404.html", d.URL)
	})

	t.Run("HEAD shortcut", func(t *testing.T) {
		d := e.Decide(newRequest("HEAD", "/index.html"), cfg)
		assert.Equal(t, KindEmpty, d.Kind)
		assert.Equal(t, 200, d.Status)
		assert.Equal(t, ETag, d.Headers.Get("ETag"))
	})

	t.Run("OPTIONS shortcut", func(t *testing.T) {
		d := e.Decide(newRequest("OPTIONS", "/index.html"), cfg)
		assert.Equal(t, KindEmpty, d.Kind)
		assert.Equal(t, 204, d.Status)
		assert.Equal(t, "GET, HEAD, OPTIONS", d.Allow)
	})
}

func TestEngine_MissingCustomPage(t *testing.T) {
	cfg := loadConfig(t, `{"responseOverrides": {"404": {"rewrite": "/gone.html"}}}`)
	d := newEngine(fakeFiles{}, nil).Decide(newRequest("GET", "/x"), cfg)
	assert.Equal(t, KindErrorPage, d.Kind)
	assert.Equal(t, 404, d.Status)
	assert.Equal(t, "/404.html", d.File)
	assert.True(t, d.Builtin)
}

func TestEngine_FunctionFallback(t *testing.T) {
	cfg := loadConfig(t, `{"navigationFallback": {"rewrite": "/api/ssr"}}`)
	d := newEngine(fakeFiles{}, nil).Decide(newRequest("GET", "/products/1"), cfg)
	assert.Equal(t, KindFunction, d.Kind)
	assert.Equal(t, "/api/ssr", d.URL)
	assert.Equal(t, "http://localhost:4280/products/1", d.OriginalURL)
}

func TestEngine_DevServer(t *testing.T) {
	e := NewEngine(Options{Protocol: "http", APIPrefix: "/api/", DevServer: true}, fakeFiles{}, nil)

	d := e.Decide(newRequest("GET", "/src/main.ts?t=1"), swaconfig.Empty())
	assert.Equal(t, KindDevServer, d.Kind)
	assert.Equal(t, "/src/main.ts?t=1", d.URL)

	cfg := loadConfig(t, `{"routes": [{"route": "/private", "statusCode": 404}], "responseOverrides": {"404": {"rewrite": "/404-page"}}}`)
	d = e.Decide(newRequest("GET", "/private"), cfg)
	assert.Equal(t, KindDevServer, d.Kind)
	assert.Equal(t, 404, d.Status)
	assert.Equal(t, "/404-page", d.URL)
}

func TestEngine_NilConfig(t *testing.T) {
	d := newEngine(fakeFiles{"/index.html": true}, nil).Decide(newRequest("GET", "/"), nil)
	assert.Equal(t, KindStatic, d.Kind)
	assert.Equal(t, "/index.html", d.File)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "static", KindStatic.String())
	assert.Equal(t, "data-api", KindDataAPI.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
