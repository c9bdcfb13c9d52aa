package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dzerik/swa-emulator/internal/model"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

func TestIndexHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/", "/index.html"},
		{"/about", "/about/index.html"},
		{"/about/", "/about/index.html"},
		{"/about/index.html", "/about/index.html"},
		{"/About/INDEX.HTML", "/About/INDEX.HTML"},
		{"/logo.png", "/logo.png"},
		{"/v1.2/docs", "/v1.2/docs"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IndexHTML(tt.in))
		})
	}
}

func TestMatchRoute(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		rule    swaconfig.Route
		method  string
		methods []string
		status  model.AuthStatus
		want    bool
	}{
		{name: "exact", path: "/about", rule: swaconfig.Route{Route: "/about"}, want: true},
		{name: "exact mismatch", path: "/contact", rule: swaconfig.Route{Route: "/about"}, want: false},
		{name: "index alternate", path: "/docs", rule: swaconfig.Route{Route: "/docs/index.html"}, want: true},
		{name: "index alternate with slash", path: "/docs/", rule: swaconfig.Route{Route: "/docs/index.html"}, want: true},
		{name: "trailing wildcard", path: "/redirect/foo", rule: swaconfig.Route{Route: "/redirect/*"}, want: true},
		{name: "trailing wildcard via alternate", path: "/redirect", rule: swaconfig.Route{Route: "/redirect/*"}, want: true},
		{name: "any", path: "/x/y", rule: swaconfig.Route{Route: "*"}, want: true},
		{name: "extension set png", path: "/thing.png", rule: swaconfig.Route{Route: "/*.{png,gif}"}, want: true},
		{name: "extension set gif", path: "/a/b/thing.gif", rule: swaconfig.Route{Route: "/*.{png,gif}"}, want: true},
		{name: "extension set jpg", path: "/thing.jpg", rule: swaconfig.Route{Route: "/*.{png,gif}"}, want: false},
		{name: "mid path wildcard never matches", path: "/redirect/foo/invalid", rule: swaconfig.Route{Route: "/redirect/*/invalid"}, want: false},
		{name: "empty route", path: "/", rule: swaconfig.Route{Route: ""}, want: false},
		{name: "method allowed", path: "/a", rule: swaconfig.Route{Route: "/a"}, method: "POST", methods: []string{"GET", "POST"}, want: true},
		{name: "method rejected", path: "/a", rule: swaconfig.Route{Route: "/a"}, method: "PUT", methods: []string{"GET"}, want: false},
		{name: "empty methods reject all", path: "/a", rule: swaconfig.Route{Route: "/a"}, method: "GET", methods: []string{}, want: false},
		{name: "auth me never matches", path: "/a", rule: swaconfig.Route{Route: "/a"}, status: model.AuthMe, want: false},
		{name: "login exact", path: "/login", rule: swaconfig.Route{Route: "/login"}, status: model.HostNameAuthLogin, want: true},
		{name: "login rejects wildcard", path: "/login", rule: swaconfig.Route{Route: "/log*"}, status: model.HostNameAuthLogin, want: false},
		{name: "login rejects roles", path: "/login", rule: swaconfig.Route{Route: "/login", AllowedRoles: []string{"admin"}}, status: model.HostNameAuthLogin, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			assert.Equal(t, tt.want, MatchRoute(tt.path, &rule, tt.method, tt.methods, tt.status))
		})
	}
}

func TestMatchRoute_NilRule(t *testing.T) {
	assert.False(t, MatchRoute("/", nil, "GET", nil, model.NoAuth))
}

func TestMatchLegacy(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		route  string
		isAuth bool
		isFile bool
		want   bool
	}{
		{name: "exact", path: "/a", route: "/a", want: true},
		{name: "any wildcard matches", path: "/anything", route: "/other/*", want: true},
		{name: "wildcard skipped for auth", path: "/.auth/me", route: "/*", isAuth: true, want: false},
		{name: "file request skips alternate", path: "/a.png", route: "/a.png/index.html", isFile: true, want: false},
		{name: "alternate", path: "/docs", route: "/docs/index.html", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &swaconfig.Route{Route: tt.route}
			assert.Equal(t, tt.want, matchLegacy(tt.path, rule, tt.isAuth, tt.isFile))
		})
	}
}
