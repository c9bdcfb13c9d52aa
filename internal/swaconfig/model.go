// Package swaconfig models the user-facing routing configuration of a
// static web app (staticwebapp.config.json, or the legacy routes.json).
//
// A Config is immutable once Load returns it. Rule globs are compiled at load
// time so the request path never parses patterns.
package swaconfig

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dzerik/swa-emulator/internal/glob"
)

const (
	// FileName is the preferred configuration file.
	FileName = "staticwebapp.config.json"
	// LegacyFileName is the deprecated routes file.
	LegacyFileName = "routes.json"
	// MaxFileSize is the size above which a warning is logged.
	MaxFileSize = 20 * 1024
)

// OverridableErrorCodes lists the statuses responseOverrides may change.
var OverridableErrorCodes = []int{400, 401, 403, 404}

// Config is the parsed routing configuration.
type Config struct {
	Routes             []Route             `json:"routes,omitempty"`
	NavigationFallback *NavigationFallback `json:"navigationFallback,omitempty"`
	ResponseOverrides  map[string]Override `json:"responseOverrides,omitempty"`
	GlobalHeaders      map[string]string   `json:"globalHeaders,omitempty"`
	MimeTypes          map[string]string   `json:"mimeTypes,omitempty"`
	Auth               *Auth               `json:"auth,omitempty"`

	// IsLegacy is set when the configuration came from routes.json.
	IsLegacy bool `json:"-"`
	// Path is the file the configuration was read from. Empty for the
	// built-in empty configuration.
	Path string `json:"-"`
}

// Route is a single entry of the routes array.
type Route struct {
	Route string `json:"route"`
	// Methods restricts the rule to the listed HTTP methods. A nil slice
	// allows every method; an empty, non-nil slice allows none.
	Methods      []string          `json:"methods,omitempty"`
	AllowedRoles []string          `json:"allowedRoles,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	StatusCode   StatusCode        `json:"statusCode,omitempty"`
	Redirect     string            `json:"redirect,omitempty"`
	Rewrite      string            `json:"rewrite,omitempty"`

	pattern glob.Pattern
}

// Pattern returns the compiled route glob. It is the zero (invalid) pattern
// for rules that failed to parse.
func (r *Route) Pattern() glob.Pattern { return r.pattern }

// HasWildcard reports whether the route text contains "*".
func (r *Route) HasWildcard() bool { return strings.Contains(r.Route, "*") }

// HasRoles reports whether allowedRoles is present, even if empty.
func (r *Route) HasRoles() bool { return r.AllowedRoles != nil }

// AllowsMethod reports whether method passes the rule's methods filter.
func (r *Route) AllowsMethod(method string) bool {
	if r.Methods == nil {
		return true
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts the legacy "serve" key as an alias for rewrite.
func (r *Route) UnmarshalJSON(data []byte) error {
	type plain Route
	var aux struct {
		plain
		Serve string `json:"serve"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Route(aux.plain)
	if r.Rewrite == "" && aux.Serve != "" {
		r.Rewrite = aux.Serve
	}
	return nil
}

// NavigationFallback configures the SPA rewrite for unknown paths.
type NavigationFallback struct {
	Rewrite string   `json:"rewrite"`
	Exclude []string `json:"exclude,omitempty"`

	excludes []glob.Pattern
}

// Excludes returns the compiled exclusion globs, in file order.
func (n *NavigationFallback) Excludes() []glob.Pattern { return n.excludes }

// Override is a responseOverrides entry.
type Override struct {
	StatusCode StatusCode `json:"statusCode,omitempty"`
	Redirect   string     `json:"redirect,omitempty"`
	Rewrite    string     `json:"rewrite,omitempty"`
}

// Auth is the auth section.
type Auth struct {
	RolesSource       string                      `json:"rolesSource,omitempty"`
	IdentityProviders map[string]IdentityProvider `json:"identityProviders,omitempty"`
}

// IdentityProvider is a custom provider registration.
type IdentityProvider struct {
	Registration Registration `json:"registration"`
}

// Registration holds the names of app settings carrying provider
// credentials. The values themselves come from the environment.
type Registration struct {
	ClientIDSettingName     string `json:"clientIdSettingName,omitempty"`
	ClientSecretSettingName string `json:"clientSecretSettingName,omitempty"`
	OpenIDIssuer            string `json:"openIdIssuer,omitempty"`
	AppIDSettingName        string `json:"appIdSettingName,omitempty"`
	AppSecretSettingName    string `json:"appSecretSettingName,omitempty"`
}

// StatusCode accepts both 404 and "404" in JSON. Non-numeric strings decode
// to zero, which means "not set".
type StatusCode int

// UnmarshalJSON implements json.Unmarshaler.
func (s *StatusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(str))
		if err != nil {
			*s = 0
			return nil
		}
		*s = StatusCode(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = StatusCode(n)
	return nil
}

// Int returns the code as an int.
func (s StatusCode) Int() int { return int(s) }

// Override returns the responseOverrides entry for code.
func (c *Config) Override(code int) (Override, bool) {
	if c == nil || c.ResponseOverrides == nil {
		return Override{}, false
	}
	o, ok := c.ResponseOverrides[strconv.Itoa(code)]
	return o, ok
}

// HasResponseOverrides reports whether a responseOverrides section exists.
func (c *Config) HasResponseOverrides() bool {
	return c != nil && c.ResponseOverrides != nil
}

// Provider returns the custom registration for a normalized provider name.
// "aad" is looked up under its config key "azureActiveDirectory".
func (c *Config) Provider(name string) (IdentityProvider, bool) {
	if c == nil || c.Auth == nil || c.Auth.IdentityProviders == nil {
		return IdentityProvider{}, false
	}
	key := ProviderConfigKey(name)
	p, ok := c.Auth.IdentityProviders[key]
	return p, ok
}

// RolesSource returns the configured roles function path, if any.
func (c *Config) RolesSource() string {
	if c == nil || c.Auth == nil {
		return ""
	}
	return c.Auth.RolesSource
}

// NormalizeProvider maps a provider name as written in configuration or
// URLs onto the short name used by the auth endpoints.
func NormalizeProvider(name string) string {
	if name == "azureActiveDirectory" {
		return "aad"
	}
	return strings.ToLower(name)
}

// ProviderConfigKey is the inverse of NormalizeProvider for config lookups.
func ProviderConfigKey(name string) string {
	if name == "aad" {
		return "azureActiveDirectory"
	}
	return name
}

// compile parses every glob. Problems are returned as warnings; the rule
// stays in place and simply never matches.
func (c *Config) compile() []string {
	var warnings []string
	for i := range c.Routes {
		r := &c.Routes[i]
		if r.Route == "" {
			warnings = append(warnings, "routes["+strconv.Itoa(i)+"]: empty route is ignored")
			continue
		}
		p, err := glob.Parse(r.Route)
		if err != nil {
			warnings = append(warnings, "routes["+strconv.Itoa(i)+"]: "+err.Error())
		}
		r.pattern = p
	}
	if nf := c.NavigationFallback; nf != nil {
		nf.excludes = make([]glob.Pattern, 0, len(nf.Exclude))
		for i, raw := range nf.Exclude {
			p, err := glob.Parse(raw)
			if err != nil {
				warnings = append(warnings, "navigationFallback.exclude["+strconv.Itoa(i)+"]: "+err.Error())
			}
			nf.excludes = append(nf.excludes, p)
		}
	}
	return warnings
}
