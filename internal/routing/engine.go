package routing

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dzerik/swa-emulator/internal/model"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

// Kind is the action a Decision asks the HTTP layer to perform.
type Kind int

const (
	// KindStatic serves File from the content root.
	KindStatic Kind = iota
	// KindDevServer proxies URL to the static dev server.
	KindDevServer
	// KindFunction proxies URL to the API backend.
	KindFunction
	// KindDataAPI proxies URL to the Data API backend.
	KindDataAPI
	// KindAuth hands the request to the auth endpoints.
	KindAuth
	// KindRedirect answers Status with a Location header.
	KindRedirect
	// KindErrorPage serves an error page with Status.
	KindErrorPage
	// KindEmpty answers Status and headers without a body.
	KindEmpty
	// KindWebsocket passes an upgrade request through to the dev server.
	KindWebsocket
)

var kindNames = [...]string{
	"static", "dev-server", "function", "data-api", "auth",
	"redirect", "error", "empty", "websocket",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Decision is the routing verdict for one request.
type Decision struct {
	Kind Kind
	// Status is the response status. Zero lets the executor pick its default.
	Status int
	// URL is the path and query to serve or forward, after rewrites.
	URL string
	// File is the content-root path to serve for static and error pages.
	File string
	// Builtin marks File as one of the emulator's own pages.
	Builtin bool
	// Location is the redirect target.
	Location    string
	ContentType string
	Headers     Headers
	// Allow is sent with 405 and OPTIONS answers.
	Allow string
	// Route is the matched rule, nil when none matched.
	Route *MatchedRoute
	// AuthStatus classifies auth hand-offs.
	AuthStatus model.AuthStatus
	// OriginalURL is the absolute URL the client asked for.
	OriginalURL string
}

// FileChecker answers existence questions about the content root.
type FileChecker interface {
	// Resolve maps a URL path to the content-root file serving it.
	Resolve(urlPath string) (string, bool)
}

// PrincipalReader extracts the signed-in user from a request.
type PrincipalReader interface {
	Principal(r *http.Request) (*model.ClientPrincipal, error)
}

// Options are the environment-derived inputs of the engine.
type Options struct {
	// Protocol is "http" or "https".
	Protocol      string
	APIPrefix     string
	DataAPIPrefix string
	// DevServer is set when static content comes from a dev server.
	DevServer bool
}

// Engine turns requests into decisions. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	opts       Options
	files      FileChecker
	principals PrincipalReader
}

// NewEngine creates an engine.
func NewEngine(opts Options, files FileChecker, principals PrincipalReader) *Engine {
	if opts.Protocol == "" {
		opts.Protocol = "http"
	}
	return &Engine{opts: opts, files: files, principals: principals}
}

// Options returns the engine settings.
func (e *Engine) Options() Options {
	return e.opts
}

// IsWebsocket reports whether r is a websocket or sockjs request.
func IsWebsocket(r *http.Request) bool {
	return strings.Contains(r.URL.Path, "sockjs-node") || strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// IsFunctionPath reports whether target is under the API prefix.
func (e *Engine) IsFunctionPath(target string) bool {
	return hasPrefixFold(target, e.opts.APIPrefix)
}

// IsDataAPIPath reports whether target is under the Data API prefix.
func (e *Engine) IsDataAPIPath(target string) bool {
	return hasPrefixFold(target, e.opts.DataAPIPrefix)
}

// IsConfigFilePath reports whether p requests the configuration file itself.
func IsConfigFilePath(p string) bool {
	return strings.HasSuffix(p, "/"+swaconfig.FileName) || strings.HasSuffix(p, "/"+swaconfig.LegacyFileName)
}

// Decide runs the routing pipeline for r against cfg.
func (e *Engine) Decide(r *http.Request, cfg *swaconfig.Config) Decision {
	if cfg == nil {
		cfg = swaconfig.Empty()
	}
	requestURI := r.URL.RequestURI()

	if IsWebsocket(r) {
		return Decision{Kind: KindWebsocket, URL: requestURI}
	}

	matched := SelectRoute(r, cfg, e.opts.Protocol)
	switch code := matched.StatusCode(); code {
	case http.StatusNotFound, http.StatusForbidden, http.StatusUnauthorized:
		d := e.errorPage(r, cfg, code)
		d.Route = matched
		return d
	}

	if IsAuthRequest(r) {
		return Decision{Kind: KindAuth, URL: requestURI, Route: matched, AuthStatus: model.NoAuth}
	}

	target := requestURI
	if rw := matched.RewriteTarget(); rw != "" {
		target = rw
	}
	isFunction := e.IsFunctionPath(target)
	isDataAPI := !isFunction && e.IsDataAPIPath(target)

	if !ValidMethod(r.Method, isFunction || isDataAPI) {
		return Decision{
			Kind:   KindEmpty,
			Status: http.StatusMethodNotAllowed,
			Allow:  strings.Join(StaticMethods, ", "),
			Route:  matched,
		}
	}

	targetURL, err := AbsoluteURL(r, e.opts.Protocol, target)
	if err != nil {
		d := e.errorPage(r, cfg, http.StatusNotFound)
		d.Route = matched
		return d
	}
	switch {
	case strings.HasPrefix(targetURL.Path, "/.auth/login"):
		return Decision{Kind: KindAuth, URL: targetURL.RequestURI(), Route: matched, AuthStatus: model.HostNameAuthLogin}
	case strings.HasPrefix(targetURL.Path, "/.auth/logout"):
		return Decision{Kind: KindAuth, URL: targetURL.RequestURI(), Route: matched, AuthStatus: model.HostNameAuthLogout}
	}

	if !Authorize(matched, e.principalFor(r, matched), model.NoAuth) {
		d := e.errorPage(r, cfg, http.StatusUnauthorized)
		d.Route = matched
		return d
	}

	d := e.respond(r, cfg, matched, isFunction, isDataAPI)
	d.Route = matched
	return d
}

// respond handles redirects, rewrites, proxies and storage lookups.
func (e *Engine) respond(r *http.Request, cfg *swaconfig.Config, matched *MatchedRoute, isFunction, isDataAPI bool) Decision {
	requestURI := r.URL.RequestURI()

	if matched != nil && matched.Redirect != "" && matched.Redirect != requestURI {
		status := http.StatusFound
		if matched.StatusCode() == http.StatusMovedPermanently {
			status = http.StatusMovedPermanently
		}
		return Decision{Kind: KindRedirect, Status: status, Location: e.location(r, matched.Redirect)}
	}

	original := Origin(r, e.opts.Protocol) + requestURI
	target := requestURI
	if rw := matched.RewriteTarget(); rw != "" {
		target = rw
	}

	switch {
	case isFunction:
		return Decision{Kind: KindFunction, URL: target, OriginalURL: original}
	case isDataAPI:
		return Decision{Kind: KindDataAPI, URL: target, OriginalURL: original}
	}

	d := e.storage(r, cfg, matched, target)
	d.OriginalURL = original
	if code := matched.StatusCode(); code != 0 && (d.Kind == KindStatic || d.Kind == KindDevServer) {
		d.Status = code
	}
	return d
}

// storage resolves target against the content root, applying the
// navigation fallback when the file is missing.
func (e *Engine) storage(r *http.Request, cfg *swaconfig.Config, matched *MatchedRoute, target string) Decision {
	u, err := url.Parse(target)
	if err != nil {
		return e.errorPage(r, cfg, http.StatusNotFound)
	}
	pathname := u.Path
	if pathname == "" {
		pathname = "/"
	}

	if IsConfigFilePath(pathname) {
		return e.errorPage(r, cfg, http.StatusNotFound)
	}

	if e.opts.DevServer {
		return Decision{Kind: KindDevServer, URL: target}
	}

	file, ok := e.files.Resolve(pathname)
	if !ok {
		nf := cfg.NavigationFallback
		fallback := FallbackTarget(nf)
		if fallback == "" {
			return e.errorPage(r, cfg, http.StatusNotFound)
		}
		if e.IsFunctionPath(fallback) {
			return Decision{Kind: KindFunction, URL: fallback}
		}
		if e.IsDataAPIPath(fallback) {
			return Decision{Kind: KindDataAPI, URL: fallback}
		}

		res := ResolveFallback(pathname, nf, e.exists)
		if res.Outcome != FallbackRewrite {
			return e.errorPage(r, cfg, http.StatusNotFound)
		}
		fallbackURL, err := url.Parse(res.URL)
		if err != nil {
			return e.errorPage(r, cfg, http.StatusNotFound)
		}
		if file, ok = e.files.Resolve(fallbackURL.Path); !ok {
			return e.errorPage(r, cfg, http.StatusNotFound)
		}
		target = res.URL
	}

	var routeHeaders map[string]string
	if matched != nil {
		routeHeaders = matched.Headers
	}
	d := Decision{
		Kind:        KindStatic,
		URL:         target,
		File:        file,
		ContentType: ResolveMimeType(file, cfg.MimeTypes),
		Headers:     ComposeHeaders(cfg.GlobalHeaders, routeHeaders),
	}

	if cfg.HasResponseOverrides() {
		switch r.Method {
		case http.MethodHead:
			d.Kind = KindEmpty
			d.Status = http.StatusOK
		case http.MethodOptions:
			d.Kind = KindEmpty
			d.Status = http.StatusNoContent
			d.Allow = strings.Join(StaticMethods, ", ")
		}
	}
	return d
}

// errorPage builds the answer for an error status, honouring
// responseOverrides and falling back to the built-in pages.
func (e *Engine) errorPage(r *http.Request, cfg *swaconfig.Config, status int) Decision {
	ov := ApplyOverride(status, cfg, r.URL.RequestURI())
	if ov.IsRedirect() {
		return Decision{Kind: KindRedirect, Status: ov.Status, Location: ov.Location}
	}

	d := Decision{Kind: KindErrorPage, Status: ov.Status, ContentType: "text/html; charset=utf-8"}
	if ov.Page != "" {
		if e.opts.DevServer {
			d.Kind = KindDevServer
			d.URL = ov.Page
			return d
		}
		if file, ok := e.files.Resolve(ov.Page); ok {
			d.File = file
			d.URL = ov.CustomURL()
			return d
		}
		d.Status = http.StatusNotFound
		d.File = BuiltinErrorPage(http.StatusNotFound)
		d.Builtin = true
		return d
	}

	d.File = BuiltinErrorPage(status)
	d.Builtin = true
	return d
}

func (e *Engine) exists(p string) bool {
	_, ok := e.files.Resolve(p)
	return ok
}

// principalFor decodes the auth cookie only when the rule needs a role check.
func (e *Engine) principalFor(r *http.Request, matched *MatchedRoute) *model.ClientPrincipal {
	if matched == nil || len(matched.AllowedRoles) == 0 || e.principals == nil {
		return nil
	}
	p, err := e.principals.Principal(r)
	if err != nil {
		return nil
	}
	return p
}

// location shortens a same-origin absolute redirect to its path.
func (e *Engine) location(r *http.Request, abs string) string {
	u, err := url.Parse(abs)
	if err != nil || !u.IsAbs() {
		return abs
	}
	origin, err := url.Parse(Origin(r, e.opts.Protocol))
	if err != nil || !strings.EqualFold(u.Scheme, origin.Scheme) || !strings.EqualFold(u.Host, origin.Host) {
		return abs
	}
	loc := u.RequestURI()
	if u.Fragment != "" {
		loc += "#" + u.EscapedFragment()
	}
	return loc
}

func hasPrefixFold(s, prefix string) bool {
	return prefix != "" && len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
