package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dzerik/swa-emulator/internal/model"
	"github.com/dzerik/swa-emulator/internal/routing"
	"github.com/dzerik/swa-emulator/internal/service/crypto"
	"github.com/dzerik/swa-emulator/internal/service/idp"
	"github.com/dzerik/swa-emulator/internal/service/session"
	"github.com/dzerik/swa-emulator/internal/service/state"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
	"github.com/dzerik/swa-emulator/internal/ui"
	"github.com/dzerik/swa-emulator/pkg/logger"
	"github.com/dzerik/swa-emulator/pkg/tracing"
)

// Messages returned as plain text by the login flow.
const (
	msgInvalidLogin = "Invalid login request"
	msgLoginTimeout = "Login timed out. Please try again."
)

// ErrMissingHost is returned by logout when the request names no host to
// redirect back to.
var ErrMissingHost = errors.New("missing host header")

// AuthRecorder receives auth endpoint metrics. *metrics.Metrics satisfies it.
type AuthRecorder interface {
	RecordAuthRequest(provider, authType, status string)
}

// authKind names an auth endpoint.
type authKind string

const (
	authLogin    authKind = "login"
	authCallback authKind = "callback"
	authMe       authKind = "me"
	authLogout   authKind = "logout"
	authPurge    authKind = "purge"
	authComplete authKind = "complete"
)

type authRoute struct {
	kind    authKind
	methods []string
	pattern *regexp.Regexp
}

// authRoutes is matched in order against the routed path. Callback comes
// before login because the login pattern would otherwise swallow it.
var authRoutes = []authRoute{
	{authCallback, []string{http.MethodGet, http.MethodPost}, regexp.MustCompile(`(?i)^/\.auth/login/([^/]+)/callback/?$`)},
	{authLogin, []string{http.MethodGet, http.MethodPost}, regexp.MustCompile(`(?i)^/\.auth/login/([^/]+)/?$`)},
	{authMe, []string{http.MethodGet}, regexp.MustCompile(`(?i)^/\.auth/me/?$`)},
	{authLogout, []string{http.MethodGet}, regexp.MustCompile(`(?i)^/\.auth/logout/?$`)},
	{authPurge, []string{http.MethodGet}, regexp.MustCompile(`(?i)^/\.auth/purge/([^/]+)/?$`)},
	{authComplete, []string{http.MethodPost}, regexp.MustCompile(`(?i)^/\.auth/complete/?$`)},
}

// matchAuthRoute finds the endpoint serving method and path.
func matchAuthRoute(method, path string) (authKind, []string, bool) {
	for _, rt := range authRoutes {
		m := rt.pattern.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		if !slices.Contains(rt.methods, method) {
			continue
		}
		return rt.kind, m[1:], true
	}
	return "", nil, false
}

// authRequest is the input of one auth endpoint.
type authRequest struct {
	r *http.Request
	// url is the routed URL: the rewrite target when a rule rewrote the
	// request, the request URL otherwise.
	url    *url.URL
	params []string
	cfg    *swaconfig.Config
}

func (req *authRequest) param(i int) string {
	if i < len(req.params) {
		return req.params[i]
	}
	return ""
}

// values merges the routed query with a POSTed form.
func (req *authRequest) values() url.Values {
	v := req.url.Query()
	if req.r.Method == http.MethodPost {
		if err := req.r.ParseForm(); err == nil {
			for k, vals := range req.r.PostForm {
				if _, ok := v[k]; !ok {
					v[k] = vals
				}
			}
		}
	}
	return v
}

// authResponse collects what an endpoint wants written. Nothing touches the
// ResponseWriter until the envelope is applied.
type authResponse struct {
	status  int
	headers http.Header
	cookies session.Ops
	// body is written as is when []byte or string, JSON-encoded otherwise.
	body any
}

func newAuthResponse() *authResponse {
	return &authResponse{status: http.StatusOK, headers: make(http.Header)}
}

func (res *authResponse) text(status int, msg string) *authResponse {
	res.status = status
	res.headers.Set("Content-Type", "text/plain; charset=utf-8")
	res.body = msg
	return res
}

func (res *authResponse) html(status int, body []byte) *authResponse {
	res.status = status
	res.headers.Set("Content-Type", "text/html; charset=utf-8")
	res.body = body
	return res
}

func (res *authResponse) redirect(location string) *authResponse {
	res.status = http.StatusFound
	res.headers.Set("Location", location)
	return res
}

type meResponse struct {
	ClientPrincipal *model.ClientPrincipal `json:"clientPrincipal"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// AuthHandler serves the /.auth endpoints.
type AuthHandler struct {
	sessions *session.Manager
	idp      *idp.Client
	nonces   state.Store
	pages    *ui.Pages
	env      idp.Env
	nonceTTL time.Duration
	protocol string
	apiURI   string
	metrics  AuthRecorder
	now      func() time.Time
}

// NewAuthHandler creates an auth handler. sessions and pages are required.
func NewAuthHandler(sessions *session.Manager, pages *ui.Pages, opts ...AuthHandlerOption) *AuthHandler {
	h := &AuthHandler{
		sessions: sessions,
		pages:    pages,
		env:      os.LookupEnv,
		nonceTTL: crypto.DefaultNonceTTL,
		protocol: "http",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Process dispatches r to the auth endpoint named by target, the routed
// request URI, and writes the response. It returns the status written.
func (h *AuthHandler) Process(w http.ResponseWriter, r *http.Request, target string, cfg *swaconfig.Config) int {
	if cfg == nil {
		cfg = swaconfig.Empty()
	}
	ctx := r.Context()

	routed, err := url.ParseRequestURI(target)
	if err != nil {
		routed = r.URL
	}

	kind, params, ok := matchAuthRoute(r.Method, routed.Path)
	if !ok {
		res := newAuthResponse()
		res.status = http.StatusNotFound
		return h.write(w, r, res)
	}

	req := &authRequest{r: r, url: routed, params: params, cfg: cfg}
	provider := idp.Normalize(req.param(0))
	tracing.SetAttributes(ctx, tracing.WithProvider(provider))

	res, err := h.handle(ctx, kind, req)
	if err != nil {
		logger.FromContext(ctx).Error("auth request failed",
			logger.String("endpoint", string(kind)),
			logger.String("provider", provider),
			logger.Err(err),
		)
		res = newAuthResponse()
		res.status = http.StatusInternalServerError
		res.body = errorResponse{Error: err.Error()}
	}

	if h.metrics != nil {
		h.metrics.RecordAuthRequest(provider, string(kind), strconv.Itoa(res.status))
	}
	return h.write(w, r, res)
}

func (h *AuthHandler) handle(ctx context.Context, kind authKind, req *authRequest) (*authResponse, error) {
	switch kind {
	case authLogin:
		return h.login(req)
	case authCallback:
		return h.callback(ctx, req)
	case authMe:
		return h.me(req)
	case authLogout, authPurge:
		return h.logout(req)
	case authComplete:
		return h.complete(req)
	}
	return nil, fmt.Errorf("unhandled auth endpoint %q", kind)
}

// write applies the response envelope: endpoint headers, queued cookies,
// CORS headers and a JSON default content type.
func (h *AuthHandler) write(w http.ResponseWriter, r *http.Request, res *authResponse) int {
	hdr := w.Header()
	for k, v := range res.headers {
		hdr[k] = v
	}
	res.cookies.Apply(w)

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	} else {
		hdr.Add("Vary", "Origin")
	}
	hdr.Set("Access-Control-Allow-Origin", origin)
	hdr.Set("Access-Control-Allow-Methods", "GET,OPTIONS")
	hdr.Set("Access-Control-Allow-Credentials", "true")
	if hdr.Get("Content-Type") == "" {
		hdr.Set("Content-Type", "application/json")
	}

	var body []byte
	switch b := res.body.(type) {
	case nil:
	case []byte:
		body = b
	case string:
		body = []byte(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to encode auth response", logger.Err(err))
			res.status = http.StatusInternalServerError
			data, _ = json.Marshal(errorResponse{Error: err.Error()})
		}
		body = data
	}

	w.WriteHeader(res.status)
	if len(body) > 0 && r.Method != http.MethodHead {
		w.Write(body)
	}
	return res.status
}

// login starts a login. Providers with a registration in the configuration
// go through the OAuth flow; the others get the mock login form.
func (h *AuthHandler) login(req *authRequest) (*authResponse, error) {
	provider := idp.Normalize(req.param(0))
	res := newAuthResponse()
	if !idp.IsLoginProvider(provider) {
		res.status = http.StatusNotFound
		return res, nil
	}

	if _, ok := req.cfg.Provider(provider); !ok {
		h.sessions.DeleteAuthContext(&res.cookies)
		return res.html(http.StatusOK, h.pages.MockLogin(req.r.URL.RequestURI())), nil
	}

	if h.idp == nil {
		return nil, errors.New("no identity provider client configured")
	}
	def, creds, err := idp.ResolveCredentials(provider, req.cfg, h.env)
	if err != nil {
		return setupFailure(res, err)
	}

	nonce := crypto.NewNonceAt(h.now(), h.nonceTTL)
	ac := &model.AuthContext{
		AuthNonce:            nonce,
		PostLoginRedirectURI: h.postLoginRedirect(req.r),
	}
	if err := h.sessions.SetAuthContext(&res.cookies, ac); err != nil {
		return nil, err
	}
	return res.redirect(h.idp.AuthCodeURL(def, creds, h.sessions.Codec().HashState(nonce))), nil
}

// callback completes the OAuth flow started by login.
func (h *AuthHandler) callback(ctx context.Context, req *authRequest) (*authResponse, error) {
	provider := idp.Normalize(req.param(0))
	res := newAuthResponse()
	if _, ok := idp.Lookup(provider); !ok {
		return res.text(http.StatusBadRequest, fmt.Sprintf("Provider '%s' not found", provider)), nil
	}

	ac, err := h.sessions.AuthContext(req.r)
	if err != nil {
		return res.text(http.StatusUnauthorized, msgInvalidLogin), nil
	}
	query := req.values()
	if !h.sessions.Codec().VerifyState(ac.AuthNonce, query.Get("state")) {
		return res.text(http.StatusUnauthorized, msgInvalidLogin), nil
	}
	if crypto.IsNonceExpiredAt(ac.AuthNonce, h.now()) {
		return res.text(http.StatusUnauthorized, msgLoginTimeout), nil
	}

	if h.nonces != nil {
		expiresAt, _ := crypto.NonceExpiry(ac.AuthNonce)
		if err := h.nonces.Consume(ctx, ac.AuthNonce, expiresAt); err != nil {
			if errors.Is(err, state.ErrNonceReused) {
				return res.text(http.StatusUnauthorized, msgInvalidLogin), nil
			}
			return nil, fmt.Errorf("failed to record login nonce: %w", err)
		}
	}

	if h.idp == nil {
		return nil, errors.New("no identity provider client configured")
	}
	def, creds, err := idp.ResolveCredentials(provider, req.cfg, h.env)
	if err != nil {
		return setupFailure(res, err)
	}

	code := query.Get("code")
	if code == "" {
		return res.text(http.StatusUnauthorized, msgInvalidLogin), nil
	}

	h.sessions.DeleteAuthContext(&res.cookies)

	principal, err := h.idp.Principal(ctx, def, creds, code)
	if err != nil {
		logger.FromContext(ctx).Warn("login failed",
			logger.String("provider", provider),
			logger.Err(err),
		)
		return res.text(http.StatusUnauthorized, fmt.Sprintf("Login failed for '%s' provider", provider)), nil
	}

	if source := req.cfg.RolesSource(); source != "" && h.apiURI != "" {
		roles, err := h.idp.Roles(ctx, h.apiURI, source, principal)
		if err != nil {
			logger.FromContext(ctx).Debug("roles source call failed, keeping default roles",
				logger.String("rolesSource", source),
				logger.Err(err),
			)
		} else {
			principal.AddRoles(roles...)
		}
	}

	if err := h.sessions.SetPrincipal(&res.cookies, principal); err != nil {
		return nil, err
	}

	location := ac.PostLoginRedirectURI
	if location == "" {
		location = "/"
	}
	return res.redirect(location), nil
}

// me reports the signed-in principal. It always answers 200.
func (h *AuthHandler) me(req *authRequest) (*authResponse, error) {
	res := newAuthResponse()
	p, err := h.sessions.Principal(req.r)
	if err != nil {
		res.body = meResponse{}
		return res, nil
	}
	p.EnsureBaselineRoles()
	res.body = meResponse{ClientPrincipal: p}
	return res, nil
}

// logout clears the auth cookie and redirects back to the site.
func (h *AuthHandler) logout(req *authRequest) (*authResponse, error) {
	r := req.r
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		return nil, ErrMissingHost
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = h.protocol
	}
	origin := proto + "://" + host

	location := sameOriginURL(origin, req.values().Get("post_logout_redirect_uri"))
	if location == "" {
		location = origin + "/"
	}

	res := newAuthResponse()
	h.sessions.DeletePrincipal(&res.cookies)
	return res.redirect(location), nil
}

// complete signs the identity typed into the mock login form.
func (h *AuthHandler) complete(req *authRequest) (*authResponse, error) {
	res := newAuthResponse()
	if err := req.r.ParseForm(); err != nil {
		return res.text(http.StatusBadRequest, "Invalid login form"), nil
	}
	form := req.r.PostForm

	provider := idp.Normalize(strings.TrimSpace(form.Get("identityProvider")))
	if !idp.IsLoginProvider(provider) {
		return res.text(http.StatusBadRequest, fmt.Sprintf("Provider '%s' not found", provider)), nil
	}
	userDetails := strings.TrimSpace(form.Get("userDetails"))
	if userDetails == "" {
		return res.text(http.StatusBadRequest, "userDetails is required"), nil
	}

	userID := strings.TrimSpace(form.Get("userId"))
	if userID == "" {
		id, err := crypto.GenerateRandomHex(16)
		if err != nil {
			return nil, err
		}
		userID = id
	}

	p := &model.ClientPrincipal{
		IdentityProvider: provider,
		UserID:           userID,
		UserDetails:      userDetails,
		UserRoles:        []string{model.RoleAnonymous, model.RoleAuthenticated},
	}
	p.AddRoles(model.ParseRoles(form.Get("userRoles"))...)

	if raw := strings.TrimSpace(form.Get("claims")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Claims); err != nil {
			return res.text(http.StatusBadRequest, "claims must be a JSON array of {typ, val} objects"), nil
		}
	}

	if err := h.sessions.SetPrincipal(&res.cookies, p); err != nil {
		return nil, err
	}
	h.sessions.DeleteAuthContext(&res.cookies)

	redirect := sameOriginURL(routing.Origin(req.r, h.protocol), form.Get("post_login_redirect_uri"))
	if redirect == "" {
		redirect = "/"
	}
	page, err := h.pages.Complete(redirect)
	if err != nil {
		return nil, err
	}
	return res.html(http.StatusOK, page), nil
}

// postLoginRedirect reads post_login_redirect_uri from the URL the browser
// asked for, which may differ from the rewritten one.
func (h *AuthHandler) postLoginRedirect(r *http.Request) string {
	return sameOriginURL(routing.Origin(r, h.protocol), r.URL.Query().Get("post_login_redirect_uri"))
}

// sameOriginURL resolves target against origin. Relative paths are made
// absolute; absolute URLs are kept only when they point at origin. Anything
// else yields "".
func sameOriginURL(origin, target string) string {
	if target == "" {
		return ""
	}
	if strings.HasPrefix(target, "/") {
		if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
			return ""
		}
		return origin + target
	}

	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() {
		return ""
	}
	o, err := url.Parse(origin)
	if err != nil || !strings.EqualFold(u.Scheme, o.Scheme) || !strings.EqualFold(u.Host, o.Host) {
		return ""
	}
	return target
}

// setupFailure turns a provider setup problem into a 400.
func setupFailure(res *authResponse, err error) (*authResponse, error) {
	var se *idp.SetupError
	if errors.As(err, &se) {
		return res.text(http.StatusBadRequest, se.Message), nil
	}
	return nil, err
}
