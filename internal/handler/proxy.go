package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/dzerik/swa-emulator/internal/routing"
	"github.com/dzerik/swa-emulator/internal/service/crypto"
	"github.com/dzerik/swa-emulator/internal/service/session"
	"github.com/dzerik/swa-emulator/pkg/logger"
	"github.com/dzerik/swa-emulator/pkg/tracing"
)

// Headers added to requests forwarded to the API backends.
const (
	HeaderOriginalURL     = "x-ms-original-url"
	HeaderRequestID       = "x-ms-request-id"
	HeaderClientPrincipal = "X-MS-CLIENT-PRINCIPAL"
)

// Upstream names.
const (
	UpstreamAPI       = "api"
	UpstreamDataAPI   = "data-api"
	UpstreamDevServer = "dev-server"
)

type decisionKey struct{}

func withDecision(ctx context.Context, d routing.Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

func decisionFrom(ctx context.Context) (routing.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(routing.Decision)
	return d, ok
}

// ProxyConfig configures the upstream proxies. Empty URLs leave the
// corresponding upstream unset.
type ProxyConfig struct {
	APIURI       string
	DataAPIURI   string
	DevServerURI string
	Sessions     *session.Manager
	Bearer       *crypto.BearerMinter
	// Transport replaces the traced default transport.
	Transport http.RoundTripper
}

// Proxy forwards decisions to the API, Data API and dev server backends.
type Proxy struct {
	sessions  *session.Manager
	bearer    *crypto.BearerMinter
	upstreams map[string]*httputil.ReverseProxy
}

// NewProxy creates the upstream proxies.
func NewProxy(cfg ProxyConfig) (*Proxy, error) {
	transport := cfg.Transport
	if transport == nil {
		transport = tracing.RoundTripper(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		})
	}

	p := &Proxy{
		sessions:  cfg.Sessions,
		bearer:    cfg.Bearer,
		upstreams: make(map[string]*httputil.ReverseProxy),
	}
	for name, raw := range map[string]string{
		UpstreamAPI:       cfg.APIURI,
		UpstreamDataAPI:   cfg.DataAPIURI,
		UpstreamDevServer: cfg.DevServerURI,
	} {
		if raw == "" {
			continue
		}
		target, err := url.Parse(raw)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("invalid %s upstream URL %q", name, raw)
		}
		p.upstreams[name] = p.createProxy(name, target, transport)
	}
	return p, nil
}

// Has reports whether the named upstream is configured.
func (p *Proxy) Has(name string) bool {
	_, ok := p.upstreams[name]
	return ok
}

// createProxy builds the reverse proxy of one upstream. The path and query
// come from the decision, not the incoming request.
func (p *Proxy) createProxy(name string, target *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	keepHost := name != UpstreamDevServer
	return &httputil.ReverseProxy{
		Transport: transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			d, _ := decisionFrom(pr.In.Context())
			if u, err := url.ParseRequestURI(d.URL); err == nil {
				pr.Out.URL.Path = u.Path
				pr.Out.URL.RawPath = u.RawPath
				pr.Out.URL.RawQuery = u.RawQuery
			}
			pr.SetURL(target)
			pr.SetXForwarded()
			if keepHost {
				pr.Out.Host = pr.In.Host
				p.decorate(pr, d)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			d, _ := decisionFrom(resp.Request.Context())
			if d.Status != 0 && resp.StatusCode < http.StatusMultipleChoices {
				resp.StatusCode = d.Status
				resp.Status = fmt.Sprintf("%d %s", d.Status, http.StatusText(d.Status))
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log := logger.FromContext(r.Context()).With(
				logger.String("upstream", name),
				logger.String("target", target.String()),
				logger.String("path", r.URL.Path),
			)
			if errors.Is(err, context.Canceled) {
				log.Debug("client went away, upstream request aborted")
				return
			}
			log.Error("proxy error", logger.Err(err))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}
}

// decorate adds the headers API backends expect from the platform.
func (p *Proxy) decorate(pr *httputil.ProxyRequest, d routing.Decision) {
	out := pr.Out.Header

	if pr.In.Header.Get(HeaderOriginalURL) == "" && d.OriginalURL != "" {
		out.Set(HeaderOriginalURL, d.OriginalURL)
	}
	if id, err := crypto.GenerateRequestID(); err == nil {
		out.Set(HeaderRequestID, id)
	}

	// A principal header is only ever trusted from the emulator itself.
	out.Del(HeaderClientPrincipal)
	if p.sessions == nil {
		return
	}
	principal, err := p.sessions.Principal(pr.In)
	if err != nil {
		return
	}
	value, err := principal.HeaderValue()
	if err != nil {
		return
	}
	out.Set(HeaderClientPrincipal, value)

	if out.Get("Authorization") == "" && p.bearer != nil {
		token, err := p.bearer.Mint(principal.IdentityProvider, principal.UserID, principal.UserDetails, principal.UserRoles)
		if err != nil {
			logger.FromContext(pr.In.Context()).Warn("failed to mint bearer token", logger.Err(err))
			return
		}
		out.Set("Authorization", "Bearer "+token)
	}
}

// Serve forwards r to the named upstream as directed by d. A missing
// upstream answers 502.
func (p *Proxy) Serve(w http.ResponseWriter, r *http.Request, name string, d routing.Decision) {
	rp, ok := p.upstreams[name]
	if !ok {
		logger.FromContext(r.Context()).Warn("no upstream configured", logger.String("upstream", name))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	tracing.SetAttributes(r.Context(), tracing.AttrUpstream.String(name))
	rp.ServeHTTP(w, r.WithContext(withDecision(r.Context(), d)))
}
