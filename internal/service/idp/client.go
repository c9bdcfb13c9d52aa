package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/model"
	"github.com/dzerik/swa-emulator/pkg/logger"
	"github.com/dzerik/swa-emulator/pkg/resilience/circuitbreaker"
	"github.com/dzerik/swa-emulator/pkg/tracing"
)

// DefaultTimeout bounds every call to a provider or the roles source.
const DefaultTimeout = 10 * time.Second

// UserAgent is sent on user-info requests; GitHub rejects requests without one.
const UserAgent = "Azure Static Web Apps Emulator"

// maxBody caps provider responses read into memory.
const maxBody = 1 << 20

// Recorder receives per-call metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordIdPRequest(provider, operation, status string, seconds float64)
}

// Options configures a Client.
type Options struct {
	// RedirectBase is the public origin the callback URL hangs off.
	RedirectBase string
	// Endpoints overrides built-in provider endpoints by provider name.
	Endpoints map[string]config.ProviderEndpoints
	Timeout   time.Duration
	Breakers  *circuitbreaker.Manager
	Metrics   Recorder
	// HTTPClient replaces the traced default client.
	HTTPClient *http.Client
}

// Client performs the OAuth code flow against the catalogue providers.
type Client struct {
	redirectBase string
	endpoints    map[string]config.ProviderEndpoints
	http         *http.Client
	breakers     *circuitbreaker.Manager
	metrics      Recorder
}

// NewClient creates a provider client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = tracing.Client(&http.Client{Timeout: timeout})
	}
	return &Client{
		redirectBase: opts.RedirectBase,
		endpoints:    opts.Endpoints,
		http:         hc,
		breakers:     opts.Breakers,
		metrics:      opts.Metrics,
	}
}

// Definition returns the provider definition with endpoint overrides applied.
func (c *Client) Definition(def Definition) Definition {
	if ep, ok := c.endpoints[def.Name]; ok {
		return def.withEndpoints(ep)
	}
	return def
}

// CallbackURL is the redirect_uri registered with the provider.
func (c *Client) CallbackURL(provider string) string {
	return c.redirectBase + "/.auth/login/" + provider + "/callback"
}

func (c *Client) oauth2Config(def Definition, creds Credentials) *oauth2.Config {
	def = c.Definition(def)
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  c.CallbackURL(def.Name),
		Scopes:       def.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   def.authorizeURL(creds),
			TokenURL:  def.tokenURL(creds),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the authorize redirect carrying state.
func (c *Client) AuthCodeURL(def Definition, creds Credentials, state string) string {
	return c.oauth2Config(def, creds).AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, def Definition, creds Credentials, code string) (string, error) {
	cfg := c.oauth2Config(def, creds)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	return observe(ctx, c, def.Name, "token", func(ctx context.Context) (string, error) {
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
			var rerr *oauth2.RetrieveError
			if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < http.StatusInternalServerError {
				return "", circuitbreaker.Rejected(wrapped)
			}
			return "", wrapped
		}
		if tok.AccessToken == "" {
			return "", circuitbreaker.Rejected(ErrNoAccessToken)
		}
		return tok.AccessToken, nil
	})
}

// UserInfo fetches the provider's user document.
func (c *Client) UserInfo(ctx context.Context, def Definition, accessToken string) (gjson.Result, error) {
	endpoint := c.Definition(def).UserInfoURL

	return observe(ctx, c, def.Name, "userinfo", func(ctx context.Context) (gjson.Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("%w: %v", ErrUserInfoFailed, err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "application/json")

		body, status, err := c.do(req)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("%w: %v", ErrUserInfoFailed, err)
		}
		if status >= http.StatusInternalServerError {
			return gjson.Result{}, fmt.Errorf("%w: status %d", ErrUserInfoFailed, status)
		}
		if status >= http.StatusBadRequest {
			return gjson.Result{}, circuitbreaker.Rejected(fmt.Errorf("%w: status %d", ErrUserInfoFailed, status))
		}
		if !gjson.ValidBytes(body) {
			return gjson.Result{}, fmt.Errorf("%w: invalid JSON", ErrUserInfoFailed)
		}
		user := gjson.ParseBytes(body)
		if !user.IsObject() {
			return gjson.Result{}, fmt.Errorf("%w: not an object", ErrUserInfoFailed)
		}
		return user, nil
	})
}

// Principal runs the whole callback exchange and maps the result.
func (c *Client) Principal(ctx context.Context, def Definition, creds Credentials, code string) (*model.ClientPrincipal, error) {
	token, err := c.Exchange(ctx, def, creds, code)
	if err != nil {
		return nil, err
	}
	user, err := c.UserInfo(ctx, def, token)
	if err != nil {
		return nil, err
	}
	return MapPrincipal(def, creds, user), nil
}

// Roles posts the tentative principal to the roles source on the API target
// and returns the roles it answers with.
func (c *Client) Roles(ctx context.Context, apiURI, rolesSource string, p *model.ClientPrincipal) ([]string, error) {
	target, err := rolesSourceURL(apiURI, rolesSource)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRolesSourceFailed, err)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRolesSourceFailed, err)
	}

	return observe(ctx, c, "roles-source", "roles", func(ctx context.Context) ([]string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRolesSourceFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")

		body, status, err := c.do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRolesSourceFailed, err)
		}
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			return nil, circuitbreaker.Rejected(fmt.Errorf("%w: status %d", ErrRolesSourceFailed, status))
		}
		if status >= http.StatusInternalServerError || !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("%w: status %d", ErrRolesSourceFailed, status)
		}

		var roles []string
		for _, r := range gjson.GetBytes(body, "roles").Array() {
			if s := r.String(); s != "" {
				roles = append(roles, s)
			}
		}
		return roles, nil
	})
}

// rolesSourceURL joins the roles path onto the API target. "localhost" is
// pinned to 127.0.0.1 so IPv6-first resolvers do not miss a v4-only API.
func rolesSourceURL(apiURI, rolesSource string) (string, error) {
	u, err := url.Parse(apiURI)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid api uri %q", apiURI)
	}
	port := u.Port()
	if u.Hostname() == "localhost" {
		u.Host = "127.0.0.1"
		if port != "" {
			u.Host = net.JoinHostPort(u.Host, port)
		}
	}
	ref, err := url.Parse(rolesSource)
	if err != nil {
		return "", err
	}
	u.Path = ref.Path
	u.RawPath = ""
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// observe wraps fn with the provider's breaker, metrics and a debug log.
func observe[T any](ctx context.Context, c *Client, provider, operation string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	res, err := circuitbreaker.Execute(ctx, c.breakers, "idp."+provider, fn)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "failure"
		logger.FromContext(ctx).Debug("identity provider call failed",
			zap.String("provider", provider),
			zap.String("operation", operation),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
	if c.metrics != nil {
		c.metrics.RecordIdPRequest(provider, operation, status, elapsed.Seconds())
	}
	return res, err
}
