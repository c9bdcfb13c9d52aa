package routing

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dzerik/swa-emulator/internal/model"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

// StaticMethods are the only methods accepted for static content.
var StaticMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}

// MatchedRoute is the rule selected for one request. Redirect, when set, is
// already resolved to an absolute URL.
type MatchedRoute struct {
	swaconfig.Route
	// Index is the position of the rule in the routes array.
	Index int
}

// StatusCode returns the rule's status code, zero when unset.
func (m *MatchedRoute) StatusCode() int {
	if m == nil {
		return 0
	}
	return m.Route.StatusCode.Int()
}

// RewriteTarget returns the rule's rewrite, empty when there is no match.
func (m *MatchedRoute) RewriteTarget() string {
	if m == nil {
		return ""
	}
	return m.Rewrite
}

// Origin returns "proto://host" for r.
func Origin(r *http.Request, proto string) string {
	return proto + "://" + r.Host
}

// AbsoluteURL resolves ref against "proto://host" of r.
func AbsoluteURL(r *http.Request, proto, ref string) (*url.URL, error) {
	base, err := url.Parse(Origin(r, proto) + "/")
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(u), nil
}

// IsFileRequest reports whether the path names a file by extension.
func IsFileRequest(p string) bool {
	return path.Ext(p) != ""
}

// IsAuthRequest reports whether the request targets the auth endpoints.
func IsAuthRequest(r *http.Request) bool {
	return strings.Contains(r.Host, "identity") || strings.HasPrefix(r.URL.Path, "/.auth")
}

// SelectRoute returns the first rule that matches r, or nil.
// A redirect rule that would send the request to its own URL is skipped and
// the search continues with the next rule.
func SelectRoute(r *http.Request, cfg *swaconfig.Config, proto string) *MatchedRoute {
	if cfg == nil || len(cfg.Routes) == 0 {
		return nil
	}

	requestURL, err := AbsoluteURL(r, proto, r.URL.RequestURI())
	if err != nil {
		return nil
	}
	reqPath := r.URL.Path
	isFile := IsFileRequest(reqPath)
	isAuth := IsAuthRequest(r)

	for i := range cfg.Routes {
		rule := &cfg.Routes[i]
		if rule.Route == "" {
			continue
		}

		var ok bool
		if cfg.IsLegacy {
			ok = matchLegacy(reqPath, rule, isAuth, isFile)
		} else {
			ok = MatchRoute(reqPath, rule, r.Method, rule.Methods, model.NoAuth)
		}
		if !ok {
			continue
		}

		if rule.Redirect == "" {
			return &MatchedRoute{Route: *rule, Index: i}
		}

		target, err := AbsoluteURL(r, proto, rule.Redirect)
		if err != nil {
			continue
		}
		if requestURL.String() == target.Path || requestURL.String() == target.String() {
			continue
		}

		matched := &MatchedRoute{Route: *rule, Index: i}
		matched.Redirect = target.String()
		return matched
	}
	return nil
}

// ValidMethod reports whether method may reach static content. Function,
// data-api and auth requests accept any method.
func ValidMethod(method string, exempt bool) bool {
	if exempt {
		return true
	}
	for _, m := range StaticMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Authorize reports whether principal may access the matched route.
// Rules without roles, or listing "anonymous", are open. Otherwise a
// principal is required and must share at least one role with the rule.
func Authorize(route *MatchedRoute, principal *model.ClientPrincipal, status model.AuthStatus) bool {
	if route == nil {
		return true
	}
	roles := route.AllowedRoles
	if len(roles) == 0 {
		return true
	}
	if status == model.HostNameAuthLogin || containsFold(roles, model.RoleAnonymous) {
		return true
	}
	if principal == nil {
		return false
	}

	p := *principal
	p.UserRoles = append([]string(nil), principal.UserRoles...)
	p.EnsureBaselineRoles()
	return model.RolesIntersect(p.UserRoles, roles)
}
