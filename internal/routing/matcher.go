// Package routing decides what happens to a request: which rule applies,
// whether it is redirected, rewritten, refused or served, and which headers
// go with the answer. Everything here is a pure function of the request and
// an immutable configuration snapshot.
package routing

import (
	"strings"

	"github.com/dzerik/swa-emulator/internal/glob"
	"github.com/dzerik/swa-emulator/internal/model"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

// IndexHTML returns the directory-index alternate of p. Paths that already
// name a file are returned unchanged.
func IndexHTML(p string) string {
	lower := strings.ToLower(p)
	if strings.HasSuffix(lower, "index.html") || strings.Contains(p, ".") {
		return p
	}
	if strings.HasSuffix(p, "/") {
		return p + "index.html"
	}
	return p + "/index.html"
}

// MatchRoute reports whether path is governed by rule.
//
// Only NoAuth and HostNameAuthLogin requests take part in matching, and a
// login rewrite never matches wildcard rules or rules restricted by role.
// methods filters by request method when non-nil. A path that does not match
// directly is retried with its index.html alternate.
func MatchRoute(path string, rule *swaconfig.Route, method string, methods []string, status model.AuthStatus) bool {
	if rule == nil {
		return false
	}
	return matchRule(path, rule.Route, patternOf(rule), len(rule.AllowedRoles) > 0, method, methods, status)
}

func matchRule(path, route string, pat glob.Pattern, hasRoles bool, method string, methods []string, status model.AuthStatus) bool {
	wildcard := strings.Contains(route, "*")

	if !status.AllowsRouteMatching() {
		return false
	}
	if status == model.HostNameAuthLogin && (wildcard || hasRoles) {
		return false
	}

	if methods != nil && !containsFold(methods, method) {
		return false
	}

	if route == "" {
		return false
	}
	if route == path || (wildcard && pat.Match(path)) {
		return true
	}

	alt := IndexHTML(path)
	return route == alt || (wildcard && pat.Match(alt))
}

// matchLegacy implements routes.json matching: any wildcard rule matches a
// non-auth request, and only non-file requests try the index.html alternate.
func matchLegacy(path string, rule *swaconfig.Route, isAuth, isFile bool) bool {
	wildcard := rule.HasWildcard()
	if rule.Route == path || (!isAuth && wildcard) {
		return true
	}
	if isFile {
		return false
	}
	return rule.Route == IndexHTML(path)
}

// patternOf returns the compiled glob for rule, parsing it when the rule was
// built outside the loader.
func patternOf(rule *swaconfig.Route) glob.Pattern {
	p := rule.Pattern()
	if p.Raw() != rule.Route {
		p, _ = glob.Parse(rule.Route)
	}
	return p
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// patternAt returns the compiled exclusion at i, parsing raw when the
// configuration was not compiled.
func patternAt(compiled []glob.Pattern, i int, raw string) glob.Pattern {
	if i < len(compiled) && compiled[i].Raw() == raw {
		return compiled[i]
	}
	p, _ := glob.Parse(raw)
	return p
}
