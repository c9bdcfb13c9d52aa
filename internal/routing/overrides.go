package routing

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

// CustomURLScheme marks a rewrite to a user error page in the content root.
const CustomURLScheme = "swa://"

// referrerToken in an override redirect is replaced by the original request.
const referrerToken = ".referrer"

// OverrideResult is what responseOverrides does to an error response.
type OverrideResult struct {
	Status int
	// Location is set when the override redirects.
	Location string
	// Page is the content-root path of a custom error page, empty when the
	// built-in page applies.
	Page string
	// Applied is true when an override entry existed for the status.
	Applied bool
}

// CustomURL returns Page in its swa:// form.
func (o OverrideResult) CustomURL() string {
	if o.Page == "" {
		return ""
	}
	return CustomURLScheme + strings.TrimPrefix(o.Page, "/")
}

// IsRedirect reports whether the result is a redirect.
func (o OverrideResult) IsRedirect() bool {
	return o.Location != ""
}

// ApplyOverride resolves the responseOverrides entry for status. requestURI
// is the original path and query of the request. Codes outside 400, 401,
// 403 and 404 pass through untouched.
func ApplyOverride(status int, cfg *swaconfig.Config, requestURI string) OverrideResult {
	res := OverrideResult{Status: status}
	if !isOverridable(status) {
		return res
	}
	rule, ok := cfg.Override(status)
	if !ok {
		return res
	}
	res.Applied = true

	if code := rule.StatusCode.Int(); code != 0 {
		res.Status = code
	}

	if rule.Redirect != "" {
		res.Location = strings.ReplaceAll(rule.Redirect, referrerToken, escapeComponent(requestURI))
		if rule.StatusCode.Int() == http.StatusMovedPermanently {
			res.Status = http.StatusMovedPermanently
		} else {
			res.Status = http.StatusFound
		}
		return res
	}

	if rule.Rewrite != "" && rule.Rewrite != requestURI {
		// Auth and API targets are not servable as error pages.
		if strings.HasPrefix(rule.Rewrite, "/.auth") || strings.HasPrefix(rule.Rewrite, "/api") {
			return res
		}
		res.Page = "/" + strings.TrimPrefix(rule.Rewrite, "/")
	}
	return res
}

// BuiltinErrorPage returns the built-in page for status.
func BuiltinErrorPage(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return "/" + strconv.Itoa(status) + ".html"
	default:
		return "/404.html"
	}
}

func isOverridable(code int) bool {
	for _, c := range swaconfig.OverridableErrorCodes {
		if c == code {
			return true
		}
	}
	return false
}

// componentUnescapes restores the characters url.QueryEscape encodes but a
// URI component keeps literal.
var componentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent encodes s as a URI component: spaces become %20, and
// "?", "&" and "=" are escaped so s stays a single query value.
func escapeComponent(s string) string {
	return componentUnescapes.Replace(url.QueryEscape(s))
}
