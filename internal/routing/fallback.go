package routing

import (
	"net/http"
	"strings"

	"github.com/dzerik/swa-emulator/internal/model"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

// FallbackOutcome is the navigation fallback verdict for a path.
type FallbackOutcome int

const (
	// FallbackSkip means the fallback does not apply to the path.
	FallbackSkip FallbackOutcome = iota
	// FallbackRewrite serves the fallback document instead of the path.
	FallbackRewrite
	// FallbackKeep serves the path as requested.
	FallbackKeep
	// FallbackNotFound answers 404.
	FallbackNotFound
)

var fallbackOutcomeNames = [...]string{"skip", "rewrite", "keep", "not-found"}

func (o FallbackOutcome) String() string {
	if o >= 0 && int(o) < len(fallbackOutcomeNames) {
		return fallbackOutcomeNames[o]
	}
	return "unknown"
}

// FallbackResult carries the outcome and, for rewrites, the target URL.
type FallbackResult struct {
	Outcome FallbackOutcome
	URL     string
}

// Status returns the HTTP status implied by the outcome, zero when the
// response status is left to the server.
func (r FallbackResult) Status() int {
	if r.Outcome == FallbackNotFound {
		return http.StatusNotFound
	}
	return 0
}

// FallbackTarget returns the rewrite target with a leading slash.
func FallbackTarget(nf *swaconfig.NavigationFallback) string {
	if nf == nil || nf.Rewrite == "" {
		return ""
	}
	if !strings.HasPrefix(nf.Rewrite, "/") {
		return "/" + nf.Rewrite
	}
	return nf.Rewrite
}

// IsExcluded reports whether path matches one of the fallback exclusions.
// Exclusions are matched like route rules, index.html alternate included.
func IsExcluded(path string, nf *swaconfig.NavigationFallback) bool {
	if nf == nil || path == "" {
		return false
	}
	excludes := nf.Excludes()
	for i, raw := range nf.Exclude {
		pat := patternAt(excludes, i, raw)
		if matchRule(path, raw, pat, false, "", nil, model.NoAuth) {
			return true
		}
	}
	return false
}

// ResolveFallback applies the navigation fallback to path. exists reports
// whether a path is present in the content root.
//
//  1. no exclusions: rewrite
//  2. file exists, excluded: keep
//  3. file missing, excluded: 404
//  4. file exists, not excluded: rewrite
//  5. file missing, not excluded: rewrite
func ResolveFallback(path string, nf *swaconfig.NavigationFallback, exists func(string) bool) FallbackResult {
	if strings.HasPrefix(path, "/.auth") {
		return FallbackResult{Outcome: FallbackSkip}
	}
	target := FallbackTarget(nf)
	if target == "" {
		return FallbackResult{Outcome: FallbackSkip}
	}

	if len(nf.Exclude) == 0 {
		return FallbackResult{Outcome: FallbackRewrite, URL: target}
	}

	found := exists(IndexHTML(path))
	excluded := IsExcluded(path, nf)

	switch {
	case found && excluded:
		return FallbackResult{Outcome: FallbackKeep, URL: path}
	case !found && excluded:
		return FallbackResult{Outcome: FallbackNotFound}
	default:
		return FallbackResult{Outcome: FallbackRewrite, URL: target}
	}
}
