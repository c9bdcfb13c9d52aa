package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

// CheckFunc reports the health of one dependency.
type CheckFunc func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	version   string
	startTime time.Time
	mu        sync.RWMutex
	ready     bool
	checks    map[string]CheckFunc
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// AddCheck registers a readiness check.
func (h *HealthHandler) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// SetReady marks the service as ready
func (h *HealthHandler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the ready status
func (h *HealthHandler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HandleHealth handles the /healthz endpoint (liveness probe)
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
	})
}

// HandleReady handles the /readyz endpoint (readiness probe)
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	allHealthy := true

	if !h.IsReady() {
		checks["startup"] = "not ready"
		allHealthy = false
	} else {
		checks["startup"] = "ok"
	}

	h.mu.RLock()
	registered := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		registered[name] = fn
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, fn := range registered {
		if err := fn(ctx); err != nil {
			checks[name] = err.Error()
			allHealthy = false
			continue
		}
		checks[name] = "ok"
	}

	response := HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks:    checks,
	}
	status := http.StatusOK
	if !allHealthy {
		response.Status = "not ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// RouteSummary describes one rule of the active configuration.
type RouteSummary struct {
	Route        string   `json:"route"`
	Methods      []string `json:"methods,omitempty"`
	Rewrite      string   `json:"rewrite,omitempty"`
	Redirect     string   `json:"redirect,omitempty"`
	StatusCode   int      `json:"statusCode,omitempty"`
	AllowedRoles []string `json:"allowedRoles,omitempty"`
}

// ConfigSummary is the /config admin answer.
type ConfigSummary struct {
	Path               string         `json:"path,omitempty"`
	Legacy             bool           `json:"legacy"`
	Routes             []RouteSummary `json:"routes"`
	NavigationFallback string         `json:"navigationFallback,omitempty"`
	ResponseOverrides  []string       `json:"responseOverrides,omitempty"`
	IdentityProviders  []string       `json:"identityProviders,omitempty"`
	RolesSource        string         `json:"rolesSource,omitempty"`
}

// Summarize reduces cfg to the parts worth showing an operator.
func Summarize(cfg *swaconfig.Config) ConfigSummary {
	if cfg == nil {
		cfg = swaconfig.Empty()
	}
	s := ConfigSummary{
		Path:        cfg.Path,
		Legacy:      cfg.IsLegacy,
		Routes:      make([]RouteSummary, 0, len(cfg.Routes)),
		RolesSource: cfg.RolesSource(),
	}
	for _, rt := range cfg.Routes {
		s.Routes = append(s.Routes, RouteSummary{
			Route:        rt.Route,
			Methods:      rt.Methods,
			Rewrite:      rt.Rewrite,
			Redirect:     rt.Redirect,
			StatusCode:   rt.StatusCode.Int(),
			AllowedRoles: rt.AllowedRoles,
		})
	}
	if cfg.NavigationFallback != nil {
		s.NavigationFallback = cfg.NavigationFallback.Rewrite
	}
	for code := range cfg.ResponseOverrides {
		s.ResponseOverrides = append(s.ResponseOverrides, code)
	}
	sort.Strings(s.ResponseOverrides)
	if cfg.Auth != nil {
		for name := range cfg.Auth.IdentityProviders {
			s.IdentityProviders = append(s.IdentityProviders, name)
		}
		sort.Strings(s.IdentityProviders)
	}
	return s
}

// ConfigHandler serves the summary of the active site configuration.
func ConfigHandler(configs ConfigSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg *swaconfig.Config
		if configs != nil {
			cfg = configs.Current()
		}
		writeJSON(w, http.StatusOK, Summarize(cfg))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
