package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/handler"
	"github.com/dzerik/swa-emulator/internal/schema"
	"github.com/dzerik/swa-emulator/internal/service/metrics"
	"github.com/dzerik/swa-emulator/internal/service/security"
	"github.com/dzerik/swa-emulator/pkg/logger"
	"github.com/dzerik/swa-emulator/pkg/resilience/circuitbreaker"
	"github.com/dzerik/swa-emulator/pkg/resilience/ratelimit"
	"github.com/dzerik/swa-emulator/pkg/tracing"
)

// RouterDeps contains dependencies for the site router.
type RouterDeps struct {
	Config     *config.Config
	Metrics    *metrics.Metrics
	Tracer     *tracing.TracerProvider
	Limiter    *ratelimit.Limiter
	Dispatcher http.Handler
}

// SetupRouter creates the user-facing router. Every path ends up in the
// dispatcher; /.auth additionally gets CORS handling.
func SetupRouter(deps *RouterDeps) chi.Router {
	r := chi.NewRouter()

	applyGlobalMiddleware(r, deps)

	registerAuthRoutes(r, deps)
	r.Handle("/*", deps.Dispatcher)

	return r
}

// applyGlobalMiddleware applies middleware stack to router.
func applyGlobalMiddleware(r chi.Router, deps *RouterDeps) {
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	if deps.Tracer != nil {
		r.Use(tracing.Middleware)
	}

	r.Use(logger.RequestLogger)
	r.Use(logger.RecoveryLogger)

	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	if deps.Limiter != nil {
		r.Use(deps.Limiter.Middleware())
	}
}

// registerAuthRoutes mounts the auth endpoints behind CORS. Preflight
// requests are answered here; everything else reaches the dispatcher.
func registerAuthRoutes(r chi.Router, deps *RouterDeps) {
	r.Route("/.auth", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowOriginFunc:  func(*http.Request, string) bool { return true },
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Handle("/*", deps.Dispatcher)
	})
}

// AdminDeps contains dependencies for the admin router.
type AdminDeps struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Health   *handler.HealthHandler
	Configs  handler.ConfigSource
	Breakers *circuitbreaker.Manager
	Warnings []security.Warning
}

// SetupAdminRouter creates the router of the admin listener.
func SetupAdminRouter(deps *AdminDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(logger.RecoveryLogger)

	r.Get("/healthz", deps.Health.HandleHealth)
	r.Get("/readyz", deps.Health.HandleReady)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	r.Handle("/log/level", logger.LevelHandler())
	r.Get("/config", handler.ConfigHandler(deps.Configs))
	r.Get("/schema/{type}", handleSchema)
	r.Get("/info", makeInfoHandler(deps))

	return r
}

// handleSchema returns one of the JSON schemas.
func handleSchema(w http.ResponseWriter, r *http.Request) {
	st, ok := schema.ParseSchemaType(chi.URLParam(r, "type"))
	if !ok {
		http.Error(w, "unknown schema", http.StatusNotFound)
		return
	}
	data, err := schema.NewGenerator().Generate(st)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// makeInfoHandler reports build info, breaker states and startup warnings.
func makeInfoHandler(deps *AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		cfg := deps.Config
		info := map[string]interface{}{
			"version":    Version,
			"build_time": BuildTime,
			"origin":     cfg.PublicOrigin(),
			"dev_server": cfg.App.IsDevServer(),
			"api":        cfg.API.URI,
			"data_api":   cfg.API.DataAPIURI,
			"warnings":   deps.Warnings,
		}
		if deps.Breakers != nil {
			info["circuit_breakers"] = deps.Breakers.States()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}
}
