// Package ratelimit throttles the login endpoints with ulule/limiter so a
// runaway script cannot hammer the emulated identity providers.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/dzerik/swa-emulator/pkg/logger"
)

// Config holds rate limiting configuration.
type Config struct {
	// Enabled enables rate limiting
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Rate is "<requests>-<period>", e.g. "30-S" or "500-M".
	Rate string `yaml:"rate" mapstructure:"rate"`
	// Paths lists the path prefixes that are limited. Empty limits everything.
	Paths []string `yaml:"paths" mapstructure:"paths"`
	// PathRates overrides Rate for specific prefixes.
	PathRates map[string]string `yaml:"path_rates" mapstructure:"path_rates"`
	// TrustForwardedFor keys clients by X-Forwarded-For when present.
	TrustForwardedFor bool `yaml:"trust_forwarded_for" mapstructure:"trust_forwarded_for"`
	// Headers configuration for rate limit response headers
	Headers HeadersConfig `yaml:"headers" mapstructure:"headers"`
}

// HeadersConfig holds rate limit headers configuration.
type HeadersConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	LimitHeader     string `yaml:"limit_header" mapstructure:"limit_header"`
	RemainingHeader string `yaml:"remaining_header" mapstructure:"remaining_header"`
	ResetHeader     string `yaml:"reset_header" mapstructure:"reset_header"`
}

// DefaultConfig returns default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Rate:    "30-S",
		Paths:   []string{"/.auth/login", "/.auth/complete"},
		Headers: HeadersConfig{
			Enabled:         true,
			LimitHeader:     "X-RateLimit-Limit",
			RemainingHeader: "X-RateLimit-Remaining",
			ResetHeader:     "X-RateLimit-Reset",
		},
	}
}

type pathLimiter struct {
	prefix   string
	instance *limiter.Limiter
}

// Limiter applies one shared in-memory store to several rates.
type Limiter struct {
	cfg      Config
	instance *limiter.Limiter
	byPath   []pathLimiter
}

// NewLimiter creates a limiter. An invalid Rate is an error; an invalid
// per-path rate is logged and that prefix falls back to Rate.
func NewLimiter(cfg Config) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, err
	}

	store := memory.NewStore()
	l := &Limiter{
		cfg:      cfg,
		instance: limiter.New(store, rate),
	}

	for prefix, formatted := range cfg.PathRates {
		r, err := limiter.NewRateFromFormatted(formatted)
		if err != nil {
			logger.Warn("invalid path rate, using default",
				zap.String("prefix", prefix),
				zap.String("rate", formatted),
				zap.Error(err),
			)
			continue
		}
		l.byPath = append(l.byPath, pathLimiter{prefix: prefix, instance: limiter.New(store, r)})
	}

	return l, nil
}

// Middleware returns an HTTP middleware that applies rate limiting.
// Store failures let the request through; the emulator is a dev tool and
// a broken limiter must not lock the developer out.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.cfg.Enabled || !l.applies(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := l.clientKey(r)
			lc, err := l.limiterFor(r.URL.Path).Get(r.Context(), key)
			if err != nil {
				logger.FromContext(r.Context()).Error("rate limiter error", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if l.cfg.Headers.Enabled {
				w.Header().Set(l.cfg.Headers.LimitHeader, strconv.FormatInt(lc.Limit, 10))
				w.Header().Set(l.cfg.Headers.RemainingHeader, strconv.FormatInt(lc.Remaining, 10))
				w.Header().Set(l.cfg.Headers.ResetHeader, strconv.FormatInt(lc.Reset, 10))
			}

			if lc.Reached {
				logger.FromContext(r.Context()).Warn("rate limit exceeded",
					zap.String("client", key),
					zap.String("path", r.URL.Path),
					zap.Int64("limit", lc.Limit),
				)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) applies(path string) bool {
	if len(l.cfg.Paths) == 0 {
		return true
	}
	lower := strings.ToLower(path)
	for _, p := range l.cfg.Paths {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// limiterFor picks the longest matching per-path limiter.
func (l *Limiter) limiterFor(path string) *limiter.Limiter {
	best, bestLen := l.instance, -1
	for _, pl := range l.byPath {
		if strings.HasPrefix(path, pl.prefix) && len(pl.prefix) > bestLen {
			best, bestLen = pl.instance, len(pl.prefix)
		}
	}
	return best
}

func (l *Limiter) clientKey(r *http.Request) string {
	if l.cfg.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
