package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/handler"
	"github.com/dzerik/swa-emulator/internal/service/metrics"
	"github.com/dzerik/swa-emulator/internal/service/security"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
	"github.com/dzerik/swa-emulator/pkg/resilience/circuitbreaker"
	"github.com/dzerik/swa-emulator/pkg/resilience/ratelimit"
)

func recordingDispatcher(paths *[]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*paths = append(*paths, r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestSetupRouter_EverythingReachesDispatcher(t *testing.T) {
	var seen []string
	r := SetupRouter(&RouterDeps{Config: &config.Config{}, Dispatcher: recordingDispatcher(&seen)})

	for _, p := range []string{"/", "/index.html", "/deep/path/", "/.auth/me", "/.auth/login/github", "/.authx"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code, p)
	}
	assert.Equal(t, []string{"/", "/index.html", "/deep/path/", "/.auth/me", "/.auth/login/github", "/.authx"}, seen)
}

func TestSetupRouter_AuthPreflight(t *testing.T) {
	var seen []string
	r := SetupRouter(&RouterDeps{Config: &config.Config{}, Dispatcher: recordingDispatcher(&seen)})

	req := httptest.NewRequest(http.MethodOptions, "/.auth/me", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Empty(t, seen)
}

func TestSetupRouter_MetricsAndRateLimit(t *testing.T) {
	var seen []string
	m := metrics.New()
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Enabled: true,
		Rate:    "1-M",
		Paths:   []string{"/.auth/login"},
	})
	require.NoError(t, err)

	r := SetupRouter(&RouterDeps{
		Config:     &config.Config{},
		Metrics:    m,
		Limiter:    limiter,
		Dispatcher: recordingDispatcher(&seen),
	})

	do := func(p string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusTeapot, do("/.auth/login/github"))
	assert.Equal(t, http.StatusTooManyRequests, do("/.auth/login/github"))
	assert.Equal(t, http.StatusTeapot, do("/index.html"))
	assert.Len(t, seen, 2)
}

type fixedConfig struct{ cfg *swaconfig.Config }

func (f fixedConfig) Current() *swaconfig.Config { return f.cfg }

func TestSetupAdminRouter(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 4280

	health := handler.NewHealthHandler("test")
	health.SetReady(true)

	r := SetupAdminRouter(&AdminDeps{
		Config:   cfg,
		Metrics:  metrics.New(),
		Health:   health,
		Configs:  fixedConfig{cfg: swaconfig.Empty()},
		Breakers: circuitbreaker.NewManager(circuitbreaker.DefaultConfig()),
		Warnings: []security.Warning{{Code: "SEC-001", Severity: security.SeverityLow}},
	})

	tests := []struct {
		path   string
		status int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/log/level", http.StatusOK},
		{"/config", http.StatusOK},
		{"/schema/config", http.StatusOK},
		{"/schema/swa", http.StatusOK},
		{"/schema/nope", http.StatusNotFound},
		{"/info", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "http://localhost:4280", info["origin"])
	assert.Len(t, info["warnings"], 1)
}

func TestLoadKeys(t *testing.T) {
	keys, err := loadKeys(&config.AuthConfig{})
	require.NoError(t, err)
	assert.Len(t, keys.Encryption, 32)
	assert.NotEmpty(t, keys.Signing)
	assert.Empty(t, keys.StateSalt)

	enc := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	keys, err = loadKeys(&config.AuthConfig{EncryptionKey: enc, StateSalt: "abcd"})
	require.NoError(t, err)
	assert.Equal(t, byte(0x1f), keys.Encryption[31])
	assert.Equal(t, []byte{0xab, 0xcd}, keys.StateSalt)
}
