package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_SetReady(t *testing.T) {
	h := NewHealthHandler("dev")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	h := NewHealthHandler("1.2.3")

	rr := httptest.NewRecorder()
	h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		check  error
		status int
		checks map[string]string
	}{
		{
			name:   "not started",
			ready:  false,
			status: http.StatusServiceUnavailable,
			checks: map[string]string{"startup": "not ready", "content": "ok"},
		},
		{
			name:   "ready",
			ready:  true,
			status: http.StatusOK,
			checks: map[string]string{"startup": "ok", "content": "ok"},
		},
		{
			name:   "failing check",
			ready:  true,
			check:  errors.New("content root missing"),
			status: http.StatusServiceUnavailable,
			checks: map[string]string{"startup": "ok", "content": "content root missing"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("")
			h.SetReady(tt.ready)
			h.AddCheck("content", func(context.Context) error { return tt.check })

			rr := httptest.NewRecorder()
			h.HandleReady(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.status, rr.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.checks, resp.Checks)
		})
	}
}

func TestConfigHandler(t *testing.T) {
	cfg := parseConfig(t, `{
		"routes": [
			{"route": "/admin/*", "allowedRoles": ["admin"]},
			{"route": "/old", "redirect": "/new", "statusCode": 301}
		],
		"navigationFallback": {"rewrite": "/index.html"},
		"responseOverrides": {"404": {"rewrite": "/404.html"}, "401": {"redirect": "/login"}},
		"auth": {"identityProviders": {"github": {"registration": {"clientIdSettingName": "A", "clientSecretSettingName": "B"}}}}
	}`)

	rr := httptest.NewRecorder()
	ConfigHandler(staticConfig{cfg: cfg})(rr, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got ConfigSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got.Routes, 2)
	assert.Equal(t, []string{"admin"}, got.Routes[0].AllowedRoles)
	assert.Equal(t, 301, got.Routes[1].StatusCode)
	assert.Equal(t, "/index.html", got.NavigationFallback)
	assert.Equal(t, []string{"401", "404"}, got.ResponseOverrides)
	assert.Equal(t, []string{"github"}, got.IdentityProviders)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.NotNil(t, s.Routes)
	assert.Empty(t, s.Routes)
	assert.False(t, s.Legacy)
}
