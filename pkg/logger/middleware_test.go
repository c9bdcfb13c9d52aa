package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
)

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"200 OK", http.StatusOK},
		{"302 Redirect", http.StatusFound},
		{"401 Unauthorized", http.StatusUnauthorized},
		{"404 Not Found", http.StatusNotFound},
		{"502 Bad Gateway", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NotEmpty(t, GetCorrelationID(r.Context()))
				w.WriteHeader(tt.status)
			})

			rr := httptest.NewRecorder()
			RequestLogger(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test?x=1", nil))

			assert.Equal(t, tt.status, rr.Code)
			assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
		})
	}
}

func TestRequestLogger_UsesChiRequestID(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)

	var seen string
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	r.ServeHTTP(rr, req)

	assert.Equal(t, "fixed-id", seen)
	assert.Equal(t, "fixed-id", rr.Header().Get(RequestIDHeader))
}

func TestRecoveryLogger(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		RecoveryLogger(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRecoveryLogger_RepanicsOnAbort(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})

	assert.Panics(t, func() {
		RecoveryLogger(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
