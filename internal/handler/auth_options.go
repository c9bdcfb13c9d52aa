package handler

import (
	"time"

	"github.com/dzerik/swa-emulator/internal/service/idp"
	"github.com/dzerik/swa-emulator/internal/service/state"
)

// AuthHandlerOption is a functional option for AuthHandler.
type AuthHandlerOption func(*AuthHandler)

// WithIdPClient sets the client used for the OAuth code flow.
func WithIdPClient(client *idp.Client) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.idp = client
	}
}

// WithNonceStore sets the store that rejects replayed callbacks.
func WithNonceStore(store state.Store) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.nonces = store
	}
}

// WithEnv sets the lookup for provider credential settings.
func WithEnv(env idp.Env) AuthHandlerOption {
	return func(h *AuthHandler) {
		if env != nil {
			h.env = env
		}
	}
}

// WithNonceTTL sets how long a started login stays valid.
func WithNonceTTL(ttl time.Duration) AuthHandlerOption {
	return func(h *AuthHandler) {
		if ttl > 0 {
			h.nonceTTL = ttl
		}
	}
}

// WithProtocol sets the scheme of the public origin.
func WithProtocol(protocol string) AuthHandlerOption {
	return func(h *AuthHandler) {
		if protocol != "" {
			h.protocol = protocol
		}
	}
}

// WithAPIURI sets the API backend the roles source is called on.
func WithAPIURI(uri string) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.apiURI = uri
	}
}

// WithAuthMetrics sets the metrics recorder. Pass only a non-nil recorder.
func WithAuthMetrics(m AuthRecorder) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AuthHandlerOption {
	return func(h *AuthHandler) {
		if now != nil {
			h.now = now
		}
	}
}
