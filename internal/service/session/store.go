package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/model"
	"github.com/dzerik/swa-emulator/internal/service/crypto"
)

var (
	ErrCookieNotFound = errors.New("cookie not found")
	ErrCookieInvalid  = errors.New("cookie invalid")
)

// DefaultAuthCookieTTL is the lifetime of the auth cookie.
const DefaultAuthCookieTTL = 8 * time.Hour

// Manager reads and writes the two auth cookies through the codec.
type Manager struct {
	codec    *crypto.Codec
	domain   string
	secure   bool
	sameSite http.SameSite
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a cookie manager.
func NewManager(codec *crypto.Codec, cfg *config.CookieConfig) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultAuthCookieTTL
	}
	return &Manager{
		codec:    codec,
		domain:   cfg.Domain,
		secure:   cfg.Secure,
		sameSite: parseSameSite(cfg.SameSite),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Codec returns the underlying codec.
func (m *Manager) Codec() *crypto.Codec {
	return m.codec
}

// Principal decodes the auth cookie of r.
func (m *Manager) Principal(r *http.Request) (*model.ClientPrincipal, error) {
	var p model.ClientPrincipal
	if err := m.read(r, AuthCookieName, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AuthContext decodes the context cookie of r.
func (m *Manager) AuthContext(r *http.Request) (*model.AuthContext, error) {
	var ac model.AuthContext
	if err := m.read(r, AuthContextCookieName, &ac); err != nil {
		return nil, err
	}
	return &ac, nil
}

// SetPrincipal queues the auth cookie carrying p.
func (m *Manager) SetPrincipal(ops *Ops, p *model.ClientPrincipal) error {
	value, err := m.seal(p)
	if err != nil {
		return err
	}
	ops.Set(CookieOp{
		Name:     AuthCookieName,
		Value:    value,
		Path:     "/",
		Domain:   m.domain,
		Expires:  m.now().Add(m.ttl).UTC(),
		Secure:   m.secure,
		HTTPOnly: true,
		SameSite: m.sameSite,
	})
	return nil
}

// SetAuthContext queues the session-length context cookie.
func (m *Manager) SetAuthContext(ops *Ops, ac *model.AuthContext) error {
	value, err := m.seal(ac)
	if err != nil {
		return err
	}
	ops.Set(CookieOp{
		Name:     AuthContextCookieName,
		Value:    value,
		Path:     "/",
		Domain:   m.domain,
		Secure:   m.secure,
		HTTPOnly: true,
		SameSite: m.sameSite,
	})
	return nil
}

// DeletePrincipal queues removal of the auth cookie.
func (m *Manager) DeletePrincipal(ops *Ops) {
	m.delete(ops, AuthCookieName)
}

// DeleteAuthContext queues removal of the context cookie.
func (m *Manager) DeleteAuthContext(ops *Ops) {
	m.delete(ops, AuthContextCookieName)
}

// delete queues removal of name with the attributes it was set with;
// browsers ignore a removal whose domain differs from the stored cookie.
func (m *Manager) delete(ops *Ops, name string) {
	ops.put(CookieOp{
		Name:     name,
		Path:     "/",
		Domain:   m.domain,
		Secure:   m.secure,
		HTTPOnly: true,
		SameSite: m.sameSite,
		Delete:   true,
	})
}

func (m *Manager) seal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cookie payload: %w", err)
	}
	value, err := m.codec.EncryptAndSign(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to seal cookie: %w", err)
	}
	return value, nil
}

func (m *Manager) read(r *http.Request, name string, v any) error {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return ErrCookieNotFound
	}

	plaintext, ok := m.codec.ValidateAndDecrypt(cookie.Value)
	if !ok {
		return ErrCookieInvalid
	}

	if err := json.Unmarshal([]byte(plaintext), v); err != nil {
		return ErrCookieInvalid
	}
	return nil
}
