package config

import (
	"fmt"
	"strings"

	"github.com/dzerik/swa-emulator/internal/service/crypto"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "validation errors:\n  - " + strings.Join(msgs, "\n  - ")
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		add("server.port", "must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.Cert == "" {
			add("server.tls.cert", "required when TLS is enabled")
		}
		if cfg.Server.TLS.Key == "" {
			add("server.tls.key", "required when TLS is enabled")
		}
	}

	// App
	if cfg.App.OutputLocation == "" {
		add("app.output_location", "required")
	}
	if strings.Contains(cfg.App.OutputLocation, "://") && !cfg.App.IsDevServer() {
		add("app.output_location", "invalid dev server URL '%s'", cfg.App.OutputLocation)
	}
	if cfg.App.DevServerTimeout < 0 {
		add("app.devserver_timeout", "must not be negative")
	}
	if cfg.App.FileCache.Size < 0 {
		add("app.file_cache.size", "must not be negative")
	}

	// API
	if cfg.API.URI != "" && !isHTTPURL(cfg.API.URI) {
		add("api.uri", "must be an http(s) URL, got '%s'", cfg.API.URI)
	}
	if cfg.API.DataAPIURI != "" && !isHTTPURL(cfg.API.DataAPIURI) {
		add("api.data_api_uri", "must be an http(s) URL, got '%s'", cfg.API.DataAPIURI)
	}
	if !strings.HasPrefix(cfg.API.Prefix, "/") {
		add("api.prefix", "must start with '/'")
	}
	if !strings.HasPrefix(cfg.API.DataAPIPrefix, "/") {
		add("api.data_api_prefix", "must start with '/'")
	}

	// Auth
	if cfg.Auth.EncryptionKey != "" {
		if n := len(crypto.DecodeKey(cfg.Auth.EncryptionKey)); n != crypto.EncryptionKeySize {
			add("auth.encryption_key", "must decode to %d bytes, got %d", crypto.EncryptionKeySize, n)
		}
	}
	if cfg.Auth.SigningKey != "" {
		switch n := len(crypto.DecodeKey(cfg.Auth.SigningKey)); n {
		case 32, 48, 64:
		default:
			add("auth.signing_key", "must decode to 32, 48 or 64 bytes, got %d", n)
		}
	}
	switch strings.ToLower(cfg.Auth.Cookie.SameSite) {
	case "", "strict", "lax", "none":
	default:
		add("auth.cookie.same_site", "must be 'strict', 'lax' or 'none', got '%s'", cfg.Auth.Cookie.SameSite)
	}
	if cfg.Auth.Cookie.TTL <= 0 {
		add("auth.cookie.ttl", "must be positive")
	}
	if cfg.Auth.NonceTTL <= 0 {
		add("auth.nonce_ttl", "must be positive")
	}
	if cfg.Auth.ProviderTimeout <= 0 {
		add("auth.provider_timeout", "must be positive")
	}
	switch cfg.Auth.NonceStore.Type {
	case "memory":
	case "redis":
		if len(cfg.Auth.NonceStore.Redis.Addresses) == 0 {
			add("auth.nonce_store.redis.addresses", "required when nonce store type is 'redis'")
		}
	default:
		add("auth.nonce_store.type", "must be 'memory' or 'redis', got '%s'", cfg.Auth.NonceStore.Type)
	}
	for name, p := range cfg.Auth.Providers {
		for field, v := range map[string]string{
			"authorize_url": p.AuthorizeURL,
			"token_url":     p.TokenURL,
			"user_info_url": p.UserInfoURL,
		} {
			if v != "" && !isHTTPURL(v) {
				add("auth.providers."+name+"."+field, "must be an http(s) URL, got '%s'", v)
			}
		}
	}

	// Admin
	if cfg.Admin.Port < 0 || cfg.Admin.Port > 65535 {
		add("admin.port", "must be between 0 and 65535, got %d", cfg.Admin.Port)
	}
	if cfg.Admin.Port != 0 && cfg.Admin.Port == cfg.Server.Port {
		add("admin.port", "must differ from server.port")
	}

	// Observability
	if cfg.Observability.Tracing.Enabled {
		if p := cfg.Observability.Tracing.Protocol; p != "grpc" && p != "http" {
			add("observability.tracing.protocol", "must be 'grpc' or 'http', got '%s'", p)
		}
		if r := cfg.Observability.Tracing.SamplingRatio; r < 0 || r > 1 {
			add("observability.tracing.sampling_ratio", "must be between 0.0 and 1.0, got %v", r)
		}
	}

	// Logging
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "must be one of debug, info, warn, error, got '%s'", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		add("log.format", "must be 'json' or 'console', got '%s'", cfg.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
