package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, field: "server.port", wantErr: true},
		{name: "tls without cert", mutate: func(c *Config) { c.Server.TLS = TLSConfig{Enabled: true, Key: "k.pem"} }, field: "server.tls.cert", wantErr: true},
		{name: "tls without key", mutate: func(c *Config) { c.Server.TLS = TLSConfig{Enabled: true, Cert: "c.pem"} }, field: "server.tls.key", wantErr: true},
		{name: "tls pair", mutate: func(c *Config) { c.Server.TLS = TLSConfig{Enabled: true, Cert: "c.pem", Key: "k.pem"} }},
		{name: "dev server url", mutate: func(c *Config) { c.App.OutputLocation = "http://localhost:3000" }},
		{name: "broken dev server url", mutate: func(c *Config) { c.App.OutputLocation = "http://" }, field: "app.output_location", wantErr: true},
		{name: "api uri not http", mutate: func(c *Config) { c.API.URI = "localhost:7071" }, field: "api.uri", wantErr: true},
		{name: "data api uri", mutate: func(c *Config) { c.API.DataAPIURI = "http://localhost:5000" }},
		{name: "api prefix without slash", mutate: func(c *Config) { c.API.Prefix = "api/" }, field: "api.prefix", wantErr: true},
		{name: "short encryption key", mutate: func(c *Config) { c.Auth.EncryptionKey = "abcd" }, field: "auth.encryption_key", wantErr: true},
		{name: "hex encryption key", mutate: func(c *Config) { c.Auth.EncryptionKey = strings.Repeat("ab", 32) }},
		{name: "odd signing key", mutate: func(c *Config) { c.Auth.SigningKey = strings.Repeat("ab", 40) }, field: "auth.signing_key", wantErr: true},
		{name: "sha384 signing key", mutate: func(c *Config) { c.Auth.SigningKey = strings.Repeat("ab", 48) }},
		{name: "bad same site", mutate: func(c *Config) { c.Auth.Cookie.SameSite = "sometimes" }, field: "auth.cookie.same_site", wantErr: true},
		{name: "redis without addresses", mutate: func(c *Config) { c.Auth.NonceStore.Type = "redis" }, field: "auth.nonce_store.redis.addresses", wantErr: true},
		{name: "unknown nonce store", mutate: func(c *Config) { c.Auth.NonceStore.Type = "etcd" }, field: "auth.nonce_store.type", wantErr: true},
		{name: "provider url", mutate: func(c *Config) {
			c.Auth.Providers = map[string]ProviderEndpoints{"github": {TokenURL: "nope"}}
		}, field: "auth.providers.github.token_url", wantErr: true},
		{name: "admin on server port", mutate: func(c *Config) { c.Admin.Port = c.Server.Port }, field: "admin.port", wantErr: true},
		{name: "tracing protocol", mutate: func(c *Config) {
			c.Observability.Tracing.Enabled = true
			c.Observability.Tracing.Protocol = "udp"
		}, field: "observability.tracing.protocol", wantErr: true},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "trace" }, field: "log.level", wantErr: true},
		{name: "log format", mutate: func(c *Config) { c.Log.Format = "xml" }, field: "log.format", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			fields := make([]string, 0, len(verrs))
			for _, e := range verrs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Empty(t, ValidationErrors{}.Error())

	errs := ValidationErrors{
		{Field: "server.port", Message: "bad"},
		{Field: "log.level", Message: "worse"},
	}
	assert.Equal(t, "validation errors:\n  - server.port: bad\n  - log.level: worse", errs.Error())
}
