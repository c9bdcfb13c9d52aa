package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dzerik/swa-emulator/internal/service/state"
	"github.com/dzerik/swa-emulator/pkg/resilience/circuitbreaker"
	"github.com/dzerik/swa-emulator/pkg/resilience/ratelimit"
)

// Config represents the emulator settings. It is built once at startup and
// never mutated afterwards; components receive pointers to its sections.
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	API           APIConfig           `yaml:"api" mapstructure:"api"`
	Auth          AuthConfig          `yaml:"auth" mapstructure:"auth"`
	Admin         AdminConfig         `yaml:"admin" mapstructure:"admin"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Resilience    ResilienceConfig    `yaml:"resilience" mapstructure:"resilience"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// ServerConfig represents the user-facing listener
type ServerConfig struct {
	Host              string        `yaml:"host" mapstructure:"host"`
	Port              int           `yaml:"port" mapstructure:"port"`
	TLS               TLSConfig     `yaml:"tls" mapstructure:"tls"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Cert    string `yaml:"cert" mapstructure:"cert"`
	Key     string `yaml:"key" mapstructure:"key"`
}

// AppConfig describes the emulated site.
type AppConfig struct {
	// AppLocation is searched for staticwebapp.config.json.
	AppLocation string `yaml:"app_location" mapstructure:"app_location"`
	// OutputLocation is the content root, or an http(s) URL of a dev server.
	OutputLocation string `yaml:"output_location" mapstructure:"output_location"`
	// ConfigLocation overrides where the routing config is searched.
	ConfigLocation string `yaml:"config_location" mapstructure:"config_location"`
	// DevServerTimeout bounds how long startup waits for the dev server.
	DevServerTimeout time.Duration `yaml:"devserver_timeout" mapstructure:"devserver_timeout"`
	// Watch reloads the routing config when it changes on disk.
	Watch bool `yaml:"watch" mapstructure:"watch"`
	// Compress gzips static responses.
	Compress bool `yaml:"compress" mapstructure:"compress"`
	// FileCache configures the content-root existence cache.
	FileCache FileCacheConfig `yaml:"file_cache" mapstructure:"file_cache"`
}

// FileCacheConfig configures the file-existence cache
type FileCacheConfig struct {
	Size int           `yaml:"size" mapstructure:"size"`
	TTL  time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// APIConfig describes the backends requests are proxied to.
type APIConfig struct {
	URI           string `yaml:"uri" mapstructure:"uri"`
	Prefix        string `yaml:"prefix" mapstructure:"prefix"`
	DataAPIURI    string `yaml:"data_api_uri" mapstructure:"data_api_uri"`
	DataAPIPrefix string `yaml:"data_api_prefix" mapstructure:"data_api_prefix"`
}

// AuthConfig represents the emulated auth subsystem configuration
type AuthConfig struct {
	// EncryptionKey is the AES-256 key, hex or base64. Random when empty.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
	// SigningKey is the HMAC key, hex or base64. Random when empty.
	SigningKey string `yaml:"signing_key" mapstructure:"signing_key"`
	// StateSalt keys the OAuth state hash. Defaults to the signing key.
	StateSalt string `yaml:"state_salt" mapstructure:"state_salt"`

	Cookie          CookieConfig                 `yaml:"cookie" mapstructure:"cookie"`
	NonceTTL        time.Duration                `yaml:"nonce_ttl" mapstructure:"nonce_ttl"`
	NonceStore      state.Config                 `yaml:"nonce_store" mapstructure:"nonce_store"`
	ProviderTimeout time.Duration                `yaml:"provider_timeout" mapstructure:"provider_timeout"`
	Providers       map[string]ProviderEndpoints `yaml:"providers" mapstructure:"providers"`
	BearerTTL       time.Duration                `yaml:"bearer_ttl" mapstructure:"bearer_ttl"`
	RateLimit       ratelimit.Config             `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// CookieConfig represents auth cookie attributes
type CookieConfig struct {
	Domain   string        `yaml:"domain" mapstructure:"domain"`
	Secure   bool          `yaml:"secure" mapstructure:"secure"`
	SameSite string        `yaml:"same_site" mapstructure:"same_site"` // strict | lax | none | ""
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ProviderEndpoints overrides the built-in endpoints of one identity provider.
type ProviderEndpoints struct {
	AuthorizeURL string `yaml:"authorize_url" mapstructure:"authorize_url"`
	TokenURL     string `yaml:"token_url" mapstructure:"token_url"`
	UserInfoURL  string `yaml:"user_info_url" mapstructure:"user_info_url"`
}

// AdminConfig represents the admin listener (health, metrics, log level).
type AdminConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"` // 0 disables the listener
}

// ObservabilityConfig represents observability configuration
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// TracingConfig represents distributed tracing configuration
type TracingConfig struct {
	Enabled       bool              `yaml:"enabled" mapstructure:"enabled"`
	Endpoint      string            `yaml:"endpoint" mapstructure:"endpoint"`
	Protocol      string            `yaml:"protocol" mapstructure:"protocol"`             // grpc or http
	Insecure      bool              `yaml:"insecure" mapstructure:"insecure"`             // disable TLS
	SamplingRatio float64           `yaml:"sampling_ratio" mapstructure:"sampling_ratio"` // 0.0 to 1.0
	Headers       map[string]string `yaml:"headers" mapstructure:"headers"`
}

// ResilienceConfig holds resilience configuration
type ResilienceConfig struct {
	// CircuitBreaker guards identity provider and roles-source calls
	CircuitBreaker circuitbreaker.Config `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string        `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Debug       string        `yaml:"debug" mapstructure:"debug"`   // silly, verbose, log, silent
	Format      string        `yaml:"format" mapstructure:"format"` // json, console
	Development bool          `yaml:"development" mapstructure:"development"`
	File        FileLogConfig `yaml:"file" mapstructure:"file"`
}

// FileLogConfig enables a rotating log file next to stderr.
type FileLogConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// Protocol returns "https" when TLS is enabled, "http" otherwise.
func (c *Config) Protocol() string {
	if c.Server.TLS.Enabled {
		return "https"
	}
	return "http"
}

// Address returns the user-facing listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// PublicOrigin is the origin browsers use to reach the emulator.
func (c *Config) PublicOrigin() string {
	return c.Protocol() + "://" + c.Address()
}

// AdminAddress returns the admin listen address, or "" when disabled.
func (c *Config) AdminAddress() string {
	if c.Admin.Port == 0 {
		return ""
	}
	return net.JoinHostPort(c.Admin.Host, strconv.Itoa(c.Admin.Port))
}

// IsDevServer reports whether the output location is a dev server URL.
func (a *AppConfig) IsDevServer() bool {
	return isHTTPURL(a.OutputLocation)
}

// SearchLocation returns the folder scanned for the routing config.
func (a *AppConfig) SearchLocation() string {
	if a.ConfigLocation != "" {
		return a.ConfigLocation
	}
	return a.AppLocation
}

// LevelFromDebug maps the original verbosity names onto zap levels.
func LevelFromDebug(debug string) string {
	switch strings.ToLower(debug) {
	case "silly", "verbose":
		return "debug"
	case "log":
		return "info"
	case "silent":
		return "error"
	default:
		return ""
	}
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
