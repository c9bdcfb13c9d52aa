package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dzerik/swa-emulator/internal/service/state"
	"github.com/dzerik/swa-emulator/pkg/resilience/circuitbreaker"
	"github.com/dzerik/swa-emulator/pkg/resilience/ratelimit"
)

// EnvPrefix prefixes every environment variable read by the emulator.
const EnvPrefix = "SWA_CLI"

// Load loads configuration using viper.
// It supports:
// - an optional YAML settings file (path may be empty)
// - environment variables with the SWA_CLI_ prefix
// - the historical SWA_CLI_* variable names bound explicitly
func Load(path string) (*Config, error) {
	v := NewViper()

	bindEnvVars(v)
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromString loads configuration from a YAML string (useful for testing).
func LoadFromString(yamlStr string) (*Config, error) {
	v := NewViper()
	bindEnvVars(v)
	setDefaults(v)
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlStr)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return unmarshal(v)
}

// MustLoad loads configuration or panics.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// NewViper creates a new viper instance with common configuration.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// bindEnvVars binds the historical emulator variables to config keys.
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.host", "SWA_CLI_HOST")
	_ = v.BindEnv("server.port", "SWA_CLI_PORT")
	_ = v.BindEnv("server.tls.enabled", "SWA_CLI_APP_SSL")
	_ = v.BindEnv("server.tls.cert", "SWA_CLI_APP_SSL_CERT")
	_ = v.BindEnv("server.tls.key", "SWA_CLI_APP_SSL_KEY")

	_ = v.BindEnv("app.app_location", "SWA_CLI_APP_LOCATION")
	_ = v.BindEnv("app.output_location", "SWA_CLI_OUTPUT_LOCATION")
	_ = v.BindEnv("app.config_location", "SWA_CLI_CONFIG_LOCATION")
	_ = v.BindEnv("app.devserver_timeout", "SWA_CLI_DEVSERVER_TIMEOUT")

	_ = v.BindEnv("api.uri", "SWA_CLI_API_URI")
	_ = v.BindEnv("api.prefix", "SWA_CLI_API_PREFIX")
	_ = v.BindEnv("api.data_api_uri", "SWA_CLI_DATA_API_URI")
	_ = v.BindEnv("api.data_api_prefix", "SWA_CLI_DATA_API_PREFIX")

	_ = v.BindEnv("auth.encryption_key", "SWA_CLI_AUTH_ENCRYPTION_KEY")
	_ = v.BindEnv("auth.signing_key", "SWA_CLI_AUTH_SIGNING_KEY")
	_ = v.BindEnv("auth.state_salt", "SALT")
	_ = v.BindEnv("auth.nonce_store.redis.password", "REDIS_PASSWORD")

	_ = v.BindEnv("log.debug", "SWA_CLI_DEBUG")
	_ = v.BindEnv("log.level", "SWA_CLI_LOG_LEVEL")
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 4280)
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert", "")
	v.SetDefault("server.tls.key", "")
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// App defaults
	v.SetDefault("app.app_location", ".")
	v.SetDefault("app.output_location", ".")
	v.SetDefault("app.config_location", "")
	v.SetDefault("app.devserver_timeout", "60s")
	v.SetDefault("app.watch", true)
	v.SetDefault("app.compress", true)
	v.SetDefault("app.file_cache.size", 4096)
	v.SetDefault("app.file_cache.ttl", "2s")

	// API defaults
	v.SetDefault("api.uri", "")
	v.SetDefault("api.prefix", "/api/")
	v.SetDefault("api.data_api_uri", "")
	v.SetDefault("api.data_api_prefix", "/data-api/")

	// Auth defaults
	v.SetDefault("auth.encryption_key", "")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.state_salt", "")
	v.SetDefault("auth.cookie.domain", "")
	v.SetDefault("auth.cookie.secure", true)
	v.SetDefault("auth.cookie.same_site", "")
	v.SetDefault("auth.cookie.ttl", "8h")
	v.SetDefault("auth.nonce_ttl", "60s")
	v.SetDefault("auth.nonce_store.type", "memory")
	v.SetDefault("auth.nonce_store.redis.key_prefix", state.DefaultKeyPrefix)
	v.SetDefault("auth.provider_timeout", "10s")
	v.SetDefault("auth.bearer_ttl", "1h")
	v.SetDefault("auth.rate_limit.enabled", false)
	v.SetDefault("auth.rate_limit.rate", "30-S")
	v.SetDefault("auth.rate_limit.headers.enabled", true)

	// Admin defaults
	v.SetDefault("admin.host", "localhost")
	v.SetDefault("admin.port", 0)

	// Observability defaults
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.protocol", "grpc")
	v.SetDefault("observability.tracing.insecure", true)
	v.SetDefault("observability.tracing.sampling_ratio", 1.0)

	// Resilience defaults
	v.SetDefault("resilience.circuit_breaker.enabled", true)

	// Logging defaults
	v.SetDefault("log.level", "")
	v.SetDefault("log.debug", "")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file.path", "")
}

// applyDefaults applies default values to configuration after unmarshaling.
// This handles cases where viper defaults don't work well with nested structs.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4280
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	// App defaults
	if cfg.App.AppLocation == "" {
		cfg.App.AppLocation = "."
	}
	if cfg.App.OutputLocation == "" {
		cfg.App.OutputLocation = "."
	}
	if cfg.App.DevServerTimeout == 0 {
		cfg.App.DevServerTimeout = 60 * time.Second
	}
	if cfg.App.FileCache.Size == 0 {
		cfg.App.FileCache.Size = 4096
	}
	if cfg.App.FileCache.TTL == 0 {
		cfg.App.FileCache.TTL = 2 * time.Second
	}

	// API defaults
	if cfg.API.Prefix == "" {
		cfg.API.Prefix = "/api/"
	}
	if cfg.API.DataAPIPrefix == "" {
		cfg.API.DataAPIPrefix = "/data-api/"
	}

	// Auth defaults
	if cfg.Auth.Cookie.TTL == 0 {
		cfg.Auth.Cookie.TTL = 8 * time.Hour
	}
	if cfg.Auth.NonceTTL == 0 {
		cfg.Auth.NonceTTL = 60 * time.Second
	}
	if cfg.Auth.NonceStore.Type == "" {
		cfg.Auth.NonceStore.Type = "memory"
	}
	if cfg.Auth.NonceStore.Redis.KeyPrefix == "" {
		cfg.Auth.NonceStore.Redis.KeyPrefix = state.DefaultKeyPrefix
	}
	if cfg.Auth.ProviderTimeout == 0 {
		cfg.Auth.ProviderTimeout = 10 * time.Second
	}
	if cfg.Auth.BearerTTL == 0 {
		cfg.Auth.BearerTTL = time.Hour
	}
	if cfg.Auth.RateLimit.Rate == "" {
		cfg.Auth.RateLimit.Rate = "30-S"
	}
	if len(cfg.Auth.RateLimit.Paths) == 0 {
		cfg.Auth.RateLimit.Paths = ratelimit.DefaultConfig().Paths
	}
	if cfg.Auth.RateLimit.Headers.LimitHeader == "" {
		cfg.Auth.RateLimit.Headers.LimitHeader = "X-RateLimit-Limit"
	}
	if cfg.Auth.RateLimit.Headers.RemainingHeader == "" {
		cfg.Auth.RateLimit.Headers.RemainingHeader = "X-RateLimit-Remaining"
	}
	if cfg.Auth.RateLimit.Headers.ResetHeader == "" {
		cfg.Auth.RateLimit.Headers.ResetHeader = "X-RateLimit-Reset"
	}

	// Admin defaults
	if cfg.Admin.Host == "" {
		cfg.Admin.Host = "localhost"
	}

	// Observability defaults
	if cfg.Observability.Tracing.Endpoint == "" {
		cfg.Observability.Tracing.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Tracing.Protocol == "" {
		cfg.Observability.Tracing.Protocol = "grpc"
	}
	if cfg.Observability.Tracing.SamplingRatio == 0 {
		cfg.Observability.Tracing.SamplingRatio = 1.0
	}

	// Resilience defaults
	cb := &cfg.Resilience.CircuitBreaker
	def := circuitbreaker.DefaultConfig().Default
	if cb.Default.MaxRequests == 0 {
		cb.Default.MaxRequests = def.MaxRequests
	}
	if cb.Default.Interval == 0 {
		cb.Default.Interval = def.Interval
	}
	if cb.Default.Timeout == 0 {
		cb.Default.Timeout = def.Timeout
	}
	if cb.Default.FailureThreshold == 0 {
		cb.Default.FailureThreshold = def.FailureThreshold
	}
	if cb.Default.SuccessThreshold == 0 {
		cb.Default.SuccessThreshold = def.SuccessThreshold
	}

	// Logging defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = LevelFromDebug(cfg.Log.Debug)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.File.MaxSizeMB == 0 {
		cfg.Log.File.MaxSizeMB = 100
	}
	if cfg.Log.File.MaxBackups == 0 {
		cfg.Log.File.MaxBackups = 3
	}
	if cfg.Log.File.MaxAgeDays == 0 {
		cfg.Log.File.MaxAgeDays = 28
	}
}
