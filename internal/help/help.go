// Package help provides help text generation for swa-emulator.
package help

import (
	"fmt"
	"strings"
)

// AppInfo contains application metadata.
type AppInfo struct {
	Name        string
	Description string
	Version     string
	BuildTime   string
	DocsURL     string
}

// EnvVar documents one environment variable.
type EnvVar struct {
	Name        string
	Key         string
	Description string
}

// EnvVars lists the historical variables bound on top of the prefixed keys.
var EnvVars = []EnvVar{
	{"SWA_CLI_HOST", "server.host", "Listen host"},
	{"SWA_CLI_PORT", "server.port", "Listen port"},
	{"SWA_CLI_APP_SSL", "server.tls.enabled", "Serve over https"},
	{"SWA_CLI_APP_SSL_CERT", "server.tls.cert", "TLS certificate file"},
	{"SWA_CLI_APP_SSL_KEY", "server.tls.key", "TLS key file"},
	{"SWA_CLI_APP_LOCATION", "app.app_location", "Folder searched for staticwebapp.config.json"},
	{"SWA_CLI_OUTPUT_LOCATION", "app.output_location", "Content root or dev server URL"},
	{"SWA_CLI_CONFIG_LOCATION", "app.config_location", "Overrides the config search folder"},
	{"SWA_CLI_DEVSERVER_TIMEOUT", "app.devserver_timeout", "Wait for the dev server at startup"},
	{"SWA_CLI_API_URI", "api.uri", "Functions backend"},
	{"SWA_CLI_API_PREFIX", "api.prefix", "Path prefix routed to the API"},
	{"SWA_CLI_DATA_API_URI", "api.data_api_uri", "Data API backend"},
	{"SWA_CLI_DATA_API_PREFIX", "api.data_api_prefix", "Path prefix routed to the data API"},
	{"SWA_CLI_AUTH_ENCRYPTION_KEY", "auth.encryption_key", "AES-256 cookie key (hex or base64)"},
	{"SWA_CLI_AUTH_SIGNING_KEY", "auth.signing_key", "HMAC cookie key (hex or base64)"},
	{"SALT", "auth.state_salt", "OAuth state hash key"},
	{"REDIS_PASSWORD", "auth.nonce_store.redis.password", "Password of the redis nonce store"},
	{"SWA_CLI_DEBUG", "log.debug", "silly | verbose | log | silent"},
	{"SWA_CLI_LOG_LEVEL", "log.level", "debug | info | warn | error"},
}

// Generator generates help text for the application.
type Generator struct {
	appInfo      AppInfo
	envVarPrefix string
}

// NewGenerator creates a new help generator.
func NewGenerator(appInfo AppInfo, envVarPrefix string) *Generator {
	return &Generator{
		appInfo:      appInfo,
		envVarPrefix: envVarPrefix,
	}
}

// PrintVersion prints version information.
func (g *Generator) PrintVersion() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s\n", g.appInfo.Name, g.appInfo.Version))
	sb.WriteString(fmt.Sprintf("  Build time: %s\n", g.appInfo.BuildTime))
	return sb.String()
}

// PrintUsage prints basic usage information.
func (g *Generator) PrintUsage() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Usage: %s [OPTIONS]\n\n", g.appInfo.Name))
	sb.WriteString(fmt.Sprintf("%s\n\n", g.appInfo.Description))
	sb.WriteString("Use --help for detailed configuration documentation\n")
	return sb.String()
}

// PrintExtendedHelp prints detailed help with all configuration options.
func (g *Generator) PrintExtendedHelp() string {
	var sb strings.Builder

	sb.WriteString(g.header())
	sb.WriteString("\n")

	sb.WriteString("DESCRIPTION\n")
	sb.WriteString(fmt.Sprintf("    %s\n\n", g.appInfo.Description))

	sb.WriteString("USAGE\n")
	sb.WriteString(fmt.Sprintf("    %s [OPTIONS]\n\n", g.appInfo.Name))

	sb.WriteString("OPTIONS\n")
	sb.WriteString(g.optionsSection())
	sb.WriteString("\n")

	sb.WriteString(g.separator())

	sb.WriteString("CONFIGURATION\n\n")
	sb.WriteString(g.configSection())
	sb.WriteString("\n")

	sb.WriteString(g.separator())

	sb.WriteString("ENVIRONMENT VARIABLES\n\n")
	sb.WriteString(g.envVarsSection())
	sb.WriteString("\n")

	sb.WriteString(g.separator())

	sb.WriteString("CONTENT MODES\n\n")
	sb.WriteString(g.contentModesSection())
	sb.WriteString("\n")

	sb.WriteString(g.separator())

	sb.WriteString("AUTH ENDPOINTS\n\n")
	sb.WriteString(g.authSection())
	sb.WriteString("\n")

	sb.WriteString(g.separator())

	sb.WriteString("EXAMPLES\n\n")
	sb.WriteString(g.examplesSection())
	sb.WriteString("\n")

	sb.WriteString(g.separator())

	sb.WriteString("ADMIN ENDPOINTS (admin.port)\n\n")
	sb.WriteString("    GET /healthz              Liveness probe\n")
	sb.WriteString("    GET /readyz               Readiness probe\n")
	sb.WriteString("    GET /metrics              Prometheus metrics\n")
	sb.WriteString("    GET /config               Active routing configuration\n")
	sb.WriteString("    PUT /log/level            Change the log level\n\n")

	sb.WriteString(g.separator())

	sb.WriteString("VERSION\n")
	sb.WriteString(fmt.Sprintf("    %s\n", g.appInfo.Version))
	sb.WriteString(fmt.Sprintf("    Built: %s\n\n", g.appInfo.BuildTime))

	if g.appInfo.DocsURL != "" {
		sb.WriteString("DOCUMENTATION\n")
		sb.WriteString(fmt.Sprintf("    %s\n\n", g.appInfo.DocsURL))
	}

	return sb.String()
}

// header generates the header box.
func (g *Generator) header() string {
	width := 80
	title := strings.ToUpper(g.appInfo.Name)
	subtitle := g.appInfo.Description

	if len(subtitle) > width-4 {
		subtitle = subtitle[:width-7] + "..."
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString("+" + strings.Repeat("-", width-2) + "+\n")

	titlePadding := (width - 2 - len(title)) / 2
	sb.WriteString("|" + strings.Repeat(" ", titlePadding) + title + strings.Repeat(" ", width-2-titlePadding-len(title)) + "|\n")

	subtitlePadding := (width - 2 - len(subtitle)) / 2
	sb.WriteString("|" + strings.Repeat(" ", subtitlePadding) + subtitle + strings.Repeat(" ", width-2-subtitlePadding-len(subtitle)) + "|\n")

	sb.WriteString("+" + strings.Repeat("-", width-2) + "+\n")

	return sb.String()
}

// separator generates a section separator line.
func (g *Generator) separator() string {
	return strings.Repeat("-", 80) + "\n\n"
}

func (g *Generator) optionsSection() string {
	return fmt.Sprintf(`    --config <path>       Path to the emulator settings YAML file
                          Env: %s_SETTINGS

    --version             Show version information
    --help, -h            Show this help message
    --schema <type>       Print a JSON Schema and exit
                          config: the settings file
                          swa:    staticwebapp.config.json
    --schema-output <file> Output file for schema (default: stdout)
`, g.envVarPrefix)
}

func (g *Generator) configSection() string {
	return fmt.Sprintf(`    Settings are optional; every key has a default.

    SETTINGS FILE STRUCTURE
    -----------------------
    server:               Listener (host, port, TLS, timeouts)
    app:                  Content root, config location, watch, compression
    api:                  Functions and data API backends
    auth:                 Cookie keys, nonce store, providers, rate limit
    admin:                Health, metrics and config listener
    observability:        Metrics, tracing
    resilience:           Circuit breaker around identity providers
    log:                  Logging configuration

    CONFIGURATION SOURCES (in order of priority):

    1. ENVIRONMENT VARIABLES
       Pattern: %s_<SECTION>_<KEY>

       Examples:
         %s_SERVER_PORT=4280
         %s_LOG_LEVEL=debug
         %s_AUTH_NONCE_STORE_TYPE=redis

    2. SETTINGS FILE (YAML)

    ROUTING CONFIGURATION
    ---------------------
    staticwebapp.config.json (or the legacy routes.json) is discovered
    under app.app_location and reloaded when it changes.
`, g.envVarPrefix, g.envVarPrefix, g.envVarPrefix, g.envVarPrefix)
}

func (g *Generator) envVarsSection() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`    Pattern: %s_<SECTION>_<KEY>

    Notes:
    - Nested keys use underscore as separator
    - Boolean values: true, false, 1, 0
    - Duration values: 10s, 5m, 1h, 100ms

    NAMED VARIABLES:
    ----------------
`, g.envVarPrefix))
	for _, v := range EnvVars {
		sb.WriteString(fmt.Sprintf("      %-28s %s (%s)\n", v.Name, v.Description, v.Key))
	}
	return sb.String()
}

func (g *Generator) contentModesSection() string {
	return `    1. CONTENT FOLDER (app.output_location is a path)
       Files are served from the folder with the routing rules,
       navigation fallback and response overrides applied.

    2. DEV SERVER (app.output_location is an http(s) URL)
       Static requests and websocket upgrades are proxied to the
       dev server; startup waits up to app.devserver_timeout for it.
`
}

func (g *Generator) authSection() string {
	return `    GET  /.auth/login/<provider>      Sign in (aad, github, twitter, google, facebook)
    GET  /.auth/login/<provider>/callback
    GET  /.auth/me                    Current client principal
    GET  /.auth/logout                Sign out
    GET  /.auth/purge/<provider>      Sign out and forget consent
    POST /.auth/complete              Finish a mock sign-in

    Providers without a registration in staticwebapp.config.json use the
    built-in mock sign-in page.
`
}

func (g *Generator) examplesSection() string {
	return fmt.Sprintf(`    # Serve ./dist with functions on port 7071
    %s_OUTPUT_LOCATION=./dist %s_API_URI=http://localhost:7071 %s

    # Proxy a running dev server
    %s_OUTPUT_LOCATION=http://localhost:3000 %s

    # Settings file plus verbose logging
    %s_DEBUG=silly %s --config swa-emulator.yaml

    # Generate JSON schemas
    %s --schema config > swa-emulator.schema.json
    %s --schema swa > staticwebapp.config.schema.json
`, g.envVarPrefix, g.envVarPrefix, g.appInfo.Name,
		g.envVarPrefix, g.appInfo.Name,
		g.envVarPrefix, g.appInfo.Name,
		g.appInfo.Name, g.appInfo.Name)
}
