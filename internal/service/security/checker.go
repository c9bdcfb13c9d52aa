// Package security reports risky emulator settings at startup.
package security

import (
	"fmt"
	"net"
	"strings"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

// Severity represents the severity level of a security warning.
type Severity string

const (
	// SeverityCritical indicates a critical security issue that must be fixed before production.
	SeverityCritical Severity = "critical"
	// SeverityHigh indicates a high-risk security issue.
	SeverityHigh Severity = "high"
	// SeverityMedium indicates a medium-risk security issue.
	SeverityMedium Severity = "medium"
	// SeverityLow indicates a low-risk informational issue.
	SeverityLow Severity = "low"
)

// Warning represents a security warning.
type Warning struct {
	// Code is a unique identifier for the warning (e.g., "SEC-001").
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	// Section is the settings key the warning is about.
	Section        string `json:"section,omitempty"`
	Recommendation string `json:"recommendation"`
}

// Checker analyzes configuration for security issues.
type Checker struct {
	cfg  *config.Config
	site *swaconfig.Config
}

// NewChecker creates a new security checker. site may be nil.
func NewChecker(cfg *config.Config, site *swaconfig.Config) *Checker {
	return &Checker{cfg: cfg, site: site}
}

// Check analyzes the configuration and returns all security warnings.
func (c *Checker) Check() []Warning {
	var warnings []Warning

	warnings = append(warnings, c.checkKeys()...)
	warnings = append(warnings, c.checkCookie()...)
	warnings = append(warnings, c.checkExposure()...)
	warnings = append(warnings, c.checkNonceStore()...)
	warnings = append(warnings, c.checkSite()...)

	return warnings
}

// HasCritical returns true if there are any critical warnings.
func (c *Checker) HasCritical() bool {
	for _, w := range c.Check() {
		if w.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// GetBySeverity returns warnings filtered by severity.
func GetBySeverity(warnings []Warning, severity Severity) []Warning {
	var result []Warning
	for _, w := range warnings {
		if w.Severity == severity {
			result = append(result, w)
		}
	}
	return result
}

func (c *Checker) checkKeys() []Warning {
	if c.cfg.Auth.EncryptionKey != "" && c.cfg.Auth.SigningKey != "" {
		return nil
	}
	return []Warning{{
		Code:           "SEC-001",
		Severity:       SeverityLow,
		Title:          "Auth cookie keys are generated at startup",
		Section:        "auth",
		Recommendation: "Set auth.encryption_key and auth.signing_key to keep users signed in across restarts.",
	}}
}

func (c *Checker) checkCookie() []Warning {
	var warnings []Warning
	cookie := c.cfg.Auth.Cookie

	if !cookie.Secure {
		warnings = append(warnings, Warning{
			Code:           "SEC-002",
			Severity:       SeverityMedium,
			Title:          "Auth cookies not marked as Secure",
			Section:        "auth.cookie.secure",
			Recommendation: "Leave auth.cookie.secure enabled unless a browser refuses cookies on plain http.",
		})
	}

	if strings.EqualFold(cookie.SameSite, "none") && !cookie.Secure {
		warnings = append(warnings, Warning{
			Code:           "SEC-003",
			Severity:       SeverityHigh,
			Title:          "SameSite=None without Secure flag",
			Section:        "auth.cookie.same_site",
			Recommendation: "Browsers drop SameSite=None cookies without Secure; enable auth.cookie.secure.",
		})
	}

	return warnings
}

func (c *Checker) checkExposure() []Warning {
	var warnings []Warning

	if !isLoopback(c.cfg.Server.Host) && !c.cfg.Server.TLS.Enabled {
		warnings = append(warnings, Warning{
			Code:           "SEC-004",
			Severity:       SeverityMedium,
			Title:          fmt.Sprintf("Emulator listens on %q without TLS", c.cfg.Server.Host),
			Section:        "server",
			Recommendation: "Bind to localhost or enable server.tls so mock sign-ins are not sent in clear text.",
		})
	}

	if c.cfg.AdminAddress() != "" && !isLoopback(c.cfg.Admin.Host) {
		warnings = append(warnings, Warning{
			Code:           "SEC-005",
			Severity:       SeverityHigh,
			Title:          "Admin listener reachable from other hosts",
			Section:        "admin.host",
			Recommendation: "The admin listener can change the log level and exposes the routing config; bind it to localhost.",
		})
	}

	if !isLoopback(c.cfg.Server.Host) && !c.cfg.Auth.RateLimit.Enabled {
		warnings = append(warnings, Warning{
			Code:           "SEC-006",
			Severity:       SeverityLow,
			Title:          "Auth endpoints are not rate limited",
			Section:        "auth.rate_limit",
			Recommendation: "Enable auth.rate_limit when the emulator is reachable from other hosts.",
		})
	}

	return warnings
}

func (c *Checker) checkNonceStore() []Warning {
	ns := c.cfg.Auth.NonceStore
	if ns.Type != "redis" || ns.Redis.Password != "" {
		return nil
	}
	return []Warning{{
		Code:           "SEC-007",
		Severity:       SeverityMedium,
		Title:          "Redis nonce store without password",
		Section:        "auth.nonce_store.redis",
		Recommendation: "Set REDIS_PASSWORD or auth.nonce_store.redis.password.",
	}}
}

func (c *Checker) checkSite() []Warning {
	if c.site == nil {
		return nil
	}
	var warnings []Warning

	if c.site.RolesSource() != "" && c.cfg.API.URI == "" {
		warnings = append(warnings, Warning{
			Code:           "SEC-008",
			Severity:       SeverityMedium,
			Title:          "rolesSource set but no API is configured",
			Section:        "auth.rolesSource",
			Recommendation: "Start the API with api.uri so custom roles are assigned; until then users only get the baseline roles.",
		})
	}

	for i, r := range c.site.Routes {
		if !r.HasRoles() || len(r.AllowedRoles) > 0 {
			continue
		}
		warnings = append(warnings, Warning{
			Code:           "SEC-009",
			Severity:       SeverityLow,
			Title:          fmt.Sprintf("Route %q has an empty allowedRoles list", r.Route),
			Section:        fmt.Sprintf("routes[%d]", i),
			Recommendation: "An empty list does not restrict access; list the roles or remove the key.",
		})
	}

	return warnings
}

// CountBySeverity returns the count of warnings by severity.
func CountBySeverity(warnings []Warning) map[Severity]int {
	counts := map[Severity]int{
		SeverityCritical: 0,
		SeverityHigh:     0,
		SeverityMedium:   0,
		SeverityLow:      0,
	}
	for _, w := range warnings {
		counts[w.Severity]++
	}
	return counts
}

// FormatSummary returns a formatted summary of warnings.
func FormatSummary(warnings []Warning) string {
	if len(warnings) == 0 {
		return "No security warnings found"
	}

	counts := CountBySeverity(warnings)
	return fmt.Sprintf("Security warnings: %d critical, %d high, %d medium, %d low",
		counts[SeverityCritical],
		counts[SeverityHigh],
		counts[SeverityMedium],
		counts[SeverityLow],
	)
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
