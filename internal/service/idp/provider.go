// Package idp holds the catalogue of identity providers the emulator can
// talk to for real, and the OAuth code exchange against them.
package idp

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrNoAccessToken       = errors.New("token response carried no access_token")
	ErrUserInfoFailed      = errors.New("failed to get user info")
	ErrRolesSourceFailed   = errors.New("roles source call failed")
)

// Provider names.
const (
	Google   = "google"
	GitHub   = "github"
	AAD      = "aad"
	Facebook = "facebook"
	Twitter  = "twitter"
)

// Registration field names as they appear in staticwebapp.config.json.
const (
	FieldClientID     = "clientIdSettingName"
	FieldClientSecret = "clientSecretSettingName"
	FieldOpenIDIssuer = "openIdIssuer"
	FieldAppID        = "appIdSettingName"
	FieldAppSecret    = "appSecretSettingName"
)

// loginProviders may appear in /.auth/login/<provider>. Providers without a
// custom registration get the mock login page.
var loginProviders = []string{AAD, GitHub, Twitter, Google, Facebook}

// Definition describes one provider with a real OAuth exchange.
type Definition struct {
	Name         string
	Issuer       string
	AuthorizeURL string
	// TokenURL may contain "{tenant}", filled from the aad issuer.
	TokenURL    string
	UserInfoURL string
	Scopes      []string
	// Fields lists the registration entries that must be present.
	Fields []string
}

var catalogue = map[string]Definition{
	Google: {
		Name:         Google,
		Issuer:       "https://accounts.google.com",
		AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
		Scopes:       []string{"openid", "profile", "email"},
		Fields:       []string{FieldClientID, FieldClientSecret},
	},
	GitHub: {
		Name:         GitHub,
		Issuer:       "https://github.com/login/oauth",
		AuthorizeURL: "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		UserInfoURL:  "https://api.github.com/user",
		Scopes:       []string{"read:user"},
		Fields:       []string{FieldClientID, FieldClientSecret},
	},
	AAD: {
		Name:        AAD,
		Issuer:      "https://login.microsoftonline.com",
		TokenURL:    "https://login.microsoftonline.com/{tenant}/oauth2/v2.0/token",
		UserInfoURL: "https://graph.microsoft.com/oidc/userinfo",
		Scopes:      []string{"openid", "profile", "email"},
		Fields:      []string{FieldClientID, FieldClientSecret, FieldOpenIDIssuer},
	},
	Facebook: {
		Name:         Facebook,
		Issuer:       "https://www.facebook.com",
		AuthorizeURL: "https://facebook.com/v11.0/dialog/oauth",
		TokenURL:     "https://graph.facebook.com/v11.0/oauth/access_token",
		UserInfoURL:  "https://graph.facebook.com/me?fields=id,name,email,first_name,last_name,picture",
		Scopes:       []string{"openid"},
		Fields:       []string{FieldAppID, FieldAppSecret},
	},
}

// Normalize maps a provider segment to its short name.
func Normalize(name string) string {
	return swaconfig.NormalizeProvider(name)
}

// IsLoginProvider reports whether name may be used with /.auth/login.
func IsLoginProvider(name string) bool {
	return slices.Contains(loginProviders, Normalize(name))
}

// Lookup returns the built-in definition of a provider.
func Lookup(name string) (Definition, bool) {
	d, ok := catalogue[Normalize(name)]
	return d, ok
}

// Names returns the providers with a real OAuth exchange, sorted.
func Names() []string {
	names := make([]string, 0, len(catalogue))
	for n := range catalogue {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// withEndpoints applies configured endpoint overrides.
func (d Definition) withEndpoints(ep config.ProviderEndpoints) Definition {
	if ep.AuthorizeURL != "" {
		d.AuthorizeURL = ep.AuthorizeURL
	}
	if ep.TokenURL != "" {
		d.TokenURL = ep.TokenURL
	}
	if ep.UserInfoURL != "" {
		d.UserInfoURL = ep.UserInfoURL
	}
	return d
}

// authorizeURL resolves the authorize endpoint. For aad it hangs off the
// configured issuer unless overridden.
func (d Definition) authorizeURL(creds Credentials) string {
	if d.AuthorizeURL != "" {
		return d.AuthorizeURL
	}
	return strings.TrimSuffix(creds.OpenIDIssuer, "/") + "/authorize"
}

// tokenURL fills the aad tenant taken from the issuer path.
func (d Definition) tokenURL(creds Credentials) string {
	if !strings.Contains(d.TokenURL, "{tenant}") {
		return d.TokenURL
	}
	return strings.ReplaceAll(d.TokenURL, "{tenant}", TenantID(creds.OpenIDIssuer))
}

// issuer returns the value of the "iss" claim.
func (d Definition) issuer(creds Credentials) string {
	if d.Name == AAD && creds.OpenIDIssuer != "" {
		return creds.OpenIDIssuer
	}
	return d.Issuer
}

// TenantID extracts the tenant segment of an issuer such as
// https://login.microsoftonline.com/<tenant>/v2.0.
func TenantID(issuer string) string {
	parts := strings.Split(issuer, "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

// Credentials are the resolved client credentials of one provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	OpenIDIssuer string
}

// SetupError explains why a provider cannot be used. Its message is shown to
// the browser as-is.
type SetupError struct {
	Provider string
	Message  string
}

func (e *SetupError) Error() string {
	return e.Message
}

// Env looks up an app setting.
type Env func(name string) (string, bool)

// ResolveCredentials checks the registration of provider in cfg and reads the
// referenced settings from env. Every failure is a *SetupError.
func ResolveCredentials(provider string, cfg *swaconfig.Config, env Env) (Definition, Credentials, error) {
	name := Normalize(provider)
	def, ok := catalogue[name]
	if !ok {
		return Definition{}, Credentials{}, &SetupError{
			Provider: name,
			Message:  fmt.Sprintf("Provider '%s' not found", name),
		}
	}

	idp, _ := cfg.Provider(name)
	reg := idp.Registration
	values := make(map[string]string, len(def.Fields))

	for _, field := range def.Fields {
		setting := registrationField(reg, field)
		if setting == "" {
			return def, Credentials{}, &SetupError{
				Provider: name,
				Message:  fmt.Sprintf("%s not found for '%s' provider", field, name),
			}
		}
		// The issuer is written into the config file itself.
		if field == FieldOpenIDIssuer {
			values[field] = setting
			continue
		}
		v, ok := env(setting)
		if !ok || v == "" {
			return def, Credentials{}, &SetupError{
				Provider: name,
				Message:  fmt.Sprintf("%s not found in env for '%s' provider", setting, name),
			}
		}
		values[field] = v
	}

	creds := Credentials{OpenIDIssuer: values[FieldOpenIDIssuer]}
	if name == Facebook {
		creds.ClientID, creds.ClientSecret = values[FieldAppID], values[FieldAppSecret]
	} else {
		creds.ClientID, creds.ClientSecret = values[FieldClientID], values[FieldClientSecret]
	}
	return def, creds, nil
}

func registrationField(reg swaconfig.Registration, field string) string {
	switch field {
	case FieldClientID:
		return reg.ClientIDSettingName
	case FieldClientSecret:
		return reg.ClientSecretSettingName
	case FieldOpenIDIssuer:
		return reg.OpenIDIssuer
	case FieldAppID:
		return reg.AppIDSettingName
	case FieldAppSecret:
		return reg.AppSecretSettingName
	default:
		return ""
	}
}
