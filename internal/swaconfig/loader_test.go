package swaconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFind(t *testing.T) {
	t.Run("prefers staticwebapp.config.json", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "routes.json"), `{}`)
		writeFile(t, filepath.Join(root, "sub", FileName), `{}`)

		path, err := Find(root)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "sub", FileName), path)
	})

	t.Run("falls back to routes.json", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "routes.json"), `{}`)

		path, err := Find(root)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "routes.json"), path)
	})

	t.Run("skips node_modules and .git", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "node_modules", "pkg", FileName), `{}`)
		writeFile(t, filepath.Join(root, ".github", FileName), `{}`)

		_, err := Find(root)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLoadDir_Missing(t *testing.T) {
	cfg, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Routes)
	assert.False(t, cfg.IsLegacy)
	assert.Empty(t, cfg.Path)
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, FileName)
	writeFile(t, path, `{
		"routes": [
			{"route": "/admin/*", "allowedRoles": ["admin"]},
			{"route": "/old", "redirect": "/new", "statusCode": "301"},
			{"route": "/api/*", "methods": ["GET"]}
		],
		"navigationFallback": {"rewrite": "/index.html", "exclude": ["/images/*.{png,jpg}"]},
		"responseOverrides": {"404": {"rewrite": "/404.html", "statusCode": 200}},
		"globalHeaders": {"X-Frame-Options": "DENY"},
		"mimeTypes": {".json": "text/json"},
		"auth": {
			"rolesSource": "/api/GetRoles",
			"identityProviders": {
				"azureActiveDirectory": {"registration": {
					"openIdIssuer": "https://login.microsoftonline.com/tid/v2.0",
					"clientIdSettingName": "AAD_ID",
					"clientSecretSettingName": "AAD_SECRET"
				}}
			}
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.False(t, cfg.IsLegacy)
	require.Len(t, cfg.Routes, 3)
	assert.Equal(t, StatusCode(301), cfg.Routes[1].StatusCode)
	assert.True(t, cfg.Routes[0].Pattern().Match("/admin/users"))
	assert.Equal(t, "/index.html", cfg.NavigationFallback.Rewrite)
	assert.Len(t, cfg.NavigationFallback.Excludes(), 1)
	assert.Equal(t, "/api/GetRoles", cfg.RolesSource())

	o, ok := cfg.Override(404)
	require.True(t, ok)
	assert.Equal(t, 200, o.StatusCode.Int())

	p, ok := cfg.Provider("aad")
	require.True(t, ok)
	assert.Equal(t, "AAD_ID", p.Registration.ClientIDSettingName)
}

func TestLoad_Legacy(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, LegacyFileName)
	writeFile(t, path, `{
		"routes": [{"route": "/login", "serve": "/.auth/login/github"}],
		"platformErrorOverrides": [
			{"errorType": "NotFound", "serve": "/custom-404.html"},
			{"errorType": "Unknown", "serve": "/x.html"}
		],
		"defaultHeaders": {"content-security-policy": "default-src 'self'"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsLegacy)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "/.auth/login/github", cfg.Routes[0].Rewrite)
	assert.Equal(t, "default-src 'self'", cfg.GlobalHeaders["content-security-policy"])

	o, ok := cfg.Override(404)
	require.True(t, ok)
	assert.Equal(t, "/custom-404.html", o.Rewrite)
	assert.Len(t, cfg.ResponseOverrides, 1)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{name: "invalid json", input: `{"routes": [`, field: "$"},
		{name: "route without route key", input: `{"routes": [{"rewrite": "/a"}]}`, field: "routes.0"},
		{name: "unknown override code", input: `{"responseOverrides": {"500": {"rewrite": "/500.html"}}}`, field: "responseOverrides"},
		{name: "empty fallback rewrite", input: `{"navigationFallback": {"rewrite": ""}}`, field: "navigationFallback"},
		{name: "mime type without dot", input: `{"mimeTypes": {"json": "text/json"}}`, field: "mimeTypes"},
		{name: "bad method", input: `{"routes": [{"route": "/a", "methods": ["FETCH"]}]}`, field: "routes.0.methods.0"},
		{name: "status code out of range", input: `{"routes": [{"route": "/a", "statusCode": 999}]}`, field: "routes.0.statusCode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), false)
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.NotEmpty(t, verrs)

			found := false
			for _, v := range verrs {
				if strings.HasPrefix(v.Field, tt.field) {
					found = true
				}
			}
			assert.True(t, found, "expected an error on %s, got %v", tt.field, verrs)
		})
	}
}

func TestValidateDocument_KeyErrorsNameTheKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{name: "override code", input: `{"responseOverrides": {"500": {"rewrite": "/500.html"}}}`, field: "responseOverrides.500"},
		{name: "mime extension", input: `{"mimeTypes": {"json": "text/json"}}`, field: "mimeTypes.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDocument([]byte(tt.input))
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			for _, v := range verrs {
				assert.NotEqual(t, "$", v.Field)
			}
			assert.Contains(t, fieldsOf(verrs), tt.field)
		})
	}
}

func fieldsOf(errs ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestParse_InvalidGlobIsKept(t *testing.T) {
	cfg, err := Parse([]byte(`{"routes": [{"route": "/redirect/*/invalid", "redirect": "/x"}]}`), false)
	require.NoError(t, err)
	require.Len(t, cfg.Routes, 1)
	assert.False(t, cfg.Routes[0].Pattern().Valid())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Empty()))

	err := Validate(&Config{Auth: &Auth{RolesSource: "api/roles"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.rolesSource")
	assert.Contains(t, err.Error(), "invalid "+FileName)
}

func TestSchema(t *testing.T) {
	assert.Contains(t, string(Schema()), `"navigationFallback"`)
	sch, err := schema()
	require.NoError(t, err)
	assert.NotNil(t, sch)
}
