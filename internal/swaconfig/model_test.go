package swaconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzerik/swa-emulator/internal/glob"
)

func TestStatusCode_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    StatusCode
		wantErr bool
	}{
		{name: "number", input: `404`, want: 404},
		{name: "string", input: `"301"`, want: 301},
		{name: "padded string", input: `" 200 "`, want: 200},
		{name: "non numeric string", input: `"abc"`, want: 0},
		{name: "null", input: `null`, want: 0},
		{name: "bool", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s StatusCode
			err := json.Unmarshal([]byte(tt.input), &s)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestRoute_UnmarshalJSON(t *testing.T) {
	t.Run("serve alias", func(t *testing.T) {
		var r Route
		require.NoError(t, json.Unmarshal([]byte(`{"route":"/login","serve":"/.auth/login/github"}`), &r))
		assert.Equal(t, "/.auth/login/github", r.Rewrite)
	})

	t.Run("rewrite wins over serve", func(t *testing.T) {
		var r Route
		require.NoError(t, json.Unmarshal([]byte(`{"route":"/a","rewrite":"/b","serve":"/c"}`), &r))
		assert.Equal(t, "/b", r.Rewrite)
	})

	t.Run("methods absent vs empty", func(t *testing.T) {
		var absent, empty Route
		require.NoError(t, json.Unmarshal([]byte(`{"route":"/a"}`), &absent))
		require.NoError(t, json.Unmarshal([]byte(`{"route":"/a","methods":[]}`), &empty))

		assert.Nil(t, absent.Methods)
		assert.True(t, absent.AllowsMethod("DELETE"))

		assert.NotNil(t, empty.Methods)
		assert.False(t, empty.AllowsMethod("GET"))
	})
}

func TestRoute_AllowsMethod(t *testing.T) {
	r := Route{Route: "/a", Methods: []string{"GET", "post"}}
	assert.True(t, r.AllowsMethod("GET"))
	assert.True(t, r.AllowsMethod("POST"))
	assert.False(t, r.AllowsMethod("PUT"))
}

func TestRoute_HasRoles(t *testing.T) {
	assert.False(t, (&Route{}).HasRoles())
	assert.True(t, (&Route{AllowedRoles: []string{}}).HasRoles())
}

func TestConfig_Override(t *testing.T) {
	cfg := &Config{ResponseOverrides: map[string]Override{
		"404": {Rewrite: "/custom-404.html"},
	}}

	o, ok := cfg.Override(404)
	require.True(t, ok)
	assert.Equal(t, "/custom-404.html", o.Rewrite)

	_, ok = cfg.Override(401)
	assert.False(t, ok)

	var nilCfg *Config
	_, ok = nilCfg.Override(404)
	assert.False(t, ok)
	assert.False(t, nilCfg.HasResponseOverrides())
}

func TestConfig_Provider(t *testing.T) {
	cfg := &Config{Auth: &Auth{IdentityProviders: map[string]IdentityProvider{
		"azureActiveDirectory": {Registration: Registration{OpenIDIssuer: "https://login.microsoftonline.com/tenant/v2.0"}},
		"github":               {Registration: Registration{ClientIDSettingName: "GITHUB_ID"}},
	}}}

	p, ok := cfg.Provider("aad")
	require.True(t, ok)
	assert.Equal(t, "https://login.microsoftonline.com/tenant/v2.0", p.Registration.OpenIDIssuer)

	p, ok = cfg.Provider("github")
	require.True(t, ok)
	assert.Equal(t, "GITHUB_ID", p.Registration.ClientIDSettingName)

	_, ok = cfg.Provider("google")
	assert.False(t, ok)

	_, ok = Empty().Provider("github")
	assert.False(t, ok)
}

func TestNormalizeProvider(t *testing.T) {
	assert.Equal(t, "aad", NormalizeProvider("azureActiveDirectory"))
	assert.Equal(t, "github", NormalizeProvider("GitHub"))
	assert.Equal(t, "azureActiveDirectory", ProviderConfigKey("aad"))
	assert.Equal(t, "google", ProviderConfigKey("google"))
}

func TestConfig_Compile(t *testing.T) {
	cfg := &Config{
		Routes: []Route{
			{Route: "/images/*"},
			{Route: "/redirect/*/invalid"},
			{Route: ""},
		},
		NavigationFallback: &NavigationFallback{
			Rewrite: "/index.html",
			Exclude: []string{"/images/*.{png,gif}", "/a/*/b"},
		},
	}

	warnings := cfg.compile()
	assert.Len(t, warnings, 3)

	assert.Equal(t, glob.KindPrefix, cfg.Routes[0].Pattern().Kind())
	assert.False(t, cfg.Routes[1].Pattern().Valid())
	assert.False(t, cfg.Routes[1].Pattern().Match("/redirect/x/invalid"))

	excludes := cfg.NavigationFallback.Excludes()
	require.Len(t, excludes, 2)
	assert.True(t, excludes[0].Match("/images/logo.png"))
	assert.False(t, excludes[1].Valid())
}
