package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, st SchemaType) map[string]interface{} {
	t.Helper()
	data, err := NewGenerator().Generate(st)
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &schema))
	return schema
}

func TestNewGenerator(t *testing.T) {
	g := NewGenerator()
	require.NotNil(t, g)
	require.NotNil(t, g.reflector)
}

func TestGenerator_Config(t *testing.T) {
	schema := generate(t, SchemaTypeConfig)

	assert.NotNil(t, schema["$schema"])
	assert.Equal(t, "SWA Emulator Configuration", schema["title"])
	assert.NotNil(t, schema["$id"])
	assert.Equal(t, "#/$defs/config", schema["$ref"])

	examples, ok := schema["examples"].([]interface{})
	assert.True(t, ok)
	assert.NotEmpty(t, examples)

	defs, ok := schema["$defs"].(map[string]interface{})
	require.True(t, ok)

	root, ok := defs["config"].(map[string]interface{})
	require.True(t, ok)
	props, ok := root["properties"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"server", "app", "api", "auth", "admin", "observability", "resilience", "log"} {
		assert.Contains(t, props, key)
	}

	for _, name := range []string{"server_config", "api_config", "tls_config", "state_config", "circuitbreaker_config", "ratelimit_config"} {
		assert.Contains(t, defs, name)
	}
	for name := range defs {
		assert.NotContains(t, name, "Config")
	}
}

func TestGenerator_Config_YAMLFieldNames(t *testing.T) {
	data, err := NewGenerator().Generate(SchemaTypeConfig)
	require.NoError(t, err)
	out := string(data)

	for _, prop := range []string{`"output_location"`, `"data_api_uri"`, `"read_header_timeout"`, `"nonce_store"`, `"key_prefix"`} {
		assert.Contains(t, out, prop)
	}
	for _, prop := range []string{`"OutputLocation"`, `"DataAPIURI"`, `"NonceStore"`} {
		assert.NotContains(t, out, prop)
	}
	assert.Contains(t, out, "ms|s|m|h")
}

func TestGenerator_SWA(t *testing.T) {
	schema := generate(t, SchemaTypeSWA)
	assert.Equal(t, "staticwebapp.config.json", schema["title"])
	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", schema["$schema"])
}

func TestGenerator_Unknown(t *testing.T) {
	_, err := NewGenerator().Generate("routes")
	assert.Error(t, err)
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HelloWorld", "hello_world"},
		{"helloWorld", "hello_world"},
		{"hello", "hello"},
		{"ABC", "abc"},
		{"", ""},
		{"ABc", "a_bc"},
		{"ServerConfig", "server_config"},
		{"FileCacheConfig", "file_cache_config"},
		{"TLSConfig", "tls_config"},
		{"APIConfig", "api_config"},
		{"URI", "uri"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, toSnakeCase(tt.input))
		})
	}
}

func TestParseSchemaType(t *testing.T) {
	tests := []struct {
		input    string
		expected SchemaType
		ok       bool
	}{
		{"config", SchemaTypeConfig, true},
		{"CONFIG", SchemaTypeConfig, true},
		{"swa", SchemaTypeSWA, true},
		{"StaticWebApp", SchemaTypeSWA, true},
		{"unknown", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, ok := ParseSchemaType(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetAvailableSchemas(t *testing.T) {
	assert.Equal(t, []SchemaType{SchemaTypeConfig, SchemaTypeSWA}, GetAvailableSchemas())
}

func BenchmarkGenerate(b *testing.B) {
	g := NewGenerator()

	for i := 0; i < b.N; i++ {
		_, _ = g.Generate(SchemaTypeConfig)
	}
}
