// Package schema provides JSON Schema generation for configuration.
package schema

import (
	"encoding/json"
	"fmt"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
)

// SchemaType represents the type of schema to generate.
type SchemaType string

const (
	// SchemaTypeConfig is the emulator settings file.
	SchemaTypeConfig SchemaType = "config"
	// SchemaTypeSWA is staticwebapp.config.json.
	SchemaTypeSWA SchemaType = "swa"
)

// Generator generates JSON schemas for the emulator's configuration files.
type Generator struct {
	reflector *jsonschema.Reflector
}

// NewGenerator creates a new schema generator.
func NewGenerator() *Generator {
	r := &jsonschema.Reflector{
		ExpandedStruct:             false,
		RequiredFromJSONSchemaTags: true,
		FieldNameTag:               "yaml",
		Namer:                      definitionName,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
					Description: "Duration string (e.g., '30s', '5m', '1h')",
					Examples:    []interface{}{"10s", "5m", "1h", "30s"},
				}
			}
			return nil
		},
	}

	return &Generator{reflector: r}
}

// Generate returns the schema of the given type, indented.
func (g *Generator) Generate(t SchemaType) ([]byte, error) {
	switch t {
	case SchemaTypeConfig:
		return g.generateConfig()
	case SchemaTypeSWA:
		return swaconfig.Schema(), nil
	default:
		return nil, fmt.Errorf("unknown schema type %q", t)
	}
}

func (g *Generator) generateConfig() ([]byte, error) {
	schema := g.reflector.Reflect(&config.Config{})

	schema.Title = "SWA Emulator Configuration"
	schema.Description = "Settings for the swa-emulator process.\n\n" +
		"Every key can also be set through a SWA_CLI_ prefixed environment variable."
	schema.ID = "https://github.com/dzerik/swa-emulator/schemas/config.schema.json"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"server": map[string]interface{}{
				"port": 4280,
			},
			"app": map[string]interface{}{
				"output_location": "./dist",
			},
			"api": map[string]interface{}{
				"uri": "http://localhost:7071",
			},
			"auth": map[string]interface{}{
				"nonce_store": map[string]interface{}{
					"type": "memory",
				},
			},
		},
	}

	return json.MarshalIndent(schema, "", "  ")
}

// definitionName names $defs entries in snake_case. Several packages export a
// type called Config, so those are qualified with their package name.
func definitionName(t reflect.Type) string {
	name := t.Name()
	if name == "Config" {
		if pkg := path.Base(t.PkgPath()); pkg != "config" {
			return pkg + "_config"
		}
	}
	return toSnakeCase(name)
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	special := map[string]string{
		"TLSConfig":   "tls_config",
		"APIConfig":   "api_config",
		"RedisConfig": "redis_config",
		"TTL":         "ttl",
		"URL":         "url",
		"URI":         "uri",
		"ID":          "id",
	}

	if val, ok := special[s]; ok {
		return val
	}

	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			if prev >= 'a' && prev <= 'z' {
				result.WriteByte('_')
			} else if i+1 < len(s) {
				next := rune(s[i+1])
				if next >= 'a' && next <= 'z' && prev >= 'A' && prev <= 'Z' {
					result.WriteByte('_')
				}
			}
		}
		if r >= 'A' && r <= 'Z' {
			result.WriteRune(r + 32)
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// GetAvailableSchemas returns list of available schema types.
func GetAvailableSchemas() []SchemaType {
	return []SchemaType{
		SchemaTypeConfig,
		SchemaTypeSWA,
	}
}

// ParseSchemaType parses a string to SchemaType.
func ParseSchemaType(s string) (SchemaType, bool) {
	switch strings.ToLower(s) {
	case "config":
		return SchemaTypeConfig, true
	case "swa", "staticwebapp":
		return SchemaTypeSWA, true
	default:
		return "", false
	}
}
