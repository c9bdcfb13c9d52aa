package swaconfig

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema.json
var schemaDocument []byte

const schemaURL = "https://github.com/dzerik/swa-emulator/schemas/staticwebapp.config.json"

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid " + FileName + ":\n  - " + strings.Join(msgs, "\n  - ")
}

// Schema returns the embedded JSON schema document.
func Schema() []byte {
	return schemaDocument
}

func schema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaDocument))
		if err != nil {
			compileErr = fmt.Errorf("parse embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}

// validateDocument checks raw JSON against the embedded schema.
func validateDocument(data []byte) error {
	sch, err := schema()
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return ValidationErrors{{Field: "$", Message: "invalid JSON: " + err.Error()}}
	}
	if err := sch.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return ValidationErrors(flattenSchemaError(verr, nil, message.NewPrinter(language.English)))
		}
		return err
	}
	return nil
}

// flattenSchemaError collects the leaf causes of verr. Causes raised while
// validating an object key carry no location of their own and inherit the
// object's location plus the offending key.
func flattenSchemaError(verr *jsonschema.ValidationError, parent []string, p *message.Printer) []ValidationError {
	loc := verr.InstanceLocation
	if len(loc) == 0 {
		loc = parent
	}
	if k, ok := verr.ErrorKind.(*kind.PropertyNames); ok {
		loc = append(append([]string(nil), loc...), k.Property)
	}

	if len(verr.Causes) == 0 {
		field := "$"
		if len(loc) > 0 {
			field = strings.Join(loc, ".")
		}
		return []ValidationError{{Field: field, Message: verr.ErrorKind.LocalizedString(p)}}
	}
	var out []ValidationError
	for _, c := range verr.Causes {
		out = append(out, flattenSchemaError(c, loc, p)...)
	}
	return out
}

// Validate checks semantic constraints the schema cannot express.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if nf := cfg.NavigationFallback; nf != nil && strings.TrimSpace(nf.Rewrite) == "" {
		errs = append(errs, ValidationError{Field: "navigationFallback.rewrite", Message: "is required"})
	}

	for key, o := range cfg.ResponseOverrides {
		code, err := strconv.Atoi(key)
		if err != nil || !isOverridable(code) {
			errs = append(errs, ValidationError{
				Field:   "responseOverrides." + key,
				Message: "only 400, 401, 403 and 404 can be overridden",
			})
		}
		if o.StatusCode != 0 && !validStatus(o.StatusCode.Int()) {
			errs = append(errs, ValidationError{
				Field:   "responseOverrides." + key + ".statusCode",
				Message: "must be between 100 and 599",
			})
		}
	}

	for i, r := range cfg.Routes {
		if r.StatusCode != 0 && !validStatus(r.StatusCode.Int()) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("routes[%d].statusCode", i),
				Message: "must be between 100 and 599",
			})
		}
	}

	for ext := range cfg.MimeTypes {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, ValidationError{Field: "mimeTypes." + ext, Message: "extension must start with '.'"})
		}
	}

	if cfg.Auth != nil && cfg.Auth.RolesSource != "" && !strings.HasPrefix(cfg.Auth.RolesSource, "/") {
		errs = append(errs, ValidationError{Field: "auth.rolesSource", Message: "must be an absolute path"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isOverridable(code int) bool {
	for _, c := range OverridableErrorCodes {
		if c == code {
			return true
		}
	}
	return false
}

func validStatus(code int) bool {
	return code >= 100 && code <= 599
}
