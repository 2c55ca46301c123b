// Package schema validates pbxmend's configuration data (config files and
// request lists) against JSON Schemas embedded in the binary.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Names of the embedded schemas.
const (
	RequestList = "request-list-v1"
	Config      = "config-v1"
)

//go:embed schemas/*.yaml
var embedded embed.FS

// Result holds the validation result.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return e.Path + ": " + e.Message
}

// Summary joins the errors into one line, or returns "" for a valid result.
func (r *Result) Summary() string {
	if r == nil || r.Valid {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}

// registry caches compiled schemas by name for reuse
var (
	schemaRegistry = make(map[string]*gojsonschema.Schema)
	regMu          sync.RWMutex
)

// Validator wraps a compiled schema for repeated validation.
type Validator struct {
	schema *gojsonschema.Schema
}

func compileSchemaBytes(schemaBytes []byte) (*gojsonschema.Schema, error) {
	// YAML is a superset of JSON; normalize to JSON bytes for the loader
	var tmp any
	if err := yaml.Unmarshal(schemaBytes, &tmp); err != nil {
		return nil, fmt.Errorf("invalid schema format (must be valid YAML or JSON): %w", err)
	}
	jb, err := json.Marshal(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema to JSON: %w", err)
	}
	sch, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jb))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return sch, nil
}

// GetEmbeddedValidator returns a validator for a named embedded schema (e.g., request-list-v1).
func GetEmbeddedValidator(schemaName string) (*Validator, error) {
	regMu.RLock()
	sch, ok := schemaRegistry[schemaName]
	regMu.RUnlock()
	if ok {
		return &Validator{schema: sch}, nil
	}

	data, err := embedded.ReadFile("schemas/" + schemaName + ".yaml")
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("schema %s not found", schemaName)
	}
	sch, err = compileSchemaBytes(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", schemaName, err)
	}

	regMu.Lock()
	schemaRegistry[schemaName] = sch
	regMu.Unlock()
	return &Validator{schema: sch}, nil
}

// Validate applies the compiled schema to the provided data structure.
func (v *Validator) Validate(data interface{}) (*Result, error) {
	if v == nil || v.schema == nil {
		return nil, fmt.Errorf("validator not initialised")
	}
	return validateWithCompiled(v.schema, data)
}

func validateWithCompiled(sch *gojsonschema.Schema, data interface{}) (*Result, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode data to JSON: %w", err)
	}
	result, err := sch.Validate(gojsonschema.NewBytesLoader(dataJSON))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	res := &Result{Valid: result.Valid()}
	for _, verr := range result.Errors() {
		field := verr.Field()
		if field == "" || field == "(root)" {
			field = "root"
		}
		res.Errors = append(res.Errors, ValidationError{
			Path:    field,
			Message: improveErrorMessage(verr),
		})
	}
	return res, nil
}

// improveErrorMessage rewrites the validator messages request-list authors
// hit most often.
func improveErrorMessage(verr gojsonschema.ResultError) string {
	switch verr.Type() {
	case "enum":
		if strings.HasSuffix(verr.Field(), ".op") {
			return "op must be one of: add, fix"
		}
	case "pattern":
		if strings.HasSuffix(verr.Field(), ".name") {
			return "name is a display name and must not contain '/'; put the location in path or group"
		}
		if strings.HasSuffix(verr.Field(), ".group") {
			return "group must not start or end with '/'"
		}
	}
	return verr.Description()
}

// Validate validates data (interface{}) against the named schema (e.g., "request-list-v1").
func Validate(data interface{}, schemaName string) (*Result, error) {
	validator, err := GetEmbeddedValidator(schemaName)
	if err != nil {
		return nil, err
	}
	return validator.Validate(data)
}
