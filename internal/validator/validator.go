// Package validator checks JSON payloads exchanged with the backend against
// embedded JSON schemas.
package validator

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/model_config.json
var modelConfigSchema []byte

// Result reports the outcome of a schema check.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Err returns nil for a valid result and a combined error otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(r.Errors, "; "))
}

// Validator holds compiled schemas.
type Validator struct {
	modelConfig *gojsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(modelConfigSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile model config schema: %w", err)
	}
	return &Validator{modelConfig: schema}, nil
}

// ValidateModelConfig checks a provider/model catalog payload.
func (v *Validator) ValidateModelConfig(payload []byte) Result {
	if len(payload) == 0 {
		return Result{Errors: []string{"payload is empty"}}
	}
	res, err := v.modelConfig.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return Result{Errors: []string{fmt.Sprintf("payload is not valid JSON: %v", err)}}
	}
	out := Result{Valid: res.Valid()}
	for _, desc := range res.Errors() {
		out.Errors = append(out.Errors, desc.String())
	}
	return out
}
