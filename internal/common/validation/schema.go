// Package validation checks job variables and request bodies against the
// input schemas declared in the activity registry.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"upsell-workers/pkg/registry"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds compiled input schemas keyed by task type.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the input schema of every registered activity.
// Activities without an input schema accept any document.
func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	for _, activity := range reg.Activities {
		if len(activity.InputSchema) == 0 {
			continue
		}
		schema, err := CompileSchema(activity.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("activity %s: %w", activity.ID, err)
		}
		v.schemas[activity.TaskType] = schema
	}
	return v, nil
}

// CompileSchema compiles a JSON schema held as a decoded map.
func CompileSchema(schemaMap map[string]interface{}) (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSON validates a raw JSON document, such as job variables.
func (v *Validator) ValidateJSON(taskType string, document []byte) (*ValidationResult, error) {
	return v.validate(taskType, gojsonschema.NewBytesLoader(document))
}

// Validate validates an already decoded document.
func (v *Validator) Validate(taskType string, document interface{}) (*ValidationResult, error) {
	return v.validate(taskType, gojsonschema.NewGoLoader(document))
}

func (v *Validator) validate(taskType string, loader gojsonschema.JSONLoader) (*ValidationResult, error) {
	v.mu.RLock()
	schema, ok := v.schemas[taskType]
	v.mu.RUnlock()
	if !ok {
		return &ValidationResult{Valid: true}, nil
	}

	result, err := schema.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// ValidateActivityNaming validates activity ID follows naming convention
func ValidateActivityNaming(activityId string) error {
	namingPattern := regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)
	if !namingPattern.MatchString(activityId) {
		return fmt.Errorf("activity ID must follow format: domain.subdomain.action (e.g., upsell.cart.resolve)")
	}
	return nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// Error joins the messages, for use as INVALID_REQUEST details.
func (vr *ValidationResult) Error() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
