package runtime

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// validationType is the type of validation.
type validationType int

const (
	// validationTypeRequest is the type of validation for requests.
	validationTypeRequest validationType = iota

	// validationTypeResponse is the type of validation for responses.
	validationTypeResponse
)

func (t validationType) String() string {
	switch t {
	case validationTypeRequest:
		return "request"
	case validationTypeResponse:
		return "response"
	default:
		return "unknown"
	}
}

// validationError is an error that occurs during validation.
type validationError struct {
	Type   validationType
	Result *gojsonschema.Result
}

// newValidationError creates a new validation error.
func newValidationError(t validationType, result *gojsonschema.Result) *validationError {
	return &validationError{
		Type:   t,
		Result: result,
	}
}

func (e *validationError) Error() string {
	details := make([]string, 0, len(e.Result.Errors()))
	for _, desc := range e.Result.Errors() {
		details = append(details, desc.String())
	}

	return fmt.Sprintf("invalid %s: %s", e.Type, strings.Join(details, "; "))
}

// validate validates the data against the schema for the given type.
func (r *RuntimeHandler) validate(
	t validationType,
	data []byte,
) error {
	log := r.log.With(zap.Stringer("type", t))

	schema, ok := r.schemas[t]
	if !ok {
		log.Error("validation schema not found")
		return ErrSchemaNotFound
	}

	res, err := schema.Validate(data)
	if err != nil {
		log.Debug("validation failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	if res.Valid() {
		return nil
	}

	log.Debug("invalid data", zap.Any("errors", res.Errors()))

	return newValidationError(t, res)
}
