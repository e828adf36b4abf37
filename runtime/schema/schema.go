package schema

import (
	_ "embed"

	"github.com/xeipuuv/gojsonschema"
)

type Schema struct {
	schema *gojsonschema.Schema
}

func load(data []byte) (*Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, err
	}

	return &Schema{schema: schema}, nil
}

// Validate validates a JSON document against the schema.
func (s *Schema) Validate(data []byte) (*gojsonschema.Result, error) {
	return s.schema.Validate(gojsonschema.NewBytesLoader(data))
}

//go:embed request.json
var taskRequest []byte

// NewRequestSchema returns the schema of task request bodies.
func NewRequestSchema() (*Schema, error) {
	return load(taskRequest)
}

//go:embed response.json
var taskResponse []byte

// NewResponseSchema returns the schema of task response bodies.
func NewResponseSchema() (*Schema, error) {
	return load(taskResponse)
}
