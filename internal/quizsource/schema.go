package quizsource

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "timeLimitSec", "passThreshold", "questions"],
  "properties": {
    "title": {"type": "string"},
    "timeLimitSec": {"type": "integer", "minimum": 1},
    "passThreshold": {"type": "number", "minimum": 0, "maximum": 1},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "text", "options", "correctIndex"],
        "properties": {
          "id": {"type": ["string", "integer"]},
          "text": {"type": "string"},
          "options": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string"}
          },
          "correctIndex": {"type": "integer", "minimum": 0},
          "topic": {"type": "string"}
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(definitionSchema))
})

// validateSchema checks the decoded document against the quiz definition
// schema and joins every violation into one error.
func validateSchema(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
