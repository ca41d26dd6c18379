package extract

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// dimensionSchemaJSON accepts numbers, numeric strings or null for every
// length. Extra keys are tolerated; value coercion happens in Normalize.
const dimensionSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "shape_type":      {"type": ["string", "null"]},
    "outer_width":     {"type": ["number", "string", "null"]},
    "outer_height":    {"type": ["number", "string", "null"]},
    "draw_depth":      {"type": ["number", "string", "null"]},
    "draw_width":      {"type": ["number", "string", "null"]},
    "draw_height":     {"type": ["number", "string", "null"]},
    "draw_diameter":   {"type": ["number", "string", "null"]},
    "cutout_diameter": {"type": ["number", "string", "null"]}
  }
}`

const dimensionSchemaURL = "dimensions.schema.json"

var dimensionSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(dimensionSchemaURL, strings.NewReader(dimensionSchemaJSON)); err != nil {
		panic(err)
	}
	schema, err := c.Compile(dimensionSchemaURL)
	if err != nil {
		panic(err)
	}
	return schema
}

// validateDimensions checks a decoded response against the dimension schema.
func validateDimensions(v any) error {
	return dimensionSchema.Validate(v)
}
