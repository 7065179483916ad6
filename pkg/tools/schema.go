package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema creates a JSON Schema from a Go type using struct tags.
//
// Supported tags:
//   - json:"name" - parameter name
//   - json:",omitempty" - optional parameter
//   - jsonschema:"required" - explicitly mark as required
//   - jsonschema:"description=..." - parameter description
//   - jsonschema:"enum=a,enum=b" - allowed values
func GenerateSchema[T any]() (map[string]interface{}, error) {
	reflector := &jsonschema.Reflector{
		// Use jsonschema tags to determine required fields
		RequiredFromJSONSchemaTags: true,

		// Don't add $ref for the root type (inline it)
		ExpandedStruct: true,

		// Don't add $schema and $id
		DoNotReference: true,
	}

	schema := reflector.Reflect(new(T))

	schemaMap, err := schemaToMap(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema to map: %w", err)
	}

	// The completion API expects a bare object schema: type, properties,
	// required, and nothing else at the top level.
	if schemaMap["type"] == "object" {
		result := map[string]interface{}{
			"type":       "object",
			"properties": schemaMap["properties"],
		}
		if required, ok := schemaMap["required"]; ok {
			result["required"] = required
		}
		if addProps, ok := schemaMap["additionalProperties"]; ok {
			result["additionalProperties"] = addProps
		}
		return result, nil
	}

	return schemaMap, nil
}

// schemaToMap converts a jsonschema.Schema to a plain map by a JSON round
// trip, which normalizes all the library's internal types.
func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return result, nil
}
