package ai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// The pipeline constrains AI output no further than "a JSON object"; the
// shape inside is owned by the model prompt and the downstream editor.
var resultObjectSchema = map[string]any{
	"type": "object",
}

// ValidateResultObject checks that data is a JSON object per the result
// schema. Anything else (arrays, scalars, prose) is rejected before it can
// be persisted as job results.
func ValidateResultObject(data []byte) error {
	b, err := json.Marshal(resultObjectSchema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("result.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
