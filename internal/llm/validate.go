package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema compiles "schemaMap" into a reusable validator.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

var taskItemSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return CompileSchema(BuildTaskItemSchema())
})

// ValidateTaskItem checks a decoded array element against the task item schema.
func ValidateTaskItem(item map[string]any) error {
	schema, err := taskItemSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(item); err != nil {
		return fmt.Errorf("task item does not match schema: %w", err)
	}
	return nil
}
