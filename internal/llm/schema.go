package llm

import (
	"github.com/joseph-ayodele/notetasks/constants"
)

// BuildTaskItemSchema returns the JSON-Schema for a single element of the model output array.
// An item must either name a task or carry a layout category.
func BuildTaskItemSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	props := map[string]any{
		"task_name":   map[string]any{"type": "string"},
		"description": nullableString,
		"assignee":    nullableString,
		"due_date":    nullableString,
		"priority":    nullableString,
		"bbox": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "number"},
			"minItems": 4,
			"maxItems": 4,
		},
		"category": map[string]any{"type": "string"},
		"text":     map[string]any{"type": "string"},
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"anyOf": []any{
			map[string]any{"required": []string{"task_name"}},
			map[string]any{"required": []string{"category"}},
		},
	}
}

// BuildTaskArraySchema wraps the item schema for providers that accept a response schema.
func BuildTaskArraySchema() map[string]any {
	enum := []any{nil}
	for _, p := range constants.PrioritiesAsStringSlice() {
		enum = append(enum, p)
	}
	item := BuildTaskItemSchema()
	item["properties"].(map[string]any)["priority"] = map[string]any{
		"type": []string{"string", "null"},
		"enum": enum,
	}
	return map[string]any{
		"type":  "array",
		"items": item,
	}
}
