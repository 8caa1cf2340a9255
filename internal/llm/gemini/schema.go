package gemini

import (
	"strings"

	"google.golang.org/genai"
)

// toSchema translates a JSON-Schema map (as built by llm.BuildTaskArraySchema) into the
// OpenAPI subset genai accepts. A "null" member of type or enum becomes Nullable;
// anyOf and unknown keywords are not translated.
func toSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}

	switch t := m["type"].(type) {
	case string:
		s.Type = genai.Type(strings.ToUpper(t))
	case []string:
		for _, v := range t {
			if v == "null" {
				s.Nullable = genai.Ptr(true)
				continue
			}
			s.Type = genai.Type(strings.ToUpper(v))
		}
	}

	if enum, ok := m["enum"].([]any); ok {
		for _, v := range enum {
			str, ok := v.(string)
			if !ok {
				s.Nullable = genai.Ptr(true)
				continue
			}
			s.Enum = append(s.Enum, str)
		}
		s.Format = "enum"
	}

	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	if req, ok := m["required"].([]string); ok {
		s.Required = append([]string(nil), req...)
	}
	if n, ok := m["minItems"].(int); ok {
		s.MinItems = genai.Ptr(int64(n))
	}
	if n, ok := m["maxItems"].(int); ok {
		s.MaxItems = genai.Ptr(int64(n))
	}
	return s
}
