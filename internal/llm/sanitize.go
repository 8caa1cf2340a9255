package llm

import (
	"fmt"
	"strings"
)

var optionalStrings = []string{"description", "assignee", "due_date", "priority"}

// SanitizeTaskItem removes or normalizes optional fields that don't meet the item schema,
// so the overall item can still validate. Only OPTIONALS are touched. It returns the dropped keys.
func SanitizeTaskItem(m map[string]any) []string {
	var dropped []string

	for _, k := range optionalStrings {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case nil:
			delete(m, k)
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				continue
			}
			m[k] = s
		case float64:
			// models occasionally emit numeric priorities or years
			m[k] = fmt.Sprintf("%v", t)
		default:
			delete(m, k)
			dropped = append(dropped, k)
		}
	}

	if v, ok := m["bbox"]; ok {
		if !validBBox(v) {
			delete(m, "bbox")
			dropped = append(dropped, "bbox")
		}
	}
	return dropped
}

func validBBox(v any) bool {
	arr, ok := v.([]any)
	if !ok || len(arr) != 4 {
		return false
	}
	for _, n := range arr {
		if _, ok := n.(float64); !ok {
			return false
		}
	}
	return true
}
