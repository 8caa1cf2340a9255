package constants

import (
	"strings"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var allPriorities = []Priority{
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
	PriorityUrgent,
}

func PrioritiesAsStringSlice() []string {
	result := make([]string, len(allPriorities))
	for i, p := range allPriorities {
		result[i] = string(p)
	}
	return result
}

// CanonicalPriority maps a model- or user-supplied label onto a Priority.
// Unknown or empty labels resolve to medium with ok=false.
func CanonicalPriority(input string) (Priority, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return PriorityMedium, false
	}

	synonyms := map[string]Priority{
		"normal":   PriorityMedium,
		"med":      PriorityMedium,
		"critical": PriorityUrgent,
		"asap":     PriorityUrgent,
		"minor":    PriorityLow,
	}
	if p, ok := synonyms[normalized]; ok {
		return p, true
	}

	for _, p := range allPriorities {
		if normalized == string(p) {
			return p, true
		}
	}
	return PriorityMedium, false
}
