// Package heuristics recovers task fields (priority, due date, assignee) from
// free-form recognised text. Every function is pure and never returns an error:
// a pattern miss is a valid "absent" result.
package heuristics

import (
	"strings"

	"github.com/joseph-ayodele/notetasks/constants"
)

type priorityTier struct {
	priority constants.Priority
	markers  []string
}

// priorityTiers is evaluated top to bottom; the first tier with a marker
// present in the lowercased text wins.
var priorityTiers = []priorityTier{
	{constants.PriorityUrgent, []string{"urgent", "!!!", "asap", "critical", "high priority"}},
	{constants.PriorityHigh, []string{"high", "!!", "important"}},
	{constants.PriorityLow, []string{"low", "minor", "whenever"}},
}

// ClassifyPriority returns the priority implied by markers in text, or medium.
func ClassifyPriority(text string) constants.Priority {
	lower := strings.ToLower(text)
	for _, tier := range priorityTiers {
		for _, m := range tier.markers {
			if strings.Contains(lower, m) {
				return tier.priority
			}
		}
	}
	return constants.PriorityMedium
}
