package llm

import (
	"strings"

	"github.com/joseph-ayodele/notetasks/constants"
)

// BuildTaskPrompt composes the instruction sent alongside the note image.
func BuildTaskPrompt() string {
	parts := []string{
		"Extract all tasks from this handwritten note.",
		"Return ONLY a JSON array. Each element is an object with:",
		"'task_name' (main action item),",
		"'description' (additional details, if any),",
		"'assignee' (person responsible, if mentioned),",
		"'due_date' (deadline as YYYY-MM-DD, if mentioned),",
		"'priority' (one of " + strings.Join(constants.PrioritiesAsStringSlice(), ", ") +
			", based on visual cues like underlining, stars or exclamation marks),",
		"'bbox' ([x1, y1, x2, y2] in pixels of the task's text).",
		"Omit fields that are not present. Never wrap the array in prose.",
	}
	return strings.Join(parts, " ")
}
