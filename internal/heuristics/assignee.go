package heuristics

import (
	"regexp"
	"strings"
)

const personName = `([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`

type assigneeRule struct {
	name string
	re   *regexp.Regexp
	// removal builds the pattern that deletes this rule's span for a known assignee.
	removal func(quoted string) string
}

// assigneeRules is evaluated in order; the first rule that matches wins.
var assigneeRules = []assigneeRule{
	{
		name: "arrow",
		re:   regexp.MustCompile(`(?:→|->|>)\s*` + personName),
		removal: func(q string) string {
			return `\s*(?:→|->|>)\s*` + q + `(?:\s+\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})?`
		},
	},
	{
		name:    "handle",
		re:      regexp.MustCompile(`@(\w+)`),
		removal: func(q string) string { return `@` + q },
	},
	{
		name:    "assigned-to",
		re:      regexp.MustCompile(`(?i:assigned to):?\s*` + personName),
		removal: func(q string) string { return `(?i)assigned to:?\s*` + q },
	},
	{
		name:    "owner",
		re:      regexp.MustCompile(`(?i:owner):?\s*` + personName),
		removal: func(q string) string { return `(?i)owner:?\s*` + q },
	},
	{
		name:    "bracket",
		re:      regexp.MustCompile(`\[([A-Z][a-z]+)\]`),
		removal: func(q string) string { return `\[` + q + `\]` },
	},
	{
		name:    "paren",
		re:      regexp.MustCompile(`\(` + personName + `\)`),
		removal: func(q string) string { return `\(` + q + `\)` },
	},
}

var (
	trailingDate  = regexp.MustCompile(`\s+\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}.*$`)
	trailingPunct = regexp.MustCompile(`[^\w\s]+$`)
)

// ExtractAssignee returns the person a line is assigned to, or "".
func ExtractAssignee(text string) string {
	for _, rule := range assigneeRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := trailingDate.ReplaceAllString(m[1], "")
		name = trailingPunct.ReplaceAllString(name, "")
		return strings.TrimSpace(name)
	}
	return ""
}

// RemoveAssignee deletes every assignee notation naming assignee from text.
// It is a no-op when assignee is empty.
func RemoveAssignee(text, assignee string) string {
	if assignee == "" {
		return text
	}
	quoted := regexp.QuoteMeta(assignee)
	for _, rule := range assigneeRules {
		re, err := regexp.Compile(rule.removal(quoted))
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
