package heuristics

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type dateRule struct {
	name  string
	re    *regexp.Regexp
	parse func(m []string, now time.Time) (time.Time, bool)
}

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// dateRules is evaluated in order; a rule whose first match does not yield a
// valid calendar date falls through to the next rule.
var dateRules = []dateRule{
	{
		name:  "numeric",
		re:    regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2,4})`),
		parse: parseNumericDate,
	},
	{
		name: "iso",
		re:   regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`),
		parse: func(m []string, _ time.Time) (time.Time, bool) {
			return calendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
		},
	},
	{
		name: "month-name",
		re: regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|` +
			`aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})\b`),
		parse: func(m []string, now time.Time) (time.Time, bool) {
			month, ok := monthNumbers[strings.ToLower(m[1])[:3]]
			if !ok {
				return time.Time{}, false
			}
			return calendarDate(now.Year(), int(month), atoi(m[2]))
		},
	},
}

// dateFragment matches the numeric date text stripped from task names.
var dateFragment = regexp.MustCompile(`\s+\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}`)

// ExtractDate returns the first due date found in text, at midnight UTC.
// now supplies the year for month-name dates.
func ExtractDate(text string, now time.Time) (time.Time, bool) {
	for _, rule := range dateRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d, ok := rule.parse(m, now); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// ExtractDatePtr is ExtractDate for optional fields.
func ExtractDatePtr(text string, now time.Time) *time.Time {
	if d, ok := ExtractDate(text, now); ok {
		return &d
	}
	return nil
}

// StripDateFragment removes numeric date text (e.g. " 3/4/25") from s.
func StripDateFragment(s string) string {
	return strings.TrimSpace(dateFragment.ReplaceAllString(s, ""))
}

// parseNumericDate prefers month/day/year and retries as day/month/year
// when the first reading is not a real calendar date.
func parseNumericDate(m []string, _ time.Time) (time.Time, bool) {
	a, b, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
	if year < 100 {
		year += 2000
	}
	if d, ok := calendarDate(year, a, b); ok {
		return d, true
	}
	return calendarDate(year, b, a)
}

// calendarDate rejects dates that time.Date would silently normalise.
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || year < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
