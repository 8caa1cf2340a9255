package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/heuristics"
	"github.com/joseph-ayodele/notetasks/internal/llm"
)

// legacyListCategory marks layout-only items whose text is parsed heuristically.
const legacyListCategory = "List-item"

var structuredDateLayouts = []string{"2006-01-02", "2/1/2006", "1/2/2006", "2006/1/2"}

// Structured normalizes the JSON array emitted by a structured vision model.
type Structured struct {
	opts options
}

func NewStructured(opts ...Option) *Structured {
	return &Structured{opts: buildOptions(opts)}
}

// Normalize parses raw model output. Malformed JSON or a non-array top level yields no tasks.
func (n *Structured) Normalize(raw string) []entity.Task {
	logger := n.opts.logger
	body := llm.StripCodeFence(raw)

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		logger.Warn("normalize.structured.invalid_output", "error", err, "raw", truncateForLog(raw))
		return nil
	}

	now := n.opts.now()
	cands := make([]entity.Task, 0, len(items))
	for i, rawItem := range items {
		var m map[string]any
		if err := json.Unmarshal(rawItem, &m); err != nil {
			logger.Debug("normalize.structured.skip_non_object", "index", i)
			continue
		}
		if dropped := llm.SanitizeTaskItem(m); len(dropped) > 0 {
			logger.Debug("normalize.structured.sanitized", "index", i, "dropped", dropped)
		}
		if err := llm.ValidateTaskItem(m); err != nil {
			logger.Debug("normalize.structured.skip_invalid", "index", i, "error", err)
			continue
		}

		b, _ := json.Marshal(m)
		var item llm.TaskItem
		if err := json.Unmarshal(b, &item); err != nil {
			continue
		}

		_, named := m["task_name"]
		switch {
		case named && strings.TrimSpace(item.TaskName) == "":
			logger.Debug("normalize.structured.skip_unnamed", "index", i)
		case named:
			cands = append(cands, fromTaskItem(item))
		case item.Category == legacyListCategory:
			cands = append(cands, fromLegacyItem(item, now))
		default:
			// non-task layout element
		}
	}

	tasks := finalize(cands)
	logger.Debug("normalize.structured.done", "items", len(items), "tasks", len(tasks))
	return tasks
}

func fromTaskItem(item llm.TaskItem) entity.Task {
	priority, ok := constants.CanonicalPriority(item.Priority)
	if !ok {
		priority = constants.PriorityMedium
	}
	conf := StructuredConfidence
	return entity.Task{
		Name:        item.TaskName,
		Description: item.Description,
		Assignee:    item.Assignee,
		DueDate:     parseStructuredDate(item.DueDate),
		Priority:    priority,
		Confidence:  &conf,
		BBox:        bboxFromCorners(item.BBox),
	}
}

func fromLegacyItem(item llm.TaskItem, now time.Time) entity.Task {
	clean := heuristics.StripListMarker(strings.TrimSpace(item.Text))
	assignee := heuristics.ExtractAssignee(clean)
	name := heuristics.RemoveAssignee(clean, assignee)

	due := heuristics.ExtractDatePtr(clean, now)
	if due != nil {
		name = heuristics.StripDateFragment(name)
	}

	conf := StructuredConfidence
	return entity.Task{
		Name:       name,
		Assignee:   assignee,
		DueDate:    due,
		Priority:   heuristics.ClassifyPriority(clean),
		Confidence: &conf,
		BBox:       bboxFromCorners(item.BBox),
	}
}

func parseStructuredDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range structuredDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// bboxFromCorners converts [x1, y1, x2, y2] into an origin plus size box.
func bboxFromCorners(c []float64) *entity.BBox {
	if len(c) != 4 {
		return clampBox(0, 0, 0, 0)
	}
	return clampBox(int(c[0]), int(c[1]), int(c[2]-c[0]), int(c[3]-c[1]))
}

func truncateForLog(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
