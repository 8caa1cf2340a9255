package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/heuristics"
)

type Point struct {
	X float64
	Y float64
}

// Region is one detected text region: a quad (top-left, top-right, bottom-right, bottom-left),
// its text and a detector confidence in [0, 1].
type Region struct {
	Quad       [4]Point
	Text       string
	Confidence float64
}

// UnmarshalJSON accepts the detector tuple form [[[x,y],[x,y],[x,y],[x,y]], "text", conf].
func (r *Region) UnmarshalJSON(b []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(b, &tuple); err != nil {
		return fmt.Errorf("region: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("region: expected 3 elements, got %d", len(tuple))
	}
	var quad [][]float64
	if err := json.Unmarshal(tuple[0], &quad); err != nil {
		return fmt.Errorf("region quad: %w", err)
	}
	if len(quad) != 4 {
		return fmt.Errorf("region quad: expected 4 points, got %d", len(quad))
	}
	for i, p := range quad {
		if len(p) != 2 {
			return fmt.Errorf("region quad point %d: expected 2 coordinates", i)
		}
		r.Quad[i] = Point{X: p[0], Y: p[1]}
	}
	if err := json.Unmarshal(tuple[1], &r.Text); err != nil {
		return fmt.Errorf("region text: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &r.Confidence); err != nil {
		return fmt.Errorf("region confidence: %w", err)
	}
	return nil
}

func (r Region) centerY() float64 {
	return (r.Quad[0].Y + r.Quad[2].Y) / 2
}

// Regions groups detected regions into tasks, reading top to bottom.
type Regions struct {
	opts options
}

func NewRegions(opts ...Option) *Regions {
	return &Regions{opts: buildOptions(opts)}
}

// Normalize sorts regions by vertical center. A region that starts a task opens a new
// candidate; the following regions are appended to its description until the next one.
// Regions before the first task start are dropped.
func (n *Regions) Normalize(regions []Region) []entity.Task {
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].centerY() < sorted[j].centerY() })

	now := n.opts.now()
	var (
		cands   []entity.Task
		current *entity.Task
	)
	for _, r := range sorted {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}

		if heuristics.StartsTask(text) {
			if current != nil {
				cands = append(cands, *current)
			}
			conf := clampConfidence(r.Confidence)
			current = &entity.Task{
				Name:       heuristics.StripListMarker(text),
				Assignee:   heuristics.ExtractAssignee(text),
				DueDate:    heuristics.ExtractDatePtr(text, now),
				Priority:   heuristics.ClassifyPriority(text),
				Confidence: &conf,
				BBox: clampBox(
					int(r.Quad[0].X), int(r.Quad[0].Y),
					int(r.Quad[2].X-r.Quad[0].X), int(r.Quad[2].Y-r.Quad[0].Y),
				),
			}
			continue
		}

		if current != nil {
			if current.Description != "" {
				current.Description += " "
			}
			current.Description += text
		}
	}
	if current != nil {
		cands = append(cands, *current)
	}

	tasks := finalize(cands)
	n.opts.logger.Debug("normalize.regions.done", "regions", len(regions), "tasks", len(tasks))
	return tasks
}
