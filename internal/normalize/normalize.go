// Package normalize turns raw backend output into ordered task candidates.
// Each backend family has its own normalizer; all of them produce the same
// entity.Task shape with position indexes 0..k-1 over the kept tasks.
package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/heuristics"
)

const (
	// StructuredConfidence is assigned to every task from a structured vision model.
	StructuredConfidence = 0.90

	defaultLineThreshold = 20
)

type options struct {
	logger        *slog.Logger
	now           func() time.Time
	lineThreshold int
}

// Option configures a normalizer.
type Option func(*options)

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithClock sets the time source used to resolve dates without a year.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLineThreshold sets the vertical pixel distance that starts a new word line.
func WithLineThreshold(px int) Option {
	return func(o *options) {
		if px > 0 {
			o.lineThreshold = px
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:        slog.Default(),
		now:           time.Now,
		lineThreshold: defaultLineThreshold,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// finalize trims and truncates names, drops empty ones and assigns contiguous positions.
func finalize(cands []entity.Task) []entity.Task {
	out := make([]entity.Task, 0, len(cands))
	for _, c := range cands {
		c.Name = heuristics.Truncate(strings.TrimSpace(c.Name), constants.MaxTaskNameLength)
		if c.Name == "" {
			continue
		}
		c.Description = strings.TrimSpace(c.Description)
		c.Assignee = strings.TrimSpace(c.Assignee)
		if c.Priority == "" {
			c.Priority = constants.PriorityMedium
		}
		c.PositionIndex = len(out)
		out = append(out, c)
	}
	return out
}

func clampBox(x, y, w, h int) *entity.BBox {
	return &entity.BBox{X: max(0, x), Y: max(0, y), Width: max(0, w), Height: max(0, h)}
}

func clampConfidence(c float64) float64 {
	return min(1, max(0, c))
}
