package normalize

import (
	"strings"

	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/heuristics"
)

// Word is one recognized word. Confidence is on a 0..100 scale; negative means "not a word".
// Width and Height are zero when the recognizer reported no geometry.
type Word struct {
	Text       string
	Confidence float64
	Left       int
	Top        int
	Width      int
	Height     int
}

// placeholder geometry for lines without real word boxes
const (
	placeholderX       = 50
	placeholderTop     = 100
	placeholderStep    = 80
	placeholderHeight  = 60
	placeholderWidthPc = 0.8
)

type wordLine struct {
	words   []string
	y       int
	confSum float64
	count   int

	hasGeometry bool
	left, top   int
	right, bot  int
}

func (l *wordLine) add(w Word) {
	if l.count == 0 {
		l.hasGeometry = true
		l.left, l.top = w.Left, w.Top
		l.right, l.bot = w.Left+w.Width, w.Top+w.Height
	}
	if w.Width <= 0 || w.Height <= 0 {
		l.hasGeometry = false
	}
	l.left = min(l.left, w.Left)
	l.top = min(l.top, w.Top)
	l.right = max(l.right, w.Left+w.Width)
	l.bot = max(l.bot, w.Top+w.Height)

	l.words = append(l.words, strings.TrimSpace(w.Text))
	l.y = w.Top
	l.confSum += w.Confidence
	l.count++
}

func (l *wordLine) text() string { return strings.Join(l.words, " ") }

// WordClusters clusters recognized words into lines and lines into tasks.
type WordClusters struct {
	opts options
}

func NewWordClusters(opts ...Option) *WordClusters {
	return &WordClusters{opts: buildOptions(opts)}
}

// Normalize groups words into lines by vertical proximity, then keeps lines that carry
// a strict list marker as tasks. imageWidth sizes placeholder boxes.
func (n *WordClusters) Normalize(words []Word, imageWidth int) []entity.Task {
	lines := n.lines(words)

	now := n.opts.now()
	cands := make([]entity.Task, 0, len(lines))
	for _, l := range lines {
		text := strings.TrimSpace(l.text())
		if text == "" || !heuristics.HasStrictListMarker(text) {
			continue
		}
		conf := clampConfidence(l.confSum / float64(l.count) / 100)
		t := entity.Task{
			Name:       heuristics.StripListMarker(text),
			Assignee:   heuristics.ExtractAssignee(text),
			DueDate:    heuristics.ExtractDatePtr(text, now),
			Priority:   heuristics.ClassifyPriority(text),
			Confidence: &conf,
		}
		if l.hasGeometry {
			t.BBox = clampBox(l.left, l.top, l.right-l.left, l.bot-l.top)
		}
		cands = append(cands, t)
	}

	tasks := finalize(cands)
	for i := range tasks {
		if tasks[i].BBox == nil {
			tasks[i].BBox = placeholderBox(tasks[i].PositionIndex, imageWidth)
		}
	}
	n.opts.logger.Debug("normalize.words.done", "words", len(words), "lines", len(lines), "tasks", len(tasks))
	return tasks
}

func (n *WordClusters) lines(words []Word) []*wordLine {
	var (
		lines   []*wordLine
		current = &wordLine{}
	)
	for _, w := range words {
		if w.Confidence < 0 || strings.TrimSpace(w.Text) == "" {
			continue
		}
		if current.count > 0 && abs(w.Top-current.y) > n.opts.lineThreshold {
			lines = append(lines, current)
			current = &wordLine{}
		}
		current.add(w)
	}
	if current.count > 0 {
		lines = append(lines, current)
	}
	return lines
}

func placeholderBox(position, imageWidth int) *entity.BBox {
	return clampBox(
		placeholderX,
		placeholderTop+position*placeholderStep,
		int(float64(imageWidth)*placeholderWidthPc),
		placeholderHeight,
	)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
