package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/normalize"
)

// tsvWordLevel is the tesseract TSV level of a single word.
const tsvWordLevel = 5

type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
}

// TesseractBackend recognizes individual words with tesseract.
type TesseractBackend struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

// NewTesseractBackend checks the binary with --version.
func NewTesseractBackend(ctx context.Context, cfg TesseractConfig, runner Runner, logger *slog.Logger) (*TesseractBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	out, _, err := runner.Run(ctx, cfg.Binary, "--version")
	if err != nil {
		return nil, fmt.Errorf("%w: tesseract: %v", common.ErrBackendUnavailable, err)
	}
	logger.Debug("ocr.tesseract.version", "version", firstLine(string(out)))
	return &TesseractBackend{cfg: cfg, runner: runner, logger: logger}, nil
}

func (b *TesseractBackend) Kind() constants.BackendKind { return constants.BackendWordCluster }

func (b *TesseractBackend) Extract(ctx context.Context, img entity.Image) (RawOutput, error) {
	path, cleanup, err := writeTemp(img)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	args := []string{path, "stdout", "-l", b.cfg.Lang}
	if b.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(b.cfg.PSM))
	}
	if b.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", b.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := b.runner.Run(ctx, b.cfg.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract TSV: %w: %s", err, truncate(string(errb), 1<<10))
	}

	words, err := parseTSV(string(out))
	if err != nil {
		return nil, err
	}
	b.logger.Info("ocr.tesseract.words", "words", len(words))
	return WordOutput{Words: words, ImageWidth: img.Width}, nil
}

// parseTSV reads tesseract TSV output and keeps word-level rows.
func parseTSV(out string) ([]normalize.Word, error) {
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, nil
	}

	col := map[string]int{}
	for i, h := range strings.Split(lines[0], "\t") {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range []string{"level", "left", "top", "width", "height", "conf"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("tesseract TSV: missing column %q", name)
		}
	}
	textCol, hasText := col["text"]

	var words []normalize.Word
	for _, ln := range lines[1:] {
		if ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if atoiCol(cols, col["level"]) != tsvWordLevel {
			continue
		}
		conf, err := strconv.ParseFloat(cell(cols, col["conf"]), 64)
		if err != nil {
			continue
		}
		w := normalize.Word{
			Confidence: conf,
			Left:       atoiCol(cols, col["left"]),
			Top:        atoiCol(cols, col["top"]),
			Width:      atoiCol(cols, col["width"]),
			Height:     atoiCol(cols, col["height"]),
		}
		if hasText {
			w.Text = cell(cols, textCol)
		}
		words = append(words, w)
	}
	return words, nil
}

func cell(cols []string, i int) string {
	if i < 0 || i >= len(cols) {
		return ""
	}
	return strings.TrimSpace(cols[i])
}

func atoiCol(cols []string, i int) int {
	n, err := strconv.Atoi(cell(cols, i))
	if err != nil {
		return -1
	}
	return n
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
