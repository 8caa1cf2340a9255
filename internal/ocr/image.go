package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
)

// DecodeImage inspects raw bytes and returns them with format and dimensions filled in.
func DecodeImage(data []byte) (entity.Image, error) {
	if len(data) == 0 {
		return entity.Image{}, fmt.Errorf("decode image: %w", common.ErrInvalidInput)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return entity.Image{}, fmt.Errorf("decode image: %w: %v", common.ErrInvalidInput, err)
	}
	return entity.Image{
		Data:     data,
		Format:   format,
		MIMEType: constants.MIMETypeForExt(format),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// Downscale shrinks img so that its longest side is at most maxSide, re-encoding as PNG.
// Images already within bounds are returned unchanged.
func Downscale(img entity.Image, maxSide int) (entity.Image, error) {
	if maxSide <= 0 || max(img.Width, img.Height) <= maxSide {
		return img, nil
	}
	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return img, fmt.Errorf("downscale: decode: %w", err)
	}

	ratio := float64(maxSide) / float64(max(img.Width, img.Height))
	w := max(1, int(float64(img.Width)*ratio))
	h := max(1, int(float64(img.Height)*ratio))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return img, fmt.Errorf("downscale: encode: %w", err)
	}
	return entity.Image{
		Data:     buf.Bytes(),
		Format:   "png",
		MIMEType: "image/png",
		Width:    w,
		Height:   h,
	}, nil
}

// writeTemp stores the image in a temporary file for command-line recognizers.
func writeTemp(img entity.Image) (string, func(), error) {
	ext := img.Format
	if ext == "jpeg" {
		ext = "jpg"
	}
	f, err := os.CreateTemp("", "notetasks-*."+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp image: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(img.Data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp image: %w", err)
	}
	return path, cleanup, nil
}
