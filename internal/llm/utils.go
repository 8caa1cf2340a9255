package llm

import (
	"encoding/base64"

	"github.com/joseph-ayodele/notetasks/internal/entity"
)

// ImageDataURL renders the image as a base64 data URL for chat-style vision APIs.
func ImageDataURL(img entity.Image) string {
	mt := img.MIMEType
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
