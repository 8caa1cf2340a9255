package constants

import "strings"

// MaxUploadBytesDefault caps a single uploaded image.
const MaxUploadBytesDefault = 10 << 20

// MaxTaskNameLength bounds Task.Name after normalization.
const MaxTaskNameLength = 100

// AllowedImageExtensions holds the accepted upload extensions (lowercase, without '.').
var AllowedImageExtensions = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedImageExt reports whether ext (with or without dot) is an accepted image type.
func IsAllowedImageExt(ext string) bool {
	_, ok := AllowedImageExtensions[NormalizeExt(ext)]
	return ok
}

// MIMETypeForExt returns the content type for ext, or application/octet-stream.
func MIMETypeForExt(ext string) string {
	if mt, ok := AllowedImageExtensions[NormalizeExt(ext)]; ok {
		return mt
	}
	return "application/octet-stream"
}
