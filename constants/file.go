package constants

import "strings"

// File formats the text extractor dispatches on.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

var imageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"bmp":  {},
	"tiff": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a format.
// Unknown extensions are treated as images (best-effort OCR fallback).
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if ext == "pdf" {
		return PDF
	}
	if _, ok := imageExtensions[ext]; ok {
		return IMAGE
	}
	return IMAGE
}
