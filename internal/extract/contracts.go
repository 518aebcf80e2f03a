// Package extract turns an uploaded file into raw text: local PDF
// text-layer extraction first, remote OCR as fallback.
package extract

import "context"

// TextExtractor is the pipeline's stage 1: file bytes -> text.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, fileName string) (string, error)
}

// Diagnostic placeholders returned when no real text can be produced. The
// pipeline continues with degraded input instead of failing the job here.
const (
	PlaceholderNoTextLayer = "[PDF contains no extractable text layer. Configure OCR_ENDPOINT and OCR_API_KEY for OCR.]"
	PlaceholderNoOCR       = "[OCR extraction requires OCR_ENDPOINT and OCR_API_KEY configuration]"
	PlaceholderOCRError    = "[OCR error or unauthorized - using placeholder text]"
	PlaceholderOCRNetwork  = "[OCR API network error - using placeholder text]"
)
