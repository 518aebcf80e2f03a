// Package ai is the external AI-model boundary. Only masked text may cross
// it on the document path; the design path sends raw image bytes by design.
package ai

import (
	"context"
	"encoding/json"
)

// DocumentExtractor is the contract the pipeline depends on. Both calls are
// opaque, possibly slow, possibly failing operations; no retry or batching
// policy is implied here.
type DocumentExtractor interface {
	// ExtractDocumentData returns a structured representation of the
	// masked document text as an opaque JSON object.
	ExtractDocumentData(ctx context.Context, maskedText string) (json.RawMessage, error)
	// AnalyzeDesignImage returns a structured design analysis of the
	// image as an opaque JSON object.
	AnalyzeDesignImage(ctx context.Context, image []byte, fileName string) (json.RawMessage, error)
}
