// Package storage is the object-store boundary for uploaded files.
package storage

import "context"

// ObjectStore persists uploaded file bytes under opaque slash-separated
// paths (e.g. "uploads/<job_id>/<file_name>").
type ObjectStore interface {
	Upload(ctx context.Context, path string, content []byte) error
	Download(ctx context.Context, path string) ([]byte, error)
}
