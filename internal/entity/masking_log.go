package entity

import (
	"time"

	"github.com/google/uuid"
)

// MaskingLog is the audit record for one masked value: which token replaced
// which original in which job's masking run. Written once per detected entity.
type MaskingLog struct {
	ID            uuid.UUID `json:"id"`
	JobID         uuid.UUID `json:"job_id"`
	Token         string    `json:"token"`
	OriginalValue string    `json:"original_value"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"created_at"`
}
