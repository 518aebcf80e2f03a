package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/filestodata/filestodata/constants"
)

// Job is one file-processing job. Status moves PENDING → PROCESSING →
// {COMPLETED | FAILED} and never leaves a terminal state; Results is set
// only on completion, ErrorMessage only on failure.
type Job struct {
	ID           uuid.UUID           `json:"id"`
	Mode         constants.JobMode   `json:"mode"`
	FilePath     string              `json:"file_path"`
	FileName     string              `json:"file_name"`
	Status       constants.JobStatus `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Results      json.RawMessage     `json:"results,omitempty"`
}

// QueueMessage is the minimal job pointer carried on the queue transport.
type QueueMessage struct {
	JobID uuid.UUID `json:"job_id"`
}
