package constants

import (
	"fmt"
	"strings"
)

// JobStatus is the canonical lifecycle status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "PENDING"    // created, waiting for a worker
	JobStatusProcessing JobStatus = "PROCESSING" // picked up from the queue
	JobStatusCompleted  JobStatus = "COMPLETED"  // terminal success, results stored
	JobStatusFailed     JobStatus = "FAILED"     // terminal failure, error_message set
)

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ParseJobStatus parses a status string case-insensitively.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case JobStatusPending:
		return JobStatusPending, nil
	case JobStatusProcessing:
		return JobStatusProcessing, nil
	case JobStatusCompleted:
		return JobStatusCompleted, nil
	case JobStatusFailed:
		return JobStatusFailed, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// JobMode selects the processing path for an uploaded file.
type JobMode string

const (
	JobModeDocument JobMode = "DOCUMENT" // text-bearing file: extract, mask, AI, unmask
	JobModeDesign   JobMode = "DESIGN"   // image-only analysis, no masking stage
)

// ParseJobMode parses a mode string case-insensitively.
func ParseJobMode(s string) (JobMode, error) {
	switch JobMode(strings.ToUpper(strings.TrimSpace(s))) {
	case JobModeDocument:
		return JobModeDocument, nil
	case JobModeDesign:
		return JobModeDesign, nil
	}
	return "", fmt.Errorf("invalid mode %q: must be 'DOCUMENT' or 'DESIGN'", s)
}

// Logical queue names, one per job mode.
const (
	QueueDocumentJobs = "document-jobs"
	QueueDesignJobs   = "design-jobs"
)

// QueueForMode maps a job mode to the queue its pointer messages go to.
func QueueForMode(mode JobMode) string {
	if mode == JobModeDesign {
		return QueueDesignJobs
	}
	return QueueDocumentJobs
}
