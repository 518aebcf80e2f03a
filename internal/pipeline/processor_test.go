package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filestodata/filestodata/constants"
	"github.com/filestodata/filestodata/internal/entity"
	"github.com/filestodata/filestodata/internal/masking"
	"github.com/filestodata/filestodata/internal/repository"
	"github.com/filestodata/filestodata/internal/storage"
)

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) Extract(context.Context, []byte, string) (string, error) {
	return s.text, s.err
}

// stubAI echoes the masked text into a JSON field so unmasking is exercised
// end to end, and records what crossed the boundary.
type stubAI struct {
	gotMaskedText string
	gotImage      []byte
	docErr        error
	designResult  json.RawMessage
	designErr     error
}

func (s *stubAI) ExtractDocumentData(_ context.Context, maskedText string) (json.RawMessage, error) {
	s.gotMaskedText = maskedText
	if s.docErr != nil {
		return nil, s.docErr
	}
	return json.RawMessage(fmt.Sprintf(`{"extracted_text": %q}`, maskedText)), nil
}

func (s *stubAI) AnalyzeDesignImage(_ context.Context, image []byte, _ string) (json.RawMessage, error) {
	s.gotImage = image
	if s.designErr != nil {
		return nil, s.designErr
	}
	return s.designResult, nil
}

type fixture struct {
	jobs     repository.JobRepository
	maskLogs repository.MaskingLogRepository
	store    *storage.FSStore
	ai       *stubAI
	proc     *Processor
}

func newFixture(t *testing.T, extractor *stubExtractor) *fixture {
	t.Helper()

	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewFSStore(t.TempDir(), nil)
	require.NoError(t, err)

	jobs := repository.NewSQLiteJobRepository(db, nil)
	maskLogs := repository.NewSQLiteMaskingLogRepository(db, nil)
	ai := &stubAI{designResult: json.RawMessage(`{"palette":["red","gold"]}`)}

	return &fixture{
		jobs:     jobs,
		maskLogs: maskLogs,
		store:    store,
		ai:       ai,
		proc:     NewProcessor(jobs, maskLogs, store, extractor, masking.NewEngine(nil), ai, nil),
	}
}

func (f *fixture) createJob(t *testing.T, mode constants.JobMode, content []byte) *entity.Job {
	t.Helper()

	id := uuid.New()
	now := time.Now().UTC()
	job := &entity.Job{
		ID:        id,
		Mode:      mode,
		FilePath:  fmt.Sprintf("uploads/%s/file.pdf", id),
		FileName:  "file.pdf",
		Status:    constants.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.store.Upload(context.Background(), job.FilePath, content))
	require.NoError(t, f.jobs.Create(context.Background(), job))
	return job
}

func message(id uuid.UUID) []byte {
	b, _ := json.Marshal(entity.QueueMessage{JobID: id})
	return b
}

func TestProcessor_DocumentHappyPath(t *testing.T) {
	f := newFixture(t, &stubExtractor{text: "Contact Juan Perez at juan@x.com"})
	job := f.createJob(t, constants.JobModeDocument, []byte("%PDF-1.4 fake"))

	err := f.proc.HandleDocumentMessage(context.Background(), message(job.ID))
	require.NoError(t, err)

	got, err := f.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)

	// The AI must only ever see masked text.
	assert.NotContains(t, f.ai.gotMaskedText, "juan@x.com")
	assert.Contains(t, f.ai.gotMaskedText, "[EMAIL_1]")

	// Results are unmasked before persisting.
	var results map[string]string
	require.NoError(t, json.Unmarshal(got.Results, &results))
	assert.Contains(t, results["extracted_text"], "juan@x.com")
	assert.NotContains(t, results["extracted_text"], "[EMAIL_1]")

	logs, err := f.maskLogs.ListByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestProcessor_DesignHappyPath(t *testing.T) {
	f := newFixture(t, &stubExtractor{})
	image := []byte{0x89, 0x50, 0x4e, 0x47}
	job := f.createJob(t, constants.JobModeDesign, image)

	err := f.proc.HandleDesignMessage(context.Background(), message(job.ID))
	require.NoError(t, err)

	got, err := f.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.JSONEq(t, `{"palette":["red","gold"]}`, string(got.Results))

	// The raw image goes straight to the analyzer, no masking stage.
	assert.Equal(t, image, f.ai.gotImage)
	logs, err := f.maskLogs.ListByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestProcessor_AIFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, &stubExtractor{text: "some text"})
	f.ai.docErr = errors.New("model overloaded")
	job := f.createJob(t, constants.JobModeDocument, []byte("content"))

	err := f.proc.HandleDocumentMessage(context.Background(), message(job.ID))
	require.NoError(t, err, "pipeline errors are recorded on the job, not returned")

	got, err := f.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "ai extraction")
	assert.Contains(t, got.ErrorMessage, "model overloaded")
	assert.Nil(t, got.Results)
}

func TestProcessor_ExtractFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, &stubExtractor{err: errors.New("corrupt file")})
	job := f.createJob(t, constants.JobModeDocument, []byte("content"))

	require.NoError(t, f.proc.HandleDocumentMessage(context.Background(), message(job.ID)))

	got, err := f.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "extract text")
}

func TestProcessor_MissingFileMarksJobFailed(t *testing.T) {
	f := newFixture(t, &stubExtractor{text: "text"})

	id := uuid.New()
	now := time.Now().UTC()
	job := &entity.Job{
		ID: id, Mode: constants.JobModeDocument,
		FilePath: fmt.Sprintf("uploads/%s/gone.pdf", id), FileName: "gone.pdf",
		Status: constants.JobStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.jobs.Create(context.Background(), job))

	require.NoError(t, f.proc.HandleDocumentMessage(context.Background(), message(job.ID)))

	got, err := f.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "download file")
}

func TestProcessor_UnknownJobIsDropped(t *testing.T) {
	f := newFixture(t, &stubExtractor{text: "text"})

	err := f.proc.HandleDocumentMessage(context.Background(), message(uuid.New()))
	require.NoError(t, err)

	jobs, err := f.jobs.List(context.Background(), repository.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs, "no job record may be created for an unknown id")
	assert.Empty(t, f.ai.gotMaskedText)
}

func TestProcessor_MalformedPayloadIsHardFailure(t *testing.T) {
	f := newFixture(t, &stubExtractor{text: "text"})

	err := f.proc.HandleDocumentMessage(context.Background(), []byte("not json"))
	require.Error(t, err)

	err = f.proc.HandleDocumentMessage(context.Background(), []byte(`{}`))
	require.Error(t, err, "a message without job_id cannot be tied to a job")
}
