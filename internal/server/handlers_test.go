package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filestodata/filestodata/constants"
	"github.com/filestodata/filestodata/internal/entity"
	"github.com/filestodata/filestodata/internal/queue"
	"github.com/filestodata/filestodata/internal/repository"
	"github.com/filestodata/filestodata/internal/storage"
)

// captureQueue records enqueued messages instead of delivering them.
type captureQueue struct {
	enqueued map[string][][]byte
}

func newCaptureQueue() *captureQueue {
	return &captureQueue{enqueued: make(map[string][][]byte)}
}

func (q *captureQueue) Enqueue(_ context.Context, name string, payload []byte) error {
	q.enqueued[name] = append(q.enqueued[name], payload)
	return nil
}

func (q *captureQueue) Subscribe(string, queue.Handler) {}

type testAPI struct {
	router http.Handler
	jobs   repository.JobRepository
	store  *storage.FSStore
	queue  *captureQueue
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewFSStore(t.TempDir(), nil)
	require.NoError(t, err)

	jobs := repository.NewSQLiteJobRepository(db, nil)
	q := newCaptureQueue()
	srv := New(":0", time.Second, NewHandler(jobs, store, q, nil), nil)

	return &testAPI{router: srv.Router(), jobs: jobs, store: store, queue: q}
}

func multipartBody(t *testing.T, fieldName, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateJob(t *testing.T) {
	api := newTestAPI(t)

	body, contentType := multipartBody(t, "file", "invoice.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)

	rec := api.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		JobID     uuid.UUID `json:"job_id"`
		Mode      string    `json:"mode"`
		Status    string    `json:"status"`
		FileName  string    `json:"file_name"`
		CreatedAt time.Time `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.JobID)
	assert.Equal(t, "DOCUMENT", resp.Mode, "mode defaults to DOCUMENT")
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "invoice.pdf", resp.FileName)
	assert.False(t, resp.CreatedAt.IsZero())

	// Record persisted, file stored, pointer enqueued on the document queue.
	job, err := api.jobs.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, job.Status)

	content, err := api.store.Download(context.Background(), job.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), content)

	require.Len(t, api.queue.enqueued[constants.QueueDocumentJobs], 1)
	var msg entity.QueueMessage
	require.NoError(t, json.Unmarshal(api.queue.enqueued[constants.QueueDocumentJobs][0], &msg))
	assert.Equal(t, resp.JobID, msg.JobID)
}

func TestCreateJob_DesignModeUsesDesignQueue(t *testing.T) {
	api := newTestAPI(t)

	body, contentType := multipartBody(t, "file", "logo.png", []byte{0x89, 0x50})
	req := httptest.NewRequest(http.MethodPost, "/jobs?mode=DESIGN", body)
	req.Header.Set("Content-Type", contentType)

	rec := api.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Len(t, api.queue.enqueued[constants.QueueDesignJobs], 1)
	assert.Empty(t, api.queue.enqueued[constants.QueueDocumentJobs])
}

func TestCreateJob_NoFileIsRejected(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs?mode=DESIGN", nil)
	rec := api.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Multipart form present but no file part.
	body, contentType := multipartBody(t, "attachment", "x.png", []byte{1})
	req = httptest.NewRequest(http.MethodPost, "/jobs?mode=DESIGN", body)
	req.Header.Set("Content-Type", contentType)
	rec = api.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateJob_InvalidMode(t *testing.T) {
	api := newTestAPI(t)

	body, contentType := multipartBody(t, "file", "a.pdf", []byte{1})
	req := httptest.NewRequest(http.MethodPost, "/jobs?mode=PAINTING", body)
	req.Header.Set("Content-Type", contentType)

	rec := api.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAINTING")
}

func TestGetJob_MalformedAndMissing(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobs(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, mode := range []constants.JobMode{constants.JobModeDocument, constants.JobModeDesign} {
		id := uuid.New()
		require.NoError(t, api.jobs.Create(ctx, &entity.Job{
			ID: id, Mode: mode,
			FilePath: fmt.Sprintf("uploads/%s/f", id), FileName: "f",
			Status:    constants.JobStatusPending,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
			UpdatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	var resp struct {
		Jobs  []entity.Job `json:"jobs"`
		Count int          `json:"count"`
	}

	rec := api.do(httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, constants.JobModeDesign, resp.Jobs[0].Mode, "newest first")

	rec = api.do(httptest.NewRequest(http.MethodGet, "/jobs?mode=DOCUMENT", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	// Unrecognized filter values are ignored, not rejected.
	rec = api.do(httptest.NewRequest(http.MethodGet, "/jobs?status=BOGUS&mode=BOGUS", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestUpdateResults(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	id := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, api.jobs.Create(ctx, &entity.Job{
		ID: id, Mode: constants.JobModeDocument,
		FilePath: fmt.Sprintf("uploads/%s/f", id), FileName: "f",
		Status: constants.JobStatusCompleted, CreatedAt: now, UpdatedAt: now,
	}))

	// Missing data field.
	req := httptest.NewRequest(http.MethodPut, "/jobs/"+id.String()+"/results", bytes.NewBufferString(`{}`))
	rec := api.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed id.
	req = httptest.NewRequest(http.MethodPut, "/jobs/oops/results", bytes.NewBufferString(`{"data":{"a":1}}`))
	rec = api.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown job.
	req = httptest.NewRequest(http.MethodPut, "/jobs/"+uuid.NewString()+"/results", bytes.NewBufferString(`{"data":{"a":1}}`))
	rec = api.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Valid update.
	req = httptest.NewRequest(http.MethodPut, "/jobs/"+id.String()+"/results", bytes.NewBufferString(`{"data":{"a":1}}`))
	rec = api.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Message string    `json:"message"`
		JobID   uuid.UUID `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.JobID)
	assert.NotEmpty(t, resp.Message)

	// GET reflects the edit; status is unchanged.
	rec = api.do(httptest.NewRequest(http.MethodGet, "/jobs/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var job entity.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.JSONEq(t, `{"a":1}`, string(job.Results))
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Version)
}
