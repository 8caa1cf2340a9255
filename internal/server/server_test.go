package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/export"
	"github.com/joseph-ayodele/notetasks/internal/ingest"
)

type memJobs struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*entity.Job
	tasks map[uuid.UUID][]entity.Task
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[uuid.UUID]*entity.Job{}, tasks: map[uuid.UUID][]entity.Task{}}
}

func (m *memJobs) GetJob(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, common.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) ListTasks(_ context.Context, id uuid.UUID) ([]entity.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id], nil
}

func (m *memJobs) ListJobs(_ context.Context, st constants.JobStatus, limit int) ([]entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Job
	for _, j := range m.jobs {
		if st != "" && j.Status != st {
			continue
		}
		out = append(out, *j)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memJobs) put(job *entity.Job, tasks ...entity.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	m.tasks[job.ID] = tasks
}

type stubUploader struct {
	got ingest.UploadRequest
	err error
}

func (u *stubUploader) Upload(_ context.Context, req ingest.UploadRequest) (ingest.IngestionResult, error) {
	u.got = req
	if u.err != nil {
		return ingest.IngestionResult{}, u.err
	}
	return ingest.IngestionResult{JobID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Status: constants.JobStatusPending}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func completedJob() (*entity.Job, []entity.Task) {
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	started := now.Add(-5 * time.Second)
	dur := 5.0
	conf := 0.9
	due := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	job := &entity.Job{
		ID: uuid.New(), Status: constants.JobStatusCompleted, OriginalFilename: "notes.jpg", ImageSize: 42,
		CreatedAt: started, UpdatedAt: now, StartedAt: &started, CompletedAt: &now, ProcessingDuration: &dur, OCRConfidence: &conf,
	}
	tasks := []entity.Task{
		{ID: uuid.New(), JobID: job.ID, Name: "Call vendor", Assignee: "Sam", DueDate: &due, Priority: constants.PriorityHigh,
			Confidence: &conf, BBox: &entity.BBox{X: 1, Y: 2, Width: 30, Height: 10}},
		{ID: uuid.New(), JobID: job.ID, Name: "Draft agenda", Priority: constants.PriorityMedium, PositionIndex: 1},
	}
	return job, tasks
}

func newTestRouter(jobs *memJobs, up *stubUploader, maxBytes int64) http.Handler {
	return NewHTTPHandler(HTTPDeps{
		Jobs:           jobs,
		Uploader:       up,
		Exporter:       export.NewService(jobs, discard()),
		Health:         func(context.Context) error { return nil },
		MaxUploadBytes: maxBytes,
		Logger:         discard(),
	})
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHTTP_Upload(t *testing.T) {
	up := &stubUploader{}
	h := newTestRouter(newMemJobs(), up, 0)

	body, ct := multipartBody(t, "image", "notes.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", resp["transaction_id"])
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, "notes.png", up.got.Filename)
	assert.Equal(t, []byte("png"), up.got.Data)
	assert.NotEmpty(t, up.got.TraceID)
}

func TestHTTP_UploadErrors(t *testing.T) {
	t.Run("missing field", func(t *testing.T) {
		h := newTestRouter(newMemJobs(), &stubUploader{}, 0)
		body, ct := multipartBody(t, "file", "notes.png", []byte("png"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("rejected by use case", func(t *testing.T) {
		h := newTestRouter(newMemJobs(), &stubUploader{err: common.NewInvalidInputError("file type \"pdf\" not allowed")}, 0)
		body, ct := multipartBody(t, "image", "notes.pdf", []byte("pdf"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "not allowed")
	})
	t.Run("internal error is not leaked", func(t *testing.T) {
		h := newTestRouter(newMemJobs(), &stubUploader{err: errors.New("dial tcp 10.0.0.1: refused")}, 0)
		body, ct := multipartBody(t, "image", "notes.png", []byte("png"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.1")
	})
	t.Run("body over limit", func(t *testing.T) {
		h := newTestRouter(newMemJobs(), &stubUploader{}, 8)
		body, ct := multipartBody(t, "image", "notes.png", bytes.Repeat([]byte("a"), 2<<20))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHTTP_Status(t *testing.T) {
	jobs := newMemJobs()
	done, tasks := completedJob()
	jobs.put(done, tasks...)
	pending := &entity.Job{ID: uuid.New(), Status: constants.JobStatusPending, CreatedAt: time.Now().UTC()}
	jobs.put(pending)
	h := newTestRouter(jobs, &stubUploader{}, 0)

	get := func(path string) (int, map[string]any) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		var body map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		return rec.Code, body
	}

	code, body := get("/api/status/" + pending.ID.String())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", body["status"])
	assert.EqualValues(t, 0, body["task_count"])
	assert.NotContains(t, body, "extracted_tasks")

	code, body = get("/api/status/" + done.ID.String())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", body["status"])
	require.Contains(t, body, "extracted_tasks")
	list := body["extracted_tasks"].([]any)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	assert.Equal(t, "Call vendor", first["task_name"])
	assert.Equal(t, "2025-03-12", first["due_date"])
	assert.EqualValues(t, 30, first["bbox_width"])

	code, _ = get("/api/status/" + uuid.NewString())
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get("/api/status/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = get("/api/jobs/" + pending.ID.String())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", body["status"])
	assert.Empty(t, body["extracted_tasks"])
}

func TestHTTP_ListJobs(t *testing.T) {
	jobs := newMemJobs()
	done, tasks := completedJob()
	jobs.put(done, tasks...)
	jobs.put(&entity.Job{ID: uuid.New(), Status: constants.JobStatusPending})
	h := newTestRouter(jobs, &stubUploader{}, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Jobs []map[string]any `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, done.ID.String(), body.Jobs[0]["transaction_id"])
	assert.NotContains(t, body.Jobs[0], "task_count")

	for _, q := range []string{"status=bogus", "limit=0", "limit=x", "limit=501"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHTTP_ExportHealthAndMetrics(t *testing.T) {
	jobs := newMemJobs()
	done, tasks := completedJob()
	jobs.put(done, tasks...)
	h := newTestRouter(jobs, &stubUploader{}, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+done.ID.String()+"/export.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), done.ID.String())
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "notetasks_")
}

func TestHTTP_HealthzUnavailable(t *testing.T) {
	h := NewHTTPHandler(HTTPDeps{
		Jobs:   newMemJobs(),
		Health: func(context.Context) error { return errors.New("db down") },
		Logger: discard(),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func dialBufconn(t *testing.T, jobs *memJobs) (*grpc.ClientConn, func()) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, hs := NewGRPCServer(NewJobService(jobs, discard()))
	SetServing(hs)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	return conn, func() {
		_ = conn.Close()
		srv.Stop()
	}
}

func TestGRPC_JobsService(t *testing.T) {
	jobs := newMemJobs()
	done, tasks := completedJob()
	jobs.put(done, tasks...)
	conn, cleanup := dialBufconn(t, jobs)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := NewJobsServiceClient(conn)

	out, err := client.GetJob(ctx, done.ID.String())
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, done.ID.String(), m["transaction_id"])
	assert.Equal(t, "completed", m["status"])
	assert.Len(t, m["extracted_tasks"], 2)

	out, err = client.ListJobTasks(ctx, done.ID.String())
	require.NoError(t, err)
	list := out.AsMap()["tasks"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "Draft agenda", list[1].(map[string]any)["task_name"])

	_, err = client.GetJob(ctx, uuid.NewString())
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.ListJobTasks(ctx, "nope")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: JobsServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.GetStatus())
}
