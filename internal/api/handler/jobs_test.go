package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforge/videoforge/internal/api/handler"
	"github.com/videoforge/videoforge/internal/job"
	"github.com/videoforge/videoforge/internal/pipeline"
)

// fakeExecutor implements Submitter and Canceller against a real store.
type fakeExecutor struct {
	store     *job.MemoryStore
	submitErr error
	cancelled []uuid.UUID
}

func (e *fakeExecutor) Submit(spec job.Spec) (*job.Job, error) {
	if e.submitErr != nil {
		return nil, e.submitErr
	}
	return e.store.Create(spec), nil
}

func (e *fakeExecutor) Cancel(id uuid.UUID) bool {
	j, err := e.store.Get(id)
	if err != nil || j.Terminal() {
		return false
	}
	e.cancelled = append(e.cancelled, id)
	e.store.Fail(id, "cancelled")
	return true
}

func jobsRouter(store *job.MemoryStore, exec *fakeExecutor, b *job.Broadcaster) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/jobs", handler.NewSubmitJobHandler(exec))
	r.Get("/api/v1/jobs/{jobID}", handler.NewGetJobHandler(store))
	r.Delete("/api/v1/jobs/{jobID}", handler.NewCancelJobHandler(store, exec))
	if b != nil {
		r.Get("/api/v1/jobs/{jobID}/events", handler.NewJobEventsHandler(store, b))
	}
	return r
}

func decodeData(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	return env.Data
}

func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(body, &env))
	return env["error"].(map[string]any)["code"].(string)
}

func TestSubmitJob_Accepted(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	req := httptest.NewRequest("POST", "/api/v1/jobs",
		strings.NewReader(`{"script":"a script","duration":90,"title":"My Video"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	data := decodeData(t, w.Body.Bytes())
	assert.Equal(t, "queued", data["status"])

	id, err := uuid.Parse(data["job_id"].(string))
	require.NoError(t, err)
	j, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "My Video", j.Spec.Title)
	assert.InDelta(t, 90.0, j.Spec.Duration, 0.001)
}

func TestSubmitJob_DefaultsDuration(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	req := httptest.NewRequest("POST", "/api/v1/jobs", strings.NewReader(`{"script":"a script"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	data := decodeData(t, w.Body.Bytes())
	id := uuid.MustParse(data["job_id"].(string))
	j, err := store.Get(id)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, j.Spec.Duration, 0.001)
}

func TestSubmitJob_MissingScript(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	req := httptest.NewRequest("POST", "/api/v1/jobs", strings.NewReader(`{"duration":60}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, w.Body.Bytes()))
}

func TestSubmitJob_OversizedScript(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	big, err := json.Marshal(map[string]any{"script": strings.Repeat("x", 65*1024)})
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/v1/jobs", strings.NewReader(string(big)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, w.Body.Bytes()))
}

func TestSubmitJob_InvalidJSON(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	req := httptest.NewRequest("POST", "/api/v1/jobs", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitJob_QueueFull(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store, submitErr: pipeline.ErrQueueFull}, nil)

	req := httptest.NewRequest("POST", "/api/v1/jobs", strings.NewReader(`{"script":"a script"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "QUEUE_FULL", decodeErrorCode(t, w.Body.Bytes()))
}

func TestGetJob_ReturnsRecord(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	j := store.Create(job.Spec{Script: "x"})
	store.Update(j.ID, 45, "Sourcing clips (3 of 7 clips fetched)", 120)

	req := httptest.NewRequest("GET", "/api/v1/jobs/"+j.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w.Body.Bytes())
	assert.Equal(t, "processing", data["status"])
	assert.EqualValues(t, 45, data["progress"])
	assert.Equal(t, "Sourcing clips (3 of 7 clips fetched)", data["current_step"])
	assert.EqualValues(t, 120, data["eta_seconds"])

	// The raw script must never leak into responses.
	_, leaked := data["script"]
	assert.False(t, leaked)
}

func TestGetJob_UnknownID(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	req := httptest.NewRequest("GET", "/api/v1/jobs/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, w.Body.Bytes()))
}

func TestGetJob_MalformedID(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	req := httptest.NewRequest("GET", "/api/v1/jobs/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, w.Body.Bytes()))
}

func TestCancelJob_RunningJob(t *testing.T) {
	store := job.NewMemoryStore(nil)
	exec := &fakeExecutor{store: store}
	router := jobsRouter(store, exec, nil)

	j := store.Create(job.Spec{Script: "x"})

	req := httptest.NewRequest("DELETE", "/api/v1/jobs/"+j.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{j.ID}, exec.cancelled)
}

func TestCancelJob_AlreadyTerminal(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	j := store.Create(job.Spec{Script: "x"})
	store.Complete(j.ID, job.Result{BundleURL: "u"})

	req := httptest.NewRequest("DELETE", "/api/v1/jobs/"+j.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_TERMINAL", decodeErrorCode(t, w.Body.Bytes()))
}

func TestCancelJob_UnknownID(t *testing.T) {
	store := job.NewMemoryStore(nil)
	router := jobsRouter(store, &fakeExecutor{store: store}, nil)

	req := httptest.NewRequest("DELETE", "/api/v1/jobs/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
