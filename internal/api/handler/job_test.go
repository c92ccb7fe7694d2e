package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/repodoc/docgen_server/internal/model"
	"github.com/repodoc/docgen_server/internal/pkg/queue"
	"github.com/repodoc/docgen_server/internal/pkg/response"
	"github.com/repodoc/docgen_server/internal/repository"
	"github.com/repodoc/docgen_server/internal/service"
	"github.com/repodoc/docgen_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	queue  *queue.Queue
}

func setupJobRouter(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	client := testutil.SetupTestRedis(t)
	q := queue.NewQueue(client, "test:jobs")

	jobRepo := repository.NewJobRepository(db)
	jobService := service.NewJobService(jobRepo, q, nil)
	h := NewJobHandler(jobService)

	r := gin.New()
	r.POST("/api/v1/analyze", h.Analyze)
	r.GET("/api/v1/jobs", h.ListJobs)
	r.GET("/api/v1/jobs/:id", h.GetJob)
	r.GET("/api/v1/jobs/:id/download", h.Download)

	return &testEnv{router: r, db: db, queue: q}
}

func performRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) *response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func TestAnalyzeAccepted(t *testing.T) {
	env := setupJobRouter(t)

	w := performRequest(env.router, http.MethodPost, "/api/v1/analyze",
		`{"repo_url":"https://github.com/octo/hello"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["job_id"])
	assert.Equal(t, model.StatusPending, data["status"])
	assert.Equal(t, "octo", data["repo_owner"])

	depth, err := env.queue.Length(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestAnalyzeMissingBody(t *testing.T) {
	env := setupJobRouter(t)

	w := performRequest(env.router, http.MethodPost, "/api/v1/analyze", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAnalyzeInvalidURL(t *testing.T) {
	env := setupJobRouter(t)

	w := performRequest(env.router, http.MethodPost, "/api/v1/analyze",
		`{"repo_url":"https://gitlab.com/foo/bar"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobPendingOmitsResult(t *testing.T) {
	env := setupJobRouter(t)
	job := testutil.TestJob(t, env.db, model.StatusPending)

	w := performRequest(env.router, http.MethodGet, "/api/v1/jobs/"+job.ID, "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, model.StatusPending, data["status"])
	assert.Nil(t, data["result"])
	assert.Nil(t, data["error_message"])
}

func TestGetJobCompletedIncludesResult(t *testing.T) {
	env := setupJobRouter(t)
	job := testutil.TestJob(t, env.db, model.StatusCompleted,
		testutil.WithResult(`{"package_url":"local:///tmp/a.zip"}`),
		testutil.WithPackageURL("local:///tmp/a.zip"))

	w := performRequest(env.router, http.MethodGet, "/api/v1/jobs/"+job.ID, "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, model.StatusCompleted, data["status"])
	assert.NotNil(t, data["result"])
	assert.Equal(t, "/api/v1/jobs/"+job.ID+"/download", data["download_url"])
}

func TestGetJobNotFound(t *testing.T) {
	env := setupJobRouter(t)

	w := performRequest(env.router, http.MethodGet, "/api/v1/jobs/nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestListJobs(t *testing.T) {
	env := setupJobRouter(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		testutil.TestJob(t, env.db, model.StatusPending, testutil.WithCreatedAt(base.Add(time.Duration(i)*time.Minute)))
	}

	w := performRequest(env.router, http.MethodGet, "/api/v1/jobs?page=1&page_size=2", "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["total"])
	assert.Len(t, data["items"], 2)
}

func TestDownloadLocalPackage(t *testing.T) {
	env := setupJobRouter(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.zip")
	require.NoError(t, os.WriteFile(path, []byte("zipbytes"), 0o644))

	job := testutil.TestJob(t, env.db, model.StatusCompleted,
		testutil.WithPackageURL("local://"+path))

	w := performRequest(env.router, http.MethodGet, "/api/v1/jobs/"+job.ID+"/download", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zipbytes", w.Body.String())
}

func TestDownloadRemotePackageRedirects(t *testing.T) {
	env := setupJobRouter(t)
	job := testutil.TestJob(t, env.db, model.StatusCompleted,
		testutil.WithPackageURL("https://cdn.example.com/pkg.zip"))

	w := performRequest(env.router, http.MethodGet, "/api/v1/jobs/"+job.ID+"/download", "")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://cdn.example.com/pkg.zip", w.Header().Get("Location"))
}

func TestDownloadNotReady(t *testing.T) {
	env := setupJobRouter(t)
	job := testutil.TestJob(t, env.db, model.StatusProcessing)

	w := performRequest(env.router, http.MethodGet, "/api/v1/jobs/"+job.ID+"/download", "")

	assert.Equal(t, http.StatusConflict, w.Code)
}
