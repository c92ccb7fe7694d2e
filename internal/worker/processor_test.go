package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/repodoc/docgen_server/internal/fetcher"
	"github.com/repodoc/docgen_server/internal/github"
	"github.com/repodoc/docgen_server/internal/model"
	"github.com/repodoc/docgen_server/internal/model/dto"
	"github.com/repodoc/docgen_server/internal/pkg/queue"
	"github.com/repodoc/docgen_server/internal/rag"
	"github.com/repodoc/docgen_server/internal/repository"
	"github.com/repodoc/docgen_server/internal/service"
	"github.com/repodoc/docgen_server/internal/synthesizer"
	"github.com/repodoc/docgen_server/internal/testutil"
)

type fakeFetcher struct {
	analysis *fetcher.RepoAnalysis
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, repoURL string, ref github.RepoRef) (*fetcher.RepoAnalysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

type fakeRAG struct{}

func (f *fakeRAG) Process(ctx context.Context, analysis *fetcher.RepoAnalysis) *rag.Result {
	return &rag.Result{ProcessingStatus: rag.StatusSkipped}
}

type fakeGenerator struct {
	bundle *synthesizer.Bundle
	err    error
	panics bool
}

func (f *fakeGenerator) Generate(ctx context.Context, analysis *fetcher.RepoAnalysis, ragResult *rag.Result) (*synthesizer.Bundle, error) {
	if f.panics {
		panic("generator exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.bundle, nil
}

func validBundle() *synthesizer.Bundle {
	return &synthesizer.Bundle{
		Readme:           "# readme",
		APIDocs:          "# api",
		SetupGuide:       "# setup",
		ArchitectureDocs: "# architecture",
	}
}

func validAnalysis() *fetcher.RepoAnalysis {
	return &fetcher.RepoAnalysis{
		Owner:       "octo",
		Name:        "hello",
		PrimaryLang: "Go",
		Files:       []fetcher.File{{Path: "main.go", Content: "package main"}},
	}
}

func newTestProcessor(t *testing.T, db *gorm.DB, f repoFetcher, g docGenerator) *Processor {
	t.Helper()
	return &Processor{
		jobRepo:      repository.NewJobRepository(db),
		cacheRepo:    repository.NewCacheRepository(db),
		fetcher:      f,
		rag:          &fakeRAG{},
		generator:    g,
		fetchTimeout: 2 * time.Second,
		synthTimeout: 2 * time.Second,
		cacheTTL:     time.Hour,
		packageDir:   t.TempDir(),
	}
}

func loadJob(t *testing.T, db *gorm.DB, id string) *model.AnalysisJob {
	t.Helper()
	job, err := repository.NewJobRepository(db).GetByID(id)
	require.NoError(t, err)
	return job
}

func TestProcessCompletesJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	job := testutil.TestJob(t, db, model.StatusPending)

	p := newTestProcessor(t, db, &fakeFetcher{analysis: validAnalysis()}, &fakeGenerator{bundle: validBundle()})

	err := p.Process(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL})
	require.NoError(t, err)

	got := loadJob(t, db, job.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "done", got.CurrentStep)
	assert.NotNil(t, got.CompletedAt)

	var result jobResult
	require.NoError(t, json.Unmarshal([]byte(got.Result), &result))
	assert.Equal(t, "octo", result.Analysis.Owner)
	assert.Equal(t, got.PackageURL, result.PackageURL)

	// The archive landed in the package directory.
	path := filepath.Join(p.packageDir, job.ID+".zip")
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestProcessSkipsAlreadyClaimedJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	job := testutil.TestJob(t, db, model.StatusProcessing)

	f := &fakeFetcher{analysis: validAnalysis()}
	p := newTestProcessor(t, db, f, &fakeGenerator{bundle: validBundle()})

	err := p.Process(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL})
	require.NoError(t, err)

	assert.Equal(t, 0, f.calls)
	assert.Equal(t, model.StatusProcessing, loadJob(t, db, job.ID).Status)
}

func TestProcessInvalidURLFailsJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	job := testutil.TestJob(t, db, model.StatusPending, testutil.WithRepoURL("https://gitlab.com/a/b"))

	p := newTestProcessor(t, db, &fakeFetcher{}, &fakeGenerator{bundle: validBundle()})

	err := p.Process(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL})
	require.NoError(t, err)

	got := loadJob(t, db, job.ID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "validation", got.CurrentStep)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestProcessFetchNotFoundFailsJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	job := testutil.TestJob(t, db, model.StatusPending)

	apiErr := &github.APIError{StatusCode: 404, UserMessage: "repository not found or not accessible", RawError: "secret detail"}
	p := newTestProcessor(t, db, &fakeFetcher{err: apiErr}, &fakeGenerator{bundle: validBundle()})

	err := p.Process(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL})
	require.NoError(t, err)

	got := loadJob(t, db, job.ID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "repository not found or not accessible", got.ErrorMessage)
	// The raw detail never reaches the record.
	assert.NotContains(t, got.ErrorMessage, "secret detail")
}

func TestProcessFetchTimeoutFailsJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	job := testutil.TestJob(t, db, model.StatusPending)

	p := newTestProcessor(t, db, &fakeFetcher{err: context.DeadlineExceeded}, &fakeGenerator{bundle: validBundle()})

	err := p.Process(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL})
	require.NoError(t, err)

	got := loadJob(t, db, job.ID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "timed out after")
}

func TestProcessSynthesisErrorFailsJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	job := testutil.TestJob(t, db, model.StatusPending)

	synthErr := &synthesizer.SynthesisError{UserMessage: "documentation generation failed while writing the readme", RawError: "boom"}
	p := newTestProcessor(t, db, &fakeFetcher{analysis: validAnalysis()}, &fakeGenerator{err: synthErr})

	err := p.Process(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL})
	require.NoError(t, err)

	got := loadJob(t, db, job.ID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "generating", got.CurrentStep)
	assert.Equal(t, synthErr.UserMessage, got.ErrorMessage)
}

func TestProcessPanicFailsJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	job := testutil.TestJob(t, db, model.StatusPending)

	p := newTestProcessor(t, db, &fakeFetcher{analysis: validAnalysis()}, &fakeGenerator{panics: true})

	err := p.Process(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL})
	require.NoError(t, err)

	got := loadJob(t, db, job.ID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "internal error during processing", got.ErrorMessage)
}

// repoAwareFetcher derives the analysis from the requested repository,
// so two jobs running at once produce distinguishable results.
type repoAwareFetcher struct{}

func (repoAwareFetcher) Fetch(ctx context.Context, repoURL string, ref github.RepoRef) (*fetcher.RepoAnalysis, error) {
	return &fetcher.RepoAnalysis{
		Owner:       ref.Owner,
		Name:        ref.Name,
		PrimaryLang: "Go",
		Files:       []fetcher.File{{Path: "main.go", Content: "package " + ref.Name}},
	}, nil
}

func TestConcurrentSubmissionsStayIndependent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := testutil.SetupTestRedis(t)
	q := queue.NewQueue(client, "test:jobs")
	repo := repository.NewJobRepository(db)
	svc := service.NewJobService(repo, q, nil)

	repoURLs := []string{
		"https://github.com/octo/alpha",
		"https://github.com/octo/beta",
	}

	responses := make([]*dto.AnalyzeResponse, len(repoURLs))
	var wg sync.WaitGroup
	for i, url := range repoURLs {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			resp, err := svc.Submit(context.Background(), url)
			assert.NoError(t, err)
			responses[i] = resp
		}(i, url)
	}
	wg.Wait()

	require.NotNil(t, responses[0])
	require.NotNil(t, responses[1])
	assert.NotEqual(t, responses[0].JobID, responses[1].JobID)

	p := newTestProcessor(t, db, repoAwareFetcher{}, &fakeGenerator{bundle: validBundle()})

	for i := 0; i < len(repoURLs); i++ {
		msg, err := q.Pop(context.Background(), time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg)
		wg.Add(1)
		go func(msg *queue.JobMessage) {
			defer wg.Done()
			assert.NoError(t, p.Process(context.Background(), msg))
		}(msg)
	}
	wg.Wait()

	// Each job reaches its own terminal state carrying its own repo's
	// data, with nothing leaking across.
	for _, resp := range responses {
		got := loadJob(t, db, resp.JobID)
		assert.Equal(t, model.StatusCompleted, got.Status)

		var result jobResult
		require.NoError(t, json.Unmarshal([]byte(got.Result), &result))
		assert.Equal(t, resp.RepoName, result.Analysis.Name)
		assert.Contains(t, got.PackageURL, resp.JobID)
	}
}

func TestProcessUsesCachedAnalysis(t *testing.T) {
	db := testutil.SetupTestDB(t)
	job := testutil.TestJob(t, db, model.StatusPending)

	cached, err := json.Marshal(validAnalysis())
	require.NoError(t, err)
	testutil.TestCacheEntry(t, db, job.RepoURL, string(cached), time.Now().Add(time.Hour))

	// The fetcher would fail if called; the cache must satisfy the fetch.
	f := &fakeFetcher{err: errors.New("network down")}
	p := newTestProcessor(t, db, f, &fakeGenerator{bundle: validBundle()})

	err = p.Process(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL})
	require.NoError(t, err)

	assert.Equal(t, 0, f.calls)
	assert.Equal(t, model.StatusCompleted, loadJob(t, db, job.ID).Status)
}

func TestProcessWritesCacheAfterFetch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	job := testutil.TestJob(t, db, model.StatusPending)

	p := newTestProcessor(t, db, &fakeFetcher{analysis: validAnalysis()}, &fakeGenerator{bundle: validBundle()})

	err := p.Process(context.Background(), &queue.JobMessage{JobID: job.ID, RepoURL: job.RepoURL})
	require.NoError(t, err)

	entry, err := repository.NewCacheRepository(db).Get(job.RepoURL)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Contains(t, entry.AnalysisData, "octo")
}
