package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repodoc/docgen_server/internal/model"
	"github.com/repodoc/docgen_server/internal/testutil"
)

func TestCreateAssignsID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)

	job := &model.AnalysisJob{
		RepoURL: "https://github.com/octo/hello",
		Status:  model.StatusPending,
	}
	require.NoError(t, repo.Create(job))
	assert.NotEmpty(t, job.ID)

	got, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.RepoURL, got.RepoURL)
}

func TestListOrdersNewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)

	base := time.Now().Add(-time.Hour)
	old := testutil.TestJob(t, db, model.StatusPending, testutil.WithCreatedAt(base))
	recent := testutil.TestJob(t, db, model.StatusPending, testutil.WithCreatedAt(base.Add(10*time.Minute)))

	jobs, total, err := repo.List(1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, jobs, 2)
	assert.Equal(t, recent.ID, jobs[0].ID)
	assert.Equal(t, old.ID, jobs[1].ID)
}

func TestMarkProcessingClaimsOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, model.StatusPending)

	claimed, err := repo.MarkProcessing(job.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim misses the compare-and-swap.
	claimed, err = repo.MarkProcessing(job.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestMarkProcessingIgnoresTerminalJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, model.StatusCompleted)

	claimed, err := repo.MarkProcessing(job.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, model.StatusCompleted, mustGet(t, repo, job.ID).Status)
}

func TestCompleteRequiresProcessing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)

	pending := testutil.TestJob(t, db, model.StatusPending)
	done, err := repo.Complete(pending.ID, `{"ok":true}`, "local:///tmp/a.zip")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, model.StatusPending, mustGet(t, repo, pending.ID).Status)

	processing := testutil.TestJob(t, db, model.StatusProcessing)
	done, err = repo.Complete(processing.ID, `{"ok":true}`, "local:///tmp/a.zip")
	require.NoError(t, err)
	assert.True(t, done)

	got := mustGet(t, repo, processing.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "done", got.CurrentStep)
	assert.Equal(t, `{"ok":true}`, got.Result)
	assert.NotNil(t, got.CompletedAt)
}

func TestCompleteRecordsElapsedInSameWrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)

	job := testutil.TestJob(t, db, model.StatusProcessing,
		testutil.WithStartedAt(time.Now().Add(-90*time.Second)))

	done, err := repo.Complete(job.ID, `{"ok":true}`, "local:///tmp/a.zip")
	require.NoError(t, err)
	require.True(t, done)

	got := mustGet(t, repo, job.ID)
	assert.GreaterOrEqual(t, got.ElapsedSeconds, 90)
	assert.LessOrEqual(t, got.ElapsedSeconds, 92)
}

func TestFailWhilePendingLeavesElapsedZero(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)

	job := testutil.TestJob(t, db, model.StatusPending)

	failed, err := repo.Fail(job.ID, "queueing", "failed to schedule")
	require.NoError(t, err)
	require.True(t, failed)

	got := mustGet(t, repo, job.ID)
	assert.Zero(t, got.ElapsedSeconds)
	assert.Nil(t, got.StartedAt)
}

func TestFailFromPendingAndProcessing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)

	pending := testutil.TestJob(t, db, model.StatusPending)
	failed, err := repo.Fail(pending.ID, "queueing", "failed to schedule")
	require.NoError(t, err)
	assert.True(t, failed)

	processing := testutil.TestJob(t, db, model.StatusProcessing)
	failed, err = repo.Fail(processing.ID, "fetching", "repository not found")
	require.NoError(t, err)
	assert.True(t, failed)

	got := mustGet(t, repo, processing.ID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "repository not found", got.ErrorMessage)
}

func TestFailNeverTouchesTerminalJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)

	completed := testutil.TestJob(t, db, model.StatusCompleted, testutil.WithResult(`{"ok":true}`))
	failed, err := repo.Fail(completed.ID, "late", "should not apply")
	require.NoError(t, err)
	assert.False(t, failed)

	got := mustGet(t, repo, completed.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
	assert.Equal(t, `{"ok":true}`, got.Result)
}

func TestUpdateStepOnlyWhileProcessing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)

	processing := testutil.TestJob(t, db, model.StatusProcessing)
	require.NoError(t, repo.UpdateStep(processing.ID, "generating"))
	assert.Equal(t, "generating", mustGet(t, repo, processing.ID).CurrentStep)

	completed := testutil.TestJob(t, db, model.StatusCompleted)
	require.NoError(t, repo.UpdateStep(completed.ID, "late-step"))
	assert.Empty(t, mustGet(t, repo, completed.ID).CurrentStep)
}

func TestCountByStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepository(db)

	testutil.TestJob(t, db, model.StatusPending)
	testutil.TestJob(t, db, model.StatusPending)
	testutil.TestJob(t, db, model.StatusFailed)

	count, err := repo.CountByStatus(model.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func mustGet(t *testing.T, repo *JobRepository, id string) *model.AnalysisJob {
	t.Helper()
	job, err := repo.GetByID(id)
	require.NoError(t, err)
	return job
}
