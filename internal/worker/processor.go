package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/fetcher"
	"github.com/repodoc/docgen_server/internal/github"
	"github.com/repodoc/docgen_server/internal/model"
	"github.com/repodoc/docgen_server/internal/packager"
	"github.com/repodoc/docgen_server/internal/pkg/oss"
	"github.com/repodoc/docgen_server/internal/pkg/pubsub"
	"github.com/repodoc/docgen_server/internal/pkg/queue"
	"github.com/repodoc/docgen_server/internal/rag"
	"github.com/repodoc/docgen_server/internal/repository"
	"github.com/repodoc/docgen_server/internal/synthesizer"
)

// repoFetcher and docGenerator let tests substitute the pipeline stages.
type repoFetcher interface {
	Fetch(ctx context.Context, repoURL string, ref github.RepoRef) (*fetcher.RepoAnalysis, error)
}

type ragPipeline interface {
	Process(ctx context.Context, analysis *fetcher.RepoAnalysis) *rag.Result
}

type docGenerator interface {
	Generate(ctx context.Context, analysis *fetcher.RepoAnalysis, ragResult *rag.Result) (*synthesizer.Bundle, error)
}

// jobResult is the payload persisted on a completed job.
type jobResult struct {
	Analysis      *fetcher.RepoAnalysis `json:"analysis"`
	RAG           *rag.Result           `json:"rag"`
	Documentation *synthesizer.Bundle   `json:"documentation"`
	PackageURL    string                `json:"package_url"`
	GeneratedAt   time.Time             `json:"generated_at"`
}

// Processor runs the documentation pipeline for one job at a time.
type Processor struct {
	jobRepo   *repository.JobRepository
	cacheRepo *repository.CacheRepository
	fetcher   repoFetcher
	rag       ragPipeline
	generator docGenerator
	ossClient *oss.Client
	publisher *pubsub.Publisher

	fetchTimeout time.Duration
	synthTimeout time.Duration
	cacheTTL     time.Duration
	packageDir   string
}

func NewProcessor(
	cfg *config.Config,
	jobRepo *repository.JobRepository,
	cacheRepo *repository.CacheRepository,
	ghClient *github.Client,
	publisher *pubsub.Publisher,
	ossClient *oss.Client,
) *Processor {
	return &Processor{
		jobRepo:      jobRepo,
		cacheRepo:    cacheRepo,
		fetcher:      fetcher.New(ghClient, cfg.Worker.MaxFiles, cfg.Worker.MaxFileBytes),
		rag:          rag.New(&cfg.LLM),
		generator:    synthesizer.NewGenerator(&cfg.LLM),
		ossClient:    ossClient,
		publisher:    publisher,
		fetchTimeout: time.Duration(cfg.Worker.FetchTimeoutSeconds) * time.Second,
		synthTimeout: time.Duration(cfg.Worker.SynthesizeTimeoutSeconds) * time.Second,
		cacheTTL:     time.Duration(cfg.Cache.TTLHours) * time.Hour,
		packageDir:   cfg.Output.PackageDir,
	}
}

// Process executes a queued job. It returns an error only for
// infrastructure trouble the caller should log; job-level failures are
// absorbed into the job record.
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) (err error) {
	// A panic anywhere in the pipeline must not strand the job in
	// processing.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic while processing job %s: %v", msg.JobID, r)
			p.failJob(msg.JobID, "processing", "internal error during processing")
			err = nil
		}
	}()

	claimed, err := p.jobRepo.MarkProcessing(msg.JobID)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", msg.JobID, err)
	}
	if !claimed {
		// Duplicate delivery or a job already finished elsewhere.
		log.Printf("job %s not claimable, skipping", msg.JobID)
		return nil
	}

	ref, err := github.ParseRepoURL(msg.RepoURL)
	if err != nil {
		p.failJob(msg.JobID, "validation", err.Error())
		return nil
	}

	// Fetch phase.
	p.advance(msg.JobID, pubsub.StepFetching)
	analysis, err := p.fetchWithCache(ctx, msg.RepoURL, ref)
	if err != nil {
		p.failJob(msg.JobID, "fetching", p.describeError(err, "fetching repository contents", p.fetchTimeout))
		return nil
	}

	// Indexing and generation share the synthesis deadline.
	synthCtx, cancel := context.WithTimeout(ctx, p.synthTimeout)
	defer cancel()

	p.advance(msg.JobID, pubsub.StepIndexing)
	ragResult := p.rag.Process(synthCtx, analysis)

	p.advance(msg.JobID, pubsub.StepGenerating)
	bundle, err := p.generator.Generate(synthCtx, analysis, ragResult)
	if err != nil {
		p.failJob(msg.JobID, "generating", p.describeError(err, "generating documentation", p.synthTimeout))
		return nil
	}

	// Packaging phase.
	p.advance(msg.JobID, pubsub.StepPackaging)
	archive, err := packager.Build(bundle)
	if err != nil {
		p.failJob(msg.JobID, "packaging", "failed to package the documentation bundle")
		return nil
	}

	packageURL, err := p.storePackage(msg.JobID, archive)
	if err != nil {
		log.Printf("store package for job %s: %v", msg.JobID, err)
		p.failJob(msg.JobID, "packaging", "failed to store the documentation package")
		return nil
	}

	result := jobResult{
		Analysis:      analysis,
		RAG:           ragResult,
		Documentation: bundle,
		PackageURL:    packageURL,
		GeneratedAt:   time.Now().UTC(),
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		p.failJob(msg.JobID, "packaging", "failed to encode the job result")
		return nil
	}

	done, err := p.jobRepo.Complete(msg.JobID, string(resultJSON), packageURL)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", msg.JobID, err)
	}
	if !done {
		log.Printf("job %s no longer processing at completion, result dropped", msg.JobID)
		return nil
	}

	p.publish(&pubsub.ProgressMessage{
		JobID:  msg.JobID,
		Status: model.StatusCompleted,
		Step:   pubsub.StepDone,
	})
	return nil
}

// fetchWithCache serves a recent snapshot when one exists, fetching and
// caching otherwise.
func (p *Processor) fetchWithCache(ctx context.Context, repoURL string, ref github.RepoRef) (*fetcher.RepoAnalysis, error) {
	if entry, err := p.cacheRepo.Get(repoURL); err == nil && entry != nil {
		var analysis fetcher.RepoAnalysis
		if err := json.Unmarshal([]byte(entry.AnalysisData), &analysis); err == nil {
			log.Printf("cache hit for %s", repoURL)
			return &analysis, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	analysis, err := p.fetcher.Fetch(fetchCtx, repoURL, ref)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(analysis); err == nil {
		if err := p.cacheRepo.Put(repoURL, string(data), p.cacheTTL); err != nil {
			log.Printf("cache write for %s failed: %v", repoURL, err)
		}
	}

	return analysis, nil
}

// storePackage uploads to object storage when configured, falling back
// to the local package directory. Uploaded packages are recorded by
// object key; the download handler resolves the key to a URL at
// request time so signatures never go stale in the database.
func (p *Processor) storePackage(jobID string, archive []byte) (string, error) {
	if p.ossClient != nil {
		objectKey, err := p.ossClient.UploadPackage(jobID, archive)
		if err != nil {
			return "", err
		}
		return "oss://" + objectKey, nil
	}

	if err := os.MkdirAll(p.packageDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(p.packageDir, jobID+".zip")
	if err := os.WriteFile(path, archive, 0o644); err != nil {
		return "", err
	}
	return "local://" + path, nil
}

// describeError turns a pipeline error into the message persisted on
// the job. Timeouts get a distinct message; typed errors carry their
// own user-safe text; anything else gets a generic phrase so raw
// detail never reaches the record.
func (p *Processor) describeError(err error, phase string, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s timed out after %d seconds", phase, int(timeout.Seconds()))
	}

	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		log.Printf("github error: %s", apiErr.RawError)
		return apiErr.UserMessage
	}

	var synthErr *synthesizer.SynthesisError
	if errors.As(err, &synthErr) {
		log.Printf("synthesis error: %s", synthErr.RawError)
		return synthErr.UserMessage
	}

	log.Printf("%s failed: %v", phase, err)
	return phase + " failed"
}

func (p *Processor) advance(jobID, step string) {
	if err := p.jobRepo.UpdateStep(jobID, step); err != nil {
		log.Printf("update step for job %s: %v", jobID, err)
	}
	p.publish(&pubsub.ProgressMessage{
		JobID:  jobID,
		Status: model.StatusProcessing,
		Step:   step,
	})
}

func (p *Processor) failJob(jobID, step, message string) {
	failed, err := p.jobRepo.Fail(jobID, step, message)
	if err != nil {
		log.Printf("mark job %s failed: %v", jobID, err)
		return
	}
	if !failed {
		return
	}
	p.publish(&pubsub.ProgressMessage{
		JobID:  jobID,
		Status: model.StatusFailed,
		Step:   step,
		Error:  message,
	})
}

func (p *Processor) publish(msg *pubsub.ProgressMessage) {
	if p.publisher == nil {
		return
	}
	// Progress is advisory; use a fresh short deadline so a cancelled
	// job context cannot block the final notification.
	pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.publisher.PublishProgress(pubCtx, msg); err != nil {
		log.Printf("publish progress for job %s: %v", msg.JobID, err)
	}
}
