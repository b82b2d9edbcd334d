package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dipauto/certidao-api/internal/cert"
	"github.com/dipauto/certidao-api/internal/config"
	"github.com/dipauto/certidao-api/internal/models"
)

// Extractor is the orchestration loop: it runs a planned task set with
// bounded concurrency, records every outcome in a one-slot-per-task
// summary, and never aborts the run because a single task failed. Failed
// tasks are not retried here; an operator re-run regenerates the
// outstanding work through the planner.
type Extractor struct {
	fetcher CertificateFetcherInterface
	store   DocumentStoreInterface
	cache   CacheServiceInterface
	cfg     config.ExtractionConfig
	clock   Clock
	logger  *logrus.Logger
}

// NewExtractor creates the orchestration loop. cache may be nil to disable
// result caching; clock may be nil for the wall clock.
func NewExtractor(fetcher CertificateFetcherInterface, store DocumentStoreInterface, cache CacheServiceInterface, cfg config.ExtractionConfig, clock Clock, logger *logrus.Logger) *Extractor {
	if clock == nil {
		clock = NewClock()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	return &Extractor{
		fetcher: fetcher,
		store:   store,
		cache:   cache,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
	}
}

// cachedResult is what the result cache stores per (source, tax id).
type cachedResult struct {
	StoredAs   string `json:"stored_as"`
	ByteLength int    `json:"byte_length"`
}

// Run executes every runnable task and accounts for the pre-skipped ones.
// The summary always covers the full task set: total equals succeeded plus
// failed plus skipped.
func (e *Extractor) Run(ctx context.Context, caseID string, tasks []models.CertificateTask) models.ExtractionSummary {
	summary := models.ExtractionSummary{
		CaseID:    caseID,
		StartedAt: e.clock.Now(),
	}

	e.logger.WithFields(logrus.Fields{
		"case_id": caseID,
		"tasks":   len(tasks),
		"workers": e.cfg.Workers,
	}).Info("Starting certificate extraction run")

	outcomes := make([]models.TaskOutcome, len(tasks))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.cfg.Workers)

	for i, task := range tasks {
		if task.Status == models.StatusSkippedPrecondition {
			outcomes[i] = models.TaskOutcome{
				TaskID:    task.ID,
				Source:    task.Source,
				TaxID:     task.TaxID,
				Name:      task.Name,
				Status:    models.StatusSkippedPrecondition,
				ErrorKind: string(cert.KindPreconditionMissing),
				Error:     task.SkipReason,
			}
			continue
		}

		wg.Add(1)
		go func(index int, task models.CertificateTask) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes[index] = e.runTask(ctx, caseID, task)
		}(i, task)
	}

	wg.Wait()

	summary.PerTask = outcomes
	for _, outcome := range outcomes {
		summary.Total++
		switch outcome.Status {
		case models.StatusSucceeded:
			summary.Succeeded++
		case models.StatusSkippedPrecondition:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	summary.FinishedAt = e.clock.Now()

	e.logger.WithFields(logrus.Fields{
		"case_id":   caseID,
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"duration":  summary.FinishedAt.Sub(summary.StartedAt),
	}).Info("Certificate extraction run finished")

	return summary
}

// runTask executes a single task attempt end to end.
func (e *Extractor) runTask(ctx context.Context, caseID string, task models.CertificateTask) models.TaskOutcome {
	start := e.clock.Now()
	task.Status = models.StatusRunning
	task.Attempts++

	logger := e.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"source":  task.Source,
		"tax_id":  task.TaxID,
	})
	logger.Info("Task running")

	outcome := models.TaskOutcome{
		TaskID: task.ID,
		Source: task.Source,
		TaxID:  task.TaxID,
		Name:   task.Name,
	}

	cacheKey := fmt.Sprintf("cert:%s:%s", task.Source, task.TaxID)
	if e.cache != nil {
		if raw, err := e.cache.Get(ctx, cacheKey); err == nil {
			var cached cachedResult
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				logger.WithField("stored_as", cached.StoredAs).Info("Certificate served from cache")
				outcome.Status = models.StatusSucceeded
				outcome.StoredAs = cached.StoredAs
				outcome.ByteLength = cached.ByteLength
				outcome.FromCache = true
				outcome.Duration = e.clock.Now().Sub(start).String()
				return outcome
			}
		}
	}

	taskCtx := ctx
	if e.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, e.cfg.TaskTimeout)
		defer cancel()
	}

	result, err := e.fetcher.FetchCertificate(taskCtx, task)
	if err != nil {
		outcome.Status = models.StatusFailed
		outcome.ErrorKind = string(e.classify(ctx, err))
		outcome.Error = err.Error()
		outcome.Duration = e.clock.Now().Sub(start).String()
		logger.WithFields(logrus.Fields{
			"kind":  outcome.ErrorKind,
			"error": err.Error(),
		}).Error("Task failed")
		return outcome
	}

	storedAs, err := e.store.Save(ctx, caseID, result)
	if err != nil {
		outcome.Status = models.StatusFailed
		outcome.ErrorKind = string(e.classify(ctx, err))
		outcome.Error = "storing document: " + err.Error()
		outcome.Duration = e.clock.Now().Sub(start).String()
		logger.WithError(err).Error("Task failed while storing document")
		return outcome
	}

	if e.cache != nil {
		cached, _ := json.Marshal(cachedResult{StoredAs: storedAs, ByteLength: result.ByteLength})
		if err := e.cache.Set(ctx, cacheKey, string(cached)); err != nil {
			logger.WithError(err).Warn("Failed to cache certificate result")
		}
	}

	outcome.Status = models.StatusSucceeded
	outcome.StoredAs = storedAs
	outcome.ByteLength = result.ByteLength
	outcome.Duration = e.clock.Now().Sub(start).String()
	logger.WithField("bytes", result.ByteLength).Info("Task succeeded")
	return outcome
}

// classify maps an error to its summary kind. Run-level cancellation wins
// over whatever the lower layers reported mid-abort.
func (e *Extractor) classify(runCtx context.Context, err error) cert.Kind {
	if runCtx.Err() != nil || errors.Is(err, context.Canceled) {
		return cert.KindCancelled
	}
	return cert.KindOf(err)
}
