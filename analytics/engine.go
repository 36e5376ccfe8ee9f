package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"pattern-detector/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("analysis queue is full")

// ResultStore persists analysis results keyed by job id.
type ResultStore interface {
	SaveAnalysis(ctx context.Context, id string, result models.AnalysisResult) error
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisResult, error)
}

// CompletionCallback is invoked once per finished job.
type CompletionCallback func(kind models.AnalysisKind, status string)

type EngineConfig struct {
	Workers   int
	QueueSize int
}

type job struct {
	id     string
	req    models.AnalysisRequest
	series []models.Series
}

type Engine struct {
	store      ResultStore
	logger     *zap.Logger
	jobs       chan job
	onComplete CompletionCallback
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func NewEngine(cfg EngineConfig, store ResultStore, logger *zap.Logger, onComplete CompletionCallback) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		store:      store,
		logger:     logger,
		jobs:       make(chan job, cfg.QueueSize),
		onComplete: onComplete,
	}

	logger.Info("starting analysis workers", zap.Int("workers", cfg.Workers), zap.Int("queue_size", cfg.QueueSize))
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Submit enqueues a request and returns its job id. A pending record is
// stored first so the id is immediately retrievable.
func (e *Engine) Submit(ctx context.Context, req models.AnalysisRequest, series []models.Series) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	pending := models.AnalysisResult{
		ID:          id,
		Kind:        req.Kind,
		Status:      models.StatusPending,
		ProcessedAt: time.Now().UTC(),
	}
	if err := e.store.SaveAnalysis(ctx, id, pending); err != nil {
		return "", err
	}

	select {
	case e.jobs <- job{id: id, req: req, series: series}:
		return id, nil
	default:
		e.logger.Warn("analysis queue full, dropping job", zap.String("job_id", id), zap.String("kind", string(req.Kind)))
		failed := pending
		failed.Status = models.StatusFailed
		failed.Error = ErrQueueFull.Error()
		if err := e.store.SaveAnalysis(ctx, id, failed); err != nil {
			e.logger.Warn("failed to record dropped job", zap.String("job_id", id), zap.Error(err))
		}
		return "", ErrQueueFull
	}
}

// Close stops accepting work and waits for queued jobs to drain.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.jobs)
	})
	e.wg.Wait()
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for j := range e.jobs {
		e.process(j)
	}
}

func (e *Engine) process(j job) {
	start := time.Now()
	e.logger.Debug("analysis started", zap.String("job_id", j.id), zap.String("kind", string(j.req.Kind)))

	result := Execute(j.id, j.req, j.series)

	if err := e.store.SaveAnalysis(context.Background(), j.id, result); err != nil {
		e.logger.Warn("failed to save analysis", zap.String("job_id", j.id), zap.Error(err))
	}

	if result.Status == models.StatusFailed {
		e.logger.Warn("analysis failed",
			zap.String("job_id", j.id),
			zap.String("kind", string(j.req.Kind)),
			zap.String("error", result.Error))
	} else {
		e.logger.Debug("analysis finished",
			zap.String("job_id", j.id),
			zap.String("kind", string(j.req.Kind)),
			zap.Duration("took", time.Since(start)))
	}

	if e.onComplete != nil {
		e.onComplete(j.req.Kind, result.Status)
	}
}

// Execute runs a request synchronously and packs the outcome into a
// storable result.
func Execute(id string, req models.AnalysisRequest, series []models.Series) models.AnalysisResult {
	result := models.AnalysisResult{
		ID:   id,
		Kind: req.Kind,
	}

	out, err := Run(req, series)
	if err == nil {
		var raw []byte
		raw, err = json.Marshal(out)
		result.Result = raw
	}
	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		result.Result = nil
	} else {
		result.Status = models.StatusDone
	}
	result.ProcessedAt = time.Now().UTC()
	return result
}
