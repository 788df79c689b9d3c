package service

import (
	"context"
	"log"
	"sync"
	"time"

	"examsolver/internal/port"
)

// RunQueueConfig holds settings for the run queue worker.
type RunQueueConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	Concurrency  int
	RunTimeout   time.Duration
}

// RunQueueWorker polls for queued runs and dispatches them to the pipeline.
type RunQueueWorker struct {
	runRepo    port.RunRepository
	runService RunService
	cfg        RunQueueConfig
	wg         sync.WaitGroup
}

// NewRunQueueWorker creates a new RunQueueWorker.
func NewRunQueueWorker(runRepo port.RunRepository, runService RunService, cfg RunQueueConfig) *RunQueueWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	return &RunQueueWorker{
		runRepo:    runRepo,
		runService: runService,
		cfg:        cfg,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight runs have finished.
func (w *RunQueueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Printf("runQueueWorker: started (poll=%s, concurrency=%d, maxAttempts=%d)",
		w.cfg.PollInterval, w.cfg.Concurrency, w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			log.Printf("runQueueWorker: shutting down, waiting for in-flight runs...")
			w.wg.Wait()
			log.Printf("runQueueWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			runs, err := w.runRepo.ClaimQueued(ctx, available)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Printf("runQueueWorker: ClaimQueued error: %v", err)
				continue
			}

			for i := range runs {
				run := runs[i]

				sem <- struct{}{}
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }()

					// Runs outlive the poll context; shutdown waits for them.
					runCtx, cancel := context.WithTimeout(context.Background(), w.cfg.RunTimeout)
					defer cancel()

					log.Printf("runQueueWorker: dispatching run %s (attempt %d)", run.ID, run.Attempts)
					w.runService.ProcessRun(runCtx, &run, w.cfg.MaxAttempts)
				}()
			}
		}
	}
}
