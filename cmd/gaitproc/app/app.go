package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/gait-fusion/internal/storage"
)

// Run processes every configured trial with a pool of workers. A failing trial does not stop the
// others; all failures are returned together.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	options := []func(*Pipeline){WithLogger(logger)}

	if config.Storage.Path != "" {
		store, err := storage.NewSqliteStore(config.Storage.Path, storage.WithDriver(config.Storage.Driver))
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close storage", slog.String("error", err.Error()))
			}
		}()
		options = append(options, WithStore(store))
	}

	pipeline, err := NewPipeline(config, options...)
	if err != nil {
		return err
	}

	outcomes, err := process(ctx, pipeline, config.Input.Trials, config.Settings.Workers, logger)

	stats := pipeline.Frames().Stats()
	logger.Info("processing finished",
		slog.Int("trials", len(outcomes)),
		slog.Group("cache",
			slog.Int("hits", stats.Hits),
			slog.Int("misses", stats.Misses),
			slog.Int("size", stats.Size),
		),
	)
	return err
}

type result struct {
	trial   TrialConfig
	outcome *Outcome
	err     error
}

// process fans trials out to workers and collects their outcomes in completion order.
func process(ctx context.Context, p *Pipeline, trials []TrialConfig, workers int, logger *slog.Logger) ([]*Outcome, error) {
	jobs := make(chan TrialConfig)
	results := make(chan result, len(trials))

	var wg sync.WaitGroup
	for range min(workers, len(trials)) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for trial := range jobs {
				start := time.Now()
				outcome, err := p.Process(ctx, trial)
				if err == nil {
					logger.Info("trial processed",
						slog.String("trial", outcome.TrialID),
						slog.Int("runs", len(outcome.Runs)),
						slog.Int("warnings", len(outcome.Warnings)),
						slog.String("artifact", humanize.IBytes(uint64(outcome.Artifact.Size))),
						slog.Duration("elapsed", time.Since(start)),
					)
				}
				results <- result{trial: trial, outcome: outcome, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)

		for _, trial := range trials {
			select {
			case jobs <- trial:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	var outcomes []*Outcome
	var errs []error
	for r := range results {
		if r.err != nil {
			logger.Error("trial failed", slog.String("trial", r.trial.Name), slog.String("error", r.err.Error()))
			errs = append(errs, fmt.Errorf("trial %s: %w", r.trial.Name, r.err))
			continue
		}
		outcomes = append(outcomes, r.outcome)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return outcomes, errors.Join(errs...)
}
