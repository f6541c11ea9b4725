package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/gait-fusion/internal/artifact"
	"github.com/roman-kulish/gait-fusion/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	trace, err := readTrace(ctx, config, logger)
	if err != nil {
		return err
	}

	renderer, err := NewTraceRenderer(RenderConfig{
		Width:         config.Width,
		Height:        config.Height,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating trace renderer: %w", err)
	}

	logger.Info("rendering trace",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := renderer.Render(trace)
	if err != nil {
		return fmt.Errorf("rendering trace: %w", err)
	}
	return writeImage(config.OutputFile, config.Format, img)
}

func readTrace(ctx context.Context, config *Config, logger *slog.Logger) (*TraceData, error) {
	var run *storage.Run
	var store *storage.SqliteStore
	path := config.ArtifactPath

	if config.RunID != uuid.Nil {
		if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
			return nil, fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
		}

		var err error
		if store, err = storage.NewSqliteStore(config.DBPath, storage.WithDriver(config.Driver)); err != nil {
			return nil, err
		}
		defer store.Close()

		if run, err = store.Run(ctx, config.RunID); err != nil {
			return nil, fmt.Errorf("reading run %s: %w", config.RunID, err)
		}
		if path == "" {
			trial, err := store.Trial(ctx, run.TrialID)
			if err != nil {
				return nil, fmt.Errorf("reading trial %s: %w", run.TrialID, err)
			}
			path = trial.ArtifactPath
		}
	}

	doc, err := artifact.ReadDocument(path)
	if err != nil {
		return nil, err
	}

	trialID := doc.TrialInfo["trial_id"]
	if run != nil {
		trialID = run.TrialID
	}
	trace, err := NewTraceData(trialID, doc, config.From, config.To)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if run == nil {
		trace.SetEvents("ground truth", doc.GroundTruth, config.MinConfidence)
	} else {
		reader, err := store.ReadEvents(ctx, run.ID,
			storage.WithTimeRange(trace.Start(), trace.End()),
			storage.WithMinConfidence(config.MinConfidence),
		)
		if err != nil {
			return nil, fmt.Errorf("reading events of run %s: %w", run.ID, err)
		}
		events, err := storage.ReadAll(ctx, reader)
		if err != nil {
			return nil, fmt.Errorf("reading events of run %s: %w", run.ID, err)
		}
		trace.SetEvents(run.Detector, events, config.MinConfidence)
	}

	logger.Info("finished reading trace",
		slog.Group("stats",
			slog.String("trial", trace.TrialID),
			slog.String("artifact", path),
			slog.String("samples", humanize.Comma(int64(len(trace.Timestamps)))),
			slog.Int("events", len(trace.Events)),
			slog.String("maxForce", fmt.Sprintf("%0.1fN", trace.ForceMax)),
		))
	return trace, nil
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	switch format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})

	default:
		err = fmt.Errorf("invalid image format: %s", format)
	}
	return err
}
