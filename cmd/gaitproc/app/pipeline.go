package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/gait-fusion/internal/align"
	"github.com/roman-kulish/gait-fusion/internal/artifact"
	"github.com/roman-kulish/gait-fusion/internal/cache"
	"github.com/roman-kulish/gait-fusion/internal/detect"
	"github.com/roman-kulish/gait-fusion/internal/evaluate"
	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/metrics"
	"github.com/roman-kulish/gait-fusion/internal/segment"
	"github.com/roman-kulish/gait-fusion/internal/sensor"
	"github.com/roman-kulish/gait-fusion/internal/storage"
)

// FrameLoader produces the synchronized frame of a trial.
type FrameLoader func(ctx context.Context, trialID string, trial TrialConfig) (fault.Result[*gait.Frame], error)

// WithLogger sets the logger for the pipeline
func WithLogger(logger *slog.Logger) func(*Pipeline) {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithStore persists trials and detection runs.
func WithStore(store storage.Store) func(*Pipeline) {
	return func(p *Pipeline) {
		p.store = store
	}
}

// WithFrameLoader replaces loading trials from sensor exports.
func WithFrameLoader(load FrameLoader) func(*Pipeline) {
	return func(p *Pipeline) {
		p.load = load
	}
}

// Outcome summarizes one processed trial.
type Outcome struct {
	TrialID     string
	Window      segment.Window
	Truth       []gait.Event
	TruthSource string
	Runs        []detect.Run
	RunIDs      []uuid.UUID
	Comparison  evaluate.Comparison
	Metrics     metrics.Report
	Artifact    artifact.Written
	ReportPath  string
	MetricsPath string
	Warnings    []fault.ValidationWarning
}

// Pipeline takes trials from sensor exports to evaluated, stored detection runs. It is safe for
// concurrent use; frames are shared through a cache.
type Pipeline struct {
	config *Config
	runner *detect.Runner
	frames *cache.Frames
	writer *artifact.Writer
	store  storage.Store
	load   FrameLoader
	logger *slog.Logger
}

// NewPipeline creates a new Pipeline
func NewPipeline(config *Config, options ...func(*Pipeline)) (*Pipeline, error) {
	p := Pipeline{
		config: config,
		frames: cache.NewFrames(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	p.load = p.loadFrame
	for _, option := range options {
		option(&p)
	}

	var err error
	if p.runner, err = detect.NewRunner(config.Detection.Options, config.Detection.Detectors, detect.WithRunnerLogger(p.logger)); err != nil {
		return nil, fmt.Errorf("creating detectors: %w", err)
	}
	if p.writer, err = artifact.NewWriter(config.Output.Directory,
		artifact.WithLogger(p.logger),
		artifact.WithMaxSize(config.Output.MaxArtifactSize),
	); err != nil {
		return nil, fmt.Errorf("creating artifact writer: %w", err)
	}
	return &p, nil
}

// Frames exposes the frame cache.
func (p *Pipeline) Frames() *cache.Frames {
	return p.frames
}

// Process runs one trial through every stage.
func (p *Pipeline) Process(ctx context.Context, trial TrialConfig) (*Outcome, error) {
	id := sensor.TrialID(p.config.Input.Subject, trial.Name)
	logger := p.logger.With(slog.String("trial", id))
	out := Outcome{TrialID: id}

	var loaded []fault.ValidationWarning
	f, err := p.frames.Load(id, func(trialID string) (*gait.Frame, error) {
		r, err := p.load(ctx, trialID, trial)
		if err != nil {
			return nil, err
		}
		loaded = r.Warnings
		return r.Value, nil
	})
	if err != nil {
		return nil, err
	}
	out.Warnings = append(out.Warnings, loaded...)

	window, err := segment.Select(f, p.config.Segment)
	if err != nil {
		return nil, fmt.Errorf("selecting segment of %s: %w", id, err)
	}
	out.Window = window.Value
	out.Warnings = append(out.Warnings, window.Warnings...)

	pre := artifact.Preprocess(window.Value.Apply(f))
	logger.Debug("segment selected",
		slog.Float64("start", out.Window.Start),
		slog.Float64("end", out.Window.End),
		slog.Int("score", out.Window.Scores.Total()),
	)

	var truthWarnings []fault.ValidationWarning
	out.Truth, out.TruthSource, truthWarnings, err = p.groundTruth(id, pre)
	if err != nil {
		return nil, err
	}
	out.Warnings = append(out.Warnings, truthWarnings...)

	if out.Runs, err = p.runner.Run(ctx, pre); err != nil {
		return nil, fmt.Errorf("detecting events of %s: %w", id, err)
	}
	for _, r := range out.Runs {
		out.Warnings = append(out.Warnings, r.Warnings...)
	}

	tolerance := p.config.Evaluation.Tolerance
	performances := evaluate.AssessRuns(out.Runs, out.Truth, tolerance)
	out.Comparison = evaluate.Compare(performances)

	report := evaluate.ReportData{TrialID: id, Tolerance: tolerance, Comparison: out.Comparison}
	if r, ok := findRun(out.Runs, detect.ThresholdName); ok {
		a := evaluate.AnalyzeThresholdFailures(pre, r.Events, out.Truth, p.config.Detection.Options.Threshold.HeelStrike)
		report.Threshold = &a
	}
	if r, ok := findRun(out.Runs, detect.RuleFusionName); ok {
		a := evaluate.AnalyzeFusion(r.Events, fault.Count(r.Warnings, fault.Unconfirmed), out.Truth)
		report.Fusion = &a
	}
	if len(out.Runs) > 0 {
		out.Metrics = metrics.Analyze(pre, out.Runs[len(out.Runs)-1].Events)
	}

	doc := artifact.NewDocument(pre, out.Window, out.Truth, map[string]string{
		"trial_id":  id,
		"subject":   p.config.Input.Subject,
		"trial":     trial.Name,
		"condition": trial.Condition,
	})
	if out.Artifact, err = p.writer.Write(id, doc); err != nil {
		return nil, err
	}

	if p.store != nil {
		if out.RunIDs, err = p.save(ctx, id, trial, pre, &out, performances); err != nil {
			return nil, err
		}
	}

	if out.MetricsPath, err = p.writeMetrics(id, &out); err != nil {
		return nil, err
	}
	if p.config.Output.Report {
		if out.ReportPath, err = p.writeReport(id, report); err != nil {
			return nil, err
		}
	}

	for _, perf := range performances {
		logger.Info("detector assessed",
			slog.String("detector", perf.Algorithm),
			slog.Float64("accuracy", perf.Accuracy),
			slog.String("events", fmt.Sprintf("%d/%d", perf.Detected, perf.Expected)),
		)
	}
	return &out, nil
}

// loadFrame parses the three exports of a trial and synchronizes them onto the force timeline.
func (p *Pipeline) loadFrame(ctx context.Context, trialID string, trial TrialConfig) (fault.Result[*gait.Frame], error) {
	start := time.Now()
	input := p.config.Input

	t, err := sensor.LoadTrial(ctx, input.DataDirectory, input.Subject, trial.Name, sensor.WithLogger(p.logger))
	if err != nil {
		return fault.Result[*gait.Frame]{}, err
	}

	quality := sensor.Validate(t.Value.Kinetics, input.MinDuration)
	if !quality.Value.Valid {
		p.logger.Warn("low quality recording",
			slog.String("trial", trialID),
			slog.Int("score", quality.Value.Score),
			slog.Any("recommendations", quality.Value.Recommendations),
		)
	}

	f, err := align.Synchronize(trialID, t.Value.Kinetics, t.Value.EMG, t.Value.Kinematics)
	if err != nil {
		return fault.Result[*gait.Frame]{}, fmt.Errorf("synchronizing %s: %w", trialID, err)
	}

	f.Add(t.Warnings...)
	f.Add(quality.Warnings...)

	p.logger.Info("trial loaded",
		slog.String("trial", trialID),
		slog.String("samples", humanize.Comma(int64(f.Value.Len()))),
		slog.Float64("duration", f.Value.Duration()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return f, nil
}

// groundTruth prefers hand annotations and falls back to force crossings on the right plate.
func (p *Pipeline) groundTruth(trialID string, f *gait.Frame) ([]gait.Event, string, []fault.ValidationWarning, error) {
	if dir := p.config.Evaluation.AnnotationsDir; dir != "" {
		set, err := artifact.LoadAnnotations(dir, trialID)
		switch {
		case err == nil:
			r := set.GaitEvents()
			return r.Value, artifact.ManualMethod, r.Warnings, nil
		case !errors.Is(err, artifact.ErrNoAnnotations):
			return nil, "", nil, err
		}
	}
	return artifact.GroundTruth(f, gait.Right, p.config.Evaluation.GroundTruthThreshold), artifact.GroundTruthMethod, nil, nil
}

func (p *Pipeline) save(ctx context.Context, id string, trial TrialConfig, f *gait.Frame, out *Outcome, performances []evaluate.Performance) ([]uuid.UUID, error) {
	err := p.store.SaveTrial(ctx, &storage.Trial{
		ID:              id,
		Condition:       trial.Condition,
		SamplingRate:    f.SampleRate,
		DurationSeconds: f.Duration(),
		TotalSamples:    f.Len(),
		SegmentStart:    out.Window.Start,
		SegmentEnd:      out.Window.End,
		ArtifactPath:    out.Artifact.ArtifactPath,
	})
	if err != nil {
		return nil, fmt.Errorf("saving trial %s: %w", id, err)
	}

	if p.config.Storage.ReplaceRuns {
		n, err := p.store.DeleteRuns(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("deleting runs of %s: %w", id, err)
		}
		if n > 0 {
			p.logger.Debug("previous runs deleted", slog.String("trial", id), slog.Int64("count", n))
		}
	}

	ids := make([]uuid.UUID, 0, len(out.Runs))
	for i, r := range out.Runs {
		runID, err := p.store.SaveRun(ctx, r, performanceMetrics(performances[i]))
		if err != nil {
			return nil, fmt.Errorf("saving %s run of %s: %w", r.Detector, id, err)
		}
		ids = append(ids, runID)
	}
	return ids, nil
}

func performanceMetrics(perf evaluate.Performance) map[string]float64 {
	return map[string]float64{
		"accuracy":              perf.Accuracy,
		"precision":             perf.Precision,
		"recall":                perf.Recall,
		"f1_score":              perf.F1,
		"true_positives":        float64(perf.TruePositives),
		"false_positives":       float64(perf.FalsePositives),
		"false_negatives":       float64(perf.FalseNegatives),
		"constraint_adaptation": perf.Adaptation,
	}
}

type metricsFile struct {
	TrialID     string              `json:"trial_id"`
	TruthSource string              `json:"ground_truth_source"`
	Segment     segment.Window      `json:"segment"`
	Comparison  evaluate.Comparison `json:"comparison"`
	Metrics     metrics.Report      `json:"metrics"`
	Warnings    []string            `json:"warnings,omitempty"`
}

func (p *Pipeline) writeMetrics(id string, out *Outcome) (string, error) {
	m := metricsFile{
		TrialID:     id,
		TruthSource: out.TruthSource,
		Segment:     out.Window,
		Comparison:  out.Comparison,
		Metrics:     out.Metrics,
	}
	for _, w := range out.Warnings {
		m.Warnings = append(m.Warnings, w.String())
	}

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding metrics of %s: %w", id, err)
	}
	path := filepath.Join(p.config.Output.Directory, id+"_metrics.json")
	if err = os.WriteFile(path, b, 0644); err != nil {
		return "", fmt.Errorf("writing metrics of %s: %w", id, err)
	}
	return path, nil
}

func (p *Pipeline) writeReport(id string, data evaluate.ReportData) (path string, err error) {
	path = filepath.Join(p.config.Output.Directory, id+"_accuracy_report.md")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report of %s: %w", id, err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if err = evaluate.Report(f, data); err != nil {
		return "", fmt.Errorf("rendering report of %s: %w", id, err)
	}
	return path, nil
}

func findRun(runs []detect.Run, detector string) (detect.Run, bool) {
	for _, r := range runs {
		if r.Detector == detector {
			return r, true
		}
	}
	return detect.Run{}, false
}
