package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gait-fusion/internal/artifact"
	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/gait/gaittest"
	"github.com/roman-kulish/gait-fusion/internal/sensor"
	"github.com/roman-kulish/gait-fusion/internal/storage"
)

type syntheticLoader struct {
	calls atomic.Int32
}

func (l *syntheticLoader) load(_ context.Context, trialID string, trial TrialConfig) (fault.Result[*gait.Frame], error) {
	l.calls.Add(1)
	if trial.Name == "T9" {
		return fault.Result[*gait.Frame]{}, fault.NewFormatError(trialID, "missing input file")
	}
	f, _ := gaittest.Constrained().Build()
	f.TrialID = trialID
	return fault.Ok(f), nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	c := DefaultConfig()
	c.Input.DataDirectory = dir
	c.Input.Subject = "Sub1"
	c.Input.Trials = []TrialConfig{{Name: "T5", Condition: "knee_locked"}}
	c.Segment.Duration = 10
	c.Segment.Step = 1
	c.Output.Directory = filepath.Join(dir, "output")
	c.Storage.Driver = storage.DriverPure
	require.NoError(t, c.Validate())
	return c
}

func newStore(t *testing.T, c *Config) *storage.SqliteStore {
	t.Helper()
	store, err := storage.NewSqliteStore(filepath.Join(c.Input.DataDirectory, "gait.db"), storage.WithDriver(c.Storage.Driver))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPipeline_Process(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	c.Storage.ReplaceRuns = true
	store := newStore(t, c)
	loader := &syntheticLoader{}

	p, err := NewPipeline(c, WithStore(store), WithFrameLoader(loader.load))
	require.NoError(t, err)

	out, err := p.Process(ctx, c.Input.Trials[0])
	require.NoError(t, err)

	assert.Equal(t, "Sub1_T5", out.TrialID)
	assert.Equal(t, artifact.GroundTruthMethod, out.TruthSource)
	require.NotEmpty(t, out.Truth)
	for _, e := range out.Truth {
		assert.Equal(t, gait.Right, e.Leg)
	}

	require.Len(t, out.Runs, 3)
	require.Len(t, out.Comparison.Performances, 3)
	assert.Len(t, out.Comparison.Improvements, 3)
	assert.Len(t, out.RunIDs, 3)
	assert.InDelta(t, 10.0, out.Window.End-out.Window.Start, 0.01)

	for _, path := range []string{out.Artifact.ArtifactPath, out.Artifact.SidecarPath, out.MetricsPath, out.ReportPath} {
		assert.FileExists(t, path)
	}
	report, err := os.ReadFile(out.ReportPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(report), "# Gait Event Detection Accuracy Report"))
	assert.Contains(t, string(report), "## Threshold Failure Analysis")
	assert.Contains(t, string(report), "## Fusion Analysis")

	doc, err := artifact.ReadDocument(out.Artifact.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "knee_locked", doc.TrialInfo["condition"])
	assert.Len(t, doc.GroundTruth, len(out.Truth))

	trial, err := store.Trial(ctx, "Sub1_T5")
	require.NoError(t, err)
	assert.Equal(t, out.Artifact.ArtifactPath, trial.ArtifactPath)

	runs, err := store.Runs(ctx, "Sub1_T5")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Contains(t, runs[0].Metrics, "f1_score")

	// The second pass hits the frame cache and replaces the stored runs.
	_, err = p.Process(ctx, c.Input.Trials[0])
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, 1, p.Frames().Stats().Hits)

	runs, err = store.Runs(ctx, "Sub1_T5")
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestPipeline_Annotations(t *testing.T) {
	c := testConfig(t)
	c.Evaluation.AnnotationsDir = filepath.Join(c.Input.DataDirectory, "annotations")
	c.Output.Report = false

	events := []gait.Event{
		{Time: 1.5, Type: gait.ToeOff, Leg: gait.Left},
		{Time: 1.0, Type: gait.HeelStrike, Leg: gait.Left},
	}
	set := artifact.NewAnnotationSet("Sub1_T5", "alice", 10, events, time.Now())
	require.NoError(t, artifact.SaveAnnotations(c.Evaluation.AnnotationsDir, "Sub1_T5", set))

	loader := &syntheticLoader{}
	p, err := NewPipeline(c, WithFrameLoader(loader.load))
	require.NoError(t, err)

	out, err := p.Process(context.Background(), c.Input.Trials[0])
	require.NoError(t, err)

	assert.Equal(t, artifact.ManualMethod, out.TruthSource)
	require.Len(t, out.Truth, 2)
	assert.Equal(t, gait.HeelStrike, out.Truth[0].Type)
	assert.Equal(t, 2, out.Comparison.Performances[0].Expected)
	assert.Empty(t, out.ReportPath)
	assert.Empty(t, out.RunIDs)
}

func TestProcess_Workers(t *testing.T) {
	c := testConfig(t)
	c.Input.Trials = []TrialConfig{{Name: "T5"}, {Name: "T6"}, {Name: "T9"}}
	c.Detection.Detectors = []string{"threshold"}

	loader := &syntheticLoader{}
	p, err := NewPipeline(c, WithFrameLoader(loader.load))
	require.NoError(t, err)

	outcomes, err := process(context.Background(), p, c.Input.Trials, 2, p.logger)
	require.Error(t, err)

	var formatErr *fault.FormatError
	assert.True(t, errors.As(err, &formatErr))
	assert.Len(t, outcomes, 2)
	assert.Equal(t, int32(3), loader.calls.Load())
}

func TestProcess_Cancelled(t *testing.T) {
	c := testConfig(t)
	p, err := NewPipeline(c, WithFrameLoader((&syntheticLoader{}).load))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = process(ctx, p, c.Input.Trials, 1, p.logger)
	assert.ErrorIs(t, err, context.Canceled)
}

func exportFile(t *testing.T, path, rate, markers string, rows ...string) {
	t.Helper()
	header := []string{"Devices", rate, markers, "Frame,Sub Frame", "units"}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(append(header, rows...), "\n")+"\n"), 0o644))
}

func TestPipeline_LoadFrame(t *testing.T) {
	c := testConfig(t)
	paths := sensor.TrialPaths(c.Input.DataDirectory, "Sub1", "T5")

	kinetics := func(frame int, rightFz float64) string {
		cells := make([]string, 18)
		for i := range cells {
			cells[i] = "0"
		}
		cells[gait.NumPlateChannels+gait.Fz] = fmt.Sprint(rightFz)
		return fmt.Sprintf("%d,0,%s", frame, strings.Join(cells, ","))
	}
	emg := "1,0" + strings.Repeat(",0.0001", 16)

	exportFile(t, paths.Kinetics, "1000", "", kinetics(1, 300), kinetics(2, 1e6), kinetics(3, 310))
	exportFile(t, paths.EMG, "2000", "", emg, emg, emg, emg, emg, emg)
	exportFile(t, paths.Kinematics, "100", "Frame,Sub Frame,S12:RHEE,,", "1,0,1,2,3")

	p, err := NewPipeline(c)
	require.NoError(t, err)

	r, err := p.loadFrame(context.Background(), "Sub1_T5", c.Input.Trials[0])
	require.NoError(t, err)
	assert.Equal(t, 3, r.Value.Len())

	var outOfRange int
	for _, w := range r.Warnings {
		if w.Category == fault.OutOfRange {
			outOfRange++
			assert.Equal(t, sensor.PlateColumn(gait.Right, gait.Fz), w.Source)
		}
	}
	assert.Equal(t, 1, outOfRange)
}
