package app

import (
	"context"
	"flag"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gait-fusion/internal/artifact"
	"github.com/roman-kulish/gait-fusion/internal/detect"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/gait/gaittest"
	"github.com/roman-kulish/gait-fusion/internal/segment"
	"github.com/roman-kulish/gait-fusion/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("gaitplot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return ParseConfig(fs, args)
}

func TestParseConfig(t *testing.T) {
	id := uuid.New()
	c, err := parse(t, "-db", "gait.db", "-run", id.String(), "-o", "plot", "-f", "JPEG", "-from", "0", "-to", "5")
	require.NoError(t, err)

	assert.Equal(t, id, c.RunID)
	assert.Equal(t, ImageFormat(ImageJPEG), c.Format)
	assert.Equal(t, "plot.jpeg", c.OutputFile)
	require.NotNil(t, c.From)
	require.NotNil(t, c.To)
	assert.Equal(t, 0.0, *c.From)
	assert.Equal(t, 5.0, *c.To)
	assert.Equal(t, storage.DriverCGO, c.Driver)

	c, err = parse(t, "-artifact", "Sub1_T5.json", "-o", "plot")
	require.NoError(t, err)
	assert.Nil(t, c.From)
	assert.Equal(t, "plot.png", c.OutputFile)

	testCases := []struct {
		name string
		args []string
	}{
		{"no source", []string{"-o", "plot"}},
		{"run without db", []string{"-run", id.String(), "-o", "plot"}},
		{"bad run id", []string{"-db", "gait.db", "-run", "42", "-o", "plot"}},
		{"no output", []string{"-artifact", "a.json"}},
		{"format", []string{"-artifact", "a.json", "-o", "plot", "-f", "gif"}},
		{"driver", []string{"-artifact", "a.json", "-o", "plot", "-driver", "mysql"}},
		{"size", []string{"-artifact", "a.json", "-o", "plot", "-width", "10"}},
		{"range", []string{"-artifact", "a.json", "-o", "plot", "-from", "5", "-to", "1"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(t, tc.args...)
			assert.Error(t, err)
		})
	}
}

func writeArtifact(t *testing.T, dir string) (string, []gait.Event) {
	t.Helper()
	f, truth := gaittest.Constrained().Build()
	doc := artifact.NewDocument(f, segment.Window{EndIndex: f.Len()}, truth, map[string]string{"trial_id": "Sub1_T5"})

	w, err := artifact.NewWriter(dir)
	require.NoError(t, err)
	written, err := w.Write("Sub1_T5", doc)
	require.NoError(t, err)
	return written.ArtifactPath, truth
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	img, err := png.Decode(in)
	require.NoError(t, err)
	return img
}

func TestRun_Artifact(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeArtifact(t, dir)

	c, err := parse(t, "-artifact", path, "-o", filepath.Join(dir, "plot"), "-width", "800", "-height", "300")
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), c, discard))

	img := decodePNG(t, c.OutputFile)
	assert.Equal(t, image.Rect(0, 0, 800, 300), img.Bounds())
}

func TestRun_StoredRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path, truth := writeArtifact(t, dir)

	dbPath := filepath.Join(dir, "gait.db")
	store, err := storage.NewSqliteStore(dbPath, storage.WithDriver(storage.DriverPure))
	require.NoError(t, err)
	require.NoError(t, store.SaveTrial(ctx, &storage.Trial{ID: "Sub1_T5", SamplingRate: 1000, ArtifactPath: path}))
	runID, err := store.SaveRun(ctx, detect.Run{TrialID: "Sub1_T5", Detector: detect.HeuristicName, Version: "1.0.0", Events: truth}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	c, err := parse(t, "-db", dbPath, "-driver", storage.DriverPure, "-run", runID.String(),
		"-o", filepath.Join(dir, "run"), "-width", "600", "-height", "200", "-no-annotations")
	require.NoError(t, err)
	require.NoError(t, Run(ctx, c, discard))

	img := decodePNG(t, c.OutputFile)
	assert.Equal(t, image.Rect(0, 0, 600, 200), img.Bounds())

	// Without annotations the border stays white.
	assert.Equal(t, color.RGBAModel.Convert(color.White), color.RGBAModel.Convert(img.At(1, 1)))

	c.RunID = uuid.New()
	assert.Error(t, Run(ctx, c, discard))
}
