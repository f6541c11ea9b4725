package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultMaxSize is the artifact size above which a warning is logged.
const DefaultMaxSize = 500 * 1024

// DataSummary is the content overview recorded in the metadata sidecar.
type DataSummary struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SamplingRate    float64 `json:"sampling_rate"`
	GaitEvents      int     `json:"gait_events"`
	ConstraintType  string  `json:"constraint_type,omitempty"`
}

// Sidecar is written next to every artifact.
type Sidecar struct {
	TrialID        string      `json:"trial_id"`
	ProcessingDate time.Time   `json:"processing_date"`
	DataSummary    DataSummary `json:"data_summary"`
	FileSizeKB     int64       `json:"file_size_kb"`
}

// Written reports the files produced by Writer.Write.
type Written struct {
	ArtifactPath string
	SidecarPath  string
	Size         int64
}

// WithLogger sets the logger for the writer
func WithLogger(logger *slog.Logger) func(w *Writer) {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithMaxSize sets the size above which an artifact triggers a warning.
func WithMaxSize(bytes int64) func(w *Writer) {
	return func(w *Writer) {
		w.maxSize = bytes
	}
}

// WithClock replaces time.Now for the processing date.
func WithClock(now func() time.Time) func(w *Writer) {
	return func(w *Writer) {
		w.now = now
	}
}

// Writer stores documents and their sidecars in one directory.
type Writer struct {
	dir     string
	maxSize int64
	now     func() time.Time
	logger  *slog.Logger
}

func NewWriter(dir string, options ...func(w *Writer)) (*Writer, error) {
	w := Writer{
		dir:     dir,
		maxSize: DefaultMaxSize,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&w)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating artifact directory: %w", err)
	}
	return &w, nil
}

// ArtifactPath returns where the document of trialID is stored.
func (w *Writer) ArtifactPath(trialID string) string {
	return filepath.Join(w.dir, trialID+".json")
}

// SidecarPath returns where the metadata of trialID is stored.
func (w *Writer) SidecarPath(trialID string) string {
	return filepath.Join(w.dir, trialID+"-metadata.json")
}

// Write stores d compactly and its sidecar indented.
func (w *Writer) Write(trialID string, d *Document) (Written, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return Written{}, fmt.Errorf("error encoding artifact: %w", err)
	}

	out := Written{
		ArtifactPath: w.ArtifactPath(trialID),
		SidecarPath:  w.SidecarPath(trialID),
		Size:         int64(len(b)),
	}
	if err = os.WriteFile(out.ArtifactPath, b, 0644); err != nil {
		return Written{}, fmt.Errorf("error writing artifact: %w", err)
	}

	if out.Size > w.maxSize {
		w.logger.Warn("artifact exceeds size budget",
			slog.String("trial", trialID),
			slog.String("size", humanize.IBytes(uint64(out.Size))),
			slog.String("budget", humanize.IBytes(uint64(w.maxSize))),
		)
	}

	sidecar := Sidecar{
		TrialID:        trialID,
		ProcessingDate: w.now().UTC(),
		DataSummary: DataSummary{
			DurationSeconds: d.Metadata.DurationSeconds,
			SamplingRate:    d.Metadata.SamplingRate,
			GaitEvents:      len(d.GroundTruth),
			ConstraintType:  d.TrialInfo["condition"],
		},
		FileSizeKB: (out.Size + 512) / 1024,
	}
	if b, err = json.MarshalIndent(sidecar, "", "  "); err != nil {
		return Written{}, fmt.Errorf("error encoding metadata: %w", err)
	}
	if err = os.WriteFile(out.SidecarPath, b, 0644); err != nil {
		return Written{}, fmt.Errorf("error writing metadata: %w", err)
	}

	w.logger.Info("artifact written",
		slog.String("trial", trialID),
		slog.String("path", out.ArtifactPath),
		slog.String("size", humanize.IBytes(uint64(out.Size))),
	)
	return out, nil
}

// ReadDocument loads an artifact written by Writer.
func ReadDocument(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading artifact: %w", err)
	}

	var d Document
	if err = json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("error decoding artifact %s: %w", path, err)
	}
	return &d, nil
}

// ReadSidecar loads the metadata sidecar at path.
func ReadSidecar(path string) (*Sidecar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading metadata: %w", err)
	}

	var s Sidecar
	if err = json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("error decoding metadata %s: %w", path, err)
	}
	return &s, nil
}
