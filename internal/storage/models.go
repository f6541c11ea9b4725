package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/gait-fusion/internal/fault"
)

// Trial summarizes a processed trial.
type Trial struct {
	ID              string    `json:"id"`
	Condition       string    `json:"condition,omitempty"`
	SamplingRate    float64   `json:"samplingRate"`
	DurationSeconds float64   `json:"durationSeconds"`
	TotalSamples    int       `json:"totalSamples"`
	SegmentStart    float64   `json:"segmentStart"`
	SegmentEnd      float64   `json:"segmentEnd"`
	ArtifactPath    string    `json:"artifactPath,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Run is a stored detector run.
type Run struct {
	ID          uuid.UUID                 `json:"id"`
	TrialID     string                    `json:"trialId"`
	Detector    string                    `json:"detector"`
	Version     string                    `json:"version"`
	Fingerprint string                    `json:"fingerprint"`
	Elapsed     time.Duration             `json:"elapsed"`
	EventCount  int                       `json:"eventCount"`
	Warnings    []fault.ValidationWarning `json:"warnings,omitempty"`
	Metrics     map[string]float64        `json:"metrics,omitempty"`
	CreatedAt   time.Time                 `json:"createdAt"`
}

type trialData struct {
	ID              string
	Condition       sql.NullString
	SamplingRate    float64
	DurationSeconds float64
	TotalSamples    int
	SegmentStart    float64
	SegmentEnd      float64
	ArtifactPath    sql.NullString
	CreatedAt       sqliteTime
}

type runData struct {
	ID          uuid.UUID
	TrialID     string
	Detector    string
	Version     string
	Fingerprint string
	ElapsedUS   int64
	EventCount  int
	Warnings    sql.NullString
	CreatedAt   sqliteTime
}

type eventData struct {
	Time        float64
	Type        string
	Leg         string
	Confidence  float64
	Method      string
	Diagnostics sql.NullString
}
