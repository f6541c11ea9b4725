package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

// sqliteTime scans timestamps stored as RFC 3339 text. Drivers disagree on whether such a column
// comes back as time.Time, string or []byte.
type sqliteTime struct {
	Time time.Time
}

func (t *sqliteTime) Scan(src any) (err error) {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v
	case string:
		t.Time, err = time.Parse(time.RFC3339Nano, v)
	case []byte:
		t.Time, err = time.Parse(time.RFC3339Nano, string(v))
	default:
		err = fmt.Errorf("unsupported timestamp type %T", src)
	}
	return
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// toNullJSON encodes v, storing NULL for empty values.
func toNullJSON[T any](v []T) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func toTrial(d *trialData) *Trial {
	return &Trial{
		ID:              d.ID,
		Condition:       d.Condition.String,
		SamplingRate:    d.SamplingRate,
		DurationSeconds: d.DurationSeconds,
		TotalSamples:    d.TotalSamples,
		SegmentStart:    d.SegmentStart,
		SegmentEnd:      d.SegmentEnd,
		ArtifactPath:    d.ArtifactPath.String,
		CreatedAt:       d.CreatedAt.Time,
	}
}

func toRun(d *runData) (*Run, error) {
	r := &Run{
		ID:          d.ID,
		TrialID:     d.TrialID,
		Detector:    d.Detector,
		Version:     d.Version,
		Fingerprint: d.Fingerprint,
		Elapsed:     time.Duration(d.ElapsedUS) * time.Microsecond,
		EventCount:  d.EventCount,
		CreatedAt:   d.CreatedAt.Time,
	}
	if d.Warnings.Valid {
		var w []fault.ValidationWarning
		if err := json.Unmarshal([]byte(d.Warnings.String), &w); err != nil {
			return nil, fmt.Errorf("decoding warnings: %w", err)
		}
		r.Warnings = w
	}
	return r, nil
}

func toEvent(d *eventData) (gait.Event, error) {
	e := gait.Event{
		Time:   d.Time,
		Type:   gait.EventType(d.Type),
		Leg:    gait.Leg(d.Leg),
		Score:  d.Confidence,
		Method: d.Method,
	}
	if d.Diagnostics.Valid {
		if err := json.Unmarshal([]byte(d.Diagnostics.String), &e.Diagnostics); err != nil {
			return gait.Event{}, fmt.Errorf("decoding diagnostics: %w", err)
		}
	}
	return e, nil
}

func toEventData(e gait.Event) (*eventData, error) {
	d := &eventData{
		Time:       e.Time,
		Type:       string(e.Type),
		Leg:        string(e.Leg),
		Confidence: e.Score,
		Method:     e.Method,
	}
	if len(e.Diagnostics) > 0 {
		b, err := json.Marshal(e.Diagnostics)
		if err != nil {
			return nil, fmt.Errorf("encoding diagnostics: %w", err)
		}
		d.Diagnostics = sql.NullString{String: string(b), Valid: true}
	}
	return d, nil
}
