package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// EventReader provides an iterator-based interface for reading the stored events of one run.
type EventReader interface {
	// Run returns metadata about the run this reader is accessing.
	Run() *Run

	// Next advances the iterator and returns true if there is another event to read, false when
	// the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current event. If called after Next() returns false, the behavior is
	// undefined.
	Current() gait.Event

	// Error returns any error that occurred during iteration. If Next() returns false, Error()
	// should be checked to distinguish between end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures an event reader with specific filtering criteria.
type ReaderOption func(*SqliteEventReader)

// WithLeg keeps events of one leg.
func WithLeg(leg gait.Leg) ReaderOption {
	return func(r *SqliteEventReader) {
		r.leg = leg
	}
}

// WithEventType keeps events of one type.
func WithEventType(t gait.EventType) ReaderOption {
	return func(r *SqliteEventReader) {
		r.eventType = t
	}
}

// WithTimeRange keeps events with start <= time <= end.
func WithTimeRange(start, end float64) ReaderOption {
	return func(r *SqliteEventReader) {
		r.start = start
		r.end = end
	}
}

// WithMinConfidence excludes events scored below c.
func WithMinConfidence(c float64) ReaderOption {
	return func(r *SqliteEventReader) {
		r.minConfidence = c
	}
}

// SqliteEventReader implements EventReader for the SQLite backend.
type SqliteEventReader struct {
	db    *sql.DB
	runID uuid.UUID
	run   *Run

	leg           gait.Leg
	eventType     gait.EventType
	start, end    float64
	minConfidence float64

	current gait.Event
	rows    *sql.Rows
	err     error
}

func newSqliteEventReader(ctx context.Context, db *sql.DB, runID uuid.UUID, opts ...ReaderOption) (*SqliteEventReader, error) {
	r := &SqliteEventReader{
		db:    db,
		runID: runID,
		start: -math.MaxFloat64,
		end:   math.MaxFloat64,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteEventReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.runID == uuid.Nil {
		return errors.New("run ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading run", fn: r.loadRun},
		{msg: "validating filters", fn: r.validateFilters},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqliteEventReader) loadRun(ctx context.Context) error {
	var data runData
	err := r.db.QueryRowContext(ctx, selectRunSQL, r.runID).Scan(
		&data.ID,
		&data.TrialID,
		&data.Detector,
		&data.Version,
		&data.Fingerprint,
		&data.ElapsedUS,
		&data.EventCount,
		&data.Warnings,
		&data.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s: %w", r.runID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("querying run: %w", err)
	}

	r.run, err = toRun(&data)
	return err
}

func (r *SqliteEventReader) validateFilters(context.Context) error {
	if r.start > r.end {
		return fmt.Errorf("start time %f is after end time %f", r.start, r.end)
	}
	if r.leg != "" && !r.leg.Valid() {
		return fmt.Errorf("unknown leg %q", r.leg)
	}
	if r.eventType != "" && !r.eventType.Valid() {
		return fmt.Errorf("unknown event type %q", r.eventType)
	}
	return nil
}

func (r *SqliteEventReader) initQuery(ctx context.Context) (err error) {
	r.rows, err = r.db.QueryContext(ctx, selectEventsSQL,
		r.runID,
		r.start, r.end,
		string(r.leg), string(r.leg),
		string(r.eventType), string(r.eventType),
		r.minConfidence,
	)
	return err
}

func (r *SqliteEventReader) Run() *Run {
	return r.run
}

func (r *SqliteEventReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		return false
	}

	var data eventData
	if r.err = r.rows.Scan(&data.Time, &data.Type, &data.Leg, &data.Confidence, &data.Method, &data.Diagnostics); r.err != nil {
		r.err = fmt.Errorf("scanning event: %w", r.err)
		return false
	}
	r.current, r.err = toEvent(&data)
	return r.err == nil
}

func (r *SqliteEventReader) Current() gait.Event {
	return r.current
}

func (r *SqliteEventReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *SqliteEventReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.rows = nil
		return err
	}
	return nil
}

// ReadAll drains the reader into a slice and closes it.
func ReadAll(ctx context.Context, r EventReader) (events []gait.Event, err error) {
	defer closeWithError(r, &err)

	for r.Next(ctx) {
		events = append(events, r.Current())
	}
	if err = r.Error(); err != nil {
		return nil, err
	}
	return events, nil
}
