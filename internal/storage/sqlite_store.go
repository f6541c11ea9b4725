package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roman-kulish/gait-fusion/internal/detect"
)

// Supported database/sql driver names.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// eventsPerInsert bounds the bound variables of one multi-row insert.
const eventsPerInsert = 100

var _ Store = (*SqliteStore)(nil)

// WithDriver selects the database/sql driver, DriverCGO or DriverPure.
func WithDriver(name string) func(*SqliteStore) {
	return func(s *SqliteStore) {
		s.driver = name
	}
}

// WithClock replaces time.Now for creation timestamps.
func WithClock(now func() time.Time) func(*SqliteStore) {
	return func(s *SqliteStore) {
		s.now = now
	}
}

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string
	driver string
	now    func() time.Time

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the SQLite database at dbPath. Connections are opened
// and the schema is initialized on first use.
func NewSqliteStore(dbPath string, options ...func(*SqliteStore)) (*SqliteStore, error) {
	s := SqliteStore{
		dbPath: dbPath,
		driver: DriverCGO,
		now:    time.Now,
	}
	for _, option := range options {
		option(&s)
	}

	if s.dbPath == "" {
		return nil, errors.New("database path required")
	}
	if s.driver != DriverCGO && s.driver != DriverPure {
		return nil, fmt.Errorf("unsupported sqlite driver %q", s.driver)
	}
	return &s, nil
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) dsn(readOnly bool) string {
	var params []string
	switch {
	case s.driver == DriverPure && readOnly:
		params = []string{"mode=ro", "_pragma=busy_timeout(5000)"}
	case s.driver == DriverPure:
		params = []string{"_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)", "_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	case readOnly:
		params = []string{"mode=ro", "_busy_timeout=5000"}
	default:
		params = []string{"_journal_mode=WAL", "_synchronous=NORMAL", "_foreign_keys=on", "_busy_timeout=5000"}
	}
	return fmt.Sprintf("file:%s?%s", s.dbPath, strings.Join(params, "&"))
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open(s.driver, s.dsn(false))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		// A read-only connection cannot create the database.
		if _, err := os.Stat(s.dbPath); errors.Is(err, os.ErrNotExist) {
			if _, err = s.getWriteDB(); err != nil {
				s.readDBErr = err
				return
			}
		}

		db, err := sql.Open(s.driver, s.dsn(true))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) SaveTrial(ctx context.Context, trial *Trial) (err error) {
	if trial == nil || trial.ID == "" {
		return errors.New("trial ID required")
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	createdAt := trial.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err = db.ExecContext(ctx, upsertTrialSQL,
		trial.ID,
		toNullString(trial.Condition),
		trial.SamplingRate,
		trial.DurationSeconds,
		trial.TotalSamples,
		trial.SegmentStart,
		trial.SegmentEnd,
		toNullString(trial.ArtifactPath),
		formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("upserting trial: %w", err)
	}
	return nil
}

func (s *SqliteStore) Trial(ctx context.Context, id string) (trial *Trial, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectTrialSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data trialData
	err = stmt.QueryRowContext(ctx, id).Scan(
		&data.ID,
		&data.Condition,
		&data.SamplingRate,
		&data.DurationSeconds,
		&data.TotalSamples,
		&data.SegmentStart,
		&data.SegmentEnd,
		&data.ArtifactPath,
		&data.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trial %s: %w", id, ErrNotFound)
	}
	if err != nil {
		err = fmt.Errorf("scanning trial: %w", err)
		return
	}
	return toTrial(&data), nil
}

func (s *SqliteStore) Trials(ctx context.Context) (trials []*Trial, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTrialsSQL)
	if err != nil {
		err = fmt.Errorf("querying trials: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data trialData
		err = rows.Scan(
			&data.ID,
			&data.Condition,
			&data.SamplingRate,
			&data.DurationSeconds,
			&data.TotalSamples,
			&data.SegmentStart,
			&data.SegmentEnd,
			&data.ArtifactPath,
			&data.CreatedAt,
		)
		if err != nil {
			err = fmt.Errorf("scanning trial: %w", err)
			return
		}
		trials = append(trials, toTrial(&data))
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) SaveRun(ctx context.Context, run detect.Run, metrics map[string]float64) (runID uuid.UUID, err error) {
	warnings, err := toNullJSON(run.Warnings)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding warnings: %w", err)
	}

	db, err := s.getWriteDB()
	if err != nil {
		return uuid.Nil, fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	id := uuid.New()
	_, err = tx.ExecContext(ctx, insertRunSQL,
		id,
		run.TrialID,
		run.Detector,
		run.Version,
		run.Fingerprint,
		run.Elapsed.Microseconds(),
		len(run.Events),
		warnings,
		formatTime(s.now()),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting run: %w", err)
	}

	if err = insertEvents(ctx, tx, id, run); err != nil {
		return uuid.Nil, err
	}
	for name, value := range metrics {
		if _, err = tx.ExecContext(ctx, insertMetricSQL, id, name, value); err != nil {
			return uuid.Nil, fmt.Errorf("inserting metric %s: %w", name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, runID uuid.UUID, run detect.Run) error {
	const valuesPlaceholder = "(?, ?, ?, ?, ?, ?, ?)"

	for start := 0; start < len(run.Events); start += eventsPerInsert {
		batch := run.Events[start:min(start+eventsPerInsert, len(run.Events))]

		values := make([]any, 0, len(batch)*7)

		var sb strings.Builder
		sb.WriteString(insertEventSQL)

		for i, e := range batch {
			data, err := toEventData(e)
			if err != nil {
				return err
			}
			values = append(values,
				runID,
				data.Time,
				data.Type,
				data.Leg,
				data.Confidence,
				data.Method,
				data.Diagnostics,
			)

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(valuesPlaceholder)
		}

		if _, err := tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting events: %w", err)
		}
	}
	return nil
}

func (s *SqliteStore) Run(ctx context.Context, id uuid.UUID) (run *Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	var data runData
	err = db.QueryRowContext(ctx, selectRunSQL, id).Scan(
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
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		err = fmt.Errorf("scanning run: %w", err)
		return
	}

	if run, err = toRun(&data); err != nil {
		return nil, err
	}
	if run.Metrics, err = s.metrics(ctx, db, id); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SqliteStore) metrics(ctx context.Context, db *sql.DB, runID uuid.UUID) (metrics map[string]float64, err error) {
	rows, err := db.QueryContext(ctx, selectMetricsSQL, runID)
	if err != nil {
		err = fmt.Errorf("querying metrics: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	metrics = make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err = rows.Scan(&name, &value); err != nil {
			err = fmt.Errorf("scanning metric: %w", err)
			return
		}
		metrics[name] = value
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) Runs(ctx context.Context, trialID string) (runs []*Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL, trialID, trialID)
	if err != nil {
		err = fmt.Errorf("querying runs: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data runData
		err = rows.Scan(
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
		if err != nil {
			err = fmt.Errorf("scanning run: %w", err)
			return
		}

		var run *Run
		if run, err = toRun(&data); err != nil {
			return
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return
	}

	// rows is closed once Next returns false.
	for _, run := range runs {
		if run.Metrics, err = s.metrics(ctx, db, run.ID); err != nil {
			return nil, err
		}
	}
	return
}

func (s *SqliteStore) DeleteRuns(ctx context.Context, trialID string) (n int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for _, query := range []string{deleteRunEventsSQL, deleteRunMetricsSQL} {
		if _, err = tx.ExecContext(ctx, query, trialID); err != nil {
			return 0, fmt.Errorf("deleting run data: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, deleteRunsSQL, trialID)
	if err != nil {
		return 0, fmt.Errorf("deleting runs: %w", err)
	}
	if n, err = result.RowsAffected(); err != nil {
		return 0, fmt.Errorf("counting deleted runs: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return n, nil
}

// ReadEvents creates an EventReader over the events of a run ordered by time. Filters are applied
// in SQL.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - runID: Unique identifier of the stored run
//   - opts: Optional filters (WithLeg, WithEventType, WithTimeRange, WithMinConfidence)
//
// The returned reader must be closed after use. Each reader instance should only be used from a
// single goroutine.
func (s *SqliteStore) ReadEvents(ctx context.Context, runID uuid.UUID, opts ...ReaderOption) (EventReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteEventReader(ctx, db, runID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
