package storage

import (
	_ "embed"
)

const (
	upsertTrialSQL = `
INSERT INTO trials (id,
                    condition,
                    sampling_rate,
                    duration_seconds,
                    total_samples,
                    segment_start,
                    segment_end,
                    artifact_path,
                    created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET condition        = excluded.condition,
                               sampling_rate    = excluded.sampling_rate,
                               duration_seconds = excluded.duration_seconds,
                               total_samples    = excluded.total_samples,
                               segment_start    = excluded.segment_start,
                               segment_end      = excluded.segment_end,
                               artifact_path    = excluded.artifact_path`

	selectTrialColumns = `
SELECT
    id,
    condition,
    sampling_rate,
    duration_seconds,
    total_samples,
    segment_start,
    segment_end,
    artifact_path,
    created_at
FROM trials`

	selectTrialSQL = selectTrialColumns + `
WHERE
    id = ?`

	selectTrialsSQL = selectTrialColumns + `
ORDER BY id`

	insertRunSQL = `
INSERT INTO runs (id,
                  trial_id,
                  detector,
                  version,
                  fingerprint,
                  elapsed_us,
                  event_count,
                  warnings,
                  created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRunColumns = `
SELECT
    id,
    trial_id,
    detector,
    version,
    fingerprint,
    elapsed_us,
    event_count,
    warnings,
    created_at
FROM runs`

	selectRunSQL = selectRunColumns + `
WHERE
    id = ?`

	selectRunsSQL = selectRunColumns + `
WHERE
    (? = '' OR trial_id = ?)
ORDER BY created_at DESC, detector`

	deleteRunEventsSQL = `
DELETE FROM events
WHERE
    run_id IN (SELECT id FROM runs WHERE trial_id = ?)`

	deleteRunMetricsSQL = `
DELETE FROM run_metrics
WHERE
    run_id IN (SELECT id FROM runs WHERE trial_id = ?)`

	deleteRunsSQL = `
DELETE FROM runs
WHERE
    trial_id = ?`

	insertEventSQL = `
INSERT INTO events (run_id,
                    time,
                    type,
                    leg,
                    confidence,
                    method,
                    diagnostics)
VALUES `

	insertMetricSQL = `
INSERT INTO run_metrics (run_id,
                         name,
                         value)
VALUES (?, ?, ?)`

	selectMetricsSQL = `
SELECT
    name,
    value
FROM run_metrics
WHERE
    run_id = ?`

	selectEventsSQL = `
SELECT
    time,
    type,
    leg,
    confidence,
    method,
    diagnostics
FROM events
WHERE
    run_id = ?
    AND time BETWEEN ? AND ?
    AND (? = '' OR leg = ?)
    AND (? = '' OR type = ?)
    AND confidence >= ?
ORDER BY time, id`
)

//go:embed schema.sql
var initSchemaSQL string
