package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps health records in the model_health table. Each mutation
// is a single statement so concurrent replicas never race on the counter.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `model_id, consecutive_failures, auto_disabled, last_failure_at,
	disabled_at, last_success_at, last_failure_reason, last_error_kind`

func (s *PostgresStore) Register(ctx context.Context, modelID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO model_health (model_id) VALUES ($1)
		ON CONFLICT (model_id) DO NOTHING
	`, modelID)
	if err != nil {
		return fmt.Errorf("register model health %s: %w", modelID, err)
	}
	return nil
}

func (s *PostgresStore) RecordSuccess(ctx context.Context, modelID string, at time.Time) (Record, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO model_health (model_id, last_success_at) VALUES ($1, $2)
		ON CONFLICT (model_id) DO UPDATE SET
			consecutive_failures = 0,
			auto_disabled = FALSE,
			disabled_at = NULL,
			last_success_at = EXCLUDED.last_success_at,
			updated_at = NOW()
		RETURNING `+recordColumns, modelID, at)

	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("record success for %s: %w", modelID, err)
	}
	return rec, nil
}

// recordFailureSQL reads the previous flag in the same statement so the caller
// learns about the transition into auto-disabled exactly once. SET expressions
// see the pre-update row, and only counted failures move disabled_at.
const recordFailureSQL = `
	WITH prev AS (
		SELECT auto_disabled FROM model_health WHERE model_id = $1 FOR UPDATE
	)
	UPDATE model_health SET
		consecutive_failures = consecutive_failures + CASE WHEN $2::boolean THEN 1 ELSE 0 END,
		auto_disabled = auto_disabled OR ($2::boolean AND consecutive_failures + 1 >= $3::int),
		disabled_at = CASE
			WHEN $2::boolean AND (auto_disabled OR consecutive_failures + 1 >= $3::int) THEN $4
			ELSE disabled_at
		END,
		last_failure_at = $4,
		last_failure_reason = $5,
		last_error_kind = $6,
		updated_at = NOW()
	WHERE model_id = $1
	RETURNING ` + recordColumns + `, (SELECT auto_disabled FROM prev)`

func (s *PostgresStore) RecordFailure(ctx context.Context, modelID string, f Failure) (FailureResult, error) {
	res, err := s.recordFailure(ctx, modelID, f)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.Register(ctx, modelID); err != nil {
			return FailureResult{}, err
		}
		res, err = s.recordFailure(ctx, modelID, f)
	}
	if err != nil {
		return FailureResult{}, fmt.Errorf("record failure for %s: %w", modelID, err)
	}
	return res, nil
}

func (s *PostgresStore) recordFailure(ctx context.Context, modelID string, f Failure) (FailureResult, error) {
	row := s.db.QueryRow(ctx, recordFailureSQL,
		modelID, f.Counted, f.Threshold, f.At, f.Reason, string(f.Kind))

	var (
		rec         Record
		lastFailure *time.Time
		disabledAt  *time.Time
		lastSuccess *time.Time
		wasDisabled bool
	)
	err := row.Scan(
		&rec.ModelID,
		&rec.ConsecutiveFailures,
		&rec.AutoDisabled,
		&lastFailure,
		&disabledAt,
		&lastSuccess,
		&rec.LastFailureReason,
		&rec.LastErrorKind,
		&wasDisabled,
	)
	if err != nil {
		return FailureResult{}, err
	}
	setTimes(&rec, lastFailure, disabledAt, lastSuccess)
	return FailureResult{Record: rec, Disabled: !wasDisabled && rec.AutoDisabled}, nil
}

func (s *PostgresStore) Reenable(ctx context.Context, modelID string) (Record, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE model_health SET
			consecutive_failures = 0,
			auto_disabled = FALSE,
			disabled_at = NULL,
			updated_at = NOW()
		WHERE model_id = $1
		RETURNING `+recordColumns, modelID)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("reenable %s: %w", modelID, err)
	}
	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, modelID string) (Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM model_health WHERE model_id = $1`, modelID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query model_health: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordColumns+` FROM model_health ORDER BY model_id`)
	if err != nil {
		return nil, fmt.Errorf("query model_health: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model_health: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec         Record
		lastFailure *time.Time
		disabledAt  *time.Time
		lastSuccess *time.Time
	)
	err := row.Scan(
		&rec.ModelID,
		&rec.ConsecutiveFailures,
		&rec.AutoDisabled,
		&lastFailure,
		&disabledAt,
		&lastSuccess,
		&rec.LastFailureReason,
		&rec.LastErrorKind,
	)
	if err != nil {
		return Record{}, err
	}
	setTimes(&rec, lastFailure, disabledAt, lastSuccess)
	return rec, nil
}

func setTimes(rec *Record, lastFailure, disabledAt, lastSuccess *time.Time) {
	if lastFailure != nil {
		rec.LastFailureAt = *lastFailure
	}
	if disabledAt != nil {
		rec.DisabledAt = *disabledAt
	}
	if lastSuccess != nil {
		rec.LastSuccessAt = *lastSuccess
	}
}
