package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/models"
)

// ErrNotFound is returned when no attempt matches.
var ErrNotFound = errors.New("submission attempt not found")

// Store wraps pgxpool for the submission audit log.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RecordAttempt inserts one submission attempt. Missing id and timestamp are filled in.
// u64 columns are passed as text so values above MaxInt64 survive the NUMERIC cast.
func (s *Store) RecordAttempt(ctx context.Context, a models.SubmissionAttempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Recorded.IsZero() {
		a.Recorded = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submission_attempts (id, job_id, actor, description, payment_amount, job_deadline, tx_hash, tx_version, outcome, last_error, recorded_at)
		VALUES ($1, $2::numeric, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11)
	`, a.ID, strconv.FormatUint(a.JobID, 10), ledger.NormalizeAddress(a.Actor), a.Description,
		strconv.FormatUint(a.PaymentAmount, 10), a.JobDeadline, emptyToNil(a.TxHash), emptyToNil(a.TxVersion),
		a.Outcome, a.Error, a.Recorded)
	if err != nil {
		return fmt.Errorf("insert submission attempt: %w", err)
	}
	return nil
}

const attemptColumns = `id::text, job_id::text, actor, description, payment_amount::text, job_deadline, tx_hash, tx_version, outcome, last_error, recorded_at`

// GetAttempt fetches an attempt by id.
func (s *Store) GetAttempt(ctx context.Context, id string) (models.SubmissionAttempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM submission_attempts WHERE id = $1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SubmissionAttempt{}, ErrNotFound
	}
	return a, err
}

// ListAttempts returns an actor's most recent attempts, newest first.
func (s *Store) ListAttempts(ctx context.Context, actor string, limit int) ([]models.SubmissionAttempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM submission_attempts
		WHERE actor = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, ledger.NormalizeAddress(actor), limit)
	if err != nil {
		return nil, fmt.Errorf("query submission attempts: %w", err)
	}
	defer rows.Close()

	out := []models.SubmissionAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission attempts: %w", err)
	}
	return out, nil
}

// CountByOutcome tallies attempts per outcome since the given time.
func (s *Store) CountByOutcome(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT outcome, COUNT(*) FROM submission_attempts WHERE recorded_at >= $1 GROUP BY outcome
	`, since)
	if err != nil {
		return nil, fmt.Errorf("count submission outcomes: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

func scanAttempt(row pgx.Row) (models.SubmissionAttempt, error) {
	var a models.SubmissionAttempt
	var jobID, amount string
	var hash, version, lastErr pgtype.Text
	if err := row.Scan(&a.ID, &jobID, &a.Actor, &a.Description, &amount, &a.JobDeadline, &hash, &version, &a.Outcome, &lastErr, &a.Recorded); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SubmissionAttempt{}, err
		}
		return models.SubmissionAttempt{}, fmt.Errorf("scan submission attempt: %w", err)
	}
	var err error
	if a.JobID, err = strconv.ParseUint(jobID, 10, 64); err != nil {
		return models.SubmissionAttempt{}, fmt.Errorf("parse job_id %q: %w", jobID, err)
	}
	if a.PaymentAmount, err = strconv.ParseUint(amount, 10, 64); err != nil {
		return models.SubmissionAttempt{}, fmt.Errorf("parse payment_amount %q: %w", amount, err)
	}
	a.TxHash = textValue(hash)
	a.TxVersion = textValue(version)
	a.Error = textPtr(lastErr)
	return a, nil
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}

func textValue(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
