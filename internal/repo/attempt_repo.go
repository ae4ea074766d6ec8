package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
)

// AttemptRepo defines the interface for the append-only login attempt log
type AttemptRepo interface {
	Record(ctx context.Context, attempt *model.LoginAttempt) error
	ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LoginAttempt, error)
	CountRecentFailures(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error)
}

type attemptRepo struct {
	db *sql.DB
}

// NewAttemptRepo creates a new AttemptRepo instance
func NewAttemptRepo(db *sql.DB) AttemptRepo {
	return &attemptRepo{db: db}
}

// Record appends one login attempt row. Rows are never updated or deleted.
func (r *attemptRepo) Record(ctx context.Context, attempt *model.LoginAttempt) error {
	var accountID interface{}
	if attempt.AccountID != nil {
		accountID = *attempt.AccountID
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO login_attempts (account_id, success, failure_reason, ip_address, fingerprint, ip_mismatch_warning)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, accountID, attempt.Success, attempt.FailureReason, attempt.IPAddress,
		attempt.Fingerprint, attempt.IPMismatchWarning).
		Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}

// ListForAccount returns the most recent attempts for an account, newest first
func (r *attemptRepo) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LoginAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, created_at, success, failure_reason, ip_address, fingerprint, ip_mismatch_warning
		FROM login_attempts
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query login attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.LoginAttempt
	for rows.Next() {
		var a model.LoginAttempt
		var idStr string
		var accStr, reason sql.NullString
		if err := rows.Scan(
			&idStr,
			&accStr,
			&a.CreatedAt,
			&a.Success,
			&reason,
			&a.IPAddress,
			&a.Fingerprint,
			&a.IPMismatchWarning,
		); err != nil {
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		a.ID, _ = uuid.Parse(idStr)
		if accStr.Valid {
			if u, err := uuid.Parse(accStr.String); err == nil {
				a.AccountID = &u
			}
		}
		if reason.Valid {
			a.FailureReason = &reason.String
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate login attempts: %w", err)
	}
	return attempts, nil
}

// CountRecentFailures counts failed attempts for an account since the given time
func (r *attemptRepo) CountRecentFailures(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE account_id = $1 AND NOT success AND created_at > $2
	`, accountID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent failures: %w", err)
	}
	return count, nil
}
