package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
)

// RefreshRepo defines the interface for refresh token repository operations
type RefreshRepo interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	// GetByHash returns the token regardless of revocation status (needed for
	// reuse detection).
	GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	// Rotate revokes the presented token and inserts its successor in one
	// transaction. Returns false when the token was already revoked, which is
	// the reuse-detection signal; in that case nothing is written.
	Rotate(ctx context.Context, oldID uuid.UUID, next *model.RefreshToken) (bool, error)
	RevokeFamily(ctx context.Context, familyID uuid.UUID) error
	RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

type refreshRepo struct {
	db *sql.DB
}

// NewRefreshRepo creates a new RefreshRepo instance
func NewRefreshRepo(db *sql.DB) RefreshRepo {
	return &refreshRepo{db: db}
}

// Create inserts a new refresh token row
func (r *refreshRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, account_id, family_id, token_hash, issued_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, false)
	`, token.ID, token.AccountID, token.FamilyID, token.TokenHash, token.IssuedAt, token.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert refresh token: %w", ErrConflict)
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetByHash looks up a token by the hash of its opaque value
func (r *refreshRepo) GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	var idStr, accStr, famStr string
	var supersededBy sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, family_id, token_hash, issued_at, expires_at, revoked, superseded_by
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&idStr,
		&accStr,
		&famStr,
		&t.TokenHash,
		&t.IssuedAt,
		&t.ExpiresAt,
		&t.Revoked,
		&supersededBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, fmt.Errorf("refresh token: %w", ErrNotFound)
		}
		return model.RefreshToken{}, fmt.Errorf("query refresh token: %w", err)
	}
	t.ID, _ = uuid.Parse(idStr)
	t.AccountID, _ = uuid.Parse(accStr)
	t.FamilyID, _ = uuid.Parse(famStr)
	if supersededBy.Valid && supersededBy.String != "" {
		if u, err := uuid.Parse(supersededBy.String); err == nil {
			t.SupersededBy = &u
		}
	}
	return t, nil
}

// Rotate performs the single-transaction revoke-and-replace. The conditional
// UPDATE only matches a not-yet-revoked row, so exactly one of two concurrent
// rotations of the same token can succeed.
func (r *refreshRepo) Rotate(ctx context.Context, oldID uuid.UUID, next *model.RefreshToken) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = true, superseded_by = $2
		WHERE id = $1 AND NOT revoked
	`, oldID, next.ID)
	if err != nil {
		return false, fmt.Errorf("revoke presented token: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, account_id, family_id, token_hash, issued_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, false)
	`, next.ID, next.AccountID, next.FamilyID, next.TokenHash, next.IssuedAt, next.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("insert successor token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rotation: %w", err)
	}
	return true, nil
}

// RevokeFamily revokes every token sharing a family (reuse/theft response)
func (r *refreshRepo) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = true WHERE family_id = $1 AND NOT revoked
	`, familyID)
	if err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	return nil
}

// RevokeAllForAccount revokes every outstanding token for an account
func (r *refreshRepo) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = true WHERE account_id = $1 AND NOT revoked
	`, accountID)
	if err != nil {
		return fmt.Errorf("revoke all tokens for account: %w", err)
	}
	return nil
}
