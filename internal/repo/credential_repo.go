package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
)

// CredentialRepo defines the interface for credential repository operations
type CredentialRepo interface {
	Create(ctx context.Context, cred *model.Credential) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (model.Credential, error)
	// Replace swaps hash, salt and algorithm version in one statement.
	Replace(ctx context.Context, accountID uuid.UUID, hash, salt []byte, algoVersion int) error
}

type credentialRepo struct {
	db *sql.DB
}

// NewCredentialRepo creates a new CredentialRepo instance
func NewCredentialRepo(db *sql.DB) CredentialRepo {
	return &credentialRepo{db: db}
}

// Create inserts a new credential row
func (r *credentialRepo) Create(ctx context.Context, cred *model.Credential) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO credentials (account_id, password_hash, salt, algo_version)
		VALUES ($1, $2, $3, $4)
		RETURNING updated_at
	`, cred.AccountID, cred.PasswordHash, cred.Salt, cred.AlgoVersion).Scan(&cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// GetByAccountID retrieves the credential for an account
func (r *credentialRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (model.Credential, error) {
	var c model.Credential
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, password_hash, salt, algo_version, updated_at
		FROM credentials
		WHERE account_id = $1
	`, accountID).Scan(
		&idStr,
		&c.PasswordHash,
		&c.Salt,
		&c.AlgoVersion,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Credential{}, fmt.Errorf("credential: %w", ErrNotFound)
		}
		return model.Credential{}, fmt.Errorf("query credential: %w", err)
	}
	c.AccountID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Credential{}, fmt.Errorf("parse account ID: %w", err)
	}
	return c, nil
}

// Replace atomically updates the stored hash, salt and algorithm version
func (r *credentialRepo) Replace(ctx context.Context, accountID uuid.UUID, hash, salt []byte, algoVersion int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE credentials
		SET password_hash = $2, salt = $3, algo_version = $4, updated_at = now()
		WHERE account_id = $1
	`, accountID, hash, salt, algoVersion)
	if err != nil {
		return fmt.Errorf("replace credential: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("credential: %w", ErrNotFound)
	}
	return nil
}
