package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
)

// AccountRepo defines the interface for account repository operations
type AccountRepo interface {
	Create(ctx context.Context, account *model.Account) error
	// CreateWithCredential inserts the account and its credential in one
	// transaction; a failed credential write never leaves a credential-less
	// account behind. Returns ErrConflict when the email is taken.
	CreateWithCredential(ctx context.Context, account *model.Account, cred *model.Credential) error
	GetByID(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	// UpdateStatus moves the account from one status to another. It only
	// applies when the stored status still matches from, so callers can use
	// it as a conditional transition; false means the precondition failed.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AccountStatus, reason *string) (bool, error)
}

type accountRepo struct {
	db *sql.DB
}

// NewAccountRepo creates a new AccountRepo instance
func NewAccountRepo(db *sql.DB) AccountRepo {
	return &accountRepo{db: db}
}

// Create inserts a new account. Returns ErrConflict when the email is taken.
func (r *accountRepo) Create(ctx context.Context, account *model.Account) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, role, email, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, account.ID, string(account.Role), account.Email, string(account.Status)).Scan(&account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert account: %w", ErrConflict)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// CreateWithCredential inserts account and credential in one transaction
func (r *accountRepo) CreateWithCredential(ctx context.Context, account *model.Account, cred *model.Credential) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO accounts (id, role, email, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, account.ID, string(account.Role), account.Email, string(account.Status)).Scan(&account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert account: %w", ErrConflict)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO credentials (account_id, password_hash, salt, algo_version)
		VALUES ($1, $2, $3, $4)
		RETURNING updated_at
	`, cred.AccountID, cred.PasswordHash, cred.Salt, cred.AlgoVersion).Scan(&cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID
func (r *accountRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	return r.get(ctx, `
		SELECT id, role, email, status, status_reason, created_at
		FROM accounts
		WHERE id = $1
	`, id)
}

// GetByEmail retrieves an account by email
func (r *accountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return r.get(ctx, `
		SELECT id, role, email, status, status_reason, created_at
		FROM accounts
		WHERE email = $1
	`, email)
}

func (r *accountRepo) get(ctx context.Context, query string, arg interface{}) (model.Account, error) {
	var a model.Account
	var idStr, role, status string
	var reason sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&idStr,
		&role,
		&a.Email,
		&status,
		&reason,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, fmt.Errorf("account: %w", ErrNotFound)
		}
		return model.Account{}, fmt.Errorf("query account: %w", err)
	}
	a.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Account{}, fmt.Errorf("parse account ID: %w", err)
	}
	a.Role = model.Role(role)
	a.Status = model.AccountStatus(status)
	if reason.Valid {
		a.StatusReason = &reason.String
	}
	return a, nil
}

// UpdateStatus conditionally transitions the account status.
func (r *accountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AccountStatus, reason *string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET status = $3, status_reason = $4
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), reason)
	if err != nil {
		return false, fmt.Errorf("update account status: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
