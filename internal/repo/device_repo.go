package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
)

// DeviceRepo defines the interface for device binding repository operations
type DeviceRepo interface {
	// CreateActive inserts a new active binding. The partial unique index on
	// (account_id) WHERE is_active makes this a compare-and-set: a concurrent
	// first login loses with ErrConflict and must re-read the winner.
	CreateActive(ctx context.Context, binding *model.DeviceBinding) error
	GetActive(ctx context.Context, accountID uuid.UUID) (model.DeviceBinding, error)
	// Deactivate clears the active binding, keeping it as a history row with
	// the given reason. Returns false when no active binding existed.
	Deactivate(ctx context.Context, accountID uuid.UUID, reason string) (bool, error)
}

type deviceRepo struct {
	db *sql.DB
}

// NewDeviceRepo creates a new DeviceRepo instance
func NewDeviceRepo(db *sql.DB) DeviceRepo {
	return &deviceRepo{db: db}
}

// CreateActive inserts a new active device binding for an account
func (r *deviceRepo) CreateActive(ctx context.Context, binding *model.DeviceBinding) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO device_bindings (id, account_id, fingerprint, browser_info, registered_ip, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING created_at
	`, binding.ID, binding.AccountID, binding.Fingerprint, binding.BrowserInfo, binding.RegisteredIP).
		Scan(&binding.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert device binding: %w", ErrConflict)
		}
		return fmt.Errorf("insert device binding: %w", err)
	}
	binding.IsActive = true
	return nil
}

// GetActive returns the active binding for an account, if any
func (r *deviceRepo) GetActive(ctx context.Context, accountID uuid.UUID) (model.DeviceBinding, error) {
	var b model.DeviceBinding
	var idStr, accStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, fingerprint, browser_info, registered_ip, is_active, created_at
		FROM device_bindings
		WHERE account_id = $1 AND is_active
	`, accountID).Scan(
		&idStr,
		&accStr,
		&b.Fingerprint,
		&b.BrowserInfo,
		&b.RegisteredIP,
		&b.IsActive,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DeviceBinding{}, fmt.Errorf("device binding: %w", ErrNotFound)
		}
		return model.DeviceBinding{}, fmt.Errorf("query device binding: %w", err)
	}
	b.ID, _ = uuid.Parse(idStr)
	b.AccountID, _ = uuid.Parse(accStr)
	return b, nil
}

// Deactivate moves the active binding to history
func (r *deviceRepo) Deactivate(ctx context.Context, accountID uuid.UUID, reason string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE device_bindings
		SET is_active = false, deactivated_at = now(), deactivation_reason = $2
		WHERE account_id = $1 AND is_active
	`, accountID, reason)
	if err != nil {
		return false, fmt.Errorf("deactivate device binding: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
