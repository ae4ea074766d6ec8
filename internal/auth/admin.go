package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
	"github.com/quoteportal/server/internal/repo"
)

// AdminService performs administrative overrides: suspension, reactivation,
// device binding resets, and login history lookups. Every mutation is logged
// with the operator-supplied reason.
type AdminService struct {
	accounts repo.AccountRepo
	bindings *DeviceBindingManager
	tokens   repo.RefreshRepo
	attempts repo.AttemptRepo
}

// NewAdminService creates a new admin service
func NewAdminService(
	accounts repo.AccountRepo,
	bindings *DeviceBindingManager,
	tokens repo.RefreshRepo,
	attempts repo.AttemptRepo,
) *AdminService {
	return &AdminService{
		accounts: accounts,
		bindings: bindings,
		tokens:   tokens,
		attempts: attempts,
	}
}

// Suspend puts the account on administrative hold and revokes every
// outstanding refresh token family. A login already in flight may still
// receive a token issued just before the hold lands; short access TTLs bound
// that window.
func (s *AdminService) Suspend(ctx context.Context, accountID uuid.UUID, reason string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := CheckTransition(account.Status, model.StatusSuspended); err != nil {
		return err
	}
	applied, err := s.accounts.UpdateStatus(ctx, accountID, account.Status, model.StatusSuspended, &reason)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}
	if err := s.tokens.RevokeAllForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("revoke tokens on suspend: %w", err)
	}
	log.Printf("admin: account suspended account=%s reason=%q", accountID, reason)
	return nil
}

// Reactivate lifts a suspension. Previously revoked tokens stay revoked; the
// account must log in again.
func (s *AdminService) Reactivate(ctx context.Context, accountID uuid.UUID, note string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status != model.StatusSuspended {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, account.Status, model.StatusActive)
	}
	applied, err := s.accounts.UpdateStatus(ctx, accountID, model.StatusSuspended, model.StatusActive, &note)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}
	log.Printf("admin: account reactivated account=%s", accountID)
	return nil
}

// Deactivate permanently retires a suspended account. Terminal.
func (s *AdminService) Deactivate(ctx context.Context, accountID uuid.UUID, reason string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := CheckTransition(account.Status, model.StatusDeactivated); err != nil {
		return err
	}
	applied, err := s.accounts.UpdateStatus(ctx, accountID, account.Status, model.StatusDeactivated, &reason)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}
	if err := s.tokens.RevokeAllForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("revoke tokens on deactivate: %w", err)
	}
	log.Printf("admin: account deactivated account=%s reason=%q", accountID, reason)
	return nil
}

// ResetDeviceBinding clears the trusted device so the next successful login
// binds afresh. The reason lands on the history row.
func (s *AdminService) ResetDeviceBinding(ctx context.Context, accountID uuid.UUID, reason string) error {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return err
	}
	if err := s.bindings.Reset(ctx, accountID, reason); err != nil {
		return err
	}
	log.Printf("admin: device binding reset account=%s reason=%q", accountID, reason)
	return nil
}

// LoginHistory returns the most recent login attempts for an account.
func (s *AdminService) LoginHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LoginAttempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.attempts.ListForAccount(ctx, accountID, limit)
}
