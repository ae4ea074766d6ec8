package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
	"github.com/quoteportal/server/internal/repo"
)

// BindingOutcome says whether BindOrVerify created a fresh binding or matched
// the existing one.
type BindingOutcome int

const (
	BindingCreated BindingOutcome = iota
	BindingMatched
)

// BindingResult is the successful outcome of BindOrVerify. IPMismatch is
// advisory only: a matching fingerprint from a new network warns but never
// blocks.
type BindingResult struct {
	Outcome    BindingOutcome
	Binding    model.DeviceBinding
	IPMismatch bool
}

// DeviceBindingManager enforces one trusted device per account.
type DeviceBindingManager struct {
	devices repo.DeviceRepo
	tokens  repo.RefreshRepo
}

// NewDeviceBindingManager creates a new device binding manager
func NewDeviceBindingManager(devices repo.DeviceRepo, tokens repo.RefreshRepo) *DeviceBindingManager {
	return &DeviceBindingManager{devices: devices, tokens: tokens}
}

// BindOrVerify binds the fingerprint on first use and verifies it on every
// use after that. A non-matching fingerprint fails closed with
// ErrDeviceMismatch. The first-binding path is a compare-and-set against the
// storage-level uniqueness constraint: when two first logins race, exactly
// one insert wins and the loser re-reads the winner's binding and is judged
// against it.
func (m *DeviceBindingManager) BindOrVerify(ctx context.Context, accountID uuid.UUID, fingerprint, ip, browserInfo string) (BindingResult, error) {
	active, err := m.devices.GetActive(ctx, accountID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return BindingResult{}, err
		}
		binding := &model.DeviceBinding{
			ID:           uuid.New(),
			AccountID:    accountID,
			Fingerprint:  fingerprint,
			BrowserInfo:  browserInfo,
			RegisteredIP: ip,
		}
		createErr := m.devices.CreateActive(ctx, binding)
		if createErr == nil {
			return BindingResult{Outcome: BindingCreated, Binding: *binding}, nil
		}
		if !errors.Is(createErr, repo.ErrConflict) {
			return BindingResult{}, createErr
		}
		// Lost the race; evaluate against the winner.
		active, err = m.devices.GetActive(ctx, accountID)
		if err != nil {
			return BindingResult{}, fmt.Errorf("re-read binding after conflict: %w", err)
		}
	}

	if subtle.ConstantTimeCompare([]byte(active.Fingerprint), []byte(fingerprint)) != 1 {
		return BindingResult{}, ErrDeviceMismatch
	}
	return BindingResult{
		Outcome:    BindingMatched,
		Binding:    active,
		IPMismatch: active.RegisteredIP != ip,
	}, nil
}

// VerifyOnly checks the presented fingerprint against the active binding
// without ever creating one. Used on token refresh: a reset between login and
// refresh must invalidate the session, not silently re-bind.
func (m *DeviceBindingManager) VerifyOnly(ctx context.Context, accountID uuid.UUID, fingerprint string) (model.DeviceBinding, error) {
	active, err := m.devices.GetActive(ctx, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.DeviceBinding{}, ErrDeviceMismatch
		}
		return model.DeviceBinding{}, err
	}
	if subtle.ConstantTimeCompare([]byte(active.Fingerprint), []byte(fingerprint)) != 1 {
		return model.DeviceBinding{}, ErrDeviceMismatch
	}
	return active, nil
}

// Reset deactivates the current binding (keeping it as history) and revokes
// every outstanding refresh token family for the account. A stale device must
// not keep a valid session past a reset. The next successful login
// establishes a fresh binding.
func (m *DeviceBindingManager) Reset(ctx context.Context, accountID uuid.UUID, reason string) error {
	if _, err := m.devices.Deactivate(ctx, accountID, reason); err != nil {
		return fmt.Errorf("deactivate binding: %w", err)
	}
	if err := m.tokens.RevokeAllForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("revoke tokens after reset: %w", err)
	}
	return nil
}
