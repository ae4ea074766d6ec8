package model

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which portal an account belongs to.
type Role string

const (
	RoleCustomer      Role = "customer"
	RoleSupplier      Role = "supplier"
	RoleAdminEmployee Role = "admin_employee"
)

// Valid reports whether r is one of the known portal roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSupplier, RoleAdminEmployee:
		return true
	}
	return false
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusPending     AccountStatus = "pending"
	StatusActive      AccountStatus = "active"
	StatusSuspended   AccountStatus = "suspended"
	StatusDeactivated AccountStatus = "deactivated"
)

// Account represents a portal account. Accounts are never deleted, only
// deactivated.
type Account struct {
	ID           uuid.UUID
	Role         Role
	Email        string
	Status       AccountStatus
	StatusReason *string
	CreatedAt    time.Time
}

// Credential holds the salted password hash for an account (1:1 with Account).
type Credential struct {
	AccountID    uuid.UUID
	PasswordHash []byte
	Salt         []byte
	AlgoVersion  int
	UpdatedAt    time.Time
}

// DeviceBinding ties an account to a device fingerprint. At most one row per
// account may be active; inactive rows are kept as history.
type DeviceBinding struct {
	ID                 uuid.UUID
	AccountID          uuid.UUID
	Fingerprint        string
	BrowserInfo        string
	RegisteredIP       string
	IsActive           bool
	CreatedAt          time.Time
	DeactivatedAt      *time.Time
	DeactivationReason *string
}

// LoginAttempt is one append-only audit record of an authentication attempt.
// AccountID is nil for unknown-email attempts.
type LoginAttempt struct {
	ID                uuid.UUID
	AccountID         *uuid.UUID
	CreatedAt         time.Time
	Success           bool
	FailureReason     *string
	IPAddress         string
	Fingerprint       string
	IPMismatchWarning bool
}

// RefreshToken is one link in a rotation family. Only the SHA-256 hash of the
// opaque token value is stored. Revoked transitions forward only.
type RefreshToken struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	FamilyID     uuid.UUID
	TokenHash    string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Revoked      bool
	SupersededBy *uuid.UUID
}
