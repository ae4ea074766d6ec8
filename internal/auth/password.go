package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"unicode"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
	"github.com/quoteportal/server/internal/repo"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters for algorithm version 1. New versions append here so
// stored credentials keep verifying after a parameter bump.
const (
	argonVersion     = 1
	argonTime        = 3
	argonMemoryKiB   = 64 * 1024
	argonParallelism = 4
	argonSaltLen     = 16
	argonKeyLen      = 32
)

// PasswordPolicy is the configurable strength requirement for new passwords.
type PasswordPolicy struct {
	MinLength      int
	RequireClasses bool
}

// Check validates a candidate password against the policy.
func (p PasswordPolicy) Check(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("%w: minimum length %d", ErrWeakPassword, p.MinLength)
	}
	if !p.RequireClasses {
		return nil
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: letters and digits required", ErrWeakPassword)
	}
	return nil
}

// CredentialStore persists and verifies salted password hashes.
type CredentialStore struct {
	creds  repo.CredentialRepo
	policy PasswordPolicy
}

// NewCredentialStore creates a new credential store
func NewCredentialStore(creds repo.CredentialRepo, policy PasswordPolicy) *CredentialStore {
	return &CredentialStore{creds: creds, policy: policy}
}

// NewCredential checks the policy and hashes the password with a fresh random
// salt, without persisting. Registration stores the result inside the same
// transaction that creates the account.
func (s *CredentialStore) NewCredential(accountID uuid.UUID, password string) (*model.Credential, error) {
	if err := s.policy.Check(password); err != nil {
		return nil, err
	}
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return &model.Credential{
		AccountID:    accountID,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
		AlgoVersion:  argonVersion,
	}, nil
}

// Create hashes the password with a fresh random salt and stores the
// credential. Fails with ErrWeakPassword when the policy is not met.
func (s *CredentialStore) Create(ctx context.Context, accountID uuid.UUID, password string) error {
	cred, err := s.NewCredential(accountID, password)
	if err != nil {
		return err
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Verify recomputes the hash with the stored salt and compares in constant
// time. Unknown accounts verify as false rather than erroring, so callers
// cannot distinguish them from a wrong password.
func (s *CredentialStore) Verify(ctx context.Context, accountID uuid.UUID, password string) (bool, error) {
	cred, err := s.creds.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	computed := hashPassword(password, cred.Salt)
	return subtle.ConstantTimeCompare(computed, cred.PasswordHash) == 1, nil
}

// ChangePassword re-verifies the old password, then replaces hash and salt
// atomically. It does not revoke sessions; that decision belongs to the
// caller.
func (s *CredentialStore) ChangePassword(ctx context.Context, accountID uuid.UUID, oldPassword, newPassword string) error {
	ok, err := s.Verify(ctx, accountID, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if err := s.policy.Check(newPassword); err != nil {
		return err
	}
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	if err := s.creds.Replace(ctx, accountID, hashPassword(newPassword, salt), salt, argonVersion); err != nil {
		return fmt.Errorf("replace credential: %w", err)
	}
	return nil
}

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemoryKiB, argonParallelism, argonKeyLen)
}
