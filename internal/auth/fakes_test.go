package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
	"github.com/quoteportal/server/internal/repo"
)

// In-memory repo implementations with the same conflict semantics as the
// Postgres layer, so the service tests can exercise the race paths.

type fakeAccountRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]model.Account
	byEmail map[string]uuid.UUID
	creds   *fakeCredentialRepo
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		byID:    make(map[uuid.UUID]model.Account),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (f *fakeAccountRepo) Create(ctx context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[account.Email]; ok {
		return fmt.Errorf("insert account: %w", repo.ErrConflict)
	}
	account.CreatedAt = time.Now()
	f.byID[account.ID] = *account
	f.byEmail[account.Email] = account.ID
	return nil
}

// CreateWithCredential mirrors the transactional contract: when the
// credential write fails, the account row is rolled back too.
func (f *fakeAccountRepo) CreateWithCredential(ctx context.Context, account *model.Account, cred *model.Credential) error {
	if err := f.Create(ctx, account); err != nil {
		return err
	}
	if err := f.creds.Create(ctx, cred); err != nil {
		f.mu.Lock()
		delete(f.byID, account.ID)
		delete(f.byEmail, account.Email)
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account: %w", repo.ErrNotFound)
	}
	return a, nil
}

func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[email]
	if !ok {
		return model.Account{}, fmt.Errorf("account: %w", repo.ErrNotFound)
	}
	return f.byID[id], nil
}

func (f *fakeAccountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AccountStatus, reason *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.StatusReason = reason
	f.byID[id] = a
	return true, nil
}

type fakeCredentialRepo struct {
	mu       sync.Mutex
	creds    map[uuid.UUID]model.Credential
	failNext error
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: make(map[uuid.UUID]model.Credential)}
}

func (f *fakeCredentialRepo) Create(ctx context.Context, cred *model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	cred.UpdatedAt = time.Now()
	f.creds[cred.AccountID] = *cred
	return nil
}

func (f *fakeCredentialRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[accountID]
	if !ok {
		return model.Credential{}, fmt.Errorf("credential: %w", repo.ErrNotFound)
	}
	return c, nil
}

func (f *fakeCredentialRepo) Replace(ctx context.Context, accountID uuid.UUID, hash, salt []byte, algoVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[accountID]
	if !ok {
		return fmt.Errorf("credential: %w", repo.ErrNotFound)
	}
	c.PasswordHash = hash
	c.Salt = salt
	c.AlgoVersion = algoVersion
	c.UpdatedAt = time.Now()
	f.creds[accountID] = c
	return nil
}

type fakeDeviceRepo struct {
	mu       sync.Mutex
	bindings []model.DeviceBinding
}

func newFakeDeviceRepo() *fakeDeviceRepo { return &fakeDeviceRepo{} }

func (f *fakeDeviceRepo) CreateActive(ctx context.Context, binding *model.DeviceBinding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bindings {
		if b.AccountID == binding.AccountID && b.IsActive {
			return fmt.Errorf("insert device binding: %w", repo.ErrConflict)
		}
	}
	binding.IsActive = true
	binding.CreatedAt = time.Now()
	f.bindings = append(f.bindings, *binding)
	return nil
}

func (f *fakeDeviceRepo) GetActive(ctx context.Context, accountID uuid.UUID) (model.DeviceBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bindings {
		if b.AccountID == accountID && b.IsActive {
			return b, nil
		}
	}
	return model.DeviceBinding{}, fmt.Errorf("device binding: %w", repo.ErrNotFound)
}

func (f *fakeDeviceRepo) Deactivate(ctx context.Context, accountID uuid.UUID, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.bindings {
		if b.AccountID == accountID && b.IsActive {
			now := time.Now()
			f.bindings[i].IsActive = false
			f.bindings[i].DeactivatedAt = &now
			f.bindings[i].DeactivationReason = &reason
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDeviceRepo) historyCount(accountID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bindings {
		if b.AccountID == accountID && !b.IsActive {
			n++
		}
	}
	return n
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []model.LoginAttempt
}

func newFakeAttemptRepo() *fakeAttemptRepo { return &fakeAttemptRepo{} }

func (f *fakeAttemptRepo) Record(ctx context.Context, attempt *model.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt.ID = uuid.New()
	attempt.CreatedAt = time.Now()
	f.attempts = append(f.attempts, *attempt)
	return nil
}

func (f *fakeAttemptRepo) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LoginAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.LoginAttempt
	for i := len(f.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		a := f.attempts[i]
		if a.AccountID != nil && *a.AccountID == accountID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) CountRecentFailures(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.attempts {
		if a.AccountID != nil && *a.AccountID == accountID && !a.Success && a.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeAttemptRepo) last() *model.LoginAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.attempts) == 0 {
		return nil
	}
	a := f.attempts[len(f.attempts)-1]
	return &a
}

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]model.RefreshToken
	byHash map[string]uuid.UUID
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{
		tokens: make(map[uuid.UUID]model.RefreshToken),
		byHash: make(map[string]uuid.UUID),
	}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token.ID] = *token
	f.byHash[token.TokenHash] = token.ID
	return nil
}

func (f *fakeRefreshRepo) GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byHash[tokenHash]
	if !ok {
		return model.RefreshToken{}, fmt.Errorf("refresh token: %w", repo.ErrNotFound)
	}
	return f.tokens[id], nil
}

func (f *fakeRefreshRepo) Rotate(ctx context.Context, oldID uuid.UUID, next *model.RefreshToken) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.tokens[oldID]
	if !ok || old.Revoked {
		return false, nil
	}
	old.Revoked = true
	old.SupersededBy = &next.ID
	f.tokens[oldID] = old
	f.tokens[next.ID] = *next
	f.byHash[next.TokenHash] = next.ID
	return true, nil
}

func (f *fakeRefreshRepo) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.tokens {
		if t.FamilyID == familyID {
			t.Revoked = true
			f.tokens[id] = t
		}
	}
	return nil
}

func (f *fakeRefreshRepo) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.tokens {
		if t.AccountID == accountID {
			t.Revoked = true
			f.tokens[id] = t
		}
	}
	return nil
}

func (f *fakeRefreshRepo) backdateExpiry(accountID uuid.UUID, expiresAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.tokens {
		if t.AccountID == accountID {
			t.ExpiresAt = expiresAt
			f.tokens[id] = t
		}
	}
}

func (f *fakeRefreshRepo) liveCountForAccount(accountID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.AccountID == accountID && !t.Revoked {
			n++
		}
	}
	return n
}
