package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/model"
	"github.com/quoteportal/server/internal/repo"
)

// Audit failure reasons. Internal detail only; handlers never echo these.
const (
	reasonUnknownEmail       = "unknown_email"
	reasonBadPassword        = "bad_password"
	reasonAccountPending     = "account_pending"
	reasonAccountSuspended   = "account_suspended"
	reasonAccountDeactivated = "account_deactivated"
	reasonDeviceMismatch     = "device_mismatch"
	reasonMissingFingerprint = "missing_fingerprint"
	reasonThrottled          = "throttled"
	reasonTokenInvalid       = "token_invalid"
	reasonTokenExpired       = "token_expired"
	reasonTokenReused        = "token_reused"
)

// RegisterInput is the input for Register
type RegisterInput struct {
	Role        model.Role
	Email       string
	Password    string
	Fingerprint string
	BrowserInfo string
	IP          string
}

// LoginInput is the input for Login
type LoginInput struct {
	Email       string
	Password    string
	Fingerprint string
	IP          string
	BrowserInfo string
}

// AuthResult carries the account and, when a session was established, the
// token pair.
type AuthResult struct {
	Account      model.Account
	AccessToken  string
	RefreshToken string
}

// Policy holds the portal-dependent knobs of the auth flow.
type Policy struct {
	SupplierBindOnFirstLogin bool
	RefreshTokenTTL          time.Duration
	LoginFailLimit           int
	LoginFailWindow          time.Duration
}

// AuthService orchestrates registration, login, refresh and logout. Every
// authentication attempt, successful or not, is recorded in the audit log
// before the outcome is returned.
type AuthService struct {
	accounts repo.AccountRepo
	creds    *CredentialStore
	bindings *DeviceBindingManager
	tokens   repo.RefreshRepo
	attempts repo.AttemptRepo
	jwt      *JWTService
	policy   Policy
}

// NewAuthService creates a new auth service
func NewAuthService(
	accounts repo.AccountRepo,
	creds *CredentialStore,
	bindings *DeviceBindingManager,
	tokens repo.RefreshRepo,
	attempts repo.AttemptRepo,
	jwtService *JWTService,
	policy Policy,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		creds:    creds,
		bindings: bindings,
		tokens:   tokens,
		attempts: attempts,
		jwt:      jwtService,
		policy:   policy,
	}
}

// Register creates an account and its credential. Customer accounts bind the
// supplied fingerprint immediately and receive a token pair; supplier
// accounts stay pending until first login (binding deferred to an external
// verification step completing).
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if !input.Role.Valid() || input.Role == model.RoleAdminEmployee {
		return nil, ErrForbidden
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	status := model.StatusActive
	if input.Role == model.RoleSupplier && s.policy.SupplierBindOnFirstLogin {
		status = model.StatusPending
	}

	account := &model.Account{
		ID:     uuid.New(),
		Role:   input.Role,
		Email:  email,
		Status: status,
	}
	cred, err := s.creds.NewCredential(account.ID, input.Password)
	if err != nil {
		return nil, err
	}
	// Account and credential are created together; one transaction, so no
	// account row ever exists without its credential.
	if err := s.accounts.CreateWithCredential(ctx, account, cred); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	result := &AuthResult{Account: *account}

	// Customer portal binds at registration and starts a session right away.
	if input.Role == model.RoleCustomer && input.Fingerprint != "" {
		bound, err := s.bindings.BindOrVerify(ctx, account.ID, input.Fingerprint, input.IP, input.BrowserInfo)
		if err != nil {
			return nil, err
		}
		access, refresh, err := s.issueTokens(ctx, *account, bound.Binding.ID)
		if err != nil {
			return nil, err
		}
		result.AccessToken = access
		result.RefreshToken = refresh
		s.record(ctx, &account.ID, true, nil, input.IP, input.Fingerprint, false)
	}

	log.Printf("account registered: role=%s email=%s", account.Role, maskEmail(account.Email))
	return result, nil
}

// Login runs the full authentication pipeline: status gate, throttle check,
// password verification, device bind-or-verify, token issuance. The audit row
// is written on every path.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Unknown email still logs an attempt, with no account attached.
			s.record(ctx, nil, false, strPtr(reasonUnknownEmail), input.IP, input.Fingerprint, false)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := CanAuthenticate(account, s.policy.SupplierBindOnFirstLogin); err != nil {
		s.record(ctx, &account.ID, false, strPtr(statusReason(err)), input.IP, input.Fingerprint, false)
		return nil, err
	}

	if err := s.checkThrottle(ctx, account.ID); err != nil {
		s.record(ctx, &account.ID, false, strPtr(reasonThrottled), input.IP, input.Fingerprint, false)
		return nil, err
	}

	ok, err := s.creds.Verify(ctx, account.ID, input.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.record(ctx, &account.ID, false, strPtr(reasonBadPassword), input.IP, input.Fingerprint, false)
		return nil, ErrInvalidCredentials
	}

	var bindingID uuid.UUID
	var ipMismatch bool
	if account.Role != model.RoleAdminEmployee {
		// Admin-employee sessions skip device binding entirely. Everyone else
		// must present a fingerprint: binding an empty one on first login
		// would lock the real device out until an admin reset.
		if input.Fingerprint == "" {
			s.record(ctx, &account.ID, false, strPtr(reasonMissingFingerprint), input.IP, input.Fingerprint, false)
			return nil, ErrFingerprintRequired
		}
		bound, err := s.bindings.BindOrVerify(ctx, account.ID, input.Fingerprint, input.IP, input.BrowserInfo)
		if err != nil {
			if errors.Is(err, ErrDeviceMismatch) {
				s.record(ctx, &account.ID, false, strPtr(reasonDeviceMismatch), input.IP, input.Fingerprint, false)
			}
			return nil, err
		}
		bindingID = bound.Binding.ID
		ipMismatch = bound.IPMismatch
	}

	// A pending supplier that just bound its first device becomes active.
	if account.Status == model.StatusPending {
		if _, err := s.accounts.UpdateStatus(ctx, account.ID, model.StatusPending, model.StatusActive, nil); err != nil {
			return nil, err
		}
		account.Status = model.StatusActive
	}

	access, refresh, err := s.issueTokens(ctx, account, bindingID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &account.ID, true, nil, input.IP, input.Fingerprint, ipMismatch)
	return &AuthResult{Account: account, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh rotates a refresh token and issues a fresh pair. Presenting an
// already-rotated token revokes the whole family and fails with
// ErrTokenReused; this is the reuse-detection path and is logged as a
// security event.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, fingerprint, ip string) (*AuthResult, error) {
	token, err := s.tokens.GetByHash(ctx, HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.record(ctx, nil, false, strPtr(reasonTokenInvalid), ip, fingerprint, false)
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	// The status gate runs before reuse detection: a suspended account gets
	// its specific reason even though the suspension revoked its tokens.
	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		return nil, err
	}
	if err := CanAuthenticate(account, s.policy.SupplierBindOnFirstLogin); err != nil {
		s.record(ctx, &account.ID, false, strPtr(statusReason(err)), ip, fingerprint, false)
		return nil, err
	}

	if token.Revoked {
		return nil, s.handleReuse(ctx, token, fingerprint, ip)
	}

	if time.Now().After(token.ExpiresAt) {
		s.record(ctx, &token.AccountID, false, strPtr(reasonTokenExpired), ip, fingerprint, false)
		return nil, ErrTokenExpired
	}

	var bindingID uuid.UUID
	if account.Role != model.RoleAdminEmployee {
		binding, err := s.bindings.VerifyOnly(ctx, account.ID, fingerprint)
		if err != nil {
			if errors.Is(err, ErrDeviceMismatch) {
				s.record(ctx, &account.ID, false, strPtr(reasonDeviceMismatch), ip, fingerprint, false)
			}
			return nil, err
		}
		bindingID = binding.ID
	}

	next, nextValue, err := s.buildRefreshToken(account.ID, token.FamilyID)
	if err != nil {
		return nil, err
	}
	rotated, err := s.tokens.Rotate(ctx, token.ID, next)
	if err != nil {
		return nil, err
	}
	if !rotated {
		// Lost a rotation race: the token was revoked between lookup and
		// update. Same treatment as reuse; clients re-authenticate.
		return nil, s.handleReuse(ctx, token, fingerprint, ip)
	}

	access, err := s.jwt.SignAccessToken(account.ID, account.Role, bindingID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &account.ID, true, nil, ip, fingerprint, false)
	return &AuthResult{Account: account, AccessToken: access, RefreshToken: nextValue}, nil
}

// Logout revokes the family of the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	token, err := s.tokens.GetByHash(ctx, HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	if err := s.tokens.RevokeFamily(ctx, token.FamilyID); err != nil {
		return fmt.Errorf("revoke family on logout: %w", err)
	}
	return nil
}

func (s *AuthService) handleReuse(ctx context.Context, token model.RefreshToken, fingerprint, ip string) error {
	if err := s.tokens.RevokeFamily(ctx, token.FamilyID); err != nil {
		return fmt.Errorf("revoke family on reuse: %w", err)
	}
	log.Printf("SECURITY: refresh token reuse detected account=%s family=%s ip=%s",
		token.AccountID, token.FamilyID, ip)
	s.record(ctx, &token.AccountID, false, strPtr(reasonTokenReused), ip, fingerprint, false)
	return ErrTokenReused
}

func (s *AuthService) issueTokens(ctx context.Context, account model.Account, bindingID uuid.UUID) (string, string, error) {
	access, err := s.jwt.SignAccessToken(account.ID, account.Role, bindingID)
	if err != nil {
		return "", "", err
	}
	// A login starts a new token family.
	token, value, err := s.buildRefreshToken(account.ID, uuid.New())
	if err != nil {
		return "", "", err
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", "", err
	}
	return access, value, nil
}

func (s *AuthService) buildRefreshToken(accountID, familyID uuid.UUID) (*model.RefreshToken, string, error) {
	value, hash, err := GenerateRefreshToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}
	now := time.Now()
	return &model.RefreshToken{
		ID:        uuid.New(),
		AccountID: accountID,
		FamilyID:  familyID,
		TokenHash: hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.policy.RefreshTokenTTL),
	}, value, nil
}

// checkThrottle rejects logins once the recent-failure count hits the limit.
// Surfaced as invalid credentials so the throttle itself leaks nothing.
func (s *AuthService) checkThrottle(ctx context.Context, accountID uuid.UUID) error {
	if s.policy.LoginFailLimit <= 0 {
		return nil
	}
	since := time.Now().Add(-s.policy.LoginFailWindow)
	count, err := s.attempts.CountRecentFailures(ctx, accountID, since)
	if err != nil {
		return fmt.Errorf("throttle check: %w", err)
	}
	if count >= s.policy.LoginFailLimit {
		return ErrInvalidCredentials
	}
	return nil
}

// record appends one audit row. Audit failures are logged, never propagated:
// an attempt that cannot be recorded must not turn into a different auth
// outcome.
func (s *AuthService) record(ctx context.Context, accountID *uuid.UUID, success bool, reason *string, ip, fingerprint string, ipMismatch bool) {
	attempt := &model.LoginAttempt{
		AccountID:         accountID,
		Success:           success,
		FailureReason:     reason,
		IPAddress:         ip,
		Fingerprint:       fingerprint,
		IPMismatchWarning: ipMismatch,
	}
	if err := s.attempts.Record(ctx, attempt); err != nil {
		log.Printf("warn: failed to record login attempt: %v", err)
	}
}

func statusReason(err error) string {
	switch {
	case errors.Is(err, ErrAccountSuspended):
		return reasonAccountSuspended
	case errors.Is(err, ErrAccountDeactivated):
		return reasonAccountDeactivated
	default:
		return reasonAccountPending
	}
}

func strPtr(s string) *string { return &s }

// maskEmail masks the local part of an email for logging (e.g. jo****@acme.com)
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 2 {
		return "****"
	}
	return email[:2] + strings.Repeat("*", at-2) + email[at:]
}
