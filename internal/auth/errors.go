package auth

import "errors"

// Typed failures returned by the auth services. Handlers translate these into
// minimal external messages; wrong-email and wrong-password are deliberately
// indistinguishable from the outside.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountSuspended    = errors.New("account suspended")
	ErrAccountDeactivated  = errors.New("account deactivated")
	ErrDeviceMismatch      = errors.New("device fingerprint mismatch")
	ErrFingerprintRequired = errors.New("device fingerprint required")
	ErrTokenExpired        = errors.New("refresh token expired")
	ErrTokenInvalid        = errors.New("refresh token invalid")
	ErrTokenReused         = errors.New("refresh token reuse detected")
	ErrWeakPassword        = errors.New("password does not meet policy")
	ErrEmailTaken          = errors.New("email already in use")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid status transition")
)
