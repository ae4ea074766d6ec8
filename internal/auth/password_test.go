package auth

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestHashPassword_deterministicPerSalt(t *testing.T) {
	salt := []byte("0123456789abcdef")
	h1 := hashPassword("secret-password-1", salt)
	h2 := hashPassword("secret-password-1", salt)
	if !bytes.Equal(h1, h2) {
		t.Error("hash should be deterministic for the same salt")
	}
	if len(h1) != argonKeyLen {
		t.Errorf("expected %d-byte key, got %d", argonKeyLen, len(h1))
	}
	h3 := hashPassword("secret-password-1", []byte("fedcba9876543210"))
	if bytes.Equal(h1, h3) {
		t.Error("different salts should produce different hashes")
	}
	h4 := hashPassword("secret-password-2", salt)
	if bytes.Equal(h1, h4) {
		t.Error("different passwords should produce different hashes")
	}
}

func TestPasswordPolicy(t *testing.T) {
	policy := PasswordPolicy{MinLength: 8, RequireClasses: true}

	cases := []struct {
		password string
		ok       bool
	}{
		{"short1", false},
		{"onlyletters", false},
		{"12345678901", false},
		{"letters4nd1", true},
		{"Abcdefg9", true},
	}
	for _, tc := range cases {
		err := policy.Check(tc.password)
		if tc.ok && err != nil {
			t.Errorf("Check(%q) = %v, want nil", tc.password, err)
		}
		if !tc.ok && !errors.Is(err, ErrWeakPassword) {
			t.Errorf("Check(%q) = %v, want ErrWeakPassword", tc.password, err)
		}
	}

	lax := PasswordPolicy{MinLength: 4}
	if err := lax.Check("aaaa"); err != nil {
		t.Errorf("class requirement should be off when RequireClasses is false: %v", err)
	}
}

func TestCredentialStoreVerify(t *testing.T) {
	creds := newFakeCredentialRepo()
	store := NewCredentialStore(creds, PasswordPolicy{MinLength: 8, RequireClasses: true})
	ctx := context.Background()
	accountID := uuid.New()

	if err := store.Create(ctx, accountID, "hunterhunterhunt"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("all-letter password should fail policy, got %v", err)
	}
	if err := store.Create(ctx, accountID, "hunter2hunter2x9"); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := store.Verify(ctx, accountID, "hunter2hunter2x9")
	if err != nil || !ok {
		t.Fatalf("correct password must verify, ok=%v err=%v", ok, err)
	}
	ok, err = store.Verify(ctx, accountID, "wrong-password-9")
	if err != nil || ok {
		t.Fatalf("wrong password must not verify, ok=%v err=%v", ok, err)
	}

	// Unknown account verifies as false, not as an error.
	ok, err = store.Verify(ctx, uuid.New(), "whatever-pass-1")
	if err != nil {
		t.Fatalf("unknown account must not error: %v", err)
	}
	if ok {
		t.Error("unknown account must not verify")
	}
}

func TestCredentialStoreChangePassword(t *testing.T) {
	creds := newFakeCredentialRepo()
	store := NewCredentialStore(creds, PasswordPolicy{MinLength: 8, RequireClasses: true})
	ctx := context.Background()
	accountID := uuid.New()

	if err := store.Create(ctx, accountID, "original-pass-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.ChangePassword(ctx, accountID, "wrong-old-pass1", "replacement-pass-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong old password must be rejected, got %v", err)
	}
	if err := store.ChangePassword(ctx, accountID, "original-pass-1", "tiny1"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak new password must be rejected, got %v", err)
	}

	before, _ := creds.GetByAccountID(ctx, accountID)
	if err := store.ChangePassword(ctx, accountID, "original-pass-1", "replacement-pass-1"); err != nil {
		t.Fatalf("change: %v", err)
	}
	after, _ := creds.GetByAccountID(ctx, accountID)
	if bytes.Equal(before.Salt, after.Salt) {
		t.Error("password change must generate a fresh salt")
	}

	ok, _ := store.Verify(ctx, accountID, "replacement-pass-1")
	if !ok {
		t.Error("new password must verify after change")
	}
	ok, _ = store.Verify(ctx, accountID, "original-pass-1")
	if ok {
		t.Error("old password must stop verifying after change")
	}
}
