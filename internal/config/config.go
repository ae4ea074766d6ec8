package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	JWTSecret   string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	PasswordMinLength      int
	PasswordRequireClasses bool

	// SupplierBindOnFirstLogin defers device binding for supplier accounts
	// from registration to the first successful login. Customer accounts
	// always bind at registration.
	SupplierBindOnFirstLogin bool

	LoginFailLimit  int
	LoginFailWindow time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                     "8080",
		AccessTokenTTL:           15 * time.Minute,
		RefreshTokenTTL:          30 * 24 * time.Hour,
		PasswordMinLength:        10,
		PasswordRequireClasses:   true,
		SupplierBindOnFirstLogin: true,
		LoginFailLimit:           5,
		LoginFailWindow:          15 * time.Minute,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if v, err := intEnv("ACCESS_TOKEN_TTL_MIN"); err != nil {
		return nil, err
	} else if v > 0 {
		cfg.AccessTokenTTL = time.Duration(v) * time.Minute
	}

	if v, err := intEnv("REFRESH_TOKEN_TTL_HOURS"); err != nil {
		return nil, err
	} else if v > 0 {
		cfg.RefreshTokenTTL = time.Duration(v) * time.Hour
	}

	if v, err := intEnv("PASSWORD_MIN_LENGTH"); err != nil {
		return nil, err
	} else if v > 0 {
		cfg.PasswordMinLength = v
	}

	if v := os.Getenv("PASSWORD_REQUIRE_CLASSES"); v != "" {
		cfg.PasswordRequireClasses = v == "true"
	}

	if v := os.Getenv("SUPPLIER_BIND_ON_FIRST_LOGIN"); v != "" {
		cfg.SupplierBindOnFirstLogin = v == "true"
	}

	if v, err := intEnv("LOGIN_FAIL_LIMIT"); err != nil {
		return nil, err
	} else if v > 0 {
		cfg.LoginFailLimit = v
	}

	if v, err := intEnv("LOGIN_FAIL_WINDOW_MIN"); err != nil {
		return nil, err
	} else if v > 0 {
		cfg.LoginFailWindow = time.Duration(v) * time.Minute
	}

	return cfg, nil
}

// intEnv parses an optional integer environment variable. Returns 0 when the
// variable is unset.
func intEnv(name string) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}
