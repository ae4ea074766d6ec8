package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/quoteportal/server/internal/auth"
	"github.com/quoteportal/server/internal/middleware"
	"github.com/quoteportal/server/internal/model"
)

// AuthHandler handles the public authentication endpoints
type AuthHandler struct {
	authService   *auth.AuthService
	loginLimiter  *middleware.RateLimiter
	signupLimiter *middleware.RateLimiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.AuthService) *AuthHandler {
	// Per-IP limits; account-level throttling is DB-based in the service.
	return &AuthHandler{
		authService:   authService,
		loginLimiter:  middleware.NewRateLimiter(10*time.Minute, 20),
		signupLimiter: middleware.NewRateLimiter(10*time.Minute, 10),
	}
}

// registerRequest is the request body for POST /auth/register
type registerRequest struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Fingerprint string `json:"fingerprint,omitempty"`
	BrowserInfo string `json:"browser_info,omitempty"`
}

// accountResponse is the account object in API responses
type accountResponse struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// authResponse is the JSON response for register/login/refresh
type authResponse struct {
	AccessToken  string           `json:"access_token,omitempty"`
	RefreshToken string           `json:"refresh_token,omitempty"`
	TokenType    string           `json:"token_type,omitempty"`
	Account      *accountResponse `json:"account,omitempty"`
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" || req.Role == "" {
		respondWithError(w, http.StatusBadRequest, "role, email and password are required")
		return
	}

	if !h.signupLimiter.Allow(middleware.IPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	result, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Role:        model.Role(req.Role),
		Email:       req.Email,
		Password:    req.Password,
		Fingerprint: strings.TrimSpace(req.Fingerprint),
		BrowserInfo: req.BrowserInfo,
		IP:          clientIP(r),
	})
	if err != nil {
		writeAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toAuthResponse(result))
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Fingerprint string `json:"fingerprint"`
	BrowserInfo string `json:"browser_info,omitempty"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Fingerprint = strings.TrimSpace(req.Fingerprint)
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if !h.loginLimiter.Allow(middleware.IPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	result, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:       req.Email,
		Password:    req.Password,
		Fingerprint: req.Fingerprint,
		IP:          clientIP(r),
		BrowserInfo: req.BrowserInfo,
	})
	if err != nil {
		writeAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAuthResponse(result))
}

// refreshRequest is the request body for POST /auth/refresh
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Fingerprint  string `json:"fingerprint"`
}

// HandleRefresh handles POST /auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken, strings.TrimSpace(req.Fingerprint), clientIP(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAuthResponse(result))
}

// logoutRequest is the request body for POST /auth/logout
type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		respondWithError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe handles GET /me (protected). Returns the authenticated account.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok || account == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, toAccountResponse(*account))
}

func toAuthResponse(result *auth.AuthResult) authResponse {
	resp := authResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}
	if result.AccessToken != "" {
		resp.TokenType = "bearer"
	}
	acc := toAccountResponse(result.Account)
	resp.Account = &acc
	return resp
}

func toAccountResponse(account model.Account) accountResponse {
	return accountResponse{
		ID:     account.ID.String(),
		Role:   string(account.Role),
		Email:  account.Email,
		Status: string(account.Status),
	}
}

// writeAuthError translates typed service failures into minimal external
// messages. Wrong email and wrong password share one message; device
// mismatch and account holds get their user-visible reasons.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrAccountSuspended):
		respondWithError(w, http.StatusForbidden, "account suspended")
	case errors.Is(err, auth.ErrAccountDeactivated):
		respondWithError(w, http.StatusForbidden, "account deactivated")
	case errors.Is(err, auth.ErrDeviceMismatch):
		respondWithError(w, http.StatusForbidden, "unrecognized device")
	case errors.Is(err, auth.ErrFingerprintRequired):
		respondWithError(w, http.StatusBadRequest, "fingerprint is required")
	case errors.Is(err, auth.ErrTokenReused):
		respondWithError(w, http.StatusUnauthorized, "refresh_token_reuse_detected")
	case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenInvalid):
		respondWithError(w, http.StatusUnauthorized, "invalid or expired refresh token")
	case errors.Is(err, auth.ErrWeakPassword):
		respondWithError(w, http.StatusBadRequest, "password does not meet policy")
	case errors.Is(err, auth.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, "email already in use")
	case errors.Is(err, auth.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "forbidden")
	default:
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondJSON writes a JSON response with the given status
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}
	return r.RemoteAddr
}
