package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/quoteportal/server/internal/auth"
	"github.com/quoteportal/server/internal/model"
	"github.com/quoteportal/server/internal/repo"
)

// AdminHandler handles the admin-portal override endpoints
type AdminHandler struct {
	adminService *auth.AdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *auth.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// reasonRequest is the shared request body for suspend/reactivate/reset
type reasonRequest struct {
	Reason string `json:"reason"`
}

// HandleSuspend handles POST /admin/accounts/{id}/suspend
func (h *AdminHandler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	accountID, req, ok := h.parseOverride(w, r)
	if !ok {
		return
	}
	if err := h.adminService.Suspend(r.Context(), accountID, req.Reason); err != nil {
		writeAdminError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(model.StatusSuspended)})
}

// HandleReactivate handles POST /admin/accounts/{id}/reactivate
func (h *AdminHandler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	accountID, req, ok := h.parseOverride(w, r)
	if !ok {
		return
	}
	if err := h.adminService.Reactivate(r.Context(), accountID, req.Reason); err != nil {
		writeAdminError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(model.StatusActive)})
}

// HandleDeactivate handles POST /admin/accounts/{id}/deactivate
func (h *AdminHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	accountID, req, ok := h.parseOverride(w, r)
	if !ok {
		return
	}
	if err := h.adminService.Deactivate(r.Context(), accountID, req.Reason); err != nil {
		writeAdminError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(model.StatusDeactivated)})
}

// HandleResetDevice handles POST /admin/accounts/{id}/reset-device
func (h *AdminHandler) HandleResetDevice(w http.ResponseWriter, r *http.Request) {
	accountID, req, ok := h.parseOverride(w, r)
	if !ok {
		return
	}
	if err := h.adminService.ResetDeviceBinding(r.Context(), accountID, req.Reason); err != nil {
		writeAdminError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "device binding reset"})
}

// loginAttemptResponse is one row of the login history
type loginAttemptResponse struct {
	Time              time.Time `json:"time"`
	Success           bool      `json:"success"`
	FailureReason     *string   `json:"failure_reason,omitempty"`
	IPAddress         string    `json:"ip_address"`
	Fingerprint       string    `json:"fingerprint"`
	IPMismatchWarning bool      `json:"ip_mismatch_warning"`
}

// HandleLoginHistory handles GET /admin/accounts/{id}/login-history
func (h *AdminHandler) HandleLoginHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	attempts, err := h.adminService.LoginHistory(r.Context(), accountID, limit)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	out := make([]loginAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, loginAttemptResponse{
			Time:              a.CreatedAt,
			Success:           a.Success,
			FailureReason:     a.FailureReason,
			IPAddress:         a.IPAddress,
			Fingerprint:       a.Fingerprint,
			IPMismatchWarning: a.IPMismatchWarning,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"attempts": out})
}

func (h *AdminHandler) parseOverride(w http.ResponseWriter, r *http.Request) (uuid.UUID, reasonRequest, bool) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid account id")
		return uuid.Nil, reasonRequest{}, false
	}
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return uuid.Nil, reasonRequest{}, false
	}
	return accountID, req, true
}

func writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, auth.ErrInvalidTransition):
		respondWithError(w, http.StatusConflict, "invalid status transition")
	default:
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
