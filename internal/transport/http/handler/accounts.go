package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/eduretrieve-api/internal/application/account"
	"github.com/eduretrieve-api/internal/domain"
	"github.com/eduretrieve-api/internal/pkg/validate"
	"github.com/eduretrieve-api/internal/transport/http/middleware"
)

type StatusUser struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastSignInAt *time.Time `json:"lastSignInAt"`
}

type UserStatusEnvelope struct {
	domain.UserStatus
	User  *StatusUser `json:"user,omitempty"`
	Error string      `json:"error,omitempty"`
}

type ProfileEnvelope struct {
	Message string          `json:"message,omitempty"`
	Profile *domain.Profile `json:"profile"`
}

// AccountHandler handles account lookup and profile endpoints.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler {
	return &AccountHandler{svc: svc}
}

func (h *AccountHandler) CheckUserStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	st, err := h.svc.Status(r.Context(), req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, UserStatusEnvelope{Error: "No account found with this email"})
		return
	}
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserStatusEnvelope{
		UserStatus: *st,
		User: &StatusUser{
			ID:           st.UserID,
			Email:        st.Email,
			CreatedAt:    st.CreatedAt,
			LastSignInAt: st.LastSignInAt,
		},
	})
}

func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	p, err := h.svc.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{Profile: p})
}

func (h *AccountHandler) SyncProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.SyncProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.svc.SyncProfile(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	msg := "Profile updated successfully"
	if p.CreatedAt.Equal(p.UpdatedAt) {
		msg = "Profile created successfully"
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{Message: msg, Profile: p})
}
