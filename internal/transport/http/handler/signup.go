package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/eduretrieve-api/internal/application/signup"
	"github.com/eduretrieve-api/internal/domain"
	"github.com/eduretrieve-api/internal/pkg/validate"
	"github.com/go-chi/chi/v5"
)

const (
	msgConsentRedirect = "Redirect to Google for authorization"
	msgCallbackOK      = "Google verification successful. Check your email for the final verification code."
	msgSignupComplete  = "Signup completed successfully!"
)

type initiateRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type callbackRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state" validate:"required"`
}

type verifyCodeRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type checkStatusRequest struct {
	Email string `json:"email" validate:"required"`
}

type InitiateEnvelope struct {
	Message string `json:"message"`
	AuthURL string `json:"authUrl"`
	Email   string `json:"email"`
}

type CallbackEnvelope struct {
	Message        string    `json:"message"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	GoogleVerified bool      `json:"googleVerified"`
	CodeExpires    time.Time `json:"codeExpires"`
}

type SignupUser struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"fullName"`
	Avatar         string `json:"avatar"`
	GoogleVerified bool   `json:"googleVerified"`
}

type VerifyEnvelope struct {
	Message string        `json:"message"`
	User    SignupUser    `json:"user"`
	Session *AuthEnvelope `json:"session"`
}

// VerificationStatusEnvelope answers check-status. HasVerification is false on
// every failure so clients can branch on it without reading the status code.
type VerificationStatusEnvelope struct {
	HasVerification bool       `json:"hasVerification"`
	Email           string     `json:"email,omitempty"`
	Name            string     `json:"name,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	TimeRemainingMs int64      `json:"timeRemainingMs"`
	Message         string     `json:"message,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// SignupHandler handles the Google-then-email-code signup flow.
type SignupHandler struct {
	svc signup.Service
}

func NewSignupHandler(svc signup.Service) *SignupHandler {
	return &SignupHandler{svc: svc}
}

func (h *SignupHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "initiate":
		h.initiate(w, r)
	case "callback":
		h.callback(w, r)
	case "verify-code":
		h.verifyCode(w, r)
	case "check-status":
		h.checkStatus(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *SignupHandler) initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	res, err := h.svc.Initiate(r.Context(), req.Email)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InitiateEnvelope{Message: msgConsentRedirect, AuthURL: res.AuthURL, Email: res.Email})
}

func (h *SignupHandler) callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "authorization code and state are required")
		return
	}
	res, err := h.svc.Callback(r.Context(), req.Code, req.State)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CallbackEnvelope{
		Message:        msgCallbackOK,
		Email:          res.Email,
		Name:           res.Name,
		GoogleVerified: true,
		CodeExpires:    res.ExpiresAt.UTC(),
	})
}

func (h *SignupHandler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email, verification code, and password are required")
		return
	}
	res, err := h.svc.VerifyCode(r.Context(), req.Email, req.Code, req.Password)
	if err != nil {
		// verify-code reports a missing or stale record as 400; the client restarts signup.
		status := statusFor(err)
		if errors.Is(err, domain.ErrVerificationNotFound) || errors.Is(err, domain.ErrVerificationExpired) {
			status = http.StatusBadRequest
		}
		writeErrorStatus(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{
		Message: msgSignupComplete,
		User:    toSignupUser(res),
		Session: toAuthEnvelope(res.Auth),
	})
}

func (h *SignupHandler) checkStatus(w http.ResponseWriter, r *http.Request) {
	var req checkStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	res, err := h.svc.CheckStatus(r.Context(), req.Email)
	switch {
	case errors.Is(err, domain.ErrVerificationNotFound):
		writeJSON(w, http.StatusNotFound, VerificationStatusEnvelope{
			Message: "No pending verification found",
			Error:   err.Error(),
		})
		return
	case errors.Is(err, domain.ErrVerificationExpired):
		writeJSON(w, http.StatusGone, VerificationStatusEnvelope{
			Message: "Verification expired",
			Error:   err.Error(),
		})
		return
	case err != nil:
		httpError(w, err)
		return
	}
	exp := res.ExpiresAt.UTC()
	writeJSON(w, http.StatusOK, VerificationStatusEnvelope{
		HasVerification: true,
		Email:           res.Email,
		Name:            res.Name,
		ExpiresAt:       &exp,
		TimeRemainingMs: res.TimeRemaining.Milliseconds(),
	})
}

func toSignupUser(res *signup.VerifyResult) SignupUser {
	u := SignupUser{
		FullName:       res.Profile.Name,
		Avatar:         res.Profile.Picture,
		GoogleVerified: true,
	}
	if res.User != nil {
		u.ID = res.User.UserID
		u.Email = res.User.Email
	}
	if u.Email == "" {
		u.Email = res.Profile.Email
	}
	return u
}
