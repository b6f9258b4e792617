package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eduretrieve-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SafeUser is the subset of a user that leaves the API.
type SafeUser struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	EmailConfirmed bool       `json:"email_confirmed"`
	AuthProvider   string     `json:"auth_provider,omitempty"`
	LastSignInAt   *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt      time.Time  `json:"created"`
}

// SafeSession omits the refresh token, which is only returned once at issue time.
type SafeSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Enable    bool      `json:"enable"`
	CreatedAt time.Time `json:"created"`
}

// AuthEnvelope wraps login, refresh and signup session responses.
type AuthEnvelope struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	Session      *SafeSession `json:"session,omitempty"`
	User         *SafeUser    `json:"user,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *SafeSession `json:"session,omitempty"`
	User    *SafeUser    `json:"user,omitempty"`
}

func toSafeUser(u *domain.User) *SafeUser {
	if u == nil {
		return nil
	}
	return &SafeUser{
		ID:             u.UserID,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmed,
		AuthProvider:   u.AuthProvider,
		LastSignInAt:   u.LastSignInAt,
		CreatedAt:      u.CreatedAt,
	}
}

func toSafeSession(s *domain.Session) *SafeSession {
	if s == nil {
		return nil
	}
	return &SafeSession{
		ID:        s.SessionID,
		UserID:    s.UserID,
		Enable:    s.Enable,
		CreatedAt: s.CreatedAt,
	}
}

func toAuthEnvelope(res *domain.AuthResult) *AuthEnvelope {
	if res == nil {
		return nil
	}
	env := &AuthEnvelope{
		AccessToken:  res.Bearer,
		RefreshToken: res.RefreshToken,
		Session:      toSafeSession(res.Session),
	}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt
		env.ExpiresAt = &exp
	}
	if res.Session != nil {
		env.User = toSafeUser(res.Session.User)
	}
	return env
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// statusFor maps a domain error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrEmailMismatch),
		errors.Is(err, domain.ErrUnverifiedEmail),
		errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrAccountExists):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrVerificationNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrVerificationExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// httpError writes err with the status statusFor picks. Errors that fall through
// to 500 are logged, and only the signup upstream sentinels keep their message.
func httpError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, statusFor(err), err)
}

func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
		if !errors.Is(err, domain.ErrTokenExchange) &&
			!errors.Is(err, domain.ErrProfileFetch) &&
			!errors.Is(err, domain.ErrAccountCreation) {
			writeError(w, status, "internal server error")
			return
		}
	}
	writeError(w, status, err.Error())
}
