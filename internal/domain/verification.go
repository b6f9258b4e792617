package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// VerificationTTL is how long an emailed signup code stays usable.
const VerificationTTL = 10 * time.Minute

// Action tags what a pending verification will unlock once the code is confirmed.
type Action string

const (
	ActionSignup Action = "signup"
)

// ParseAction returns the Action named by s or ErrInvalidState when it is unknown.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionSignup:
		return ActionSignup, nil
	default:
		return "", fmt.Errorf("unknown action %q: %w", s, ErrInvalidState)
	}
}

func (a Action) String() string { return string(a) }

// ConsentState is carried through the provider round trip in the OAuth state parameter.
type ConsentState struct {
	Email  string `json:"email"`
	Action Action `json:"action"`
}

// Encode renders the state as the JSON string placed in the consent URL.
func (s ConsentState) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeConsentState parses a state value returned by the provider.
// Malformed JSON, a missing email or an unknown action yield ErrInvalidState.
func DecodeConsentState(raw string) (*ConsentState, error) {
	var s struct {
		Email  string `json:"email"`
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("malformed state: %w", ErrInvalidState)
	}
	if strings.TrimSpace(s.Email) == "" {
		return nil, fmt.Errorf("state has no email: %w", ErrInvalidState)
	}
	action, err := ParseAction(s.Action)
	if err != nil {
		return nil, err
	}
	return &ConsentState{Email: s.Email, Action: action}, nil
}

// IdentityProfile holds the profile fields returned by the identity provider.
type IdentityProfile struct {
	ProviderID    string `json:"provider_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// PendingVerification links a confirmed Google login to the code emailed to its owner.
// Keyed by Email; at most one per email.
type PendingVerification struct {
	Email     string          `json:"email"`
	Code      string          `json:"code"`
	Action    Action          `json:"action"`
	Profile   IdentityProfile `json:"profile"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the record is no longer actionable at now.
func (v *PendingVerification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// TimeRemaining returns the time left before expiry, never negative.
func (v *PendingVerification) TimeRemaining(now time.Time) time.Duration {
	if d := v.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// NormalizeEmail lowercases and trims an address so it can be used as a store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
