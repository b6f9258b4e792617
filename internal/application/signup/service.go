package signup

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eduretrieve-api/internal/domain"
	pkgtoken "github.com/eduretrieve-api/internal/pkg/token"
	"golang.org/x/oauth2"
)

const codeDigits = 6

// Signup steps, used as metric labels.
const (
	StepInitiate    = "initiate"
	StepCallback    = "callback"
	StepVerifyCode  = "verify_code"
	StepCheckStatus = "check_status"
)

type InitiateResult struct {
	AuthURL string
	Email   string
}

type CallbackResult struct {
	Email     string
	Name      string
	ExpiresAt time.Time
}

type VerifyResult struct {
	User    *domain.User
	Profile domain.IdentityProfile
	Auth    *domain.AuthResult
}

type StatusResult struct {
	Email         string
	Name          string
	ExpiresAt     time.Time
	TimeRemaining time.Duration
}

// Service drives a signup through Google consent, the emailed code and account
// creation. The state of a signup is inferred from its pending verification.
type Service interface {
	Initiate(ctx context.Context, email string) (*InitiateResult, error)
	Callback(ctx context.Context, code, state string) (*CallbackResult, error)
	VerifyCode(ctx context.Context, email, code, password string) (*VerifyResult, error)
	CheckStatus(ctx context.Context, email string) (*StatusResult, error)
}

// VerificationStore holds at most one pending verification per email.
// Get returns ErrVerificationNotFound when absent and ErrVerificationExpired
// (removing the record) once it has expired.
type VerificationStore interface {
	Put(ctx context.Context, v *domain.PendingVerification) error
	Get(ctx context.Context, email string) (*domain.PendingVerification, error)
	Delete(ctx context.Context, email string) error
}

type OAuthExchanger interface {
	BuildConsentURL(email string, action domain.Action) (string, error)
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, tok *oauth2.Token) (*domain.IdentityProfile, error)
}

type AccountStore interface {
	CreateAccount(ctx context.Context, acct domain.NewAccount) (*domain.User, error)
	CreateSession(ctx context.Context, email, password string) (*domain.AuthResult, error)
}

type Dispatcher interface {
	SendVerificationCode(ctx context.Context, v *domain.PendingVerification)
}

type stepRecorder interface {
	RecordStep(step, outcome string)
}

type ServiceDeps struct {
	Store      VerificationStore
	Exchanger  OAuthExchanger
	Accounts   AccountStore
	Dispatcher Dispatcher
	Metrics    stepRecorder           // optional
	Now        func() time.Time       // defaults to time.Now
	NewCode    func() (string, error) // defaults to a crypto/rand 6-digit code
}

type service struct {
	store      VerificationStore
	exchanger  OAuthExchanger
	accounts   AccountStore
	dispatcher Dispatcher
	metrics    stepRecorder
	now        func() time.Time
	newCode    func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:      deps.Store,
		exchanger:  deps.Exchanger,
		accounts:   deps.Accounts,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		now:        deps.Now,
		newCode:    deps.NewCode,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newCode == nil {
		s.newCode = func() (string, error) { return pkgtoken.NewNumericCode(codeDigits) }
	}
	return s
}

func (s *service) Initiate(ctx context.Context, email string) (res *InitiateResult, err error) {
	defer func() { s.record(StepInitiate, err) }()

	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrInvalidInput)
	}
	authURL, err := s.exchanger.BuildConsentURL(email, domain.ActionSignup)
	if err != nil {
		return nil, err
	}
	return &InitiateResult{AuthURL: authURL, Email: email}, nil
}

func (s *service) Callback(ctx context.Context, code, state string) (res *CallbackResult, err error) {
	defer func() { s.record(StepCallback, err) }()

	if strings.TrimSpace(code) == "" || strings.TrimSpace(state) == "" {
		return nil, fmt.Errorf("authorization code and state are required: %w", domain.ErrInvalidInput)
	}
	cs, err := domain.DecodeConsentState(state)
	if err != nil {
		return nil, err
	}
	expected := domain.NormalizeEmail(cs.Email)

	tok, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	profile, err := s.exchanger.FetchProfile(ctx, tok)
	if err != nil {
		return nil, err
	}

	got := domain.NormalizeEmail(profile.Email)
	if got != expected {
		return nil, fmt.Errorf("%w: signed in as %s but signup started for %s", domain.ErrEmailMismatch, got, expected)
	}
	if !profile.EmailVerified {
		return nil, fmt.Errorf("%s: %w", got, domain.ErrUnverifiedEmail)
	}

	verificationCode, err := s.newCode()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}
	now := s.now().UTC()
	p := *profile
	p.Email = expected
	v := &domain.PendingVerification{
		Email:     expected,
		Code:      verificationCode,
		Action:    cs.Action,
		Profile:   p,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.VerificationTTL),
	}
	if err := s.store.Put(ctx, v); err != nil {
		return nil, fmt.Errorf("store verification: %w", err)
	}

	s.dispatcher.SendVerificationCode(ctx, v)

	return &CallbackResult{Email: v.Email, Name: p.Name, ExpiresAt: v.ExpiresAt}, nil
}

func (s *service) VerifyCode(ctx context.Context, email, code, password string) (res *VerifyResult, err error) {
	defer func() { s.record(StepVerifyCode, err) }()

	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" || password == "" {
		return nil, fmt.Errorf("email, code and password are required: %w", domain.ErrInvalidInput)
	}

	v, err := s.store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(code)) != 1 {
		return nil, fmt.Errorf("%s: %w", email, domain.ErrInvalidCode)
	}

	var auth *domain.AuthResult
	user, err := s.accounts.CreateAccount(ctx, domain.NewAccount{
		Email:          email,
		Password:       password,
		EmailConfirmed: true,
		Profile:        v.Profile,
	})
	switch {
	case errors.Is(err, domain.ErrAccountExists):
		// A retry after a partial failure: the account was created earlier.
		// Completing requires the password it was created with.
		auth, err = s.accounts.CreateSession(ctx, email, password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", email, domain.ErrAccountExists)
		}
	case err != nil:
		return nil, err
	default:
		auth, err = s.accounts.CreateSession(ctx, email, password)
		if err != nil {
			return nil, fmt.Errorf("sign in new account: %w", err)
		}
	}

	if err := s.store.Delete(ctx, email); err != nil {
		slog.WarnContext(ctx, "failed to delete used verification", "email", email, "err", err)
	}
	if user == nil && auth.Session != nil {
		user = auth.Session.User
	}
	return &VerifyResult{User: user, Profile: v.Profile, Auth: auth}, nil
}

func (s *service) CheckStatus(ctx context.Context, email string) (res *StatusResult, err error) {
	defer func() { s.record(StepCheckStatus, err) }()

	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrInvalidInput)
	}
	v, err := s.store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		Email:         v.Email,
		Name:          v.Profile.Name,
		ExpiresAt:     v.ExpiresAt,
		TimeRemaining: v.TimeRemaining(s.now()),
	}, nil
}

func (s *service) record(step string, err error) {
	if s.metrics != nil {
		s.metrics.RecordStep(step, Outcome(err))
	}
}

// Outcome names the result of a step for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrTokenExchange):
		return "token_exchange"
	case errors.Is(err, domain.ErrProfileFetch):
		return "profile_fetch"
	case errors.Is(err, domain.ErrEmailMismatch):
		return "email_mismatch"
	case errors.Is(err, domain.ErrUnverifiedEmail):
		return "unverified_email"
	case errors.Is(err, domain.ErrVerificationNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrVerificationExpired):
		return "expired"
	case errors.Is(err, domain.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, domain.ErrAccountExists):
		return "account_exists"
	case errors.Is(err, domain.ErrAccountCreation):
		return "account_creation"
	default:
		return "error"
	}
}
