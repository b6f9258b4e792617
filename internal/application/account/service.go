package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/eduretrieve-api/internal/application/session"
	"github.com/eduretrieve-api/internal/domain"
	"github.com/eduretrieve-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted for a new account.
const MinPasswordLength = 6

type Service interface {
	CreateAccount(ctx context.Context, acct domain.NewAccount) (*domain.User, error)
	CreateSession(ctx context.Context, email, password string) (*domain.AuthResult, error)
	Status(ctx context.Context, email string) (*domain.UserStatus, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	SyncProfile(ctx context.Context, userID string, req domain.SyncProfileRequest) (*domain.Profile, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateWithProfile(ctx context.Context, u *domain.User, p *domain.Profile) error
}

type profileStore interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
	Put(ctx context.Context, p *domain.Profile) error
}

type sessionStarter interface {
	Login(ctx context.Context, req session.LoginRequest) (*domain.AuthResult, error)
}

type ServiceDeps struct {
	UserRepo    userStore
	ProfileRepo profileStore
	Sessions    sessionStarter
	Now         func() time.Time // defaults to time.Now
}

type service struct {
	userRepo    userStore
	profileRepo profileStore
	sessions    sessionStarter
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		userRepo:    deps.UserRepo,
		profileRepo: deps.ProfileRepo,
		sessions:    deps.Sessions,
		now:         now,
	}
}

// CreateAccount creates a confirmed user and its profile row in one write.
func (s *service) CreateAccount(ctx context.Context, acct domain.NewAccount) (*domain.User, error) {
	email := domain.NormalizeEmail(acct.Email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrInvalidInput)
	}
	if len(acct.Password) < MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, domain.ErrInvalidInput)
	}

	_, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%s: %w", email, domain.ErrAccountExists)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", domain.ErrAccountCreation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAccountCreation, err)
	}

	now := s.now().UTC()
	u := &domain.User{
		UserID:         id.New(),
		Email:          email,
		PasswordHash:   string(hash),
		EmailConfirmed: acct.EmailConfirmed,
		AuthProvider:   domain.AuthProviderGoogle,
		GoogleID:       acct.Profile.ProviderID,
		Enable:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p := &domain.Profile{
		ID:             u.UserID,
		Email:          email,
		Username:       usernameFor(acct.Profile.GivenName, email),
		FullName:       acct.Profile.Name,
		AvatarURL:      acct.Profile.Picture,
		GoogleVerified: true,
		GoogleID:       acct.Profile.ProviderID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.userRepo.CreateWithProfile(ctx, u, p); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%s: %w", email, domain.ErrAccountExists)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAccountCreation, err)
	}
	return u, nil
}

func (s *service) CreateSession(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	return s.sessions.Login(ctx, session.LoginRequest{Email: email, Password: password})
}

// Status reports whether an account exists for email. Returns ErrNotFound when none does.
func (s *service) Status(ctx context.Context, email string) (*domain.UserStatus, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrInvalidInput)
	}
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	hasProfile := true
	if _, err := s.profileRepo.Get(ctx, u.UserID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		hasProfile = false
	}
	return &domain.UserStatus{
		Exists:         true,
		EmailConfirmed: u.EmailConfirmed,
		HasProfile:     hasProfile,
		UserID:         u.UserID,
		Email:          u.Email,
		CreatedAt:      u.CreatedAt,
		LastSignInAt:   u.LastSignInAt,
	}, nil
}

func (s *service) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.profileRepo.Get(ctx, userID)
}

// SyncProfile upserts the profile of userID. Each field falls back from the
// supplied value to the stored one, then to a value derived from the email.
func (s *service) SyncProfile(ctx context.Context, userID string, req domain.SyncProfileRequest) (*domain.Profile, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	existing, err := s.profileRepo.Get(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	p := &domain.Profile{
		ID:             u.UserID,
		Email:          u.Email,
		GoogleVerified: u.AuthProvider == domain.AuthProviderGoogle,
		GoogleID:       u.GoogleID,
		CreatedAt:      now,
	}
	if existing != nil {
		*p = *existing
		p.Email = u.Email
	}
	p.UpdatedAt = now

	p.FullName = firstNonEmpty(deref(req.FullName), p.FullName, nameFromEmail(u.Email))
	p.AvatarURL = firstNonEmpty(deref(req.AvatarURL), p.AvatarURL)
	p.Username = firstNonEmpty(p.Username, localPart(u.Email))

	if err := s.profileRepo.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func usernameFor(givenName, email string) string {
	return firstNonEmpty(strings.TrimSpace(givenName), localPart(email))
}

func localPart(email string) string {
	if at := strings.IndexByte(email, '@'); at >= 0 {
		return email[:at]
	}
	return email
}

// nameFromEmail turns "ada.lovelace@x" into "Ada Lovelace".
func nameFromEmail(email string) string {
	words := strings.FieldsFunc(localPart(email), func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
