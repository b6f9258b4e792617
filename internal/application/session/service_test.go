package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eduretrieve-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) TouchSignIn(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error {
	return m.Called(ctx, sessionID, newToken, newExpiry).Error(0)
}
func (m *mockSessionStore) Disable(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, email, sessionID string) (string, time.Time, error) {
	args := m.Called(userID, email, sessionID)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

// --- helpers ---

var fixedNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func newSvc(us *mockUserStore, ss *mockSessionStore, jwt *mockJWTSigner) Service {
	return NewService(ServiceDeps{
		UserRepo:        us,
		SessionRepo:     ss,
		JWTProvider:     jwt,
		RefreshTokenDur: 24 * time.Hour,
		Now:             func() time.Time { return fixedNow },
	})
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	us, ss, jwt := new(mockUserStore), new(mockSessionStore), new(mockJWTSigner)
	u := &domain.User{UserID: "u1", Email: "ada@example.com", PasswordHash: hashed(t, "s3cret!"), Enable: true}

	us.On("GetByEmail", mock.Anything, "ada@example.com").Return(u, nil)
	ss.On("Put", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.UserID == "u1" && s.Enable && s.RefreshExpiresAt == fixedNow.Add(24*time.Hour).Unix()
	})).Return(nil)
	jwt.On("Sign", "u1", "ada@example.com", mock.Anything).Return("bearer-token", fixedNow.Add(time.Hour), nil)
	us.On("TouchSignIn", mock.Anything, "u1", fixedNow).Return(nil)

	res, err := newSvc(us, ss, jwt).Login(context.Background(), LoginRequest{Email: " Ada@Example.com ", Password: "s3cret!"})
	require.NoError(t, err)
	assert.Equal(t, "bearer-token", res.Bearer)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, fixedNow.Add(time.Hour), res.ExpiresAt)
	assert.Equal(t, u, res.Session.User)
	require.NotNil(t, u.LastSignInAt)
	us.AssertExpectations(t)
	ss.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	us, ss, jwt := new(mockUserStore), new(mockSessionStore), new(mockJWTSigner)
	us.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(&domain.User{UserID: "u1", PasswordHash: hashed(t, "right"), Enable: true}, nil)

	_, err := newSvc(us, ss, jwt).Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLogin_UnknownEmail(t *testing.T) {
	us, ss, jwt := new(mockUserStore), new(mockSessionStore), new(mockJWTSigner)
	us.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, domain.ErrNotFound)

	_, err := newSvc(us, ss, jwt).Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_DisabledAccount(t *testing.T) {
	us, ss, jwt := new(mockUserStore), new(mockSessionStore), new(mockJWTSigner)
	us.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(&domain.User{UserID: "u1", PasswordHash: hashed(t, "pw"), Enable: false}, nil)

	_, err := newSvc(us, ss, jwt).Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// --- Logout / GetCurrent ---

func TestLogout_DisablesSession(t *testing.T) {
	ss := new(mockSessionStore)
	ss.On("Disable", mock.Anything, "s1").Return(nil)

	require.NoError(t, newSvc(new(mockUserStore), ss, new(mockJWTSigner)).Logout(context.Background(), "s1"))
	ss.AssertExpectations(t)
}

func TestGetCurrent_DisabledSession(t *testing.T) {
	ss := new(mockSessionStore)
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", Enable: false}, nil)

	_, err := newSvc(new(mockUserStore), ss, new(mockJWTSigner)).GetCurrent(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGetCurrent_AttachesUser(t *testing.T) {
	us, ss := new(mockUserStore), new(mockSessionStore)
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", UserID: "u1", Enable: true}, nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)

	sess, err := newSvc(us, ss, new(mockJWTSigner)).GetCurrent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.UserID)
}

// --- Refresh ---

func TestRefresh_RotatesToken(t *testing.T) {
	us, ss, jwt := new(mockUserStore), new(mockSessionStore), new(mockJWTSigner)
	ss.On("GetByRefreshToken", mock.Anything, "old").Return(&domain.Session{
		SessionID: "s1", UserID: "u1", Enable: true, RefreshExpiresAt: fixedNow.Add(time.Hour).Unix(),
	}, nil)
	ss.On("RotateRefreshToken", mock.Anything, "s1", mock.AnythingOfType("string"), fixedNow.Add(24*time.Hour).Unix()).Return(nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "ada@example.com"}, nil)
	jwt.On("Sign", "u1", "ada@example.com", "s1").Return("new-bearer", fixedNow.Add(time.Hour), nil)

	res, err := newSvc(us, ss, jwt).Refresh(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "new-bearer", res.Bearer)
	assert.NotEqual(t, "old", res.RefreshToken)
	assert.Equal(t, res.RefreshToken, res.Session.RefreshToken)
}

func TestRefresh_Expired(t *testing.T) {
	ss := new(mockSessionStore)
	ss.On("GetByRefreshToken", mock.Anything, "old").Return(&domain.Session{
		SessionID: "s1", Enable: true, RefreshExpiresAt: fixedNow.Add(-time.Second).Unix(),
	}, nil)

	_, err := newSvc(new(mockUserStore), ss, new(mockJWTSigner)).Refresh(context.Background(), "old")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	ss.AssertNotCalled(t, "RotateRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_Unknown(t *testing.T) {
	ss := new(mockSessionStore)
	ss.On("GetByRefreshToken", mock.Anything, "nope").Return(nil, errors.New("session not found"))

	_, err := newSvc(new(mockUserStore), ss, new(mockJWTSigner)).Refresh(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
