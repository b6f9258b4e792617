package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eduretrieve-api/internal/domain"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	userinfo "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// verifiedSubjectKey is the token extra under which ExchangeCode records the
// id_token subject for FetchProfile to cross-check.
const verifiedSubjectKey = "verified_sub"

// Config configures the Exchanger. The endpoint fields default to Google's and
// exist so tests can point the client at local servers.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	AuthURL      string
	TokenURL     string
	UserInfoURL  string // base URL of the userinfo API, e.g. "https://www.googleapis.com/"
	HTTPClient   *http.Client
	SkipIDTokens bool // do not validate id_token even if the provider returns one
}

type idTokenVerifier interface {
	Verify(ctx context.Context, token string) (*IDClaims, error)
}

// Exchanger runs the server side of Google's authorization-code flow.
// It keeps no state between calls.
type Exchanger struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	timeout     time.Duration
	verifier    idTokenVerifier
}

func NewExchanger(cfg Config) *Exchanger {
	endpoint := googleoauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	e := &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{userinfo.UserinfoEmailScope, userinfo.UserinfoProfileScope},
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  httpClient,
		timeout:     cfg.Timeout,
	}
	if !cfg.SkipIDTokens {
		e.verifier = NewVerifier(cfg.ClientID)
	}
	return e
}

// BuildConsentURL returns the provider URL the user is sent to. The state
// parameter carries {email, action} as JSON. No email format validation.
func (e *Exchanger) BuildConsentURL(email string, action domain.Action) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("email is required: %w", domain.ErrInvalidInput)
	}
	state, err := domain.ConsentState{Email: email, Action: action}.Encode()
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	return e.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// ExchangeCode trades an authorization code for tokens using the registered
// redirect URI. A returned id_token is validated and its subject kept on the token.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	tok, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenExchange, providerMessage(err))
	}

	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" || e.verifier == nil {
		return tok, nil
	}
	claims, err := e.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return tok.WithExtra(map[string]interface{}{
		"id_token":         rawID,
		verifiedSubjectKey: claims.Subject,
	}), nil
}

// FetchProfile reads the account profile behind tok from the userinfo endpoint.
func (e *Exchanger) FetchProfile(ctx context.Context, tok *oauth2.Token) (*domain.IdentityProfile, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))),
	}
	if e.userInfoURL != "" {
		opts = append(opts, option.WithEndpoint(e.userInfoURL))
	}
	svc, err := userinfo.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProfileFetch, err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProfileFetch, err)
	}

	if info.Email == "" || info.Id == "" {
		return nil, fmt.Errorf("%w: response is missing email or id", domain.ErrProfileFetch)
	}
	if sub, _ := tok.Extra(verifiedSubjectKey).(string); sub != "" && sub != info.Id {
		return nil, fmt.Errorf("%w: id token subject does not match profile", domain.ErrProfileFetch)
	}

	return &domain.IdentityProfile{
		ProviderID:    info.Id,
		Email:         info.Email,
		EmailVerified: info.VerifiedEmail != nil && *info.VerifiedEmail,
		Name:          info.Name,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		Picture:       info.Picture,
	}, nil
}

// callContext bounds an outbound call and routes oauth2 traffic through the
// configured HTTP client.
func (e *Exchanger) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func providerMessage(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorDescription != "" {
			return re.ErrorDescription
		}
		if re.ErrorCode != "" {
			return re.ErrorCode
		}
	}
	return err.Error()
}
