package google

import (
	"context"
	"fmt"

	"github.com/eduretrieve-api/internal/domain"
	"google.golang.org/api/idtoken"
)

// IDClaims holds the verified claims extracted from a Google ID token.
type IDClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
}

// Verifier verifies Google ID tokens against a specific client ID.
type Verifier struct {
	clientID string
}

func NewVerifier(clientID string) *Verifier {
	return &Verifier{clientID: clientID}
}

// Verify validates the ID token signature, audience and expiry.
// Returns a domain.ErrTokenExchange-wrapped error if the token is invalid.
func (v *Verifier) Verify(ctx context.Context, token string) (*IDClaims, error) {
	p, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id token: %v", domain.ErrTokenExchange, err)
	}
	email, _ := p.Claims["email"].(string)
	emailVerified, _ := p.Claims["email_verified"].(bool)
	return &IDClaims{
		Subject:       p.Subject,
		Email:         email,
		EmailVerified: emailVerified,
	}, nil
}
