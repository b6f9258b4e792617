// Package redis holds the Redis-backed verification store shared by every API
// instance in a multi-node deployment.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eduretrieve-api/internal/domain"
	"github.com/redis/go-redis/v9"
)

const verificationPrefix = "signup:verification:"

// expiryGrace keeps a record in Redis a little past ExpiresAt so a late read
// can still tell "expired" apart from "never existed".
const expiryGrace = time.Minute

// deleteIfUnchanged removes the key only while it still holds the value we read.
var deleteIfUnchanged = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// VerificationStore keeps pending signup verifications as JSON strings with a TTL.
type VerificationStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewVerificationStore(client redis.UniversalClient) *VerificationStore {
	return &VerificationStore{client: client, now: time.Now}
}

func (s *VerificationStore) Put(ctx context.Context, v *domain.PendingVerification) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verification: %w", err)
	}
	ttl := v.ExpiresAt.Sub(s.now()) + expiryGrace
	if ttl < expiryGrace {
		ttl = expiryGrace
	}
	if err := s.client.Set(ctx, verificationPrefix+v.Email, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save verification: %w", err)
	}
	return nil
}

func (s *VerificationStore) Get(ctx context.Context, email string) (*domain.PendingVerification, error) {
	key := verificationPrefix + email
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("verification for %s: %w", email, domain.ErrVerificationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}

	var v domain.PendingVerification
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification: %w", err)
	}
	if v.Expired(s.now()) {
		if err := deleteIfUnchanged.Run(ctx, s.client, []string{key}, data).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to delete expired verification: %w", err)
		}
		return nil, fmt.Errorf("verification for %s: %w", email, domain.ErrVerificationExpired)
	}
	return &v, nil
}

func (s *VerificationStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, verificationPrefix+email).Err(); err != nil {
		return fmt.Errorf("failed to delete verification: %w", err)
	}
	return nil
}
