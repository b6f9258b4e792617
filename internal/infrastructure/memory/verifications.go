// Package memory holds the process-local verification store used in
// development and single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eduretrieve-api/internal/domain"
)

// VerificationStore keeps pending signup verifications in a map keyed by email.
// Expired records are removed lazily on Get and periodically by Run.
type VerificationStore struct {
	mu      sync.Mutex
	records map[string]domain.PendingVerification
	now     func() time.Time
}

// NewVerificationStore returns an empty store. A nil clock means time.Now.
func NewVerificationStore(now func() time.Time) *VerificationStore {
	if now == nil {
		now = time.Now
	}
	return &VerificationStore{
		records: make(map[string]domain.PendingVerification),
		now:     now,
	}
}

// Put stores v, replacing any record already held for the same email.
func (s *VerificationStore) Put(_ context.Context, v *domain.PendingVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[v.Email] = *v
	return nil
}

func (s *VerificationStore) Get(_ context.Context, email string) (*domain.PendingVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.records[email]
	if !ok {
		return nil, fmt.Errorf("verification for %s: %w", email, domain.ErrVerificationNotFound)
	}
	if v.Expired(s.now()) {
		delete(s.records, email)
		return nil, fmt.Errorf("verification for %s: %w", email, domain.ErrVerificationExpired)
	}
	return &v, nil
}

func (s *VerificationStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, email)
	return nil
}

// Sweep drops every record that has expired and returns how many were removed.
func (s *VerificationStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for email, v := range s.records {
		if v.Expired(now) {
			delete(s.records, email)
			removed++
		}
	}
	return removed
}

// Len reports how many records are held, expired or not.
func (s *VerificationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Run sweeps every interval until ctx is cancelled. onSweep, if set, receives
// the number of records removed by each non-empty sweep.
func (s *VerificationStore) Run(ctx context.Context, interval time.Duration, onSweep func(int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Info("swept expired verifications", "count", n)
				if onSweep != nil {
					onSweep(n)
				}
			}
		}
	}
}
