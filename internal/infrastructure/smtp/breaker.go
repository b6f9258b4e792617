package smtp

import (
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings configures BreakerMailer.
type BreakerSettings struct {
	FailureThreshold uint32        // consecutive failures that open the breaker
	OpenTimeout      time.Duration // how long the breaker stays open before probing
	OnStateChange    func(from, to gobreaker.State)
}

// BreakerMailer wraps a Mailer with a circuit breaker. While open, SendEmail
// fails immediately with gobreaker.ErrOpenState.
type BreakerMailer struct {
	next Mailer
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerMailer(next Mailer, s BreakerSettings) *BreakerMailer {
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	settings := gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("mail circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if s.OnStateChange != nil {
				s.OnStateChange(from, to)
			}
		},
	}
	return &BreakerMailer{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (b *BreakerMailer) SendEmail(to, subject, htmlBody string) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.SendEmail(to, subject, htmlBody)
	})
	return err
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *BreakerMailer) State() string {
	return b.cb.State().String()
}
