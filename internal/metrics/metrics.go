// Package metrics exposes Prometheus counters for the signup flow.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Collector records signup and mail delivery metrics.
type Collector struct {
	signupSteps  *prometheus.CounterVec
	emailSent    prometheus.Counter
	emailFailed  prometheus.Counter
	breakerState prometheus.Gauge
	httpStatus   *prometheus.CounterVec
	swept        prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signupSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduretrieve_signup_steps_total",
			Help: "Signup steps handled, by step and outcome.",
		}, []string{"step", "outcome"}),
		emailSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eduretrieve_verification_emails_sent_total",
			Help: "Verification emails handed to the SMTP relay.",
		}),
		emailFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eduretrieve_verification_emails_failed_total",
			Help: "Verification emails that could not be delivered.",
		}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eduretrieve_mail_breaker_state",
			Help: "SMTP circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduretrieve_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eduretrieve_verifications_swept_total",
			Help: "Expired pending verifications removed by the background sweep.",
		}),
	}

	reg.MustRegister(
		c.signupSteps,
		c.emailSent,
		c.emailFailed,
		c.breakerState,
		c.httpStatus,
		c.swept,
	)

	return c
}

// RecordStep counts one signup step with its outcome label.
func (c *Collector) RecordStep(step, outcome string) {
	c.signupSteps.WithLabelValues(step, outcome).Inc()
}

func (c *Collector) RecordEmailSent() {
	c.emailSent.Inc()
}

func (c *Collector) RecordEmailFailure() {
	c.emailFailed.Inc()
}

// RecordBreakerState tracks the SMTP circuit breaker.
func (c *Collector) RecordBreakerState(_, to gobreaker.State) {
	c.breakerState.Set(float64(to))
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordSwept(n int) {
	c.swept.Add(float64(n))
}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
