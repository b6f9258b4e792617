package http

import (
	"github.com/eduretrieve-api/internal/application/account"
	"github.com/eduretrieve-api/internal/application/session"
	"github.com/eduretrieve-api/internal/application/signup"
	"github.com/eduretrieve-api/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// StatusRecorder counts responses by status code.
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// Deps holds the services and infrastructure the router wires into handlers.
type Deps struct {
	Signup   signup.Service
	Accounts account.Service
	Sessions session.Service

	// TokenVerifier guards authenticated routes. When nil those routes are not mounted.
	TokenVerifier middleware.TokenVerifier

	// Metrics and Gatherer are optional; /metrics is served only when Gatherer is set.
	Metrics  StatusRecorder
	Gatherer prometheus.Gatherer
}
