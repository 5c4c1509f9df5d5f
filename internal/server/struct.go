package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/advisor"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/confidence"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/schemes"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// RequestTimeout bounds one advisory request end to end. The default is
	// the budget of a zero [advisor.Config], which fits a full answer with
	// retry and post-processing at default timeouts.
	RequestTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks.
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on the /api/v1
	// routes (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all /api/v1 routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the HTTP metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// advisorService is what the handlers call. *advisor.Advisor satisfies it;
// tests inject a fake.
type advisorService interface {
	Answer(ctx context.Context, req advisor.Request) (*advisor.Answer, error)
	Summarize(ctx context.Context, conversationID string) (*advisor.Summary, error)
	Simplify(ctx context.Context, text, mode, language string) (string, error)
	Title(ctx context.Context, conversationID string) (string, error)
}

// Server is the HTTP server in front of the advisor.
type Server struct {
	advisor    advisorService
	cfg        *Config
	httpServer *http.Server
	log        *slog.Logger
	pingers    []Pinger
	metrics    *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/v1/advisory/ask.
type askRequest struct {
	Question string `json:"question"`
	// ConversationID continues a conversation; empty starts a new one.
	ConversationID string `json:"conversation_id"`
	Language       string `json:"language"`
	Simplify       bool   `json:"simplify"`
	FollowUps      bool   `json:"follow_ups"`
}

// askResponse is the data of a successful advisory response.
type askResponse struct {
	ConversationID string             `json:"conversation_id"`
	MessageID      int64              `json:"message_id"`
	Answer         string             `json:"answer"`
	Language       string             `json:"language"`
	Sources        []advisor.Citation `json:"sources"`
	Confidence     *int               `json:"confidence,omitempty"`
	Tier           confidence.Tier    `json:"confidence_tier,omitempty"`
	Badge          *confidence.Badge  `json:"confidence_badge,omitempty"`
	Notice         string             `json:"notice,omitempty"`
	FollowUps      []string           `json:"follow_up_questions,omitempty"`
	Degraded       bool               `json:"degraded"`
	Document       *documentInfo      `json:"document,omitempty"`
}

// documentInfo echoes the uploaded file back to the caller.
type documentInfo struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// simplifyRequest is the JSON body for POST /api/v1/simplify.
type simplifyRequest struct {
	Text     string `json:"text"`
	Mode     string `json:"mode"`
	Language string `json:"language"`
}

// simplifyResponse is the data of POST /api/v1/simplify.
type simplifyResponse struct {
	Original   string `json:"original"`
	Simplified string `json:"simplified"`
	Mode       string `json:"mode"`
}

// schemeMatchRequest is the JSON body for POST /api/v1/schemes/match.
type schemeMatchRequest struct {
	Text string `json:"text"`
}

// eligibilityRequest is the JSON body for POST /api/v1/schemes/eligibility.
// An empty SchemeIDs checks the whole catalogue.
type eligibilityRequest struct {
	Profile   schemes.Profile `json:"profile"`
	SchemeIDs []string        `json:"scheme_ids,omitempty"`
}

// readinessRequest is the JSON body for POST /api/v1/profile/dbt-readiness.
type readinessRequest struct {
	Profile schemes.Profile `json:"profile"`
}

// readinessResponse is the data of POST /api/v1/profile/dbt-readiness.
type readinessResponse struct {
	schemes.Readiness
	ProfileCompleteness int `json:"profile_completeness"`
}

// titleResponse is the data of GET /api/v1/conversations/{id}/title.
type titleResponse struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

// envelope is the body of every /api/v1 response.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

// errorBody carries a stable code and a user-facing message. Raw
// dependency errors never appear here.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
