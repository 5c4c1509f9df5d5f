// Package server exposes the farmer advisor over a JSON REST API.
// The server is started by the `kisan serve` CLI command.
//
// Tests here use the standard testing package with httptest and t.Errorf,
// like the HTTP handlers they grew from. The pipeline packages below the
// server (advisor, rag, store and the rest) use testify assert and require.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/advisor"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/extract"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/schemes"
)

const (
	// maxJSONBytes caps JSON request bodies.
	maxJSONBytes = 1 << 20
	// multipartOverhead is the slack allowed above the file limit for the
	// other form fields and multipart framing.
	multipartOverhead = 1 << 20
	// maxConversationIDLen bounds caller-chosen conversation IDs.
	maxConversationIDLen = 128
)

// New constructs a Server in front of adv.
func New(adv advisorService, cfg *Config) (*Server, error) {
	if adv == nil {
		return nil, fmt.Errorf("server: advisor must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = advisor.Config{}.RequestBudget()
	}
	if cfg.WriteTimeout == 0 {
		// Must outlast a full retrieve, generate and retry cycle.
		cfg.WriteTimeout = cfg.RequestTimeout + 10*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger.With(slog.String("component", "server"))
	if cfg.APIKey == "" {
		log.Warn("API key not set: /api/v1 routes are unauthenticated")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)

	s := &Server{
		advisor: adv,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
		stopRL:  stopRL,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(rl),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// routes builds the handler tree. /api/v1 sits behind auth and the rate
// limiter; probes and metrics do not.
func (s *Server) routes(rl *rateLimiter) http.Handler {
	v1 := http.NewServeMux()
	v1.HandleFunc("POST /api/v1/advisory/ask", s.instrument("ask", s.handleAsk))
	v1.HandleFunc("POST /api/v1/advisory/ask-with-document", s.instrument("ask_with_document", s.handleAskWithDocument))
	v1.HandleFunc("POST /api/v1/conversations/{id}/summary", s.instrument("summary", s.handleSummary))
	v1.HandleFunc("GET /api/v1/conversations/{id}/title", s.instrument("title", s.handleTitle))
	v1.HandleFunc("POST /api/v1/simplify", s.instrument("simplify", s.handleSimplify))
	v1.HandleFunc("GET /api/v1/schemes", s.instrument("schemes", s.handleSchemes))
	v1.HandleFunc("POST /api/v1/schemes/match", s.instrument("schemes_match", s.handleSchemeMatch))
	v1.HandleFunc("POST /api/v1/schemes/eligibility", s.instrument("schemes_eligibility", s.handleEligibility))
	v1.HandleFunc("POST /api/v1/profile/dbt-readiness", s.instrument("dbt_readiness", s.handleDBTReadiness))

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", authMiddleware(s.cfg.APIKey, rl.middleware(v1)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	return requestLogger(s.log, mux)
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("shutting down", slog.Duration("timeout", s.cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/v1/advisory/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.answer(w, r, advisor.Request{
		Question:       req.Question,
		ConversationID: req.ConversationID,
		Language:       req.Language,
		Simplify:       req.Simplify,
		FollowUps:      req.FollowUps,
	})
}

// handleAskWithDocument handles POST /api/v1/advisory/ask-with-document, a
// multipart form with the ask fields plus a "file" part.
func (s *Server) handleAskWithDocument(w http.ResponseWriter, r *http.Request) {
	const op = "server.askWithDocument"
	r.Body = http.MaxBytesReader(w, r.Body, extract.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, apperr.Newf(apperr.KindInvalidInput, op, "upload exceeds %d bytes", extract.MaxUploadBytes))
			return
		}
		writeError(w, r, apperr.New(apperr.KindInvalidInput, op, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Newf(apperr.KindInvalidInput, op, "file part: %v", err))
		return
	}
	defer file.Close()

	if !extract.Supported(hdr.Filename) {
		writeError(w, r, apperr.Newf(apperr.KindInvalidInput, op, "unsupported file type %q", hdr.Filename))
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, extract.MaxUploadBytes+1))
	if err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, op, err))
		return
	}
	if len(data) > extract.MaxUploadBytes {
		writeError(w, r, apperr.Newf(apperr.KindInvalidInput, op, "upload exceeds %d bytes", extract.MaxUploadBytes))
		return
	}
	s.metrics.uploadBytes.Observe(float64(len(data)))

	s.answer(w, r, advisor.Request{
		Question:       r.FormValue("question"),
		ConversationID: r.FormValue("conversation_id"),
		Language:       r.FormValue("language"),
		Simplify:       formBool(r.FormValue("simplify")),
		FollowUps:      formBool(r.FormValue("follow_ups")),
		File:           &advisor.Upload{Name: hdr.Filename, Data: data},
	})
}

// answer runs one advisory request and writes the result.
func (s *Server) answer(w http.ResponseWriter, r *http.Request, req advisor.Request) {
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	if len(req.ConversationID) > maxConversationIDLen {
		writeError(w, r, apperr.Newf(apperr.KindInvalidInput, "server.answer", "conversation_id longer than %d bytes", maxConversationIDLen))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, logging.FromContext(r.Context()).With(
		slog.String("conversation_id", req.ConversationID),
	))

	ans, err := s.advisor.Answer(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := askResponse{
		ConversationID: ans.ConversationID,
		MessageID:      ans.MessageID,
		Answer:         ans.Text,
		Language:       ans.Language,
		Sources:        ans.Citations,
		Confidence:     ans.Confidence,
		Tier:           ans.Tier,
		Badge:          ans.Badge,
		Notice:         ans.Notice,
		FollowUps:      ans.FollowUps,
		Degraded:       ans.Degraded,
	}
	if resp.Sources == nil {
		resp.Sources = []advisor.Citation{}
	}
	if req.File != nil {
		resp.Document = &documentInfo{Name: req.File.Name, Size: len(req.File.Data)}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleSummary handles POST /api/v1/conversations/{id}/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.advisor.Summarize(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sum)
}

// handleTitle handles GET /api/v1/conversations/{id}/title.
func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	title, err := s.advisor.Title(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, titleResponse{ConversationID: id, Title: title})
}

// handleSimplify handles POST /api/v1/simplify.
func (s *Server) handleSimplify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	var req simplifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.advisor.Simplify(r.Context(), req.Text, req.Mode, req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = "simple"
	}
	writeJSON(w, r, http.StatusOK, simplifyResponse{Original: req.Text, Simplified: out, Mode: mode})
}

// handleSchemes handles GET /api/v1/schemes.
func (s *Server) handleSchemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, schemes.All())
}

// handleSchemeMatch handles POST /api/v1/schemes/match.
func (s *Server) handleSchemeMatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	var req schemeMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, apperr.Newf(apperr.KindInvalidInput, "server.schemeMatch", "text is empty"))
		return
	}
	matched := schemes.Match(req.Text)
	if matched == nil {
		matched = []schemes.Scheme{}
	}
	writeJSON(w, r, http.StatusOK, matched)
}

// handleEligibility handles POST /api/v1/schemes/eligibility.
func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	var req eligibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Profile.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := schemes.Recommend(req.Profile, req.SchemeIDs...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Debug("eligibility checked",
		slog.Int("checked", rec.TotalChecked),
		slog.Int("eligible", rec.TotalEligible),
		slog.Int("completeness", rec.ProfileCompleteness),
	)
	writeJSON(w, r, http.StatusOK, rec)
}

// handleDBTReadiness handles POST /api/v1/profile/dbt-readiness.
func (s *Server) handleDBTReadiness(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	var req readinessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Profile.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, readinessResponse{
		Readiness:           schemes.DBTReadiness(req.Profile),
		ProfileCompleteness: req.Profile.Completeness(),
	})
}

// formBool reads a checkbox-style form value. Unparseable values are false.
func formBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
