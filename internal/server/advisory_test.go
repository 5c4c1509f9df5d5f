package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/advisor"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/confidence"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/schemes"
)

// ---------------------------------------------------------------------------
// Fake advisor
// ---------------------------------------------------------------------------

// fakeAdvisor is a test double for advisorService. It records the last
// request and returns canned results.
type fakeAdvisor struct {
	answer     *advisor.Answer
	summary    *advisor.Summary
	title      string
	simplified string
	err        error

	called  bool
	lastReq advisor.Request
	lastID  string
	lastArg [3]string
}

func (f *fakeAdvisor) Answer(_ context.Context, req advisor.Request) (*advisor.Answer, error) {
	f.called = true
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		a := *f.answer
		a.ConversationID = req.ConversationID
		return &a, nil
	}
	return &advisor.Answer{ConversationID: req.ConversationID, Text: "Spray neem oil.", Language: "en"}, nil
}

func (f *fakeAdvisor) Summarize(_ context.Context, id string) (*advisor.Summary, error) {
	f.called = true
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func (f *fakeAdvisor) Simplify(_ context.Context, text, mode, language string) (string, error) {
	f.called = true
	f.lastArg = [3]string{text, mode, language}
	if f.err != nil {
		return "", f.err
	}
	return f.simplified, nil
}

func (f *fakeAdvisor) Title(_ context.Context, id string) (string, error) {
	f.called = true
	f.lastID = id
	if f.err != nil {
		return "", f.err
	}
	return f.title, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds a bare *Server for calling handlers directly.
func newTestServer() *Server {
	return &Server{
		advisor: &fakeAdvisor{},
		cfg:     &Config{RequestTimeout: time.Minute},
		log:     discardLogger(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

// newRoutedServer builds a Server through New so requests pass through the
// full middleware chain.
func newRoutedServer(t *testing.T, adv advisorService, apiKey string) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	s, err := New(adv, &Config{
		Logger:          discardLogger(),
		APIKey:          apiKey,
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s.httpServer.Handler
}

// decodeErrorCode returns error.code from an error envelope.
func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if env.Success {
		t.Fatalf("expected success:false")
	}
	if env.Error == nil {
		t.Fatalf("expected error object in envelope")
	}
	return env.Error.Code
}

// decodeData decodes a success envelope's data into v.
func decodeData(t *testing.T, body io.Reader, v any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !env.Success {
		t.Fatalf("expected success:true")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// POST /api/v1/advisory/ask
// ---------------------------------------------------------------------------

func TestHandleAsk_Success(t *testing.T) {
	t.Parallel()

	score := 82
	badge := confidence.BadgeFor(confidence.TierHigh)
	adv := &fakeAdvisor{answer: &advisor.Answer{
		Text:     "Apply urea in two splits [1].",
		Language: "hi",
		Citations: []advisor.Citation{
			{Rank: 1, ConfidenceScore: 82, Tier: confidence.TierHigh, SourceID: "doc-1"},
		},
		Confidence: &score,
		Tier:       confidence.TierHigh,
		Badge:      &badge,
		FollowUps:  []string{"a?", "b?", "c?"},
		MessageID:  7,
	}}
	h := newRoutedServer(t, adv, "")

	w := postJSON(h, "/api/v1/advisory/ask",
		`{"question":"How much urea?","conversation_id":"conv-1","language":"hi","simplify":true,"follow_ups":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: body: %s", w.Code, w.Body.String())
	}

	var resp askResponse
	decodeData(t, w.Body, &resp)
	if resp.ConversationID != "conv-1" {
		t.Errorf("conversation_id: expected conv-1, got %q", resp.ConversationID)
	}
	if resp.Answer != "Apply urea in two splits [1]." || resp.MessageID != 7 {
		t.Errorf("unexpected answer payload: %+v", resp)
	}
	if resp.Confidence == nil || *resp.Confidence != 82 || resp.Tier != confidence.TierHigh {
		t.Errorf("confidence: got %v %q", resp.Confidence, resp.Tier)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].SourceID != "doc-1" {
		t.Errorf("sources: got %+v", resp.Sources)
	}
	if len(resp.FollowUps) != 3 {
		t.Errorf("follow ups: expected 3, got %d", len(resp.FollowUps))
	}

	got := adv.lastReq
	if got.Question != "How much urea?" || got.Language != "hi" || !got.Simplify || !got.FollowUps || got.File != nil {
		t.Errorf("advisor request not forwarded: %+v", got)
	}
}

func TestHandleAsk_GeneratesConversationID(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvisor{}
	h := newRoutedServer(t, adv, "")

	w := postJSON(h, "/api/v1/advisory/ask", `{"question":"When to sow wheat?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: body: %s", w.Code, w.Body.String())
	}
	if _, err := uuid.Parse(adv.lastReq.ConversationID); err != nil {
		t.Errorf("expected generated UUID conversation id, got %q", adv.lastReq.ConversationID)
	}

	var resp askResponse
	decodeData(t, w.Body, &resp)
	if resp.Sources == nil {
		t.Error("sources must encode as [] not null")
	}
	if resp.Confidence != nil {
		t.Errorf("expected no confidence, got %d", *resp.Confidence)
	}
}

func TestHandleAsk_RejectsBadBodies(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":       `question=hi`,
		"unknown field":  `{"question":"hi","questoin":"typo"}`,
		"long id":        `{"question":"hi","conversation_id":"` + strings.Repeat("x", maxConversationIDLen+1) + `"}`,
		"oversized body": `{"question":"` + strings.Repeat("a", maxJSONBytes) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			adv := &fakeAdvisor{}
			w := postJSON(newRoutedServer(t, adv, ""), "/api/v1/advisory/ask", body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if code := decodeErrorCode(t, w.Body); code != "INVALID_INPUT" {
				t.Errorf("expected INVALID_INPUT, got %q", code)
			}
			if adv.called {
				t.Error("advisor must not be called for a rejected body")
			}
		})
	}
}

func TestHandleAsk_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind   apperr.Kind
		status int
		code   string
	}{
		{apperr.KindInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{apperr.KindContextBudgetExceeded, http.StatusBadRequest, "CONTEXT_TOO_LONG"},
		{apperr.KindNotFound, http.StatusNotFound, "NOT_FOUND"},
		{apperr.KindConversationBusy, http.StatusConflict, "CONVERSATION_BUSY"},
		{apperr.KindRetrievalUnavailable, http.StatusServiceUnavailable, "RAG_ERROR"},
		{apperr.KindGenerationFailed, http.StatusBadGateway, "EXTERNAL_SERVICE_ERROR"},
		{apperr.KindCanceled, http.StatusRequestTimeout, "REQUEST_CANCELED"},
		{apperr.KindInternal, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			t.Parallel()
			adv := &fakeAdvisor{err: apperr.New(tc.kind, "advisor.Answer", errors.New("api key sk-secret rejected"))}
			w := postJSON(newRoutedServer(t, adv, ""), "/api/v1/advisory/ask", `{"question":"hi"}`)
			if w.Code != tc.status {
				t.Errorf("status: expected %d, got %d", tc.status, w.Code)
			}
			if strings.Contains(w.Body.String(), "sk-secret") {
				t.Error("response leaked the underlying cause")
			}
			if code := decodeErrorCode(t, w.Body); code != tc.code {
				t.Errorf("code: expected %q, got %q", tc.code, code)
			}
		})
	}
}

func TestHandleAsk_PlainErrorIsInternal(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvisor{err: errors.New("boom")}
	w := postJSON(newRoutedServer(t, adv, ""), "/api/v1/advisory/ask", `{"question":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/v1/advisory/ask-with-document
// ---------------------------------------------------------------------------

// multipartBody builds a form with the given fields and an optional file.
func multipartBody(t *testing.T, fields map[string]string, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleAskWithDocument_ForwardsUpload(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvisor{}
	h := newRoutedServer(t, adv, "")
	content := []byte("Soil test: nitrogen low, pH 6.8")
	body, ct := multipartBody(t, map[string]string{
		"question":        "What does my soil report say?",
		"conversation_id": "conv-9",
		"follow_ups":      "true",
	}, "soil.txt", content)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/advisory/ask-with-document", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: body: %s", w.Code, w.Body.String())
	}
	got := adv.lastReq
	if got.File == nil || got.File.Name != "soil.txt" || !bytes.Equal(got.File.Data, content) {
		t.Fatalf("upload not forwarded: %+v", got.File)
	}
	if got.Question != "What does my soil report say?" || got.ConversationID != "conv-9" || !got.FollowUps || got.Simplify {
		t.Errorf("form fields not forwarded: %+v", got)
	}

	var resp askResponse
	decodeData(t, w.Body, &resp)
	if resp.Document == nil || resp.Document.Name != "soil.txt" || resp.Document.Size != len(content) {
		t.Errorf("document echo: got %+v", resp.Document)
	}
}

func TestHandleAskWithDocument_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		fileName string
	}{
		{"unsupported type", "photo.jpg"},
		{"missing file", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			adv := &fakeAdvisor{}
			body, ct := multipartBody(t, map[string]string{"question": "hi"}, tc.fileName, []byte("x"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/advisory/ask-with-document", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			newRoutedServer(t, adv, "").ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if adv.called {
				t.Error("advisor must not be called")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Conversation intelligence and schemes
// ---------------------------------------------------------------------------

func TestHandleSummary(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvisor{summary: &advisor.Summary{
		ConversationID:   "conv-3",
		Text:             "Discussed drip irrigation subsidy.",
		KeyTopics:        []string{"water_management"},
		SchemesDiscussed: []string{"PMKSY"},
		TurnCount:        4,
	}}
	w := postJSON(newRoutedServer(t, adv, ""), "/api/v1/conversations/conv-3/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: body: %s", w.Code, w.Body.String())
	}
	if adv.lastID != "conv-3" {
		t.Errorf("path id: expected conv-3, got %q", adv.lastID)
	}
	var sum advisor.Summary
	decodeData(t, w.Body, &sum)
	if sum.Text != "Discussed drip irrigation subsidy." || sum.TurnCount != 4 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestHandleSummary_NotFound(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvisor{err: apperr.Newf(apperr.KindNotFound, "advisor.Summarize", "no turns")}
	w := postJSON(newRoutedServer(t, adv, ""), "/api/v1/conversations/nope/summary", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if code := decodeErrorCode(t, w.Body); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %q", code)
	}
}

func TestHandleTitle(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvisor{title: "Wheat Rust Control"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/conv-5/title", nil)
	w := httptest.NewRecorder()
	newRoutedServer(t, adv, "").ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp titleResponse
	decodeData(t, w.Body, &resp)
	if resp.ConversationID != "conv-5" || resp.Title != "Wheat Rust Control" {
		t.Errorf("unexpected title response: %+v", resp)
	}
}

func TestHandleSimplify_DefaultMode(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvisor{simplified: "You get money every year."}
	w := postJSON(newRoutedServer(t, adv, ""), "/api/v1/simplify",
		`{"text":"Eligible beneficiaries receive annual income support.","language":"en"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: body: %s", w.Code, w.Body.String())
	}
	if adv.lastArg != [3]string{"Eligible beneficiaries receive annual income support.", "", "en"} {
		t.Errorf("unexpected advisor args: %q", adv.lastArg)
	}
	var resp simplifyResponse
	decodeData(t, w.Body, &resp)
	if resp.Mode != "simple" || resp.Simplified != "You get money every year." {
		t.Errorf("unexpected simplify response: %+v", resp)
	}
}

func TestHandleSchemeMatch(t *testing.T) {
	t.Parallel()

	h := newRoutedServer(t, &fakeAdvisor{}, "")

	w := postJSON(h, "/api/v1/schemes/match", `{"text":"Am I eligible for PM Kisan?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var matched []schemes.Scheme
	decodeData(t, w.Body, &matched)
	if len(matched) == 0 || matched[0].ID != "PM-KISAN" {
		t.Errorf("expected PM-KISAN match, got %+v", matched)
	}

	w = postJSON(h, "/api/v1/schemes/match", `{"text":"tomato blight"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"data":[]`) {
		t.Errorf("expected empty data array, got %s", w.Body.String())
	}
}

func TestHandleEligibility(t *testing.T) {
	t.Parallel()

	h := newRoutedServer(t, &fakeAdvisor{}, "")

	profile := `{"state":"Maharashtra","district":"Nashik","land_size_hectares":8,"primary_crop":"onion",` +
		`"farming_type":"conventional","annual_income":180000,"dbt_eligible":true,"bank_account_linked":true}`
	w := postJSON(h, "/api/v1/schemes/eligibility", `{"profile":`+profile+`,"scheme_ids":["PMKSY","SHC"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: body: %s", w.Code, w.Body.String())
	}
	var rec schemes.Recommendation
	decodeData(t, w.Body, &rec)
	if rec.TotalChecked != 2 || rec.TotalEligible != 1 || rec.ProfileCompleteness != 100 {
		t.Errorf("unexpected totals: %+v", rec)
	}
	if len(rec.Eligible) != 1 || rec.Eligible[0].ID != "SHC" {
		t.Errorf("expected SHC eligible, got %+v", rec.Eligible)
	}
	if len(rec.Ineligible) != 1 || rec.Ineligible[0].ID != "PMKSY" ||
		len(rec.Ineligible[0].MissingRequirements) != 1 ||
		rec.Ineligible[0].MissingRequirements[0] != "Maximum 5 hectares allowed" {
		t.Errorf("expected PMKSY over the land cap, got %+v", rec.Ineligible)
	}

	w = postJSON(h, "/api/v1/schemes/eligibility", `{"profile":{"state":"Punjab"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	decodeData(t, w.Body, &rec)
	if rec.TotalChecked != len(schemes.All()) {
		t.Errorf("expected the whole catalogue checked, got %d", rec.TotalChecked)
	}
}

func TestHandleEligibility_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown scheme", `{"profile":{},"scheme_ids":["NOPE"]}`, http.StatusNotFound, "NOT_FOUND"},
		{"negative land", `{"profile":{"land_size_hectares":-2}}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", `{"profile":{},"caste":"x"}`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := postJSON(newRoutedServer(t, &fakeAdvisor{}, ""), "/api/v1/schemes/eligibility", tc.body)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			if code := decodeErrorCode(t, w.Body); code != tc.code {
				t.Errorf("expected %s, got %s", tc.code, code)
			}
		})
	}
}

func TestHandleDBTReadiness(t *testing.T) {
	t.Parallel()

	h := newRoutedServer(t, &fakeAdvisor{}, "")

	w := postJSON(h, "/api/v1/profile/dbt-readiness",
		`{"profile":{"state":"Bihar","primary_crop":"maize","farming_type":"organic","aadhaar_verified":true}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: body: %s", w.Code, w.Body.String())
	}
	var resp readinessResponse
	decodeData(t, w.Body, &resp)
	// 30 for Aadhaar, nothing for the bank, 3 of 6 fields worth 20.
	if resp.Score != 50 || resp.Ready || resp.ProfileCompleteness != 50 {
		t.Errorf("unexpected readiness: %+v", resp)
	}
	if len(resp.NextSteps) != 2 {
		t.Errorf("expected bank and profile next steps, got %q", resp.NextSteps)
	}

	w = postJSON(h, "/api/v1/profile/dbt-readiness", `{"profile":{"annual_income":-1}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Routing and middleware
// ---------------------------------------------------------------------------

func TestRoutes_AuthProtectsOnlyV1(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvisor{}
	h := newRoutedServer(t, adv, "secret")

	w := postJSON(h, "/api/v1/advisory/ask", `{"question":"hi"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if adv.called {
		t.Error("advisor must not be called without a token")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	hw := httptest.NewRecorder()
	h.ServeHTTP(hw, req)
	if hw.Code != http.StatusOK {
		t.Errorf("health must stay public, got %d", hw.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/advisory/ask", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Authorization", "Bearer secret")
	aw := httptest.NewRecorder()
	h.ServeHTTP(aw, req)
	if aw.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", aw.Code)
	}
}

func TestRoutes_RequestIDHeader(t *testing.T) {
	t.Parallel()

	h := newRoutedServer(t, &fakeAdvisor{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if _, err := uuid.Parse(w.Header().Get(requestIDHeader)); err != nil {
		t.Errorf("expected generated UUID request id, got %q", w.Header().Get(requestIDHeader))
	}

	inbound := uuid.NewString()
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, inbound)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != inbound {
		t.Errorf("expected inbound id %q reused, got %q", inbound, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "not a uuid\r\n")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got == "not a uuid\r\n" {
		t.Error("malformed inbound id must be replaced")
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/advisory/ask", nil)
	w := httptest.NewRecorder()
	newRoutedServer(t, &fakeAdvisor{}, "").ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestNew_RequiresAdvisor(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &Config{}); err == nil {
		t.Error("expected error for nil advisor")
	}
}

func TestNew_RequestTimeoutCoversAnswerBudget(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := New(&fakeAdvisor{}, &Config{Logger: discardLogger(), MetricsRegistry: reg, MetricsGatherer: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)

	budget := advisor.Config{}.RequestBudget()
	if s.cfg.RequestTimeout != budget {
		t.Errorf("RequestTimeout = %v, want %v", s.cfg.RequestTimeout, budget)
	}
	if s.httpServer.WriteTimeout <= budget {
		t.Errorf("WriteTimeout %v must outlast the answer budget %v", s.httpServer.WriteTimeout, budget)
	}
}
