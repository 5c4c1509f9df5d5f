// Package advisor orchestrates one farmer question end to end: retrieve
// knowledge-base hits, score them, assemble a bounded context with recent
// history and an optional uploaded document, generate a grounded answer,
// post-process it, and persist the exchange with its citations.
//
// The pipeline is an explicit state machine (see [State]). Retrieval
// failure is the one graceful-degradation path: the answer is generated
// from history alone with no citations. Every other failure leaves the
// conversation unchanged.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/assembler"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/budget"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/confidence"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/extract"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/generator"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/langdetect"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/rag"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/store"
)

const (
	// MaxQuestionRunes bounds a question after trimming.
	MaxQuestionRunes = 1000
	// PreviewRunes is the length of a citation's chunk preview.
	PreviewRunes = 200
)

// Retriever fetches ranked knowledge-base hits. *rag.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]rag.Hit, error)
}

// Store is the conversation storage the advisor reads and appends to.
// *store.SQLiteStore satisfies it.
type Store interface {
	History(ctx context.Context, conversationID string, maxTurns int) ([]store.Turn, error)
	AppendExchange(ctx context.Context, conversationID, question, answer string, citations []store.Citation) (store.Turn, store.Turn, error)
	CountTurns(ctx context.Context, conversationID string) (int, error)
	SaveSummary(ctx context.Context, conversationID string, sum store.Summary) error
	Summary(ctx context.Context, conversationID string) (*store.Summary, error)
	SetTitle(ctx context.Context, conversationID, title string) error
	Title(ctx context.Context, conversationID string) (string, error)
}

// Generator produces text with a language model. *generator.Generator
// satisfies it.
type Generator interface {
	Answer(ctx context.Context, pc *assembler.PromptContext, question, language string) (string, error)
	Simplify(ctx context.Context, text string, mode generator.Mode, language string) (string, error)
	FollowUps(ctx context.Context, question, answer, language string) ([]string, error)
	Summarize(ctx context.Context, turns []store.Turn) (string, error)
	ExtractTopics(ctx context.Context, text string) (*generator.Topics, error)
	Title(ctx context.Context, message string) (string, error)
}

// Deps are the collaborators of an Advisor. Retriever may be nil, in which
// case every answer takes the degraded history-only path.
type Deps struct {
	Retriever Retriever
	Store     Store
	Generator Generator
	// Counter measures the context budget; nil counts characters.
	Counter budget.Counter
	// Registerer receives the pipeline metrics; nil skips registration.
	Registerer prometheus.Registerer
}

// Upload is a document attached to a question.
type Upload struct {
	Name string
	Data []byte
}

// Request is one question.
type Request struct {
	Question       string
	ConversationID string
	// Language is en, hi or mr; empty detects it from the question.
	Language  string
	File      *Upload
	Simplify  bool
	FollowUps bool
}

// Citation links an answer to a knowledge-base chunk that was sent to the
// model.
type Citation struct {
	Rank            int             `json:"rank"`
	ConfidenceScore int             `json:"confidence_score"`
	SimilarityScore float64         `json:"similarity_score"`
	Tier            confidence.Tier `json:"tier"`
	SourceID        string          `json:"source_id"`
	SequenceIndex   int             `json:"sequence_index"`
	Title           string          `json:"title,omitempty"`
	ChunkPreview    string          `json:"chunk_preview"`
}

// Answer is the result of a successful request.
type Answer struct {
	ConversationID string     `json:"conversation_id"`
	Text           string     `json:"text"`
	Language       string     `json:"language"`
	Citations      []Citation `json:"citations"`
	// Confidence is the mean citation score; nil when there are no citations.
	Confidence *int              `json:"confidence,omitempty"`
	Tier       confidence.Tier   `json:"tier,omitempty"`
	Badge      *confidence.Badge `json:"badge,omitempty"`
	// Notice warns the reader when confidence is below the answer threshold.
	Notice string `json:"notice,omitempty"`
	// FollowUps holds exactly three questions when they were requested.
	FollowUps []string `json:"follow_ups,omitempty"`
	Degraded  bool     `json:"degraded"`
	States    []State  `json:"states"`
	MessageID int64    `json:"message_id"`
}

// Advisor is safe for concurrent use. Requests on different conversations
// run independently; a second request on a busy conversation is rejected.
type Advisor struct {
	retriever Retriever
	store     Store
	gen       Generator
	scorer    confidence.Scorer
	assembler *assembler.Assembler
	cfg       Config
	busy      *guard
	metrics   *metrics
}

// New wires an Advisor.
func New(deps Deps, cfg Config) (*Advisor, error) {
	if deps.Store == nil {
		return nil, errors.New("advisor: store must not be nil")
	}
	if deps.Generator == nil {
		return nil, errors.New("advisor: generator must not be nil")
	}
	cfg = cfg.withDefaults()
	return &Advisor{
		retriever: deps.Retriever,
		store:     deps.Store,
		gen:       deps.Generator,
		scorer:    confidence.New(confidence.DefaultWeights, cfg.Thresholds),
		assembler: assembler.New(deps.Counter, cfg.Assembler),
		cfg:       cfg,
		busy:      newGuard(),
		metrics:   newMetrics(deps.Registerer),
	}, nil
}

// Answer runs the pipeline for req.
func (a *Advisor) Answer(ctx context.Context, req Request) (*Answer, error) {
	log := logging.Component(ctx, "advisor").With(slog.String("conversation_id", req.ConversationID))
	m := newMachine(log)
	start := time.Now()

	ans, err := a.run(ctx, log, m, req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, apperr.ErrCanceled) {
			err = apperr.New(apperr.KindCanceled, "advisor.Answer", err)
		}
		m.fail(ctx)
		a.metrics.answersTotal.WithLabelValues(apperr.Code(err)).Inc()
		log.Warn("answer failed",
			slog.String("kind", apperr.KindOf(err).String()),
			slog.Any("states", m.states()),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return nil, err
	}

	m.to(ctx, StateDone)
	ans.States = m.states()
	outcome := "ok"
	if ans.Degraded {
		outcome = "degraded"
	}
	a.metrics.answersTotal.WithLabelValues(outcome).Inc()
	if ans.Confidence != nil {
		a.metrics.answerConfidence.Observe(float64(*ans.Confidence))
	}
	log.Info("answer complete",
		slog.Int("citations", len(ans.Citations)),
		slog.Bool("degraded", ans.Degraded),
		slog.Duration("elapsed", time.Since(start)),
	)
	return ans, nil
}

type validated struct {
	question string
	language string
	document string
}

func (a *Advisor) run(ctx context.Context, log *slog.Logger, m *machine, req Request) (*Answer, error) {
	const op = "advisor.Answer"

	in, err := validate(req)
	if err != nil {
		return nil, err
	}
	if !a.busy.acquire(req.ConversationID) {
		return nil, apperr.Newf(apperr.KindConversationBusy, op, "conversation %s has a request in flight", req.ConversationID)
	}
	defer a.busy.release(req.ConversationID)

	// Retrieving: history is read once so the window cannot move under us.
	m.to(ctx, StateRetrieving)
	stage := time.Now()
	history, err := a.store.History(ctx, req.ConversationID, a.cfg.HistoryTurns)
	if err != nil {
		return nil, a.classify(ctx, op, apperr.KindInternal, err)
	}
	hits, rerr := a.retrieve(ctx, in.question)
	a.observe("retrieving", stage)
	if err := ctx.Err(); err != nil {
		return nil, apperr.New(apperr.KindCanceled, op, err)
	}

	degraded := false
	var scored []confidence.Scored
	switch {
	case rerr == nil:
		m.to(ctx, StateScoring)
		scored = a.scorer.ScoreAll(hits)
	case errors.Is(rerr, apperr.ErrRetrievalUnavailable):
		degraded = true
		log.Warn("retrieval unavailable, answering from history only", slog.Any("error", rerr))
	default:
		return nil, rerr
	}

	m.to(ctx, StateAssembling)
	stage = time.Now()
	pc, err := a.assembler.Assemble(assembler.Input{
		Question:     in.question,
		SystemPrompt: generator.SystemPrompt(in.language),
		Hits:         scored,
		History:      history,
		UploadedText: in.document,
	})
	a.observe("assembling", stage)
	if err != nil {
		return nil, err
	}
	log.Debug("context assembled",
		slog.Int("used", pc.Used()),
		slog.Int("reserved", pc.Reserved),
		slog.Int("budget", pc.Budget),
		slog.String("unit", pc.Unit),
		slog.Int("history_segments", len(pc.History())),
		slog.Int("retrieved_segments", len(pc.Retrieved())),
	)

	m.to(ctx, StateGenerating)
	stage = time.Now()
	text, err := a.generate(ctx, log, pc, in.question, in.language)
	a.observe("generating", stage)
	if err != nil {
		return nil, err
	}

	m.to(ctx, StatePostProcessing)
	stage = time.Now()
	ans := &Answer{
		ConversationID: req.ConversationID,
		Language:       in.language,
		Citations:      citations(pc.Included()),
		Degraded:       degraded,
	}
	// Each post-processing call gets its own generation timeout so a stall
	// there costs the extra, never the answer already generated.
	if req.Simplify {
		sctx, cancel := context.WithTimeout(ctx, a.cfg.GenerationTimeout)
		simple, err := a.gen.Simplify(sctx, text, generator.ModeSimple, in.language)
		cancel()
		switch {
		case ctx.Err() != nil:
			return nil, apperr.New(apperr.KindCanceled, op, ctx.Err())
		case err != nil:
			log.Warn("simplification failed, keeping original answer", slog.Any("error", err))
		default:
			text = simple
		}
	}
	ans.Text = text
	if req.FollowUps {
		fctx, cancel := context.WithTimeout(ctx, a.cfg.GenerationTimeout)
		qs, err := a.gen.FollowUps(fctx, in.question, text, in.language)
		cancel()
		if ctx.Err() != nil {
			return nil, apperr.New(apperr.KindCanceled, op, ctx.Err())
		}
		if err != nil {
			log.Warn("follow-up generation failed, using fallbacks", slog.Any("error", err))
		}
		filled := generator.FillFollowUps(qs, in.language)
		ans.FollowUps = filled[:]
	}
	if !degraded {
		if avg, ok := averageOf(ans.Citations); ok {
			ans.Confidence = &avg
			ans.Tier = a.scorer.Tier(avg)
			badge := confidence.BadgeFor(ans.Tier)
			ans.Badge = &badge
			if !confidence.ShouldAnswer(avg) {
				ans.Notice = lowConfidenceNotice(avg)
			}
		}
	}
	a.observe("post_processing", stage)

	if err := ctx.Err(); err != nil {
		return nil, apperr.New(apperr.KindCanceled, op, err)
	}
	_, assistant, err := a.store.AppendExchange(ctx, req.ConversationID, in.question, ans.Text, storeCitations(ans.Citations))
	if err != nil {
		return nil, a.classify(ctx, op, apperr.KindInternal, err)
	}
	ans.MessageID = assistant.ID
	return ans, nil
}

func validate(req Request) (validated, error) {
	const op = "advisor.validate"

	q := strings.TrimSpace(req.Question)
	if q == "" {
		return validated{}, apperr.Newf(apperr.KindInvalidInput, op, "question is empty")
	}
	if n := utf8.RuneCountInString(q); n > MaxQuestionRunes {
		return validated{}, apperr.Newf(apperr.KindInvalidInput, op, "question has %d characters, limit is %d", n, MaxQuestionRunes)
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		return validated{}, apperr.Newf(apperr.KindInvalidInput, op, "conversation id is empty")
	}
	lang := langdetect.Normalize(req.Language, q)
	if !langdetect.Supported(lang) {
		return validated{}, apperr.Newf(apperr.KindInvalidInput, op, "unsupported language %q (allowed: en, hi, mr)", req.Language)
	}

	var doc string
	if req.File != nil {
		text, err := extract.Text(req.File.Name, req.File.Data)
		if err != nil {
			return validated{}, err
		}
		doc = text
	}
	return validated{question: q, language: lang, document: doc}, nil
}

// retrieve treats a missing retriever as an unavailable one.
func (a *Advisor) retrieve(ctx context.Context, q string) ([]rag.Hit, error) {
	if a.retriever == nil {
		return nil, apperr.Newf(apperr.KindRetrievalUnavailable, "advisor.retrieve", "no knowledge base configured")
	}
	return a.retriever.Retrieve(ctx, q, a.cfg.TopK)
}

// generate calls the model, retrying once on GenerationFailed after a
// constant backoff.
func (a *Advisor) generate(ctx context.Context, log *slog.Logger, pc *assembler.PromptContext, q, lang string) (string, error) {
	const op = "advisor.generate"

	attempt := func() (string, error) {
		text, err := a.gen.Answer(ctx, pc, q, lang)
		if err != nil && !errors.Is(err, apperr.ErrGenerationFailed) {
			return "", backoff.Permanent(err)
		}
		return text, err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.cfg.RetryBackoff), uint64(a.cfg.GenerationRetries)),
		ctx,
	)
	text, err := backoff.RetryNotifyWithData(attempt, policy, func(err error, wait time.Duration) {
		a.metrics.generationRetries.Inc()
		log.Warn("generation failed, retrying",
			slog.Duration("backoff", wait),
			slog.Any("error", err),
		)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", apperr.New(apperr.KindCanceled, op, ctxErr)
	}
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return "", err
		}
		return "", apperr.New(apperr.KindGenerationFailed, op, err)
	}
	return text, nil
}

// classify wraps a dependency error, preferring Canceled when ctx is done.
func (a *Advisor) classify(ctx context.Context, op string, k apperr.Kind, err error) error {
	if ctx.Err() != nil {
		return apperr.New(apperr.KindCanceled, op, err)
	}
	return apperr.New(k, op, err)
}

func (a *Advisor) observe(stage string, since time.Time) {
	a.metrics.stageSeconds.WithLabelValues(stage).Observe(time.Since(since).Seconds())
}

// citations converts the included hits, already in descending confidence
// order, into citations.
func citations(included []confidence.Scored) []Citation {
	out := make([]Citation, 0, len(included))
	for _, h := range included {
		out = append(out, Citation{
			Rank:            h.Rank,
			ConfidenceScore: h.Score,
			SimilarityScore: h.Similarity,
			Tier:            h.Tier,
			SourceID:        h.Chunk.SourceID,
			SequenceIndex:   h.Chunk.SequenceIndex,
			Title:           h.Chunk.Metadata.Title,
			ChunkPreview:    preview(h.Chunk.Text),
		})
	}
	return out
}

func storeCitations(cs []Citation) []store.Citation {
	out := make([]store.Citation, len(cs))
	for i, c := range cs {
		out[i] = store.Citation{
			Rank:            c.Rank,
			ConfidenceScore: c.ConfidenceScore,
			SimilarityScore: c.SimilarityScore,
			SourceID:        c.SourceID,
			SequenceIndex:   c.SequenceIndex,
			Title:           c.Title,
			ChunkPreview:    c.ChunkPreview,
		}
	}
	return out
}

func averageOf(cs []Citation) (int, bool) {
	scored := make([]confidence.Scored, len(cs))
	for i, c := range cs {
		scored[i].Score = c.ConfidenceScore
	}
	return confidence.Average(scored)
}

// preview keeps the first PreviewRunes runes, marking a cut with "...".
func preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewRunes {
		return text
	}
	return string([]rune(text)[:PreviewRunes]) + "..."
}

func lowConfidenceNotice(avg int) string {
	return fmt.Sprintf("Confidence (%d%%) is below %d%%. This answer may be inaccurate; please verify it with your local agriculture office.",
		avg, confidence.AnswerThreshold)
}
