package advisor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/generator"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/langdetect"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/schemes"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/store"
)

// Summary is a conversation summary. It is derived from the turns and may
// be regenerated at any time; Cached reports whether it came from storage.
type Summary struct {
	ConversationID   string   `json:"conversation_id"`
	Text             string   `json:"summary"`
	KeyTopics        []string `json:"key_topics"`
	SchemesDiscussed []string `json:"schemes_discussed"`
	TurnCount        int      `json:"turn_count"`
	Cached           bool     `json:"cached"`
}

// Summarize summarises a whole conversation. A cached summary is reused
// while the conversation has not grown since it was written.
func (a *Advisor) Summarize(ctx context.Context, conversationID string) (*Summary, error) {
	const op = "advisor.Summarize"
	log := logging.Component(ctx, "advisor").With(slog.String("conversation_id", conversationID))

	if strings.TrimSpace(conversationID) == "" {
		return nil, apperr.Newf(apperr.KindInvalidInput, op, "conversation id is empty")
	}
	n, err := a.store.CountTurns(ctx, conversationID)
	if err != nil {
		return nil, a.classify(ctx, op, apperr.KindInternal, err)
	}
	if n == 0 {
		return nil, apperr.Newf(apperr.KindNotFound, op, "conversation %s has no turns", conversationID)
	}

	cached, err := a.store.Summary(ctx, conversationID)
	switch {
	case err == nil && cached.TurnCount == n:
		return &Summary{
			ConversationID:   conversationID,
			Text:             cached.Text,
			KeyTopics:        nonNil(cached.KeyTopics),
			SchemesDiscussed: nonNil(cached.SchemesDiscussed),
			TurnCount:        n,
			Cached:           true,
		}, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		log.Warn("could not read cached summary", slog.Any("error", err))
	}

	turns, err := a.store.History(ctx, conversationID, 0)
	if err != nil {
		return nil, a.classify(ctx, op, apperr.KindInternal, err)
	}
	text, err := a.gen.Summarize(ctx, turns)
	if err != nil {
		return nil, err
	}

	sum := &Summary{ConversationID: conversationID, Text: text, TurnCount: len(turns)}
	topics, err := a.gen.ExtractTopics(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.New(apperr.KindCanceled, op, ctx.Err())
		}
		log.Warn("topic extraction failed, using keyword matching", slog.Any("error", err))
		corpus := text + "\n" + generator.Transcript(turns)
		sum.KeyTopics = keywordTopics(corpus)
		sum.SchemesDiscussed = schemes.MatchIDs(corpus)
	} else {
		sum.KeyTopics = topics.Topics
		sum.SchemesDiscussed = topics.Schemes
	}
	sum.KeyTopics = nonNil(sum.KeyTopics)
	sum.SchemesDiscussed = nonNil(sum.SchemesDiscussed)

	if err := a.store.SaveSummary(ctx, conversationID, store.Summary{
		Text:             sum.Text,
		KeyTopics:        sum.KeyTopics,
		SchemesDiscussed: sum.SchemesDiscussed,
		TurnCount:        sum.TurnCount,
	}); err != nil {
		log.Warn("could not cache summary", slog.Any("error", err))
	}
	return sum, nil
}

// Simplify rewrites text on demand. mode is "simple" or "legal"; an empty
// language is detected from the text. Failures are reported, never masked.
func (a *Advisor) Simplify(ctx context.Context, text, mode, language string) (string, error) {
	const op = "advisor.Simplify"
	m, err := generator.ParseMode(mode)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.Newf(apperr.KindInvalidInput, op, "text is empty")
	}
	lang := langdetect.Normalize(language, text)
	if !langdetect.Supported(lang) {
		return "", apperr.Newf(apperr.KindInvalidInput, op, "unsupported language %q", language)
	}
	return a.gen.Simplify(ctx, text, m, lang)
}

// Title returns the conversation's title, generating and storing one from
// the first question when none exists yet.
func (a *Advisor) Title(ctx context.Context, conversationID string) (string, error) {
	const op = "advisor.Title"
	log := logging.Component(ctx, "advisor").With(slog.String("conversation_id", conversationID))

	if strings.TrimSpace(conversationID) == "" {
		return "", apperr.Newf(apperr.KindInvalidInput, op, "conversation id is empty")
	}
	title, err := a.store.Title(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperr.New(apperr.KindNotFound, op, err)
	}
	if err != nil {
		return "", a.classify(ctx, op, apperr.KindInternal, err)
	}
	if title != "" {
		return title, nil
	}

	turns, err := a.store.History(ctx, conversationID, 0)
	if err != nil {
		return "", a.classify(ctx, op, apperr.KindInternal, err)
	}
	first := ""
	for _, t := range turns {
		if t.Role == store.RoleUser {
			first = t.Content
			break
		}
	}

	if first != "" {
		raw, err := a.gen.Title(ctx, first)
		if ctx.Err() != nil {
			return "", apperr.New(apperr.KindCanceled, op, ctx.Err())
		}
		if err != nil {
			log.Warn("title generation failed, using keywords", slog.Any("error", err))
		} else {
			title = cleanTitle(raw)
		}
	}
	if title == "" {
		title = keywordTitle(first)
	}

	if err := a.store.SetTitle(ctx, conversationID, title); err != nil {
		log.Warn("could not store title", slog.Any("error", err))
	}
	return title, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
