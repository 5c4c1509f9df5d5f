// Package generator turns an assembled prompt context into text with a chat
// model. It owns every prompt the advisor sends: the grounded answer and the
// conversation-intelligence transforms (simplify, follow-ups, summary,
// topic extraction, title).
//
// Every model failure, empty reply, or timeout is reported as a
// GenerationFailed error; cancellation of the caller's context is reported
// as Canceled. Retrying is the caller's concern.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/assembler"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/langdetect"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/store"
)

// DefaultTimeout bounds one model call.
const DefaultTimeout = 30 * time.Second

const systemPrompt = `You are an expert Farmer Advisory assistant for Indian farmers, giving guidance on:
- Government schemes and subsidies
- Crop advisory and best practices
- Land and legal matters
- Agricultural policies
- Insurance assistance
- Sustainable farming techniques

Answer in %s. Keep answers concise (about 100 words) and actionable.
When referencing government schemes, give the scheme name and eligibility criteria.
Ground your answer in the knowledge base excerpts and the uploaded document when they are provided,
and cite excerpts by their number, for example [1]. If the excerpts do not cover the question,
say so and give general guidance.`

// SystemPrompt renders the answer system prompt for a language code. The
// advisor reserves its size in the context budget before assembly.
func SystemPrompt(language string) string {
	return fmt.Sprintf(systemPrompt, langdetect.Name(language))
}

var answerTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage("{system}"),
	schema.MessagesPlaceholder("history", true),
	schema.UserMessage("{context}Question: {question}"),
)

// Generator issues prompts to a chat model.
type Generator struct {
	model   model.BaseChatModel
	timeout time.Duration
}

// New returns a Generator over cm. A non-positive timeout uses DefaultTimeout.
func New(cm model.BaseChatModel, timeout time.Duration) (*Generator, error) {
	if cm == nil {
		return nil, errors.New("generator: chat model is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{model: cm, timeout: timeout}, nil
}

// Answer generates the grounded answer for question from pc. History turns
// become real user/assistant messages; the document and retrieved excerpts
// are rendered into the final user message with their citation numbers.
func (g *Generator) Answer(ctx context.Context, pc *assembler.PromptContext, question, language string) (string, error) {
	const op = "generator.Answer"

	msgs, err := answerTemplate.Format(ctx, map[string]any{
		"system":   SystemPrompt(language),
		"history":  historyMessages(pc),
		"context":  renderContext(pc),
		"question": question,
	})
	if err != nil {
		return "", apperr.New(apperr.KindInternal, op, fmt.Errorf("format prompt: %w", err))
	}
	return g.generate(ctx, op, msgs, model.WithTemperature(0.3), model.WithMaxTokens(1024))
}

// generate runs one bounded model call and normalises its failures.
func (g *Generator) generate(ctx context.Context, op string, msgs []*schema.Message, opts ...model.Option) (string, error) {
	log := logging.Component(ctx, "generator")

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	msg, err := g.model.Generate(callCtx, msgs, opts...)
	if ctx.Err() != nil {
		return "", apperr.New(apperr.KindCanceled, op, ctx.Err())
	}
	if err != nil {
		log.Warn("model call failed",
			slog.String("op", op),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return "", apperr.New(apperr.KindGenerationFailed, op, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", apperr.Newf(apperr.KindGenerationFailed, op, "model returned empty content")
	}
	log.Debug("model call complete",
		slog.String("op", op),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("messages", len(msgs)),
	)
	return strings.TrimSpace(msg.Content), nil
}

func historyMessages(pc *assembler.PromptContext) []*schema.Message {
	if pc == nil {
		return nil
	}
	var out []*schema.Message
	for _, s := range pc.History() {
		switch s.Role {
		case store.RoleUser:
			out = append(out, schema.UserMessage(s.Text))
		case store.RoleAssistant:
			out = append(out, schema.AssistantMessage(s.Text, nil))
		}
	}
	return out
}

// renderContext formats the document and retrieved segments. The result is
// empty when neither is present so the user message is just the question.
func renderContext(pc *assembler.PromptContext) string {
	if pc == nil {
		return ""
	}
	var sb strings.Builder
	if doc, ok := pc.Document(); ok {
		sb.WriteString("## Uploaded document\n")
		sb.WriteString(doc)
		sb.WriteString("\n\n")
	}
	if ret := pc.Retrieved(); len(ret) > 0 {
		sb.WriteString("## Knowledge base excerpts\n")
		for _, s := range ret {
			fmt.Fprintf(&sb, "[%d]", s.CitationIndex)
			if t := s.Hit.Chunk.Metadata.Title; t != "" {
				fmt.Fprintf(&sb, " %s", t)
			}
			sb.WriteString("\n")
			sb.WriteString(s.Text)
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
