package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/langdetect"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/store"
)

// Mode selects a simplification style.
type Mode string

const (
	// ModeSimple rewrites text for a farmer with basic literacy.
	ModeSimple Mode = "simple"
	// ModeLegal explains legal or policy text in plain language.
	ModeLegal Mode = "legal"
)

// ParseMode validates a mode name. Empty means simple.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSimple:
		return ModeSimple, nil
	case ModeLegal:
		return ModeLegal, nil
	default:
		return "", apperr.Newf(apperr.KindInvalidInput, "generator.ParseMode", "unknown simplification mode %q", s)
	}
}

var (
	simpleTemplate = prompt.FromMessages(schema.FString,
		schema.SystemMessage(`Simplify this text for a farmer with basic literacy.
Use simple words, short sentences, and practical examples.
Write the result in {language}.
Keep it accurate but easy to understand.`),
		schema.UserMessage("{text}"),
	)

	legalTemplate = prompt.FromMessages(schema.FString,
		schema.SystemMessage(`Simplify legal or policy text into plain language, written in {language}.
- Explain each clause in simple terms
- Highlight what the farmer must do
- Point out important deadlines or conditions
- Use bullet points for clarity`),
		schema.UserMessage("{text}"),
	)

	followUpTemplate = prompt.FromMessages(schema.FString,
		schema.SystemMessage(`Generate 3 follow-up questions a farmer might ask next, written in {language}.
The questions should be practical, related to the conversation, and build on what was discussed.
Return only the questions, one per line.`),
		schema.UserMessage("Farmer: {question}\n\nAdvisor: {answer}"),
	)

	summaryTemplate = prompt.FromMessages(schema.FString,
		schema.SystemMessage(`You summarize farmer advisory conversations.
Write a concise, factual summary covering the main topics discussed, government schemes mentioned,
key advice given, and action items for the farmer. Keep it to 3 or 4 short paragraphs.`),
		schema.UserMessage("Please summarize this conversation:\n\n{conversation}"),
	)

	// Literal braces are doubled for FString.
	topicsTemplate = prompt.FromMessages(schema.FString,
		schema.SystemMessage(`Extract topics and government schemes from the text.
Return only JSON of the form {{"topics": ["..."], "schemes": ["..."]}}.
Topics are short snake_case labels such as crop_advisory, land_rights, insurance, water_management.`),
		schema.UserMessage("{text}"),
	)

	titleTemplate = prompt.FromMessages(schema.FString,
		schema.SystemMessage("Generate a short 3 to 6 word title summarizing the user's query. Return only the title, with no quotes or punctuation."),
		schema.UserMessage("{message}"),
	)
)

// Simplify rewrites text in the given mode and language.
func (g *Generator) Simplify(ctx context.Context, text string, mode Mode, language string) (string, error) {
	const op = "generator.Simplify"
	if strings.TrimSpace(text) == "" {
		return "", apperr.Newf(apperr.KindInvalidInput, op, "text is empty")
	}
	tpl, temp := simpleTemplate, float32(0.3)
	switch mode {
	case ModeSimple:
	case ModeLegal:
		tpl, temp = legalTemplate, 0.2
	default:
		return "", apperr.Newf(apperr.KindInvalidInput, op, "unknown simplification mode %q", mode)
	}
	msgs, err := tpl.Format(ctx, map[string]any{"language": langdetect.Name(language), "text": text})
	if err != nil {
		return "", apperr.New(apperr.KindInternal, op, err)
	}
	// Allow some expansion over the input length.
	maxTokens := max(2*len(strings.Fields(text)), 256)
	return g.generate(ctx, op, msgs, model.WithTemperature(temp), model.WithMaxTokens(maxTokens))
}

// FollowUps asks for follow-up questions and returns at most three cleaned
// lines. Callers pad the result with FillFollowUps.
func (g *Generator) FollowUps(ctx context.Context, question, answer, language string) ([]string, error) {
	const op = "generator.FollowUps"
	msgs, err := followUpTemplate.Format(ctx, map[string]any{
		"language": langdetect.Name(language),
		"question": question,
		"answer":   answer,
	})
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, op, err)
	}
	out, err := g.generate(ctx, op, msgs, model.WithTemperature(0.7), model.WithMaxTokens(200))
	if err != nil {
		return nil, err
	}
	return CleanFollowUps(out), nil
}

// Summarize writes a summary of a whole conversation.
func (g *Generator) Summarize(ctx context.Context, turns []store.Turn) (string, error) {
	const op = "generator.Summarize"
	if len(turns) == 0 {
		return "", apperr.Newf(apperr.KindInvalidInput, op, "conversation has no turns")
	}
	msgs, err := summaryTemplate.Format(ctx, map[string]any{"conversation": Transcript(turns)})
	if err != nil {
		return "", apperr.New(apperr.KindInternal, op, err)
	}
	return g.generate(ctx, op, msgs, model.WithTemperature(0.3), model.WithMaxTokens(500))
}

// Topics is the structured output of ExtractTopics.
type Topics struct {
	Topics  []string `json:"topics"`
	Schemes []string `json:"schemes"`
}

// ExtractTopics asks for topics and schemes as JSON. An unparsable reply is
// a GenerationFailed error so callers can fall back to keyword matching.
func (g *Generator) ExtractTopics(ctx context.Context, text string) (*Topics, error) {
	const op = "generator.ExtractTopics"
	msgs, err := topicsTemplate.Format(ctx, map[string]any{"text": text})
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, op, err)
	}
	out, err := g.generate(ctx, op, msgs, model.WithTemperature(0.1), model.WithMaxTokens(200))
	if err != nil {
		return nil, err
	}
	t, err := parseTopics(out)
	if err != nil {
		return nil, apperr.New(apperr.KindGenerationFailed, op, err)
	}
	return t, nil
}

// Title asks for a short title for a conversation's opening message. The
// reply is returned as-is; callers normalise it.
func (g *Generator) Title(ctx context.Context, message string) (string, error) {
	const op = "generator.Title"
	msgs, err := titleTemplate.Format(ctx, map[string]any{"message": message})
	if err != nil {
		return "", apperr.New(apperr.KindInternal, op, err)
	}
	return g.generate(ctx, op, msgs, model.WithTemperature(0.3), model.WithMaxTokens(20))
}

// Transcript renders turns as "Farmer: ..." / "Advisor: ..." paragraphs.
func Transcript(turns []store.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		who := "Farmer"
		if t.Role == store.RoleAssistant {
			who = "Advisor"
		}
		parts = append(parts, who+": "+t.Content)
	}
	return strings.Join(parts, "\n\n")
}

// parseTopics decodes the JSON object in s, tolerating a markdown fence or
// prose around it.
func parseTopics(s string) (*Topics, error) {
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	var t Topics
	if err := json.Unmarshal([]byte(s[start:end+1]), &t); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	t.Topics = cleanList(t.Topics)
	t.Schemes = cleanList(t.Schemes)
	return &t, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}
