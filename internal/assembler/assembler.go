// Package assembler builds the bounded prompt context for one answer from
// three sources: an uploaded document, recent conversation turns, and scored
// knowledge-base hits. Every included segment carries a provenance tag and
// citations are derived only from the retrieved segments that made it in.
package assembler

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/budget"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/confidence"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/rag"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/store"
)

const (
	// DefaultBudget is the context size in counter units.
	DefaultBudget = 12000
	// DefaultDocumentShare is the fraction of the budget reserved for an
	// uploaded document.
	DefaultDocumentShare = 0.25
	// DefaultHistoryShare is the fraction of the budget history may use.
	DefaultHistoryShare = 0.30
)

// Kind is the provenance of a segment.
type Kind string

const (
	KindHistory   Kind = "history"
	KindDocument  Kind = "document"
	KindRetrieved Kind = "retrieved"
)

// Segment is one piece of prompt text with its provenance.
type Segment struct {
	Kind Kind
	Text string
	// Role is set for history segments.
	Role store.Role
	// CitationIndex is the 1-based citation number of a retrieved segment.
	CitationIndex int
	// Hit is the scored source of a retrieved segment.
	Hit confidence.Scored
}

// Tag renders the provenance tag: "history", "document" or "retrieved[i]".
func (s Segment) Tag() string {
	if s.Kind == KindRetrieved {
		return fmt.Sprintf("retrieved[%d]", s.CitationIndex)
	}
	return string(s.Kind)
}

// PromptContext is the assembled context. Segments are ordered history
// (chronological), then document, then retrieved chunks by citation index.
type PromptContext struct {
	Segments []Segment
	Budget   int
	Reserved int
	Unit     string
	used     int
}

// Used is the size of all segments in the assembler's unit.
func (pc *PromptContext) Used() int { return pc.used }

// History returns the history segments in chronological order.
func (pc *PromptContext) History() []Segment { return pc.filter(KindHistory) }

// Retrieved returns the retrieved segments in citation order.
func (pc *PromptContext) Retrieved() []Segment { return pc.filter(KindRetrieved) }

// Document returns the (possibly truncated) uploaded document text.
func (pc *PromptContext) Document() (string, bool) {
	for _, s := range pc.Segments {
		if s.Kind == KindDocument {
			return s.Text, true
		}
	}
	return "", false
}

// Included returns the hits that made it into the context, in citation order.
func (pc *PromptContext) Included() []confidence.Scored {
	var out []confidence.Scored
	for _, s := range pc.Segments {
		if s.Kind == KindRetrieved {
			out = append(out, s.Hit)
		}
	}
	return out
}

func (pc *PromptContext) filter(k Kind) []Segment {
	var out []Segment
	for _, s := range pc.Segments {
		if s.Kind == k {
			out = append(out, s)
		}
	}
	return out
}

// Input is everything one assembly needs.
type Input struct {
	Question     string
	SystemPrompt string
	Hits         []confidence.Scored
	// History is ordered most-recent-last.
	History      []store.Turn
	UploadedText string
}

// Config holds the budget and shares. Zero values take the defaults.
type Config struct {
	Budget        int
	DocumentShare float64
	HistoryShare  float64
}

// Assembler is stateless apart from its configuration and is safe for
// concurrent use.
type Assembler struct {
	counter   budget.Counter
	budget    int
	docShare  float64
	histShare float64
}

// New returns an Assembler measuring with counter. A nil counter counts
// characters.
func New(counter budget.Counter, cfg Config) *Assembler {
	if counter == nil {
		counter = budget.Chars{}
	}
	a := &Assembler{
		counter:   counter,
		budget:    cfg.Budget,
		docShare:  cfg.DocumentShare,
		histShare: cfg.HistoryShare,
	}
	if a.budget <= 0 {
		a.budget = DefaultBudget
	}
	if a.docShare <= 0 || a.docShare >= 1 {
		a.docShare = DefaultDocumentShare
	}
	if a.histShare <= 0 || a.histShare >= 1 {
		a.histShare = DefaultHistoryShare
	}
	return a
}

// Budget returns the configured budget.
func (a *Assembler) Budget() int { return a.budget }

// Assemble fits the inputs into the budget. The question and system prompt
// are reserved first; if they alone exceed the budget the result is a
// ContextBudgetExceeded error. The output is a pure function of in.
func (a *Assembler) Assemble(in Input) (*PromptContext, error) {
	const op = "assembler.Assemble"

	reserved := a.counter.Count(in.SystemPrompt) + a.counter.Count(in.Question)
	if reserved > a.budget {
		return nil, apperr.Newf(apperr.KindContextBudgetExceeded, op,
			"question and instructions need %d %s, budget is %d", reserved, a.counter.Unit(), a.budget)
	}
	remaining := a.budget - reserved
	pc := &PromptContext{Budget: a.budget, Reserved: reserved, Unit: a.counter.Unit()}

	var doc *Segment
	if in.UploadedText != "" && remaining > 0 {
		share := min(int(math.Floor(float64(a.budget)*a.docShare)), remaining)
		text := budget.CutWords(a.counter, in.UploadedText, share)
		if text != "" {
			n := a.counter.Count(text)
			remaining -= n
			pc.used += n
			doc = &Segment{Kind: KindDocument, Text: text}
		}
	}

	history := a.fitHistory(in.History, min(int(math.Floor(float64(a.budget)*a.histShare)), remaining))
	for _, s := range history {
		n := a.counter.Count(s.Text)
		remaining -= n
		pc.used += n
	}
	pc.Segments = append(pc.Segments, history...)
	if doc != nil {
		pc.Segments = append(pc.Segments, *doc)
	}

	seen := make(map[rag.Key]bool, len(in.Hits))
	idx := 0
	for _, h := range orderHits(in.Hits) {
		key := h.Chunk.Key()
		if seen[key] {
			continue
		}
		n := a.counter.Count(h.Chunk.Text)
		if n == 0 || n > remaining {
			continue
		}
		seen[key] = true
		idx++
		remaining -= n
		pc.used += n
		pc.Segments = append(pc.Segments, Segment{
			Kind:          KindRetrieved,
			Text:          h.Chunk.Text,
			CitationIndex: idx,
			Hit:           h,
		})
	}
	return pc, nil
}

// fitHistory takes whole turns from newest to oldest until limit is reached
// and returns them oldest first.
func (a *Assembler) fitHistory(turns []store.Turn, limit int) []Segment {
	var picked []Segment
	for i := len(turns) - 1; i >= 0; i-- {
		n := a.counter.Count(turns[i].Content)
		if n > limit {
			break
		}
		limit -= n
		picked = append(picked, Segment{Kind: KindHistory, Role: turns[i].Role, Text: turns[i].Content})
	}
	slices.Reverse(picked)
	return picked
}

// orderHits sorts a copy of hits by descending confidence, then ascending rank.
func orderHits(hits []confidence.Scored) []confidence.Scored {
	out := slices.Clone(hits)
	slices.SortStableFunc(out, func(a, b confidence.Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Rank, b.Rank)
	})
	return out
}
