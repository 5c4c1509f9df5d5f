// Package confidence turns a retrieval hit into a 0–100 confidence score and
// a coarse tier. The weights and thresholds are product settings carried over
// unchanged from earlier releases; they are configurable but the defaults must
// stay stable for clients that compare scores across versions.
package confidence

import (
	"math"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/rag"
)

// Tier is a coarse confidence bucket.
type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
)

// Weights are the score contributions of each factor. They sum to 100.
type Weights struct {
	Similarity float64
	Rank       float64
	Metadata   float64
}

// Thresholds are the minimum scores for the High and Medium tiers.
type Thresholds struct {
	High   int
	Medium int
}

// DefaultWeights and DefaultThresholds are the compatibility defaults.
var (
	DefaultWeights    = Weights{Similarity: 60, Rank: 30, Metadata: 10}
	DefaultThresholds = Thresholds{High: 70, Medium: 40}
)

// AnswerThreshold is the average score below which an answer carries a
// low-confidence disclaimer.
const AnswerThreshold = 50

// Scorer computes confidence scores. The zero value is not usable; use
// [Default] or [New].
type Scorer struct {
	w Weights
	t Thresholds
}

// Default returns a Scorer with the compatibility weights and thresholds.
func Default() Scorer {
	return Scorer{w: DefaultWeights, t: DefaultThresholds}
}

// New returns a Scorer with custom weights and thresholds. Invalid
// thresholds (Medium > High, or out of range) fall back to the defaults.
func New(w Weights, t Thresholds) Scorer {
	if t.Medium > t.High || t.Medium < 0 || t.High > 100 {
		t = DefaultThresholds
	}
	return Scorer{w: w, t: t}
}

// Thresholds returns the tier thresholds in use.
func (s Scorer) Thresholds() Thresholds { return s.t }

// RankFactor is 1 for the first hit falling linearly to 0 for the last.
// A single hit always gets 1.
func RankFactor(rank, totalHits int) float64 {
	if totalHits <= 1 {
		return 1
	}
	f := 1 - float64(rank-1)/float64(max(totalHits-1, 1))
	return math.Max(0, math.Min(1, f))
}

// Score returns the confidence of hit among totalHits, clamped to [0, 100]
// and rounded half away from zero.
func (s Scorer) Score(hit rag.Hit, totalHits int) int {
	meta := 0.0
	if hit.Chunk.Metadata.Complete() {
		meta = 1
	}
	raw := s.w.Similarity*hit.Similarity + s.w.Rank*RankFactor(hit.Rank, totalHits) + s.w.Metadata*meta
	return int(math.Round(math.Max(0, math.Min(100, raw))))
}

// Tier maps a score to its bucket.
func (s Scorer) Tier(score int) Tier {
	switch {
	case score >= s.t.High:
		return TierHigh
	case score >= s.t.Medium:
		return TierMedium
	default:
		return TierLow
	}
}

// Scored pairs a hit with its confidence.
type Scored struct {
	rag.Hit
	Score int
	Tier  Tier
}

// ScoreAll scores every hit against the full list length.
func (s Scorer) ScoreAll(hits []rag.Hit) []Scored {
	out := make([]Scored, len(hits))
	for i, h := range hits {
		score := s.Score(h, len(hits))
		out[i] = Scored{Hit: h, Score: score, Tier: s.Tier(score)}
	}
	return out
}

// Average is the rounded mean score, or false for an empty list.
func Average(scored []Scored) (int, bool) {
	if len(scored) == 0 {
		return 0, false
	}
	sum := 0
	for _, sc := range scored {
		sum += sc.Score
	}
	return int(math.Round(float64(sum) / float64(len(scored)))), true
}

// ShouldAnswer reports whether an average score is high enough to answer
// without a disclaimer.
func ShouldAnswer(avg int) bool {
	return avg >= AnswerThreshold
}

// Badge is the display label and colour for a tier.
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// BadgeFor returns the display badge for t.
func BadgeFor(t Tier) Badge {
	switch t {
	case TierHigh:
		return Badge{Label: "High Confidence", Color: "green"}
	case TierMedium:
		return Badge{Label: "Medium Confidence", Color: "yellow"}
	default:
		return Badge{Label: "Low Confidence", Color: "red"}
	}
}
