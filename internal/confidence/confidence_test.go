package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/rag"
)

func hit(sim float64, rank int, complete bool) rag.Hit {
	h := rag.Hit{Similarity: sim, Rank: rank}
	if complete {
		h.Chunk.Metadata = rag.Metadata{Title: "PM-KISAN", Source: "pmkisan.gov.in"}
	}
	return h
}

func TestRankFactor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rank, total int
		want        float64
	}{
		{1, 1, 1},
		{1, 0, 1},
		{1, 3, 1},
		{2, 3, 0.5},
		{3, 3, 0},
		{1, 5, 1},
		{5, 5, 0},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, RankFactor(tc.rank, tc.total), 1e-9, "rank %d of %d", tc.rank, tc.total)
	}
}

func TestScore_PMKisanScenario(t *testing.T) {
	t.Parallel()

	s := Default()
	sims := []float64{0.91, 0.75, 0.40}
	var scores []int
	var tiers []Tier
	for i, sim := range sims {
		sc := s.Score(hit(sim, i+1, false), len(sims))
		scores = append(scores, sc)
		tiers = append(tiers, s.Tier(sc))
	}

	assert.GreaterOrEqual(t, scores[0], 80)
	assert.GreaterOrEqual(t, scores[1], 50)
	assert.LessOrEqual(t, scores[1], 70)
	assert.Less(t, scores[2], 40)
	assert.Equal(t, []int{85, 60, 24}, scores)
	assert.Equal(t, []Tier{TierHigh, TierMedium, TierLow}, tiers)
}

func TestScore_MetadataFactor(t *testing.T) {
	t.Parallel()

	s := Default()
	assert.Equal(t, 100, s.Score(hit(1, 1, true), 1))
	assert.Equal(t, 90, s.Score(hit(1, 1, false), 1))
	assert.Equal(t, 40, s.Score(hit(0, 1, true), 1))
}

func TestScore_AlwaysInRange(t *testing.T) {
	t.Parallel()

	s := New(Weights{Similarity: 200, Rank: 30, Metadata: 10}, DefaultThresholds)
	for _, sim := range []float64{-1, 0, 0.5, 1, 2} {
		for total := 1; total <= 4; total++ {
			for rank := 1; rank <= total; rank++ {
				got := s.Score(hit(sim, rank, rank%2 == 0), total)
				assert.GreaterOrEqual(t, got, 0)
				assert.LessOrEqual(t, got, 100)
			}
		}
	}
}

func TestTier_MonotonicAndBoundaries(t *testing.T) {
	t.Parallel()

	s := Default()
	order := map[Tier]int{TierLow: 0, TierMedium: 1, TierHigh: 2}
	prev := -1
	for score := 0; score <= 100; score++ {
		cur := order[s.Tier(score)]
		assert.GreaterOrEqual(t, cur, prev, "score %d", score)
		prev = cur
	}
	assert.Equal(t, TierHigh, s.Tier(70))
	assert.Equal(t, TierMedium, s.Tier(69))
	assert.Equal(t, TierMedium, s.Tier(40))
	assert.Equal(t, TierLow, s.Tier(39))
}

func TestNew_InvalidThresholdsFallBack(t *testing.T) {
	t.Parallel()

	s := New(DefaultWeights, Thresholds{High: 30, Medium: 60})
	assert.Equal(t, DefaultThresholds, s.Thresholds())

	s = New(DefaultWeights, Thresholds{High: 80, Medium: 50})
	assert.Equal(t, TierMedium, s.Tier(79))
}

func TestAverageAndShouldAnswer(t *testing.T) {
	t.Parallel()

	_, ok := Average(nil)
	assert.False(t, ok)

	avg, ok := Average([]Scored{{Score: 85}, {Score: 60}, {Score: 24}})
	assert.True(t, ok)
	assert.Equal(t, 56, avg)
	assert.True(t, ShouldAnswer(avg))
	assert.False(t, ShouldAnswer(49))
}

func TestBadgeFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "green", BadgeFor(TierHigh).Color)
	assert.Equal(t, "Low Confidence", BadgeFor(TierLow).Label)
}
