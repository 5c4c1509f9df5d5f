package schemes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
)

func fullProfile() Profile {
	return Profile{
		State:             "Maharashtra",
		District:          "Nashik",
		LandHectares:      ptr(1.5),
		PrimaryCrop:       "Onion",
		SecondaryCrops:    []string{"grapes", " Wheat "},
		FarmingType:       "conventional",
		AnnualIncome:      ptr(int64(180000)),
		DBTEligible:       true,
		BankAccountLinked: true,
		AadhaarVerified:   true,
	}
}

func TestCheckEligibility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		profile  func(p *Profile)
		criteria Criteria
		missing  []string
	}{
		{name: "no criteria", criteria: Criteria{}},
		{name: "state matches ignoring case", criteria: Criteria{States: []string{"MAHARASHTRA", "Punjab"}}},
		{
			name:     "state outside list",
			criteria: Criteria{States: []string{"Punjab", "Haryana"}},
			missing:  []string{"Only available in: Punjab, Haryana"},
		},
		{
			name:     "unanswered state fails a state list",
			profile:  func(p *Profile) { p.State = "" },
			criteria: Criteria{States: []string{"Punjab"}},
			missing:  []string{"Only available in: Punjab"},
		},
		{
			name:     "below minimum land",
			criteria: Criteria{MinLandHectares: ptr(2.0)},
			missing:  []string{"Minimum 2 hectares required"},
		},
		{
			name:     "above maximum land",
			criteria: Criteria{MaxLandHectares: ptr(0.5)},
			missing:  []string{"Maximum 0.5 hectares allowed"},
		},
		{
			name:     "unanswered land passes land limits",
			profile:  func(p *Profile) { p.LandHectares = nil },
			criteria: Criteria{MinLandHectares: ptr(2.0), MaxLandHectares: ptr(0.5)},
		},
		{name: "secondary crop matches", criteria: Criteria{Crops: []string{"Wheat", "Rice"}}},
		{
			name:     "no crop matches",
			criteria: Criteria{Crops: []string{"Cotton", "Sugarcane"}},
			missing:  []string{"Crops must be: Cotton, Sugarcane"},
		},
		{
			name:     "dbt and bank account",
			profile:  func(p *Profile) { p.DBTEligible, p.BankAccountLinked = false, false },
			criteria: Criteria{RequiresDBT: true, RequiresBankAccount: true},
			missing:  []string{"Direct Benefit Transfer (DBT) required", "Bank account must be linked"},
		},
		{
			name:     "income over limit",
			criteria: Criteria{MaxAnnualIncome: ptr(int64(150000))},
			missing:  []string{"Income must not exceed ₹150000"},
		},
		{
			name:     "unanswered income passes",
			profile:  func(p *Profile) { p.AnnualIncome = nil },
			criteria: Criteria{MaxAnnualIncome: ptr(int64(150000))},
		},
		{
			name:    "every failure is listed in order",
			profile: func(p *Profile) { p.BankAccountLinked = false },
			criteria: Criteria{
				States:              []string{"Kerala"},
				MaxLandHectares:     ptr(1.0),
				RequiresBankAccount: true,
			},
			missing: []string{"Only available in: Kerala", "Maximum 1 hectares allowed", "Bank account must be linked"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := fullProfile()
			if tc.profile != nil {
				tc.profile(&p)
			}
			got := CheckEligibility(p, tc.criteria)
			if len(tc.missing) == 0 {
				assert.True(t, got.Eligible)
				assert.Empty(t, got.MissingRequirements)
				return
			}
			assert.False(t, got.Eligible)
			assert.Equal(t, tc.missing, got.MissingRequirements)
		})
	}
}

func TestProfileCompleteness(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, fullProfile().Completeness())
	assert.Equal(t, 0, Profile{}.Completeness())

	p := fullProfile()
	p.District = "  "
	assert.Equal(t, 83, p.Completeness())
}

func TestRecommend(t *testing.T) {
	t.Parallel()

	t.Run("splits the catalogue", func(t *testing.T) {
		t.Parallel()
		p := fullProfile()
		p.DBTEligible = false

		rec, err := Recommend(p)
		require.NoError(t, err)
		assert.Equal(t, len(All()), rec.TotalChecked)
		assert.Equal(t, len(rec.Eligible), rec.TotalEligible)
		assert.Equal(t, rec.TotalChecked, len(rec.Eligible)+len(rec.Ineligible))
		assert.Equal(t, 100, rec.ProfileCompleteness)

		var ineligible []string
		for _, s := range rec.Ineligible {
			ineligible = append(ineligible, s.ID)
			assert.Contains(t, s.MissingRequirements, "Direct Benefit Transfer (DBT) required")
		}
		assert.Equal(t, []string{"PM-KISAN", "PMKSY"}, ineligible)
	})

	t.Run("land cap on irrigation subsidy", func(t *testing.T) {
		t.Parallel()
		p := fullProfile()
		p.LandHectares = ptr(8.0)

		rec, err := Recommend(p, "pmksy", "SHC")
		require.NoError(t, err)
		assert.Equal(t, 2, rec.TotalChecked)
		require.Len(t, rec.Eligible, 1)
		assert.Equal(t, "SHC", rec.Eligible[0].ID)
		require.Len(t, rec.Ineligible, 1)
		assert.Equal(t, []string{"Maximum 5 hectares allowed"}, rec.Ineligible[0].MissingRequirements)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		t.Parallel()
		_, err := Recommend(fullProfile(), "PM-KISAN", "NOPE")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})
}

func TestDBTReadiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		profile   Profile
		score     int
		ready     bool
		nextSteps int
	}{
		{name: "complete and verified", profile: fullProfile(), score: 100, ready: true},
		{
			name: "bank account missing",
			profile: func() Profile {
				p := fullProfile()
				p.BankAccountLinked = false
				return p
			}(),
			score:     70,
			nextSteps: 1,
		},
		{
			// 30 + 30 + 5*40/6
			name: "one field unanswered",
			profile: func() Profile {
				p := fullProfile()
				p.AnnualIncome = nil
				return p
			}(),
			score: 93,
			ready: true,
		},
		{
			// 30 + 30 + 3*40/6, and 50% completeness asks for more
			name: "half the profile",
			profile: Profile{
				State: "Bihar", PrimaryCrop: "Maize", FarmingType: "organic",
				AadhaarVerified: true, BankAccountLinked: true,
			},
			score:     80,
			ready:     true,
			nextSteps: 1,
		},
		{name: "empty profile", profile: Profile{}, score: 0, nextSteps: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DBTReadiness(tc.profile)
			assert.Equal(t, tc.score, got.Score)
			assert.Equal(t, tc.ready, got.Ready)
			assert.Len(t, got.NextSteps, tc.nextSteps)
			assert.Len(t, got.Details, 3)
		})
	}
}

func TestProfileValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, fullProfile().Validate())
	assert.NoError(t, Profile{}.Validate())

	p := fullProfile()
	p.LandHectares = ptr(-1.0)
	assert.True(t, errors.Is(p.Validate(), apperr.ErrInvalidInput))

	p = fullProfile()
	p.AnnualIncome = ptr(int64(-5))
	assert.True(t, errors.Is(p.Validate(), apperr.ErrInvalidInput))
}
