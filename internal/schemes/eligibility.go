package schemes

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
)

// Profile is what a farmer has told us about themselves and their holding.
// Nil pointers and empty strings are unanswered.
type Profile struct {
	State          string   `json:"state,omitempty"`
	District       string   `json:"district,omitempty"`
	LandHectares   *float64 `json:"land_size_hectares,omitempty"`
	PrimaryCrop    string   `json:"primary_crop,omitempty"`
	SecondaryCrops []string `json:"secondary_crops,omitempty"`
	FarmingType    string   `json:"farming_type,omitempty"`
	// AnnualIncome is in rupees.
	AnnualIncome *int64 `json:"annual_income,omitempty"`

	DBTEligible       bool `json:"dbt_eligible"`
	BankAccountLinked bool `json:"bank_account_linked"`
	AadhaarVerified   bool `json:"aadhaar_verified"`
}

// Validate rejects values no real holding can have.
func (p Profile) Validate() error {
	const op = "schemes.Profile"
	if p.LandHectares != nil && *p.LandHectares < 0 {
		return apperr.Newf(apperr.KindInvalidInput, op, "land_size_hectares must not be negative")
	}
	if p.AnnualIncome != nil && *p.AnnualIncome < 0 {
		return apperr.Newf(apperr.KindInvalidInput, op, "annual_income must not be negative")
	}
	return nil
}

// Completeness is the percentage of the six descriptive fields answered:
// state, district, land size, primary crop, farming type and income.
func (p Profile) Completeness() int {
	return p.answered() * 100 / profileFields
}

const profileFields = 6

func (p Profile) answered() int {
	n := 0
	for _, ok := range []bool{
		strings.TrimSpace(p.State) != "",
		strings.TrimSpace(p.District) != "",
		p.LandHectares != nil,
		strings.TrimSpace(p.PrimaryCrop) != "",
		strings.TrimSpace(p.FarmingType) != "",
		p.AnnualIncome != nil,
	} {
		if ok {
			n++
		}
	}
	return n
}

func (p Profile) crops() []string {
	out := make([]string, 0, 1+len(p.SecondaryCrops))
	for _, c := range append([]string{p.PrimaryCrop}, p.SecondaryCrops...) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Criteria are the profile conditions a scheme imposes. Zero values impose
// nothing. Land and income limits pass when the profile leaves them
// unanswered.
type Criteria struct {
	// States lists where the scheme runs. Empty means every state.
	States          []string `json:"states,omitempty"`
	MinLandHectares *float64 `json:"min_land_hectares,omitempty"`
	MaxLandHectares *float64 `json:"max_land_hectares,omitempty"`
	// Crops lists covered crops. One primary or secondary crop must match.
	Crops               []string `json:"crops,omitempty"`
	RequiresDBT         bool     `json:"requires_dbt,omitempty"`
	RequiresBankAccount bool     `json:"requires_bank_account,omitempty"`
	MaxAnnualIncome     *int64   `json:"max_annual_income,omitempty"`
}

// Eligibility is the outcome of checking a profile against one scheme.
type Eligibility struct {
	Eligible            bool     `json:"eligible"`
	MissingRequirements []string `json:"missing_requirements"`
	ProfileCompleteness int      `json:"profile_completeness"`
}

// CheckEligibility lists every criterion p fails. Comparisons of states and
// crops ignore case.
func CheckEligibility(p Profile, c Criteria) Eligibility {
	missing := []string{}

	if len(c.States) > 0 && !containsFold(c.States, p.State) {
		missing = append(missing, "Only available in: "+strings.Join(c.States, ", "))
	}
	if p.LandHectares != nil {
		land := *p.LandHectares
		if c.MinLandHectares != nil && land < *c.MinLandHectares {
			missing = append(missing, fmt.Sprintf("Minimum %s hectares required", hectares(*c.MinLandHectares)))
		}
		if c.MaxLandHectares != nil && land > *c.MaxLandHectares {
			missing = append(missing, fmt.Sprintf("Maximum %s hectares allowed", hectares(*c.MaxLandHectares)))
		}
	}
	if len(c.Crops) > 0 && !slices.ContainsFunc(p.crops(), func(crop string) bool {
		return containsFold(c.Crops, crop)
	}) {
		missing = append(missing, "Crops must be: "+strings.Join(c.Crops, ", "))
	}
	if c.RequiresDBT && !p.DBTEligible {
		missing = append(missing, "Direct Benefit Transfer (DBT) required")
	}
	if c.RequiresBankAccount && !p.BankAccountLinked {
		missing = append(missing, "Bank account must be linked")
	}
	if c.MaxAnnualIncome != nil && p.AnnualIncome != nil && *p.AnnualIncome > *c.MaxAnnualIncome {
		missing = append(missing, fmt.Sprintf("Income must not exceed ₹%d", *c.MaxAnnualIncome))
	}

	return Eligibility{
		Eligible:            len(missing) == 0,
		MissingRequirements: missing,
		ProfileCompleteness: p.Completeness(),
	}
}

// SchemeEligibility is one catalogue entry checked against a profile.
type SchemeEligibility struct {
	Scheme
	Eligible            bool     `json:"eligible"`
	MissingRequirements []string `json:"missing_requirements"`
}

// Recommendation splits the checked schemes by outcome, each side in
// catalogue order.
type Recommendation struct {
	Eligible            []SchemeEligibility `json:"eligible_schemes"`
	Ineligible          []SchemeEligibility `json:"ineligible_schemes"`
	TotalEligible       int                 `json:"total_eligible"`
	TotalChecked        int                 `json:"total_checked"`
	ProfileCompleteness int                 `json:"profile_completeness"`
}

// Recommend checks p against the schemes named by ids, or the whole
// catalogue when ids is empty. An unknown ID is [apperr.KindNotFound].
func Recommend(p Profile, ids ...string) (Recommendation, error) {
	list := catalogue
	if len(ids) > 0 {
		list = make([]Scheme, 0, len(ids))
		for _, id := range ids {
			s, ok := Lookup(id)
			if !ok {
				return Recommendation{}, apperr.Newf(apperr.KindNotFound, "schemes.Recommend", "unknown scheme %q", id)
			}
			list = append(list, s)
		}
	}

	rec := Recommendation{
		Eligible:            []SchemeEligibility{},
		Ineligible:          []SchemeEligibility{},
		TotalChecked:        len(list),
		ProfileCompleteness: p.Completeness(),
	}
	for _, s := range list {
		e := CheckEligibility(p, s.Criteria)
		se := SchemeEligibility{Scheme: s, Eligible: e.Eligible, MissingRequirements: e.MissingRequirements}
		if e.Eligible {
			rec.Eligible = append(rec.Eligible, se)
		} else {
			rec.Ineligible = append(rec.Ineligible, se)
		}
	}
	rec.TotalEligible = len(rec.Eligible)
	return rec, nil
}

// Readiness scores how close a farmer is to receiving Direct Benefit
// Transfer payments.
type Readiness struct {
	Score     int      `json:"dbt_readiness_score"`
	Ready     bool     `json:"ready_for_dbt"`
	Details   []string `json:"details"`
	NextSteps []string `json:"next_steps"`
}

// Readiness weights and thresholds.
const (
	aadhaarPoints      = 30
	bankPoints         = 30
	completenessPoints = 40
	// ReadyScore is the lowest score reported as ready.
	ReadyScore = 80
	// completeEnough is the completeness below which filling the profile
	// is suggested.
	completeEnough = 80
)

// DBTReadiness scores p out of 100: 30 for a verified Aadhaar, 30 for a
// linked bank account and up to 40 for profile completeness.
func DBTReadiness(p Profile) Readiness {
	r := Readiness{Details: []string{}, NextSteps: []string{}}

	if p.AadhaarVerified {
		r.Score += aadhaarPoints
		r.Details = append(r.Details, "Aadhaar verified")
	} else {
		r.Details = append(r.Details, "Aadhaar verification pending")
		r.NextSteps = append(r.NextSteps, "Verify your Aadhaar number at the nearest enrolment centre or CSC")
	}

	if p.BankAccountLinked {
		r.Score += bankPoints
		r.Details = append(r.Details, "Bank account linked")
	} else {
		r.Details = append(r.Details, "Bank account linking pending")
		r.NextSteps = append(r.NextSteps, "Link your bank account to Aadhaar through NPCI at your bank branch")
	}

	completeness := p.Completeness()
	r.Score += p.answered() * completenessPoints / profileFields
	r.Details = append(r.Details, fmt.Sprintf("Profile %d%% complete", completeness))
	if completeness < completeEnough {
		r.NextSteps = append(r.NextSteps, "Complete all profile fields for better scheme matching")
	}

	r.Score = min(r.Score, 100)
	r.Ready = r.Score >= ReadyScore
	return r
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	return slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(strings.TrimSpace(s), v) })
}

func hectares(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
