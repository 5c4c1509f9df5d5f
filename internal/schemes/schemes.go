// Package schemes is a small catalogue of central government farmer schemes
// with keyword matching and profile-based eligibility. The advisor uses it
// to recognise schemes in a conversation when the model's own extraction is
// unusable. The server checks farmer profiles against it.
package schemes

import (
	"strings"
)

// Scheme describes one government scheme.
type Scheme struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Benefit     string   `json:"benefit"`
	Eligibility []string `json:"eligibility"`
	// Criteria are the profile conditions checked by [CheckEligibility].
	Criteria Criteria `json:"criteria"`
	// aliases are lowercase phrases that identify the scheme in free text.
	aliases []string
}

var catalogue = []Scheme{
	{
		ID:          "PM-KISAN",
		Name:        "Pradhan Mantri Kisan Samman Nidhi",
		Description: "Direct income support to farmers",
		Benefit:     "Rs 6000 per year in 3 installments",
		Eligibility: []string{"Landholding farmer families", "Valid Aadhaar", "Not an income tax payer"},
		Criteria:    Criteria{RequiresDBT: true, RequiresBankAccount: true},
		aliases:     []string{"pm-kisan", "pm kisan", "pmkisan", "kisan samman nidhi", "किसान सम्मान निधि", "पीएम किसान"},
	},
	{
		ID:          "PMFBY",
		Name:        "Pradhan Mantri Fasal Bima Yojana",
		Description: "Crop insurance scheme",
		Benefit:     "Insurance coverage against crop loss at low premium",
		Eligibility: []string{"All farmers including tenants and sharecroppers"},
		Criteria:    Criteria{RequiresBankAccount: true},
		aliases:     []string{"pmfby", "fasal bima", "pm-fasal-bima", "crop insurance", "फसल बीमा", "पीक विमा"},
	},
	{
		ID:          "PM-KUSUM",
		Name:        "Kisan Urja Suraksha evam Utthaan Mahaabhiyaan",
		Description: "Solar energy for farmers",
		Benefit:     "Subsidy for solar pump installation",
		Eligibility: []string{"Agricultural land owners"},
		Criteria:    Criteria{RequiresBankAccount: true},
		aliases:     []string{"kusum", "solar pump", "सौर पंप", "कुसुम"},
	},
	{
		ID:          "KCC",
		Name:        "Kisan Credit Card",
		Description: "Short-term crop credit",
		Benefit:     "Flexible credit at 7% interest with prompt repayment rebate",
		Eligibility: []string{"Owner and tenant farmers", "Sharecroppers", "SHGs and JLGs"},
		Criteria:    Criteria{RequiresBankAccount: true},
		aliases:     []string{"kisan credit card", "kcc", "किसान क्रेडिट कार्ड"},
	},
	{
		ID:          "SHC",
		Name:        "Soil Health Card",
		Description: "Soil testing with crop-wise nutrient recommendations",
		Benefit:     "Free soil test report every two years",
		Eligibility: []string{"All farmers"},
		aliases:     []string{"soil health card", "soil test", "मृदा स्वास्थ्य", "मृदा परीक्षण"},
	},
	{
		ID:          "PMKSY",
		Name:        "Pradhan Mantri Krishi Sinchayee Yojana",
		Description: "Irrigation and micro-irrigation support",
		Benefit:     "Subsidy on drip and sprinkler systems",
		Eligibility: []string{"Farmers with cultivable land"},
		Criteria:    Criteria{RequiresDBT: true, RequiresBankAccount: true, MaxLandHectares: ptr(5.0)},
		aliases:     []string{"pmksy", "krishi sinchayee", "drip irrigation subsidy", "per drop more crop", "सिंचाई योजना"},
	},
}

func ptr[T any](v T) *T { return &v }

// All returns the catalogue in a stable order.
func All() []Scheme {
	out := make([]Scheme, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup returns the scheme with the given ID.
func Lookup(id string) (Scheme, bool) {
	for _, s := range catalogue {
		if strings.EqualFold(s.ID, id) {
			return s, true
		}
	}
	return Scheme{}, false
}

// Match returns the schemes mentioned in text, in catalogue order.
func Match(text string) []Scheme {
	lower := strings.ToLower(text)
	var out []Scheme
	for _, s := range catalogue {
		if mentions(lower, s) {
			out = append(out, s)
		}
	}
	return out
}

// MatchIDs is [Match] reduced to scheme IDs.
func MatchIDs(text string) []string {
	matched := Match(text)
	ids := make([]string, len(matched))
	for i, s := range matched {
		ids[i] = s.ID
	}
	return ids
}

func mentions(lower string, s Scheme) bool {
	if strings.Contains(lower, strings.ToLower(s.Name)) {
		return true
	}
	for _, a := range s.aliases {
		if containsWord(lower, a) {
			return true
		}
	}
	return false
}

// containsWord reports whether phrase occurs in text without being glued to
// a neighbouring ASCII letter, so "kcc" does not match inside "kccx".
func containsWord(text, phrase string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if !asciiLetter(text, start-1) && !asciiLetter(text, end) {
			return true
		}
		from = start + 1
	}
}

func asciiLetter(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c >= 'a' && c <= 'z'
}
