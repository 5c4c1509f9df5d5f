package advisor

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// DefaultTitle is used when nothing meaningful can be extracted.
	DefaultTitle  = "Conversation"
	maxTitleRunes = 40
	maxTitleWords = 6
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
	"from": true, "is": true, "are": true, "am": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "may": true, "might": true, "must": true,
	"can": true, "what": true, "which": true, "who": true, "when": true, "where": true,
	"why": true, "how": true, "if": true, "as": true, "just": true, "only": true, "so": true,
	"than": true, "this": true, "my": true, "me": true, "i": true,
}

// cleanTitle normalises a model-written title: first line, no quotes or
// trailing punctuation, at most six words, Title Case, 40 characters.
func cleanTitle(raw string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	line = strings.TrimPrefix(strings.TrimSpace(line), "Title:")
	words := strings.FieldsFunc(line, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("\"'`“”.,!?;:*#", r)
	})
	if len(words) == 0 {
		return ""
	}
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	return fitTitle(words)
}

// keywordTitle builds a title from the meaningful words of a question.
func keywordTitle(question string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len([]rune(w)) <= 2 || stopwords[w] {
			continue
		}
		words = append(words, w)
		if len(words) == maxTitleWords {
			break
		}
	}
	if len(words) == 0 {
		return DefaultTitle
	}
	return fitTitle(words)
}

// fitTitle joins words in Title Case, dropping whole words past the limit.
func fitTitle(words []string) string {
	// Casers are stateful, so each call gets its own.
	title := cases.Title(language.English).String(strings.Join(words, " "))
	for len([]rune(title)) > maxTitleRunes {
		i := strings.LastIndex(title, " ")
		if i < 0 {
			return string([]rune(title)[:maxTitleRunes])
		}
		title = title[:i]
	}
	return title
}

// topicKeywords maps topic labels to the words that signal them.
var topicKeywords = []struct {
	topic string
	words []string
}{
	{"crop_advisory", []string{"crop", "seed", "sowing", "sow", "fertilizer", "pest", "harvest", "yield", "wheat", "rice", "paddy", "cotton"}},
	{"insurance", []string{"insurance", "claim", "premium", "bima"}},
	{"water_management", []string{"irrigation", "water", "drip", "sprinkler", "pump", "solar"}},
	{"land_rights", []string{"land", "record", "ownership", "lease", "tenant", "mutation"}},
	{"credit", []string{"loan", "credit", "kcc", "interest", "bank"}},
	{"soil_health", []string{"soil", "nutrient", "compost", "organic"}},
	{"subsidy", []string{"subsidy", "scheme", "yojana", "benefit", "installment"}},
}

// keywordTopics labels text by keyword presence, in a fixed order.
func keywordTopics(text string) []string {
	tokens := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[w] = true
	}
	var out []string
	for _, tk := range topicKeywords {
		for _, w := range tk.words {
			if tokens[w] {
				out = append(out, tk.topic)
				break
			}
		}
	}
	return out
}
