package generator

import (
	"regexp"
	"strings"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/langdetect"
)

// FollowUpCount is the number of follow-up questions in every answer.
const FollowUpCount = 3

var fallbackFollowUps = map[string][]string{
	langdetect.English: {
		"Which government schemes can help me with this?",
		"What documents do I need to apply?",
		"Who can I contact locally for more help?",
		"What should I do first this season?",
	},
	langdetect.Hindi: {
		"इसमें कौन सी सरकारी योजनाएं मेरी मदद कर सकती हैं?",
		"आवेदन के लिए मुझे कौन से दस्तावेज़ चाहिए?",
		"अधिक मदद के लिए मैं स्थानीय रूप से किससे संपर्क करूं?",
		"इस मौसम में मुझे सबसे पहले क्या करना चाहिए?",
	},
	langdetect.Marathi: {
		"यासाठी कोणत्या सरकारी योजना मला मदत करू शकतात?",
		"अर्ज करण्यासाठी मला कोणती कागदपत्रे लागतील?",
		"अधिक मदतीसाठी मी स्थानिक पातळीवर कोणाशी संपर्क साधू?",
		"या हंगामात मी सर्वात आधी काय करावे?",
	},
}

// FallbackFollowUps returns the canned follow-ups for a language, English
// when the language is unknown.
func FallbackFollowUps(language string) []string {
	if f, ok := fallbackFollowUps[language]; ok {
		return f
	}
	return fallbackFollowUps[langdetect.English]
}

// CleanFollowUps splits a model reply into question lines, stripping
// bullets, numbering and quotes, and keeps at most FollowUpCount of them.
func CleanFollowUps(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		q := cleanLine(line)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == FollowUpCount {
			break
		}
	}
	return out
}

// FillFollowUps returns exactly FollowUpCount questions: the given ones in
// order, padded with fallbacks that are not already present.
func FillFollowUps(questions []string, language string) [FollowUpCount]string {
	var out [FollowUpCount]string
	n := 0
	seen := make(map[string]bool)
	add := func(q string) {
		key := strings.ToLower(q)
		if n < FollowUpCount && q != "" && !seen[key] {
			seen[key] = true
			out[n] = q
			n++
		}
	}
	for _, q := range questions {
		add(q)
	}
	for _, q := range FallbackFollowUps(language) {
		add(q)
	}
	return out
}

// listPrefix matches bullets and numbering: "-", "*", "•", "1.", "2)", "(3)", "Q1:".
var listPrefix = regexp.MustCompile(`^(?:[-*•●○]+|\(?\d+[.):]|Q\d+[.):]?)\s*`)

func cleanLine(line string) string {
	s := listPrefix.ReplaceAllString(strings.TrimSpace(line), "")
	s = strings.Trim(s, "\"'`“”")
	return strings.TrimSpace(s)
}
