package rules

import "strings"

type titleRule struct {
	prefix   string
	negative string
	positive string
	other    string
}

// titleRules is the prefix dispatch table; the first matching prefix wins.
var titleRules = []titleRule{
	{prefix: "Do you", negative: "Implement", positive: "Verify and maintain", other: "Establish"},
	{prefix: "Have you", negative: "Complete", positive: "Document and verify", other: "Document and verify"},
	{prefix: "Does your", negative: "Establish", positive: "Verify", other: "Verify"},
	{prefix: "Are you", negative: "Establish", positive: "Verify", other: "Verify"},
}

// SynthesizeTitle rewrites a question into an imperative task title.
func SynthesizeTitle(questionText, answer string) string {
	q := strings.TrimSpace(questionText)
	a := strings.ToLower(strings.TrimSpace(answer))
	negative := a == "no" || a == "partial"
	for _, r := range titleRules {
		if !strings.HasPrefix(q, r.prefix+" ") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(q, r.prefix), "?"))
		switch {
		case negative:
			return r.negative + " " + rest
		case a == "yes":
			return r.positive + " " + rest
		}
		return r.other + " " + rest
	}
	bare := strings.TrimSuffix(q, "?")
	if negative {
		return "Implement: " + bare
	}
	return "Verify: " + bare
}
