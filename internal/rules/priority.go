package rules

import (
	"strings"
	"time"

	"esgtrack/internal/domain"
)

// MandatoryKeywords signal a mandatory framework. They drive both the
// high-priority tier and the verification of "yes" answers.
var MandatoryKeywords = []string{
	"dst carbon calculator",
	"al sa'fat",
	"estidama",
	"adek sustainability policy",
	"federal energy management regulation",
	"climate law",
	"federal law",
	"mohap hospital regulation",
	"dubai municipality",
	"mandatory",
}

var HighPriorityKeywords = []string{
	"required",
	"mandates",
	"compliance",
	"legal",
	"regulation",
	"policy",
	"management",
	"committee",
	"carbon calculator",
	"eia",
	"environmental impact assessment",
	"waste management plan",
}

var MediumPriorityKeywords = []string{
	"training",
	"monitoring",
	"tracking",
	"reporting",
	"certification",
	"efficiency",
	"conservation",
	"audit",
	"assessment",
}

// Default due-date offsets in calendar days.
const (
	DefaultHighDays   = 30
	DefaultMediumDays = 60
	DefaultLowDays    = 90
)

// Policy decides how urgent a question-derived task is and when it is due.
type Policy interface {
	Priority(q domain.Question) domain.Priority
	DueDate(p domain.Priority, now time.Time) time.Time
}

// KeywordPolicy is the ordered keyword decision list.
type KeywordPolicy struct {
	HighDays   int
	MediumDays int
	LowDays    int
}

func DefaultPolicy() KeywordPolicy {
	return KeywordPolicy{HighDays: DefaultHighDays, MediumDays: DefaultMediumDays, LowDays: DefaultLowDays}
}

func (k KeywordPolicy) Priority(q domain.Question) domain.Priority {
	text := strings.ToLower(q.Frameworks + " " + q.Text)
	switch {
	case containsAny(text, MandatoryKeywords):
		return domain.PriorityHigh
	case containsAny(text, HighPriorityKeywords):
		return domain.PriorityHigh
	case containsAny(text, MediumPriorityKeywords):
		return domain.PriorityMedium
	case q.Required:
		return domain.PriorityMedium
	}
	return domain.PriorityLow
}

func (k KeywordPolicy) DueDate(p domain.Priority, now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, k.Offset(p))
}

// Offset returns the due-date offset in days for p. Unknown priorities get the low offset.
func (k KeywordPolicy) Offset(p domain.Priority) int {
	switch p {
	case domain.PriorityHigh:
		return orDefault(k.HighDays, DefaultHighDays)
	case domain.PriorityMedium:
		return orDefault(k.MediumDays, DefaultMediumDays)
	}
	return orDefault(k.LowDays, DefaultLowDays)
}

// HasMandatorySignal reports whether text mentions a mandatory framework.
func HasMandatorySignal(text string) bool {
	return containsAny(strings.ToLower(text), MandatoryKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
