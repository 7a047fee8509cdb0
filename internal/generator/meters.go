package generator

import (
	"fmt"
	"regexp"
	"strings"

	"esgtrack/internal/domain"
	"esgtrack/internal/evidence"
)

const (
	MeterElectricity = "electricity"
	MeterWater       = "water"
)

// BillsPerMeter is how many monthly bills a meter task asks for.
const BillsPerMeter = 3

var meterPhrases = []string{
	"electricity consumption", "water consumption", "energy consumption",
	"monthly electricity", "monthly water", "monthly energy",
	"utility bills", "meter reading", "kwh", "m³", "cubic meters",
}

var meterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(track|monitor|record).*consumption`),
	regexp.MustCompile(`(track|monitor).*utility`),
	regexp.MustCompile(`(electricity|water).*track`),
	regexp.MustCompile(`consumption.*month`),
	regexp.MustCompile(`monthly.*bill`),
	regexp.MustCompile(`utility.*meter`),
}

// IsMeterTask reports whether a task is about utility consumption.
func IsMeterTask(t domain.Task) bool {
	text := strings.ToLower(t.Title + " " + t.ActionRequired)
	for _, p := range meterPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	for _, re := range meterPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// RelevantMeters picks the meters a utility task refers to.
func RelevantMeters(t domain.Task, meters []domain.Meter) []domain.Meter {
	title := strings.ToLower(t.Title)
	var want string
	switch {
	case strings.Contains(title, "electricity"), strings.Contains(title, "energy"), strings.Contains(title, "kwh"):
		want = MeterElectricity
	case strings.Contains(title, "water"), strings.Contains(title, "m³"), strings.Contains(title, "cubic meters"):
		want = MeterWater
	default:
		return append([]domain.Meter(nil), meters...)
	}
	var out []domain.Meter
	for _, m := range meters {
		if strings.EqualFold(m.Type, want) {
			out = append(out, m)
		}
	}
	return out
}

// EnrichWithMeters ties utility consumption tasks to the company's meters.
// Question tasks only; framework templates are left untouched.
func EnrichWithMeters(tasks []domain.Task, meters []domain.Meter) []domain.Task {
	if len(meters) == 0 {
		return tasks
	}
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	for i, t := range out {
		if t.Source != domain.SourceQuestion || !IsMeterTask(t) {
			continue
		}
		relevant := RelevantMeters(t, meters)
		if len(relevant) == 0 {
			continue
		}
		out[i] = enrich(t, relevant)
	}
	return out
}

func enrich(t domain.Task, meters []domain.Meter) domain.Task {
	numbers := make([]string, len(meters))
	for i, m := range meters {
		numbers[i] = m.Number
	}
	if len(meters) == 1 {
		t.Title = fmt.Sprintf("%s (Meter: %s)", t.Title, meters[0].Number)
	} else {
		t.Title = fmt.Sprintf("%s (Meters: %s)", t.Title, strings.Join(numbers, ", "))
	}

	var desc strings.Builder
	desc.WriteString(t.Description)
	desc.WriteString("\n\nSpecific Meters to Track:\n")
	for _, m := range meters {
		fmt.Fprintf(&desc, "• %s Meter %s at %s (%s)\n", titleCase(m.Type), m.Number, orDash(m.Location), provider(m))
	}
	t.Description = strings.TrimRight(desc.String(), "\n")

	if len(meters) == 1 {
		m := meters[0]
		t.ActionRequired = fmt.Sprintf("%s\n\nSpecific Action: Read meter %s (%s) at %s and record monthly consumption from %s bills.\n\nTotal: %d monthly bills showing %s consumption",
			t.ActionRequired, m.Number, m.Type, orDash(m.Location), provider(m), BillsPerMeter, m.Type)
	} else {
		lines := make([]string, len(meters))
		for i, m := range meters {
			lines[i] = fmt.Sprintf("- %s (%s) at %s", m.Number, m.Type, orDash(m.Location))
		}
		t.ActionRequired = fmt.Sprintf("%s\n\nSpecific Meters to Track:\n%s\n\nUpload %d months of utility bills for each meter from %s.\n\nTotal files needed: %d bills",
			t.ActionRequired, strings.Join(lines, "\n"), BillsPerMeter, provider(meters[0]), BillsPerMeter*len(meters))
	}

	req := evidence.Classify(t.ActionRequired, t.Title)
	t.EvidenceType = req.Type
	t.RequiredEvidenceCount = BillsPerMeter * len(meters)
	return t
}

func provider(m domain.Meter) string {
	if m.Provider == "" {
		return "DEWA"
	}
	return m.Provider
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
