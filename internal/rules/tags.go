package rules

import (
	"regexp"
	"strings"
)

// TagGeneralCompliance is assigned when non-empty text matches nothing else.
const TagGeneralCompliance = "General Compliance"

// Keyword maps a lower-case substring to a canonical name.
type Keyword struct {
	Match string
	Name  string
}

// FrameworkDictionary is matched in order against cleaned framework text.
var FrameworkDictionary = []Keyword{
	{"dst", "Dubai Sustainable Tourism"},
	{"dubai sustainable tourism", "Dubai Sustainable Tourism"},
	{"green key", "Green Key Global"},
	{"al sa'fat", "Al Sa'fat Dubai"},
	{"estidama", "Estidama Pearl"},
	{"leed", "LEED"},
	{"breeam", "BREEAM"},
	{"iso 14001", "ISO 14001"},
	{"iso 45001", "ISO 45001"},
	{"iso 50001", "ISO 50001"},
	{"climate law", "UAE Climate Law"},
	{"waste management law", "UAE Waste Management Law"},
	{"federal energy management regulation", "Federal Energy Management Regulation"},
	{"adek", "ADEK Sustainability Policy"},
	{"emirates coalition", "Emirates Coalition for Green Schools"},
	{"mohap", "MOHAP Hospital Regulation"},
	{"dubai municipality", "Dubai Municipality"},
}

// GenericFrameworkTags is consulted only when FrameworkDictionary finds nothing.
var GenericFrameworkTags = []Keyword{
	{"mandatory", "Mandatory Requirement"},
	{"voluntary", "Voluntary Standard"},
	{"dubai", "Dubai Regulation"},
	{"abu dhabi", "Abu Dhabi Regulation"},
	{"federal", "UAE Federal Regulation"},
}

// KnownSuffixes are descriptive tails stripped before matching.
var KnownSuffixes = []string{
	": environmental manager required",
	": sustainability committee required",
	": monthly energy reporting",
	": ghg reporting",
	": energy reporting",
}

var (
	citationSuffix = regexp.MustCompile(`:\s*\d+(?:\.\d+)+\s+[A-Za-z][A-Za-z ]*`)
	criterionRef   = regexp.MustCompile(`(?i)\b(?:(?:imperative|guideline)\s+)?(?:imperative|guideline|criterion)\s+\d+(?:\.\d+)*`)
	numberPair     = regexp.MustCompile(`\d+(?:\.\d+)+\s*&\s*\d+(?:\.\d+)+`)
	numberGroup    = regexp.MustCompile(`\b\d+\.\d+(?:\.\d+)*\b`)
	markers        = regexp.MustCompile(`\((?:I|G|C|[Ii]mperative|[Gg]uideline|[Mm]andatory)\)`)
	spaces         = regexp.MustCompile(`\s+`)
)

// CleanFrameworkText strips citation noise and lower-cases the result.
func CleanFrameworkText(text string) string {
	s := citationSuffix.ReplaceAllString(text, "")
	s = criterionRef.ReplaceAllString(s, "")
	s = numberPair.ReplaceAllString(s, "")
	s = numberGroup.ReplaceAllString(s, "")
	s = markers.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	for _, suffix := range KnownSuffixes {
		s = strings.ReplaceAll(s, suffix, "")
	}
	s = spaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return strings.TrimRight(s, ":, ")
}

// ExtractFrameworkTags maps free framework text to canonical framework names.
// The result is deduplicated and ordered by dictionary position.
func ExtractFrameworkTags(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	cleaned := CleanFrameworkText(text)
	tags := matchKeywords(cleaned, FrameworkDictionary)
	if len(tags) == 0 {
		// markers such as "(Mandatory)" are gone from the cleaned text
		tags = matchKeywords(strings.ToLower(text), GenericFrameworkTags)
	}
	if len(tags) == 0 {
		tags = []string{TagGeneralCompliance}
	}
	return tags
}

func matchKeywords(text string, dict []Keyword) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, kw := range dict {
		if !strings.Contains(text, kw.Match) || seen[kw.Name] {
			continue
		}
		seen[kw.Name] = true
		out = append(out, kw.Name)
	}
	return out
}

// MergeTags appends extra tags to base, skipping duplicates.
func MergeTags(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := map[string]bool{}
	for _, t := range append(append([]string{}, base...), extra...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
