// Package evidence decides what kind of evidence satisfies a task.
package evidence

import (
	"regexp"
	"strings"

	"esgtrack/internal/domain"
)

// Requirement describes the evidence a task expects.
type Requirement struct {
	Type            domain.EvidenceType `json:"type" enum:"file,data,mixed"`
	ExpectedCount   int                 `json:"expected_count" minimum:"1"`
	AcceptedFormats []string            `json:"accepted_formats,omitempty"`
	Hint            string              `json:"hint"`
}

// Short tokens match whole words only.
var (
	meterWords    = words(`meter(?:s|ing)?`, "dewa", "addc", "sewa", "fewa", `utility providers?`)
	trackingWords = words(`read(?:s|ing|ings)?`, `log(?:s|ged|ging|book|books)?`)
	unitWords     = words("kwh", "ppm", "kg", `tonnes?`, `lit(?:re|er)s?`, `cubic met(?:re|er)s?`, `percentages?`)
	volumeUnit    = regexp.MustCompile(`(?:^|[^a-z0-9])n?m[3³](?:[^a-z0-9]|$)`)
	percentUnit   = regexp.MustCompile(`(?:^|[\s(])%`)
)

var (
	billWords     = []string{"bill", "invoice"}
	trackingVerbs = []string{"track", "monitor", "record"}
	airQuality    = []string{"air quality"}
	measureVerbs  = []string{"track", "monitor"}
	measureNouns  = []string{"consumption", "usage", "level"}
	fileWords     = []string{
		"upload", "document", "photo", "policy", "certificate", "record", "evidence",
		"report", "plan", "contract", "agreement", "license", "licence",
	}
	contractWords = []string{"contract", "agreement"}
	docWords      = []string{"policy", "document", "certificate"}
)

var (
	billFormats  = []string{"pdf", "jpg", "png"}
	mixedFormats = []string{"pdf", "doc", "docx", "jpg", "png"}
	imageFormats = []string{"jpg", "jpeg", "png"}
	docFormats   = []string{"pdf", "doc", "docx"}
)

// Classify maps a task's action text and title to an evidence requirement.
// Rules are evaluated in order and the first match wins.
func Classify(actionRequired, title string) Requirement {
	text := strings.ToLower(actionRequired + " " + title)
	switch {
	case has(text, billWords...):
		return Requirement{Type: domain.EvidenceFile, ExpectedCount: 3, AcceptedFormats: clone(billFormats),
			Hint: "Upload the last three bills or invoices"}
	case meterWords.MatchString(text) && (has(text, trackingVerbs...) || trackingWords.MatchString(text)) && !has(text, airQuality...):
		return Requirement{Type: domain.EvidenceMixed, ExpectedCount: 1, AcceptedFormats: clone(billFormats),
			Hint: "Enter a meter reading or upload a utility bill"}
	case hasUnit(text) || (has(text, measureVerbs...) && has(text, measureNouns...)):
		return Requirement{Type: domain.EvidenceData, ExpectedCount: 1,
			Hint: "Enter the measured value with its unit"}
	case has(text, fileWords...):
		switch {
		case has(text, "photo") && has(text, contractWords...):
			return Requirement{Type: domain.EvidenceFile, ExpectedCount: 2, AcceptedFormats: clone(mixedFormats),
				Hint: "Upload the signed contract and supporting photos"}
		case has(text, "photo"):
			return Requirement{Type: domain.EvidenceFile, ExpectedCount: 2, AcceptedFormats: clone(imageFormats),
				Hint: "Upload photos showing the measure in place"}
		case has(text, docWords...):
			return Requirement{Type: domain.EvidenceFile, ExpectedCount: 1, AcceptedFormats: clone(docFormats),
				Hint: "Upload the signed document"}
		}
		return Requirement{Type: domain.EvidenceFile, ExpectedCount: 1, AcceptedFormats: clone(mixedFormats),
			Hint: "Upload supporting evidence"}
	}
	return Requirement{Type: domain.EvidenceFile, ExpectedCount: 1, Hint: "Upload supporting evidence"}
}

// Accepts reports whether an evidence item of kind can satisfy req.
func Accepts(req domain.EvidenceType, kind domain.EvidenceType) bool {
	switch req {
	case domain.EvidenceMixed:
		return kind == domain.EvidenceFile || kind == domain.EvidenceData
	case domain.EvidenceFile, domain.EvidenceData:
		return kind == req
	}
	return false
}

func has(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func hasUnit(text string) bool {
	return unitWords.MatchString(text) || volumeUnit.MatchString(text) || percentUnit.MatchString(text)
}

func words(alts ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
}

func clone(s []string) []string { return append([]string(nil), s...) }
