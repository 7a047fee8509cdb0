package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"esgtrack/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		action  string
		title   string
		typ     domain.EvidenceType
		count   int
		formats []string
	}{
		{
			name:    "bills win first",
			action:  "Monthly DEWA electricity bills showing kWh consumption",
			title:   "Implement track your monthly electricity consumption",
			typ:     domain.EvidenceFile,
			count:   3,
			formats: []string{"pdf", "jpg", "png"},
		},
		{
			name:    "invoices",
			action:  "Photos of installed lighting and purchase invoices",
			typ:     domain.EvidenceFile,
			count:   3,
			formats: []string{"pdf", "jpg", "png"},
		},
		{
			name:    "meter with tracking verb",
			action:  "Sub-meter readings in kWh per line",
			title:   "Implement track monthly energy consumption per production line",
			typ:     domain.EvidenceMixed,
			count:   1,
			formats: []string{"pdf", "jpg", "png"},
		},
		{
			name:   "air quality meter is data",
			action: "Air quality meter readings in ppm",
			title:  "Implement monitor indoor air quality",
			typ:    domain.EvidenceData,
			count:  1,
		},
		{
			name:   "units",
			action: "Food waste log in kg per month",
			typ:    domain.EvidenceData,
			count:  1,
		},
		{
			name:   "track plus usage",
			action: "Track water usage weekly",
			typ:    domain.EvidenceData,
			count:  1,
		},
		{
			name:    "photo with contract",
			action:  "Contract with licensed waste collector and photos of segregation bins",
			typ:     domain.EvidenceFile,
			count:   2,
			formats: []string{"pdf", "doc", "docx", "jpg", "png"},
		},
		{
			name:    "bare photos",
			action:  "Photos of recycling stations",
			typ:     domain.EvidenceFile,
			count:   2,
			formats: []string{"jpg", "jpeg", "png"},
		},
		{
			name:    "policy document",
			action:  "Signed sustainability policy document",
			typ:     domain.EvidenceFile,
			count:   1,
			formats: []string{"pdf", "doc", "docx"},
		},
		{
			name:    "other file vocabulary",
			action:  "Training attendance records",
			typ:     domain.EvidenceFile,
			count:   1,
			formats: []string{"pdf", "doc", "docx", "jpg", "png"},
		},
		{
			name:   "default",
			action: "Supplier list showing local suppliers",
			title:  "Verify and maintain prioritise locally sourced food",
			typ:    domain.EvidenceFile,
			count:  1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := Classify(tc.action, tc.title)
			assert.Equal(t, tc.typ, req.Type)
			assert.Equal(t, tc.count, req.ExpectedCount)
			if tc.formats != nil {
				assert.Equal(t, tc.formats, req.AcceptedFormats)
			}
			assert.NotEmpty(t, req.Hint)
		})
	}
}

func TestClassify_ShortTokensMatchWholeWords(t *testing.T) {
	cases := []struct {
		name   string
		action string
		title  string
		typ    domain.EvidenceType
		count  int
	}{
		{"log inside technology", "Smart meter technology specification sheet", "Verify smart meters are installed", domain.EvidenceFile, 1},
		{"kg inside background", "Photos of the background noise barrier", "Verify noise barriers", domain.EvidenceFile, 2},
		{"read inside already", "Certificate already issued by the authority", "", domain.EvidenceFile, 1},
		{"read inside spreadsheet", "GHG inventory spreadsheet with fuel data", "", domain.EvidenceFile, 1},
		{"percent target is not a unit", "Reduction plan targeting 20% less waste", "", domain.EvidenceFile, 1},
		{"percent unit column", "Diversion rate (%) per quarter", "", domain.EvidenceData, 1},
		{"liter inside literature", "Supplier literature and brochures", "", domain.EvidenceFile, 1},
		{"meter inside kilometers", "Track kilometers driven per vehicle", "", domain.EvidenceFile, 1},
		{"whole word readings", "Water meter readings", "", domain.EvidenceMixed, 1},
		{"whole word log", "Keep a meter log", "", domain.EvidenceMixed, 1},
		{"stack units", "Stack monitoring reports in mg/Nm³", "", domain.EvidenceData, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := Classify(tc.action, tc.title)
			assert.Equal(t, tc.typ, req.Type)
			assert.Equal(t, tc.count, req.ExpectedCount)
		})
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	req := Classify("", "")
	assert.Equal(t, domain.EvidenceFile, req.Type)
	assert.Equal(t, 1, req.ExpectedCount)
}

func TestClassify_FormatsAreNotShared(t *testing.T) {
	first := Classify("electricity bills", "")
	first.AcceptedFormats[0] = "exe"
	assert.Equal(t, "pdf", Classify("electricity bills", "").AcceptedFormats[0])
}

func TestAccepts(t *testing.T) {
	assert.True(t, Accepts(domain.EvidenceFile, domain.EvidenceFile))
	assert.False(t, Accepts(domain.EvidenceFile, domain.EvidenceData))
	assert.True(t, Accepts(domain.EvidenceData, domain.EvidenceData))
	assert.False(t, Accepts(domain.EvidenceData, domain.EvidenceFile))
	assert.True(t, Accepts(domain.EvidenceMixed, domain.EvidenceFile))
	assert.True(t, Accepts(domain.EvidenceMixed, domain.EvidenceData))
	assert.False(t, Accepts(domain.EvidenceMixed, domain.EvidenceMixed))
	assert.False(t, Accepts("", domain.EvidenceFile))
}
