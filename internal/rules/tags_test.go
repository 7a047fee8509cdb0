package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanFrameworkText(t *testing.T) {
	cases := map[string]string{
		"Green Key Global: Criterion 7.1 (Guideline)":                     "green key global",
		"DST Carbon Calculator (Mandatory): 2.1 Monthly energy reporting": "dst carbon calculator",
		"DST 1.2 & 1.4":                            "dst",
		"Green Key: 1.1 (I): Environmental Manager required": "green key",
		"Imperative criterion 2.1 Green Key (C)":   "green key",
		"ISO 14001:":                               "iso 14001",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanFrameworkText(in), in)
	}
}

func TestExtractFrameworkTags_Dictionary(t *testing.T) {
	tags := ExtractFrameworkTags("DST: 1.1 Sustainability Committee (Mandatory); Green Key: 1.1 (I): Environmental Manager required")
	assert.Equal(t, []string{"Dubai Sustainable Tourism", "Green Key Global"}, tags)

	tags = ExtractFrameworkTags("DST Carbon Calculator (Mandatory): 2.1 Monthly energy reporting")
	assert.Equal(t, []string{"Dubai Sustainable Tourism"}, tags)

	tags = ExtractFrameworkTags("UAE Climate Law (Federal Decree-Law No. 11 of 2024): GHG reporting")
	assert.Equal(t, []string{"UAE Climate Law"}, tags)

	tags = ExtractFrameworkTags("Al Sa'fat Dubai (Mandatory): Silver rating minimum")
	assert.Equal(t, []string{"Al Sa'fat Dubai"}, tags)

	tags = ExtractFrameworkTags("Abu Dhabi EAD air quality standards; Dubai Municipality")
	assert.Equal(t, []string{"Dubai Municipality"}, tags)
}

func TestExtractFrameworkTags_Dedup(t *testing.T) {
	tags := ExtractFrameworkTags("ISO 14001; ISO 14001 (Voluntary); iso 14001 clause 9")
	assert.Equal(t, []string{"ISO 14001"}, tags)

	tags = ExtractFrameworkTags("DST and Dubai Sustainable Tourism guidance, DST again")
	assert.Equal(t, []string{"Dubai Sustainable Tourism"}, tags)
}

func TestExtractFrameworkTags_GenericFallback(t *testing.T) {
	assert.Equal(t, []string{"Mandatory Requirement"}, ExtractFrameworkTags("UAE Labour Law (Mandatory)"))
	assert.Equal(t,
		[]string{"Mandatory Requirement", "UAE Federal Regulation"},
		ExtractFrameworkTags("Federal Law No. 24 of 1999 (Mandatory): EIA required for permits"))
	assert.Equal(t, []string{"Abu Dhabi Regulation"}, ExtractFrameworkTags("Abu Dhabi EAD air quality standards"))
}

func TestExtractFrameworkTags_GeneralCompliance(t *testing.T) {
	assert.Equal(t, []string{TagGeneralCompliance}, ExtractFrameworkTags("RTA driver safety requirements"))
}

func TestExtractFrameworkTags_Empty(t *testing.T) {
	assert.Empty(t, ExtractFrameworkTags(""))
	assert.Empty(t, ExtractFrameworkTags("   "))
	assert.NotNil(t, ExtractFrameworkTags(""))
}

func TestMergeTags(t *testing.T) {
	got := MergeTags([]string{"ISO 14001", "UAE Climate Law"}, "UAE Climate Law", "", "LEED")
	assert.Equal(t, []string{"ISO 14001", "UAE Climate Law", "LEED"}, got)
}
