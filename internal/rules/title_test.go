package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"esgtrack/internal/domain"
)

func TestSynthesizeTitle(t *testing.T) {
	const track = "Do you track your monthly electricity consumption using utility bills?"
	cases := []struct {
		question, answer, want string
	}{
		{track, "no", "Implement track your monthly electricity consumption using utility bills"},
		{track, "partial", "Implement track your monthly electricity consumption using utility bills"},
		{track, "yes", "Verify and maintain track your monthly electricity consumption using utility bills"},
		{track, "0", "Establish track your monthly electricity consumption using utility bills"},
		{"Have you appointed a sustainability coordinator?", "no", "Complete appointed a sustainability coordinator"},
		{"Have you appointed a sustainability coordinator?", "yes", "Document and verify appointed a sustainability coordinator"},
		{"Have you appointed a sustainability coordinator?", "", "Document and verify appointed a sustainability coordinator"},
		{"Does your school have a sustainability strategy?", "partial", "Establish school have a sustainability strategy"},
		{"Does your school have a sustainability strategy?", "yes", "Verify school have a sustainability strategy"},
		{"Are you training staff?", "no", "Establish training staff"},
		{"Are you training staff?", "yes", "Verify training staff"},
		{"What share of packaging is recyclable?", "no", "Implement: What share of packaging is recyclable"},
		{"What share of packaging is recyclable?", "40", "Verify: What share of packaging is recyclable"},
		{"Do your staff recycle?", "no", "Implement: Do your staff recycle"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SynthesizeTitle(tc.question, tc.answer), tc.question+" / "+tc.answer)
	}
}

func TestMapCategory(t *testing.T) {
	assert.Equal(t, domain.CategoryGovernance, MapCategory("Governance & Management", domain.CategoryEnvironmental))
	assert.Equal(t, domain.CategoryGovernance, MapCategory("Supply Chain", domain.CategoryEnvironmental))
	assert.Equal(t, domain.CategoryGovernance, MapCategory("Project Planning & Design", domain.CategoryEnvironmental))
	assert.Equal(t, domain.CategoryEnvironmental, MapCategory("Energy", domain.CategoryGeneral))
	assert.Equal(t, domain.CategoryEnvironmental, MapCategory("Packaging", domain.CategoryGeneral))
	assert.Equal(t, domain.CategorySocial, MapCategory("Health & Safety", domain.CategoryEnvironmental))
	assert.Equal(t, domain.CategorySocial, MapCategory("Curriculum & Engagement", domain.CategoryEnvironmental))

	assert.Equal(t, domain.CategoryEnvironmental, MapCategory("Biodiversity", domain.CategoryEnvironmental))
	assert.Equal(t, domain.CategoryGeneral, MapCategory("Biodiversity", domain.CategoryGeneral))
	assert.Equal(t, domain.CategoryEnvironmental, MapCategory("Biodiversity", ""))
}

func TestMapCategory_CoversShippedTaxonomies(t *testing.T) {
	for name, c := range CategoryTable {
		assert.True(t, c.Valid(), name)
	}
}
