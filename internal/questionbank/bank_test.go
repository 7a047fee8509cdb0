package questionbank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"esgtrack/internal/domain"
)

func TestDefault_ShipsEightSectors(t *testing.T) {
	b, err := Default(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"hospitality", "construction", "manufacturing", "logistics",
		"education", "health", "retail", "technology",
	}, b.Sectors())
	for _, key := range b.Sectors() {
		assert.NotEmpty(t, b.SectorQuestions(key), key)
		assert.NotEmpty(t, b.SectorFrameworks(key), key)
	}
}

func TestDefault_CategoryTaxonomies(t *testing.T) {
	b, err := Default(zap.NewNop())
	require.NoError(t, err)

	hosp, ok := b.Sector("hospitality")
	require.True(t, ok)
	assert.Equal(t, []string{"Governance & Management", "Energy", "Water", "Waste", "Supply Chain"}, hosp.Categories)

	con, ok := b.Sector("construction")
	require.True(t, ok)
	assert.Equal(t, []string{"Project Planning & Design", "Construction Phase", "Operational Phase"}, con.Categories)
}

func TestDefault_EveryQuestionInsideItsTaxonomy(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	_, err := Default(zap.New(core))
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestDefault_KnownQuestions(t *testing.T) {
	b, err := Default(zap.NewNop())
	require.NoError(t, err)

	q, sector, ok := b.Question("hosp_energy_1")
	require.True(t, ok)
	assert.Equal(t, "hospitality", sector)
	assert.Equal(t, domain.QuestionYesNo, q.Type)
	assert.Equal(t, "Energy", q.Category)
	assert.Contains(t, q.Frameworks, "DST Carbon Calculator")

	q, sector, ok = b.Question("edu_resource_3")
	require.True(t, ok)
	assert.Equal(t, "education", sector)
	assert.True(t, q.Required)
}

func TestUnknownSector_ReturnsEmpty(t *testing.T) {
	b, err := Default(zap.NewNop())
	require.NoError(t, err)

	qs := b.SectorQuestions("not_a_real_sector")
	assert.NotNil(t, qs)
	assert.Empty(t, qs)
	assert.Empty(t, b.SectorFrameworks("not_a_real_sector"))
	_, ok := b.Sector("not_a_real_sector")
	assert.False(t, ok)
	// lookups are case-sensitive
	assert.Empty(t, b.SectorQuestions("Hospitality"))
}

func TestLookups_ReturnCopies(t *testing.T) {
	b, err := Default(zap.NewNop())
	require.NoError(t, err)

	qs := b.SectorQuestions("hospitality")
	qs[0].Text = "mutated"
	fws := b.SectorFrameworks("hospitality")
	fws[0] = "mutated"

	assert.NotEqual(t, "mutated", b.SectorQuestions("hospitality")[0].Text)
	assert.NotEqual(t, "mutated", b.SectorFrameworks("hospitality")[0])
}

func TestFromYAML_DuplicateQuestionID(t *testing.T) {
	doc := `
sectors:
  - key: a
    categories: [Energy]
    questions:
      - {id: q1, text: "Do you?", category: Energy, type: yes_no}
  - key: b
    categories: [Energy]
    questions:
      - {id: q1, text: "Do you?", category: Energy, type: yes_no}
`
	_, err := FromYAML([]byte(doc), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate question id q1")
}

func TestFromYAML_UnknownType(t *testing.T) {
	doc := `
sectors:
  - key: a
    categories: [Energy]
    questions:
      - {id: q1, text: "Pick one", category: Energy, type: choice}
`
	_, err := FromYAML([]byte(doc), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestFromYAML_OffTaxonomyCategoryIsKept(t *testing.T) {
	doc := `
sectors:
  - key: a
    categories: [Energy]
    questions:
      - {id: q1, text: "Do you recycle?", category: Recycling, type: yes_no}
`
	core, logs := observer.New(zapcore.WarnLevel)
	b, err := FromYAML([]byte(doc), zap.New(core))
	require.NoError(t, err)
	require.Len(t, b.SectorQuestions("a"), 1)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Recycling", logs.All()[0].ContextMap()["category"])
}

func TestNormalizeSectorKey(t *testing.T) {
	cases := map[string]string{
		"Hospitality":  "hospitality",
		" healthcare ": "health",
		"HEALTH":       "health",
		"Real Estate":  "construction",
		"technology":   "technology",
		"unknown":      "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSectorKey(in), in)
	}
}
