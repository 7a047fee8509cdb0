package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esgtrack/internal/domain"
)

var testMeters = []domain.Meter{
	{Number: "ELE001", Type: MeterElectricity, Provider: "DEWA", Location: "Main Building"},
	{Number: "WAT001", Type: MeterWater, Provider: "DEWA", Location: "Main Building"},
}

func TestEnrichWithMeters_SingleMeter(t *testing.T) {
	g := newTestGenerator(t)
	tasks := g.Generate("hospitality", domain.Answers{
		"hosp_energy_1": "no",
		"hosp_water_1":  "no",
		"hosp_gov_1":    "no",
	}, domain.Preferences{}, "c")

	enriched := EnrichWithMeters(tasks, testMeters)
	require.Len(t, enriched, len(tasks))

	energy := tasksFor(enriched, "hosp_energy_1")[0]
	assert.Contains(t, energy.Title, "(Meter: ELE001)")
	assert.Contains(t, energy.Description, "Specific Meters to Track:")
	assert.Contains(t, energy.Description, "• Electricity Meter ELE001 at Main Building (DEWA)")
	assert.Contains(t, energy.ActionRequired, "Read meter ELE001 (electricity)")
	assert.Equal(t, 3, energy.RequiredEvidenceCount)
	assert.Equal(t, domain.EvidenceFile, energy.EvidenceType)

	water := tasksFor(enriched, "hosp_water_1")[0]
	assert.Contains(t, water.Title, "(Meter: WAT001)")
	assert.NotContains(t, water.Title, "ELE001")

	gov := tasksFor(enriched, "hosp_gov_1")[0]
	assert.Equal(t, tasksFor(tasks, "hosp_gov_1")[0], gov)

	// input is not modified
	assert.NotContains(t, tasksFor(tasks, "hosp_energy_1")[0].Title, "Meter")
}

func TestEnrichWithMeters_SeveralMeters(t *testing.T) {
	g := newTestGenerator(t)
	tasks := g.Generate("hospitality", domain.Answers{"hosp_energy_1": "no"}, domain.Preferences{}, "c")
	meters := append([]domain.Meter{{Number: "ELE002", Type: MeterElectricity, Location: "Annex"}}, testMeters...)

	energy := tasksFor(EnrichWithMeters(tasks, meters), "hosp_energy_1")[0]
	assert.Contains(t, energy.Title, "(Meters: ELE002, ELE001)")
	assert.Contains(t, energy.ActionRequired, "Total files needed: 6 bills")
	assert.Equal(t, 6, energy.RequiredEvidenceCount)
}

func TestEnrichWithMeters_SkipsFrameworkTasks(t *testing.T) {
	g := newTestGenerator(t)
	tasks := g.Generate("hospitality", nil, domain.Preferences{}, "c")

	assert.Equal(t, tasks, EnrichWithMeters(tasks, testMeters))
}

func TestEnrichWithMeters_NoMeters(t *testing.T) {
	g := newTestGenerator(t)
	tasks := g.Generate("hospitality", domain.Answers{"hosp_energy_1": "no"}, domain.Preferences{}, "c")

	assert.Equal(t, tasks, EnrichWithMeters(tasks, nil))
}

func TestIsMeterTask(t *testing.T) {
	assert.True(t, IsMeterTask(domain.Task{Title: "Implement track your monthly electricity consumption"}))
	assert.True(t, IsMeterTask(domain.Task{Title: "Verify: readings", ActionRequired: "Water meter readings in m³"}))
	assert.True(t, IsMeterTask(domain.Task{Title: "Establish monitor utility use"}))
	assert.False(t, IsMeterTask(domain.Task{Title: "Complete appointed a sustainability coordinator", ActionRequired: "Appointment letter"}))
}

func TestRelevantMeters(t *testing.T) {
	assert.Equal(t, []domain.Meter{testMeters[0]}, RelevantMeters(domain.Task{Title: "Track energy use"}, testMeters))
	assert.Equal(t, []domain.Meter{testMeters[1]}, RelevantMeters(domain.Task{Title: "Track water use"}, testMeters))
	assert.Equal(t, testMeters, RelevantMeters(domain.Task{Title: "Track utility consumption"}, testMeters))
	assert.Empty(t, RelevantMeters(domain.Task{Title: "Track water use"}, testMeters[:1]))
}
