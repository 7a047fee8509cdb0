package rules

import "esgtrack/internal/domain"

// CategoryTable maps sector category names onto task categories.
var CategoryTable = map[string]domain.Category{
	"Governance & Management":   domain.CategoryGovernance,
	"Supply Chain":              domain.CategoryGovernance,
	"Project Planning & Design": domain.CategoryGovernance,
	"Management & Policy":       domain.CategoryGovernance,
	"Corporate Governance":      domain.CategoryGovernance,

	"Energy":              domain.CategoryEnvironmental,
	"Water":               domain.CategoryEnvironmental,
	"Waste":               domain.CategoryEnvironmental,
	"Construction Phase":  domain.CategoryEnvironmental,
	"Operational Phase":   domain.CategoryEnvironmental,
	"Emissions":           domain.CategoryEnvironmental,
	"Resource Management": domain.CategoryEnvironmental,
	"Fleet & Operations":  domain.CategoryEnvironmental,
	"Operations":          domain.CategoryEnvironmental,
	"Packaging":           domain.CategoryEnvironmental,

	"Social":                  domain.CategorySocial,
	"Health & Safety":         domain.CategorySocial,
	"Community":               domain.CategorySocial,
	"Curriculum & Engagement": domain.CategorySocial,
	"Patient Care":            domain.CategorySocial,
	"People":                  domain.CategorySocial,
}

// MapCategory returns the task category for a sector category name.
// Unmapped names and invalid fallbacks resolve to environmental.
func MapCategory(name string, fallback domain.Category) domain.Category {
	if c, ok := CategoryTable[name]; ok {
		return c
	}
	if fallback.Valid() {
		return fallback
	}
	return domain.CategoryEnvironmental
}
