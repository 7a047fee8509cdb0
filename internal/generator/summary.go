package generator

import "esgtrack/internal/domain"

// Summary counts a generation run for logs and dry-run output.
type Summary struct {
	Total       int            `json:"total"`
	BySource    map[string]int `json:"by_source"`
	ByCategory  map[string]int `json:"by_category"`
	ByPriority  map[string]int `json:"by_priority"`
	ByFramework map[string]int `json:"by_framework"`
}

func Summarize(tasks []domain.Task) Summary {
	s := Summary{
		Total:       len(tasks),
		BySource:    map[string]int{},
		ByCategory:  map[string]int{},
		ByPriority:  map[string]int{},
		ByFramework: map[string]int{},
	}
	for _, t := range tasks {
		s.BySource[t.Source]++
		s.ByCategory[string(t.Category)]++
		s.ByPriority[string(t.Priority)]++
		for _, tag := range t.FrameworkTags {
			s.ByFramework[tag]++
		}
	}
	return s
}
