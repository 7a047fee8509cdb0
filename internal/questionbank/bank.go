// Package questionbank holds the per-sector scoping questionnaires.
//
// A Bank is loaded once and never mutated; lookups hand out copies so
// callers cannot alter the shared reference data.
package questionbank

import (
	"bytes"
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"esgtrack/internal/domain"
)

//go:embed sectors.yml
var defaultSectors []byte

var sectorAliases = map[string]string{
	"healthcare":  "health",
	"hotel":       "hospitality",
	"hotels":      "hospitality",
	"tourism":     "hospitality",
	"real_estate": "construction",
	"transport":   "logistics",
	"ecommerce":   "retail",
	"tech":        "technology",
}

type document struct {
	Sectors []domain.Sector `yaml:"sectors"`
}

// Bank is an immutable set of sector definitions.
type Bank struct {
	order   []string
	sectors map[string]domain.Sector
}

// Default loads the embedded question bank.
func Default(logger *zap.Logger) (*Bank, error) {
	return FromYAML(defaultSectors, logger)
}

// FromFile loads a question bank override from disk.
func FromFile(path string, logger *zap.Logger) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read question bank %s", path)
	}
	return FromYAML(data, logger)
}

// Load returns the override at path when set, otherwise the embedded bank.
func Load(path string, logger *zap.Logger) (*Bank, error) {
	if strings.TrimSpace(path) == "" {
		return Default(logger)
	}
	return FromFile(path, logger)
}

// FromYAML parses and validates a question bank document.
func FromYAML(data []byte, logger *zap.Logger) (*Bank, error) {
	if logger == nil {
		logger = zap.L()
	}
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "parse question bank")
	}
	b := &Bank{sectors: make(map[string]domain.Sector, len(doc.Sectors))}
	seen := map[string]string{}
	for _, s := range doc.Sectors {
		if s.Key == "" {
			return nil, eris.New("sector with empty key")
		}
		if _, dup := b.sectors[s.Key]; dup {
			return nil, eris.Errorf("duplicate sector %s", s.Key)
		}
		allowed := make(map[string]bool, len(s.Categories))
		for _, c := range s.Categories {
			allowed[c] = true
		}
		for _, q := range s.Questions {
			if q.ID == "" {
				return nil, eris.Errorf("sector %s has a question without id", s.Key)
			}
			if owner, dup := seen[q.ID]; dup {
				return nil, eris.Errorf("duplicate question id %s (sectors %s and %s)", q.ID, owner, s.Key)
			}
			seen[q.ID] = s.Key
			switch q.Type {
			case domain.QuestionYesNo, domain.QuestionText, domain.QuestionNumber:
			default:
				return nil, eris.Errorf("question %s has unknown type %q", q.ID, q.Type)
			}
			if !allowed[q.Category] {
				logger.Warn("question category not in sector taxonomy",
					zap.String("sector", s.Key),
					zap.String("question", q.ID),
					zap.String("category", q.Category))
			}
		}
		b.order = append(b.order, s.Key)
		b.sectors[s.Key] = s
	}
	return b, nil
}

// NormalizeSectorKey lower-cases a user supplied sector and maps known aliases.
func NormalizeSectorKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer(" ", "_", "-", "_", "&", "").Replace(k)
	if alias, ok := sectorAliases[k]; ok {
		return alias
	}
	return k
}

// Sectors returns the sector keys in document order.
func (b *Bank) Sectors() []string {
	return append([]string(nil), b.order...)
}

// Sector returns a copy of one sector definition.
func (b *Bank) Sector(key string) (domain.Sector, bool) {
	s, ok := b.sectors[key]
	if !ok {
		return domain.Sector{}, false
	}
	s.Categories = append([]string(nil), s.Categories...)
	s.Frameworks = append([]string(nil), s.Frameworks...)
	s.Questions = append([]domain.Question(nil), s.Questions...)
	return s, true
}

// SectorQuestions returns the questions for key, or an empty list for an unknown sector.
func (b *Bank) SectorQuestions(key string) []domain.Question {
	s, ok := b.sectors[key]
	if !ok {
		return []domain.Question{}
	}
	return append([]domain.Question{}, s.Questions...)
}

// SectorFrameworks returns the framework names for key, or an empty list for an unknown sector.
func (b *Bank) SectorFrameworks(key string) []string {
	s, ok := b.sectors[key]
	if !ok {
		return []string{}
	}
	return append([]string{}, s.Frameworks...)
}

// Question finds a question by id across all sectors.
func (b *Bank) Question(id string) (domain.Question, string, bool) {
	for _, key := range b.order {
		for _, q := range b.sectors[key].Questions {
			if q.ID == id {
				return q, key, true
			}
		}
	}
	return domain.Question{}, "", false
}
