package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"esgtrack/internal/domain"
)

// FileName is the rulebook file name inside a workspace.
const FileName = "esg.yml"

// Config models esg.yml, the rulebook that tunes task generation.
type Config struct {
	Scheduling struct {
		DueDays struct {
			High   int `yaml:"high" json:"high"`
			Medium int `yaml:"medium" json:"medium"`
			Low    int `yaml:"low" json:"low"`
		} `yaml:"due_days" json:"due_days"`
		UpcomingDays int `yaml:"upcoming_days" json:"upcoming_days"`
	} `yaml:"scheduling" json:"scheduling"`
	Categories struct {
		Default   domain.Category            `yaml:"default" json:"default"`
		Overrides map[string]domain.Category `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	} `yaml:"categories" json:"categories"`
	Frameworks struct {
		General  []string                  `yaml:"general" json:"general"`
		Mandated map[string][]MandatedTask `yaml:"mandated" json:"mandated"`
	} `yaml:"frameworks" json:"frameworks"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
}

// MandatedTask is a task template instantiated for every company whose
// sector (or the general UAE list) names the framework.
type MandatedTask struct {
	Title             string          `yaml:"title" json:"title"`
	Description       string          `yaml:"description" json:"description"`
	ComplianceContext string          `yaml:"compliance_context,omitempty" json:"compliance_context,omitempty"`
	ActionRequired    string          `yaml:"action_required" json:"action_required"`
	Category          domain.Category `yaml:"category" json:"category"`
	Priority          domain.Priority `yaml:"priority" json:"priority"`
	EstimatedHours    float64         `yaml:"estimated_hours,omitempty" json:"estimated_hours,omitempty"`
}

type WebhookConfig struct {
	ID             string   `yaml:"id" json:"id"`
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// Load reads and validates the rulebook from a workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with esg config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the rulebook meets required structure.
func (c *Config) Validate() error {
	for name, days := range map[string]int{
		"high":   c.Scheduling.DueDays.High,
		"medium": c.Scheduling.DueDays.Medium,
		"low":    c.Scheduling.DueDays.Low,
	} {
		if days < 0 {
			return fmt.Errorf("config.scheduling.due_days.%s must not be negative", name)
		}
	}
	if c.Scheduling.UpcomingDays < 0 {
		return fmt.Errorf("config.scheduling.upcoming_days must not be negative")
	}
	if c.Categories.Default != "" && !c.Categories.Default.Valid() {
		return fmt.Errorf("config.categories.default %q is not a task category", c.Categories.Default)
	}
	for name, cat := range c.Categories.Overrides {
		if !cat.Valid() {
			return fmt.Errorf("category override %s maps to unknown category %q", name, cat)
		}
	}
	for _, name := range c.Frameworks.General {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("config.frameworks.general contains an empty name")
		}
	}
	for fw, templates := range c.Frameworks.Mandated {
		if strings.TrimSpace(fw) == "" {
			return fmt.Errorf("config.frameworks.mandated has an empty framework name")
		}
		for i, t := range templates {
			if strings.TrimSpace(t.Title) == "" {
				return fmt.Errorf("mandated task %d for %s has no title", i, fw)
			}
			if !t.Category.Valid() {
				return fmt.Errorf("mandated task %q for %s has unknown category %q", t.Title, fw, t.Category)
			}
			if !t.Priority.Valid() {
				return fmt.Errorf("mandated task %q for %s has unknown priority %q", t.Title, fw, t.Priority)
			}
			if t.EstimatedHours < 0 {
				return fmt.Errorf("mandated task %q for %s has negative estimated_hours", t.Title, fw)
			}
		}
	}
	seen := map[string]bool{}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has no url", i)
		}
		if hook.ID != "" {
			if seen[hook.ID] {
				return fmt.Errorf("duplicate webhook id %s", hook.ID)
			}
			seen[hook.ID] = true
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout_seconds", i)
		}
	}
	return nil
}

// DefaultGeneralFrameworks apply to every company regardless of sector.
var DefaultGeneralFrameworks = []string{"UAE Climate Law", "UAE Waste Management Law"}

// GeneralFrameworks returns the sector independent frameworks.
func (c *Config) GeneralFrameworks() []string {
	if c == nil || len(c.Frameworks.General) == 0 {
		return append([]string(nil), DefaultGeneralFrameworks...)
	}
	return append([]string(nil), c.Frameworks.General...)
}

// DefaultCategory is the task category for unmapped sector categories.
func (c *Config) DefaultCategory() domain.Category {
	if c == nil || c.Categories.Default == "" {
		return domain.CategoryEnvironmental
	}
	return c.Categories.Default
}

// UpcomingWindow returns the look-ahead, in days, for upcoming deadlines.
func (c *Config) UpcomingWindow() int {
	if c == nil || c.Scheduling.UpcomingDays <= 0 {
		return 7
	}
	return c.Scheduling.UpcomingDays
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns the default rulebook YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in rulebook.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// ToYAML renders the config back to YAML.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const defaultTemplate = `scheduling:
  due_days:
    high: 30
    medium: 60
    low: 90
  upcoming_days: 7

categories:
  # unmapped sector categories land here
  default: environmental

frameworks:
  general: [UAE Climate Law, UAE Waste Management Law]

  mandated:
    UAE Climate Law:
      - title: Establish greenhouse gas emissions baseline
        description: Measure Scope 1 and Scope 2 emissions for the last full year as the baseline for UAE Climate Law reporting.
        compliance_context: "UAE Climate Law (Federal Decree-Law No. 11 of 2024): GHG measurement and reporting"
        action_required: Fuel and electricity records for the baseline year and the completed emissions inventory report
        category: environmental
        priority: high
        estimated_hours: 16
      - title: Set an emissions reduction plan
        description: Define reduction targets and the measures that will deliver them.
        compliance_context: "UAE Climate Law: emissions reduction plans"
        action_required: Approved emissions reduction plan document
        category: governance
        priority: medium
        estimated_hours: 12

    UAE Waste Management Law:
      - title: Contract a licensed waste collector
        description: All commercial waste must be collected and treated by operators licensed by the competent authority.
        compliance_context: "UAE Waste Management Law (Federal Law No. 12 of 2018): licensed handling"
        action_required: Signed contract with the licensed waste collector and its trade licence
        category: environmental
        priority: high
        estimated_hours: 4
      - title: Keep a waste segregation and disposal record
        description: Record monthly waste quantities by stream and their disposal route.
        compliance_context: "UAE Waste Management Law: record keeping"
        action_required: Monthly waste log in kg by stream
        category: environmental
        priority: medium
        estimated_hours: 8

    Dubai Sustainable Tourism:
      - title: Submit monthly data to the DST Carbon Calculator
        description: Dubai hotels must report energy, water and waste data through the DST Carbon Calculator every month.
        compliance_context: "DST Carbon Calculator (Mandatory)"
        action_required: Monthly DEWA electricity and water bills
        category: environmental
        priority: high
        estimated_hours: 8
      - title: Meet the 19 DST sustainability requirements
        description: Confirm each of the Dubai Sustainable Tourism minimum requirements is in place.
        compliance_context: "Dubai Sustainable Tourism: 19 sustainability requirements (Mandatory)"
        action_required: DST self-assessment report
        category: governance
        priority: high
        estimated_hours: 16

    Green Key Global:
      - title: Prepare the Green Key application dossier
        description: Compile the imperative criteria evidence for Green Key certification.
        compliance_context: "Green Key Global (Voluntary)"
        action_required: Completed Green Key criteria checklist and supporting documents
        category: governance
        priority: low
        estimated_hours: 16

    Al Sa'fat Dubai:
      - title: Confirm Al Sa'fat compliance for building permits
        description: New buildings in Dubai must meet the Al Sa'fat green building regulations before permits are issued.
        compliance_context: "Al Sa'fat Dubai (Mandatory)"
        action_required: Al Sa'fat compliance certificate for each project
        category: governance
        priority: high
        estimated_hours: 12

    Estidama Pearl:
      - title: Register projects for an Estidama Pearl rating
        description: Abu Dhabi projects need a Pearl Design Rating before construction and a Pearl Construction Rating after.
        compliance_context: "Estidama Pearl Rating System (Mandatory in Abu Dhabi)"
        action_required: Pearl Design Rating certificate
        category: governance
        priority: high
        estimated_hours: 16

    ADEK Sustainability Policy:
      - title: Appoint a sustainability coordinator and eco-committee
        description: ADEK requires every school to run a sustainability committee led by a named coordinator.
        compliance_context: "ADEK Sustainability Policy (Mandatory for Abu Dhabi schools)"
        action_required: Appointment letter and committee terms of reference document
        category: governance
        priority: high
        estimated_hours: 4

    MOHAP Hospital Regulation:
      - title: Document medical waste handling procedures
        description: Facilities licensed by MOHAP must document how clinical waste is segregated, stored and collected.
        compliance_context: "MOHAP Hospital Regulation (Mandatory)"
        action_required: Medical waste procedure document and licensed collector contract
        category: environmental
        priority: high
        estimated_hours: 8

    Federal Energy Management Regulation:
      - title: Commission an energy audit
        description: Large energy consumers must audit their consumption and report savings opportunities.
        compliance_context: "Federal Energy Management Regulation"
        action_required: Energy audit report
        category: environmental
        priority: medium
        estimated_hours: 16
`
