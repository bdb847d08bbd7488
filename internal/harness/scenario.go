package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a delete scenario: entity types, steps and assertions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is the directory of CUE entity-type specs, relative to the
	// scenario file.
	Specs string `yaml:"specs"`

	// MaxDeletes overrides the per-flow delete quota. Zero keeps the default.
	MaxDeletes int `yaml:"max_deletes,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step operations.
const (
	OpCreate       = "create"
	OpUpdate       = "update"
	OpClear        = "clear"
	OpDelete       = "delete"
	OpSetComposite = "set_composite"
)

// Step is one operation of a scenario.
type Step struct {
	Op string `yaml:"op"`

	// Name is the entity alias. create binds it; update, clear and delete
	// look it up.
	Name string `yaml:"name,omitempty"`

	// Type is the entity type for create and set_composite.
	Type string `yaml:"type,omitempty"`

	// Label defaults to Name.
	Label string `yaml:"label,omitempty"`

	// Refs maps reference fields to target aliases. update replaces only
	// the listed fields.
	Refs map[string][]string `yaml:"refs,omitempty"`

	// Field is the field cleared by clear or configured by set_composite.
	Field string `yaml:"field,omitempty"`

	// NewRevision saves update and clear as a new revision.
	NewRevision bool `yaml:"new_revision,omitempty"`

	Composite          bool `yaml:"composite,omitempty"`
	CompositeRevisions bool `yaml:"composite_revisions,omitempty"`

	// ExpectError makes the step pass only if it fails with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion types.
const (
	AssertExists      = "exists"
	AssertMissing     = "missing"
	AssertReferencing = "referencing"
	AssertDeleteCount = "delete_count"
)

// Assertion validates the final state or the trace.
type Assertion struct {
	Type string `yaml:"type"`

	// Entities are the aliases checked by exists and missing.
	Entities []string `yaml:"entities,omitempty"`

	// Target is the alias whose referencing entities are checked.
	Target string `yaml:"target,omitempty"`

	// Expect lists the referencing aliases in id order.
	Expect []string `yaml:"expect,omitempty"`

	// Count is the expected number of deleted entities (delete_count).
	Count int `yaml:"count,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The spec directory is
// resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(scenario.Specs) {
		scenario.Specs = filepath.Join(filepath.Dir(path), scenario.Specs)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML, rejecting unknown fields.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Specs == "" {
		return fmt.Errorf("specs is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	if s.MaxDeletes < 0 {
		return fmt.Errorf("max_deletes must be non-negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(step, i); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, index int) error {
	switch step.Op {
	case OpCreate:
		if step.Name == "" || step.Type == "" {
			return fmt.Errorf("steps[%d]: create requires name and type", index)
		}
	case OpUpdate, OpDelete:
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: %s requires name", index, step.Op)
		}
	case OpClear:
		if step.Name == "" || step.Field == "" {
			return fmt.Errorf("steps[%d]: clear requires name and field", index)
		}
	case OpSetComposite:
		if step.Type == "" || step.Field == "" {
			return fmt.Errorf("steps[%d]: set_composite requires type and field", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	switch a.Type {
	case AssertExists, AssertMissing:
		if len(a.Entities) == 0 {
			return fmt.Errorf("assertions[%d]: entities are required for %s", index, a.Type)
		}
	case AssertReferencing:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for referencing", index)
		}
	case AssertDeleteCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for delete_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
