package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a conformance scenario: actions dispatched in order through
// the normalizer, with per-step expectations and final assertions.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas is the CUE schema directory. LoadScenario resolves it
	// relative to the scenario file.
	Schemas string `yaml:"schemas"`

	// Steps are dispatched in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the journal.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step dispatches one action document.
type Step struct {
	// Dispatch is the action document: type, payload, error, meta.
	Dispatch map[string]any `yaml:"dispatch"`

	// Expect is checked against what reached the reducer.
	// If nil, the step only has to dispatch without error.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	Passthrough    *bool  `yaml:"passthrough,omitempty"`
	Normalized     *bool  `yaml:"normalized,omitempty"`
	SchemaStripped *bool  `yaml:"schema_stripped,omitempty"`
	Payload        any    `yaml:"payload,omitempty"`
	Result         any    `yaml:"result,omitempty"`
	Error          string `yaml:"error,omitempty"`
}

// Assertion validates the final state or the journal.
type Assertion struct {
	// Type is one of entity, forwarded_count, forwarded_order.
	Type string `yaml:"type"`

	// Key and ID locate an entity (entity).
	Key string `yaml:"key,omitempty"`
	ID  string `yaml:"id,omitempty"`

	// Fields is a subset match against the entity (entity).
	Fields map[string]any `yaml:"fields,omitempty"`

	// Action restricts forwarded_count to one action type.
	Action string `yaml:"action,omitempty"`

	// Count is the expected number of forwarded actions (forwarded_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected order of forwarded types (forwarded_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertEntity         = "entity"
	AssertForwardedCount = "forwarded_count"
	AssertForwardedOrder = "forwarded_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schemas != "" && !filepath.IsAbs(scenario.Schemas) {
		scenario.Schemas = filepath.Join(filepath.Dir(path), scenario.Schemas)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Schemas); err != nil {
		return nil, fmt.Errorf("invalid scenario: schemas directory not found: %s", scenario.Schemas)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without resolving or validating paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schemas == "" {
		return fmt.Errorf("schemas directory is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Dispatch == nil {
			return fmt.Errorf("steps[%d]: dispatch is required", i)
		}
		if typ, _ := step.Dispatch["type"].(string); typ == "" {
			return fmt.Errorf("steps[%d]: dispatch.type is required", i)
		}
		if e := step.Expect; e != nil && e.Error != "" {
			if e.Passthrough != nil || e.Normalized != nil || e.SchemaStripped != nil || e.Payload != nil || e.Result != nil {
				return fmt.Errorf("steps[%d].expect: error cannot be combined with other expectations", i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEntity:
		if a.Key == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: key and id are required for entity", index)
		}
	case AssertForwardedCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for forwarded_count", index)
		}
	case AssertForwardedOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for forwarded_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
