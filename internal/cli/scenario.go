package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chaban-mb/wikilift/internal/surface"
)

// Scenario defines a scripted dry-run of the conversion orchestrator.
// The surface is an in-memory fake and resolution is stubbed, so a
// scenario exercises the full engine without touching the network.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Token is an optional fixed request token for deterministic
	// output. A UUIDv7 is minted when empty.
	Token string `yaml:"token,omitempty"`

	// Reference is the primary reference as it reads before the run.
	Reference string `yaml:"reference"`

	// Resolution scripts the resolver's answer for Reference.
	Resolution ResolutionScript `yaml:"resolution"`

	// PendingConflict pre-loads the conflicting-edit signal.
	PendingConflict bool `yaml:"pending_conflict,omitempty"`

	// Items are the dependent annotations on the surface.
	Items []ScenarioItem `yaml:"items"`
}

// ResolutionScript is the stubbed resolver answer: exactly one of
// Entity or Failure.
type ResolutionScript struct {
	// Entity makes resolution succeed with this Wikidata entity id.
	Entity string `yaml:"entity,omitempty"`

	// Failure makes resolution fail with this code:
	// invalid_reference, not_found, no_mapping, or transport.
	Failure string `yaml:"failure,omitempty"`
}

// ScenarioItem is one scripted dependent annotation.
type ScenarioItem struct {
	// Classification is the item's current classification label.
	Classification string `yaml:"classification"`

	// Behavior names the item's scripted deviation. The default,
	// "cooperative", follows the happy path.
	Behavior string `yaml:"behavior,omitempty"`

	// Labels are the options preloaded into the classification
	// selector. Defaults to the item's own classification.
	Labels []string `yaml:"labels,omitempty"`

	// SearchResults maps typed search text to the options offered
	// afterwards.
	SearchResults map[string][]string `yaml:"search_results,omitempty"`
}

// Behavior constants.
const (
	BehaviorCooperative       = "cooperative"
	BehaviorNonActionable     = "non-actionable"
	BehaviorDialogNeverOpens  = "dialog-never-opens"
	BehaviorNoCommitControl   = "no-commit-control"
	BehaviorDialogNeverCloses = "dialog-never-closes"
	BehaviorNoRemovalControl  = "no-removal-control"
)

// FailureCode constants accepted in ResolutionScript.Failure.
var scenarioFailures = map[string]bool{
	"invalid_reference": true,
	"not_found":         true,
	"no_mapping":        true,
	"transport":         true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields (typos) and missing required fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates raw scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Reference == "" {
		return fmt.Errorf("reference is required")
	}

	hasEntity := s.Resolution.Entity != ""
	hasFailure := s.Resolution.Failure != ""
	if hasEntity == hasFailure {
		return fmt.Errorf("resolution: exactly one of entity or failure is required")
	}
	if hasFailure && !scenarioFailures[s.Resolution.Failure] {
		return fmt.Errorf("resolution: unknown failure %q", s.Resolution.Failure)
	}

	for i, item := range s.Items {
		if item.Classification == "" {
			return fmt.Errorf("items[%d]: classification is required", i)
		}
		if item.Behavior != "" {
			if _, err := itemScript(item, ""); err != nil {
				return fmt.Errorf("items[%d]: %w", i, err)
			}
		}
	}

	return nil
}

// itemScript maps a scenario item onto a fake-surface script. Items
// without explicit labels offer their classification plus the
// canonical label, which keeps cooperative scenarios terse.
func itemScript(item ScenarioItem, canonical string) (surface.ItemScript, error) {
	script := surface.ItemScript{
		Options:       item.Labels,
		SearchResults: item.SearchResults,
	}
	if script.Options == nil {
		script.Options = []string{item.Classification}
		if canonical != "" {
			script.Options = append(script.Options, canonical)
		}
	}

	switch item.Behavior {
	case "", BehaviorCooperative:
	case BehaviorNonActionable:
		script.NoEditControl = true
	case BehaviorDialogNeverOpens:
		script.DialogNeverOpens = true
	case BehaviorNoCommitControl:
		script.NoCommitControl = true
	case BehaviorDialogNeverCloses:
		script.DialogNeverCloses = true
	case BehaviorNoRemovalControl:
		script.NoRemovalControl = true
	default:
		return surface.ItemScript{}, fmt.Errorf("unknown behavior %q", item.Behavior)
	}

	return script, nil
}
