package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fxparams/internal/detect"
)

// Scenario drives a layered store and the change detector step by step.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy is the detector base-layer policy: verify (default) or trust_base.
	Policy string `yaml:"policy,omitempty"`

	// Base holds the base-layer parameters, written in sorted key order
	// before the first step.
	Base map[string]any `yaml:"base,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`
}

// Step operations.
const (
	OpSet            = "set"
	OpUnset          = "unset"
	OpPush           = "push"
	OpPop            = "pop"
	OpBind           = "bind"
	OpComputeLevels  = "compute_levels"
	OpUpdateCounters = "update_counters"
	OpResync         = "resync"
	OpCheck          = "check"
)

// Check expectations.
const (
	ExpectChanged   = "changed"
	ExpectUnchanged = "unchanged"
)

// Step is a single scenario operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Key is the parameter written by set and unset.
	Key string `yaml:"key,omitempty"`

	// Value is the value written by set. Converted with ir.FromAny.
	Value any `yaml:"value,omitempty"`

	// Layer names the layer created by push.
	Layer string `yaml:"layer,omitempty"`

	// Unit names the definition used by bind, compute_levels,
	// update_counters, resync and check.
	Unit string `yaml:"unit,omitempty"`

	// Keys restricts bind to a subset of the store. Empty binds every key.
	Keys []string `yaml:"keys,omitempty"`

	// Expect is the expected check result: changed or unchanged.
	Expect string `yaml:"expect,omitempty"`

	// ChangedKey, if set on a check, is the expected first changed key.
	ChangedKey string `yaml:"changed_key,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
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

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by path.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := detect.ParsePolicy(s.Policy); err != nil {
		return err
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its op.
func validateStep(index int, st *Step) error {
	switch st.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)

	case OpSet, OpUnset:
		if st.Key == "" {
			return fmt.Errorf("steps[%d]: key is required for %s", index, st.Op)
		}

	case OpPush:
		if st.Layer == "" {
			return fmt.Errorf("steps[%d]: layer is required for push", index)
		}

	case OpPop:

	case OpBind, OpComputeLevels, OpUpdateCounters, OpResync:
		if st.Unit == "" {
			return fmt.Errorf("steps[%d]: unit is required for %s", index, st.Op)
		}

	case OpCheck:
		if st.Unit == "" {
			return fmt.Errorf("steps[%d]: unit is required for check", index)
		}
		if st.Expect != ExpectChanged && st.Expect != ExpectUnchanged {
			return fmt.Errorf("steps[%d]: expect must be %q or %q", index, ExpectChanged, ExpectUnchanged)
		}
		if st.ChangedKey != "" && st.Expect != ExpectChanged {
			return fmt.Errorf("steps[%d]: changed_key requires expect: changed", index)
		}

	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	return nil
}
