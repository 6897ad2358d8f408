package statemachine

import (
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the declarative form of a Graph plus its initial state.
type Config struct {
	Name         string        `json:"name"         yaml:"name"`
	InitialState string        `json:"initialState" yaml:"initialState"`
	States       []StateConfig `json:"states"       yaml:"states"`
}

// StateConfig defines a state and its outgoing transitions in declaration order.
type StateConfig struct {
	Name        string             `json:"name"        yaml:"name"`
	Transitions []TransitionConfig `json:"transitions" yaml:"transitions"`
}

// TransitionConfig defines a transition. All conditions must hold.
type TransitionConfig struct {
	To         string            `json:"to"         yaml:"to"`
	Label      string            `json:"label"      yaml:"label"`
	Conditions []ConditionConfig `json:"conditions" yaml:"conditions"`
}

// ConditionConfig defines a condition. Which fields apply depends on Type:
//   - bool:    Fact, Expect (defaults to true)
//   - numeric: Left, Comparator, Right
//   - script:  Expr
//   - not:     Condition
//
// Parameters carries free-form settings for custom builders.
type ConditionConfig struct {
	Type       string           `json:"type"                 yaml:"type"`
	Fact       string           `json:"fact,omitempty"       yaml:"fact,omitempty"`
	Expect     *bool            `json:"expect,omitempty"     yaml:"expect,omitempty"`
	Left       *OperandConfig   `json:"left,omitempty"       yaml:"left,omitempty"`
	Comparator string           `json:"comparator,omitempty" yaml:"comparator,omitempty"`
	Right      *OperandConfig   `json:"right,omitempty"      yaml:"right,omitempty"`
	Expr       string           `json:"expr,omitempty"       yaml:"expr,omitempty"`
	Condition  *ConditionConfig `json:"condition,omitempty"  yaml:"condition,omitempty"`
	Parameters map[string]any   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// OperandConfig is either a fact reference or a literal value.
type OperandConfig struct {
	Fact  string `json:"fact,omitempty"  yaml:"fact,omitempty"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// LoadConfig loads a configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes loads a configuration from YAML bytes.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFromFS loads a configuration from an embedded filesystem.
func LoadConfigFromFS(fsys fs.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// Validate checks names and references. Condition parameters are checked by Build.
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrConfigNameRequired
	}

	if c.InitialState == "" {
		return ErrInitialStateRequired
	}

	if len(c.States) == 0 {
		return ErrStateRequired
	}

	stateNames := make(map[string]bool, len(c.States))

	for _, state := range c.States {
		if state.Name == "" {
			return ErrStateNameRequired
		}

		if stateNames[state.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateStateName, state.Name)
		}

		stateNames[state.Name] = true
	}

	if !stateNames[c.InitialState] {
		return fmt.Errorf("%w: %s", ErrInitialStateNotFound, c.InitialState)
	}

	for _, state := range c.States {
		for i, transition := range state.Transitions {
			if transition.To == "" {
				return fmt.Errorf("state %s, transition %d: %w", state.Name, i, ErrTransitionToRequired)
			}

			if !stateNames[transition.To] {
				return fmt.Errorf("state %s, transition %d: %w: %s (%w)",
					state.Name, i, ErrTransitionToNotFound, transition.To, ErrDanglingTransition)
			}
		}
	}

	return nil
}

// Build turns the configuration into a graph. A nil factory uses the
// built-in condition types.
func (c *Config) Build(factory *ConditionFactory) (*Graph, StateID, error) {
	if err := c.Validate(); err != nil {
		return nil, NoState, err
	}

	if factory == nil {
		factory = NewConditionFactory()
	}

	graph := NewGraph(c.Name)

	for _, state := range c.States {
		if _, err := graph.AddState(state.Name); err != nil {
			return nil, NoState, err
		}
	}

	for _, state := range c.States {
		from := graph.MustStateID(state.Name)

		for i, transCfg := range state.Transitions {
			conditions := make([]Condition, 0, len(transCfg.Conditions))

			for j, condCfg := range transCfg.Conditions {
				cond, err := factory.Create(condCfg)
				if err != nil {
					return nil, NoState, fmt.Errorf("state %s, transition %d, condition %d: %w",
						state.Name, i, j, err)
				}

				conditions = append(conditions, cond)
			}

			to := graph.MustStateID(transCfg.To)
			if _, err := graph.AddLabeledTransition(transCfg.Label, from, to, conditions...); err != nil {
				return nil, NoState, fmt.Errorf("state %s, transition %d: %w", state.Name, i, err)
			}
		}
	}

	return graph, graph.MustStateID(c.InitialState), nil
}
