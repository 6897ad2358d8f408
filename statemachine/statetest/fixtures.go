package statetest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// WriteConfig saves config as YAML in a temporary directory and returns the path.
func WriteConfig(t testing.TB, config *statemachine.Config) string {
	t.Helper()

	data, err := yaml.Marshal(config)
	require.NoError(t, err, "failed to marshal config")

	path := filepath.Join(t.TempDir(), config.Name+".yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600), "failed to write config")

	return path
}

// MustBool returns a boolean condition or fails the test.
func MustBool(t testing.TB, key string, expected bool) *statemachine.BoolCondition {
	t.Helper()

	cond, err := statemachine.NewBoolCondition(key, expected)
	require.NoError(t, err)

	return cond
}

// BoolGuard is the config form of a boolean condition.
func BoolGuard(key string, expected bool) statemachine.ConditionConfig {
	return statemachine.ConditionConfig{
		Type:   statemachine.ConditionTypeBool,
		Fact:   key,
		Expect: &expected,
	}
}

// CommonTestConfigs provides frequently used test configurations.
var CommonTestConfigs = struct { //nolint:gochecknoglobals
	// PingPong alternates between two states on every tick.
	PingPong func() *statemachine.Config
	// Toggle follows a single boolean fact.
	Toggle func() *statemachine.Config
	// Sink has a state with no way out.
	Sink func() *statemachine.Config
}{
	PingPong: func() *statemachine.Config {
		return &statemachine.Config{
			Name:         "pingpong",
			InitialState: "ping",
			States: []statemachine.StateConfig{
				{Name: "ping", Transitions: []statemachine.TransitionConfig{{To: "pong", Label: "serve"}}},
				{Name: "pong", Transitions: []statemachine.TransitionConfig{{To: "ping", Label: "return"}}},
			},
		}
	},
	Toggle: func() *statemachine.Config {
		return &statemachine.Config{
			Name:         "toggle",
			InitialState: "off",
			States: []statemachine.StateConfig{
				{Name: "off", Transitions: []statemachine.TransitionConfig{
					{To: "on", Label: "switch_on", Conditions: []statemachine.ConditionConfig{BoolGuard("power", true)}},
				}},
				{Name: "on", Transitions: []statemachine.TransitionConfig{
					{To: "off", Label: "switch_off", Conditions: []statemachine.ConditionConfig{BoolGuard("power", false)}},
				}},
			},
		}
	},
	Sink: func() *statemachine.Config {
		return &statemachine.Config{
			Name:         "sink",
			InitialState: "start",
			States: []statemachine.StateConfig{
				{Name: "start", Transitions: []statemachine.TransitionConfig{{To: "trapped"}}},
				{Name: "trapped"},
			},
		}
	},
}
