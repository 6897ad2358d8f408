package statetest

import (
	"testing"

	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/stretchr/testify/require"
)

// Step is one scripted tick: facts are written and deleted, then the machine
// ticks once. An empty Expect skips the state check.
type Step struct {
	Set    map[string]any
	Delete []string
	Expect string
}

// Scenario is a scripted sequence of fact changes and expected states.
type Scenario struct {
	Name     string
	Config   *statemachine.Config
	Factory  *statemachine.ConditionFactory
	Facts    map[string]any
	Steps    []Step
	Matchers []Matcher
}

// RunScenario runs a scenario as a subtest and returns the machine for
// further inspection.
func RunScenario(t *testing.T, scenario Scenario) *TestMachine {
	t.Helper()

	var tm *TestMachine

	t.Run(scenario.Name, func(t *testing.T) {
		tm = NewTestMachineFromConfig(t, scenario.Config, scenario.Factory, scenario.Facts)

		for i, step := range scenario.Steps {
			if len(step.Set) > 0 {
				tm.Set(step.Set)
			}

			tm.Delete(step.Delete...)
			tm.Tick()

			if step.Expect != "" {
				require.Equal(t, step.Expect, tm.ActiveState().Name(), "state after step %d", i)
			}
		}

		for _, matcher := range scenario.Matchers {
			tm.Assert(matcher)
		}
	})

	return tm
}
