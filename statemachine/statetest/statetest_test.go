package statetest

import (
	"testing"

	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/amp-labs/tickfsm/statemachine/presets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestMachineRecordsTrace(t *testing.T) {
	t.Parallel()

	graph, initial, err := presets.Animal()
	require.NoError(t, err)

	tm := NewTestMachine(t, graph, initial, map[string]any{
		presets.FactHungry: false,
		presets.FactHeat:   false,
	})

	tm.Tick()
	tm.Set(map[string]any{presets.FactHungry: true}).Tick()
	tm.Set(map[string]any{presets.FactHungry: false}).Tick()

	trace := tm.GetTrace()
	require.Len(t, trace, 3)

	assert.False(t, trace[0].Fired)
	assert.True(t, trace[1].Fired)
	assert.Equal(t, "hungry", trace[1].Label)
	assert.Equal(t, statemachine.Bool(true), trace[1].Facts[presets.FactHungry])
	assert.Equal(t, uint64(3), trace[2].Tick)

	assert.Equal(t, []string{"idle", "idle", "eat", "idle"}, tm.Path())

	tm.AssertState(presets.Idle)
	tm.AssertStateVisited(presets.Eat)
	tm.AssertTransitionTaken(presets.Idle, presets.Eat)
	tm.AssertTransitionTaken(presets.Eat, presets.Idle)
	tm.AssertNoDiagnostics()
	tm.Assert(FollowedPath("idle", "idle", "eat", "idle"))

	assertions := tm.GetAssertions()
	require.Len(t, assertions, 6)

	for _, a := range assertions {
		assert.True(t, a.Passed, a.Name)
	}
}

func TestMatchersReportFailures(t *testing.T) {
	t.Parallel()

	tm := NewTestMachineFromConfig(t, CommonTestConfigs.Toggle(), nil, nil)
	tm.TickN(2)

	tm.AssertDiagnostic(statemachine.ErrMissingFact)

	tests := []struct {
		name    string
		matcher Matcher
		wantErr error
	}{
		{name: "not visited", matcher: StateWasVisited("on"), wantErr: ErrStateNotVisited},
		{name: "not taken", matcher: TransitionWasTaken("off", "on"), wantErr: ErrTransitionNotTaken},
		{name: "diagnostics", matcher: NoDiagnostics(), wantErr: ErrUnexpectedDiag},
		{name: "path", matcher: FollowedPath("off", "on"), wantErr: ErrPathMismatch},
		{name: "other diagnostic", matcher: DiagnosticIs(statemachine.ErrTypeMismatch), wantErr: ErrDiagnosticMissing},
		{name: "any", matcher: Any(StateWasVisited("on"), NoDiagnostics()), wantErr: ErrNoMatchersPassed},
		{name: "all", matcher: All(StateWasVisited("off"), StateWasVisited("on")), wantErr: ErrStateNotVisited},
	}

	for _, tt := range tests {
		matched, err := tt.matcher.Match(tm)
		assert.False(t, matched, tt.name)
		require.ErrorIs(t, err, tt.wantErr, tt.name)
		assert.NotEmpty(t, tt.matcher.Description())
	}

	matched, err := Any(StateWasVisited("on"), StateWasVisited("off")).Match(tm)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEmptyTrace(t *testing.T) {
	t.Parallel()

	tm := NewTestMachineFromConfig(t, CommonTestConfigs.PingPong(), nil, nil)

	assert.Equal(t, []string{"ping"}, tm.Path())

	_, err := NoDiagnostics().Match(tm)
	require.ErrorIs(t, err, ErrNoTrace)

	_, err = FollowedPath("ping").Match(tm)
	require.ErrorIs(t, err, ErrNoTrace)
}

func TestRunScenario(t *testing.T) {
	t.Parallel()

	tm := RunScenario(t, Scenario{
		Name:   "animal needs",
		Config: mustPreset(t, "animal"),
		Facts:  map[string]any{presets.FactHungry: false, presets.FactHeat: false},
		Steps: []Step{
			{Expect: presets.Idle},
			{Set: map[string]any{presets.FactHungry: true, presets.FactHeat: true}, Expect: presets.Reproduce},
			{Set: map[string]any{presets.FactHeat: false}, Expect: presets.Idle},
			{Expect: presets.Eat},
			{Delete: []string{presets.FactHungry}, Expect: presets.Eat},
		},
		Matchers: []Matcher{
			TransitionWasTaken(presets.Idle, presets.Reproduce),
			DiagnosticIs(statemachine.ErrMissingFact),
		},
	})

	require.NotNil(t, tm)
	assert.Equal(t, uint64(5), tm.Ticks())
}

func TestPingPongAndSink(t *testing.T) {
	t.Parallel()

	ping := NewTestMachineFromConfig(t, CommonTestConfigs.PingPong(), nil, nil)
	ping.TickN(3)
	ping.Assert(FollowedPath("ping", "pong", "ping", "pong"))

	sink := NewTestMachineFromConfig(t, CommonTestConfigs.Sink(), nil, nil)
	sink.TickN(4)
	sink.AssertState("trapped")
	sink.Assert(FollowedPath("start", "trapped", "trapped", "trapped", "trapped"))
}

func TestWriteConfig(t *testing.T) {
	t.Parallel()

	path := WriteConfig(t, CommonTestConfigs.Toggle())

	loaded, err := statemachine.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, CommonTestConfigs.Toggle(), loaded)
}

func mustPreset(t *testing.T, name string) *statemachine.Config {
	t.Helper()

	config, err := presets.Config(name)
	require.NoError(t, err)

	return config
}
