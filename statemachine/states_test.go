package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCondition records how often it is evaluated.
type countingCondition struct {
	result bool
	calls  *int
}

func (c countingCondition) Evaluate(context.Context, Facts) (bool, error) {
	*c.calls++

	return c.result, nil
}

func (c countingCondition) String() string {
	return "counting"
}

func TestTransitionEvaluatesEveryCondition(t *testing.T) {
	t.Parallel()

	graph := NewGraph("t")
	a, _ := graph.AddState("a")
	b, _ := graph.AddState("b")

	calls := 0
	tr, err := graph.AddTransition(a, b,
		countingCondition{result: false, calls: &calls},
		countingCondition{result: true, calls: &calls},
		countingCondition{result: true, calls: &calls},
	)
	require.NoError(t, err)

	fires, err := tr.Test(t.Context(), MapFacts{})
	require.NoError(t, err)
	assert.False(t, fires)
	assert.Equal(t, 3, calls, "conditions after a false one are still evaluated")
}

func TestTransitionEmptyConditionsFire(t *testing.T) {
	t.Parallel()

	graph := NewGraph("t")
	a, _ := graph.AddState("a")

	tr, err := graph.AddTransition(a, a)
	require.NoError(t, err)

	fires, err := tr.Test(t.Context(), nil)
	require.NoError(t, err)
	assert.True(t, fires)
	assert.Equal(t, "a -> a", tr.String())
}

func TestTransitionAccessors(t *testing.T) {
	t.Parallel()

	graph := NewGraph("t")
	a, _ := graph.AddState("a")
	b, _ := graph.AddState("b")

	tr, err := graph.AddLabeledTransition("go", a, b, Always, Never)
	require.NoError(t, err)

	assert.Equal(t, a, tr.From())
	assert.Equal(t, b, tr.To())
	assert.Equal(t, "a", tr.FromState().Name())
	assert.Equal(t, "b", tr.ToState().Name())
	assert.Equal(t, "go", tr.Label())
	assert.Equal(t, "a -> b [true && false]", tr.String())

	conds := tr.Conditions()
	conds[0] = Never
	assert.Equal(t, Always, tr.Conditions()[0], "Conditions returns a copy")
}

func TestTransitionDiagnosticCountsAsFalse(t *testing.T) {
	t.Parallel()

	graph := NewGraph("t")
	a, _ := graph.AddState("a")
	b, _ := graph.AddState("b")

	missing, err := NewBoolCondition("missing", true)
	require.NoError(t, err)

	tr, err := graph.AddTransition(a, b, Always, missing)
	require.NoError(t, err)

	fires, err := tr.Test(t.Context(), MapFacts{})
	assert.False(t, fires)
	require.ErrorIs(t, err, ErrMissingFact)

	var condErr *ConditionError
	require.ErrorAs(t, err, &condErr)
	assert.Equal(t, "missing == true", condErr.Condition)
}

func TestTestTransitingLastMatchWins(t *testing.T) {
	t.Parallel()

	graph := NewGraph("t")
	src, _ := graph.AddState("src")
	t1, _ := graph.AddState("t1")
	t2, _ := graph.AddState("t2")
	t3, _ := graph.AddState("t3")

	_, err := graph.AddTransition(src, t1, Always)
	require.NoError(t, err)
	_, err = graph.AddTransition(src, t2, Always)
	require.NoError(t, err)
	_, err = graph.AddTransition(src, t3, Never)
	require.NoError(t, err)

	state, _ := graph.State(src)

	match, err := state.TestTransiting(t.Context(), MapFacts{})
	require.NoError(t, err)

	tr, ok := match.Get()
	require.True(t, ok)
	assert.Equal(t, "t2", tr.ToState().Name())
}

func TestTestTransitingNoMatch(t *testing.T) {
	t.Parallel()

	graph := NewGraph("t")
	src, _ := graph.AddState("src")
	dst, _ := graph.AddState("dst")

	_, err := graph.AddTransition(src, dst, Never)
	require.NoError(t, err)

	state, _ := graph.State(src)

	match, err := state.TestTransiting(t.Context(), MapFacts{})
	require.NoError(t, err)
	assert.True(t, match.Empty())

	sink, _ := graph.State(dst)

	match, err = sink.TestTransiting(t.Context(), MapFacts{})
	require.NoError(t, err)
	assert.True(t, match.Empty())
	assert.Empty(t, sink.Transitions())
}

func TestTestTransitingWrapsDiagnostics(t *testing.T) {
	t.Parallel()

	graph := NewGraph("t")
	src, _ := graph.AddState("idle")
	dst, _ := graph.AddState("eat")

	missing, err := NewBoolCondition("isHungry", true)
	require.NoError(t, err)

	_, err = graph.AddTransition(src, dst, missing)
	require.NoError(t, err)

	// A later transition still fires despite the earlier diagnostic.
	_, err = graph.AddTransition(src, src)
	require.NoError(t, err)

	state, _ := graph.State(src)

	match, err := state.TestTransiting(t.Context(), MapFacts{})
	require.ErrorIs(t, err, ErrMissingFact)

	var trErr *TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, "idle", trErr.From)
	assert.Equal(t, "eat", trErr.To)

	tr, ok := match.Get()
	require.True(t, ok)
	assert.Equal(t, "idle", tr.ToState().Name())
}
