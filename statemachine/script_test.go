package statemachine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptCondition(t *testing.T) {
	t.Parallel()

	cond, err := NewScriptCondition("facts.hunger >= 5 && !facts.isHeat")
	require.NoError(t, err)
	assert.Equal(t, "script(facts.hunger >= 5 && !facts.isHeat)", cond.String())
	assert.Equal(t, "facts.hunger >= 5 && !facts.isHeat", cond.Expression())

	tests := []struct {
		name  string
		facts MapFacts
		want  bool
	}{
		{name: "hungry and calm", facts: MapFacts{"hunger": Int(6), "isHeat": Bool(false)}, want: true},
		{name: "hungry in heat", facts: MapFacts{"hunger": Int(6), "isHeat": Bool(true)}, want: false},
		{name: "float hunger", facts: MapFacts{"hunger": Float(4.9), "isHeat": Bool(false)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := cond.Evaluate(t.Context(), tt.facts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScriptConditionModules(t *testing.T) {
	t.Parallel()

	cond, err := NewScriptCondition(`import("text").has_prefix(facts.name, "cow")`)
	require.NoError(t, err)

	ok, err := cond.Evaluate(t.Context(), MapFacts{"name": String("cow-7")})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScriptConditionErrors(t *testing.T) {
	t.Parallel()

	_, err := NewScriptCondition("")
	require.ErrorIs(t, err, ErrMalformedCondition)

	_, err = NewScriptCondition("facts.a >")
	require.ErrorIs(t, err, ErrMalformedCondition)

	cond, err := NewScriptCondition("facts.energy + 1")
	require.NoError(t, err)

	ok, err := cond.Evaluate(t.Context(), MapFacts{"energy": Int(1)})
	require.ErrorIs(t, err, ErrScriptResult)
	assert.False(t, ok)

	// A missing key reads as undefined, which is not a boolean.
	cond, err = NewScriptCondition("facts.missing")
	require.NoError(t, err)

	_, err = cond.Evaluate(t.Context(), MapFacts{})
	require.ErrorIs(t, err, ErrScriptResult)
}

func TestScriptConditionConcurrentEvaluation(t *testing.T) {
	t.Parallel()

	cond, err := NewScriptCondition("facts.n % 2 == 0")
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := cond.Evaluate(t.Context(), MapFacts{"n": Int(int64(i))})
			assert.NoError(t, err)
			assert.Equal(t, i%2 == 0, ok)
		}()
	}

	wg.Wait()
}
