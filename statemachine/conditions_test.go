package statemachine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericConditionComparators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		comparator Comparator
		a, b       Value
		want       bool
	}{
		{comparator: Equal, a: Int(5), b: Int(5), want: true},
		{comparator: NotEqual, a: Int(5), b: Int(5), want: false},
		{comparator: GreaterThan, a: Int(5), b: Int(5), want: false},
		{comparator: GreaterOrEqual, a: Int(5), b: Int(5), want: true},
		{comparator: LessThan, a: Int(5), b: Int(5), want: false},
		{comparator: LessOrEqual, a: Int(5), b: Int(5), want: true},
		{comparator: LessThan, a: Int(4), b: Int(5), want: true},
		{comparator: GreaterThan, a: Float(5.5), b: Int(5), want: true},
		{comparator: Equal, a: Float(5), b: Int(5), want: true},
		{comparator: NotEqual, a: Float(0.1), b: Float(0.2), want: true},
		{comparator: LessOrEqual, a: Int(6), b: Float(5.9), want: false},
		{comparator: Equal, a: Int(1<<53 + 1), b: Float(1 << 53), want: false},
		{comparator: GreaterThan, a: Int(1<<53 + 1), b: Float(1 << 53), want: true},
		{comparator: LessThan, a: Float(1 << 53), b: Int(1<<53 + 1), want: true},
		{comparator: GreaterThan, a: Int(-3), b: Float(-3.5), want: true},
		{comparator: LessThan, a: Int(-3), b: Float(-2.5), want: true},
		{comparator: LessThan, a: Int(math.MaxInt64), b: Float(math.Inf(1)), want: true},
		{comparator: LessThan, a: Int(math.MaxInt64), b: Float(1 << 63), want: true},
		{comparator: GreaterThan, a: Int(math.MinInt64), b: Float(math.Inf(-1)), want: true},
		{comparator: Equal, a: Int(math.MinInt64), b: Float(-(1 << 63)), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.a.String()+" "+tt.comparator.String()+" "+tt.b.String(), func(t *testing.T) {
			t.Parallel()

			cond, err := NewNumericCondition(Literal(tt.a), Literal(tt.b), tt.comparator)
			require.NoError(t, err)

			got, err := cond.Evaluate(t.Context(), MapFacts{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumericConditionLargeIntegersCompareExactly(t *testing.T) {
	t.Parallel()

	// Both round to the same float64.
	cond, err := NewNumericCondition(Literal(Int(1<<53+1)), Literal(Int(1<<53)), GreaterThan)
	require.NoError(t, err)

	got, err := cond.Evaluate(t.Context(), MapFacts{})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestNumericConditionNaNIsUnordered(t *testing.T) {
	t.Parallel()

	facts := MapFacts{"x": Float(math.NaN())}

	for _, cmp := range []Comparator{Equal, NotEqual, GreaterThan, GreaterOrEqual, LessThan, LessOrEqual} {
		for _, swap := range []bool{false, true} {
			left, right := FactRef("x"), Literal(Int(5))
			if swap {
				left, right = right, left
			}

			cond, err := NewNumericCondition(left, right, cmp)
			require.NoError(t, err)

			got, err := cond.Evaluate(t.Context(), facts)
			require.NoError(t, err)
			assert.Equal(t, cmp == NotEqual, got, cond.String())
		}
	}

	_, err := NewNumericCondition(Literal(Float(math.NaN())), Literal(Int(5)), Equal)
	require.ErrorIs(t, err, ErrMalformedCondition)
	require.ErrorIs(t, err, ErrNonNumericOperand)
}

func TestNumericConditionFactOperands(t *testing.T) {
	t.Parallel()

	cond, err := NewNumericCondition(FactRef("hunger"), Literal(Int(5)), GreaterOrEqual)
	require.NoError(t, err)
	assert.Equal(t, "hunger >= 5", cond.String())

	left, right := cond.Operands()
	assert.True(t, left.IsFact())
	assert.Equal(t, "hunger", left.Key())
	assert.False(t, right.IsFact())

	ok, err := cond.Evaluate(t.Context(), MapFacts{"hunger": Int(7)})
	require.NoError(t, err)
	assert.True(t, ok)

	// The guard follows the fact, not a value captured at construction.
	ok, err = cond.Evaluate(t.Context(), MapFacts{"hunger": Float(2.5)})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cond.Evaluate(t.Context(), MapFacts{"hunger": String("lots")})
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.False(t, ok)
}

func TestNumericConditionReportsBothMissingOperands(t *testing.T) {
	t.Parallel()

	cond, err := NewNumericCondition(FactRef("a"), FactRef("b"), Equal)
	require.NoError(t, err)

	ok, err := cond.Evaluate(t.Context(), MapFacts{})
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrMissingFact)
	assert.Contains(t, err.Error(), `"a"`)
	assert.Contains(t, err.Error(), `"b"`)
}

func TestNewNumericConditionValidation(t *testing.T) {
	t.Parallel()

	_, err := NewNumericCondition(Literal(Int(1)), Literal(Int(1)), comparatorUnset)
	require.ErrorIs(t, err, ErrUnknownComparator)
	require.ErrorIs(t, err, ErrMalformedCondition)

	_, err = NewNumericCondition(Literal(Int(1)), Literal(Int(1)), Comparator(99))
	require.ErrorIs(t, err, ErrUnknownComparator)

	_, err = NewNumericCondition(Literal(String("x")), Literal(Int(1)), Equal)
	require.ErrorIs(t, err, ErrNonNumericOperand)

	_, err = NewNumericCondition(Literal(Int(1)), Literal(Value{}), Equal)
	require.ErrorIs(t, err, ErrNonNumericOperand)
}

func TestParseComparator(t *testing.T) {
	t.Parallel()

	tests := map[string]Comparator{
		"==":               Equal,
		"not_equal":        NotEqual,
		" > ":              GreaterThan,
		"GREATER_OR_EQUAL": GreaterOrEqual,
		"<":                LessThan,
		"less_or_equal":    LessOrEqual,
	}

	for input, want := range tests {
		got, err := ParseComparator(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseComparator("~=")
	require.ErrorIs(t, err, ErrUnknownComparator)
	assert.False(t, comparatorUnset.Valid())
	assert.Equal(t, "comparator(0)", comparatorUnset.String())
}

func TestBoolCondition(t *testing.T) {
	t.Parallel()

	for _, expected := range []bool{true, false} {
		cond, err := NewBoolCondition("isHungry", expected)
		require.NoError(t, err)

		assert.Equal(t, "isHungry", cond.Key())
		assert.Equal(t, expected, cond.Expected())

		ok, err := cond.Evaluate(t.Context(), MapFacts{"isHungry": Bool(expected)})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = cond.Evaluate(t.Context(), MapFacts{"isHungry": Bool(!expected)})
		require.NoError(t, err)
		assert.False(t, ok)
	}

	cond, err := NewBoolCondition("isHungry", true)
	require.NoError(t, err)
	assert.Equal(t, "isHungry == true", cond.String())

	ok, err := cond.Evaluate(t.Context(), MapFacts{})
	require.ErrorIs(t, err, ErrMissingFact)
	assert.False(t, ok)

	ok, err = cond.Evaluate(t.Context(), MapFacts{"isHungry": Int(1)})
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.False(t, ok)

	_, err = NewBoolCondition("  ", true)
	require.ErrorIs(t, err, ErrConditionKeyRequired)
}

func TestNotAndConstants(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	ok, err := Not(Never).Evaluate(ctx, MapFacts{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Not(Always).Evaluate(ctx, MapFacts{})
	require.NoError(t, err)
	assert.False(t, ok)

	inner, err := NewBoolCondition("missing", true)
	require.NoError(t, err)

	ok, err = Not(inner).Evaluate(ctx, MapFacts{})
	require.ErrorIs(t, err, ErrMissingFact)
	assert.False(t, ok, "a diagnostic is never inverted into true")

	assert.Equal(t, "!(missing == true)", Not(inner).String())
	assert.Equal(t, "true", Always.String())
}
