package statemachine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Comparator selects the relation tested by a NumericCondition.
type Comparator int

const (
	comparatorUnset Comparator = iota
	Equal
	NotEqual
	GreaterThan
	GreaterOrEqual
	LessThan
	LessOrEqual
)

var comparatorNames = map[Comparator][2]string{
	Equal:          {"==", "equal"},
	NotEqual:       {"!=", "not_equal"},
	GreaterThan:    {">", "greater_than"},
	GreaterOrEqual: {">=", "greater_or_equal"},
	LessThan:       {"<", "less_than"},
	LessOrEqual:    {"<=", "less_or_equal"},
}

// ParseComparator accepts a symbol ("<=") or a snake_case name ("less_or_equal").
func ParseComparator(s string) (Comparator, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for cmp, names := range comparatorNames {
		if s == names[0] || s == names[1] {
			return cmp, nil
		}
	}

	return comparatorUnset, fmt.Errorf("%w: %w: %q", ErrMalformedCondition, ErrUnknownComparator, s)
}

// Valid reports whether c is one of the six comparators.
func (c Comparator) Valid() bool {
	_, ok := comparatorNames[c]

	return ok
}

func (c Comparator) String() string {
	if names, ok := comparatorNames[c]; ok {
		return names[0]
	}

	return "comparator(" + strconv.Itoa(int(c)) + ")"
}

// BoolCondition holds when a boolean fact equals the expected value.
type BoolCondition struct {
	key      string
	expected bool
}

// NewBoolCondition creates a boolean-equality condition.
func NewBoolCondition(key string, expected bool) (*BoolCondition, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCondition, ErrConditionKeyRequired)
	}

	return &BoolCondition{key: key, expected: expected}, nil
}

// Key returns the fact key the condition reads.
func (c *BoolCondition) Key() string {
	return c.key
}

// Expected returns the value the fact must equal.
func (c *BoolCondition) Expected() bool {
	return c.expected
}

// Evaluate is false with a *FactError when the key is missing or not a bool.
func (c *BoolCondition) Evaluate(_ context.Context, facts Facts) (bool, error) {
	actual, err := LookupBool(facts, c.key)
	if err != nil {
		return false, err
	}

	return actual == c.expected, nil
}

func (c *BoolCondition) String() string {
	return fmt.Sprintf("%s == %t", c.key, c.expected)
}

// Operand is one side of a NumericCondition: either a literal captured at
// construction or a reference resolved from the facts on every evaluation.
type Operand struct {
	literal Value
	key     string
}

// Literal returns an operand fixed at v.
func Literal(v Value) Operand {
	return Operand{literal: v}
}

// FactRef returns an operand read from the facts under key.
func FactRef(key string) Operand {
	return Operand{key: key}
}

// IsFact reports whether the operand is resolved from the facts.
func (o Operand) IsFact() bool {
	return o.key != ""
}

// Key returns the fact key, or "" for literals.
func (o Operand) Key() string {
	return o.key
}

func (o Operand) validate() error {
	if o.IsFact() {
		return nil
	}

	if !o.literal.IsNumeric() {
		return fmt.Errorf("%w: %w: %s", ErrMalformedCondition, ErrNonNumericOperand, o.literal.Kind())
	}

	if o.literal.Kind() == KindFloat && math.IsNaN(o.literal.AsFloat().GetOrElse(0)) {
		return fmt.Errorf("%w: %w: NaN", ErrMalformedCondition, ErrNonNumericOperand)
	}

	return nil
}

func (o Operand) resolve(facts Facts) (Value, error) {
	if !o.IsFact() {
		return o.literal, nil
	}

	return LookupNumber(facts, o.key)
}

func (o Operand) String() string {
	if o.IsFact() {
		return o.key
	}

	return o.literal.String()
}

// NumericCondition compares two numeric operands.
type NumericCondition struct {
	left       Operand
	right      Operand
	comparator Comparator
}

// NewNumericCondition fails fast on an unset or unknown comparator and on
// non-numeric literals.
func NewNumericCondition(left, right Operand, comparator Comparator) (*NumericCondition, error) {
	if !comparator.Valid() {
		return nil, fmt.Errorf("%w: %w: %s", ErrMalformedCondition, ErrUnknownComparator, comparator)
	}

	if err := left.validate(); err != nil {
		return nil, fmt.Errorf("left operand: %w", err)
	}

	if err := right.validate(); err != nil {
		return nil, fmt.Errorf("right operand: %w", err)
	}

	return &NumericCondition{
		left:       left,
		right:      right,
		comparator: comparator,
	}, nil
}

// Comparator returns the relation being tested.
func (c *NumericCondition) Comparator() Comparator {
	return c.comparator
}

// Operands returns the left and right operands.
func (c *NumericCondition) Operands() (Operand, Operand) {
	return c.left, c.right
}

// Evaluate resolves both operands before comparing, so both lookups report
// diagnostics even when the first one fails.
func (c *NumericCondition) Evaluate(_ context.Context, facts Facts) (bool, error) {
	left, leftErr := c.left.resolve(facts)
	right, rightErr := c.right.resolve(facts)

	if leftErr != nil || rightErr != nil {
		return false, errors.Join(leftErr, rightErr)
	}

	return compare(left, right, c.comparator), nil
}

func (c *NumericCondition) String() string {
	return fmt.Sprintf("%s %s %s", c.left, c.comparator, c.right)
}

// compare assumes both values are numeric. Integers compare exactly, also
// against floats, and NaN is unordered: only NotEqual holds.
func compare(left, right Value, cmp Comparator) bool {
	order, ordered := orderOf(left, right)
	if !ordered {
		return cmp == NotEqual
	}

	switch cmp {
	case Equal:
		return order == 0
	case NotEqual:
		return order != 0
	case GreaterThan:
		return order > 0
	case GreaterOrEqual:
		return order >= 0
	case LessThan:
		return order < 0
	case LessOrEqual:
		return order <= 0
	default:
		return false
	}
}

func orderOf(left, right Value) (int, bool) {
	li, lInt := left.AsInt().Get()
	ri, rInt := right.AsInt().Get()
	lf := left.AsFloat().GetOrElse(0)
	rf := right.AsFloat().GetOrElse(0)

	switch {
	case lInt && rInt:
		return cmpOrdered(li, ri), true
	case math.IsNaN(lf) || math.IsNaN(rf):
		return 0, false
	case lInt:
		return compareIntFloat(li, rf), true
	case rInt:
		return -compareIntFloat(ri, lf), true
	default:
		return cmpOrdered(lf, rf), true
	}
}

// two63 is 2^63, the first float64 above every int64.
const two63 = float64(1 << 63)

// compareIntFloat orders i against a non-NaN f without rounding i to float64.
func compareIntFloat(i int64, f float64) int {
	switch {
	case f >= two63:
		return -1
	case f < -two63:
		return 1
	}

	whole := math.Trunc(f)
	if order := cmpOrdered(i, int64(whole)); order != 0 {
		return order
	}

	return cmpOrdered(whole, f)
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// notCondition inverts another condition. Diagnostics still evaluate false.
type notCondition struct {
	inner Condition
}

// Not returns a condition that holds when inner evaluates false without error.
func Not(inner Condition) Condition { //nolint:ireturn
	return notCondition{inner: inner}
}

func (c notCondition) Evaluate(ctx context.Context, facts Facts) (bool, error) {
	ok, err := c.inner.Evaluate(ctx, facts)
	if err != nil {
		return false, err
	}

	return !ok, nil
}

func (c notCondition) String() string {
	return "!(" + c.inner.String() + ")"
}

type constCondition bool

// Always is a condition that always holds.
const Always = constCondition(true)

// Never is a condition that never holds.
const Never = constCondition(false)

func (c constCondition) Evaluate(context.Context, Facts) (bool, error) {
	return bool(c), nil
}

func (c constCondition) String() string {
	return strconv.FormatBool(bool(c))
}
