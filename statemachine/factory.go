package statemachine

import (
	"fmt"
	"sync"
)

// Built-in condition types.
const (
	ConditionTypeBool    = "bool"
	ConditionTypeNumeric = "numeric"
	ConditionTypeScript  = "script"
	ConditionTypeNot     = "not"
)

// ConditionFactory creates conditions from configuration.
// Applications can register custom condition builders to extend the vocabulary.
type ConditionFactory struct {
	mu       sync.RWMutex
	builders map[string]ConditionBuilder
}

// ConditionBuilder creates a condition from configuration. The factory
// parameter allows nested conditions to reuse custom builders.
type ConditionBuilder func(factory *ConditionFactory, config ConditionConfig) (Condition, error)

// NewConditionFactory creates a factory with the built-in builders.
func NewConditionFactory() *ConditionFactory {
	factory := &ConditionFactory{
		builders: make(map[string]ConditionBuilder),
	}

	factory.Register(ConditionTypeBool, boolConditionBuilder)
	factory.Register(ConditionTypeNumeric, numericConditionBuilder)
	factory.Register(ConditionTypeScript, scriptConditionBuilder)
	factory.Register(ConditionTypeNot, notConditionBuilder)

	return factory
}

// Register registers a condition builder, replacing any previous one for the type.
func (f *ConditionFactory) Register(conditionType string, builder ConditionBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.builders[conditionType] = builder
}

// Create builds a condition from configuration. An empty type defaults to bool.
func (f *ConditionFactory) Create(config ConditionConfig) (Condition, error) { //nolint:ireturn
	conditionType := config.Type
	if conditionType == "" {
		conditionType = ConditionTypeBool
	}

	f.mu.RLock()
	builder, ok := f.builders[conditionType]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrMalformedCondition, ErrUnknownConditionType, conditionType)
	}

	return builder(f, config)
}

func boolConditionBuilder(_ *ConditionFactory, config ConditionConfig) (Condition, error) { //nolint:ireturn
	expected := true
	if config.Expect != nil {
		expected = *config.Expect
	}

	return NewBoolCondition(config.Fact, expected)
}

func numericConditionBuilder(_ *ConditionFactory, config ConditionConfig) (Condition, error) { //nolint:ireturn
	left, err := config.Left.operand()
	if err != nil {
		return nil, fmt.Errorf("left operand: %w", err)
	}

	right, err := config.Right.operand()
	if err != nil {
		return nil, fmt.Errorf("right operand: %w", err)
	}

	cmp, err := ParseComparator(config.Comparator)
	if err != nil {
		return nil, err
	}

	return NewNumericCondition(left, right, cmp)
}

func scriptConditionBuilder(_ *ConditionFactory, config ConditionConfig) (Condition, error) { //nolint:ireturn
	return NewScriptCondition(config.Expr)
}

func notConditionBuilder(factory *ConditionFactory, config ConditionConfig) (Condition, error) { //nolint:ireturn
	if config.Condition == nil {
		return nil, fmt.Errorf("%w: not requires a nested condition", ErrMalformedCondition)
	}

	inner, err := factory.Create(*config.Condition)
	if err != nil {
		return nil, fmt.Errorf("not: %w", err)
	}

	return Not(inner), nil
}

func (o *OperandConfig) operand() (Operand, error) {
	if o == nil {
		return Operand{}, fmt.Errorf("%w: operand is required", ErrMalformedCondition)
	}

	if o.Fact != "" {
		if o.Value != nil {
			return Operand{}, fmt.Errorf("%w: operand sets both fact and value", ErrMalformedCondition)
		}

		return FactRef(o.Fact), nil
	}

	v, err := ValueOf(o.Value)
	if err != nil {
		return Operand{}, fmt.Errorf("%w: %w", ErrMalformedCondition, err)
	}

	return Literal(v), nil
}
