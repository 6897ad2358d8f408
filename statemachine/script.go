package statemachine

import (
	"context"
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

const (
	scriptFactsVar  = "facts"
	scriptResultVar = "__result"

	// scriptMaxAllocs bounds the objects a single guard evaluation may allocate.
	scriptMaxAllocs = 4096
)

// scriptModules are the tengo standard modules a guard expression may import.
var scriptModules = []string{"math", "text", "times"} //nolint:gochecknoglobals

// ScriptCondition is a guard written as a tengo expression over the facts map,
// for example `facts.hunger >= 5 && !facts.isHeat`.
type ScriptCondition struct {
	expr     string
	compiled *tengo.Compiled
}

// NewScriptCondition compiles expr once. Syntax errors fail here, not during a tick.
func NewScriptCondition(expr string) (*ScriptCondition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty script expression", ErrMalformedCondition)
	}

	script := tengo.NewScript([]byte(scriptResultVar + " := (" + expr + ")"))
	script.SetImports(stdlib.GetModuleMap(scriptModules...))
	script.SetMaxAllocs(scriptMaxAllocs)

	if err := script.Add(scriptFactsVar, map[string]any{}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCondition, err)
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCondition, err)
	}

	return &ScriptCondition{expr: expr, compiled: compiled}, nil
}

// Expression returns the source expression.
func (c *ScriptCondition) Expression() string {
	return c.expr
}

// Evaluate runs a private clone of the compiled program, so concurrent
// machines can share one ScriptCondition.
func (c *ScriptCondition) Evaluate(ctx context.Context, facts Facts) (bool, error) {
	run := c.compiled.Clone()

	if err := run.Set(scriptFactsVar, factsToScript(facts)); err != nil {
		return false, err
	}

	if err := run.RunContext(ctx); err != nil {
		return false, err
	}

	result, ok := run.Get(scriptResultVar).Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %s", ErrScriptResult, run.Get(scriptResultVar).ValueType())
	}

	return result, nil
}

func (c *ScriptCondition) String() string {
	return "script(" + c.expr + ")"
}

func factsToScript(facts Facts) map[string]any {
	keys := facts.Keys()
	out := make(map[string]any, len(keys))

	for _, k := range keys {
		if v, ok := facts.Lookup(k); ok {
			out[k] = v.Any()
		}
	}

	return out
}
