// Package validator lints state graphs for structure that is legal but
// almost certainly unintended, and offers fixes that edit the configuration.
package validator

import (
	"fmt"
	"strings"

	"github.com/amp-labs/tickfsm/statemachine"
)

// ValidationResult contains the results of validating a graph.
type ValidationResult struct {
	Valid       bool
	Errors      []ValidationError
	Warnings    []ValidationWarning
	Suggestions []Suggestion
}

// ValidationError represents a validation error with fix suggestions.
type ValidationError struct {
	Code     string   // Error code like "SHADOWED_TRANSITION"
	Message  string   // Human-readable error message
	Location Location // Where the error occurred
	Fix      *Fix     // Optional auto-fix suggestion
}

// ValidationWarning represents a non-critical issue.
type ValidationWarning struct {
	Code     string
	Message  string
	Location Location
	Fix      *Fix
}

// Suggestion provides improvement recommendations.
type Suggestion struct {
	Message string // Suggestion description
	Example string // YAML example showing the improvement
}

// Location identifies where an issue occurred.
type Location struct {
	File       string // Config file path
	State      string // State name if applicable
	Transition int    // Index within the state's transitions, -1 if not applicable
}

func stateLocation(state string) Location {
	return Location{State: state, Transition: -1}
}

// Subject is what the rules inspect.
type Subject struct {
	Graph   *statemachine.Graph
	Initial statemachine.StateID
}

// Validate builds config with factory (nil for the built-ins) and validates
// the resulting graph. A config that fails to build is reported as a single
// CONFIG_INVALID error.
func Validate(config *statemachine.Config, factory *statemachine.ConditionFactory) ValidationResult {
	return ValidateWithRules(config, factory, DefaultRules())
}

// ValidateWithRules validates a config using custom rules.
func ValidateWithRules(
	config *statemachine.Config,
	factory *statemachine.ConditionFactory,
	rules []Rule,
) ValidationResult {
	graph, initial, err := config.Build(factory)
	if err != nil {
		return ValidationResult{
			Errors: []ValidationError{{
				Code:     "CONFIG_INVALID",
				Message:  fmt.Sprintf("Config does not build: %v", err),
				Location: stateLocation(""),
			}},
		}
	}

	return ValidateGraphWithRules(graph, initial, rules)
}

// ValidateFile loads a config from a file and validates it.
func ValidateFile(path string, strict bool) (ValidationResult, error) {
	config, err := statemachine.LoadConfig(path)
	if err != nil {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{
					Code:     "CONFIG_LOAD_FAILED",
					Message:  fmt.Sprintf("Failed to load config: %v", err),
					Location: Location{File: path, Transition: -1},
				},
			},
		}, err
	}

	result := Validate(config, nil)
	if strict {
		result = result.Strict()
	}

	for i := range result.Errors {
		if result.Errors[i].Location.File == "" {
			result.Errors[i].Location.File = path
		}
	}

	for i := range result.Warnings {
		if result.Warnings[i].Location.File == "" {
			result.Warnings[i].Location.File = path
		}
	}

	return result, nil
}

// ValidateGraph validates a built graph with the default rules.
func ValidateGraph(graph *statemachine.Graph, initial statemachine.StateID) ValidationResult {
	return ValidateGraphWithRules(graph, initial, DefaultRules())
}

// ValidateGraphWithRules validates a built graph using custom rules.
func ValidateGraphWithRules(graph *statemachine.Graph, initial statemachine.StateID, rules []Rule) ValidationResult {
	var result ValidationResult

	subject := Subject{Graph: graph, Initial: initial}

	for _, rule := range rules {
		ruleResult := rule.Check(subject)
		result.Errors = append(result.Errors, ruleResult.Errors...)
		result.Warnings = append(result.Warnings, ruleResult.Warnings...)
	}

	result.Valid = len(result.Errors) == 0
	result.Suggestions = generateSuggestions(graph)

	return result
}

// Strict returns a copy of r with warnings promoted to errors.
func (r ValidationResult) Strict() ValidationResult {
	for _, warning := range r.Warnings {
		r.Errors = append(r.Errors, ValidationError(warning))
	}

	r.Warnings = nil
	r.Valid = len(r.Errors) == 0

	return r
}

// generateSuggestions provides general improvement suggestions.
func generateSuggestions(graph *statemachine.Graph) []Suggestion {
	var suggestions []Suggestion

	unlabeled := 0

	for _, t := range graph.Transitions() {
		if t.Label() == "" {
			unlabeled++
		}
	}

	if unlabeled > 0 && graph.Len() > 2 {
		suggestions = append(suggestions, Suggestion{
			Message: fmt.Sprintf("%d transition(s) have no label; labels show up in history, logs and diagrams", unlabeled),
			Example: `transitions:
  - to: eat
    label: hungry`,
		})
	}

	return suggestions
}

// HasErrors returns true if the result has any errors.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result has any warnings.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Fixes returns every available fix in an order that is safe to apply.
func (r ValidationResult) Fixes() []*Fix {
	var fixes []*Fix

	for _, e := range r.Errors {
		if e.Fix != nil {
			fixes = append(fixes, e.Fix)
		}
	}

	for _, w := range r.Warnings {
		if w.Fix != nil {
			fixes = append(fixes, w.Fix)
		}
	}

	return orderFixes(fixes)
}

// String returns a human-readable summary of validation results.
func (r ValidationResult) String() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("graph is valid\n")
	} else {
		fmt.Fprintf(&sb, "graph has %d error(s)\n", len(r.Errors))
	}

	for _, err := range r.Errors {
		fmt.Fprintf(&sb, "  [%s] %s", err.Code, err.Message)

		if err.Location.State != "" {
			fmt.Fprintf(&sb, " (state: %s)", err.Location.State)
		}

		sb.WriteString("\n")

		if err.Fix != nil {
			fmt.Fprintf(&sb, "    Fix: %s\n", err.Fix.Description)
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&sb, "%d warning(s):\n", len(r.Warnings))

		for _, warn := range r.Warnings {
			fmt.Fprintf(&sb, "  [%s] %s\n", warn.Code, warn.Message)
		}
	}

	if len(r.Suggestions) > 0 {
		fmt.Fprintf(&sb, "%d suggestion(s) for improvement\n", len(r.Suggestions))
	}

	return sb.String()
}
