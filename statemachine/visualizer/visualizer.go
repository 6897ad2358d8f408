// Package visualizer generates Mermaid state diagrams from graphs.
package visualizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amp-labs/tickfsm/statemachine"
)

// Visualizer errors.
var (
	ErrGraphNil       = errors.New("graph cannot be nil")
	ErrNoInitialState = errors.New("initial state is not in the graph")
)

// GenerateMermaid converts a graph to a Mermaid state diagram.
func GenerateMermaid(graph *statemachine.Graph, initial statemachine.StateID) (string, error) {
	return GenerateMermaidWithOptions(graph, initial, DefaultOptions())
}

// GenerateMermaidFromFile loads a config from a file and generates a Mermaid diagram.
func GenerateMermaidFromFile(path string) (string, error) {
	config, err := statemachine.LoadConfig(path)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	graph, initial, err := config.Build(nil)
	if err != nil {
		return "", fmt.Errorf("failed to build graph: %w", err)
	}

	return GenerateMermaid(graph, initial)
}

// GenerateMermaidWithOptions generates a Mermaid diagram with custom options.
func GenerateMermaidWithOptions(graph *statemachine.Graph, initial statemachine.StateID, opts Options) (string, error) {
	if graph == nil {
		return "", ErrGraphNil
	}

	start, ok := graph.State(initial)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrNoInitialState, initial)
	}

	var sb strings.Builder

	if opts.Fenced {
		sb.WriteString("```mermaid\n")
	}

	sb.WriteString("stateDiagram-v2\n")

	if opts.Direction != "" {
		fmt.Fprintf(&sb, "    direction %s\n", opts.Direction)
	}

	fmt.Fprintf(&sb, "    [*] --> %s\n", nodeID(start.Name()))

	highlightMap := make(map[string]bool)
	for _, state := range opts.HighlightPath {
		highlightMap[state] = true
	}

	for _, state := range graph.States() {
		id := nodeID(state.Name())
		if id != state.Name() {
			fmt.Fprintf(&sb, "    %s: %s\n", id, state.Name())
		}

		for i, transition := range state.Transitions() {
			fmt.Fprintf(&sb, "    %s --> %s%s\n", id, nodeID(transition.ToState().Name()), edgeLabel(i, transition, opts))
		}
	}

	for _, state := range graph.States() {
		switch {
		case state.Name() == opts.Active:
			fmt.Fprintf(&sb, "    class %s active\n", nodeID(state.Name()))
		case highlightMap[state.Name()]:
			fmt.Fprintf(&sb, "    class %s highlighted\n", nodeID(state.Name()))
		}
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef active fill:#c8e6c9,stroke:#2e7d32,stroke-width:3px\n")
	sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")

	if opts.Fenced {
		sb.WriteString("```\n")
	}

	return sb.String(), nil
}

func edgeLabel(index int, transition *statemachine.Transition, opts Options) string {
	var parts []string

	if opts.ShowPriority {
		parts = append(parts, fmt.Sprintf("(%d)", index))
	}

	if opts.ShowLabels && transition.Label() != "" {
		parts = append(parts, transition.Label())
	}

	if opts.ShowConditions {
		conditions := transition.Conditions()

		guards := make([]string, len(conditions))
		for i, cond := range conditions {
			guards[i] = cond.String()
		}

		if len(guards) > 0 {
			parts = append(parts, "["+strings.Join(guards, " && ")+"]")
		}
	}

	if len(parts) == 0 {
		return ""
	}

	// Mermaid treats ":" and ";" in edge labels as syntax.
	label := strings.NewReplacer(":", "#58;", ";", "#59;").Replace(strings.Join(parts, " "))

	return " : " + label
}

// nodeID maps a state name to a Mermaid-safe identifier.
func nodeID(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
