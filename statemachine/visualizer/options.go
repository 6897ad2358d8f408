package visualizer

// Options configures the visualization output.
type Options struct {
	// ShowConditions shows transition guards on edges.
	ShowConditions bool

	// ShowLabels shows transition labels on edges.
	ShowLabels bool

	// ShowPriority prefixes edges with their declaration index. Among edges
	// leaving one state, the highest index that fires wins.
	ShowPriority bool

	// Direction controls diagram flow: "TB" (top-bottom) or "LR" (left-right).
	Direction string

	// HighlightPath highlights a specific state path through the diagram.
	HighlightPath []string

	// Active marks the state a machine is currently in.
	Active string

	// Fenced wraps the diagram in a ```mermaid code fence.
	Fenced bool
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		ShowConditions: true,
		ShowLabels:     true,
		Direction:      "TB",
		Fenced:         true,
	}
}

// WithShowConditions enables/disables transition conditions.
func (o Options) WithShowConditions(show bool) Options {
	o.ShowConditions = show

	return o
}

// WithShowLabels enables/disables transition labels.
func (o Options) WithShowLabels(show bool) Options {
	o.ShowLabels = show

	return o
}

// WithShowPriority enables/disables declaration indexes on edges.
func (o Options) WithShowPriority(show bool) Options {
	o.ShowPriority = show

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}

// WithActive marks the active state.
func (o Options) WithActive(state string) Options {
	o.Active = state

	return o
}

// WithFenced enables/disables the markdown code fence.
func (o Options) WithFenced(fenced bool) Options {
	o.Fenced = fenced

	return o
}
