package visualizer

// Options configures the visualization output.
type Options struct {
	// ShowLabels prints transition labels on the arrows
	ShowLabels bool

	// ShowWeights adds a note with the non-None transaction weight of every step
	ShowWeights bool

	// Direction controls diagram flow: "TD" (top-down) or "LR" (left-right)
	Direction string

	// HighlightPath highlights a specific state path through the diagram
	HighlightPath []string
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		ShowLabels:  true,
		ShowWeights: false,
		Direction:   "TD",
	}
}

// WithShowLabels enables/disables transition labels.
func (o Options) WithShowLabels(show bool) Options {
	o.ShowLabels = show

	return o
}

// WithShowWeights enables/disables transaction weight notes.
func (o Options) WithShowWeights(show bool) Options {
	o.ShowWeights = show

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
