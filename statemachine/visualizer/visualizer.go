// Package visualizer renders state machine graphs as Mermaid state diagrams.
package visualizer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/amp-labs/logicstates/statemachine"
)

// Visualizer errors.
var (
	ErrNoInitialState = errors.New("graph must have an initial state")
	ErrNoStates       = errors.New("graph has no states")
)

// GenerateMermaid converts a machine graph to a Mermaid state diagram.
func GenerateMermaid(graph statemachine.Graph) (string, error) {
	return GenerateMermaidWithOptions(graph, DefaultOptions())
}

// WriteMermaid writes the diagram of graph to w.
func WriteMermaid(w io.Writer, graph statemachine.Graph, opts Options) error {
	diagram, err := GenerateMermaidWithOptions(graph, opts)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, diagram); err != nil {
		return fmt.Errorf("write diagram: %w", err)
	}

	return nil
}

// GenerateMermaidWithOptions generates a Mermaid diagram with custom options.
func GenerateMermaidWithOptions(graph statemachine.Graph, opts Options) (string, error) {
	if graph.Initial == "" {
		return "", ErrNoInitialState
	}

	if len(graph.States) == 0 {
		return "", ErrNoStates
	}

	if opts.Direction == "" {
		opts.Direction = "TD"
	}

	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	fmt.Fprintf(&sb, "stateDiagram-v2\n    direction %s\n", opts.Direction)
	fmt.Fprintf(&sb, "    [*] --> %s\n", graph.Initial)

	highlightMap := make(map[string]bool)
	for _, state := range opts.HighlightPath {
		highlightMap[state] = true
	}

	edgesFrom := make(map[string][]statemachine.Edge)
	for _, edge := range graph.Edges {
		edgesFrom[edge.From] = append(edgesFrom[edge.From], edge)
	}

	for _, state := range graph.States {
		if state.Description != "" {
			fmt.Fprintf(&sb, "    %s: %s\n", state.Name, state.Description)
		}

		if opts.ShowWeights {
			if note := weightNote(state); note != "" {
				fmt.Fprintf(&sb, "    note right of %s: %s\n", state.Name, note)
			}
		}

		if highlightMap[state.Name] {
			fmt.Fprintf(&sb, "    class %s highlighted\n", state.Name)
		}

		for _, edge := range edgesFrom[state.Name] {
			to := edge.To
			if to == "" {
				// unwired transitions are drawn into a visible dead end
				to = "UNWIRED"
			}

			label := ""
			if opts.ShowLabels {
				label = ": " + edge.Label
			}

			fmt.Fprintf(&sb, "    %s --> %s%s\n", state.Name, to, label)
		}
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")
	sb.WriteString("```\n")

	return sb.String(), nil
}

func weightNote(state statemachine.StateInfo) string {
	var parts []string

	for _, step := range statemachine.Steps {
		if w := state.Weights[step]; w != statemachine.None {
			parts = append(parts, step.String()+"="+w.String())
		}
	}

	return strings.Join(parts, ", ")
}
