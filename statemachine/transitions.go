package statemachine

// Transitions is a step function's handle on its state's outgoing transitions.
type Transitions interface {
	// SetNextState records the state wired under label as this visit's
	// successor. An undeclared or unwired label is a configuration error.
	SetNextState(label string) error
}

type boundTransitions[I any, E Exec] struct {
	state *State[I, E]
	exec  E
}

func (b boundTransitions[I, E]) SetNextState(label string) error {
	return b.state.SetNextState(b.exec, label)
}

// Edge is one wired transition of a machine graph.
type Edge struct {
	From  string
	Label string
	To    string
}

// Edges lists the wired transitions of every registered state, in
// registration and declaration order. Unwired labels have an empty To.
func (m *Machine[I, E]) Edges() []Edge {
	var edges []Edge

	for _, s := range m.GetAllStates() {
		for _, label := range s.labels {
			edge := Edge{From: s.name, Label: label}
			if target := s.transitions[label]; target != nil {
				edge.To = target.name
			}

			edges = append(edges, edge)
		}
	}

	return edges
}

// StateInfo is the static description of one state.
type StateInfo struct {
	Name        string
	Description string
	InitialStep Step
	Weights     [len(Steps)]TransactionWeight
}

// Graph is a non-generic snapshot of a machine's structure, used for
// rendering and inspection.
type Graph struct {
	Machine string
	Initial string
	States  []StateInfo
	Edges   []Edge
}

// Graph returns a snapshot of the machine's states and wired transitions.
func (m *Machine[I, E]) Graph() Graph {
	m.mut.RLock()
	g := Graph{Machine: m.name, Initial: m.initial}
	m.mut.RUnlock()

	for _, s := range m.GetAllStates() {
		info := StateInfo{Name: s.name, Description: s.description, InitialStep: s.initialStep}
		for _, step := range Steps {
			info.Weights[step] = s.TransactionWeight(step)
		}

		g.States = append(g.States, info)
	}

	g.Edges = m.Edges()

	return g
}
