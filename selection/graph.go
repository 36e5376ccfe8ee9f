package selection

const (
	DefaultMaxDepth   = 6
	DefaultMaxVisited = 256
)

// DependencyGraph resolves a sensor id to the ids it is computed from.
type DependencyGraph interface {
	Inputs(sensorID string) []string
}

// GraphSnapshot is a read-only adjacency map from sensor id to its inputs.
type GraphSnapshot map[string][]string

func (g GraphSnapshot) Inputs(sensorID string) []string {
	return g[sensorID]
}

type visit struct {
	id    string
	depth int
}

// IsDerivedFromFocus reports whether focusID is reachable from candidateID
// through declared inputs within maxDepth hops. At most maxVisited distinct
// sensors are expanded, so cyclic graphs always terminate.
func IsDerivedFromFocus(candidateID, focusID string, graph DependencyGraph, maxDepth, maxVisited int) bool {
	if graph == nil || candidateID == "" || focusID == "" || candidateID == focusID {
		return false
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxVisited <= 0 {
		maxVisited = DefaultMaxVisited
	}

	visited := map[string]struct{}{candidateID: {}}
	queue := []visit{{id: candidateID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, in := range graph.Inputs(cur.id) {
			if in == focusID {
				return true
			}
			if _, seen := visited[in]; seen {
				continue
			}
			if len(visited) >= maxVisited {
				return false
			}
			visited[in] = struct{}{}
			queue = append(queue, visit{id: in, depth: cur.depth + 1})
		}
	}
	return false
}
