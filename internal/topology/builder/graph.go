package builder

import (
	"sort"
)

// graph records, for every component, the components that consume it.
type graph struct {
	nodes    map[string]struct{}
	incoming map[string]map[string]struct{}
}

func newGraph() *graph {
	return &graph{
		nodes:    make(map[string]struct{}),
		incoming: make(map[string]map[string]struct{}),
	}
}

func (g *graph) addNode(name string) {
	if _, exists := g.nodes[name]; exists {
		return
	}
	g.nodes[name] = struct{}{}
	g.incoming[name] = make(map[string]struct{})
}

func (g *graph) addEdge(consumer, input string) {
	g.addNode(consumer)
	g.addNode(input)

	g.incoming[input][consumer] = struct{}{}
}

// consumers returns the sorted names reading from node.
func (g *graph) consumers(node string) []string {
	return sortedSet(g.incoming[node])
}

// findCycle returns one cycle in data-flow order as a closed path (first node
// repeated at the end) or nil when the graph is acyclic.
func (g *graph) findCycle() []string {
	visited := make(map[string]bool, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))
	var path []string
	var cycle []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.consumers(node) {
			if !visited[next] {
				if dfs(next) {
					return true
				}
				continue
			}
			if onStack[next] {
				idx := len(path) - 1
				for idx >= 0 && path[idx] != next {
					idx--
				}
				cycle = append(append([]string{}, path[idx:]...), next)
				return true
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		return false
	}

	for _, node := range sortedSet(g.nodes) {
		if !visited[node] && dfs(node) {
			break
		}
	}
	return cycle
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
