package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pixbridge/internal/ir"
)

// CycleWarning describes recipes that nest each other. Unlike a loop in a
// program there is no termination condition, so the validator reports every
// cycle as an error.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeNesting finds recipes that reach themselves through nested steps.
//
// The algorithm:
//  1. Build recipe → nested recipe graph from the steps
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// Nodes are visited in sorted order so the report is deterministic.
// Nesting that forms a DAG returns an empty list.
func AnalyzeNesting(recipes []ir.Recipe) []CycleWarning {
	graph := buildNestingGraph(recipes)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// nestingGraph maps recipe name → recipes its steps call, in step order.
type nestingGraph map[string][]string

func buildNestingGraph(recipes []ir.Recipe) nestingGraph {
	graph := make(nestingGraph)
	for _, r := range recipes {
		if graph[r.Name] == nil {
			graph[r.Name] = []string{}
		}
		for _, step := range r.Steps {
			if step.Recipe != "" && !slices.Contains(graph[r.Name], step.Recipe) {
				graph[r.Name] = append(graph[r.Name], step.Recipe)
			}
		}
	}
	return graph
}

// Expand lists name and every recipe it reaches, dependencies first. The
// executor loads exactly these. Unknown names are skipped; cycles are cut.
func Expand(recipes []ir.Recipe, name string) []string {
	graph := buildNestingGraph(recipes)
	var order []string
	seen := map[string]bool{}
	var visit func(string)
	visit = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		if _, ok := graph[n]; !ok {
			return
		}
		for _, dep := range graph[n] {
			visit(dep)
		}
		order = append(order, n)
	}
	visit(name)
	return order
}

func hasSelfLoop(node string, graph nestingGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph nestingGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []string, graph nestingGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("recipe %s nests itself", name),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("recipes nest each other: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns there.
func reconstructCyclePath(scc []string, graph nestingGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if slices.Contains(scc, neighbor) && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
