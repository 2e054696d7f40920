// Package dag orders the stages of a warehouse build. It detects cycles,
// produces a deterministic topological order, and groups stages into
// execution levels.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// Node is a stage in the graph.
type Node[T any] struct {
	// ID is the stage name.
	ID   string
	Data T
}

// Graph is a directed acyclic graph of stages. An edge parent -> child means
// the child consumes what the parent produces.
type Graph[T any] struct {
	nodes   map[string]*Node[T]
	edges   map[string][]string // parent -> children
	parents map[string][]string // child -> parents
}

// NewGraph creates an empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:   make(map[string]*Node[T]),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a stage, replacing the data of an existing one.
func (g *Graph[T]) AddNode(id string, data T) {
	if n, ok := g.nodes[id]; ok {
		n.Data = data
		return
	}
	g.nodes[id] = &Node[T]{ID: id, Data: data}
	g.edges[id] = nil
	g.parents[id] = nil
}

// AddEdge declares that child depends on parent.
func (g *Graph[T]) AddEdge(parentID, childID string) error {
	if _, ok := g.nodes[parentID]; !ok {
		return fmt.Errorf("parent stage %q does not exist", parentID)
	}
	if _, ok := g.nodes[childID]; !ok {
		return fmt.Errorf("child stage %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("stage %s cannot depend on itself", parentID)
	}
	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Node returns a stage by ID.
func (g *Graph[T]) Node(id string) (*Node[T], bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the direct dependencies of a stage, sorted.
func (g *Graph[T]) Parents(id string) []string {
	return sorted(g.parents[id])
}

// Children returns the direct dependents of a stage, sorted.
func (g *Graph[T]) Children(id string) []string {
	return sorted(g.edges[id])
}

// Len returns the number of stages.
func (g *Graph[T]) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph[T]) EdgeCount() int {
	n := 0
	for _, children := range g.edges {
		n += len(children)
	}
	return n
}

// FindCycle returns the stages of a cycle, first stage repeated at the end,
// or nil when the graph is acyclic.
func (g *Graph[T]) FindCycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = active
		stack = append(stack, id)
		for _, child := range sorted(g.edges[id]) {
			switch state[child] {
			case active:
				start := slices.Index(stack, child)
				cycle = append(slices.Clone(stack[start:]), child)
				return true
			case unvisited:
				if visit(child) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.ids() {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// TopologicalSort returns stages with every dependency before its
// dependents. Ties are broken by stage name.
func (g *Graph[T]) TopologicalSort() ([]*Node[T], error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, fmt.Errorf("cycle detected: %v", cycle)
	}
	visited := make(map[string]bool, len(g.nodes))
	out := make([]*Node[T], 0, len(g.nodes))
	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, p := range sorted(g.parents[id]) {
			visit(p)
		}
		out = append(out, g.nodes[id])
	}
	for _, id := range g.ids() {
		visit(id)
	}
	return out, nil
}

// Levels groups stages by the length of their longest dependency chain.
// Every stage in level N depends only on stages in levels below N. Each
// level is sorted by name.
func (g *Graph[T]) Levels() ([][]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, fmt.Errorf("cycle detected: %v", cycle)
	}
	level := make(map[string]int, len(g.nodes))
	var depth func(id string) int
	depth = func(id string) int {
		if l, ok := level[id]; ok {
			return l
		}
		l := 0
		for _, p := range g.parents[id] {
			l = max(l, depth(p)+1)
		}
		level[id] = l
		return l
	}

	var levels [][]string
	for _, id := range g.ids() {
		l := depth(id)
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// Downstream returns every stage that depends on id, directly or not.
func (g *Graph[T]) Downstream(id string) []string {
	seen := map[string]bool{}
	var walk func(string)
	walk = func(n string) {
		for _, c := range g.edges[n] {
			if !seen[c] {
				seen[c] = true
				walk(c)
			}
		}
	}
	walk(id)
	return setToSorted(seen)
}

// Upstream returns every stage id depends on, directly or not.
func (g *Graph[T]) Upstream(id string) []string {
	seen := map[string]bool{}
	var walk func(string)
	walk = func(n string) {
		for _, p := range g.parents[n] {
			if !seen[p] {
				seen[p] = true
				walk(p)
			}
		}
	}
	walk(id)
	return setToSorted(seen)
}

// Roots returns stages without dependencies.
func (g *Graph[T]) Roots() []string {
	var roots []string
	for _, id := range g.ids() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns stages without dependents.
func (g *Graph[T]) Leaves() []string {
	var leaves []string
	for _, id := range g.ids() {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

func (g *Graph[T]) ids() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sorted(s []string) []string {
	out := slices.Clone(s)
	sort.Strings(out)
	return out
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
