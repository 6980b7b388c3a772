package batch

import (
	"sort"
	"strconv"
)

// Graph is the dependency graph of one request. Nodes are operation indices;
// temp ids are symbolic handles resolved to indices once, here.
type Graph struct {
	ops []Operation

	// owner maps a temp id to the index of the operation declaring it.
	owner map[string]int

	// deps[i] holds the indices operation i depends on, ascending, no repeats.
	deps [][]int

	// dependents[i] holds the indices that depend on operation i, ascending.
	dependents [][]int
}

// BuildGraph registers every temp id and adds an edge for every reference.
// It fails on the first duplicate temp id or unresolved reference, scanning
// in sequence order. Nodes are slice positions: the graph works on a copy of
// ops whose Index fields are set to their positions, whatever they held.
func BuildGraph(ops []Operation) (*Graph, error) {
	indexed := make([]Operation, len(ops))
	for i, op := range ops {
		op.Index = i
		indexed[i] = op
	}
	ops = indexed

	g := &Graph{
		ops:        ops,
		owner:      make(map[string]int, len(ops)),
		deps:       make([][]int, len(ops)),
		dependents: make([][]int, len(ops)),
	}

	for _, op := range ops {
		if op.TempID == "" {
			continue
		}
		if first, exists := g.owner[op.TempID]; exists {
			return nil, newError(ErrCodeDuplicateTempID, []int{first, op.Index},
				"temp_id %q is declared by operations %d and %d", op.TempID, first, op.Index)
		}
		g.owner[op.TempID] = op.Index
	}

	for _, op := range ops {
		seen := make(map[int]bool, len(op.References))
		for _, ref := range op.References {
			target, ok := g.owner[ref]
			if !ok {
				return nil, newError(ErrCodeUnresolvedReference, []int{op.Index},
					"operation %d references temp_id %q, which no operation in this batch declares", op.Index, ref)
			}
			if seen[target] {
				continue
			}
			seen[target] = true
			g.deps[op.Index] = append(g.deps[op.Index], target)
			g.dependents[target] = append(g.dependents[target], op.Index)
		}
		sort.Ints(g.deps[op.Index])
	}
	for i := range g.dependents {
		sort.Ints(g.dependents[i])
	}

	return g, nil
}

// Len returns the number of operations.
func (g *Graph) Len() int { return len(g.ops) }

// Operation returns the operation at index i.
func (g *Graph) Operation(i int) Operation { return g.ops[i] }

// Dependencies returns the indices operation i depends on.
func (g *Graph) Dependencies(i int) []int { return g.deps[i] }

// Dependents returns the indices that depend on operation i.
func (g *Graph) Dependents(i int) []int { return g.dependents[i] }

// Owner returns the index of the operation declaring tempID.
func (g *Graph) Owner(tempID string) (int, bool) {
	i, ok := g.owner[tempID]
	return i, ok
}

// label names a node in diagnostics: its temp id, or "#<index>".
func (g *Graph) label(i int) string {
	if id := g.ops[i].TempID; id != "" {
		return id
	}
	return "#" + strconv.Itoa(i)
}
