package batch

import "sort"

type visitState uint8

const (
	unvisited visitState = iota
	onStack
	done
)

// DetectCycles walks the whole graph depth-first, starting roots in ascending
// index order and following dependencies in ascending order. Every back edge
// closes a cycle; all of them are reported, the first found in Cycle.
func (g *Graph) DetectCycles() error {
	state := make([]visitState, len(g.ops))
	var path []int
	var cycles [][]string
	involved := make(map[int]bool)

	var visit func(n int)
	visit = func(n int) {
		state[n] = onStack
		path = append(path, n)

		for _, dep := range g.deps[n] {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case onStack:
				start := len(path) - 1
				for path[start] != dep {
					start--
				}
				members := path[start:]
				cycle := make([]string, 0, len(members)+1)
				for _, m := range members {
					cycle = append(cycle, g.label(m))
					involved[m] = true
				}
				cycle = append(cycle, g.label(dep))
				cycles = append(cycles, cycle)
			}
		}

		path = path[:len(path)-1]
		state[n] = done
	}

	for i := range g.ops {
		if state[i] == unvisited {
			visit(i)
		}
	}

	if len(cycles) == 0 {
		return nil
	}

	ops := make([]int, 0, len(involved))
	for i := range involved {
		ops = append(ops, i)
	}
	sort.Ints(ops)
	return cycleError(cycles, ops)
}
