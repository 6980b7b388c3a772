package batch

import "container/heap"

// indexHeap is a min-heap of operation indices.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Schedule returns a total order in which every operation follows the
// operations it depends on. Among ready operations the lowest index runs
// first, so a batch without references keeps its request order.
//
// The graph must be acyclic; call DetectCycles first. A leftover node means
// the check was skipped and is reported as a scheduling invariant violation.
func (g *Graph) Schedule() ([]int, error) {
	n := len(g.ops)
	indegree := make([]int, n)
	ready := make(indexHeap, 0, n)
	for i := range n {
		indegree[i] = len(g.deps[i])
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	heap.Init(&ready)

	order := make([]int, 0, n)
	for ready.Len() > 0 {
		i := heap.Pop(&ready).(int)
		order = append(order, i)
		for _, d := range g.dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				heap.Push(&ready, d)
			}
		}
	}

	if len(order) != n {
		var stuck []int
		for i := range n {
			if indegree[i] > 0 {
				stuck = append(stuck, i)
			}
		}
		return order, newError(ErrCodeSchedulingInvariant, stuck,
			"%d of %d operations could not be ordered", n-len(order), n)
	}
	return order, nil
}

// PlanStep is one scheduled operation as reported by a dry run.
type PlanStep struct {
	Position   int        `json:"position"`
	Index      int        `json:"index"`
	Kind       Kind       `json:"kind"`
	TargetType TargetType `json:"target_type"`
	TempID     string     `json:"temp_id,omitempty"`
	DependsOn  []int      `json:"depends_on,omitempty"`
}

// Plan is the validated execution order of a request.
type Plan struct {
	Order []int      `json:"order"`
	Steps []PlanStep `json:"steps"`
}

func (g *Graph) plan(order []int) *Plan {
	p := &Plan{Order: order, Steps: make([]PlanStep, len(order))}
	for pos, i := range order {
		op := g.ops[i]
		p.Steps[pos] = PlanStep{
			Position:   pos,
			Index:      i,
			Kind:       op.Kind,
			TargetType: op.TargetType,
			TempID:     op.TempID,
			DependsOn:  g.deps[i],
		}
	}
	return p
}
