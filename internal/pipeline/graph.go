package pipeline

import (
	"fmt"
	"sort"

	"github.com/shepherdmeng/smrf/internal/distribute"
	"github.com/shepherdmeng/smrf/internal/domain"
)

// Graph is the static producer/consumer relation between distributors,
// derived from their declared Inputs and Outputs.
type Graph struct {
	vars      []distribute.Variable
	producer  map[domain.Variable]int
	consumers map[domain.Variable][]int
	order     []int
}

// NewGraph checks that every output has exactly one producer, every input
// has a producer and the relation is acyclic.
func NewGraph(vars []distribute.Variable) (*Graph, error) {
	g := &Graph{
		vars:      vars,
		producer:  make(map[domain.Variable]int),
		consumers: make(map[domain.Variable][]int),
	}

	names := make(map[string]bool, len(vars))
	for i, d := range vars {
		if names[d.Name()] {
			return nil, fmt.Errorf("%w: duplicate distributor %q", domain.ErrConfiguration, d.Name())
		}
		names[d.Name()] = true
		for _, out := range d.Outputs() {
			if j, dup := g.producer[out]; dup {
				return nil, fmt.Errorf("%w: %s produced by both %s and %s",
					domain.ErrConfiguration, out, vars[j].Name(), d.Name())
			}
			g.producer[out] = i
		}
	}

	for i, d := range vars {
		for _, in := range d.Inputs() {
			if _, ok := g.producer[in]; !ok {
				return nil, fmt.Errorf("%w: %s needs %s, which nothing produces",
					domain.ErrConfiguration, d.Name(), in)
			}
			g.consumers[in] = append(g.consumers[in], i)
		}
	}

	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// sort is Kahn's algorithm; ties resolve to declaration order so the
// result is deterministic.
func (g *Graph) sort() ([]int, error) {
	indegree := make([]int, len(g.vars))
	next := make([][]int, len(g.vars))
	for i, d := range g.vars {
		deps := make(map[int]bool)
		for _, in := range d.Inputs() {
			deps[g.producer[in]] = true
		}
		for p := range deps {
			if p == i {
				return nil, fmt.Errorf("%w: %s depends on itself", domain.ErrConfiguration, d.Name())
			}
			next[p] = append(next[p], i)
			indegree[i]++
		}
	}

	var ready, order []int
	for i, n := range indegree {
		if n == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, j := range next[i] {
			indegree[j]--
			if indegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}

	if len(order) != len(g.vars) {
		var stuck []string
		for i, n := range indegree {
			if n > 0 {
				stuck = append(stuck, g.vars[i].Name())
			}
		}
		return nil, fmt.Errorf("%w: dependency cycle among %v", domain.ErrConfiguration, stuck)
	}
	return order, nil
}

// Order returns the distributors in an order where every producer comes
// before its consumers.
func (g *Graph) Order() []distribute.Variable {
	out := make([]distribute.Variable, len(g.order))
	for k, i := range g.order {
		out[k] = g.vars[i]
	}
	return out
}

// Producer returns the distributor that writes v.
func (g *Graph) Producer(v domain.Variable) (distribute.Variable, bool) {
	i, ok := g.producer[v]
	if !ok {
		return nil, false
	}
	return g.vars[i], true
}

// Consumers returns the distributors that read v, in declaration order.
func (g *Graph) Consumers(v domain.Variable) []distribute.Variable {
	idx := g.consumers[v]
	out := make([]distribute.Variable, len(idx))
	for k, i := range idx {
		out[k] = g.vars[i]
	}
	return out
}

// Outputs returns every produced variable, sorted.
func (g *Graph) Outputs() []domain.Variable {
	out := make([]domain.Variable, 0, len(g.producer))
	for v := range g.producer {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
