// Package dag implements a small static DAG scheduler: a fixed registry of
// named nodes and edges, topologically sorted at construction, executed with
// a readiness-counting loop that runs independent nodes concurrently.
package dag

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Inputs carries a node's inputs: the run seed plus each upstream node's
// output under that node's id. Values are read-only; a node must never
// mutate another node's output.
type Inputs map[string]any

// NodeFunc is the work of one node. A returned error is fatal for the run:
// downstream nodes are not started and the run status is Failed.
type NodeFunc func(ctx context.Context, in Inputs) (any, error)

// Status is the overall outcome of one run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// NodeOutcome records one node's execution.
type NodeOutcome struct {
	Output   any           `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ExecutionResult is the record of one run. ExecutionOrder lists node ids in
// completion order and is always a valid topological order of the subgraph
// that actually ran.
type ExecutionResult struct {
	Status         Status                 `json:"status"`
	ExecutionOrder []string               `json:"execution_order"`
	Results        map[string]NodeOutcome `json:"results"`
}

// Builder accumulates nodes and edges before Build freezes the graph.
type Builder struct {
	ids   []string
	nodes map[string]NodeFunc
	edges [][2]string
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]NodeFunc)}
}

// Node registers a node. Re-registering an id is a construction error
// reported by Build.
func (b *Builder) Node(id string, fn NodeFunc) *Builder {
	b.ids = append(b.ids, id)
	b.nodes[id] = fn
	return b
}

// Edge declares that to consumes from's output.
func (b *Builder) Edge(from, to string) *Builder {
	b.edges = append(b.edges, [2]string{from, to})
	return b
}

// Build validates the graph and computes its topological order. Unknown edge
// endpoints, duplicate node ids, and cycles are configuration errors.
func (b *Builder) Build() (*Graph, error) {
	seen := make(map[string]struct{}, len(b.ids))
	for _, id := range b.ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate node %q", id)
		}
		seen[id] = struct{}{}
	}

	g := &Graph{
		nodes:    b.nodes,
		parents:  make(map[string][]string, len(b.nodes)),
		children: make(map[string][]string, len(b.nodes)),
	}
	for _, e := range b.edges {
		from, to := e[0], e[1]
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", from)
		}
		if _, ok := b.nodes[to]; !ok {
			return nil, fmt.Errorf("edge to unknown node %q", to)
		}
		g.parents[to] = append(g.parents[to], from)
		g.children[from] = append(g.children[from], to)
	}

	// Kahn's algorithm; a leftover node means a cycle.
	indeg := make(map[string]int, len(b.nodes))
	for _, id := range b.ids {
		indeg[id] = len(g.parents[id])
	}
	var queue []string
	for _, id := range b.ids {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		g.topo = append(g.topo, id)
		for _, child := range g.children[id] {
			indeg[child]--
			if indeg[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if len(g.topo) != len(b.ids) {
		return nil, fmt.Errorf("graph contains a cycle")
	}
	return g, nil
}

// Graph is an immutable, runnable DAG. It is safe for concurrent runs; all
// per-run state lives in Run.
type Graph struct {
	nodes    map[string]NodeFunc
	parents  map[string][]string
	children map[string][]string
	topo     []string
}

// Order returns the static topological order computed at Build.
func (g *Graph) Order() []string {
	out := make([]string, len(g.topo))
	copy(out, g.topo)
	return out
}

type completion struct {
	id       string
	output   any
	err      error
	duration time.Duration
}

// Run executes the graph. seed is made available to every node alongside its
// upstream outputs. A node starts as soon as all of its parents have
// produced output; independent nodes run concurrently.
func (g *Graph) Run(ctx context.Context, seed map[string]any) ExecutionResult {
	res := ExecutionResult{
		Status:  StatusCompleted,
		Results: make(map[string]NodeOutcome, len(g.nodes)),
	}

	remaining := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		remaining[id] = len(g.parents[id])
	}
	outputs := make(map[string]any, len(g.nodes))
	completions := make(chan completion)

	var wg sync.WaitGroup
	running := 0
	launch := func(id string) {
		running++
		wg.Add(1)
		fn := g.nodes[id]
		in := make(Inputs, len(seed)+len(g.parents[id]))
		for k, v := range seed {
			in[k] = v
		}
		for _, parent := range g.parents[id] {
			in[parent] = outputs[parent]
		}
		go func() {
			defer wg.Done()
			start := time.Now()
			out, err := fn(ctx, in)
			completions <- completion{id: id, output: out, err: err, duration: time.Since(start)}
		}()
	}

	for _, id := range g.topo {
		if remaining[id] == 0 {
			launch(id)
		}
	}

	for running > 0 {
		c := <-completions
		running--

		res.ExecutionOrder = append(res.ExecutionOrder, c.id)
		outcome := NodeOutcome{Output: c.output, Duration: c.duration}
		if c.err != nil {
			outcome.Error = c.err.Error()
			res.Status = StatusFailed
		}
		res.Results[c.id] = outcome
		outputs[c.id] = c.output

		if c.err != nil {
			// Downstream nodes of a failed node never become ready.
			continue
		}
		for _, child := range g.children[c.id] {
			remaining[child]--
			if remaining[child] == 0 {
				launch(child)
			}
		}
	}
	wg.Wait()

	// Nodes that never ran (stranded behind a failure) also fail the run.
	if len(res.ExecutionOrder) != len(g.nodes) {
		res.Status = StatusFailed
	}
	return res
}
