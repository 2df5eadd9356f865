// Package graph implements the sparse optimizer adapter (C5): a minimal
// sparse Levenberg-Marquardt back-end over a hyper-graph of vertices
// (pose/time-diff decision variables) and edges (soft-constraint factors),
// satisfying the sparse-optimizer-adapter contract the rest of this
// module builds on.
//
// The normal-equation solve is grounded on the accept/reject damping loop
// shape used by the optimizer routines sampled into other_examples/
// (e2a12b3b_.../optimizer.go, ea6fef07_.../optimization.go); the sparse
// vertex/edge bookkeeping (stable integer IDs, clear-edges-keep-vertices
// teardown) mirrors g2o's SparseOptimizer, adapted to Go idiom rather than
// ported line for line.
package graph

import (
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Vertex is one optimization variable: a pose (dimension 3: x, y, theta) or
// a time-diff (dimension 1). Value holds the current (possibly optimized)
// scalar components; Fixed vertices are never perturbed or updated.
type Vertex struct {
	ID    int
	Dim   int
	Value []float64
	Fixed bool
}

// ErrorFunc computes an edge's error vector given the current values of its
// incident vertices, in the same order the edge declared them via Vertices.
type ErrorFunc func(vertexValues [][]float64) []float64

// Edge is one soft-constraint factor: it names its incident vertex IDs, a
// symmetric information matrix sized to its error vector's dimension, and
// the error function itself.
type Edge struct {
	ID          int
	Kind        string
	VertexIDs   []int
	Information *mat.SymDense
	Err         ErrorFunc
}

// IterationStats summarizes one inner LM iteration, the sparse-optimizer
// equivalent of g2o's per-iteration batch statistics.
type IterationStats struct {
	Chi2   float64
	Lambda float64
}

// registeredKinds is the process-global edge-type registry, the Go
// equivalent of the C++ g2o::Factory populated once via boost::call_once in
// optimal_planner copy.cpp's registerG2OTypes/initOptimizer. A bare
// mutex-protected map is sufficient here — unlike the C++
// factory, which performs real construction-time side effects on first
// registration, a map write is naturally idempotent, so every Optimizer
// instance can call RegisterEdgeKind on every AddEdge without a sync.Once
// guard and still only ever observe one logical registration per kind.
var (
	registeredKinds   = map[string]bool{}
	registeredKindsMu sync.Mutex
)

// RegisterEdgeKind marks an edge kind name as known to the process-wide
// registry. Safe to call from multiple goroutines and from multiple
// Optimizer instances concurrently.
func RegisterEdgeKind(kind string) {
	registeredKindsMu.Lock()
	defer registeredKindsMu.Unlock()
	registeredKinds[kind] = true
}

// RegisteredEdgeKinds returns the set of edge kinds ever registered in this
// process, in no particular order (diagnostic/testing use).
func RegisteredEdgeKinds() []string {
	registeredKindsMu.Lock()
	defer registeredKindsMu.Unlock()
	kinds := make([]string, 0, len(registeredKinds))
	for k := range registeredKinds {
		kinds = append(kinds, k)
	}
	return kinds
}

// Optimizer is one instance of the sparse LM back-end. Multiple Optimizers
// may be constructed and used concurrently; all mutable state below is
// instance-local.
type Optimizer struct {
	vertices map[int]*Vertex
	order    []int // insertion order, for deterministic Jacobian column layout
	edges    []*Edge
	nextID   int

	stats []IterationStats

	// DivergenceMaxChi2 configures HasDiverged; 0 (the zero value) disables
	// divergence detection, matching recovery.divergence_detection_enable=false.
	DivergenceMaxChi2 float64
}

// NewOptimizer returns an empty Optimizer instance.
func NewOptimizer() *Optimizer {
	return &Optimizer{vertices: map[int]*Vertex{}}
}

// AddVertex adds a vertex, assigning it the next stable integer ID, and
// returns that ID.
func (o *Optimizer) AddVertex(dim int, value []float64, fixed bool) int {
	id := o.nextID
	o.nextID++
	o.vertices[id] = &Vertex{ID: id, Dim: dim, Value: append([]float64(nil), value...), Fixed: fixed}
	o.order = append(o.order, id)
	return id
}

// AddEdge adds an edge connecting previously-added vertices.
func (o *Optimizer) AddEdge(kind string, vertexIDs []int, information *mat.SymDense, errFn ErrorFunc) error {
	for _, id := range vertexIDs {
		if _, ok := o.vertices[id]; !ok {
			return errors.Errorf("graph: edge %q references unknown vertex %d", kind, id)
		}
	}
	RegisterEdgeKind(kind)
	id := len(o.edges)
	o.edges = append(o.edges, &Edge{ID: id, Kind: kind, VertexIDs: vertexIDs, Information: information, Err: errFn})
	return nil
}

// NumVertices returns the number of vertices currently in the graph.
func (o *Optimizer) NumVertices() int { return len(o.vertices) }

// NumEdges returns the number of edges currently in the graph.
func (o *Optimizer) NumEdges() int { return len(o.edges) }

// VertexValue returns the current value slice for vertex id.
func (o *Optimizer) VertexValue(id int) []float64 { return o.vertices[id].Value }

// Clear implements clear_edges_and_vertices(): it drops all edges and
// vertices and their back-links. Per the "sever vertex->edge links
// first" design note, this matters when vertex storage is shared with a
// caller-owned object (Band here) — Clear never touches Band.Poses or
// Band.TimeDiffs, it only forgets the Optimizer's own copies of their
// values and the edges that referenced them.
func (o *Optimizer) Clear() {
	o.vertices = map[int]*Vertex{}
	o.order = nil
	o.edges = nil
	o.nextID = 0
	o.stats = nil
}

// BatchStatistics returns the per-inner-iteration chi-squared/lambda
// history from the most recent Optimize call.
func (o *Optimizer) BatchStatistics() []IterationStats { return o.stats }

// HasDiverged reports divergence: true if the
// last inner iteration's chi-squared exceeds DivergenceMaxChi2.
func (o *Optimizer) HasDiverged() bool {
	if o.DivergenceMaxChi2 <= 0 || len(o.stats) == 0 {
		return false
	}
	return o.stats[len(o.stats)-1].Chi2 > o.DivergenceMaxChi2
}
