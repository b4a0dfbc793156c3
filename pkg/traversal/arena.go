package traversal

import (
	"sync"

	"github.com/helixdb/helix-core/pkg/vector"
)

// vectorEntry is one memoized vector fetch: payload plus properties.
type vectorEntry struct {
	data  []float64
	props vector.VectorProps
}

// Arena memoizes node, edge, and vector payload reads across an entire
// traversal pipeline — generalizing pkg/vector's single-call scratch to
// the pipeline's whole lifetime. It outlives any one adapter but not the
// transaction it was built over; callers must not retain an Arena past
// the Reader/WriteTxn it was given.
type Arena struct {
	nodes   map[[16]byte]any
	edges   map[[16]byte]any
	vectors map[[16]byte]vectorEntry
}

var arenaPool = sync.Pool{
	New: func() any {
		return &Arena{
			nodes:   make(map[[16]byte]any),
			edges:   make(map[[16]byte]any),
			vectors: make(map[[16]byte]vectorEntry),
		}
	},
}

// NewArena borrows an Arena from the pool, ready for one traversal.
func NewArena() *Arena { return arenaPool.Get().(*Arena) }

// Release clears the Arena's contents and returns it to the pool. Call
// this once the owning transaction commits or aborts.
func (a *Arena) Release() {
	for k := range a.nodes {
		delete(a.nodes, k)
	}
	for k := range a.edges {
		delete(a.edges, k)
	}
	for k := range a.vectors {
		delete(a.vectors, k)
	}
	arenaPool.Put(a)
}

// CachedNode returns a previously stored node value, if any.
func (a *Arena) CachedNode(id [16]byte) (any, bool) {
	v, ok := a.nodes[id]
	return v, ok
}

// StoreNode memoizes a node value by id.
func (a *Arena) StoreNode(id [16]byte, v any) { a.nodes[id] = v }

// CachedEdge returns a previously stored edge value, if any.
func (a *Arena) CachedEdge(id [16]byte) (any, bool) {
	v, ok := a.edges[id]
	return v, ok
}

// StoreEdge memoizes an edge value by id.
func (a *Arena) StoreEdge(id [16]byte, v any) { a.edges[id] = v }

// CachedVector returns a previously fetched vector payload and its
// properties, if any.
func (a *Arena) CachedVector(id [16]byte) ([]float64, vector.VectorProps, bool) {
	v, ok := a.vectors[id]
	return v.data, v.props, ok
}

// StoreVector memoizes a vector payload and its properties by id.
func (a *Arena) StoreVector(id [16]byte, data []float64, props vector.VectorProps) {
	a.vectors[id] = vectorEntry{data: data, props: props}
}
