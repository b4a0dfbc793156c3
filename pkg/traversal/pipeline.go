package traversal

import (
	"sort"

	"github.com/helixdb/helix-core/pkg/bm25"
	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/graph"
	"github.com/helixdb/helix-core/pkg/herrors"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/vector"
)

// Reader is the read surface every source step and read-only adapter
// needs; both *kv.ReadTxn and *kv.WriteTxn satisfy it.
type Reader interface {
	Get(ns kv.Namespace, key []byte) ([]byte, error)
	PrefixIterate(ns kv.Namespace, prefix []byte, fn func(kv.Entry) (bool, error)) error
}

// Pipeline is the fast-path adapter chain: a materialized slice of
// TraversalValue plus the transaction handle(s) later adapters read or
// write through. It is not lazy — every adapter here runs eagerly over
// the accumulated slice — which keeps the implementation a straight
// generalization of the teacher's BFS/DFS-over-materialized-slice style
// (pkg/cypher/traversal.go) rather than introducing a generator-based
// iterator abstraction Go doesn't give you for free.
//
// A single failing item aborts the whole pipeline (Err() is set and every
// later adapter becomes a no-op); collect-style terminals see the first
// error. There is no per-item error recovery: items that would have
// followed the failing one are not yielded.
type Pipeline struct {
	r          Reader
	w          *kv.WriteTxn
	values     []TraversalValue
	err        error
	arena      *Arena
	indexHints []string
}

// New starts a read-only pipeline over r.
func New(r Reader) *Pipeline { return &Pipeline{r: r} }

// WithArena attaches an Arena so repeated node/edge/vector lookups
// within this pipeline's adjacency walks are memoized instead of
// re-fetched from the transaction every time the same id recurs.
func (p *Pipeline) WithArena(a *Arena) *Pipeline {
	p.arena = a
	return p
}

// WithIndexHints attaches the configured secondary-index property names
// (graph_config.secondary_indices) so Update and Drop keep idx:<name>
// entries in sync the same way AddN does when a node is first created —
// a node created through one pipeline can be updated or dropped through
// another, so the hint list has to be threaded in rather than remembered.
func (p *Pipeline) WithIndexHints(names []string) *Pipeline {
	p.indexHints = names
	return p
}

func (p *Pipeline) getNode(id [16]byte) (graph.Node, error) {
	if p.arena != nil {
		if v, ok := p.arena.CachedNode(id); ok {
			return v.(graph.Node), nil
		}
	}
	n, err := graph.GetNode(p.r, id)
	if err != nil {
		return graph.Node{}, err
	}
	if p.arena != nil {
		p.arena.StoreNode(id, n)
	}
	return n, nil
}

func (p *Pipeline) getEdge(id [16]byte) (graph.Edge, error) {
	if p.arena != nil {
		if v, ok := p.arena.CachedEdge(id); ok {
			return v.(graph.Edge), nil
		}
	}
	e, err := graph.GetEdge(p.r, id)
	if err != nil {
		return graph.Edge{}, err
	}
	if p.arena != nil {
		p.arena.StoreEdge(id, e)
	}
	return e, nil
}

func (p *Pipeline) getVector(id [16]byte) ([]float64, vector.VectorProps, error) {
	if p.arena != nil {
		if data, props, ok := p.arena.CachedVector(id); ok {
			return data, props, nil
		}
	}
	data, props, err := vector.Get(p.r, id)
	if err != nil {
		return nil, vector.VectorProps{}, err
	}
	if p.arena != nil {
		p.arena.StoreVector(id, data, props)
	}
	return data, props, nil
}

// NewWrite starts a pipeline over a write transaction; write-side
// terminals (Update, Drop) and source steps (AddN, AddE, InsertV) require
// this form.
func NewWrite(w *kv.WriteTxn) *Pipeline { return &Pipeline{r: w, w: w} }

// FromIter seeds a pipeline directly from already-materialized values —
// the from_iter source step.
func FromIter(r Reader, items []TraversalValue) *Pipeline {
	return &Pipeline{r: r, values: items}
}

// Ok returns the accumulated values, or the first error encountered.
func (p *Pipeline) Ok() ([]TraversalValue, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.values, nil
}

// Err reports the first propagated error, if any.
func (p *Pipeline) Err() error { return p.err }

func (p *Pipeline) fail(err error) *Pipeline {
	if p.err == nil {
		p.err = err
	}
	return p
}

func (p *Pipeline) failed() bool { return p.err != nil }

// ---- Source steps (§4.2.1) ----

// NFromID yields the single node with id, or NodeNotFound.
func NFromID(r Reader, id [16]byte) *Pipeline {
	p := New(r)
	n, err := graph.GetNode(r, id)
	if err != nil {
		return p.fail(err)
	}
	return &Pipeline{r: r, values: []TraversalValue{NodeValue(&n)}}
}

// EFromID yields the single edge with id, or EdgeNotFound.
func EFromID(r Reader, id [16]byte) *Pipeline {
	p := New(r)
	e, err := graph.GetEdge(r, id)
	if err != nil {
		return p.fail(err)
	}
	return &Pipeline{r: r, values: []TraversalValue{EdgeValue(&e)}}
}

// VFromID yields the single vector with id, or VectorNotFound
// (DeletedVector for a tombstoned id).
func VFromID(r Reader, id [16]byte) *Pipeline {
	data, props, err := vector.Get(r, id)
	if err != nil {
		return New(r).fail(err)
	}
	item := &VectorItem{ID: id, Data: data, Props: props}
	return &Pipeline{r: r, values: []TraversalValue{VectorValue(item)}}
}

// NFromType yields every node with the given label — a full scan, since
// there is no secondary index on label itself.
func NFromType(r Reader, label string) *Pipeline {
	var values []TraversalValue
	err := graph.NodesByLabel(r, label, func(n graph.Node) (bool, error) {
		node := n
		values = append(values, NodeValue(&node))
		return true, nil
	})
	if err != nil {
		return New(r).fail(err)
	}
	return &Pipeline{r: r, values: values}
}

// EFromType yields every edge with the given label.
func EFromType(r Reader, label string) *Pipeline {
	var values []TraversalValue
	err := graph.EdgesByLabel(r, label, func(e graph.Edge) (bool, error) {
		edge := e
		values = append(values, EdgeValue(&edge))
		return true, nil
	})
	if err != nil {
		return New(r).fail(err)
	}
	return &Pipeline{r: r, values: values}
}

// VFromType yields every live vector stored under label.
func VFromType(r Reader, label string) *Pipeline {
	var values []TraversalValue
	err := vector.ByLabel(r, label, func(id [16]byte, data []float64, props vector.VectorProps) (bool, error) {
		values = append(values, VectorValue(&VectorItem{ID: id, Data: data, Props: props}))
		return true, nil
	})
	if err != nil {
		return New(r).fail(err)
	}
	return &Pipeline{r: r, values: values}
}

// NFromIndex yields every node whose secondary index `name` holds value.
func NFromIndex(r Reader, name string, value codec.Value) *Pipeline {
	var values []TraversalValue
	err := graph.LookupByIndex(r, name, value, func(nodeID [16]byte) (bool, error) {
		n, err := graph.GetNode(r, nodeID)
		if err != nil {
			return false, err
		}
		values = append(values, NodeValue(&n))
		return true, nil
	})
	if err != nil {
		return New(r).fail(err)
	}
	return &Pipeline{r: r, values: values}
}

// AddN creates a node and yields it — a write-side source step.
func AddN(w *kv.WriteTxn, label string, properties *codec.PropertyMap, indexHints []string) *Pipeline {
	n, err := graph.AddNode(w, label, properties, indexHints)
	if err != nil {
		return NewWrite(w).fail(err)
	}
	return &Pipeline{r: w, w: w, values: []TraversalValue{NodeValue(&n)}}
}

// AddE creates an edge and yields it.
func AddE(w *kv.WriteTxn, label string, from, to [16]byte, properties *codec.PropertyMap, validateEndpoints bool) *Pipeline {
	e, err := graph.AddEdge(w, label, from, to, properties, validateEndpoints)
	if err != nil {
		return NewWrite(w).fail(err)
	}
	return &Pipeline{r: w, w: w, values: []TraversalValue{EdgeValue(&e)}}
}

// InsertV inserts a vector under cfg/label and yields it.
func InsertV(w *kv.WriteTxn, cfg vector.Config, label string, data []float64, properties *codec.PropertyMap) *Pipeline {
	id, err := vector.Insert(w, cfg, label, data, properties)
	if err != nil {
		return NewWrite(w).fail(err)
	}
	item := &VectorItem{ID: id, Data: data}
	return &Pipeline{r: w, w: w, values: []TraversalValue{VectorValue(item)}}
}

// SearchV runs an HNSW search and yields the ranked results — §4.3.
func SearchV(r Reader, cfg vector.Config, label string, query []float64, k int, filter vector.Filter) *Pipeline {
	results, err := vector.Search(r, cfg, label, query, k, filter)
	if err != nil {
		return New(r).fail(err)
	}
	values := make([]TraversalValue, 0, len(results))
	for _, res := range results {
		values = append(values, VectorValue(&VectorItem{ID: res.ID, Distance: res.Distance}))
	}
	return &Pipeline{r: r, values: values}
}

// SearchBM25 runs a BM25 full-text search and yields matching documents
// as Scalar values pairing doc id and score (there is no direct Node/Edge
// association for a bm25 document id at this layer — callers resolve it
// themselves via NFromID if the id happens to be a node id).
func SearchBM25(r Reader, query string, limit int) *Pipeline {
	results, err := bm25.Search(r, query, limit)
	if err != nil {
		return New(r).fail(err)
	}
	values := make([]TraversalValue, 0, len(results))
	for _, res := range results {
		obj := codec.Object(map[string]codec.Value{
			"doc_id": codec.ID(res.DocID),
			"score":  codec.F64(res.Score),
		})
		values = append(values, ScalarValue(obj))
	}
	return &Pipeline{r: r, values: values}
}

// ---- Adapters (§4.2.2) ----

// OutNode yields, for each input node, the target nodes reachable by one
// edge of label. Duplicates preserved: each edge contributes one output.
func (p *Pipeline) OutNode(label string) *Pipeline {
	if p.failed() {
		return p
	}
	var out []TraversalValue
	for _, v := range p.values {
		if v.Kind != KindNode {
			continue
		}
		err := graph.OutAdjacencyByLabel(p.r, v.Node.ID, label, func(a graph.AdjacencyEntry) (bool, error) {
			n, err := p.getNode(a.PeerID)
			if err != nil {
				return false, err
			}
			out = append(out, NodeValue(&n))
			return true, nil
		})
		if err != nil {
			return p.fail(err)
		}
	}
	p.values = out
	return p
}

// InNode mirrors OutNode over incoming adjacency.
func (p *Pipeline) InNode(label string) *Pipeline {
	if p.failed() {
		return p
	}
	var out []TraversalValue
	for _, v := range p.values {
		if v.Kind != KindNode {
			continue
		}
		err := graph.InAdjacencyByLabel(p.r, v.Node.ID, label, func(a graph.AdjacencyEntry) (bool, error) {
			n, err := p.getNode(a.PeerID)
			if err != nil {
				return false, err
			}
			out = append(out, NodeValue(&n))
			return true, nil
		})
		if err != nil {
			return p.fail(err)
		}
	}
	p.values = out
	return p
}

// OutVec is out_node's vector-endpoint sibling: the adjacency tables
// store peer ids uninterpreted, so an edge's "to" id can equally well
// name a vector as a node — out_vec is simply the interpretation that
// resolves it through the vector store instead of the node store.
func (p *Pipeline) OutVec(label string, fetchData bool) *Pipeline {
	if p.failed() {
		return p
	}
	var out []TraversalValue
	for _, v := range p.values {
		if v.Kind != KindNode {
			continue
		}
		err := graph.OutAdjacencyByLabel(p.r, v.Node.ID, label, func(a graph.AdjacencyEntry) (bool, error) {
			item, err := p.resolveVecPeer(a.PeerID, fetchData)
			if err != nil {
				return false, err
			}
			out = append(out, VectorValue(item))
			return true, nil
		})
		if err != nil {
			return p.fail(err)
		}
	}
	p.values = out
	return p
}

// InVec mirrors OutVec over incoming adjacency.
func (p *Pipeline) InVec(label string, fetchData bool) *Pipeline {
	if p.failed() {
		return p
	}
	var out []TraversalValue
	for _, v := range p.values {
		if v.Kind != KindNode {
			continue
		}
		err := graph.InAdjacencyByLabel(p.r, v.Node.ID, label, func(a graph.AdjacencyEntry) (bool, error) {
			item, err := p.resolveVecPeer(a.PeerID, fetchData)
			if err != nil {
				return false, err
			}
			out = append(out, VectorValue(item))
			return true, nil
		})
		if err != nil {
			return p.fail(err)
		}
	}
	p.values = out
	return p
}

func (p *Pipeline) resolveVecPeer(id [16]byte, fetchData bool) (*VectorItem, error) {
	item := &VectorItem{ID: id}
	if !fetchData {
		return item, nil
	}
	data, props, err := p.getVector(id)
	if err != nil {
		return nil, err
	}
	item.Data = data
	item.Props = props
	return item, nil
}

// OutE yields the edges themselves rather than their endpoints.
func (p *Pipeline) OutE(label string) *Pipeline {
	if p.failed() {
		return p
	}
	var out []TraversalValue
	for _, v := range p.values {
		if v.Kind != KindNode {
			continue
		}
		err := graph.OutAdjacencyByLabel(p.r, v.Node.ID, label, func(a graph.AdjacencyEntry) (bool, error) {
			e, err := p.getEdge(a.EdgeID)
			if err != nil {
				return false, err
			}
			out = append(out, EdgeValue(&e))
			return true, nil
		})
		if err != nil {
			return p.fail(err)
		}
	}
	p.values = out
	return p
}

// InE mirrors OutE over incoming adjacency.
func (p *Pipeline) InE(label string) *Pipeline {
	if p.failed() {
		return p
	}
	var out []TraversalValue
	for _, v := range p.values {
		if v.Kind != KindNode {
			continue
		}
		err := graph.InAdjacencyByLabel(p.r, v.Node.ID, label, func(a graph.AdjacencyEntry) (bool, error) {
			e, err := p.getEdge(a.EdgeID)
			if err != nil {
				return false, err
			}
			out = append(out, EdgeValue(&e))
			return true, nil
		})
		if err != nil {
			return p.fail(err)
		}
	}
	p.values = out
	return p
}

// FromN yields, for each input edge, its from node.
func (p *Pipeline) FromN() *Pipeline { return p.edgeEndpointNode(func(e *graph.Edge) [16]byte { return e.From }) }

// ToN yields, for each input edge, its to node.
func (p *Pipeline) ToN() *Pipeline { return p.edgeEndpointNode(func(e *graph.Edge) [16]byte { return e.To }) }

func (p *Pipeline) edgeEndpointNode(pick func(*graph.Edge) [16]byte) *Pipeline {
	if p.failed() {
		return p
	}
	var out []TraversalValue
	for _, v := range p.values {
		if v.Kind != KindEdge {
			continue
		}
		n, err := p.getNode(pick(v.Edge))
		if err != nil {
			return p.fail(err)
		}
		out = append(out, NodeValue(&n))
	}
	p.values = out
	return p
}

// FromV yields, for each input edge, the vector at its from endpoint.
func (p *Pipeline) FromV() *Pipeline { return p.edgeEndpointVec(func(e *graph.Edge) [16]byte { return e.From }) }

// ToV yields, for each input edge, the vector at its to endpoint.
func (p *Pipeline) ToV() *Pipeline { return p.edgeEndpointVec(func(e *graph.Edge) [16]byte { return e.To }) }

func (p *Pipeline) edgeEndpointVec(pick func(*graph.Edge) [16]byte) *Pipeline {
	if p.failed() {
		return p
	}
	var out []TraversalValue
	for _, v := range p.values {
		if v.Kind != KindEdge {
			continue
		}
		id := pick(v.Edge)
		data, props, err := p.getVector(id)
		if err != nil {
			return p.fail(err)
		}
		out = append(out, VectorValue(&VectorItem{ID: id, Data: data, Props: props}))
	}
	p.values = out
	return p
}

// FilterRef retains items where pred returns true; an error from pred
// aborts the pipeline.
func (p *Pipeline) FilterRef(pred func(TraversalValue, Reader) (bool, error)) *Pipeline {
	if p.failed() {
		return p
	}
	var out []TraversalValue
	for _, v := range p.values {
		ok, err := pred(v, p.r)
		if err != nil {
			return p.fail(err)
		}
		if ok {
			out = append(out, v)
		}
	}
	p.values = out
	return p
}

// FilterMut is FilterRef's write-side counterpart: the predicate may
// mutate under the pipeline's write transaction.
func (p *Pipeline) FilterMut(pred func(TraversalValue, *kv.WriteTxn) (bool, error)) *Pipeline {
	if p.failed() {
		return p
	}
	if p.w == nil {
		return p.fail(herrors.New(herrors.Internal, "filter_mut requires a write pipeline"))
	}
	var out []TraversalValue
	for _, v := range p.values {
		ok, err := pred(v, p.w)
		if err != nil {
			return p.fail(err)
		}
		if ok {
			out = append(out, v)
		}
	}
	p.values = out
	return p
}

// Map applies a 1:1 projection.
func (p *Pipeline) Map(f func(TraversalValue) TraversalValue) *Pipeline {
	if p.failed() {
		return p
	}
	out := make([]TraversalValue, len(p.values))
	for i, v := range p.values {
		out[i] = f(v)
	}
	p.values = out
	return p
}

// Range skips lo items and yields at most hi-lo.
func (p *Pipeline) Range(lo, hi int) *Pipeline {
	if p.failed() {
		return p
	}
	if lo < 0 {
		lo = 0
	}
	if lo >= len(p.values) {
		p.values = nil
		return p
	}
	end := hi
	if end > len(p.values) {
		end = len(p.values)
	}
	if end < lo {
		end = lo
	}
	p.values = p.values[lo:end]
	return p
}

// Dedup emits each distinct item once, by id; items with no id (Count,
// Group, Path, Scalar, Empty) always pass through.
func (p *Pipeline) Dedup() *Pipeline {
	if p.failed() {
		return p
	}
	seen := make(map[[16]byte]bool, len(p.values))
	var out []TraversalValue
	for _, v := range p.values {
		id, ok := v.ID()
		if !ok {
			out = append(out, v)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, v)
	}
	p.values = out
	return p
}

// OrderByAsc materializes and sorts ascending by property key.
func (p *Pipeline) OrderByAsc(key string) *Pipeline { return p.orderBy(key, true) }

// OrderByDesc materializes and sorts descending by property key.
func (p *Pipeline) OrderByDesc(key string) *Pipeline { return p.orderBy(key, false) }

func (p *Pipeline) orderBy(key string, asc bool) *Pipeline {
	if p.failed() {
		return p
	}
	sort.SliceStable(p.values, func(i, j int) bool {
		vi, oki := p.values[i].Property(key)
		vj, okj := p.values[j].Property(key)
		if !oki || !okj {
			return okj == false && oki == true
		}
		if asc {
			return vi.Less(vj)
		}
		return vj.Less(vi)
	})
	return p
}

// groupKey builds the tuple key for group_by/aggregate_by from keys.
func groupKey(v TraversalValue, keys []string) []codec.Value {
	out := make([]codec.Value, len(keys))
	for i, k := range keys {
		val, ok := v.Property(k)
		if !ok {
			val = codec.Empty()
		}
		out[i] = val
	}
	return out
}

func keyEqual(a, b []codec.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// GroupBy partitions items by the tuple of keys' property values. With
// count, emits one CountValue-carrying Group per key; otherwise each
// Group carries its member items. Order of emitted groups is first-seen,
// which also satisfies aggregate_by's stronger "preserves ordering"
// requirement.
func (p *Pipeline) GroupBy(keys []string, count bool) *Pipeline {
	return p.groupBy(keys, count)
}

// AggregateBy behaves like GroupBy but is the explicitly order-preserving
// form used for multi-level grouping; this implementation's GroupBy
// already preserves first-seen order, so the two share one code path.
func (p *Pipeline) AggregateBy(keys []string, count bool) *Pipeline {
	return p.groupBy(keys, count)
}

func (p *Pipeline) groupBy(keys []string, count bool) *Pipeline {
	if p.failed() {
		return p
	}
	var order [][]codec.Value
	groups := make(map[int][]TraversalValue)
	indexOf := func(k []codec.Value) int {
		for i, existing := range order {
			if keyEqual(existing, k) {
				return i
			}
		}
		order = append(order, k)
		return len(order) - 1
	}
	for _, v := range p.values {
		k := groupKey(v, keys)
		idx := indexOf(k)
		groups[idx] = append(groups[idx], v)
	}
	out := make([]TraversalValue, 0, len(order))
	for i, k := range order {
		items := groups[i]
		g := &GroupItem{Key: k}
		if count {
			g.Items = nil
			out = append(out, TraversalValue{Kind: KindGroup, Group: g, Count: int64(len(items))})
			continue
		}
		g.Items = items
		out = append(out, GroupValue(g))
	}
	p.values = out
	return p
}

// Count consumes the pipeline and emits a single Count value.
func (p *Pipeline) Count() *Pipeline {
	if p.failed() {
		return p
	}
	p.values = []TraversalValue{CountValue(int64(len(p.values)))}
	return p
}

// Intersect materializes f(v) for every input v and emits the
// intersection of all resulting sets, by id. Empty input, or an empty
// first set, yields empty.
func (p *Pipeline) Intersect(f func(TraversalValue) ([]TraversalValue, error)) *Pipeline {
	if p.failed() {
		return p
	}
	if len(p.values) == 0 {
		p.values = nil
		return p
	}
	var sets [][]TraversalValue
	for _, v := range p.values {
		set, err := f(v)
		if err != nil {
			return p.fail(err)
		}
		sets = append(sets, set)
	}
	if len(sets[0]) == 0 {
		p.values = nil
		return p
	}
	counts := make(map[[16]byte]int)
	first := make(map[[16]byte]TraversalValue)
	for _, set := range sets {
		seenInSet := make(map[[16]byte]bool)
		for _, v := range set {
			id, ok := v.ID()
			if !ok {
				continue
			}
			if seenInSet[id] {
				continue
			}
			seenInSet[id] = true
			counts[id]++
			if _, ok := first[id]; !ok {
				first[id] = v
			}
		}
	}
	var out []TraversalValue
	for id, c := range counts {
		if c == len(sets) {
			out = append(out, first[id])
		}
	}
	p.values = out
	return p
}

// Update rewrites properties on every input node/edge and yields the
// updated entity — a write-side terminal.
func (p *Pipeline) Update(overrides map[string]codec.Value) *Pipeline {
	if p.failed() {
		return p
	}
	if p.w == nil {
		return p.fail(herrors.New(herrors.Internal, "update requires a write pipeline"))
	}
	var out []TraversalValue
	for _, v := range p.values {
		switch v.Kind {
		case KindNode:
			n, err := graph.UpdateNode(p.w, v.Node.ID, overrides, p.indexHints)
			if err != nil {
				return p.fail(err)
			}
			out = append(out, NodeValue(&n))
		case KindEdge:
			e, err := graph.UpdateEdge(p.w, v.Edge.ID, overrides)
			if err != nil {
				return p.fail(err)
			}
			out = append(out, EdgeValue(&e))
		default:
			out = append(out, v)
		}
	}
	p.values = out
	return p
}

// Drop removes every input entity and yields Empty — a write-side
// terminal.
func (p *Pipeline) Drop() *Pipeline {
	if p.failed() {
		return p
	}
	if p.w == nil {
		return p.fail(herrors.New(herrors.Internal, "drop requires a write pipeline"))
	}
	for _, v := range p.values {
		var err error
		switch v.Kind {
		case KindNode:
			err = graph.DropNode(p.w, v.Node.ID, p.indexHints)
		case KindEdge:
			err = graph.DropEdge(p.w, v.Edge.ID)
		case KindVector:
			err = vector.Delete(p.w, v.Vector.ID)
		}
		if err != nil {
			return p.fail(err)
		}
	}
	p.values = []TraversalValue{Empty()}
	return p
}

// BruteForceSearchV scans the input sequence, computing an exact distance
// to query for every item and yielding the k closest — §4.2.4.
func (p *Pipeline) BruteForceSearchV(query []float64, k int, metric vector.Metric) *Pipeline {
	if p.failed() {
		return p
	}
	var cands []vector.Result
	data := make(map[[16]byte][]float64)
	for _, v := range p.values {
		if v.Kind != KindVector {
			continue
		}
		vecData := v.Vector.Data
		if vecData == nil {
			d, _, err := p.getVector(v.Vector.ID)
			if err != nil {
				return p.fail(err)
			}
			vecData = d
		}
		data[v.Vector.ID] = vecData
		dist := vector.Distance(metric, query, vecData)
		cands = append(cands, vector.Result{ID: v.Vector.ID, Distance: dist})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].Distance < cands[j].Distance })
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]TraversalValue, 0, len(cands))
	for _, c := range cands {
		out = append(out, VectorValue(&VectorItem{ID: c.ID, Distance: c.Distance, Data: data[c.ID]}))
	}
	p.values = out
	return p
}

// RerankMethod selects the fusion strategy Rerank applies.
type RerankMethod uint8

const (
	RerankRRF RerankMethod = iota
	RerankMMR
)

// Rerank applies reciprocal rank fusion or max-marginal-relevance over
// the accumulated vector inputs, per §4.2.2. lambda trades relevance
// (1.0) for diversity (0.0) in the MMR case; it is ignored for RRF.
func (p *Pipeline) Rerank(method RerankMethod, k int, metric vector.Metric, query []float64, lambda float64) *Pipeline {
	if p.failed() {
		return p
	}
	var items []*VectorItem
	for _, v := range p.values {
		if v.Kind == KindVector {
			items = append(items, v.Vector)
		}
	}
	if len(items) == 0 {
		p.values = nil
		return p
	}

	switch method {
	case RerankRRF:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Distance < items[j].Distance })
		const rrfK = 60.0
		type scored struct {
			item  *VectorItem
			score float64
		}
		scoredItems := make([]scored, len(items))
		for i, it := range items {
			scoredItems[i] = scored{item: it, score: 1.0 / (rrfK + float64(i+1))}
		}
		sort.SliceStable(scoredItems, func(i, j int) bool { return scoredItems[i].score > scoredItems[j].score })
		out := make([]TraversalValue, 0, k)
		for i, s := range scoredItems {
			if i >= k {
				break
			}
			out = append(out, VectorValue(s.item))
		}
		p.values = out
	case RerankMMR:
		p.values = mmrRerank(p.r, items, query, metric, lambda, k)
	}
	return p
}

// mmrRerank greedily selects the item maximizing
// lambda*relevance - (1-lambda)*max_similarity_to_selected, repeated
// until k items are chosen or candidates run out.
func mmrRerank(r Reader, items []*VectorItem, query []float64, metric vector.Metric, lambda float64, k int) []TraversalValue {
	remaining := append([]*VectorItem(nil), items...)
	var selected []*VectorItem

	dataOf := func(it *VectorItem) []float64 {
		if it.Data != nil {
			return it.Data
		}
		d, _, err := vector.Get(r, it.ID)
		if err != nil {
			return nil
		}
		it.Data = d
		return d
	}

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for i, cand := range remaining {
			relevance := 1.0 - vector.Distance(metric, query, dataOf(cand))
			maxSim := 0.0
			for _, sel := range selected {
				sim := 1.0 - vector.Distance(metric, dataOf(cand), dataOf(sel))
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance - (1-lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	out := make([]TraversalValue, 0, len(selected))
	for _, s := range selected {
		out = append(out, VectorValue(s))
	}
	return out
}
