// Package traversal implements the adapter pipeline that sits above the
// graph, vector, and bm25 stores: a sum-typed TraversalValue flowing
// through source steps and adapters, built around an arena-scoped
// allocation pattern and a boxed Dyn wrapper for reflection-oriented
// dispatch.
package traversal

import (
	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/graph"
	"github.com/helixdb/helix-core/pkg/vector"
)

// Kind tags which field of a TraversalValue is populated.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNode
	KindEdge
	KindVector
	KindCount
	KindGroup
	KindPath
	KindScalar
)

// VectorItem is the vector-kind payload of a TraversalValue: an id, its
// distance from the active query (0 outside a search context), the raw
// payload when fetched, and its properties.
type VectorItem struct {
	ID       [16]byte
	Distance float64
	Data     []float64
	Props    vector.VectorProps
}

// PathItem is the path-kind payload: an ordered walk of node and edge ids,
// per §4.2.3 ("ordered list of node IDs plus edge IDs").
type PathItem struct {
	NodeIDs [][16]byte
	EdgeIDs [][16]byte
}

// GroupItem is the group-kind payload produced by group_by/aggregate_by.
type GroupItem struct {
	Key   []codec.Value
	Items []TraversalValue
}

// TraversalValue is the sum type flowing through the pipeline: one of
// {Node, Edge, Vector, Count, Group, Path, Scalar, Empty} per §4.2.
type TraversalValue struct {
	Kind   Kind
	Node   *graph.Node
	Edge   *graph.Edge
	Vector *VectorItem
	Count  int64
	Group  *GroupItem
	Path   *PathItem
	Scalar codec.Value
}

func NodeValue(n *graph.Node) TraversalValue  { return TraversalValue{Kind: KindNode, Node: n} }
func EdgeValue(e *graph.Edge) TraversalValue  { return TraversalValue{Kind: KindEdge, Edge: e} }
func VectorValue(v *VectorItem) TraversalValue {
	return TraversalValue{Kind: KindVector, Vector: v}
}
func CountValue(n int64) TraversalValue      { return TraversalValue{Kind: KindCount, Count: n} }
func GroupValue(g *GroupItem) TraversalValue { return TraversalValue{Kind: KindGroup, Group: g} }
func PathValue(p *PathItem) TraversalValue   { return TraversalValue{Kind: KindPath, Path: p} }
func ScalarValue(v codec.Value) TraversalValue {
	return TraversalValue{Kind: KindScalar, Scalar: v}
}
func Empty() TraversalValue { return TraversalValue{Kind: KindEmpty} }

// ID resolves the reserved "id" field directly from the struct, per
// §4.2.5 — no PropertyMap lookup on this hot path.
func (v TraversalValue) ID() ([16]byte, bool) {
	switch v.Kind {
	case KindNode:
		return v.Node.ID, true
	case KindEdge:
		return v.Edge.ID, true
	case KindVector:
		return v.Vector.ID, true
	default:
		return [16]byte{}, false
	}
}

// Label resolves the reserved "label" field directly from the struct.
func (v TraversalValue) Label() (string, bool) {
	switch v.Kind {
	case KindNode:
		return v.Node.Label, true
	case KindEdge:
		return v.Edge.Label, true
	case KindVector:
		return v.Vector.Props.Label, true
	default:
		return "", false
	}
}

// Property resolves a named property: "id"/"label" from struct fields,
// everything else from the entity's PropertyMap (or the bare Scalar for a
// scalar value).
func (v TraversalValue) Property(name string) (codec.Value, bool) {
	switch name {
	case "id":
		id, ok := v.ID()
		if !ok {
			return codec.Value{}, false
		}
		return codec.ID(id), true
	case "label":
		l, ok := v.Label()
		if !ok {
			return codec.Value{}, false
		}
		return codec.String(l), true
	}

	switch v.Kind {
	case KindNode:
		return v.Node.Properties.Get(name)
	case KindEdge:
		return v.Edge.Properties.Get(name)
	case KindVector:
		if v.Vector.Props.Properties == nil {
			return codec.Value{}, false
		}
		return v.Vector.Props.Properties.Get(name)
	case KindScalar:
		return v.Scalar, true
	default:
		return codec.Value{}, false
	}
}

// properties returns the PropertyMap backing an item, or nil for kinds
// that don't carry one (Count, Group, Path, Scalar, Empty).
func (v TraversalValue) properties() *codec.PropertyMap {
	switch v.Kind {
	case KindNode:
		return v.Node.Properties
	case KindEdge:
		return v.Edge.Properties
	case KindVector:
		return v.Vector.Props.Properties
	default:
		return nil
	}
}
