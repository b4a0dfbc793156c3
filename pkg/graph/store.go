package graph

import (
	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/herrors"
	"github.com/helixdb/helix-core/pkg/kv"
)

// Namespaces for the graph store's tables, per the key-encoding table in
// the graph-store design: nodes, edges, the two adjacency directions, and
// one idx:<name> namespace per configured secondary index.
const (
	NsNodes    kv.Namespace = "nodes"
	NsEdges    kv.Namespace = "edges"
	NsOutEdges kv.Namespace = "out_edges"
	NsInEdges  kv.Namespace = "in_edges"
)

// IndexNamespace returns the idx:<name> namespace for a secondary index.
func IndexNamespace(name string) kv.Namespace { return kv.Namespace("idx:" + name) }

type txnReader interface {
	Get(ns kv.Namespace, key []byte) ([]byte, error)
	PrefixIterate(ns kv.Namespace, prefix []byte, fn func(kv.Entry) (bool, error)) error
}

// GetNode fetches a node by id.
func GetNode(t txnReader, id [16]byte) (Node, error) {
	raw, err := t.Get(NsNodes, id[:])
	if err == kv.ErrNotFound {
		return Node{}, herrors.Wrap(herrors.NodeNotFound, "node not found", err)
	}
	if err != nil {
		return Node{}, err
	}
	return decodeNode(id, raw)
}

// GetEdge fetches an edge by id.
func GetEdge(t txnReader, id [16]byte) (Edge, error) {
	raw, err := t.Get(NsEdges, id[:])
	if err == kv.ErrNotFound {
		return Edge{}, herrors.Wrap(herrors.EdgeNotFound, "edge not found", err)
	}
	if err != nil {
		return Edge{}, err
	}
	return decodeEdge(id, raw)
}

// NodesByLabel scans every node and invokes fn for those matching label.
// There is no secondary index on label itself, so this is a full scan of
// NsNodes — the n_from_type source step's documented cost.
func NodesByLabel(t txnReader, label string, fn func(Node) (bool, error)) error {
	return t.PrefixIterate(NsNodes, nil, func(e kv.Entry) (bool, error) {
		var id [16]byte
		copy(id[:], e.Key)
		n, err := decodeNode(id, e.Value)
		if err != nil {
			return false, err
		}
		if n.Label != label {
			return true, nil
		}
		return fn(n)
	})
}

// EdgesByLabel scans every edge and invokes fn for those matching label.
func EdgesByLabel(t txnReader, label string, fn func(Edge) (bool, error)) error {
	return t.PrefixIterate(NsEdges, nil, func(e kv.Entry) (bool, error) {
		var id [16]byte
		copy(id[:], e.Key)
		edge, err := decodeEdge(id, e.Value)
		if err != nil {
			return false, err
		}
		if edge.Label != label {
			return true, nil
		}
		return fn(edge)
	})
}

func nodeExists(t txnReader, id [16]byte) (bool, error) {
	_, err := t.Get(NsNodes, id[:])
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddNode inserts a new node record, then writes an idx:<name> entry for
// every name in indexHints whose property is actually present on the
// node — absent properties are simply skipped, not an error.
func AddNode(txn *kv.WriteTxn, label string, properties *codec.PropertyMap, indexHints []string) (Node, error) {
	n := Node{ID: codec.NewID(), Label: label, Version: entityRecordVersion, Properties: properties}
	if err := txn.Set(NsNodes, n.ID[:], encodeNode(n)); err != nil {
		return Node{}, err
	}
	if err := writeIndexEntries(txn, n, indexHints); err != nil {
		return Node{}, err
	}
	return n, nil
}

func writeIndexEntries(txn *kv.WriteTxn, n Node, indexHints []string) error {
	for _, name := range indexHints {
		v, ok := n.Properties.Get(name)
		if !ok {
			continue
		}
		key := append(codec.EncodeValue(nil, v), n.ID[:]...)
		if err := txn.Set(IndexNamespace(name), key, n.ID[:]); err != nil {
			return err
		}
	}
	return nil
}

func dropIndexEntries(txn *kv.WriteTxn, n Node, indexHints []string) error {
	for _, name := range indexHints {
		v, ok := n.Properties.Get(name)
		if !ok {
			continue
		}
		key := append(codec.EncodeValue(nil, v), n.ID[:]...)
		if err := txn.Delete(IndexNamespace(name), key); err != nil {
			return err
		}
	}
	return nil
}

// AddEdge inserts a new edge record and both adjacency entries. When
// validateEndpoints is set, both endpoints must already exist or the call
// fails with NodeNotFound and nothing is written.
func AddEdge(txn *kv.WriteTxn, label string, from, to [16]byte, properties *codec.PropertyMap, validateEndpoints bool) (Edge, error) {
	if validateEndpoints {
		for _, id := range [2][16]byte{from, to} {
			ok, err := nodeExists(txn, id)
			if err != nil {
				return Edge{}, err
			}
			if !ok {
				return Edge{}, herrors.ErrNodeNotFound
			}
		}
	}

	e := Edge{ID: codec.NewID(), Label: label, Version: entityRecordVersion, From: from, To: to, Properties: properties}
	if err := txn.Set(NsEdges, e.ID[:], encodeEdge(e)); err != nil {
		return Edge{}, err
	}

	labelHash := codec.HashLabel(label)
	outKey := codec.AdjacencyDupKey(from, labelHash, e.ID)
	if err := txn.Set(NsOutEdges, outKey, codec.AdjacencyValue(e.ID, to)); err != nil {
		return Edge{}, err
	}
	inKey := codec.AdjacencyDupKey(to, labelHash, e.ID)
	if err := txn.Set(NsInEdges, inKey, codec.AdjacencyValue(e.ID, from)); err != nil {
		return Edge{}, err
	}

	return e, nil
}

// UpdateNode merges overrides onto the node's property map and rewrites
// the record, then updates any secondary index affected by a changed
// property.
func UpdateNode(txn *kv.WriteTxn, id [16]byte, overrides map[string]codec.Value, indexHints []string) (Node, error) {
	n, err := GetNode(txn, id)
	if err != nil {
		return Node{}, err
	}
	if err := dropIndexEntries(txn, n, indexHints); err != nil {
		return Node{}, err
	}
	n.Properties = n.Properties.MergeOverrides(overrides)
	if err := txn.Set(NsNodes, n.ID[:], encodeNode(n)); err != nil {
		return Node{}, err
	}
	if err := writeIndexEntries(txn, n, indexHints); err != nil {
		return Node{}, err
	}
	return n, nil
}

// UpdateEdge merges overrides onto the edge's property map and rewrites
// the record. Edges carry no secondary indices.
func UpdateEdge(txn *kv.WriteTxn, id [16]byte, overrides map[string]codec.Value) (Edge, error) {
	e, err := GetEdge(txn, id)
	if err != nil {
		return Edge{}, err
	}
	e.Properties = e.Properties.MergeOverrides(overrides)
	if err := txn.Set(NsEdges, e.ID[:], encodeEdge(e)); err != nil {
		return Edge{}, err
	}
	return e, nil
}

// AdjacencyEntry is one (label, edge_id, peer_id) triple yielded by
// adjacency iteration.
type AdjacencyEntry struct {
	LabelHash uint32
	EdgeID    [16]byte
	PeerID    [16]byte
}

// iterateAdjacency walks ns (NsOutEdges or NsInEdges) under prefix —
// either just nodeID (every label) or nodeID‖labelHash (one label).
func iterateAdjacency(t txnReader, ns kv.Namespace, prefix []byte, fn func(AdjacencyEntry) (bool, error)) error {
	return t.PrefixIterate(ns, prefix, func(e kv.Entry) (bool, error) {
		// key = node_id(16) ‖ label_hash(4) ‖ edge_id(16)
		if len(e.Key) < 36 {
			return true, nil
		}
		labelHash := codec.UnpackU32(e.Key[16:20])
		edgeID, peerID := codec.SplitAdjacencyValue(e.Value)
		return fn(AdjacencyEntry{LabelHash: labelHash, EdgeID: edgeID, PeerID: peerID})
	})
}

// OutAdjacency yields every outgoing (label_hash, edge_id, to_id) triple
// for nodeID, across all labels.
func OutAdjacency(t txnReader, nodeID [16]byte, fn func(AdjacencyEntry) (bool, error)) error {
	return iterateAdjacency(t, NsOutEdges, nodeID[:], fn)
}

// OutAdjacencyByLabel restricts OutAdjacency to one edge label.
func OutAdjacencyByLabel(t txnReader, nodeID [16]byte, label string, fn func(AdjacencyEntry) (bool, error)) error {
	return iterateAdjacency(t, NsOutEdges, codec.AdjacencyKey(nodeID, codec.HashLabel(label)), fn)
}

// InAdjacency yields every incoming (label_hash, edge_id, from_id) triple
// for nodeID, across all labels.
func InAdjacency(t txnReader, nodeID [16]byte, fn func(AdjacencyEntry) (bool, error)) error {
	return iterateAdjacency(t, NsInEdges, nodeID[:], fn)
}

// InAdjacencyByLabel restricts InAdjacency to one edge label.
func InAdjacencyByLabel(t txnReader, nodeID [16]byte, label string, fn func(AdjacencyEntry) (bool, error)) error {
	return iterateAdjacency(t, NsInEdges, codec.AdjacencyKey(nodeID, codec.HashLabel(label)), fn)
}

// LookupByIndex yields every node id stored under name for the given
// value — the n_from_index source step.
func LookupByIndex(t txnReader, name string, value codec.Value, fn func(nodeID [16]byte) (bool, error)) error {
	prefix := codec.EncodeValue(nil, value)
	return t.PrefixIterate(IndexNamespace(name), prefix, func(e kv.Entry) (bool, error) {
		var id [16]byte
		copy(id[:], e.Value)
		return fn(id)
	})
}

// DropEdge removes an edge record and both of its adjacency duplicates.
func DropEdge(txn *kv.WriteTxn, id [16]byte) error {
	e, err := GetEdge(txn, id)
	if err != nil {
		return err
	}
	labelHash := codec.HashLabel(e.Label)
	if err := txn.Delete(NsOutEdges, codec.AdjacencyDupKey(e.From, labelHash, e.ID)); err != nil {
		return err
	}
	if err := txn.Delete(NsInEdges, codec.AdjacencyDupKey(e.To, labelHash, e.ID)); err != nil {
		return err
	}
	return txn.Delete(NsEdges, e.ID[:])
}

// DropNode removes a node, every edge incident to it (both directions),
// the peer side of each of those edges' adjacency entries, and the
// node's own secondary-index entries. Per invariant 3, nothing about the
// node survives the call.
func DropNode(txn *kv.WriteTxn, id [16]byte, indexHints []string) error {
	n, err := GetNode(txn, id)
	if err != nil {
		return err
	}

	var toDelete []AdjacencyEntry
	if err := OutAdjacency(txn, id, func(a AdjacencyEntry) (bool, error) {
		toDelete = append(toDelete, a)
		return true, nil
	}); err != nil {
		return err
	}
	for _, a := range toDelete {
		if err := txn.Delete(NsInEdges, codec.AdjacencyDupKey(a.PeerID, a.LabelHash, a.EdgeID)); err != nil {
			return err
		}
		if err := txn.Delete(NsEdges, a.EdgeID[:]); err != nil {
			return err
		}
		if err := txn.Delete(NsOutEdges, codec.AdjacencyDupKey(id, a.LabelHash, a.EdgeID)); err != nil {
			return err
		}
	}

	toDelete = toDelete[:0]
	if err := InAdjacency(txn, id, func(a AdjacencyEntry) (bool, error) {
		toDelete = append(toDelete, a)
		return true, nil
	}); err != nil {
		return err
	}
	for _, a := range toDelete {
		if err := txn.Delete(NsOutEdges, codec.AdjacencyDupKey(a.PeerID, a.LabelHash, a.EdgeID)); err != nil {
			return err
		}
		// The edge record and its peer-side out-entry may already be gone
		// if this was a self-loop collected above; Delete on an absent key
		// is a no-op on the substrate, so this stays idempotent.
		if err := txn.Delete(NsEdges, a.EdgeID[:]); err != nil {
			return err
		}
		if err := txn.Delete(NsInEdges, codec.AdjacencyDupKey(id, a.LabelHash, a.EdgeID)); err != nil {
			return err
		}
	}

	if err := dropIndexEntries(txn, n, indexHints); err != nil {
		return err
	}
	return txn.Delete(NsNodes, id[:])
}
