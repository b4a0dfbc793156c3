package codec

import "encoding/binary"

// Key packing helpers. All multi-byte integers are encoded big-endian so
// that lexicographic byte order on the kv substrate matches numeric order —
// required for range scans over ids and for the duplicate-sorted adjacency
// tables to iterate in a stable, prefix-scannable order.

// PackU128 encodes a 128-bit id as 16 big-endian bytes.
func PackU128(id [16]byte) []byte {
	out := make([]byte, 16)
	copy(out, id[:])
	return out
}

// PackU32 encodes a uint32 as 4 big-endian bytes.
func PackU32(v uint32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return out
}

// PackU16 encodes a uint16 as 2 big-endian bytes.
func PackU16(v uint16) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, v)
	return out
}

// PackU64 encodes a uint64 as 8 big-endian bytes.
func PackU64(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

// UnpackU64 decodes 8 big-endian bytes into a uint64.
func UnpackU64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// UnpackU128 decodes 16 big-endian bytes into an id.
func UnpackU128(b []byte) (id [16]byte) {
	copy(id[:], b)
	return id
}

// UnpackU32 decodes 4 big-endian bytes into a uint32.
func UnpackU32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// UnpackU16 decodes 2 big-endian bytes into a uint16.
func UnpackU16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

// AdjacencyKey packs the (node_id, label_hash) adjacency-table key: 16
// bytes of node id followed by the 4-byte label hash.
func AdjacencyKey(nodeID [16]byte, labelHash uint32) []byte {
	out := make([]byte, 0, 20)
	out = append(out, nodeID[:]...)
	out = append(out, PackU32(labelHash)...)
	return out
}

// AdjacencyDupKey packs the full 36-byte adjacency key actually stored on
// the substrate: (node_id, label_hash) followed by the edge id that
// distinguishes this duplicate. The substrate contract calls for
// duplicate-sorted fixed-size values under one (node_id, label_hash) key —
// folding edge_id into the key itself is how that is emulated on a
// substrate without native duplicate-key support (see package kv).
func AdjacencyDupKey(nodeID [16]byte, labelHash uint32, edgeID [16]byte) []byte {
	out := AdjacencyKey(nodeID, labelHash)
	return append(out, edgeID[:]...)
}

// AdjacencyValue packs the fixed 32-byte adjacency value: edge_id ‖ node_id.
func AdjacencyValue(edgeID, nodeID [16]byte) []byte {
	out := make([]byte, 0, 32)
	out = append(out, edgeID[:]...)
	out = append(out, nodeID[:]...)
	return out
}

// SplitAdjacencyValue unpacks a 32-byte adjacency value back into
// (edge_id, node_id).
func SplitAdjacencyValue(v []byte) (edgeID, nodeID [16]byte) {
	copy(edgeID[:], v[0:16])
	copy(nodeID[:], v[16:32])
	return edgeID, nodeID
}

// NeighborKey packs the HNSW (vector_id, level) neighbor-list key used by
// the vector index: 16 bytes of vector id followed by a 2-byte level.
func NeighborKey(vectorID [16]byte, level uint16) []byte {
	out := make([]byte, 0, 18)
	out = append(out, vectorID[:]...)
	out = append(out, PackU16(level)...)
	return out
}

// HashLabel is a deterministic 4-byte hash of a label string used as the
// suffix distinguishing labels within a node's adjacency subtree. It must
// be stable across processes and architectures — unlike Go's randomized
// maphash, FNV-1a always produces the same digest for the same bytes, which
// matters because this hash is part of the persisted key layout.
func HashLabel(label string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(label); i++ {
		h ^= uint32(label[i])
		h *= prime32
	}
	return h
}
