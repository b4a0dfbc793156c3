// Package graph implements the node/edge store: the on-disk record shapes,
// the adjacency tables, and the secondary-index tables described by the
// storage engine's graph-store design.
package graph

import (
	"github.com/helixdb/helix-core/pkg/codec"
)

const entityRecordVersion = 1

// Node is the immutable tuple (id, label, version, properties). The id is
// never part of the encoded record — it is always the kv key.
type Node struct {
	ID         [16]byte
	Label      string
	Version    uint8
	Properties *codec.PropertyMap
}

// Edge is the immutable tuple (id, label, version, from, to, properties).
// Self-loops are permitted; (label, from, to) need not be unique.
type Edge struct {
	ID         [16]byte
	Label      string
	Version    uint8
	From       [16]byte
	To         [16]byte
	Properties *codec.PropertyMap
}

func encodeNode(n Node) []byte {
	buf := make([]byte, 0, 48)
	buf = codec.AppendHeader(buf, codec.RecordHeader{Label: n.Label, Version: n.Version})
	buf = codec.AppendProperties(buf, n.Properties)
	return buf
}

func decodeNode(id [16]byte, raw []byte) (Node, error) {
	c := codec.NewCursor(raw)
	hdr, err := c.DecodeHeader()
	if err != nil {
		return Node{}, err
	}
	props, err := c.DecodeProperties()
	if err != nil {
		return Node{}, err
	}
	hdr = upgradeHeader(hdr)
	return Node{ID: id, Label: hdr.Label, Version: hdr.Version, Properties: props}, nil
}

func encodeEdge(e Edge) []byte {
	buf := make([]byte, 0, 80)
	buf = codec.AppendHeader(buf, codec.RecordHeader{Label: e.Label, Version: e.Version})
	buf = append(buf, e.From[:]...)
	buf = append(buf, e.To[:]...)
	buf = codec.AppendProperties(buf, e.Properties)
	return buf
}

func decodeEdge(id [16]byte, raw []byte) (Edge, error) {
	c := codec.NewCursor(raw)
	hdr, err := c.DecodeHeader()
	if err != nil {
		return Edge{}, err
	}
	fromRaw, err := c.ReadN(16)
	if err != nil {
		return Edge{}, err
	}
	toRaw, err := c.ReadN(16)
	if err != nil {
		return Edge{}, err
	}
	props, err := c.DecodeProperties()
	if err != nil {
		return Edge{}, err
	}
	hdr = upgradeHeader(hdr)
	var from, to [16]byte
	copy(from[:], fromRaw)
	copy(to[:], toRaw)
	return Edge{ID: id, Label: hdr.Label, Version: hdr.Version, From: from, To: to, Properties: props}, nil
}

// upgradeHeader applies version-on-read upgrades, per invariant 8: records
// with version < current are transparently upgraded to the current
// in-memory shape. There is only one shape so far, so this just stamps the
// current version onto anything older.
func upgradeHeader(h codec.RecordHeader) codec.RecordHeader {
	if h.Version < entityRecordVersion {
		h.Version = entityRecordVersion
	}
	return h
}
