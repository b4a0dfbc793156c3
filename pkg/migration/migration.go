// Package migration handles backwards compatibility across record-format
// changes: the engine-wide version stamp read on Open and the batched
// rewrite of vector payloads when a store is opened on a machine with
// different endianness than the one that wrote it. Per-record
// upgrade-on-read happens in the graph and vector record decoders, not
// here.
package migration

import (
	"bytes"
	"encoding/binary"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/vector"
)

// NsMetadata holds store-wide metadata: the engine version stamp and the
// byte order vector payloads were last written under. Unlike per-record
// versions (carried in each record's header), this tracks the storage
// engine's own schema generation as a single value.
const NsMetadata kv.Namespace = "metadata"

var (
	engineVersionKey = []byte("engine_version")
	vectorEndianKey  = []byte("vector_endianness")
	littleEndianTag  = byte(0)
	bigEndianTag     = byte(1)
	rewriteBatchSize = 1024
)

// CurrentEngineVersion is the schema generation this build writes. Bump it
// whenever a store-wide migration pass (as opposed to a per-record
// upgrade-on-read) becomes necessary.
const CurrentEngineVersion uint8 = 1

// EngineVersion is the metadata record tracking the storage engine's own
// schema version, independent of the per-record `version: u8` field each
// Node/Edge/Vector carries.
type EngineVersion struct {
	Version uint8
}

func readEngineVersion(t *kv.ReadTxn) (EngineVersion, bool, error) {
	raw, err := t.Get(NsMetadata, engineVersionKey)
	if err == kv.ErrNotFound {
		return EngineVersion{}, false, nil
	}
	if err != nil {
		return EngineVersion{}, false, err
	}
	if len(raw) < 1 {
		return EngineVersion{}, false, nil
	}
	return EngineVersion{Version: raw[0]}, true, nil
}

func writeEngineVersion(txn *kv.WriteTxn, v EngineVersion) error {
	return txn.Set(NsMetadata, engineVersionKey, []byte{v.Version})
}

func endianTag(order binary.ByteOrder) byte {
	if order == binary.LittleEndian {
		return littleEndianTag
	}
	return bigEndianTag
}

func orderForTag(tag byte) binary.ByteOrder {
	if tag == bigEndianTag {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// EnsureUpToDate stamps a freshly created store with the current engine
// version and endianness, or — on an existing store — detects whether the
// stamped endianness differs from this machine's and rewrites every vector
// payload if so. Call once per Open, before any other operation.
func EnsureUpToDate(store *kv.Store) error {
	var needsRewrite bool
	var fromOrder binary.ByteOrder

	err := store.Update(func(txn *kv.WriteTxn) error {
		_, known, err := readEngineVersion(&txn.ReadTxn)
		if err != nil {
			return err
		}
		if !known {
			if err := writeEngineVersion(txn, EngineVersion{Version: CurrentEngineVersion}); err != nil {
				return err
			}
			return txn.Set(NsMetadata, vectorEndianKey, []byte{endianTag(codec.NativeEndian)})
		}

		raw, err := txn.Get(NsMetadata, vectorEndianKey)
		if err != nil && err != kv.ErrNotFound {
			return err
		}
		storedTag := endianTag(codec.NativeEndian)
		if err == nil && len(raw) == 1 {
			storedTag = raw[0]
		}
		if storedTag != endianTag(codec.NativeEndian) {
			needsRewrite = true
			fromOrder = orderForTag(storedTag)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !needsRewrite {
		return nil
	}
	return RewriteVectorEndianness(store, fromOrder)
}

// RewriteVectorEndianness re-encodes every stored vector payload from
// fromOrder into this machine's native byte order, committing in batches
// of rewriteBatchSize so a large label does not hold one giant write
// transaction open. Triggered once, on a cross-architecture open.
func RewriteVectorEndianness(store *kv.Store, fromOrder binary.ByteOrder) error {
	var after []byte
	for {
		n, last, err := rewriteVectorBatch(store, fromOrder, after, rewriteBatchSize)
		if err != nil {
			return err
		}
		if n < rewriteBatchSize {
			break
		}
		after = last
	}
	return store.Update(func(txn *kv.WriteTxn) error {
		return txn.Set(NsMetadata, vectorEndianKey, []byte{endianTag(codec.NativeEndian)})
	})
}

// rewriteVectorBatch rewrites up to limit payloads whose keys sort after
// after (from the first key when after is nil) and returns how many it
// touched plus the last key it rewrote; a caller resumes from that key and
// loops until a short batch signals the pass is complete.
func rewriteVectorBatch(store *kv.Store, fromOrder binary.ByteOrder, after []byte, limit int) (int, []byte, error) {
	touched := 0
	var last []byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		touched, last = 0, nil
		var keys [][]byte
		err := txn.PrefixIterate(vector.NsPayload, nil, func(e kv.Entry) (bool, error) {
			if after != nil && bytes.Compare(e.Key, after) <= 0 {
				return true, nil
			}
			keys = append(keys, append([]byte(nil), e.Key...))
			return len(keys) < limit, nil
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			raw, err := txn.Get(vector.NsPayload, key)
			if err != nil {
				return err
			}
			data := codec.DecodeVectorPayloadOrder(raw, fromOrder)
			if err := txn.Set(vector.NsPayload, key, codec.EncodeVectorPayload(data)); err != nil {
				return err
			}
			touched++
			last = key
		}
		return nil
	})
	return touched, last, err
}
