package migration

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/vector"
)

func openTestStore(t *testing.T) *kv.Store {
	t.Helper()
	s, err := kv.Open(kv.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureUpToDateStampsFreshStore(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, EnsureUpToDate(store))

	err := store.View(func(txn *kv.ReadTxn) error {
		v, known, err := readEngineVersion(txn)
		require.NoError(t, err)
		require.True(t, known)
		assert.Equal(t, CurrentEngineVersion, v.Version)
		return nil
	})
	require.NoError(t, err)
}

func TestEnsureUpToDateIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, EnsureUpToDate(store))
	require.NoError(t, EnsureUpToDate(store))
}

func TestRewriteVectorEndiannessFixesCrossArchitecturePayload(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, EnsureUpToDate(store))

	foreignOrder := binary.BigEndian
	if codec.NativeEndian == binary.BigEndian {
		foreignOrder = binary.LittleEndian
	}

	id := codec.NewID()
	data := []float64{1.5, -2.25, 3.0}
	require.NoError(t, store.Update(func(txn *kv.WriteTxn) error {
		return txn.Set(vector.NsPayload, id[:], codec.EncodeVectorPayloadOrder(data, foreignOrder))
	}))

	require.NoError(t, RewriteVectorEndianness(store, foreignOrder))

	err := store.View(func(txn *kv.ReadTxn) error {
		raw, err := txn.Get(vector.NsPayload, id[:])
		require.NoError(t, err)
		assert.Equal(t, data, codec.DecodeVectorPayload(raw))
		return nil
	})
	require.NoError(t, err)
}
