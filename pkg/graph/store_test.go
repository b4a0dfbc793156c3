package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/herrors"
	"github.com/helixdb/helix-core/pkg/kv"
)

func openTestStore(t *testing.T) *kv.Store {
	t.Helper()
	s, err := kv.Open(kv.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func propsWithName(name string) *codec.PropertyMap {
	p := codec.NewPropertyMap()
	p.Set("name", codec.String(name))
	return p
}

func TestAddAndGetNode(t *testing.T) {
	store := openTestStore(t)
	var id [16]byte

	err := store.Update(func(txn *kv.WriteTxn) error {
		n, err := AddNode(txn, "Person", propsWithName("alice"), nil)
		if err != nil {
			return err
		}
		id = n.ID
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		n, err := GetNode(txn, id)
		require.NoError(t, err)
		assert.Equal(t, "Person", n.Label)
		v, ok := n.Properties.Get("name")
		require.True(t, ok)
		assert.Equal(t, "alice", v.Str())
		return nil
	})
	require.NoError(t, err)
}

func TestGetNodeNotFound(t *testing.T) {
	store := openTestStore(t)
	err := store.View(func(txn *kv.ReadTxn) error {
		_, err := GetNode(txn, codec.NewID())
		assert.True(t, herrors.Is(err, herrors.NodeNotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestAddEdgeAndAdjacency(t *testing.T) {
	store := openTestStore(t)
	var a, b [16]byte
	var edgeID [16]byte

	err := store.Update(func(txn *kv.WriteTxn) error {
		na, err := AddNode(txn, "Person", propsWithName("a"), nil)
		if err != nil {
			return err
		}
		nb, err := AddNode(txn, "Person", propsWithName("b"), nil)
		if err != nil {
			return err
		}
		a, b = na.ID, nb.ID
		e, err := AddEdge(txn, "knows", a, b, nil, true)
		if err != nil {
			return err
		}
		edgeID = e.ID
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		var out []AdjacencyEntry
		require.NoError(t, OutAdjacency(txn, a, func(e AdjacencyEntry) (bool, error) {
			out = append(out, e)
			return true, nil
		}))
		require.Len(t, out, 1)
		assert.Equal(t, edgeID, out[0].EdgeID)
		assert.Equal(t, b, out[0].PeerID)

		var in []AdjacencyEntry
		require.NoError(t, InAdjacency(txn, b, func(e AdjacencyEntry) (bool, error) {
			in = append(in, e)
			return true, nil
		}))
		require.Len(t, in, 1)
		assert.Equal(t, edgeID, in[0].EdgeID)
		assert.Equal(t, a, in[0].PeerID)
		return nil
	})
	require.NoError(t, err)
}

func TestAddEdgeValidatesEndpoints(t *testing.T) {
	store := openTestStore(t)
	err := store.Update(func(txn *kv.WriteTxn) error {
		_, err := AddEdge(txn, "knows", codec.NewID(), codec.NewID(), nil, true)
		return err
	})
	assert.True(t, herrors.Is(err, herrors.NodeNotFound))
}

func TestUpdateNodeMergesAndUpdatesIndex(t *testing.T) {
	store := openTestStore(t)
	var id [16]byte
	hints := []string{"name"}

	err := store.Update(func(txn *kv.WriteTxn) error {
		n, err := AddNode(txn, "Person", propsWithName("alice"), hints)
		if err != nil {
			return err
		}
		id = n.ID
		return nil
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		_, err := UpdateNode(txn, id, map[string]codec.Value{"name": codec.String("alicia")}, hints)
		return err
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		var hits [][16]byte
		require.NoError(t, LookupByIndex(txn, "name", codec.String("alicia"), func(nid [16]byte) (bool, error) {
			hits = append(hits, nid)
			return true, nil
		}))
		require.Len(t, hits, 1)
		assert.Equal(t, id, hits[0])

		var stale [][16]byte
		require.NoError(t, LookupByIndex(txn, "name", codec.String("alice"), func(nid [16]byte) (bool, error) {
			stale = append(stale, nid)
			return true, nil
		}))
		assert.Empty(t, stale)
		return nil
	})
	require.NoError(t, err)
}

func TestDropNodeRemovesIncidentEdges(t *testing.T) {
	store := openTestStore(t)
	var a, b, c [16]byte

	err := store.Update(func(txn *kv.WriteTxn) error {
		na, _ := AddNode(txn, "Person", nil, nil)
		nb, _ := AddNode(txn, "Person", nil, nil)
		nc, _ := AddNode(txn, "Person", nil, nil)
		a, b, c = na.ID, nb.ID, nc.ID
		if _, err := AddEdge(txn, "knows", a, b, nil, true); err != nil {
			return err
		}
		_, err := AddEdge(txn, "knows", c, a, nil, true)
		return err
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		return DropNode(txn, a, nil)
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		_, err := GetNode(txn, a)
		assert.True(t, herrors.Is(err, herrors.NodeNotFound))

		var bIn []AdjacencyEntry
		require.NoError(t, InAdjacency(txn, b, func(e AdjacencyEntry) (bool, error) {
			bIn = append(bIn, e)
			return true, nil
		}))
		assert.Empty(t, bIn)

		var cOut []AdjacencyEntry
		require.NoError(t, OutAdjacency(txn, c, func(e AdjacencyEntry) (bool, error) {
			cOut = append(cOut, e)
			return true, nil
		}))
		assert.Empty(t, cOut)
		return nil
	})
	require.NoError(t, err)
}

func TestDropEdgeRemovesAdjacencyBothSides(t *testing.T) {
	store := openTestStore(t)
	var a, b, edgeID [16]byte

	err := store.Update(func(txn *kv.WriteTxn) error {
		na, _ := AddNode(txn, "Person", nil, nil)
		nb, _ := AddNode(txn, "Person", nil, nil)
		a, b = na.ID, nb.ID
		e, err := AddEdge(txn, "knows", a, b, nil, true)
		edgeID = e.ID
		return err
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		return DropEdge(txn, edgeID)
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		_, err := GetEdge(txn, edgeID)
		assert.True(t, herrors.Is(err, herrors.EdgeNotFound))

		var out []AdjacencyEntry
		require.NoError(t, OutAdjacency(txn, a, func(e AdjacencyEntry) (bool, error) {
			out = append(out, e)
			return true, nil
		}))
		assert.Empty(t, out)
		return nil
	})
	require.NoError(t, err)
}
