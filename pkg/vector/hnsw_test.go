package vector

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

func TestInsertAndSearchFindsNearest(t *testing.T) {
	store := openTestStore(t)
	cfg := DefaultConfig()
	cfg.M = 4
	cfg.EfConstruction = 32
	cfg.EfSearch = 16

	vectors := [][]float64{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
		{0, 0, 1},
		{-1, 0, 0},
	}
	var ids [][16]byte

	err := store.Update(func(txn *kv.WriteTxn) error {
		for _, v := range vectors {
			id, err := Insert(txn, cfg, "doc", v, nil)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		results, err := Search(txn, cfg, "doc", []float64{1, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, ids[0], results[0].ID)
		assert.InDelta(t, 0, results[0].Distance, 1e-9)
		return nil
	})
	require.NoError(t, err)
}

func TestSearchEmptyLabelReturnsNil(t *testing.T) {
	store := openTestStore(t)
	cfg := DefaultConfig()

	err := store.View(func(txn *kv.ReadTxn) error {
		results, err := Search(txn, cfg, "missing", []float64{1, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
		return nil
	})
	require.NoError(t, err)
}

// A label's dimension is fixed by its first insert (§3.1); a later insert
// of a different length must be rejected rather than silently corrupting
// distance comparisons against the established vectors.
func TestInsertRejectsDimensionMismatch(t *testing.T) {
	store := openTestStore(t)
	cfg := DefaultConfig()

	err := store.Update(func(txn *kv.WriteTxn) error {
		_, err := Insert(txn, cfg, "doc", []float64{1, 0, 0}, nil)
		return err
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		_, err := Insert(txn, cfg, "doc", []float64{1, 0}, nil)
		return err
	})
	require.True(t, herrors.Is(err, herrors.DimensionMismatch))
}

// A query vector whose length doesn't match the label's established
// dimension must be rejected rather than silently returning garbage
// distances (cosineDistance returns 2 on length mismatch instead of erroring).
func TestSearchRejectsDimensionMismatch(t *testing.T) {
	store := openTestStore(t)
	cfg := DefaultConfig()

	err := store.Update(func(txn *kv.WriteTxn) error {
		_, err := Insert(txn, cfg, "doc", []float64{1, 0, 0}, nil)
		return err
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		_, err := Search(txn, cfg, "doc", []float64{1, 0}, 1, nil)
		return err
	})
	require.True(t, herrors.Is(err, herrors.DimensionMismatch))
}

func TestDeleteTombstonesAndSearchFiltersIt(t *testing.T) {
	store := openTestStore(t)
	cfg := DefaultConfig()
	cfg.M = 4

	var firstID [16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		id, err := Insert(txn, cfg, "doc", []float64{1, 0, 0}, nil)
		if err != nil {
			return err
		}
		firstID = id
		_, err = Insert(txn, cfg, "doc", []float64{0, 1, 0}, nil)
		return err
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		return Delete(txn, firstID)
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		results, err := Search(txn, cfg, "doc", []float64{1, 0, 0}, 5, nil)
		require.NoError(t, err)
		for _, r := range results {
			assert.NotEqual(t, firstID, r.ID)
		}
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		_, _, err := Get(txn, firstID)
		return err
	})
	require.True(t, herrors.Is(err, herrors.DeletedVector))
}

func TestCompactRebuildsEntryAfterTombstones(t *testing.T) {
	store := openTestStore(t)
	cfg := DefaultConfig()
	cfg.M = 4

	var ids [][16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		for _, v := range [][]float64{{1, 0}, {0, 1}, {0.5, 0.5}} {
			id, err := Insert(txn, cfg, "doc", v, nil)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		for _, id := range ids[:2] {
			if err := Delete(txn, id); err != nil {
				return err
			}
		}
		return Compact(txn, cfg, "doc")
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		results, err := Search(txn, cfg, "doc", []float64{0.5, 0.5}, 5, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ids[2], results[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestSearchAppliesFilter(t *testing.T) {
	store := openTestStore(t)
	cfg := DefaultConfig()
	cfg.M = 4

	err := store.Update(func(txn *kv.WriteTxn) error {
		props := codec.NewPropertyMap()
		props.Set("tag", codec.String("keep"))
		_, err := Insert(txn, cfg, "doc", []float64{1, 0}, props)
		if err != nil {
			return err
		}
		props2 := codec.NewPropertyMap()
		props2.Set("tag", codec.String("skip"))
		_, err = Insert(txn, cfg, "doc", []float64{0.9, 0.1}, props2)
		return err
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		results, err := Search(txn, cfg, "doc", []float64{1, 0}, 5, func(id [16]byte, p VectorProps) bool {
			v, _ := p.Properties.Get("tag")
			return v.Str() == "keep"
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		return nil
	})
	require.NoError(t, err)
}
