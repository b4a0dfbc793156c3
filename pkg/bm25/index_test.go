package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/kv"
)

func openTestStore(t *testing.T) *kv.Store {
	t.Helper()
	s, err := kv.Open(kv.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	toks := Tokenize("The Quick Brown Fox! is a FOX, an ox.")
	assert.Equal(t, []string{"quick", "brown", "fox", "fox", "ox"}, toks)
}

func TestSearchRanksByRelevance(t *testing.T) {
	store := openTestStore(t)

	docA, docB, docC := codec.NewID(), codec.NewID(), codec.NewID()
	err := store.Update(func(txn *kv.WriteTxn) error {
		if err := IndexDocument(txn, docA, "graph database with vector search"); err != nil {
			return err
		}
		if err := IndexDocument(txn, docB, "vector search vector search vector"); err != nil {
			return err
		}
		return IndexDocument(txn, docC, "completely unrelated document text")
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		results, err := Search(txn, "vector search", 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, docB, results[0].DocID)
		assert.Equal(t, docA, results[1].DocID)
		return nil
	})
	require.NoError(t, err)
}

func TestDropDocumentExcludesFromSearch(t *testing.T) {
	store := openTestStore(t)
	docA, docB := codec.NewID(), codec.NewID()

	err := store.Update(func(txn *kv.WriteTxn) error {
		if err := IndexDocument(txn, docA, "vector search engine"); err != nil {
			return err
		}
		return IndexDocument(txn, docB, "vector search engine too")
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		return DropDocument(txn, docA)
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		results, err := Search(txn, "vector search", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, docB, results[0].DocID)
		return nil
	})
	require.NoError(t, err)
}

func TestSearchNoMatchesReturnsEmpty(t *testing.T) {
	store := openTestStore(t)
	err := store.Update(func(txn *kv.WriteTxn) error {
		return IndexDocument(txn, codec.NewID(), "alpha beta gamma")
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		results, err := Search(txn, "zzz nonexistent", 10)
		require.NoError(t, err)
		assert.Empty(t, results)
		return nil
	})
	require.NoError(t, err)
}
