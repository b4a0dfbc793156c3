package traversal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/graph"
	"github.com/helixdb/helix-core/pkg/herrors"
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

func props(pairs ...any) *codec.PropertyMap {
	pm := codec.NewPropertyMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case string:
			pm.Set(key, codec.String(v))
		case float64:
			pm.Set(key, codec.F64(v))
		case int:
			pm.Set(key, codec.F64(float64(v)))
		}
	}
	return pm
}

// NFromType over a label with no matching nodes yields empty, not an error.
func TestNFromTypeEmptyScanYieldsNoError(t *testing.T) {
	store := openTestStore(t)
	err := store.View(func(txn *kv.ReadTxn) error {
		p := NFromType(txn, "person")
		values, err := p.Ok()
		require.NoError(t, err)
		assert.Empty(t, values)
		return nil
	})
	require.NoError(t, err)
}

// add_n followed by a traversal back to the created node by id.
func TestAddNodeAndTraverseByID(t *testing.T) {
	store := openTestStore(t)
	var created graph.Node
	err := store.Update(func(txn *kv.WriteTxn) error {
		p := AddN(txn, "person", props("name", "ada"), nil)
		values, err := p.Ok()
		require.NoError(t, err)
		require.Len(t, values, 1)
		created = *values[0].Node
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		p := NFromID(txn, created.ID)
		values, err := p.Ok()
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, "person", values[0].Node.Label)
		name, ok := values[0].Property("name")
		require.True(t, ok)
		assert.Equal(t, "ada", name.Str())
		return nil
	})
	require.NoError(t, err)
}

// out_node walks one hop along a labeled edge between two added nodes.
func TestAddEdgeAndOutNode(t *testing.T) {
	store := openTestStore(t)
	var from, to [16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		fromNode, err := graph.AddNode(txn, "person", props("name", "ada"), nil)
		require.NoError(t, err)
		toNode, err := graph.AddNode(txn, "person", props("name", "bob"), nil)
		require.NoError(t, err)
		from, to = fromNode.ID, toNode.ID
		_, err = graph.AddEdge(txn, "knows", from, to, nil, true)
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		p := NFromID(txn, from).OutNode("knows")
		values, err := p.Ok()
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, to, values[0].Node.ID)
		return nil
	})
	require.NoError(t, err)
}

// n_from_index resolves a node through a configured secondary index.
func TestNFromIndexLookup(t *testing.T) {
	store := openTestStore(t)
	var id [16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		n, err := graph.AddNode(txn, "person", props("email", "ada@example.com"), []string{"email"})
		require.NoError(t, err)
		id = n.ID
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		p := NFromIndex(txn, "email", codec.String("ada@example.com"))
		values, err := p.Ok()
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, id, values[0].Node.ID)
		return nil
	})
	require.NoError(t, err)
}

// shortest_path BFS finds the unweighted hop-count path across a small chain.
func TestShortestPathBFSAcrossChain(t *testing.T) {
	store := openTestStore(t)
	var a, b, c [16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		na, err := graph.AddNode(txn, "stop", nil, nil)
		require.NoError(t, err)
		nb, err := graph.AddNode(txn, "stop", nil, nil)
		require.NoError(t, err)
		nc, err := graph.AddNode(txn, "stop", nil, nil)
		require.NoError(t, err)
		a, b, c = na.ID, nb.ID, nc.ID
		_, err = graph.AddEdge(txn, "route", a, b, nil, true)
		require.NoError(t, err)
		_, err = graph.AddEdge(txn, "route", b, c, nil, true)
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		pl := NFromID(txn, a).ShortestPath("route", &a, &c, AlgorithmBFS, "")
		values, err := pl.Ok()
		require.NoError(t, err)
		require.Len(t, values, 1)
		require.Equal(t, KindPath, values[0].Kind)
		assert.Equal(t, [][16]byte{a, b, c}, values[0].Path.NodeIDs)
		return nil
	})
	require.NoError(t, err)
}

// shortest_path Dijkstra prefers the lower-weight route over the shorter hop
// count when weights diverge.
func TestShortestPathDijkstraPrefersLowerWeight(t *testing.T) {
	store := openTestStore(t)
	var a, b, c, d [16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		na, _ := graph.AddNode(txn, "stop", nil, nil)
		nb, _ := graph.AddNode(txn, "stop", nil, nil)
		nc, _ := graph.AddNode(txn, "stop", nil, nil)
		nd, _ := graph.AddNode(txn, "stop", nil, nil)
		a, b, c, d = na.ID, nb.ID, nc.ID, nd.ID
		// direct a->d is expensive; a->b->c->d is cheap.
		_, err := graph.AddEdge(txn, "route", a, d, props("price", 100.0), true)
		require.NoError(t, err)
		_, err = graph.AddEdge(txn, "route", a, b, props("price", 1.0), true)
		require.NoError(t, err)
		_, err = graph.AddEdge(txn, "route", b, c, props("price", 1.0), true)
		require.NoError(t, err)
		_, err = graph.AddEdge(txn, "route", c, d, props("price", 1.0), true)
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		pl := NFromID(txn, a).ShortestPath("route", &a, &d, AlgorithmDijkstra, "")
		values, err := pl.Ok()
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, [][16]byte{a, b, c, d}, values[0].Path.NodeIDs)
		return nil
	})
	require.NoError(t, err)
}

func TestShortestPathDijkstraRejectsNegativeWeight(t *testing.T) {
	store := openTestStore(t)
	var a, b [16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		na, _ := graph.AddNode(txn, "stop", nil, nil)
		nb, _ := graph.AddNode(txn, "stop", nil, nil)
		a, b = na.ID, nb.ID
		_, err := graph.AddEdge(txn, "route", a, b, props("price", -5.0), true)
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		pl := NFromID(txn, a).ShortestPath("route", &a, &b, AlgorithmDijkstra, "")
		_, perr := pl.Ok()
		require.Error(t, perr)
		assert.Equal(t, herrors.InvalidWeight, herrors.Of(perr))
		return nil
	})
	require.NoError(t, err)
}

// drop cascades: dropping a node also removes its incident edges, so a
// subsequent out_node traversal from the surviving endpoint finds nothing.
func TestDropNodeCascade(t *testing.T) {
	store := openTestStore(t)
	var a, b [16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		na, _ := graph.AddNode(txn, "person", nil, nil)
		nb, _ := graph.AddNode(txn, "person", nil, nil)
		a, b = na.ID, nb.ID
		_, err := graph.AddEdge(txn, "knows", a, b, nil, true)
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		pl := NewWrite(txn)
		pl.values = []TraversalValue{NodeValue(&graph.Node{ID: b})}
		_, err := pl.Drop().Ok()
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		pl := NFromID(txn, a).OutNode("knows")
		values, err := pl.Ok()
		require.NoError(t, err)
		assert.Empty(t, values)
		return nil
	})
	require.NoError(t, err)
}

// Drop() on a pipeline carrying index hints must remove the dropped
// node's idx:<name> entries too, not just its adjacency — otherwise
// n_from_index later resolves to a deleted node (invariant 3 / property 2).
func TestDropNodeThroughPipelineRemovesIndexEntry(t *testing.T) {
	store := openTestStore(t)
	hints := []string{"email"}
	var id [16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		n, err := graph.AddNode(txn, "Person", props("email", "a@example.com"), hints)
		require.NoError(t, err)
		id = n.ID
		return nil
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		pl := NewWrite(txn).WithIndexHints(hints)
		pl.values = []TraversalValue{NodeValue(&graph.Node{ID: id})}
		_, err := pl.Drop().Ok()
		return err
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		var hits [][16]byte
		require.NoError(t, graph.LookupByIndex(txn, "email", codec.String("a@example.com"), func(nid [16]byte) (bool, error) {
			hits = append(hits, nid)
			return true, nil
		}))
		assert.Empty(t, hits)
		return nil
	})
	require.NoError(t, err)
}

// Update() on a pipeline carrying index hints must rewrite the old
// idx:<name> entry, not leave it pointing at a node whose property no
// longer matches (§3.3 "rewritten on update of the indexed field").
func TestUpdateNodeThroughPipelineRewritesIndexEntry(t *testing.T) {
	store := openTestStore(t)
	hints := []string{"email"}
	var id [16]byte
	err := store.Update(func(txn *kv.WriteTxn) error {
		n, err := graph.AddNode(txn, "Person", props("email", "old@example.com"), hints)
		require.NoError(t, err)
		id = n.ID
		return nil
	})
	require.NoError(t, err)

	err = store.Update(func(txn *kv.WriteTxn) error {
		pl := NewWrite(txn).WithIndexHints(hints)
		pl.values = []TraversalValue{NodeValue(&graph.Node{ID: id})}
		_, err := pl.Update(map[string]codec.Value{"email": codec.String("new@example.com")}).Ok()
		return err
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		var fresh [][16]byte
		require.NoError(t, graph.LookupByIndex(txn, "email", codec.String("new@example.com"), func(nid [16]byte) (bool, error) {
			fresh = append(fresh, nid)
			return true, nil
		}))
		require.Len(t, fresh, 1)
		assert.Equal(t, id, fresh[0])

		var stale [][16]byte
		require.NoError(t, graph.LookupByIndex(txn, "email", codec.String("old@example.com"), func(nid [16]byte) (bool, error) {
			stale = append(stale, nid)
			return true, nil
		}))
		assert.Empty(t, stale)
		return nil
	})
	require.NoError(t, err)
}

func TestCountAndGroupBy(t *testing.T) {
	store := openTestStore(t)
	err := store.Update(func(txn *kv.WriteTxn) error {
		_, err := graph.AddNode(txn, "person", props("team", "eng"), nil)
		require.NoError(t, err)
		_, err = graph.AddNode(txn, "person", props("team", "eng"), nil)
		require.NoError(t, err)
		_, err = graph.AddNode(txn, "person", props("team", "sales"), nil)
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		values, err := NFromType(txn, "person").Count().Ok()
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, int64(3), values[0].Count)

		groups, err := NFromType(txn, "person").GroupBy([]string{"team"}, true).Ok()
		require.NoError(t, err)
		require.Len(t, groups, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestInsertVectorAndSearch(t *testing.T) {
	store := openTestStore(t)
	cfg := vector.DefaultConfig()
	err := store.Update(func(txn *kv.WriteTxn) error {
		_, err := InsertV(txn, cfg, "doc", []float64{1, 0, 0}, nil).Ok()
		require.NoError(t, err)
		_, err = InsertV(txn, cfg, "doc", []float64{0, 1, 0}, nil).Ok()
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	err = store.View(func(txn *kv.ReadTxn) error {
		values, err := SearchV(txn, cfg, "doc", []float64{1, 0, 0}, 1, nil).Ok()
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, KindVector, values[0].Kind)
		return nil
	})
	require.NoError(t, err)
}
