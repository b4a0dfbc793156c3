// Package helixdb wires the kv substrate, graph/vector/bm25 stores, the
// traversal fabric, and the worker pool into the single embeddable handle
// an external caller opens: a DB. This is the only package a gateway or DSL
// code generator built on top of the core needs to import — everything
// else (pkg/graph, pkg/vector, pkg/bm25, pkg/traversal) is consumed through
// the traversal builder API this package exposes, per the external
// collaborator interface contract.
package helixdb

import (
	"context"
	"fmt"

	"github.com/helixdb/helix-core/pkg/config"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/migration"
	"github.com/helixdb/helix-core/pkg/pool"
	"github.com/helixdb/helix-core/pkg/traversal"
)

// DB is an open HelixDB store: the kv substrate, stamped to the current
// engine version, plus the worker pool routing reads and writes to it.
type DB struct {
	store *kv.Store
	cfg   *config.Config
	pool  *pool.Pool
}

// Open opens or creates a store at dir (in-memory if dir is empty),
// validates cfg (or applies config.Default() if nil), runs the
// upgrade-on-open migration pass, and starts the worker pool.
func Open(dir string, cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	store, err := kv.Open(kv.Options{
		Dir:         dir,
		InMemory:    dir == "",
		DBMaxSizeGB: cfg.DBMaxSizeGB,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := migration.EnsureUpToDate(store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}

	p := pool.New(store, pool.DefaultConfig())
	return &DB{store: store, cfg: cfg, pool: p}, nil
}

// Close stops the worker pool and closes the underlying store.
func (db *DB) Close() error {
	db.pool.Stop()
	return db.store.Close()
}

// Store returns the underlying kv substrate, for callers that manage their
// own transaction lifetime (the traversal fabric's WriteTraversal, a
// long-lived BeginRead, or the migration/config layers).
func (db *DB) Store() *kv.Store { return db.store }

// Pool returns the worker pool routing this DB's reads and writes.
func (db *DB) Pool() *pool.Pool { return db.pool }

// Config returns the configuration this DB was opened with.
func (db *DB) Config() *config.Config { return db.cfg }

// View runs fn through the worker pool's reader queue, inside a read
// transaction and a fresh per-traversal Arena. fn receives the raw
// transaction and arena rather than a pre-built Pipeline because every
// traversal starts from a source step (NFromID, NFromType, SearchV, ...),
// and those are free functions taking a Reader directly — G.New itself
// only matters for satisfying the external contract's entry-point name,
// not for building a pipeline a caller would otherwise construct by hand.
func (db *DB) View(ctx context.Context, fn func(txn *kv.ReadTxn, arena *traversal.Arena) error) error {
	return db.pool.Read(ctx, func(txn *kv.ReadTxn) error {
		arena := traversal.NewArena()
		defer arena.Release()
		return fn(txn, arena)
	})
}

// Update runs fn through the worker pool's single writer, inside the
// store's one serialized write transaction and a fresh per-traversal Arena.
func (db *DB) Update(ctx context.Context, fn func(txn *kv.WriteTxn, arena *traversal.Arena) error) error {
	return db.pool.Write(ctx, func(txn *kv.WriteTxn) error {
		arena := traversal.NewArena()
		defer arena.Release()
		return fn(txn, arena)
	})
}

// G is the traversal entry-point namespace from the public traversal API
// (external interfaces, "G::new"/"G::new_mut"/"G::from_iter"): a builder
// that chained adapter calls turn into a new builder, terminated by
// Pipeline.Ok(). Named G and called as a value receiver so callers can
// write G{}.New(...) the way the contract names G.new(...).
type G struct{}

// New builds a ReadTraversal over r (a *kv.ReadTxn or *kv.WriteTxn, both of
// which satisfy traversal.Reader) using arena for memoized lookups.
func (G) New(r traversal.Reader, arena *traversal.Arena) *traversal.Pipeline {
	return traversal.New(r).WithArena(arena)
}

// NewMut builds a WriteTraversal over w, the store's single write
// transaction, using arena for memoized lookups. indexHints is the
// configured graph_config.secondary_indices list (db.Config().Graph.
// SecondaryIndices) — AddN already takes this list directly when a node
// is created, and Update/Drop need the same list to keep idx:<name>
// entries in sync when they rewrite or remove an already-indexed node.
func (G) NewMut(w *kv.WriteTxn, arena *traversal.Arena, indexHints []string) *traversal.Pipeline {
	return traversal.NewWrite(w).WithArena(arena).WithIndexHints(indexHints)
}

// FromIter resumes a traversal from a materialized slice of items rather
// than a source step — the entry point a dynamic dispatcher (pkg/traversal's
// Dyn) or a caller re-entering a pipeline with already-known items uses.
func (G) FromIter(r traversal.Reader, items []traversal.TraversalValue, arena *traversal.Arena) *traversal.Pipeline {
	return traversal.FromIter(r, items).WithArena(arena)
}
