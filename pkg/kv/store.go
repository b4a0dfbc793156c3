// Package kv implements the storage engine's key-value substrate contract
// on top of BadgerDB: named sub-databases via key-prefix namespacing, MVCC
// snapshot reads with multi-reader coexistence, a single serialized writer,
// and prefix iteration. There is no range iteration between arbitrary
// bounds and no cursor mutation: writes go through WriteTxn.Set/Delete by
// key.
//
// Badger has one flat keyspace per instance, unlike the LMDB-shaped
// contract the storage engine's design assumes (named sub-databases,
// native DUPSORT/DUPFIXED duplicate values). Both gaps are closed here: sub
// databases become byte-prefix namespaces (see Namespace), and
// duplicate-sorted tables fold the duplicate's distinguishing bytes into the
// key itself so Badger's native key ordering gives us the same iteration
// behavior LMDB's DUPSORT would. This is grounded on the teacher's
// storage.BadgerEngine (badger.go), which namespaces a flat keyspace with
// single-byte prefixes the same way.
package kv

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"

	"github.com/helixdb/helix-core/pkg/herrors"
)

// ErrNotFound is the substrate-level not-found sentinel. Callers in graph
// and vector translate it into the entity-specific herrors.Kind
// (NodeNotFound, EdgeNotFound, VectorNotFound, ...) since the kv layer
// itself has no notion of entity kind; bm25 treats it as an absent entry.
var ErrNotFound = errors.New("kv: key not found")

// Namespace is a sub-database name. Keys stored through a Namespace are
// transparently prefixed so distinct namespaces never collide, the
// substrate-contract equivalent of LMDB named databases.
type Namespace string

const namespaceSep = byte(0x1f) // unit separator: never appears in our keys

func nsPrefix(ns Namespace) []byte {
	b := make([]byte, 0, len(ns)+1)
	b = append(b, ns...)
	b = append(b, namespaceSep)
	return b
}

func nsKey(ns Namespace, key []byte) []byte {
	p := nsPrefix(ns)
	out := make([]byte, 0, len(p)+len(key))
	out = append(out, p...)
	out = append(out, key...)
	return out
}

// Options configures the substrate. DBMaxSizeGB mirrors the configuration
// surface's db_max_size_gb (values above 9998 clamp to 9998); Badger does
// not itself take a hard map-size cap the way LMDB does, so this only
// informs value-log/table size tuning, not a hard ceiling.
type Options struct {
	Dir         string
	InMemory    bool
	DBMaxSizeGB int
	MaxReaders  int // default 200, mirrors the reader-slot table capacity
}

func (o Options) clampedSizeGB() int {
	if o.DBMaxSizeGB <= 0 {
		return 100
	}
	if o.DBMaxSizeGB > 9998 {
		return 9998
	}
	return o.DBMaxSizeGB
}

// Store is the substrate handle: one Badger instance, a writer mutex
// serializing write transactions, and a reader-slot counter enforcing
// MaxReaders the way LMDB's fixed reader table does.
type Store struct {
	db *badger.DB

	writeMu sync.Mutex

	maxReaders    int32
	activeReaders int32
}

// Open opens (creating if absent) a Store at opts.Dir, or an in-memory
// store when opts.InMemory is set.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}
	bopts = bopts.WithLogger(nil)
	bopts = bopts.WithValueLogFileSize(int64(opts.clampedSizeGB()) << 20)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, herrors.Wrap(herrors.Internal, "open badger store", err)
	}

	maxReaders := opts.MaxReaders
	if maxReaders <= 0 {
		maxReaders = 200
	}

	return &Store{db: db, maxReaders: int32(maxReaders)}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// View runs fn inside a read (MVCC snapshot) transaction. Concurrent View
// calls coexist freely; a View never blocks an Update and vice versa.
// Exceeding MaxReaders concurrently active View calls returns ErrReadersFull.
func (s *Store) View(fn func(*ReadTxn) error) error {
	if atomic.AddInt32(&s.activeReaders, 1) > s.maxReaders {
		atomic.AddInt32(&s.activeReaders, -1)
		return herrors.ErrReadersFull
	}
	defer atomic.AddInt32(&s.activeReaders, -1)

	return s.db.View(func(txn *badger.Txn) error {
		return fn(&ReadTxn{txn: txn})
	})
}

// BeginRead opens a standalone read transaction the caller must Discard
// explicitly — used when a transaction's lifetime spans an entire
// traversal rather than a single closure, per the engine's "a traversal
// holds its transaction for its entire duration" discipline.
func (s *Store) BeginRead() (*ReadTxn, error) {
	if atomic.AddInt32(&s.activeReaders, 1) > s.maxReaders {
		atomic.AddInt32(&s.activeReaders, -1)
		return nil, herrors.ErrReadersFull
	}
	txn := s.db.NewTransaction(false)
	return &ReadTxn{txn: txn, release: func() { atomic.AddInt32(&s.activeReaders, -1) }}, nil
}

// writeBackoff retries a handful of times on badger.ErrConflict — Badger's
// SSI can abort a commit under contention even though the substrate
// contract promises a single serialized writer, because Badger's conflict
// detection is keyed on read/write sets rather than a global lock. Since
// Update is already exclusive per-Store (writeMu), a conflict here only
// ever comes from stale key-version comparisons inside Badger itself, and a
// fresh retry on the same already-serialized caller always succeeds.
func writeBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Millisecond
	b.MaxInterval = 20 * time.Millisecond
	b.MaxElapsedTime = 500 * time.Millisecond
	return b
}

// Update runs fn inside the single serialized write transaction. Only one
// Update executes at a time across the whole Store; it blocks other
// writers but never blocks or is blocked by readers.
func (s *Store) Update(fn func(*WriteTxn) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return backoff.Retry(func() error {
		err := s.db.Update(func(txn *badger.Txn) error {
			return fn(&WriteTxn{ReadTxn: ReadTxn{txn: txn}, txn: txn})
		})
		if err == badger.ErrConflict {
			log.Printf("kv: write conflict, retrying")
			return err // retryable
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, writeBackoff())
}

// BeginWrite opens a standalone write transaction for callers that need to
// hold it across a traversal's lifetime (the traversal fabric's WriteTraversal).
// The caller must Commit or Discard it. BeginWrite takes the store's writer
// mutex and holds it until then, so it blocks while another Update or
// BeginWrite transaction is open.
func (s *Store) BeginWrite() *WriteTxn {
	s.writeMu.Lock()
	txn := s.db.NewTransaction(true)
	return &WriteTxn{ReadTxn: ReadTxn{txn: txn}, txn: txn, unlock: s.writeMu.Unlock}
}

// ReadTxn is an MVCC snapshot over the substrate.
type ReadTxn struct {
	txn     *badger.Txn
	release func()
}

// Discard releases the transaction's resources. Safe to call multiple times.
func (t *ReadTxn) Discard() {
	t.txn.Discard()
	if t.release != nil {
		t.release()
		t.release = nil
	}
}

// Get fetches the value stored at key in namespace ns.
func (t *ReadTxn) Get(ns Namespace, key []byte) ([]byte, error) {
	item, err := t.txn.Get(nsKey(ns, key))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, herrors.Wrap(herrors.Internal, "kv get", err)
	}
	return item.ValueCopy(nil)
}

// Has reports whether key exists in namespace ns.
func (t *ReadTxn) Has(ns Namespace, key []byte) (bool, error) {
	_, err := t.txn.Get(nsKey(ns, key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, herrors.Wrap(herrors.Internal, "kv has", err)
	}
	return true, nil
}

// Entry is a single key/value pair yielded by iteration, with the
// namespace prefix already stripped from Key.
type Entry struct {
	Key   []byte
	Value []byte
}

// PrefixIterate yields every entry in namespace ns whose key starts with
// prefix, in ascending key order, stopping early if fn returns false or an
// error.
func (t *ReadTxn) PrefixIterate(ns Namespace, prefix []byte, fn func(Entry) (bool, error)) error {
	nsPfx := nsPrefix(ns)
	fullPrefix := append(append([]byte(nil), nsPfx...), prefix...)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = fullPrefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return herrors.Wrap(herrors.Internal, "kv iterate", err)
		}
		key := append([]byte(nil), item.Key()[len(nsPfx):]...)
		cont, err := fn(Entry{Key: key, Value: val})
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

// WriteTxn is the single serialized write transaction.
type WriteTxn struct {
	ReadTxn
	txn    *badger.Txn
	unlock func()
	done   bool
}

// Set writes key=value in namespace ns.
func (t *WriteTxn) Set(ns Namespace, key, value []byte) error {
	if err := t.txn.Set(nsKey(ns, key), value); err != nil {
		if err == badger.ErrTxnTooBig {
			return herrors.Wrap(herrors.StorageFull, "write transaction too large", err)
		}
		return herrors.Wrap(herrors.Internal, "kv set", err)
	}
	return nil
}

// Delete removes key from namespace ns. Deleting an absent key is a no-op.
func (t *WriteTxn) Delete(ns Namespace, key []byte) error {
	if err := t.txn.Delete(nsKey(ns, key)); err != nil {
		return herrors.Wrap(herrors.Internal, "kv delete", err)
	}
	return nil
}

// Commit finalizes the transaction. After Commit, the WriteTxn must not be used.
func (t *WriteTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.release()
	err := t.txn.Commit()
	if err != nil {
		return herrors.Wrap(herrors.TxnAborted, "commit failed", err)
	}
	return nil
}

// Abort discards all pending writes; no partial state escapes.
func (t *WriteTxn) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Discard()
	t.release()
}

func (t *WriteTxn) release() {
	if t.unlock != nil {
		t.unlock()
		t.unlock = nil
	}
}

// RunInContext runs fn as a single Update, translating context cancellation
// into a TxnAborted error — used by the worker pool when dispatching a
// write request with a deadline.
func (s *Store) RunInContext(ctx context.Context, fn func(*WriteTxn) error) error {
	select {
	case <-ctx.Done():
		return herrors.Wrap(herrors.TxnAborted, "context done before write began", ctx.Err())
	default:
	}
	return s.Update(fn)
}
