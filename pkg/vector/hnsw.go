package vector

import (
	"math"
	"math/rand"
	"sort"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/herrors"
	"github.com/helixdb/helix-core/pkg/kv"
)

// Namespaces for the per-label HNSW state, grounded on the storage
// engine's (label) -> (vector_id, top_level) entry-point table, the raw
// payload table, the vector-properties table, and the (vector_id, level)
// neighbor-list table.
const (
	NsEntry     kv.Namespace = "vec:entry"
	NsPayload   kv.Namespace = "vec:payload"
	NsProps     kv.Namespace = "vec:props"
	NsNeighbors kv.Namespace = "vec:neighbors"
)

// maxLevelCap bounds the random level assignment so a single unlucky draw
// can't blow up the per-label level count; 32 levels comfortably covers
// any realistic collection size for m in the low tens.
const maxLevelCap = 32

// Config exposes the HNSW tuning knobs named in the configuration surface.
type Config struct {
	M              int
	EfConstruction int
	EfSearch       int
	Metric         Metric
}

// DefaultConfig matches the configuration surface's documented defaults.
func DefaultConfig() Config {
	return Config{M: 16, EfConstruction: 128, EfSearch: 768, Metric: MetricCosine}
}

func (c Config) levelLambda() float64 { return 1.0 / math.Log(float64(c.M)) }

func (c Config) mMax(level int) int {
	if level == 0 {
		return 2 * c.M
	}
	return c.M
}

// VectorProps is the bincode-shaped record stored in NsProps: everything
// about a vector except its raw payload.
type VectorProps struct {
	Label      string
	Version    uint8
	Level      uint16
	Deleted    bool
	Dim        uint16
	Properties *codec.PropertyMap
}

const vectorRecordVersion = 1

func encodeVectorProps(p VectorProps) []byte {
	buf := make([]byte, 0, 64)
	buf = codec.AppendHeader(buf, codec.RecordHeader{Label: p.Label, Version: p.Version})
	buf = codec.AppendU16(buf, p.Level)
	buf = codec.AppendBool(buf, p.Deleted)
	buf = codec.AppendU16(buf, p.Dim)
	buf = codec.AppendProperties(buf, p.Properties)
	return buf
}

func decodeVectorProps(raw []byte) (VectorProps, error) {
	c := codec.NewCursor(raw)
	hdr, err := c.DecodeHeader()
	if err != nil {
		return VectorProps{}, err
	}
	level, err := c.ReadU16()
	if err != nil {
		return VectorProps{}, err
	}
	deletedByte, err := c.ReadByte()
	if err != nil {
		return VectorProps{}, err
	}
	dim, err := c.ReadU16()
	if err != nil {
		return VectorProps{}, err
	}
	props, err := c.DecodeProperties()
	if err != nil {
		return VectorProps{}, err
	}
	if hdr.Version < vectorRecordVersion {
		hdr.Version = vectorRecordVersion // no prior version to upgrade from yet
	}
	return VectorProps{
		Label:      hdr.Label,
		Version:    hdr.Version,
		Level:      level,
		Deleted:    deletedByte != 0,
		Dim:        dim,
		Properties: props,
	}, nil
}

func encodeEntryPoint(vectorID [16]byte, topLevel uint16) []byte {
	buf := make([]byte, 0, 18)
	buf = append(buf, vectorID[:]...)
	buf = codec.AppendU16(buf, topLevel)
	return buf
}

func decodeEntryPoint(raw []byte) (vectorID [16]byte, topLevel uint16) {
	copy(vectorID[:], raw[0:16])
	topLevel = codec.UnpackU16(raw[16:18])
	return
}

func encodeNeighbors(ids [][16]byte) []byte {
	out := make([]byte, 0, 16*len(ids))
	for _, id := range ids {
		out = append(out, id[:]...)
	}
	return out
}

func decodeNeighbors(raw []byte) [][16]byte {
	n := len(raw) / 16
	out := make([][16]byte, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], raw[i*16:(i+1)*16])
	}
	return out
}

// Result is a single ranked search hit.
type Result struct {
	ID       [16]byte
	Distance float64
}

// txnReader is satisfied by both kv.ReadTxn and kv.WriteTxn so Insert/Search
// can share lookup helpers regardless of which transaction kind drives them.
type txnReader interface {
	Get(ns kv.Namespace, key []byte) ([]byte, error)
}

func readEntry(t txnReader, label string) (id [16]byte, topLevel uint16, ok bool, err error) {
	raw, err := t.Get(NsEntry, []byte(label))
	if err == kv.ErrNotFound {
		return id, 0, false, nil
	}
	if err != nil {
		return id, 0, false, err
	}
	id, topLevel = decodeEntryPoint(raw)
	return id, topLevel, true, nil
}

func readPayload(t txnReader, id [16]byte) ([]float64, error) {
	raw, err := t.Get(NsPayload, id[:])
	if err == kv.ErrNotFound {
		return nil, herrors.Wrap(herrors.VectorNotFound, "vector payload missing", err)
	}
	if err != nil {
		return nil, err
	}
	return codec.DecodeVectorPayload(raw), nil
}

func readProps(t txnReader, id [16]byte) (VectorProps, error) {
	raw, err := t.Get(NsProps, id[:])
	if err == kv.ErrNotFound {
		return VectorProps{}, herrors.Wrap(herrors.VectorNotFound, "vector props missing", err)
	}
	if err != nil {
		return VectorProps{}, err
	}
	return decodeVectorProps(raw)
}

func readNeighbors(t txnReader, id [16]byte, level uint16) ([][16]byte, error) {
	raw, err := t.Get(NsNeighbors, codec.NeighborKey(id, level))
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeNeighbors(raw), nil
}

// Get reads a vector's payload and properties directly by id, for the
// v_from_id traversal source step — no label or search state needed. A
// tombstoned vector (Delete already ran) returns ErrDeletedVector rather
// than its stale payload, since nothing past Delete should resolve it.
func Get(t txnReader, id [16]byte) ([]float64, VectorProps, error) {
	props, err := readProps(t, id)
	if err != nil {
		return nil, VectorProps{}, err
	}
	if props.Deleted {
		return nil, VectorProps{}, herrors.ErrDeletedVector
	}
	data, err := readPayload(t, id)
	if err != nil {
		return nil, VectorProps{}, err
	}
	return data, props, nil
}

// scanner is txnReader plus prefix iteration, satisfied by both kv.ReadTxn
// and kv.WriteTxn.
type scanner interface {
	txnReader
	PrefixIterate(ns kv.Namespace, prefix []byte, fn func(kv.Entry) (bool, error)) error
}

// ByLabel scans every live (non-tombstoned) vector stored under label,
// invoking fn with its id, payload, and properties. Used by the
// v_from_type traversal source step; fn returning false stops the scan
// early.
func ByLabel(t scanner, label string, fn func(id [16]byte, data []float64, props VectorProps) (bool, error)) error {
	return t.PrefixIterate(NsProps, nil, func(e kv.Entry) (bool, error) {
		if len(e.Key) != 16 {
			return true, nil
		}
		props, err := decodeVectorProps(e.Value)
		if err != nil {
			return false, err
		}
		if props.Deleted || props.Label != label {
			return true, nil
		}
		var id [16]byte
		copy(id[:], e.Key)
		data, err := readPayload(t, id)
		if err != nil {
			return false, err
		}
		return fn(id, data, props)
	})
}

// candidate pairs an id with its distance to the active query, caching both
// so beam search never recomputes a distance twice per candidate.
type candidate struct {
	id   [16]byte
	dist float64
}

// scratch memoizes payload reads across a single Insert/Search call —
// standing in for the arena the design calls for, scoped to one operation.
type scratch struct {
	t   txnReader
	vec map[[16]byte][]float64
}

func newScratch(t txnReader) *scratch {
	return &scratch{t: t, vec: make(map[[16]byte][]float64)}
}

func (s *scratch) vector(id [16]byte) ([]float64, error) {
	if v, ok := s.vec[id]; ok {
		return v, nil
	}
	v, err := readPayload(s.t, id)
	if err != nil {
		return nil, err
	}
	s.vec[id] = v
	return v, nil
}

// greedySearchLayer performs an ef=1 greedy descent from entry toward query
// at the given level, returning the closest node found.
func greedySearchLayer(s *scratch, cfg Config, entry [16]byte, query []float64, level uint16) ([16]byte, error) {
	current := entry
	curVec, err := s.vector(current)
	if err != nil {
		return current, err
	}
	curDist := Distance(cfg.Metric, query, curVec)

	for {
		neighbors, err := readNeighbors(s.t, current, level)
		if err != nil {
			return current, err
		}
		changed := false
		for _, n := range neighbors {
			nv, err := s.vector(n)
			if err != nil {
				return current, err
			}
			d := Distance(cfg.Metric, query, nv)
			if d < curDist {
				current, curDist, changed = n, d, true
			}
		}
		if !changed {
			return current, nil
		}
	}
}

// beamSearchLayer runs the ef-width beam search at level, returning
// candidates ordered by ascending distance.
func beamSearchLayer(s *scratch, cfg Config, entry [16]byte, query []float64, ef int, level uint16) ([]candidate, error) {
	visited := map[[16]byte]bool{entry: true}

	entryVec, err := s.vector(entry)
	if err != nil {
		return nil, err
	}
	entryDist := Distance(cfg.Metric, query, entryVec)

	candidates := []candidate{{entry, entryDist}}
	results := []candidate{{entry, entryDist}}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
		closest := candidates[0]
		candidates = candidates[1:]

		if len(results) >= ef {
			worst := results[len(results)-1]
			if closest.dist > worst.dist {
				break
			}
		}

		neighbors, err := readNeighbors(s.t, closest.id, level)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true

			nv, err := s.vector(n)
			if err != nil {
				return nil, err
			}
			d := Distance(cfg.Metric, query, nv)

			if len(results) < ef {
				candidates = append(candidates, candidate{n, d})
				results = append(results, candidate{n, d})
				sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
			} else if d < results[len(results)-1].dist {
				candidates = append(candidates, candidate{n, d})
				results = append(results, candidate{n, d})
				sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
				results = results[:ef]
			}
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
	return results, nil
}

// selectNeighborsHeuristic prunes candidates (already distance-sorted
// ascending to the inserted vector) to at most m entries: a candidate is
// kept only if it is closer to the query than to every neighbor already
// kept, which spreads the graph's connections across directions instead of
// clustering them on one side (the "diversity rule" from the insert
// algorithm). If fewer than m survive the rule, the closest remaining
// candidates fill the rest.
func selectNeighborsHeuristic(s *scratch, cfg Config, query []float64, cands []candidate, m int) ([][16]byte, error) {
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	var kept []candidate
	var leftover []candidate

	for _, c := range cands {
		if len(kept) >= m {
			leftover = append(leftover, c)
			continue
		}
		cVec, err := s.vector(c.id)
		if err != nil {
			return nil, err
		}
		diverse := true
		for _, k := range kept {
			kVec, err := s.vector(k.id)
			if err != nil {
				return nil, err
			}
			if Distance(cfg.Metric, cVec, kVec) < c.dist {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, c)
		} else {
			leftover = append(leftover, c)
		}
	}

	for len(kept) < m && len(leftover) > 0 {
		kept = append(kept, leftover[0])
		leftover = leftover[1:]
	}

	out := make([][16]byte, len(kept))
	for i, k := range kept {
		out[i] = k.id
	}
	return out, nil
}

func randomLevel(cfg Config) uint16 {
	l := int(-math.Log(rand.Float64()) * cfg.levelLambda())
	if l > maxLevelCap {
		l = maxLevelCap
	}
	return uint16(l)
}

// Insert runs the HNSW insert algorithm for a fresh vector under label,
// writing the payload, properties, neighbor lists, and (if needed) the
// updated entry-point record, all within txn.
func Insert(txn *kv.WriteTxn, cfg Config, label string, data []float64, props *codec.PropertyMap) ([16]byte, error) {
	id := codec.NewID()
	s := newScratch(txn)
	s.vec[id] = data

	if err := txn.Set(NsPayload, id[:], codec.EncodeVectorPayload(data)); err != nil {
		return id, err
	}

	entryID, topLevel, has, err := readEntry(txn, label)
	if err != nil {
		return id, err
	}

	if has {
		entryProps, err := readProps(txn, entryID)
		if err != nil {
			return id, err
		}
		if int(entryProps.Dim) != len(data) {
			return id, herrors.ErrDimensionMismatch
		}
	}

	level := randomLevel(cfg)

	if !has {
		if err := txn.Set(NsProps, id[:], encodeVectorProps(VectorProps{
			Label: label, Version: vectorRecordVersion, Level: level, Dim: uint16(len(data)), Properties: props,
		})); err != nil {
			return id, err
		}
		if err := txn.Set(NsEntry, []byte(label), encodeEntryPoint(id, level)); err != nil {
			return id, err
		}
		return id, nil
	}

	ep := entryID
	for lev := topLevel; lev > level; lev-- {
		ep, err = greedySearchLayer(s, cfg, ep, data, lev)
		if err != nil {
			return id, err
		}
	}

	for lev := int(level); lev >= 0; lev-- {
		cands, err := beamSearchLayer(s, cfg, ep, data, cfg.EfConstruction, uint16(lev))
		if err != nil {
			return id, err
		}
		neighbors, err := selectNeighborsHeuristic(s, cfg, data, cands, cfg.mMax(lev))
		if err != nil {
			return id, err
		}
		if err := txn.Set(NsNeighbors, codec.NeighborKey(id, uint16(lev)), encodeNeighbors(neighbors)); err != nil {
			return id, err
		}

		for _, nid := range neighbors {
			peerList, err := readNeighbors(txn, nid, uint16(lev))
			if err != nil {
				return id, err
			}
			peerList = append(peerList, id)
			if len(peerList) > cfg.mMax(lev) {
				peerVec, err := s.vector(nid)
				if err != nil {
					return id, err
				}
				peerCands := make([]candidate, 0, len(peerList))
				for _, pid := range peerList {
					pv, err := s.vector(pid)
					if err != nil {
						return id, err
					}
					peerCands = append(peerCands, candidate{pid, Distance(cfg.Metric, peerVec, pv)})
				}
				peerList, err = selectNeighborsHeuristic(s, cfg, peerVec, peerCands, cfg.mMax(lev))
				if err != nil {
					return id, err
				}
			}
			if err := txn.Set(NsNeighbors, codec.NeighborKey(nid, uint16(lev)), encodeNeighbors(peerList)); err != nil {
				return id, err
			}
		}

		if len(cands) > 0 {
			ep = cands[0].id
		}
	}

	if err := txn.Set(NsProps, id[:], encodeVectorProps(VectorProps{
		Label: label, Version: vectorRecordVersion, Level: level, Dim: uint16(len(data)), Properties: props,
	})); err != nil {
		return id, err
	}

	if level > topLevel {
		if err := txn.Set(NsEntry, []byte(label), encodeEntryPoint(id, level)); err != nil {
			return id, err
		}
	}

	return id, nil
}

// Filter is applied to surviving (non-deleted) candidates during Search.
type Filter func(id [16]byte, props VectorProps) bool

// Search runs the HNSW search algorithm for label, returning up to k
// results ordered by ascending distance. Tombstoned vectors and vectors
// failing filter are excluded.
func Search(t txnReader, cfg Config, label string, query []float64, k int, filter Filter) ([]Result, error) {
	entryID, topLevel, has, err := readEntry(t, label)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}

	entryProps, err := readProps(t, entryID)
	if err != nil {
		return nil, err
	}
	if int(entryProps.Dim) != len(query) {
		return nil, herrors.ErrDimensionMismatch
	}

	s := newScratch(t)
	ep := entryID
	for lev := topLevel; lev > 0; lev-- {
		ep, err = greedySearchLayer(s, cfg, ep, query, lev)
		if err != nil {
			return nil, err
		}
	}

	ef := cfg.EfSearch
	if k > ef {
		ef = k
	}
	cands, err := beamSearchLayer(s, cfg, ep, query, ef, 0)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, k)
	for _, c := range cands {
		props, err := readProps(t, c.id)
		if err != nil {
			return nil, err
		}
		if props.Deleted {
			continue
		}
		if filter != nil && !filter(c.id, props) {
			continue
		}
		results = append(results, Result{ID: c.id, Distance: c.dist})
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

// Delete tombstones a vector: search filters it out, but its neighbor
// lists are left untouched until a Compact pass reclaims them — deferred
// per the storage engine's maintenance design.
func Delete(txn *kv.WriteTxn, id [16]byte) error {
	props, err := readProps(txn, id)
	if err != nil {
		return err
	}
	props.Deleted = true
	return txn.Set(NsProps, id[:], encodeVectorProps(props))
}

// Compact filters tombstoned ids out of the neighbor lists of label's live
// (non-deleted) vectors at every level, deleting lists left empty, and
// re-points the entry point at the live vector with the highest level (or
// removes it when none remain) — the maintenance pass the insert/delete
// design defers rather than doing inline. Existing lists are filtered, not
// rebuilt: no new links are added in place of the removed ones.
func Compact(txn *kv.WriteTxn, cfg Config, label string) error {
	entryID, topLevel, has, err := readEntry(txn, label)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}

	var live [][16]byte
	var newEntry [16]byte
	var newTopLevel uint16
	foundEntry := false

	err = txn.PrefixIterate(NsProps, nil, func(e kv.Entry) (bool, error) {
		var id [16]byte
		copy(id[:], e.Key)
		props, decErr := decodeVectorProps(e.Value)
		if decErr != nil {
			return false, decErr
		}
		if props.Label != label || props.Deleted {
			return true, nil
		}
		live = append(live, id)
		if !foundEntry || props.Level > newTopLevel {
			newEntry, newTopLevel, foundEntry = id, props.Level, true
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	for lev := 0; lev <= int(topLevel); lev++ {
		for _, id := range live {
			neighbors, err := readNeighbors(txn, id, uint16(lev))
			if err != nil {
				return err
			}
			filtered := neighbors[:0]
			for _, n := range neighbors {
				for _, l := range live {
					if l == n {
						filtered = append(filtered, n)
						break
					}
				}
			}
			if len(filtered) == 0 {
				if err := txn.Delete(NsNeighbors, codec.NeighborKey(id, uint16(lev))); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(NsNeighbors, codec.NeighborKey(id, uint16(lev)), encodeNeighbors(filtered)); err != nil {
				return err
			}
		}
	}

	if !foundEntry {
		return txn.Delete(NsEntry, []byte(label))
	}
	return txn.Set(NsEntry, []byte(label), encodeEntryPoint(newEntry, newTopLevel))
}
