package bm25

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/pool"
)

// Okapi BM25 tuning constants, fixed per the full-text index design.
const (
	k1 = 1.2
	b  = 0.75
)

// Namespaces for the inverted index tables.
const (
	NsPostings kv.Namespace = "bm25:postings"
	NsDocLen   kv.Namespace = "bm25:doclen"
	NsStats    kv.Namespace = "bm25:stats"
	NsOrdinal  kv.Namespace = "bm25:ordinal"
	NsTomb     kv.Namespace = "bm25:tombstones"
)

var statsKey = []byte("stats")
var tombKey = []byte("bitmap")

const postingSep = byte(0x00) // never appears in a lowercase-ASCII token

func postingPrefix(term string) []byte {
	return append([]byte(term), postingSep)
}

func postingKey(term string, docID [16]byte) []byte {
	return append(postingPrefix(term), docID[:]...)
}

type stats struct {
	TotalDocs   uint64
	TotalTerms  uint64
	NextOrdinal uint32
}

func encodeStats(s stats) []byte {
	buf := make([]byte, 0, 20)
	buf = codec.AppendU64(buf, s.TotalDocs)
	buf = codec.AppendU64(buf, s.TotalTerms)
	buf = codec.AppendU32(buf, s.NextOrdinal)
	return buf
}

func decodeStats(raw []byte) stats {
	if len(raw) < 20 {
		return stats{}
	}
	return stats{
		TotalDocs:   codec.UnpackU64(raw[0:8]),
		TotalTerms:  codec.UnpackU64(raw[8:16]),
		NextOrdinal: codec.UnpackU32(raw[16:20]),
	}
}

type txnReader interface {
	Get(ns kv.Namespace, key []byte) ([]byte, error)
	PrefixIterate(ns kv.Namespace, prefix []byte, fn func(kv.Entry) (bool, error)) error
}

func readStats(t txnReader) (stats, error) {
	raw, err := t.Get(NsStats, statsKey)
	if err == kv.ErrNotFound {
		return stats{}, nil
	}
	if err != nil {
		return stats{}, err
	}
	return decodeStats(raw), nil
}

func readTombstones(t txnReader) (*roaring.Bitmap, error) {
	raw, err := t.Get(NsTomb, tombKey)
	if err == kv.ErrNotFound {
		return roaring.New(), nil
	}
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return bm, nil
}

// IndexDocument tokenizes text and writes its postings, doc-length entry,
// and ordinal assignment, updating the running corpus stats. Documents
// that tokenize to nothing are not indexed (matching invariant 6: only
// documents present in the doc-length table can appear in postings).
func IndexDocument(txn *kv.WriteTxn, docID [16]byte, text string) error {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	termFreq := make(map[string]uint32, len(tokens))
	for _, tok := range tokens {
		termFreq[tok]++
	}

	for term, freq := range termFreq {
		val := codec.PackU32(freq)
		if err := txn.Set(NsPostings, postingKey(term, docID), val); err != nil {
			return err
		}
	}

	if err := txn.Set(NsDocLen, docID[:], codec.PackU32(uint32(len(tokens)))); err != nil {
		return err
	}

	st, err := readStats(txn)
	if err != nil {
		return err
	}
	ordinal := st.NextOrdinal
	st.NextOrdinal++
	st.TotalDocs++
	st.TotalTerms += uint64(len(tokens))

	if err := txn.Set(NsOrdinal, docID[:], codec.PackU32(ordinal)); err != nil {
		return err
	}
	return txn.Set(NsStats, statsKey, encodeStats(st))
}

// DropDocument tombstones docID: it is excluded from future scoring and
// the corpus totals are corrected, but its postings are left in place —
// lazy deletion, per the posting lifecycle (tombstones tolerated and
// filtered at scoring time).
func DropDocument(txn *kv.WriteTxn, docID [16]byte) error {
	ordRaw, err := txn.Get(NsOrdinal, docID[:])
	if err == kv.ErrNotFound {
		return nil // never indexed
	}
	if err != nil {
		return err
	}
	ordinal := codec.UnpackU32(ordRaw)

	bm, err := readTombstones(txn)
	if err != nil {
		return err
	}
	if bm.Contains(ordinal) {
		return nil // already dropped
	}
	bm.Add(ordinal)
	data, err := bm.MarshalBinary()
	if err != nil {
		return err
	}
	if err := txn.Set(NsTomb, tombKey, data); err != nil {
		return err
	}

	lenRaw, err := txn.Get(NsDocLen, docID[:])
	if err != nil && err != kv.ErrNotFound {
		return err
	}
	docLen := uint64(0)
	if err == nil {
		docLen = uint64(codec.UnpackU32(lenRaw))
	}

	st, err := readStats(txn)
	if err != nil {
		return err
	}
	if st.TotalDocs > 0 {
		st.TotalDocs--
	}
	if st.TotalTerms >= docLen {
		st.TotalTerms -= docLen
	}
	return txn.Set(NsStats, statsKey, encodeStats(st))
}

// Result is a single ranked BM25 hit.
type Result struct {
	DocID [16]byte
	Score float64
}

// Search scores every document containing at least one non-stopword query
// term using Okapi BM25 (k1=1.2, b=0.75) and returns the top-limit hits by
// descending score.
func Search(t txnReader, query string, limit int) ([]Result, error) {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	st, err := readStats(t)
	if err != nil {
		return nil, err
	}
	if st.TotalDocs == 0 {
		return nil, nil
	}
	avgdl := float64(st.TotalTerms) / float64(st.TotalDocs)
	n := float64(st.TotalDocs)

	tomb, err := readTombstones(t)
	if err != nil {
		return nil, err
	}

	scores := pool.GetScoreMap()
	defer pool.PutScoreMap(scores)
	seen := make(map[string]bool, len(terms))

	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true

		type hit struct {
			docID [16]byte
			freq  uint32
		}
		var hits []hit
		prefix := postingPrefix(term)
		err := t.PrefixIterate(NsPostings, prefix, func(e kv.Entry) (bool, error) {
			if len(e.Key) != len(prefix)+16 {
				return true, nil
			}
			var docID [16]byte
			copy(docID[:], e.Key[len(prefix):])

			ordRaw, oerr := t.Get(NsOrdinal, docID[:])
			if oerr != nil && oerr != kv.ErrNotFound {
				return false, oerr
			}
			if oerr == nil && tomb.Contains(codec.UnpackU32(ordRaw)) {
				return true, nil
			}

			hits = append(hits, hit{docID: docID, freq: codec.UnpackU32(e.Value)})
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			continue
		}

		df := float64(len(hits))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)

		for _, h := range hits {
			docLenRaw, derr := t.Get(NsDocLen, h.docID[:])
			if derr != nil {
				return nil, derr
			}
			docLen := float64(codec.UnpackU32(docLenRaw))
			tf := float64(h.freq)
			denom := tf + k1*(1-b+b*docLen/avgdl)
			scores[h.docID] += idf * (tf * (k1 + 1) / denom)
		}
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, Result{DocID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
