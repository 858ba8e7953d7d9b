package lexical

import (
	"math"
	"sort"
	"sync/atomic"
)

const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

type Entry struct {
	ID   string
	Text string
}

// Index is an immutable BM25 (Okapi) index over a fixed document set.
type Index struct {
	ids       []string
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

// Build tokenizes every entry and computes term statistics. Entries with a
// repeated ID after the first are ignored.
func Build(entries []Entry) *Index {
	ix := &Index{
		ids:       make([]string, 0, len(entries)),
		termFreqs: make([]map[string]int, 0, len(entries)),
		docLens:   make([]int, 0, len(entries)),
		idf:       make(map[string]float64),
	}

	seen := make(map[string]struct{}, len(entries))
	docFreq := make(map[string]int)
	totalLen := 0
	for _, entry := range entries {
		if _, dup := seen[entry.ID]; dup {
			continue
		}
		seen[entry.ID] = struct{}{}

		tokens := Tokenize(entry.Text)
		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		for token := range tf {
			docFreq[token]++
		}
		ix.ids = append(ix.ids, entry.ID)
		ix.termFreqs = append(ix.termFreqs, tf)
		ix.docLens = append(ix.docLens, len(tokens))
		totalLen += len(tokens)
	}

	if len(ix.ids) == 0 {
		return ix
	}
	ix.avgDocLen = float64(totalLen) / float64(len(ix.ids))

	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(ix.ids))
	idfSum := 0.0
	negative := make([]string, 0)
	for _, term := range terms {
		df := float64(docFreq[term])
		idf := math.Log((n - df + 0.5) / (df + 0.5))
		ix.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	floor := bm25Epsilon * idfSum / float64(len(terms))
	for _, term := range negative {
		ix.idf[term] = floor
	}
	return ix
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.ids)
}

// RawScores returns unnormalized BM25 scores for every indexed document.
func (ix *Index) RawScores(tokens []string) map[string]float64 {
	out := make(map[string]float64, ix.Len())
	if ix.Len() == 0 {
		return out
	}
	for i, id := range ix.ids {
		score := 0.0
		tf := ix.termFreqs[i]
		norm := bm25K1 * (1 - bm25B + bm25B*float64(ix.docLens[i])/ix.avgDocLen)
		for _, token := range tokens {
			freq := float64(tf[token])
			if freq == 0 {
				continue
			}
			score += ix.idf[token] * (freq * (bm25K1 + 1)) / (freq + norm)
		}
		out[id] = score
	}
	return out
}

// Scores returns per-document BM25 scores for query divided by the maximum
// score. When the maximum is not positive every score is zero.
func (ix *Index) Scores(query string) map[string]float64 {
	raw := ix.RawScores(Tokenize(query))
	maxScore := 0.0
	for _, score := range raw {
		if score > maxScore {
			maxScore = score
		}
	}
	for id, score := range raw {
		if maxScore <= 0 {
			raw[id] = 0
			continue
		}
		raw[id] = score / maxScore
	}
	return raw
}

// Holder publishes the current index to concurrent readers.
type Holder struct {
	current atomic.Pointer[Index]
}

func (h *Holder) Load() *Index {
	if h == nil {
		return nil
	}
	return h.current.Load()
}

func (h *Holder) Store(ix *Index) {
	h.current.Store(ix)
}
