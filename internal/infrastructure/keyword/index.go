// Package keyword implements the in-process BM25 inverted index over
// case chunks. It complements semantic search for exact legal
// terminology ("section 213", "Housing Act 2004") that embeddings blur.
package keyword

import (
	"log/slog"
	"math"
	"sort"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

// BM25 parameters: term-frequency saturation, length normalization, and
// the floor applied to negative IDF values (as a fraction of mean IDF).
const (
	k1      = 1.5
	b       = 0.75
	epsilon = 0.25
)

// posting associates one indexed chunk with a term's frequency in it.
type posting struct {
	Doc  int
	Freq int
}

// liteRecord is what lite mode retains per chunk: identifiers, raw text
// and the metadata the reranker reads. Token counts are dropped.
type liteRecord struct {
	ID            string
	CaseReference string
	Index         int
	Text          string
	Section       domain.SectionType
	Year          int
	Region        string
	CaseType      string
}

func toLite(c domain.Chunk) liteRecord {
	return liteRecord{
		ID:            c.ID,
		CaseReference: c.CaseReference,
		Index:         c.Index,
		Text:          c.Text,
		Section:       c.Section,
		Year:          c.Year,
		Region:        c.Region,
		CaseType:      c.CaseType,
	}
}

func (r liteRecord) chunk() domain.Chunk {
	return domain.Chunk{
		ID:            r.ID,
		CaseReference: r.CaseReference,
		Index:         r.Index,
		Text:          r.Text,
		Section:       r.Section,
		Year:          r.Year,
		Region:        r.Region,
		CaseType:      r.CaseType,
	}
}

// Index is the BM25 keyword index. Build is a wholesale rebuild; reads
// are non-mutating. Concurrent reads during a rebuild are undefined —
// the orchestrator serializes them.
//
// Full mode retains complete chunk records; lite mode retains only
// liteRecords. Both modes rank identically for the same corpus.
type Index struct {
	liteMode bool
	logger   *slog.Logger

	chunks []domain.Chunk // full mode
	lite   []liteRecord   // lite mode

	tokenized [][]string
	docLen    []int
	avgDocLen float64
	postings  map[string][]posting
	idf       map[string]float64
	idToIndex map[string]int
}

type Option func(*Index)

// WithLiteMode trades per-chunk memory for reduced feature retention.
func WithLiteMode() Option {
	return func(ix *Index) { ix.liteMode = true }
}

func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

func New(opts ...Option) *Index {
	ix := &Index{logger: slog.Default()}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build rebuilds the index from scratch over the given chunks.
// Idempotent; O(total tokens).
func (ix *Index) Build(chunks []domain.Chunk) {
	ix.tokenized = make([][]string, 0, len(chunks))
	ix.docLen = make([]int, 0, len(chunks))
	ix.idToIndex = make(map[string]int, len(chunks))
	ix.chunks = nil
	ix.lite = nil

	if len(chunks) == 0 {
		ix.logger.Warn("no_chunks_to_index")
		ix.postings = nil
		ix.idf = nil
		ix.avgDocLen = 0
		return
	}

	if ix.liteMode {
		ix.lite = make([]liteRecord, 0, len(chunks))
	} else {
		ix.chunks = make([]domain.Chunk, 0, len(chunks))
	}

	for i, chunk := range chunks {
		tokens := Tokenize(chunk.Text)
		ix.tokenized = append(ix.tokenized, tokens)
		ix.docLen = append(ix.docLen, len(tokens))
		ix.idToIndex[chunk.ID] = i
		if ix.liteMode {
			ix.lite = append(ix.lite, toLite(chunk))
		} else {
			ix.chunks = append(ix.chunks, chunk)
		}
	}

	ix.computeStatistics()

	ix.logger.Info("bm25_index_built",
		"num_chunks", len(chunks),
		"lite_mode", ix.liteMode,
		"avg_doc_length", ix.avgDocLen,
	)
}

// computeStatistics derives postings, lengths and IDF from the
// tokenized corpus. Negative IDF values (terms in most documents) are
// floored at epsilon times the mean IDF rather than discarded.
func (ix *Index) computeStatistics() {
	ix.postings = make(map[string][]posting)

	totalLen := 0
	for doc, tokens := range ix.tokenized {
		totalLen += len(tokens)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		terms := make([]string, 0, len(freq))
		for tok := range freq {
			terms = append(terms, tok)
		}
		sort.Strings(terms)
		for _, tok := range terms {
			ix.postings[tok] = append(ix.postings[tok], posting{Doc: doc, Freq: freq[tok]})
		}
	}
	ix.avgDocLen = float64(totalLen) / float64(len(ix.tokenized))

	n := float64(len(ix.tokenized))
	ix.idf = make(map[string]float64, len(ix.postings))
	idfSum := 0.0
	var negative []string
	for tok, plist := range ix.postings {
		df := float64(len(plist))
		idf := math.Log((n - df + 0.5) / (df + 0.5))
		ix.idf[tok] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	if len(ix.idf) > 0 {
		floor := epsilon * (idfSum / float64(len(ix.idf)))
		for _, tok := range negative {
			ix.idf[tok] = floor
		}
	}
}

// Search tokenizes the query like the corpus and returns chunks with
// strictly positive BM25 score, ranked descending, truncated to topK.
func (ix *Index) Search(query string, topK int) []domain.RetrievalCandidate {
	if !ix.IsBuilt() {
		ix.logger.Warn("bm25_index_not_built")
		return nil
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	scores := make(map[int]float64)
	for _, tok := range queryTokens {
		idf, ok := ix.idf[tok]
		if !ok {
			continue
		}
		for _, p := range ix.postings[tok] {
			f := float64(p.Freq)
			norm := 1 - b + b*float64(ix.docLen[p.Doc])/ix.avgDocLen
			scores[p.Doc] += idf * (f * (k1 + 1)) / (f + k1*norm)
		}
	}

	type scored struct {
		doc   int
		score float64
	}
	hits := make([]scored, 0, len(scores))
	for doc, score := range scores {
		if score > 0 {
			hits = append(hits, scored{doc: doc, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc < hits[j].doc
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]domain.RetrievalCandidate, 0, len(hits))
	for rank, h := range hits {
		chunk := ix.chunkAt(h.doc)
		results = append(results, domain.RetrievalCandidate{
			ChunkID:       chunk.ID,
			CaseReference: chunk.CaseReference,
			Text:          chunk.Text,
			Section:       chunk.Section,
			Year:          chunk.Year,
			Region:        chunk.Region,
			CaseType:      chunk.CaseType,
			Score:         h.score,
			Rank:          rank + 1,
		})
	}
	return results
}

// ChunkByID returns the stored record for a chunk identifier.
func (ix *Index) ChunkByID(chunkID string) (domain.Chunk, bool) {
	idx, ok := ix.idToIndex[chunkID]
	if !ok {
		return domain.Chunk{}, false
	}
	return ix.chunkAt(idx), true
}

func (ix *Index) chunkAt(i int) domain.Chunk {
	if ix.liteMode {
		return ix.lite[i].chunk()
	}
	return ix.chunks[i]
}

// All returns every indexed chunk in corpus order. Callers use it to
// rebuild the index wholesale with additional documents.
func (ix *Index) All() []domain.Chunk {
	out := make([]domain.Chunk, len(ix.tokenized))
	for i := range out {
		out[i] = ix.chunkAt(i)
	}
	return out
}

func (ix *Index) IsBuilt() bool {
	return len(ix.tokenized) > 0 && ix.postings != nil
}

func (ix *Index) Stats() domain.KeywordStats {
	n := len(ix.tokenized)
	stats := domain.KeywordStats{
		IndexedChunks: n,
		LiteMode:      ix.liteMode,
	}
	if n == 0 {
		return stats
	}

	cases := make(map[string]struct{})
	for i := 0; i < n; i++ {
		cases[ix.chunkAt(i).CaseReference] = struct{}{}
	}
	total := 0
	for _, l := range ix.docLen {
		total += l
	}
	stats.DistinctCases = len(cases)
	stats.TotalTokens = total
	stats.AvgTokensPerChunk = float64(total) / float64(n)
	return stats
}
