package keyword

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

// blobVersion guards the serialized layout. A loader of a different
// version must re-ingest rather than misread the blob.
const blobVersion = 1

// indexBlob is the persisted form of the index: the tokenized corpus
// plus the stored records for whichever mode was active. Postings, IDF
// and lengths are recomputed on load, which is cheap relative to
// re-tokenizing the source text.
type indexBlob struct {
	Version  int
	LiteMode bool

	Tokenized [][]string
	Chunks    []domain.Chunk
	Lite      []liteRecord
}

// Save serializes the index to a single opaque blob at path. The write
// goes through a temp file so a crash never leaves a torn index.
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	blob := indexBlob{
		Version:   blobVersion,
		LiteMode:  ix.liteMode,
		Tokenized: ix.tokenized,
		Chunks:    ix.chunks,
		Lite:      ix.lite,
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".bm25-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}

	ix.logger.Info("bm25_index_saved", "path", path, "lite_mode", ix.liteMode)
	return nil
}

// Load restores an index saved by the same blob version. The restored
// index scores identically to the one that was saved.
func (ix *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var blob indexBlob
	if err := gob.NewDecoder(f).Decode(&blob); err != nil {
		return fmt.Errorf("decode index blob: %w", err)
	}
	if blob.Version != blobVersion {
		return fmt.Errorf("index blob version %d, want %d", blob.Version, blobVersion)
	}

	ix.liteMode = blob.LiteMode
	ix.tokenized = blob.Tokenized
	ix.chunks = blob.Chunks
	ix.lite = blob.Lite

	ix.docLen = make([]int, len(ix.tokenized))
	for i, tokens := range ix.tokenized {
		ix.docLen[i] = len(tokens)
	}
	ix.idToIndex = make(map[string]int, len(ix.tokenized))
	for i := range ix.tokenized {
		ix.idToIndex[ix.chunkAt(i).ID] = i
	}
	if len(ix.tokenized) > 0 {
		ix.computeStatistics()
	}

	ix.logger.Info("bm25_index_loaded",
		"path", path,
		"lite_mode", ix.liteMode,
		"num_chunks", len(ix.tokenized),
	)
	return nil
}
