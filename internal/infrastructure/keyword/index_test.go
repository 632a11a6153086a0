package keyword

import (
	"path/filepath"
	"testing"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

func corpus() []domain.Chunk {
	return []domain.Chunk{
		{
			ID:            "CASE-A_0",
			CaseReference: "CASE-A",
			Index:         0,
			Text:          "The deposit was not protected under the tenancy deposit scheme.",
			Section:       domain.SectionReasoning,
			Year:          2023,
			Region:        "London",
		},
		{
			ID:            "CASE-A_1",
			CaseReference: "CASE-A",
			Index:         1,
			Text:          "The landlord claimed for professional cleaning of the carpets.",
			Section:       domain.SectionFacts,
			Year:          2023,
			Region:        "London",
		},
		{
			ID:            "CASE-B_0",
			CaseReference: "CASE-B",
			Index:         0,
			Text:          "Rent arrears accrued over the final quarter of the tenancy.",
			Section:       domain.SectionBackground,
			Year:          2021,
			Region:        "Manchester",
		},
	}
}

func TestSearchUniqueTokenReturnsSingleHit(t *testing.T) {
	ix := New()
	ix.Build(corpus())

	results := ix.Search("arrears", 3)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	got := results[0]
	if got.ChunkID != "CASE-B_0" {
		t.Errorf("chunk = %s, want CASE-B_0", got.ChunkID)
	}
	if got.Rank != 1 {
		t.Errorf("rank = %d, want 1", got.Rank)
	}
	if got.Score <= 0 {
		t.Errorf("score = %v, want > 0", got.Score)
	}
	if got.Region != "Manchester" || got.Year != 2021 {
		t.Errorf("metadata not carried: %+v", got)
	}
}

func TestSearchRanksAreSequentialAndScoresPositive(t *testing.T) {
	ix := New()
	ix.Build(corpus())

	results := ix.Search("tenancy deposit", 10)
	if len(results) == 0 {
		t.Fatal("no results")
	}
	prev := results[0].Score + 1
	for i, r := range results {
		if r.Score <= 0 {
			t.Errorf("result %d score %v not positive", i, r.Score)
		}
		if r.Rank != i+1 {
			t.Errorf("result %d rank = %d", i, r.Rank)
		}
		if r.Score > prev {
			t.Errorf("scores not descending at %d", i)
		}
		prev = r.Score
	}
	// Both deposit mentions sit in CASE-A_0, which should outrank the
	// chunk matching only "tenancy".
	if results[0].ChunkID != "CASE-A_0" {
		t.Errorf("top result = %s, want CASE-A_0", results[0].ChunkID)
	}
}

func TestSearchNoMatchingTokens(t *testing.T) {
	ix := New()
	ix.Build(corpus())
	if got := ix.Search("helicopter", 5); len(got) != 0 {
		t.Fatalf("unmatched query returned %v", got)
	}
}

func TestSearchBeforeBuild(t *testing.T) {
	ix := New()
	if got := ix.Search("deposit", 5); got != nil {
		t.Fatalf("cold index returned %v", got)
	}
	if ix.IsBuilt() {
		t.Error("IsBuilt true before Build")
	}
}

func TestBuildEmptyCorpus(t *testing.T) {
	ix := New()
	ix.Build(nil)
	if ix.IsBuilt() {
		t.Error("IsBuilt true for empty corpus")
	}
}

func TestRebuildReplacesCorpus(t *testing.T) {
	ix := New()
	ix.Build(corpus())
	ix.Build(corpus()[:1])

	if got := ix.Search("arrears", 5); len(got) != 0 {
		t.Fatalf("stale corpus still searchable: %v", got)
	}
	if n := len(ix.All()); n != 1 {
		t.Errorf("All() returned %d chunks, want 1", n)
	}
}

func TestLiteModeRanksIdentically(t *testing.T) {
	full := New()
	full.Build(corpus())
	lite := New(WithLiteMode())
	lite.Build(corpus())

	for _, query := range []string{"deposit scheme", "professional cleaning", "tenancy"} {
		fullHits := full.Search(query, 5)
		liteHits := lite.Search(query, 5)
		if len(fullHits) != len(liteHits) {
			t.Fatalf("query %q: %d vs %d hits", query, len(fullHits), len(liteHits))
		}
		for i := range fullHits {
			if fullHits[i].ChunkID != liteHits[i].ChunkID || fullHits[i].Score != liteHits[i].Score {
				t.Errorf("query %q result %d differs: %+v vs %+v", query, i, fullHits[i], liteHits[i])
			}
		}
	}

	if !lite.Stats().LiteMode {
		t.Error("lite stats flag not set")
	}
}

func TestChunkByID(t *testing.T) {
	ix := New()
	ix.Build(corpus())

	chunk, ok := ix.ChunkByID("CASE-A_1")
	if !ok || chunk.CaseReference != "CASE-A" || chunk.Index != 1 {
		t.Fatalf("ChunkByID = %+v, %v", chunk, ok)
	}
	if _, ok := ix.ChunkByID("missing"); ok {
		t.Error("found a chunk that was never indexed")
	}
}

func TestStats(t *testing.T) {
	ix := New()
	ix.Build(corpus())

	stats := ix.Stats()
	if stats.IndexedChunks != 3 {
		t.Errorf("indexed chunks = %d, want 3", stats.IndexedChunks)
	}
	if stats.DistinctCases != 2 {
		t.Errorf("distinct cases = %d, want 2", stats.DistinctCases)
	}
	if stats.TotalTokens <= 0 || stats.AvgTokensPerChunk <= 0 {
		t.Errorf("token stats = %+v", stats)
	}
}

func TestSaveLoadRoundTripPreservesScoring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bm25.gob")

	ix := New()
	ix.Build(corpus())
	if err := ix.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := New()
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !restored.IsBuilt() {
		t.Fatal("restored index not built")
	}

	for _, query := range []string{"deposit", "cleaning carpets", "rent arrears"} {
		want := ix.Search(query, 5)
		got := restored.Search(query, 5)
		if len(want) != len(got) {
			t.Fatalf("query %q: %d vs %d hits after reload", query, len(want), len(got))
		}
		for i := range want {
			if want[i].ChunkID != got[i].ChunkID || want[i].Score != got[i].Score {
				t.Errorf("query %q result %d drifted: %+v vs %+v", query, i, want[i], got[i])
			}
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	ix := New()
	if err := ix.Load(filepath.Join(t.TempDir(), "absent.gob")); err == nil {
		t.Fatal("want error for missing blob")
	}
}

func TestSaveLoadLiteMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bm25-lite.gob")

	ix := New(WithLiteMode())
	ix.Build(corpus())
	if err := ix.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := New()
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !restored.Stats().LiteMode {
		t.Error("lite flag lost across save/load")
	}
	if got := restored.Search("arrears", 5); len(got) != 1 || got[0].ChunkID != "CASE-B_0" {
		t.Fatalf("lite reload search = %v", got)
	}
}
