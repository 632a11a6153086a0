package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

func testChunks() ([]domain.Chunk, [][]float32) {
	chunks := []domain.Chunk{
		{ID: "CASE-1_0", CaseReference: "CASE-1", Index: 0, Text: "deposit not protected", Year: 2023},
		{ID: "CASE-1_1", CaseReference: "CASE-1", Index: 1, Text: "award of damages", Year: 2023},
	}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	return chunks, vectors
}

func TestUpsertEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/cases":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/cases/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "cases")
	chunks, vectors := testChunks()

	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestUpsertUsesDeterministicPointIDs(t *testing.T) {
	var gotIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/cases":
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/cases/points":
			var body struct {
				Points []struct {
					ID string `json:"id"`
				} `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode upsert body: %v", err)
			}
			for _, p := range body.Points {
				gotIDs = append(gotIDs, p.ID)
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "cases")
	chunks, vectors := testChunks()
	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if len(gotIDs) != 2 {
		t.Fatalf("expected 2 points, got %d", len(gotIDs))
	}
	if gotIDs[0] != PointID("CASE-1_0") {
		t.Fatalf("point id not derived from chunk id: %s", gotIDs[0])
	}
	if PointID("CASE-1_0") == PointID("CASE-1_1") {
		t.Fatalf("distinct chunks must map to distinct point ids")
	}
}

func TestQueryBuildsFilterAndAssignsRanks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/cases/points/search" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode search body: %v", err)
		}
		if _, ok := body["filter"]; !ok {
			t.Errorf("expected filter in search body")
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.91,"payload":{"chunk_id":"CASE-1_0","case_reference":"CASE-1","text":"a","section_type":"facts","year":2023,"region":"LON"}},
			{"score":0.84,"payload":{"chunk_id":"CASE-2_0","case_reference":"CASE-2","text":"b","section_type":"unknown","year":2019,"region":"MAN"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "cases")
	got, err := client.Query(context.Background(), []float32{0.1, 0.2}, 5, domain.SearchFilter{Region: "LON"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Fatalf("expected ranks 1,2 got %d,%d", got[0].Rank, got[1].Rank)
	}
	if got[0].ChunkID != "CASE-1_0" || got[0].Year != 2023 {
		t.Fatalf("payload not mapped: %+v", got[0])
	}
}

func TestExistsFalseWhenCollectionMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "cases")
	exists, err := client.Exists(context.Background(), "CASE-1_0")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for missing collection")
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/cases" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "cases")
	chunks, vectors := testChunks()
	err := client.Upsert(context.Background(), chunks, vectors)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
