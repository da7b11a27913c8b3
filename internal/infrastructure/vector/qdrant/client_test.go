package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

func TestSearchNormalizesSimilarityToDistance(t *testing.T) {
	var gotLimit int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/advisories/points/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Limit int `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotLimit = req.Limit
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"id":    "p-1",
					"score": 0.9,
					"payload": map[string]any{
						"doc_name": "akira.pdf",
						"locator":  "page 3",
						"text":     "exploits CVE-2020-3259",
					},
				},
				{
					"id":      "p-2",
					"score":   0.4,
					"payload": map[string]any{"doc_name": "lockbit.pdf", "text": "other"},
				},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "advisories", nil)
	candidates, err := client.Search(context.Background(), []float32{0.1, 0.2}, 25)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotLimit != 25 {
		t.Fatalf("expected limit 25, got %d", gotLimit)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	// similarity 0.9 -> distance 0.1, and the more similar hit ranks lower.
	if math.Abs(candidates[0].Score-0.1) > 1e-9 {
		t.Fatalf("expected distance 0.1, got %f", candidates[0].Score)
	}
	if candidates[0].Score >= candidates[1].Score {
		t.Fatalf("best-first order lost after normalization")
	}
	if candidates[0].SourceDocument != "akira.pdf" || candidates[0].SourceLocator != "page 3" {
		t.Fatalf("payload not mapped: %+v", candidates[0])
	}
	if candidates[1].SourceLocator != "" {
		t.Fatalf("missing locator must map to empty string")
	}
}

func TestSearchTransportFailureIsSearchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "shard down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "advisories", nil)
	_, err := client.Search(context.Background(), []float32{0.1}, 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrSearch) {
		t.Fatalf("expected ErrSearch, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("a 503 is retryable and must be marked temporary, got %v", err)
	}
}
