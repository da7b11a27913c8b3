package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

func generateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
}

func TestGenerateSendsSystemRoleAndContext(t *testing.T) {
	var gotBody generateRequest
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(generateResponse("Akira exploits CVE-2020-3259 [1]."))
	}))
	defer server.Close()

	client := New(server.URL, "gemini-2.5-flash", "test-key", nil)
	text, err := client.Generate(context.Background(), "You are an analyst.", "[1] akira.pdf: facts", "what does akira exploit?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Akira exploits CVE-2020-3259 [1]." {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header missing")
	}
	if gotBody.SystemInstruction == nil || gotBody.SystemInstruction.Parts[0].Text != "You are an analyst." {
		t.Fatalf("system role not forwarded: %+v", gotBody.SystemInstruction)
	}
	userTurn := gotBody.Contents[0].Parts[0].Text
	if !strings.Contains(userTurn, "[1] akira.pdf: facts") || !strings.Contains(userTurn, "what does akira exploit?") {
		t.Fatalf("context or question missing from user turn: %q", userTurn)
	}
}

func TestGenerateEmptyCompletionIsGenerationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	client := New(server.URL, "gemini-2.5-flash", "", nil)
	_, err := client.Generate(context.Background(), "", "ctx", "q")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateRateLimitIsTemporaryGenerationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "gemini-2.5-flash", "", nil)
	_, err := client.Generate(context.Background(), "", "ctx", "q")
	if !domain.IsKind(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}
