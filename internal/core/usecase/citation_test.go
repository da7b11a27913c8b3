package usecase

import (
	"reflect"
	"testing"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

func assembledFixture() domain.AssembledContext {
	return AssembleContext([]domain.FilteredPassage{
		passageFixture(1, "akira.pdf", "exploits CVE-2020-3259"),
		passageFixture(2, "lockbit.pdf", "targets healthcare"),
	}, 0)
}

func TestMapCitationsResolvesMarkersToSources(t *testing.T) {
	got := MapCitations("Akira exploits CVE-2020-3259 [1]. They target healthcare [2]. See also [1].", assembledFixture())

	if !reflect.DeepEqual(got.CitedSources, []string{"akira.pdf", "lockbit.pdf"}) {
		t.Fatalf("unexpected cited sources: %v", got.CitedSources)
	}
	if len(got.UnresolvedMarkers) != 0 {
		t.Fatalf("expected no unresolved markers, got %v", got.UnresolvedMarkers)
	}
}

func TestMapCitationsCollectsUnresolvedMarkers(t *testing.T) {
	got := MapCitations("Claim [1]. Bogus claim [3].", assembledFixture())

	if !reflect.DeepEqual(got.CitedSources, []string{"akira.pdf"}) {
		t.Fatalf("unexpected cited sources: %v", got.CitedSources)
	}
	if !reflect.DeepEqual(got.UnresolvedMarkers, []int{3}) {
		t.Fatalf("expected unresolved marker 3, got %v", got.UnresolvedMarkers)
	}
}

func TestMapCitationsZeroMarkers(t *testing.T) {
	text := "An answer with no citations at all."
	got := MapCitations(text, assembledFixture())

	if len(got.CitedSources) != 0 {
		t.Fatalf("expected no cited sources, got %v", got.CitedSources)
	}
	if HasCitations(text) {
		t.Fatalf("HasCitations should be false for marker-free text")
	}
	if got.Text != text {
		t.Fatalf("answer text must pass through unchanged")
	}
}

func TestMapCitationsSourceOrderFollowsFirstAppearance(t *testing.T) {
	got := MapCitations("Second source first [2], then the first [1], then again [2].", assembledFixture())

	if !reflect.DeepEqual(got.CitedSources, []string{"lockbit.pdf", "akira.pdf"}) {
		t.Fatalf("unexpected cited source order: %v", got.CitedSources)
	}
}

func TestMapCitationsRoundTripWithAssembledContext(t *testing.T) {
	assembled := assembledFixture()

	// Every marker present in the rendered context resolves back to
	// the passage that was assigned that marker.
	got := MapCitations(assembled.Prompt, assembled)
	if len(got.UnresolvedMarkers) != 0 {
		t.Fatalf("context markers must all resolve, got unresolved %v", got.UnresolvedMarkers)
	}
	if len(got.CitedSources) != len(assembled.Passages) {
		t.Fatalf("expected %d cited sources, got %d", len(assembled.Passages), len(got.CitedSources))
	}
	for i, p := range assembled.Passages {
		if got.CitedSources[i] != p.SourceDocument {
			t.Fatalf("marker %d resolved to %s, want %s", p.Marker, got.CitedSources[i], p.SourceDocument)
		}
	}
}
