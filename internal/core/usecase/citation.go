package usecase

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

// Citation markers are bracketed positive decimal integers, e.g. [3].
// This grammar is the sole wire contract between the context assembler
// (producer, see renderPassage) and the citation mapper (consumer).
// Both sides must change together.
var markerPattern = regexp.MustCompile(`\[([0-9]+)\]`)

// MapCitations scans generatedText for citation markers and resolves
// each against the assembled context. Markers with no matching passage
// land in UnresolvedMarkers; that signals generation quality, not a
// pipeline failure. CitedSources lists the distinct source documents
// behind resolved markers in order of first appearance.
func MapCitations(generatedText string, assembled domain.AssembledContext) domain.StructuredAnswer {
	byMarker := make(map[int]domain.FilteredPassage, len(assembled.Passages))
	for _, p := range assembled.Passages {
		byMarker[p.Marker] = p
	}

	var cited []string
	seenSource := make(map[string]struct{})
	unresolvedSet := make(map[int]struct{})

	for _, match := range markerPattern.FindAllStringSubmatch(generatedText, -1) {
		marker, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		passage, ok := byMarker[marker]
		if !ok {
			unresolvedSet[marker] = struct{}{}
			continue
		}
		if _, dup := seenSource[passage.SourceDocument]; dup {
			continue
		}
		seenSource[passage.SourceDocument] = struct{}{}
		cited = append(cited, passage.SourceDocument)
	}

	var unresolved []int
	for marker := range unresolvedSet {
		unresolved = append(unresolved, marker)
	}
	sort.Ints(unresolved)

	return domain.StructuredAnswer{
		Text:              generatedText,
		CitedSources:      cited,
		UnresolvedMarkers: unresolved,
	}
}

// HasCitations reports whether generatedText contains at least one
// marker in the citation grammar.
func HasCitations(generatedText string) bool {
	return markerPattern.MatchString(generatedText)
}
