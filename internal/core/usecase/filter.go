package usecase

import (
	"sort"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

// FilterOptions bounds the relevance filter for one run.
//
// MaxDistance is the score threshold on the order's scale: with
// ScoreAscending (the wired convention, scores are distances) a
// candidate passes when score <= MaxDistance; with ScoreDescending it
// passes when score >= MaxDistance. A nil MaxDistance disables the
// threshold.
type FilterOptions struct {
	MaxDistance  *float64
	MaxResults   int
	MaxPerSource int
	Order        domain.ScoreOrder
}

// FilterCandidates promotes candidates to passages: threshold, dedupe,
// per-source diversity cap, truncation, then marker assignment 1..n in
// final ranked order. An empty result is a valid outcome, not an error.
func FilterCandidates(candidates []domain.Candidate, opts FilterOptions) []domain.FilteredPassage {
	order := opts.Order
	if order == "" {
		order = domain.ScoreAscending
	}

	kept := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !passesThreshold(c.Score, opts.MaxDistance, order) {
			continue
		}
		kept = append(kept, c)
	}

	sortBestFirst(kept, order)
	kept = dedupeCandidates(kept)
	kept = capPerSource(kept, opts.MaxPerSource)

	if opts.MaxResults > 0 && len(kept) > opts.MaxResults {
		kept = kept[:opts.MaxResults]
	}

	out := make([]domain.FilteredPassage, 0, len(kept))
	for i, c := range kept {
		out = append(out, domain.FilteredPassage{Candidate: c, Marker: i + 1})
	}
	return out
}

func passesThreshold(score float64, limit *float64, order domain.ScoreOrder) bool {
	if limit == nil {
		return true
	}
	if order == domain.ScoreDescending {
		return score >= *limit
	}
	return score <= *limit
}

// sortBestFirst re-sorts defensively even though the index contract is
// best-first, so that identical gateway responses always rank
// identically. Ties break on source document then id.
func sortBestFirst(candidates []domain.Candidate, order domain.ScoreOrder) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			if order == domain.ScoreDescending {
				return candidates[i].Score > candidates[j].Score
			}
			return candidates[i].Score < candidates[j].Score
		}
		if candidates[i].SourceDocument != candidates[j].SourceDocument {
			return candidates[i].SourceDocument < candidates[j].SourceDocument
		}
		return candidates[i].ID < candidates[j].ID
	})
}

// dedupeCandidates drops later candidates with an identical source
// document and text. Exact text equality is the contract; no fuzzy
// matching.
func dedupeCandidates(candidates []domain.Candidate) []domain.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key := c.SourceDocument + "\x00" + c.Text
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// capPerSource keeps at most maxPerSource passages per source
// document. Input is already best-first, so the kept ones are the
// highest scoring from each source.
func capPerSource(candidates []domain.Candidate, maxPerSource int) []domain.Candidate {
	if maxPerSource <= 0 {
		return candidates
	}
	counts := make(map[string]int, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if counts[c.SourceDocument] >= maxPerSource {
			continue
		}
		counts[c.SourceDocument]++
		out = append(out, c)
	}
	return out
}
