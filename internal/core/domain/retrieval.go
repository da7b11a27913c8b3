package domain

import "time"

// ScoreOrder fixes the comparator direction for candidate scores.
// The wired convention is ScoreAscending: scores are distances and
// lower means more relevant. The vector index adapter is responsible
// for normalizing its native metric onto that scale.
type ScoreOrder string

const (
	ScoreAscending  ScoreOrder = "asc"
	ScoreDescending ScoreOrder = "desc"
)

// Options tunes a single pipeline run. Zero values fall back to the
// configured defaults during validation.
type Options struct {
	K               int           `json:"k"`
	MaxResults      int           `json:"max_results"`
	MaxPerSource    int           `json:"max_per_source"`
	MaxDistance     *float64      `json:"max_distance,omitempty"`
	ScoreOrder      ScoreOrder    `json:"score_order,omitempty"`
	MaxContextChars int           `json:"max_context_chars"`
	GatewayTimeout  time.Duration `json:"-"`
}

// Query is the immutable input of one run.
type Query struct {
	Text    string  `json:"text"`
	Options Options `json:"options"`
}

// Candidate is a raw nearest-neighbor result from the vector index,
// read-only downstream of the search stage.
type Candidate struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	SourceDocument string  `json:"source_document"`
	SourceLocator  string  `json:"source_locator"`
	Score          float64 `json:"score"`
}

// FilteredPassage is a candidate that survived relevance filtering,
// annotated with its citation marker. Markers are assigned in the
// filter's final ranked order, 1..n, and are never renumbered.
type FilteredPassage struct {
	Candidate
	Marker int `json:"marker"`
}

// AssembledContext pairs the retained passages with the rendered
// prompt context. Every marker appearing in Prompt corresponds to
// exactly one passage in Passages, and vice versa.
type AssembledContext struct {
	Passages []FilteredPassage `json:"passages"`
	Prompt   string            `json:"prompt"`
}

// StructuredAnswer is the terminal artifact of a successful run.
type StructuredAnswer struct {
	Text              string   `json:"text"`
	CitedSources      []string `json:"cited_sources"`
	UnresolvedMarkers []int    `json:"unresolved_markers,omitempty"`
}
