package ports

import (
	"context"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

// Embedder maps texts to fixed-length vectors, preserving input order
// and count.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns up to k candidates for the query vector,
// best-first on the pipeline's distance scale (lower = better).
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.Candidate, error)
}

// AnswerGenerator produces the answer text from a system role, the
// rendered context, and the user question.
type AnswerGenerator interface {
	Generate(ctx context.Context, systemRole, contextText, question string) (string, error)
}

// RunStore persists finished runs for diagnostics. Persistence is
// best-effort; a run never fails because its record could not be saved.
type RunStore interface {
	SaveRun(ctx context.Context, query domain.Query, result domain.Result) error
}

// RunEvents publishes run-completed notifications for downstream
// consumers.
type RunEvents interface {
	PublishRunCompleted(ctx context.Context, result domain.Result) error
}
