package ports

import (
	"context"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for the answering pipeline.
// It never returns an error: every outcome, including failures, is a
// Result carrying the run's operation trace.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, question string, opts domain.Options) domain.Result
}
