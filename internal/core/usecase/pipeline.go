package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cyberrag/advisory-search/internal/core/domain"
	"github.com/cyberrag/advisory-search/internal/core/ports"
)

// NoSourcesAnswer is returned verbatim when filtering leaves nothing
// to ground an answer on.
const NoSourcesAnswer = "The provided documents do not contain information to answer this question."

// AnswerPipeline runs the retrieval-and-citation sequence:
// embed -> search -> filter -> assemble -> generate -> map citations.
// All per-run state, including the operation trace, lives on the
// stack of AnswerQuestion; concurrent runs share only configuration.
type AnswerPipeline struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	generator ports.AnswerGenerator
	store     ports.RunStore
	events    ports.RunEvents
	defaults  domain.Options
	logger    *slog.Logger
}

// NewAnswerPipeline wires the pipeline. store and events may be nil;
// both are best-effort diagnostics sinks.
func NewAnswerPipeline(
	embedder ports.Embedder,
	index ports.VectorIndex,
	generator ports.AnswerGenerator,
	store ports.RunStore,
	events ports.RunEvents,
	defaults domain.Options,
	logger *slog.Logger,
) *AnswerPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerPipeline{
		embedder:  embedder,
		index:     index,
		generator: generator,
		store:     store,
		events:    events,
		defaults:  defaults,
		logger:    logger,
	}
}

// AnswerQuestion executes one run. It never returns an error: gateway
// failures become a FAILURE result carrying the partial trace, and a
// run that filters down to zero passages short-circuits to NO_SOURCES
// without calling the generator.
func (p *AnswerPipeline) AnswerQuestion(ctx context.Context, question string, opts domain.Options) domain.Result {
	runID := uuid.NewString()
	question = strings.TrimSpace(question)
	opts = mergeOptions(p.defaults, opts)
	query := domain.Query{Text: question, Options: opts}

	trace := &domain.Trace{}

	if question == "" {
		return p.finish(ctx, query, domain.Result{
			RunID:  runID,
			Status: domain.RunFailure,
			Failure: &domain.FailureDetail{
				Kind:    domain.ErrorKind(domain.ErrEmptyInput),
				Message: "question must not be blank",
			},
			Trace: trace.Records(),
		})
	}

	// EMBED
	idx := trace.Begin(domain.StageEmbed)
	vector, err := p.embedQuery(ctx, question, opts)
	if err != nil {
		trace.Fail(idx, err)
		return p.fail(ctx, runID, query, trace, domain.StageEmbed, err)
	}
	trace.Complete(idx, fmt.Sprintf("dimension=%d", len(vector)))

	// SEARCH
	idx = trace.Begin(domain.StageSearch)
	candidates, err := p.searchIndex(ctx, vector, opts)
	if err != nil {
		trace.Fail(idx, err)
		return p.fail(ctx, runID, query, trace, domain.StageSearch, err)
	}
	trace.Complete(idx, fmt.Sprintf("candidates=%d", len(candidates)))

	// FILTER
	idx = trace.Begin(domain.StageFilter)
	passages := FilterCandidates(candidates, FilterOptions{
		MaxDistance:  opts.MaxDistance,
		MaxResults:   opts.MaxResults,
		MaxPerSource: opts.MaxPerSource,
		Order:        opts.ScoreOrder,
	})
	trace.Complete(idx, fmt.Sprintf("passages=%d", len(passages)))

	if len(passages) == 0 {
		// A normal outcome, distinct from a pipeline failure. The
		// remaining stages are skipped entirely.
		return p.finish(ctx, query, domain.Result{
			RunID:  runID,
			Status: domain.RunNoSources,
			Answer: &domain.StructuredAnswer{
				Text:         NoSourcesAnswer,
				CitedSources: []string{},
			},
			Trace: trace.Records(),
		})
	}

	// ASSEMBLE
	idx = trace.Begin(domain.StageAssemble)
	assembled := AssembleContext(passages, opts.MaxContextChars)
	trace.Complete(idx, fmt.Sprintf("retained=%d chars=%d", len(assembled.Passages), len(assembled.Prompt)))

	// GENERATE
	idx = trace.Begin(domain.StageGenerate)
	generated, err := p.generateAnswer(ctx, assembled.Prompt, question, opts)
	if err != nil {
		trace.Fail(idx, err)
		return p.fail(ctx, runID, query, trace, domain.StageGenerate, err)
	}
	trace.Complete(idx, fmt.Sprintf("chars=%d", len(generated)))

	// MAP_CITATIONS
	idx = trace.Begin(domain.StageMapCitations)
	answer := MapCitations(generated, assembled)
	trace.Complete(idx, fmt.Sprintf("cited=%d unresolved=%d", len(answer.CitedSources), len(answer.UnresolvedMarkers)))

	return p.finish(ctx, query, domain.Result{
		RunID:   runID,
		Status:  domain.RunSuccess,
		Uncited: !HasCitations(generated),
		Answer:  &answer,
		Trace:   trace.Records(),
	})
}

func (p *AnswerPipeline) embedQuery(ctx context.Context, question string, opts domain.Options) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}
	ctx, cancel := p.stageContext(ctx, opts)
	defer cancel()

	vector, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		if !domain.IsKind(err, domain.ErrEmbedding) {
			err = domain.WrapError(domain.ErrEmbedding, "embed query", err)
		}
		return nil, err
	}
	return vector, nil
}

func (p *AnswerPipeline) searchIndex(ctx context.Context, vector []float32, opts domain.Options) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrSearch, "search index", err)
	}
	ctx, cancel := p.stageContext(ctx, opts)
	defer cancel()

	candidates, err := p.index.Search(ctx, vector, opts.K)
	if err != nil {
		if !domain.IsKind(err, domain.ErrSearch) {
			err = domain.WrapError(domain.ErrSearch, "search index", err)
		}
		return nil, err
	}
	return candidates, nil
}

func (p *AnswerPipeline) generateAnswer(ctx context.Context, contextText, question string, opts domain.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}
	ctx, cancel := p.stageContext(ctx, opts)
	defer cancel()

	generated, err := p.generator.Generate(ctx, AnalystSystemRole, contextText, question)
	if err != nil {
		if !domain.IsKind(err, domain.ErrGeneration) {
			err = domain.WrapError(domain.ErrGeneration, "generate answer", err)
		}
		return "", err
	}
	return generated, nil
}

// stageContext bounds one gateway call. A timeout is indistinguishable
// from any other gateway error downstream.
func (p *AnswerPipeline) stageContext(ctx context.Context, opts domain.Options) (context.Context, context.CancelFunc) {
	if opts.GatewayTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opts.GatewayTimeout)
}

func (p *AnswerPipeline) fail(ctx context.Context, runID string, query domain.Query, trace *domain.Trace, stage domain.Stage, err error) domain.Result {
	p.logger.Error("pipeline stage failed",
		"run_id", runID,
		"stage", string(stage),
		"error", err,
	)
	return p.finish(ctx, query, domain.Result{
		RunID:  runID,
		Status: domain.RunFailure,
		Failure: &domain.FailureDetail{
			Stage:   stage,
			Kind:    domain.ErrorKind(err),
			Message: err.Error(),
		},
		Trace: trace.Records(),
	})
}

// finish flushes the terminal result to the diagnostics sinks. Sink
// errors are logged and swallowed; they never change the run outcome.
func (p *AnswerPipeline) finish(ctx context.Context, query domain.Query, result domain.Result) domain.Result {
	if p.store != nil {
		if err := p.store.SaveRun(context.WithoutCancel(ctx), query, result); err != nil {
			p.logger.Warn("save run failed", "run_id", result.RunID, "error", err)
		}
	}
	if p.events != nil {
		if err := p.events.PublishRunCompleted(context.WithoutCancel(ctx), result); err != nil {
			p.logger.Warn("publish run event failed", "run_id", result.RunID, "error", err)
		}
	}
	return result
}

func mergeOptions(defaults, opts domain.Options) domain.Options {
	out := opts
	if out.K <= 0 {
		out.K = defaults.K
	}
	if out.MaxResults <= 0 {
		out.MaxResults = defaults.MaxResults
	}
	if out.MaxPerSource <= 0 {
		out.MaxPerSource = defaults.MaxPerSource
	}
	if out.MaxDistance == nil {
		out.MaxDistance = defaults.MaxDistance
	}
	if out.ScoreOrder == "" {
		out.ScoreOrder = defaults.ScoreOrder
	}
	if out.MaxContextChars <= 0 {
		out.MaxContextChars = defaults.MaxContextChars
	}
	if out.GatewayTimeout <= 0 {
		out.GatewayTimeout = defaults.GatewayTimeout
	}
	return out
}
