// Package httpadapter exposes the answering pipeline over JSON HTTP.
package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cyberrag/advisory-search/internal/core/domain"
	"github.com/cyberrag/advisory-search/internal/core/ports"
	"github.com/cyberrag/advisory-search/internal/infrastructure/repository/postgres"
	"github.com/cyberrag/advisory-search/internal/observability/metrics"
)

type Router struct {
	answerer ports.QuestionAnswerer
	runs     *postgres.RunRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger

	rateLimit *rateLimiter
}

// NewRouter wires the HTTP surface. runs may be nil when the run store
// is disabled; metrics must not be nil.
func NewRouter(answerer ports.QuestionAnswerer, runs *postgres.RunRepository, m *metrics.Metrics, logger *slog.Logger, requestsPerSecond float64, burst int) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		answerer:  answerer,
		runs:      runs,
		metrics:   m,
		logger:    logger,
		rateLimit: newRateLimiter(requestsPerSecond, burst),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/answers", rt.answerQuestion)
	mux.HandleFunc("/v1/runs", rt.listRuns)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(handler)
	handler = rateLimitMiddleware(rt.rateLimit, rt.logger)(handler)
	handler = accessLogMiddleware(rt.logger)(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerRequest struct {
	Question string        `json:"question"`
	Options  answerOptions `json:"options"`
}

type answerOptions struct {
	K               int      `json:"k"`
	MaxResults      int      `json:"max_results"`
	MaxPerSource    int      `json:"max_per_source"`
	MaxDistance     *float64 `json:"max_distance"`
	ScoreOrder      string   `json:"score_order"`
	MaxContextChars int      `json:"max_context_chars"`
	TimeoutMs       int      `json:"timeout_ms"`
}

func (o answerOptions) toDomain() domain.Options {
	return domain.Options{
		K:               o.K,
		MaxResults:      o.MaxResults,
		MaxPerSource:    o.MaxPerSource,
		MaxDistance:     o.MaxDistance,
		ScoreOrder:      domain.ScoreOrder(o.ScoreOrder),
		MaxContextChars: o.MaxContextChars,
		GatewayTimeout:  time.Duration(o.TimeoutMs) * time.Millisecond,
	}
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	result := rt.answerer.AnswerQuestion(r.Context(), req.Question, req.Options.toDomain())
	rt.metrics.ObserveRun(result)

	writeJSON(w, resultHTTPStatus(result), result)
}

func (rt *Router) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.runs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run history is disabled"})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer in [1,200]"})
			return
		}
		limit = parsed
	}

	summaries, err := rt.runs.ListRecent(r.Context(), limit)
	if err != nil {
		rt.logger.Error("list runs failed", "error", err)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "could not list runs"})
		return
	}
	if summaries == nil {
		summaries = []postgres.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Debug("write response failed", "error", err)
	}
}
