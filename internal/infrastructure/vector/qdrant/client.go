// Package qdrant implements the vector index gateway against a Qdrant
// collection of advisory passages.
//
// The collection uses cosine similarity. Qdrant reports higher = more
// similar; the pipeline's fixed convention is distance, lower =
// better, so Search normalizes every score to 1 - similarity before
// returning it.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cyberrag/advisory-search/internal/core/domain"
	"github.com/cyberrag/advisory-search/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

// Search returns at most k candidates, best-first on the distance
// scale. Payload fields doc_name, locator and text are written by the
// ingestion job; missing fields surface as empty strings.
func (c *Client) Search(ctx context.Context, queryVector []float32, k int) ([]domain.Candidate, error) {
	request := map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": true,
	}

	var response struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := c.do(ctx, "search", func(ctx context.Context) error {
		return c.postJSON(ctx, fmt.Sprintf("/collections/%s/points/search", c.collection), request, &response)
	})
	if err != nil {
		return nil, wrapSearchError("search", err)
	}

	out := make([]domain.Candidate, 0, len(response.Result))
	for _, r := range response.Result {
		out = append(out, domain.Candidate{
			ID:             fmt.Sprintf("%v", r.ID),
			Text:           payloadString(r.Payload, "text"),
			SourceDocument: payloadString(r.Payload, "doc_name"),
			SourceLocator:  payloadString(r.Payload, "locator"),
			Score:          1 - r.Score,
		})
	}
	return out, nil
}

func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qdrant search status: %s", e.Status)
	}
	return fmt.Sprintf("qdrant search status: %s: %s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Do(ctx, "qdrant_"+operation, fn, classifyTransportError)
}

func classifyTransportError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Verdict{}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return resilience.Verdict{Retry: true, Count: true}
		default:
			return resilience.Verdict{}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retry: true, Count: true}
	}

	return resilience.Verdict{Count: true}
}

func wrapSearchError(operation string, err error) error {
	if classifyTransportError(err).Retry || resilience.IsCircuitOpen(err) {
		err = domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(domain.ErrSearch, operation, err)
}
