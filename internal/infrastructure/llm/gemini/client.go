// Package gemini implements the answer generator gateway against the
// Gemini generateContent REST endpoint.
package gemini

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
	model      string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds the generation client. executor may be nil to call the
// service without retries or breaker.
func New(baseURL, model, apiKey string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Generate produces the answer text. The rendered context and the
// question travel as one user turn; the persona travels as the system
// instruction.
func (c *Client) Generate(ctx context.Context, systemRole, contextText, question string) (string, error) {
	request := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{{
				Text: fmt.Sprintf("Intelligence sources:\n%s\nClient question:\n%s", contextText, question),
			}},
		}},
	}
	if systemRole != "" {
		request.SystemInstruction = &content{Parts: []part{{Text: systemRole}}}
	}

	var response struct {
		Candidates []candidate `json:"candidates"`
	}
	err := c.do(ctx, "generate", func(ctx context.Context) error {
		return c.postJSON(ctx, &request, &response)
	})
	if err != nil {
		return "", wrapGenerationError("generate", err)
	}

	text := collectText(response.Candidates)
	if text == "" {
		return "", domain.WrapError(domain.ErrGeneration, "generate", fmt.Errorf("empty completion"))
	}
	return text, nil
}

type candidate struct {
	Content struct {
		Parts []part `json:"parts"`
	} `json:"content"`
}

func collectText(candidates []candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func (c *Client) postJSON(ctx context.Context, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini generate request: %w", err)
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
		return fmt.Errorf("decode generate response: %w", err)
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
		return fmt.Sprintf("gemini generate status: %s", e.Status)
	}
	return fmt.Sprintf("gemini generate status: %s: %s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Do(ctx, "gemini_"+operation, fn, classifyTransportError)
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

func wrapGenerationError(operation string, err error) error {
	if classifyTransportError(err).Retry || resilience.IsCircuitOpen(err) {
		err = domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(domain.ErrGeneration, operation, err)
}
