package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second

	// maxSummaryRunes bounds the stored summary
	maxSummaryRunes = 280
)

// ErrEmptyComment is returned when there is nothing to summarise
var ErrEmptyComment = errors.New("comment is empty")

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a new Ollama client
func New(ollamaURL, model string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL %q: scheme and host are required", ollamaURL)
	}

	return &Client{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "ollama"),
	}, nil
}

// Model returns the model name requests are sent to
func (c *Client) Model() string {
	return c.model
}

// GenerateResponse generates a non-streamed response from the LLM
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("sending generate request", "model", c.model, "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: new(bool),
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		c.logger.Warn("generation failed", "model", c.model, "error", err)
		return "", fmt.Errorf("generation failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	c.logger.Debug("response received", "chars", len(result))
	return result, nil
}

// SummarizeReview asks the model for a one-sentence summary of a review comment
func (c *Client) SummarizeReview(ctx context.Context, comment string) (string, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return "", ErrEmptyComment
	}

	prompt := fmt.Sprintf(`Summarise the following student accommodation review in ONE short sentence.

Requirements:
- Keep it under 25 words
- Mention the main praise or complaint
- Do NOT add commentary such as "the reviewer says" or "this review"
- Do NOT use quotes, numbering or bullet points

Review:
%s

Summary:`, comment)

	response, err := c.GenerateResponse(ctx, prompt)
	if err != nil {
		return "", err
	}
	return cleanSummary(response), nil
}

// cleanSummary keeps the first line of a model response, without wrapping
// quotes, and truncates it to maxSummaryRunes
func cleanSummary(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "Summary:")
	s = strings.Trim(strings.TrimSpace(s), "\"'")

	runes := []rune(s)
	if len(runes) > maxSummaryRunes {
		s = strings.TrimSpace(string(runes[:maxSummaryRunes]))
	}
	return s
}

// IsRetriable reports whether err looks transient (connection, timeout or a
// 5xx/429 from the server) rather than a bad request
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyComment) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError ||
			statusErr.StatusCode == http.StatusTooManyRequests
	}

	errStr := strings.ToLower(err.Error())
	retriablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"bad gateway",
		"too many requests",
		"no such host",
		"network is unreachable",
	}
	for _, pattern := range retriablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
