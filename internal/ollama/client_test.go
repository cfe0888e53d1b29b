package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		ollamaURL     string
		model         string
		expectError   bool
		expectedModel string
	}{
		{
			name:          "default values",
			expectedModel: DefaultModel,
		},
		{
			name:          "custom URL and model",
			ollamaURL:     "http://custom-ollama:11434",
			model:         "mistral",
			expectedModel: "mistral",
		},
		{
			name:        "invalid URL",
			ollamaURL:   "://invalid-url",
			model:       "test",
			expectError: true,
		},
		{
			name:        "missing scheme",
			ollamaURL:   "localhost",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.ollamaURL, tt.model)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedModel, client.Model())
			assert.Equal(t, DefaultTimeout, client.timeout)
		})
	}
}

// newGenerateServer serves /api/generate with a single non-streamed response
func newGenerateServer(t *testing.T, status int, body string, gotPrompt *string) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream *bool  `json:"stream"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if gotPrompt != nil {
			*gotPrompt = req.Prompt
		}
		if assert.NotNil(t, req.Stream) {
			assert.False(t, *req.Stream)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintln(w, body)
	}))
	t.Cleanup(server.Close)

	client, err := New(server.URL, "test-model")
	require.NoError(t, err)
	return client
}

func TestGenerateResponse(t *testing.T) {
	client := newGenerateServer(t, http.StatusOK,
		`{"model":"test-model","response":"  hello there  ","done":true}`, nil)

	resp, err := client.GenerateResponse(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp)
}

func TestSummarizeReview(t *testing.T) {
	var prompt string
	client := newGenerateServer(t, http.StatusOK,
		`{"model":"test-model","response":"\"Great location but noisy at night.\"\nExtra line","done":true}`, &prompt)

	summary, err := client.SummarizeReview(context.Background(), "Great location, very noisy at night though")
	require.NoError(t, err)
	assert.Equal(t, "Great location but noisy at night.", summary)
	assert.Contains(t, prompt, "very noisy at night though")
}

func TestSummarizeReviewEmptyComment(t *testing.T) {
	client, err := New("", "")
	require.NoError(t, err)

	_, err = client.SummarizeReview(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyComment)
}

func TestGenerateResponseServerError(t *testing.T) {
	client := newGenerateServer(t, http.StatusInternalServerError, `{"error":"model overloaded"}`, nil)

	_, err := client.GenerateResponse(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, IsRetriable(err))
}

func TestGenerateResponseClientError(t *testing.T) {
	client := newGenerateServer(t, http.StatusNotFound, `{"error":"model not found"}`, nil)

	_, err := client.GenerateResponse(context.Background(), "hi")
	require.Error(t, err)
	assert.False(t, IsRetriable(err))
}

func TestCleanSummary(t *testing.T) {
	assert.Equal(t, "Clean and quiet.", cleanSummary("Summary: Clean and quiet.\n\nMore"))
	assert.Equal(t, "Cosy room", cleanSummary("'Cosy room'"))
	assert.Equal(t, "", cleanSummary("   "))

	long := strings.Repeat("a", maxSummaryRunes+50)
	assert.Len(t, []rune(cleanSummary(long)), maxSummaryRunes)
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"deadline", fmt.Errorf("generation failed: %w", context.DeadlineExceeded), true},
		{"bad gateway", errors.New("502 Bad Gateway"), true},
		{"network unreachable", errors.New("network is unreachable"), true},
		{"empty comment", ErrEmptyComment, false},
		{"invalid request", errors.New("invalid request format"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetriable(tt.err))
		})
	}
}
