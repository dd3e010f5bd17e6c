// Package ai implements the language-model capability over an
// OpenAI-compatible chat completions endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	pkgerrors "knowde-backend/pkg/errors"
)

const capabilityName = "languageModel"

// Client calls an OpenAI-compatible chat completions API. Every call carries
// a hard timeout; a timeout or 5xx surfaces as a retryable error, a 4xx as a
// non-retryable one, so the workflow's retry policy can tell them apart.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a language-model client
func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
		logger:     logger,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate implements ports.LanguageModel
func (c *Client) Generate(ctx context.Context, prompt string, schemaKind string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You answer with a single JSON object and nothing else."},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    0.2,
	})
	if err != nil {
		return "", pkgerrors.Wrap(err, "encoding completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrap(err, "building completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", pkgerrors.NewTimeoutError(capabilityName, err)
		}
		return "", pkgerrors.NewCapabilityUnavailableError(capabilityName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.NewCapabilityUnavailableError(capabilityName, err)
	}

	c.logger.Debug("completion call finished",
		zap.String("schema", schemaKind),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", pkgerrors.NewCapabilityUnavailableError(capabilityName,
			fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, truncate(payload)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.NewCapabilityContentError(capabilityName,
			fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, truncate(payload)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", pkgerrors.NewCapabilityUnavailableError(capabilityName, err)
	}
	if parsed.Error != nil {
		return "", pkgerrors.NewCapabilityContentError(capabilityName, fmt.Errorf("%s: %s", parsed.Error.Type, parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", pkgerrors.NewCapabilityContentError(capabilityName, fmt.Errorf("completion returned no choices"))
	}

	return parsed.Choices[0].Message.Content, nil
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
