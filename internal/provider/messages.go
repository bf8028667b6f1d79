package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	DefaultGradingBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion      = "2023-06-01"
)

// MessagesClient calls an Anthropic-style messages endpoint.
type MessagesClient struct {
	baseClient
}

// NewMessagesClient creates a grading provider client.
func NewMessagesClient(opts Options) *MessagesClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGradingBaseURL
	}
	return &MessagesClient{baseClient: newBaseClient("grading", opts)}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the reply text.
func (c *MessagesClient) Complete(ctx context.Context, apiKey, model string, maxTokens int, prompt string) (string, error) {
	if apiKey == "" {
		return "", ErrMissingCredential
	}

	payload, err := json.Marshal(messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}

	var out messagesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &ParseError{Msg: "decode messages response", Err: err}
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		if out.Error != nil && out.Error.Message != "" {
			return "", &ParseError{Msg: out.Error.Message}
		}
		return "", &ParseError{Msg: "no content returned"}
	}
	return text.String(), nil
}
