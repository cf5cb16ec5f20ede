package assist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/debemdeboas/composer/internal/remote"
)

const systemPrompt = "You are a writing assistant inside an article editor. " +
	"Answer in markdown unless told otherwise and never wrap the answer in a code fence."

// OpenAIClient generates results with a chat completion per action.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	baseURL string
	timeout time.Duration
}

// NewOpenAIClient builds a client for any OpenAI-compatible endpoint. An empty baseURL
// uses the public API.
func NewOpenAIClient(apiKey, model, baseURL string, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: missing api key")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		baseURL: cfg.BaseURL,
		timeout: timeout,
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	assistLogger.Debug().Str("model", c.model).Str("action", string(req.Action)).Msg("Generating via OpenAI")

	content := req.Content
	if strings.TrimSpace(content) == "" {
		content = "(the article is empty)"
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Action.Instruction() + "\n\nArticle:\n" + content},
		},
	})
	if err != nil {
		return "", c.classify(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &remote.RejectionError{Endpoint: c.baseURL, Status: http.StatusOK, Message: "no choices returned"}
	}
	assistLogger.Debug().Str("finish_reason", string(resp.Choices[0].FinishReason)).Msg("Received response from OpenAI")
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &remote.RejectionError{Endpoint: c.baseURL, Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &remote.RejectionError{Endpoint: c.baseURL, Status: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return &remote.TransportError{Endpoint: c.baseURL, Err: err}
}
