package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/debemdeboas/composer/internal/remote"
)

// HTTPClient posts {action, content} to the assist endpoint and reads {result}.
type HTTPClient struct {
	remote *remote.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{remote: remote.NewClient(endpoint, timeout)}
}

type response struct {
	Result string `json:"result"`
}

func (c *HTTPClient) Generate(ctx context.Context, req Request) (string, error) {
	data, err := c.remote.Post(ctx, req, nil)
	if err != nil {
		return "", err
	}

	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &remote.RejectionError{
			Endpoint: c.remote.Endpoint(),
			Status:   http.StatusOK,
			Message:  fmt.Sprintf("invalid response body: %v", err),
		}
	}
	if strings.TrimSpace(resp.Result) == "" {
		return "", &remote.RejectionError{
			Endpoint: c.remote.Endpoint(),
			Status:   http.StatusOK,
			Message:  "empty result",
		}
	}
	return resp.Result, nil
}

// New picks a client by provider name: "http" (default) or "openai".
func New(provider, endpoint, model, apiKey string, timeout time.Duration) (Client, error) {
	switch provider {
	case "", "http":
		if endpoint == "" {
			return nil, fmt.Errorf("assist endpoint is not configured")
		}
		return NewHTTPClient(endpoint, timeout), nil
	case "openai":
		return NewOpenAIClient(apiKey, model, endpoint, timeout)
	default:
		return nil, fmt.Errorf("unknown assist provider %q", provider)
	}
}
