// Package ollama talks to an Ollama server to find the subject of an image.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"k8s.io/klog/v2"

	"github.com/menta2k/image-editor/pkg/types"
)

// DefaultTimeout bounds a request whose context has no deadline.
const DefaultTimeout = 2 * time.Minute

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("ollama: empty response")

// resultSchema constrains the model output to a types.Result.
var resultSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "primary": {
      "type": "object",
      "properties": {
        "label": {"type": "string"},
        "confidence": {"type": "number"},
        "box": {
          "type": "object",
          "properties": {"x": {"type": "number"}, "y": {"type": "number"}, "w": {"type": "number"}, "h": {"type": "number"}},
          "required": ["x", "y", "w", "h"]
        },
        "cx": {"type": "number"},
        "cy": {"type": "number"}
      },
      "required": ["label", "confidence", "box", "cx", "cy"]
    },
    "description": {"type": "string"}
  },
  "required": ["primary"]
}`)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	timeout time.Duration
}

// NewClient creates a client for the server at serverURL. Any path in the
// URL (such as /api/chat) is ignored. A nil httpClient uses
// http.DefaultClient.
func NewClient(serverURL string, httpClient *http.Client) (*Client, error) {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: scheme and host are required", serverURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}
	return &Client{
		client:  api.NewClient(baseURL, httpClient),
		timeout: DefaultTimeout,
	}, nil
}

// LocateSubject sends one image with prompt and parses the JSON answer.
func (c *Client) LocateSubject(ctx context.Context, model, prompt string, image []byte) (*types.Result, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	stream := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{{
			Role:    "user",
			Content: prompt,
			Images:  []api.ImageData{api.ImageData(image)},
		}},
		Stream:  &stream,
		Format:  resultSchema,
		Options: map[string]any{"temperature": 0},
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if strings.TrimSpace(content.String()) == "" {
		return nil, ErrEmptyResponse
	}

	klog.V(2).Infof("ollama %s answered: %s", model, content.String())
	return types.ParseResult(content.String())
}
