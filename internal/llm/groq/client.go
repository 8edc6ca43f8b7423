package groq

import (
	"context"
	"fmt"
	"net/http"

	"github.com/conneroisu/groq-go"

	"a11y/internal/llm"
)

var _ llm.Client = (*Client)(nil)

// Client serves text and JSON calls through Groq chat completions. Image
// parts and binary formats are rejected.
type Client struct {
	client *groq.Client
}

type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a client against the public endpoint, or BaseURL when set.
func NewClient(cfg Config) (*Client, error) {
	var opts []groq.Opts
	if cfg.BaseURL != "" {
		opts = append(opts, groq.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, groq.WithClient(cfg.HTTPClient))
	}

	client, err := groq.NewClient(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}

	return &Client{client: client}, nil
}

func (c *Client) Invoke(ctx context.Context, call *llm.Call) (*llm.Reply, error) {
	if call.Format != llm.FormatText && call.Format != llm.FormatJSON {
		return nil, llm.Unsupported("groq", call.Format)
	}

	req := groq.ChatCompletionRequest{
		Model: groq.ChatModel(call.Model),
	}
	for _, m := range call.Messages {
		if m.HasImage() {
			return nil, llm.Unsupported("groq", llm.Format("image input"))
		}
		role := groq.RoleUser
		if m.Role == llm.RoleSystem {
			role = groq.RoleSystem
		}
		req.Messages = append(req.Messages, groq.ChatCompletionMessage{Role: role, Content: m.Text()})
	}
	if call.Format == llm.FormatJSON {
		req.ResponseFormat = &groq.ChatResponseFormat{Type: "json_object"}
	}

	resp, err := c.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, llm.Unavailable("groq chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.Malformed("groq chat completion", "no choices")
	}

	return &llm.Reply{Body: resp.Choices[0].Message.Content, Model: call.Model}, nil
}
