package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"a11y/internal/llm"
	"a11y/internal/media"
)

var _ llm.Client = (*Client)(nil)

// Client serves text and JSON calls through Gemini, including image inputs
// which are sent inline.
type Client struct {
	client *genai.Client
}

// Config selects the Gemini API when APIKey is set and Vertex AI otherwise.
type Config struct {
	APIKey   string
	Project  string
	Location string
	BaseURL  string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.APIKey == "" {
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{client: client}, nil
}

func (c *Client) Invoke(ctx context.Context, call *llm.Call) (*llm.Reply, error) {
	if call.Format != llm.FormatText && call.Format != llm.FormatJSON {
		return nil, llm.Unsupported("gemini", call.Format)
	}

	config := &genai.GenerateContentConfig{}
	if system := call.System(); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if call.Format == llm.FormatJSON {
		config.ResponseMIMEType = "application/json"
	}

	contents, err := contents(call)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Models.GenerateContent(ctx, call.Model, contents, config)
	if err != nil {
		return nil, llm.Unavailable("gemini generate", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, llm.Malformed("gemini generate", "no candidates")
	}

	return &llm.Reply{Body: resp.Text(), Model: call.Model}, nil
}

func contents(call *llm.Call) ([]*genai.Content, error) {
	var out []*genai.Content
	for _, m := range call.Messages {
		if m.Role == llm.RoleSystem {
			continue
		}

		parts := make([]*genai.Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case llm.PartText:
				if strings.TrimSpace(p.Text) != "" {
					parts = append(parts, genai.NewPartFromText(p.Text))
				}
			case llm.PartImage:
				mime, data, err := media.ParseDataURL(p.ImageURL)
				if err != nil {
					return nil, fmt.Errorf("inline image: %w", err)
				}
				parts = append(parts, genai.NewPartFromBytes(data, mime))
			}
		}
		out = append(out, genai.NewContentFromParts(parts, genai.RoleUser))
	}
	return out, nil
}
