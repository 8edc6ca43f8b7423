package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"a11y/internal/llm"
	"a11y/internal/media"
)

var _ llm.Client = (*Client)(nil)

// Client serves every format: chat for text and JSON, the speech endpoint
// for audio and image generation for images.
type Client struct {
	client oai.Client
}

type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{client: oai.NewClient(opts...)}
}

func (c *Client) Invoke(ctx context.Context, call *llm.Call) (*llm.Reply, error) {
	switch call.Format {
	case llm.FormatText, llm.FormatJSON:
		return c.chat(ctx, call)
	case llm.FormatAudio:
		return c.speech(ctx, call)
	case llm.FormatImage:
		return c.image(ctx, call)
	default:
		return nil, llm.Unsupported("openai", call.Format)
	}
}

func (c *Client) chat(ctx context.Context, call *llm.Call) (*llm.Reply, error) {
	params := oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(call.Model),
		Messages: messages(call),
	}
	if call.Format == llm.FormatJSON {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, llm.Unavailable("openai chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.Malformed("openai chat completion", "no choices")
	}

	return &llm.Reply{Body: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

func messages(call *llm.Call) []oai.ChatCompletionMessageParamUnion {
	var out []oai.ChatCompletionMessageParamUnion
	for _, m := range call.Messages {
		if m.Role == llm.RoleSystem {
			out = append(out, oai.SystemMessage(m.Text()))
			continue
		}

		if !m.HasImage() {
			out = append(out, oai.UserMessage(m.Text()))
			continue
		}

		parts := make([]oai.ChatCompletionContentPartUnionParam, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case llm.PartText:
				parts = append(parts, oai.TextContentPart(p.Text))
			case llm.PartImage:
				parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
					URL: p.ImageURL,
				}))
			}
		}
		out = append(out, oai.UserMessage(parts))
	}
	return out
}

func (c *Client) speech(ctx context.Context, call *llm.Call) (*llm.Reply, error) {
	format := call.AudioFormat
	if format == "" {
		format = "mp3"
	}

	resp, err := c.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(call.Model),
		Input:          call.Prompt(),
		Voice:          oai.AudioSpeechNewParamsVoice(call.Voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormat(format),
	})
	if err != nil {
		return nil, llm.Unavailable("openai speech", err)
	}
	defer func() { _ = resp.Body.Close() }()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.Unavailable("openai speech", fmt.Errorf("read audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, llm.Malformed("openai speech", "empty audio")
	}

	return &llm.Reply{Body: media.EncodeBase64(audio), Model: call.Model}, nil
}

func (c *Client) image(ctx context.Context, call *llm.Call) (*llm.Reply, error) {
	params := oai.ImageGenerateParams{
		Prompt: call.Prompt(),
		Model:  oai.ImageModel(call.Model),
	}
	if call.ImageSize != "" {
		params.Size = oai.ImageGenerateParamsSize(call.ImageSize)
	}
	if call.ImageQuality != "" {
		params.Quality = oai.ImageGenerateParamsQuality(call.ImageQuality)
	}
	if call.ImageFormat != "" {
		params.OutputFormat = oai.ImageGenerateParamsOutputFormat(call.ImageFormat)
	}

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, llm.Unavailable("openai image generation", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, llm.Malformed("openai image generation", "no image data")
	}

	return &llm.Reply{Body: resp.Data[0].B64JSON, Model: call.Model}, nil
}
