package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"a11y/internal/llm"
	"a11y/internal/media"
)

const (
	baseURL      = "https://api.elevenlabs.io/v1"
	defaultModel = "eleven_multilingual_v2"
)

var _ llm.Client = (*Client)(nil)

// Client serves audio calls through the ElevenLabs with-timestamps endpoint,
// whose reply already carries base64 audio.
type Client struct {
	apiKeys    []string
	keyIndex   uint64
	httpClient *http.Client
	baseURL    string
	voiceID    string
	voices     map[string]string
	model      string
	speed      float64
	stability  float64
	similarity float64
}

type Config struct {
	APIKeys []string
	VoiceID string
	// Voices maps voice names used in requests to ElevenLabs voice ids.
	Voices     map[string]string
	Model      string
	Speed      float64
	Stability  float64
	Similarity float64
	BaseURL    string
	HTTPClient *http.Client
}

type timestampResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("elevenlabs: %d %s - %s", e.code, http.StatusText(e.code), e.body)
}

func NewClient(cfg Config) *Client {
	keys := cfg.APIKeys
	if len(keys) == 0 {
		keys = []string{""}
	}

	c := &Client{
		apiKeys:    keys,
		httpClient: cfg.HTTPClient,
		baseURL:    cfg.BaseURL,
		voiceID:    cfg.VoiceID,
		voices:     cfg.Voices,
		model:      cfg.Model,
		speed:      cfg.Speed,
		stability:  cfg.Stability,
		similarity: cfg.Similarity,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.baseURL == "" {
		c.baseURL = baseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	return c
}

func (c *Client) Invoke(ctx context.Context, call *llm.Call) (*llm.Reply, error) {
	if call.Format != llm.FormatAudio {
		return nil, llm.Unsupported("elevenlabs", call.Format)
	}

	text := call.Prompt()
	voiceID := c.resolveVoice(call.Voice)
	model := c.model
	if strings.HasPrefix(call.Model, "eleven_") {
		model = call.Model
	}

	body, err := c.generate(ctx, text, voiceID, model)
	if err != nil {
		return nil, llm.Unavailable("elevenlabs speech", err)
	}

	var resp timestampResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.Malformed("elevenlabs speech", "response is not json")
	}
	if _, err := media.DecodeBinaryPayload(resp.AudioBase64); err != nil {
		return nil, llm.Malformed("elevenlabs speech", "no audio")
	}

	return &llm.Reply{Body: strings.TrimSpace(resp.AudioBase64), Model: model}, nil
}

func (c *Client) resolveVoice(name string) string {
	if id, ok := c.voices[name]; ok && id != "" {
		return id
	}
	return c.voiceID
}

func (c *Client) nextAPIKey() string {
	if len(c.apiKeys) == 1 {
		return c.apiKeys[0]
	}
	idx := atomic.AddUint64(&c.keyIndex, 1)
	return c.apiKeys[idx%uint64(len(c.apiKeys))]
}

func (c *Client) keyAtOffset(offset int) string {
	idx := atomic.LoadUint64(&c.keyIndex)
	return c.apiKeys[(idx+uint64(offset))%uint64(len(c.apiKeys))]
}

// generate moves to the next key only when the current one is out of quota.
func (c *Client) generate(ctx context.Context, text, voiceID, model string) ([]byte, error) {
	url := fmt.Sprintf("%s/text-to-speech/%s/with-timestamps", c.baseURL, voiceID)

	startKey := c.nextAPIKey()
	body, err := c.doRequest(ctx, url, text, model, startKey)
	if err == nil || !isQuotaError(err) {
		return body, err
	}

	for i := 1; i < len(c.apiKeys); i++ {
		key := c.keyAtOffset(i)
		if key == startKey {
			continue
		}
		body, err = c.doRequest(ctx, url, text, model, key)
		if err == nil || !isQuotaError(err) {
			return body, err
		}
	}

	return nil, fmt.Errorf("all API keys exhausted: %w", err)
}

func (c *Client) doRequest(ctx context.Context, url, text, model, apiKey string) ([]byte, error) {
	payload := map[string]any{
		"text":     text,
		"model_id": model,
		"voice_settings": map[string]any{
			"stability":        c.stability,
			"similarity_boost": c.similarity,
			"speed":            c.speed,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	return body, nil
}

func isQuotaError(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code == http.StatusTooManyRequests ||
		strings.Contains(se.body, "quota_exceeded") ||
		strings.Contains(se.body, "rate_limit")
}
