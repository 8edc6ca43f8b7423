package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable covers network, auth and rate-limit failures.
	ErrUnavailable = errors.New("remote model unavailable")
	// ErrMalformed means the remote answered but the reply cannot be used.
	ErrMalformed = errors.New("malformed remote response")
)

// Format is the output the caller expects back.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatAudio Format = "audio"
	FormatImage Format = "image"
)

func (f Format) Binary() bool {
	return f == FormatAudio || f == FormatImage
}

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part is one content segment. Image parts carry a base64 data URL.
type Part struct {
	Type     PartType
	Text     string
	ImageURL string
}

func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

func ImagePart(dataURL string) Part {
	return Part{Type: PartImage, ImageURL: dataURL}
}

type Message struct {
	Role  Role
	Parts []Part
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// Call is one synchronous request to a hosted model.
type Call struct {
	Model    string
	Messages []Message
	Format   Format

	Voice        string
	AudioFormat  string
	ImageSize    string
	ImageQuality string
	ImageFormat  string
}

// Prompt joins the text of every user message. Speech and image backends
// take a single prompt string.
func (c *Call) Prompt() string {
	var texts []string
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			if t := m.Text(); t != "" {
				texts = append(texts, t)
			}
		}
	}
	return strings.Join(texts, "\n")
}

func (c *Call) HasImage() bool {
	for _, m := range c.Messages {
		if m.HasImage() {
			return true
		}
	}
	return false
}

func (c *Call) System() string {
	var texts []string
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			texts = append(texts, m.Text())
		}
	}
	return strings.Join(texts, "\n")
}

// Reply carries text for text/json formats and base64 for binary formats.
type Reply struct {
	Body  string
	Model string
}

type Client interface {
	Invoke(ctx context.Context, call *Call) (*Reply, error)
}

// Unavailable wraps err so it matches ErrUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func Malformed(op, reason string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrMalformed, reason)
}

// Unsupported reports a format a backend cannot serve.
func Unsupported(backend string, format Format) error {
	return fmt.Errorf("%s: %w: format %q not supported", backend, ErrUnavailable, format)
}
