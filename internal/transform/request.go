package transform

import (
	"strings"

	"a11y/internal/storage"
)

// Request is one call to Execute. Values are keyed by input field name:
// text fields take a string, image fields a media.Image or []byte, enum
// fields a string (or DetailLevel/Voice), flags a bool.
type Request struct {
	Kind     Kind
	Values   map[string]any
	Basename string
}

func NewRequest(kind Kind) Request {
	return Request{Kind: kind, Values: make(map[string]any)}
}

// With returns a copy of r with name set to v.
func (r Request) With(name string, v any) Request {
	values := make(map[string]any, len(r.Values)+1)
	for k, val := range r.Values {
		values[k] = val
	}
	values[name] = v
	r.Values = values
	return r
}

// Result holds whichever output the transform's kind produces: Fields for
// structured output, Text for plain text, Artifact for files.
type Result struct {
	Kind     Kind
	Output   OutputKind
	Model    string
	Fields   map[string]string
	Text     string
	Artifact *storage.ArtifactRef
}

func (r *Result) Field(name string) string {
	return r.Fields[name]
}

// List splits a structured field into items on newlines or commas.
func (r *Result) List(name string) []string {
	raw := r.Fields[name]
	items := strings.FieldsFunc(raw, func(c rune) bool {
		return c == '\n' || c == ','
	})

	var out []string
	for _, item := range items {
		item = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(item), "-*"))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
