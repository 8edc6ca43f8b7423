package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"a11y/internal/llm"
	"a11y/internal/media"
)

type parsed struct {
	fields map[string]string
	text   string
	data   []byte
}

// parse turns a raw reply into the spec's output. inputs supplies values
// for DefaultFrom fields.
func (s *Spec) parse(raw string, inputs map[string]any) (*parsed, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, llm.Malformed(string(s.Kind), "empty reply")
	}

	switch s.Output {
	case OutputStructured:
		fields, err := s.parseStructured(raw, inputs)
		if err != nil {
			return nil, err
		}
		return &parsed{fields: fields}, nil

	case OutputPlainText:
		return &parsed{text: strings.TrimSpace(raw)}, nil

	case OutputBinaryFile:
		data, err := media.DecodeBinaryPayload(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", s.Kind, err)
		}
		return &parsed{data: data}, nil
	}

	return nil, fmt.Errorf("unsupported output kind %q", s.Output)
}

func (s *Spec) parseStructured(raw string, inputs map[string]any) (map[string]string, error) {
	body := cleanJSON(raw)
	if !gjson.Valid(body) {
		return nil, llm.Malformed(string(s.Kind), "reply is not valid JSON")
	}

	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return nil, llm.Malformed(string(s.Kind), "reply is not a JSON object")
	}

	present := make(map[string]gjson.Result)
	doc.ForEach(func(key, value gjson.Result) bool {
		present[key.String()] = value
		return true
	})

	fields := make(map[string]string, len(s.Shape))
	for _, f := range s.Shape {
		if v, ok := present[f.Name]; ok && v.Type != gjson.Null {
			fields[f.Name] = flatten(v)
			continue
		}
		fields[f.Name] = f.Default
		if f.DefaultFrom != "" {
			if in, ok := inputs[f.DefaultFrom].(string); ok {
				fields[f.Name] = in
			}
		}
	}

	return fields, nil
}

// flatten renders any JSON value as a single string field. Arrays become one
// item per line and objects become sorted "key: value" lines.
func flatten(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.String()
	case v.IsArray():
		var items []string
		for _, item := range v.Array() {
			items = append(items, inline(item))
		}
		return strings.Join(items, "\n")
	case v.IsObject():
		return strings.Join(pairs(v), "\n")
	default:
		return v.Raw
	}
}

func inline(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.String()
	case v.IsArray():
		var items []string
		for _, item := range v.Array() {
			items = append(items, inline(item))
		}
		return strings.Join(items, ", ")
	case v.IsObject():
		return strings.Join(pairs(v), "; ")
	default:
		return v.Raw
	}
}

func pairs(v gjson.Result) []string {
	m := v.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+": "+inline(m[k]))
	}
	return out
}

// cleanJSON strips markdown code fences some models wrap JSON in.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
