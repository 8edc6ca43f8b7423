package transform

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"a11y/internal/media"
)

// validate checks req against the spec and returns the resolved values with
// defaults applied. Every problem is collected before returning.
func (s *Spec) validate(req Request) (map[string]any, error) {
	resolved := make(map[string]any, len(s.Inputs))
	var problems []FieldProblem

	for _, f := range s.Inputs {
		v, ok := req.Values[f.Name]
		if !ok || v == nil {
			if f.Required {
				problems = append(problems, FieldProblem{Field: f.Name, Reason: "required"})
				continue
			}
			v = f.Default
			if v == nil {
				continue
			}
		}

		value, reason := checkValue(f, v)
		if reason != "" {
			problems = append(problems, FieldProblem{Field: f.Name, Reason: reason})
			continue
		}
		resolved[f.Name] = value
	}

	var unknown []string
	for name := range req.Values {
		if _, ok := s.input(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		problems = append(problems, FieldProblem{Field: name, Reason: "unknown field"})
	}

	if len(problems) > 0 {
		return nil, &InputError{Kind: s.Kind, Problems: problems}
	}
	return resolved, nil
}

func checkValue(f InputField, v any) (any, string) {
	switch f.Type {
	case InputText:
		s, ok := asString(v)
		if !ok {
			return nil, fmt.Sprintf("expected text, got %T", v)
		}
		if strings.TrimSpace(s) == "" {
			return nil, "must not be blank"
		}
		return s, ""

	case InputImage:
		switch img := v.(type) {
		case media.Image:
			return img, ""
		case *media.Image:
			return *img, ""
		case []byte:
			return media.Image{Data: img}, ""
		default:
			return nil, fmt.Sprintf("expected image bytes, got %T", v)
		}

	case InputEnum:
		s, ok := asString(v)
		if !ok {
			return nil, fmt.Sprintf("expected one of %s, got %T", strings.Join(f.Allowed, ", "), v)
		}
		if !slices.Contains(f.Allowed, s) {
			return nil, fmt.Sprintf("%q is not one of %s", s, strings.Join(f.Allowed, ", "))
		}
		return s, ""

	case InputFlag:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Sprintf("expected a flag, got %T", v)
		}
		return b, ""
	}

	return nil, fmt.Sprintf("unsupported field type %q", f.Type)
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case DetailLevel:
		return string(s), true
	case Voice:
		return string(s), true
	case ContentType:
		return string(s), true
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}
