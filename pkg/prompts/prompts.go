package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

const defaultPromptsPath = "prompts.yaml"

//go:embed prompts.yaml
var defaultPrompts []byte

// Template is the instruction pair for one transform. Either side may be
// empty.
type Template struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type Prompts struct {
	Transforms map[string]Template `yaml:"transforms"`
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
}

// Default returns the built-in prompt set.
func Default() (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(defaultPrompts, &p); err != nil {
		return nil, fmt.Errorf("failed to parse default prompts: %w", err)
	}
	return &p, nil
}

// Load reads prompts.yaml from the working directory if present, falling
// back to the built-in set.
func Load() (*Prompts, error) {
	if _, err := os.Stat(defaultPromptsPath); err != nil {
		return Default()
	}
	return LoadFrom(defaultPromptsPath)
}

// LoadFrom overlays the templates in path onto the built-in set. Kinds the
// file does not mention keep their defaults.
func LoadFrom(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	p, err := Default()
	if err != nil {
		return nil, err
	}
	for kind, tmpl := range override.Transforms {
		base := p.Transforms[kind]
		if tmpl.System != "" {
			base.System = tmpl.System
		}
		if tmpl.User != "" {
			base.User = tmpl.User
		}
		p.Transforms[kind] = base
	}

	return p, nil
}

func (p *Prompts) Has(kind string) bool {
	_, ok := p.Transforms[kind]
	return ok
}

// Render fills the system and user templates for kind with data.
func (p *Prompts) Render(kind string, data map[string]any) (system, user string, err error) {
	tmpl, ok := p.Transforms[kind]
	if !ok {
		return "", "", fmt.Errorf("no prompt template for %q", kind)
	}

	if system, err = render(tmpl.System, data); err != nil {
		return "", "", fmt.Errorf("render %s system prompt: %w", kind, err)
	}
	if user, err = render(tmpl.User, data); err != nil {
		return "", "", fmt.Errorf("render %s user prompt: %w", kind, err)
	}

	return strings.TrimSpace(system), strings.TrimSpace(user), nil
}

func render(tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", nil
	}

	t, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
