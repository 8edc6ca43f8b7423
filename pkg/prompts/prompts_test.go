package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCoversEveryTransform(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	kinds := []string{
		"image_description",
		"text_to_speech",
		"sign_gloss",
		"visual_plan",
		"diagram_image",
		"document_accessibility",
		"content_routing",
		"quality_review",
	}
	for _, kind := range kinds {
		if !p.Has(kind) {
			t.Errorf("Default() missing template for %s", kind)
		}
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	p, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !p.Has("sign_gloss") {
		t.Error("Load() without prompts.yaml should return defaults")
	}
}

func TestLoadFromOverlaysDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	promptsPath := filepath.Join(tmpDir, "custom.yaml")

	promptsContent := `
transforms:
  sign_gloss:
    system: "Custom gloss instructions"
`
	if err := os.WriteFile(promptsPath, []byte(promptsContent), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadFrom(promptsPath)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	got := p.Transforms["sign_gloss"]
	if got.System != "Custom gloss instructions" {
		t.Errorf("System = %q, want %q", got.System, "Custom gloss instructions")
	}
	if got.User != "{{.text}}" {
		t.Errorf("User = %q, want default user template", got.User)
	}
	if !p.Has("visual_plan") {
		t.Error("untouched kinds should keep defaults")
	}
}

func TestLoadFromMissing(t *testing.T) {
	_, err := LoadFrom("/nonexistent/path.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	promptsPath := filepath.Join(tmpDir, "invalid.yaml")

	if err := os.WriteFile(promptsPath, []byte("not: valid: yaml: content:"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(promptsPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestRender(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		kind       string
		data       map[string]any
		wantSystem string
		wantUser   string
	}{
		{
			name:     "detailLevelUppercased",
			kind:     "image_description",
			data:     map[string]any{"detail_level": "brief"},
			wantUser: "Detail level: BRIEF.",
		},
		{
			name:       "signGlossPassesTextVerbatim",
			kind:       "sign_gloss",
			data:       map[string]any{"text": "The cat is sleeping on the mat."},
			wantSystem: "ASL GLOSS",
			wantUser:   "The cat is sleeping on the mat.",
		},
		{
			name:     "routingFlags",
			kind:     "content_routing",
			data:     map[string]any{"goal": "read a menu", "has_image": true, "has_text": false},
			wantUser: "- image: true\n- text: false",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, user, err := p.Render(tt.kind, tt.data)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if !strings.Contains(system, tt.wantSystem) {
				t.Errorf("system = %q, want it to contain %q", system, tt.wantSystem)
			}
			if !strings.Contains(user, tt.wantUser) {
				t.Errorf("user = %q, want it to contain %q", user, tt.wantUser)
			}
		})
	}
}

func TestRenderUnknownKind(t *testing.T) {
	p := &Prompts{Transforms: map[string]Template{}}
	if _, _, err := p.Render("nope", nil); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRenderInvalidTemplate(t *testing.T) {
	p := &Prompts{Transforms: map[string]Template{
		"broken": {User: "{{.Invalid"},
	}}

	if _, _, err := p.Render("broken", map[string]any{}); err == nil {
		t.Error("expected error for invalid template")
	}
}

func TestRenderMissingKey(t *testing.T) {
	p := &Prompts{Transforms: map[string]Template{
		"needs_text": {User: "{{.text}}"},
	}}

	if _, _, err := p.Render("needs_text", map[string]any{}); err == nil {
		t.Error("expected error for missing template key")
	}
}
