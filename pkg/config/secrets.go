package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretSource reads the latest version of a named secret.
type SecretSource interface {
	Access(ctx context.Context, name string) (string, error)
}

type SecretManager struct {
	client *secretmanager.Client
}

func NewSecretManager(ctx context.Context) (*SecretManager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}
	return &SecretManager{client: client}, nil
}

func (s *SecretManager) Close() error {
	return s.client.Close()
}

// Access expects name in the form projects/<p>/secrets/<NAME>/versions/latest.
func (s *SecretManager) Access(ctx context.Context, name string) (string, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

// secretTarget pairs an env-style secret name with the field it fills.
type secretTarget struct {
	name  string
	field *string
}

func (c *Config) missingKeys() []secretTarget {
	var targets []secretTarget
	add := func(name string, field *string, needed bool) {
		if needed && *field == "" {
			targets = append(targets, secretTarget{name: name, field: field})
		}
	}

	// Gemini needs no key here: with a project set it goes through Vertex AI.
	add("OPENAI_API_KEY", &c.OpenAIAPIKey, c.UsesProvider(ProviderOpenAI))
	add("GROQ_API_KEY", &c.GroqAPIKey, c.UsesProvider(ProviderGroq))
	add("ELEVENLABS_API_KEY", &c.ElevenLabsAPIKey, c.UsesProvider(ProviderElevenLabs))
	return targets
}

func secretName(project, name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, name)
}

// resolveSecrets fills missing keys. A secret that cannot be read leaves the
// key empty; the provider then fails at call time with an auth error.
func resolveSecrets(ctx context.Context, cfg *Config, src SecretSource) {
	for _, t := range cfg.missingKeys() {
		value, err := src.Access(ctx, secretName(cfg.GCPProject, t.name))
		if err != nil {
			slog.Warn("Secret not available", "secret", t.name, "error", err)
			continue
		}
		*t.field = value
		slog.Debug("Loaded secret", "secret", t.name)
	}
}
