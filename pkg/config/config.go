package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath      = "config.yaml"
	defaultTextProvider    = ProviderOpenAI
	defaultImageProvider   = ProviderOpenAI
	defaultSpeechProvider  = ProviderOpenAI
	defaultVoice           = "alloy"
	defaultAudioFormat     = "mp3"
	defaultElevenLabsVoice = "JBFqnCBsd6RMkjVDRZzb"
	defaultElevenLabsModel = "eleven_multilingual_v2"
	defaultStability       = 0.5
	defaultSimilarity      = 0.75
	defaultSpeed           = 1.0
	defaultImageSize       = "1024x1024"
	defaultImageQuality    = "auto"
	defaultImageFormat     = "png"
	defaultMediaURLPrefix  = "/media"
	defaultStorageBackend  = StorageLocal
	defaultGCSPrefix       = "a11y"
	defaultGeminiLocation  = "us-central1"
	defaultServerAddr      = ":8000"
	defaultRateLimit       = 5.0
	defaultRateBurst       = 10
	defaultMaxUploadMB     = 20
	defaultRemoteTimeout   = 120 * time.Second
	defaultGroqTextModel   = "llama-3.3-70b-versatile"
	defaultGeminiModel     = "gemini-2.5-flash"
)

const (
	ProviderOpenAI     = "openai"
	ProviderGroq       = "groq"
	ProviderGemini     = "gemini"
	ProviderElevenLabs = "elevenlabs"

	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// DefaultMediaRoot is used when media.root is not configured.
const DefaultMediaRoot = "./media"

// Kinds served by the text provider. Image description goes to the vision
// provider, speech and diagrams to their own.
var textKinds = []string{
	"sign_gloss",
	"visual_plan",
	"document_accessibility",
	"content_routing",
	"quality_review",
}

type Config struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GroqAPIKey       string
	GeminiAPIKey     string
	ElevenLabsAPIKey string
	GCSBucket        string
	GCPProject       string
	ConfigPath       string

	Providers   ProvidersConfig   `yaml:"providers"`
	Models      map[string]string `yaml:"models"`
	Speech      SpeechConfig      `yaml:"speech"`
	ElevenLabs  ElevenLabsConfig  `yaml:"elevenlabs"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Image       ImageConfig       `yaml:"image"`
	Media       MediaConfig       `yaml:"media"`
	Storage     StorageConfig     `yaml:"storage"`
	Server      ServerConfig      `yaml:"server"`
	Remote      RemoteConfig      `yaml:"remote"`
	PromptsPath string            `yaml:"prompts_path"`
}

type ProvidersConfig struct {
	Text   string `yaml:"text"`   // openai, groq or gemini
	Vision string `yaml:"vision"` // openai or gemini
	Speech string `yaml:"speech"` // openai or elevenlabs
	Image  string `yaml:"image"`  // openai
}

type SpeechConfig struct {
	Voice  string `yaml:"voice"`
	Format string `yaml:"format"`
}

type ElevenLabsConfig struct {
	VoiceID    string            `yaml:"voice_id"`
	Model      string            `yaml:"model"`
	Stability  float64           `yaml:"stability"`
	Similarity float64           `yaml:"similarity"`
	Speed      float64           `yaml:"speed"`
	Voices     map[string]string `yaml:"voices"`
}

type GeminiConfig struct {
	Location string `yaml:"location"`
}

type ImageConfig struct {
	Size    string `yaml:"size"`
	Quality string `yaml:"quality"`
	Format  string `yaml:"format"`
}

type MediaConfig struct {
	Root      string `yaml:"root"`
	URLPrefix string `yaml:"url_prefix"`
}

type StorageConfig struct {
	Backend   string `yaml:"backend"` // local or gcs
	GCSPrefix string `yaml:"gcs_prefix"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	Origins     []string `yaml:"origins"`
	RateLimit   float64  `yaml:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst"`
	MaxUploadMB int64    `yaml:"max_upload_mb"`
}

type RemoteConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// Load reads .env, then the yaml file, then fills defaults. API keys that
// are still empty are looked up in Secret Manager when a project is set.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		GCPProject:       os.Getenv("GOOGLE_CLOUD_PROJECT"),
		ConfigPath:       getEnvOrDefault("A11Y_CONFIG", defaultConfigPath),
	}

	if err := loadYAMLConfig(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.GCPProject != "" && len(cfg.missingKeys()) > 0 {
		sm, err := NewSecretManager(ctx)
		if err != nil {
			slog.Warn("Secret Manager unavailable", "error", err)
			return cfg, nil
		}
		defer func() { _ = sm.Close() }()
		resolveSecrets(ctx, cfg, sm)
	}

	return cfg, nil
}

func loadYAMLConfig(cfg *Config) error {
	data, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		slog.Debug("No config file found, using defaults", "path", cfg.ConfigPath)
		return nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", cfg.ConfigPath, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	applyProviderDefaults(cfg)
	applyElevenLabsDefaults(cfg)
	applyModelDefaults(cfg)
	applySpeechDefaults(cfg)
	applyGeminiDefaults(cfg)
	applyImageDefaults(cfg)
	applyMediaDefaults(cfg)
	applyStorageDefaults(cfg)
	applyServerDefaults(cfg)
	applyRemoteDefaults(cfg)
}

func applyProviderDefaults(cfg *Config) {
	if cfg.Providers.Text == "" {
		cfg.Providers.Text = defaultTextProvider
	}
	if cfg.Providers.Vision == "" {
		cfg.Providers.Vision = ProviderOpenAI
		if cfg.Providers.Text == ProviderGemini {
			cfg.Providers.Vision = ProviderGemini
		}
	}
	if cfg.Providers.Speech == "" {
		cfg.Providers.Speech = defaultSpeechProvider
	}
	if cfg.Providers.Image == "" {
		cfg.Providers.Image = defaultImageProvider
	}
}

// applyModelDefaults only fills models for non-OpenAI providers. OpenAI
// defaults live with the transform table.
func applyModelDefaults(cfg *Config) {
	if cfg.Models == nil {
		cfg.Models = make(map[string]string)
	}

	var textModel string
	switch cfg.Providers.Text {
	case ProviderGroq:
		textModel = defaultGroqTextModel
	case ProviderGemini:
		textModel = defaultGeminiModel
	}
	if textModel != "" {
		for _, kind := range textKinds {
			setIfEmpty(cfg.Models, kind, textModel)
		}
	}

	if cfg.Providers.Vision == ProviderGemini {
		setIfEmpty(cfg.Models, "image_description", defaultGeminiModel)
	}
	if cfg.Providers.Speech == ProviderElevenLabs {
		setIfEmpty(cfg.Models, "text_to_speech", cfg.ElevenLabs.Model)
	}
}

func applySpeechDefaults(cfg *Config) {
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = defaultVoice
	}
	if cfg.Speech.Format == "" {
		cfg.Speech.Format = defaultAudioFormat
	}
}

func applyElevenLabsDefaults(cfg *Config) {
	if cfg.ElevenLabs.VoiceID == "" {
		cfg.ElevenLabs.VoiceID = defaultElevenLabsVoice
	}
	if cfg.ElevenLabs.Model == "" {
		cfg.ElevenLabs.Model = defaultElevenLabsModel
	}
	if cfg.ElevenLabs.Stability == 0 {
		cfg.ElevenLabs.Stability = defaultStability
	}
	if cfg.ElevenLabs.Similarity == 0 {
		cfg.ElevenLabs.Similarity = defaultSimilarity
	}
	if cfg.ElevenLabs.Speed == 0 {
		cfg.ElevenLabs.Speed = defaultSpeed
	}
}

func applyGeminiDefaults(cfg *Config) {
	if cfg.Gemini.Location == "" {
		cfg.Gemini.Location = defaultGeminiLocation
	}
}

func applyImageDefaults(cfg *Config) {
	if cfg.Image.Size == "" {
		cfg.Image.Size = defaultImageSize
	}
	if cfg.Image.Quality == "" {
		cfg.Image.Quality = defaultImageQuality
	}
	if cfg.Image.Format == "" {
		cfg.Image.Format = defaultImageFormat
	}
}

func applyMediaDefaults(cfg *Config) {
	if cfg.Media.Root == "" {
		cfg.Media.Root = DefaultMediaRoot
	}
	if cfg.Media.URLPrefix == "" {
		cfg.Media.URLPrefix = defaultMediaURLPrefix
	}
}

func applyStorageDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaultStorageBackend
		if cfg.GCSBucket != "" {
			cfg.Storage.Backend = StorageGCS
		}
	}
	if cfg.Storage.GCSPrefix == "" {
		cfg.Storage.GCSPrefix = defaultGCSPrefix
	}
}

func applyServerDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = getEnvOrDefault("A11Y_ADDR", defaultServerAddr)
	}
	if len(cfg.Server.Origins) == 0 {
		cfg.Server.Origins = []string{"*"}
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = defaultRateLimit
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = defaultRateBurst
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = defaultMaxUploadMB
	}
}

func applyRemoteDefaults(cfg *Config) {
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = defaultRemoteTimeout
	}
	if cfg.Remote.MaxRetries < 0 {
		cfg.Remote.MaxRetries = 0
	}
}

// Validate rejects provider and storage names the builder cannot wire.
func (c *Config) Validate() error {
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"providers.text", c.Providers.Text, []string{ProviderOpenAI, ProviderGroq, ProviderGemini}},
		{"providers.vision", c.Providers.Vision, []string{ProviderOpenAI, ProviderGemini}},
		{"providers.speech", c.Providers.Speech, []string{ProviderOpenAI, ProviderElevenLabs}},
		{"providers.image", c.Providers.Image, []string{ProviderOpenAI}},
		{"storage.backend", c.Storage.Backend, []string{StorageLocal, StorageGCS}},
	}

	for _, check := range checks {
		if !slices.Contains(check.allowed, check.value) {
			return fmt.Errorf("invalid %s %q: must be one of %s", check.field, check.value, strings.Join(check.allowed, ", "))
		}
	}

	if c.Storage.Backend == StorageGCS && c.GCSBucket == "" {
		return fmt.Errorf("storage.backend is gcs but GCS_BUCKET is not set")
	}
	return nil
}

// ElevenLabsKeys splits ELEVENLABS_API_KEY on commas for key rotation.
func (c *Config) ElevenLabsKeys() []string {
	var keys []string
	for _, k := range strings.Split(c.ElevenLabsAPIKey, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// UsesProvider reports whether any role is served by the provider.
func (c *Config) UsesProvider(name string) bool {
	p := c.Providers
	return p.Text == name || p.Vision == name || p.Speech == name || p.Image == name
}

func setIfEmpty(m map[string]string, key, value string) {
	if m[key] == "" {
		m[key] = value
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
