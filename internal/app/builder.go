package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"a11y/internal/document"
	"a11y/internal/llm"
	"a11y/internal/llm/gemini"
	"a11y/internal/llm/groq"
	"a11y/internal/llm/openai"
	"a11y/internal/metrics"
	"a11y/internal/speech/elevenlabs"
	"a11y/internal/storage"
	"a11y/internal/transform"
	"a11y/pkg/config"
	"a11y/pkg/httputil"
	"a11y/pkg/prompts"
)

type BuildResult struct {
	Service  *Service
	Pipeline *Pipeline
	Registry *transform.Registry
	Metrics  *metrics.Collector
	Media    *storage.LocalStorage

	closers []func() error
}

// Close releases cloud clients opened by BuildService.
func (b *BuildResult) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func BuildService(ctx context.Context, cfg *config.Config) (*BuildResult, error) {
	p, err := loadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}

	retry := httputil.DefaultRetryConfig()
	retry.MaxRetries = cfg.Remote.MaxRetries
	httpClient := httputil.NewClient(retry, cfg.Remote.Timeout)

	router, err := buildRouter(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{Metrics: metrics.NewCollector()}

	store, err := result.buildStore(ctx, cfg)
	if err != nil {
		return nil, errors.Join(err, result.Close())
	}

	opts, err := transformOptions(cfg)
	if err != nil {
		return nil, errors.Join(err, result.Close())
	}

	registry, err := transform.NewRegistry(router, p, store, transform.Specs(opts))
	if err != nil {
		return nil, errors.Join(err, result.Close())
	}
	result.Registry = registry

	result.Service = NewService(ServiceOptions{
		Executor:  result.Metrics.Instrument(registry),
		Extractor: document.NewExtractor(""),
		Store:     store,
		Timeout:   cfg.Remote.Timeout,
	})
	result.Pipeline = NewPipeline(result.Service)

	slog.Debug("Service built",
		"text", cfg.Providers.Text,
		"vision", cfg.Providers.Vision,
		"speech", cfg.Providers.Speech,
		"image", cfg.Providers.Image,
		"storage", cfg.Storage.Backend,
	)

	return result, nil
}

func loadPrompts(path string) (*prompts.Prompts, error) {
	if path != "" {
		return prompts.LoadFrom(path)
	}
	return prompts.Load()
}

// buildRouter creates one client per configured provider and routes each
// output format to it.
func buildRouter(ctx context.Context, cfg *config.Config, httpClient *http.Client) (*llm.Router, error) {
	clients := make(map[string]llm.Client)
	client := func(name string) (llm.Client, error) {
		if c, ok := clients[name]; ok {
			return c, nil
		}
		c, err := newProviderClient(ctx, name, cfg, httpClient)
		if err != nil {
			return nil, err
		}
		clients[name] = c
		return c, nil
	}

	router := llm.NewRouter()

	text, err := client(cfg.Providers.Text)
	if err != nil {
		return nil, err
	}
	router.Register(llm.FormatText, text)
	router.Register(llm.FormatJSON, text)

	if cfg.Providers.Vision != cfg.Providers.Text {
		vision, err := client(cfg.Providers.Vision)
		if err != nil {
			return nil, err
		}
		router.RegisterVision(vision)
	}

	speech, err := client(cfg.Providers.Speech)
	if err != nil {
		return nil, err
	}
	router.Register(llm.FormatAudio, speech)

	image, err := client(cfg.Providers.Image)
	if err != nil {
		return nil, err
	}
	router.Register(llm.FormatImage, image)

	return router, nil
}

func newProviderClient(ctx context.Context, name string, cfg *config.Config, httpClient *http.Client) (llm.Client, error) {
	switch name {
	case config.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			HTTPClient: httpClient,
		}), nil
	case config.ProviderGroq:
		return groq.NewClient(groq.Config{
			APIKey:     cfg.GroqAPIKey,
			HTTPClient: httpClient,
		})
	case config.ProviderGemini:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:   cfg.GeminiAPIKey,
			Project:  cfg.GCPProject,
			Location: cfg.Gemini.Location,
		})
	case config.ProviderElevenLabs:
		return elevenlabs.NewClient(elevenlabs.Config{
			APIKeys:    cfg.ElevenLabsKeys(),
			VoiceID:    cfg.ElevenLabs.VoiceID,
			Voices:     cfg.ElevenLabs.Voices,
			Model:      cfg.ElevenLabs.Model,
			Speed:      cfg.ElevenLabs.Speed,
			Stability:  cfg.ElevenLabs.Stability,
			Similarity: cfg.ElevenLabs.Similarity,
			HTTPClient: httpClient,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// buildStore always writes locally so /media can serve artifacts. With the
// gcs backend every write is mirrored to the bucket.
func (b *BuildResult) buildStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	local := storage.NewLocalStorage(cfg.Media.Root, cfg.Media.URLPrefix)
	if err := local.EnsureDirectories(storage.CategoryAudio, storage.CategoryDiagrams, storage.CategoryUploads); err != nil {
		return nil, err
	}
	b.Media = local

	if cfg.Storage.Backend != config.StorageGCS {
		return local, nil
	}

	bucket, closeBucket, err := openBucket(ctx, cfg.GCSBucket, cfg.Storage.GCSPrefix)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, closeBucket)

	return storage.NewMirror(local, bucket), nil
}

// openBucket is swapped out in tests.
var openBucket = func(ctx context.Context, bucket, prefix string) (storage.Store, func() error, error) {
	gcs, err := storage.NewGCSStorage(ctx, bucket, prefix)
	if err != nil {
		return nil, nil, err
	}
	return gcs, gcs.Close, nil
}

func transformOptions(cfg *config.Config) (transform.Options, error) {
	models := make(map[transform.Kind]string, len(cfg.Models))
	for name, model := range cfg.Models {
		kind, err := transform.ParseKind(name)
		if err != nil {
			return transform.Options{}, fmt.Errorf("models: %w", err)
		}
		models[kind] = model
	}

	voice, err := transform.ParseVoice(cfg.Speech.Voice)
	if err != nil {
		return transform.Options{}, fmt.Errorf("speech: %w", err)
	}

	return transform.Options{
		Models:       models,
		Voice:        voice,
		AudioFormat:  cfg.Speech.Format,
		ImageSize:    cfg.Image.Size,
		ImageQuality: cfg.Image.Quality,
		ImageFormat:  cfg.Image.Format,
	}, nil
}
