package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"a11y/internal/transform"
	"a11y/pkg/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show providers, models and key availability",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println(titleStyle.Render("a11y status"))

	printRows("Providers", [][2]string{
		{"text", cfg.Providers.Text},
		{"vision", cfg.Providers.Vision},
		{"speech", cfg.Providers.Speech},
		{"image", cfg.Providers.Image},
	})

	keys := [][2]string{
		{config.ProviderOpenAI, keyState(cfg.OpenAIAPIKey, cfg.UsesProvider(config.ProviderOpenAI))},
		{config.ProviderGroq, keyState(cfg.GroqAPIKey, cfg.UsesProvider(config.ProviderGroq))},
		{config.ProviderGemini, geminiState(cfg)},
		{config.ProviderElevenLabs, keyState(cfg.ElevenLabsAPIKey, cfg.UsesProvider(config.ProviderElevenLabs))},
	}
	printRows("API keys", keys)

	models := transform.DefaultModels()
	rows := make([][2]string, 0, len(models))
	for _, kind := range transform.Kinds() {
		model := models[kind]
		if m := cfg.Models[string(kind)]; m != "" {
			model = m
		}
		rows = append(rows, [2]string{string(kind), model})
	}
	printRows("Models", rows)

	storage := cfg.Storage.Backend
	if cfg.Storage.Backend == config.StorageGCS {
		storage = fmt.Sprintf("local + gs://%s/%s", cfg.GCSBucket, cfg.Storage.GCSPrefix)
	}
	printRows("Output", [][2]string{
		{"media root", cfg.Media.Root},
		{"url prefix", cfg.Media.URLPrefix},
		{"storage", storage},
		{"voice", cfg.Speech.Voice + " (" + cfg.Speech.Format + ")"},
		{"server", cfg.Server.Addr},
	})

	return nil
}

func keyState(key string, inUse bool) string {
	switch {
	case !inUse:
		return mutedStyle.Render("unused")
	case key == "":
		return warnStyle.Render("missing")
	default:
		return successStyle.Render("set " + maskKey(key))
	}
}

func geminiState(cfg *config.Config) string {
	if cfg.UsesProvider(config.ProviderGemini) && cfg.GeminiAPIKey == "" && cfg.GCPProject != "" {
		return successStyle.Render("vertex ai (" + cfg.GCPProject + ")")
	}
	return keyState(cfg.GeminiAPIKey, cfg.UsesProvider(config.ProviderGemini))
}

// maskKey keeps the last four characters of each comma-separated key.
func maskKey(key string) string {
	parts := strings.Split(key, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) > 4 {
			p = "…" + p[len(p)-4:]
		}
		parts[i] = p
	}
	return strings.Join(slices.DeleteFunc(parts, func(s string) bool { return s == "" }), ", ")
}

func printRows(title string, rows [][2]string) {
	fmt.Println(labelStyle.Render(title))
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r[0]))
	}
	name := lipgloss.NewStyle().Width(width + 2)
	for _, r := range rows {
		fmt.Println("  " + name.Render(r[0]) + r[1])
	}
	fmt.Println()
}
