package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"a11y/internal/storage"
	"a11y/pkg/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

const envFile = ".env"

// envOrder fixes the key order written to .env.
var envOrder = []string{
	"OPENAI_API_KEY",
	"OPENAI_BASE_URL",
	"GROQ_API_KEY",
	"GEMINI_API_KEY",
	"ELEVENLABS_API_KEY",
	"GOOGLE_CLOUD_PROJECT",
	"GCS_BUCKET",
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Long:  `Choose providers, enter API keys and create the media directories.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("a11y setup"))

	root := mediaRoot(cmd)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Creating directories", func() error { return createDirectories(root) }},
		{"Configuring environment", configureEnv},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	return nil
}

// mediaRoot reads media.root from config, falling back to the default when
// the config cannot be loaded yet.
func mediaRoot(cmd *cobra.Command) string {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		slog.Debug("Config not loadable, using default media root", "error", err)
		return config.DefaultMediaRoot
	}
	return cfg.Media.Root
}

func createDirectories(root string) error {
	for _, dir := range []string{storage.CategoryAudio, storage.CategoryDiagrams, storage.CategoryUploads} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	fmt.Println(successStyle.Render("✓ Created media directories in " + root))
	return nil
}

func configureEnv() error {
	if _, err := os.Stat(envFile); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing .env file").
			Description("Overwrite?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing .env"))
			return nil
		}
	}

	providers, err := chooseProviders()
	if err != nil {
		return err
	}

	env := make(map[string]string)
	if err := configureKeys(env, providers); err != nil {
		return err
	}
	if err := configureGCP(env); err != nil {
		return err
	}

	if err := writeEnvFile(env); err != nil {
		return err
	}
	printNextSteps(providers)
	return nil
}

func chooseProviders() (config.ProvidersConfig, error) {
	p := config.ProvidersConfig{
		Text:   config.ProviderOpenAI,
		Speech: config.ProviderOpenAI,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Text provider").
				Description("Used for sign gloss, visual plans, documents and routing").
				Options(
					huh.NewOption("OpenAI", config.ProviderOpenAI),
					huh.NewOption("Groq", config.ProviderGroq),
					huh.NewOption("Gemini", config.ProviderGemini),
				).
				Value(&p.Text),
			huh.NewSelect[string]().
				Title("Speech provider").
				Options(
					huh.NewOption("OpenAI", config.ProviderOpenAI),
					huh.NewOption("ElevenLabs", config.ProviderElevenLabs),
				).
				Value(&p.Speech),
		),
	)
	if err := form.Run(); err != nil {
		return p, err
	}
	return p, nil
}

// configureKeys asks for the key of every provider in use. OpenAI is always
// needed for diagram images.
func configureKeys(env map[string]string, p config.ProvidersConfig) error {
	var openaiKey, groqKey, geminiKey, elevenKey string

	fields := []huh.Field{
		huh.NewInput().
			Title("OpenAI API Key").
			Description("https://platform.openai.com/api-keys").
			EchoMode(huh.EchoModePassword).
			Value(&openaiKey).
			Validate(required("OpenAI API Key")),
	}
	if p.Text == config.ProviderGroq {
		fields = append(fields, huh.NewInput().
			Title("Groq API Key").
			Description("https://console.groq.com/keys").
			EchoMode(huh.EchoModePassword).
			Value(&groqKey).
			Validate(required("Groq API Key")))
	}
	if p.Text == config.ProviderGemini {
		fields = append(fields, huh.NewInput().
			Title("Gemini API Key").
			Description("Leave empty to use Vertex AI with GOOGLE_CLOUD_PROJECT").
			EchoMode(huh.EchoModePassword).
			Value(&geminiKey))
	}
	if p.Speech == config.ProviderElevenLabs {
		fields = append(fields, huh.NewInput().
			Title("ElevenLabs API Key").
			Description("Comma-separate several keys to rotate on quota errors").
			EchoMode(huh.EchoModePassword).
			Value(&elevenKey).
			Validate(required("ElevenLabs API Key")))
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	env["OPENAI_API_KEY"] = strings.TrimSpace(openaiKey)
	env["GROQ_API_KEY"] = strings.TrimSpace(groqKey)
	env["GEMINI_API_KEY"] = strings.TrimSpace(geminiKey)
	env["ELEVENLABS_API_KEY"] = strings.TrimSpace(elevenKey)
	return nil
}

func configureGCP(env map[string]string) error {
	var setupGCP bool
	if err := huh.NewConfirm().
		Title("Setup Google Cloud?").
		Description("For Secret Manager keys, Vertex AI and mirroring media to Cloud Storage").
		Value(&setupGCP).
		Run(); err != nil {
		return err
	}

	if !setupGCP {
		return nil
	}

	project := getActiveProject()
	var bucket string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project ID").
				Value(&project).
				Validate(required("Project ID")),
			huh.NewInput().
				Title("Cloud Storage bucket").
				Description("Optional. Generated media is mirrored here").
				Value(&bucket),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	env["GOOGLE_CLOUD_PROJECT"] = strings.TrimSpace(project)
	env["GCS_BUCKET"] = strings.TrimSpace(bucket)

	if !commandExists("gcloud") {
		fmt.Println(warnStyle.Render("gcloud CLI not found, skipping API enablement"))
		return nil
	}
	if err := enableGCPAPIs(env["GOOGLE_CLOUD_PROJECT"]); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("API enablement failed: %v", err)))
	}
	return nil
}

func getActiveProject() string {
	if !commandExists("gcloud") {
		return ""
	}
	out, err := exec.Command("gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func enableGCPAPIs(project string) error {
	apis := []string{
		"secretmanager.googleapis.com",
		"storage.googleapis.com",
		"aiplatform.googleapis.com",
	}

	return runWithSpinner("Enabling APIs", func() error {
		args := append([]string{"services", "enable"}, apis...)
		args = append(args, "--project", project)
		return runSetupCmd("gcloud", args...)
	})
}

func writeEnvFile(env map[string]string) error {
	f, err := os.Create(envFile)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for _, key := range envOrder {
		if val, ok := env[key]; ok && val != "" {
			_, _ = fmt.Fprintf(f, "%s=%s\n", key, val)
		}
	}

	fmt.Println(successStyle.Render("✓ Created .env file"))
	return nil
}

func printNextSteps(p config.ProvidersConfig) {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	if p.Text != config.ProviderOpenAI || p.Speech != config.ProviderOpenAI {
		fmt.Printf("  1. Add to config.yaml:\n     providers:\n       text: %s\n       speech: %s\n", p.Text, p.Speech)
	} else {
		fmt.Println("  1. Optionally tune models and voices in config.yaml")
	}
	fmt.Println("  2. Check the setup: a11y status")
	fmt.Println("  3. Run: a11y serve, or a11y text-to-sign \"Hello, how are you?\"")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runSetupCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, stderr.String())
	}
	return nil
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
