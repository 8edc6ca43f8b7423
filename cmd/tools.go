package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"a11y/internal/app"
	"a11y/internal/media"
	"a11y/internal/storage"
)

var jsonOutput bool

var (
	imageDetailLevel string
	imageVoice       string
	imageReview      bool
)

var imageToAudioCmd = &cobra.Command{
	Use:   "image-to-audio <image>",
	Short: "Describe an image and speak the description",
	Args:  cobra.ExactArgs(1),
	RunE:  runImageToAudio,
}

var textToSignCmd = &cobra.Command{
	Use:   "text-to-sign <text>",
	Short: "Simplify text and produce sign language gloss",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTextToSign,
}

var (
	visualText     string
	visualTextFile string
	visualDiagram  bool
)

var textToVisualCmd = &cobra.Command{
	Use:   "text-to-visual",
	Short: "Plan a visual explanation and optionally draw the diagram",
	RunE:  runTextToVisual,
}

var (
	analyzeGoal      string
	analyzeImagePath string
	analyzeText      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Recommend accessibility pipelines for some content",
	RunE:  runAnalyze,
}

var documentAudio bool

var documentCmd = &cobra.Command{
	Use:   "document <path>",
	Short: "Extract a .txt or .pdf and rewrite it accessibly",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocument,
}

var reviewCmd = &cobra.Command{
	Use:   "review <text>",
	Short: "Review an accessibility description for readability",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReview,
}

func init() {
	imageToAudioCmd.Flags().StringVarP(&imageDetailLevel, "detail-level", "d", "standard", "Description detail: brief, standard or detailed")
	imageToAudioCmd.Flags().StringVar(&imageVoice, "voice", "", "Speech voice (defaults to config)")
	imageToAudioCmd.Flags().BoolVar(&imageReview, "review", false, "Run a quality review of the description")

	textToVisualCmd.Flags().StringVarP(&visualText, "text", "t", "", "Text to explain")
	textToVisualCmd.Flags().StringVarP(&visualTextFile, "text-file", "f", "", "Read the text from a file")
	textToVisualCmd.Flags().BoolVar(&visualDiagram, "generate-image", false, "Also generate the diagram image")

	analyzeCmd.Flags().StringVarP(&analyzeGoal, "goal", "g", "", "What the content should become accessible for")
	analyzeCmd.Flags().StringVar(&analyzeImagePath, "image-path", "", "Image that accompanies the content")
	analyzeCmd.Flags().StringVarP(&analyzeText, "text", "t", "", "Text content")

	documentCmd.Flags().BoolVar(&documentAudio, "audio", false, "Speak the document summary")

	for _, c := range []*cobra.Command{imageToAudioCmd, textToSignCmd, textToVisualCmd, analyzeCmd, documentCmd, reviewCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
		rootCmd.AddCommand(c)
	}
}

func runImageToAudio(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	_, built, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer built.Close()

	var res *app.ImageToAudioResult
	err = runWithSpinner("Describing and speaking image", func() error {
		res, err = built.Pipeline.ImageToAudio(cmd.Context(), app.ImageToAudioRequest{
			Image:       media.Image{Filename: filepath.Base(args[0]), Data: data},
			DetailLevel: imageDetailLevel,
			Voice:       imageVoice,
			Review:      imageReview,
		})
		return err
	})
	if err != nil {
		return err
	}

	return printResult(res, func() {
		printSection("Description", res.Description)
		printArtifact("Audio", built.Media, res.Audio)
		if res.Review != nil {
			printSection("Readability", res.Review.ReadabilityLevel)
			printList("Issues", res.Review.Issues)
			printList("Suggestions", res.Review.Suggestions)
		}
	})
}

func runTextToSign(cmd *cobra.Command, args []string) error {
	_, built, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer built.Close()

	var res *app.SignResult
	err = runWithSpinner("Generating sign language gloss", func() error {
		res, err = built.Pipeline.TextToSign(cmd.Context(), strings.Join(args, " "))
		return err
	})
	if err != nil {
		return err
	}

	return printResult(res, func() {
		printSection("Simplified English", res.SimplifiedEnglish)
		printSection("ASL gloss", res.ASLGloss)
		printSection("Body and face", res.BodyAndFaceNotes)
	})
}

func runTextToVisual(cmd *cobra.Command, args []string) error {
	text := visualText
	if visualTextFile != "" {
		data, err := os.ReadFile(visualTextFile)
		if err != nil {
			return fmt.Errorf("read text file: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("please provide --text or --text-file")
	}

	_, built, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer built.Close()

	var res *app.VisualResult
	err = runWithSpinner("Planning visual explanation", func() error {
		res, err = built.Pipeline.TextToVisual(cmd.Context(), text, visualDiagram)
		return err
	})
	if err != nil {
		return err
	}

	return printResult(res, func() {
		printSection("Title", res.ShortTitle)
		printSection("Diagram", res.DiagramDescription)
		printList("Labels", res.LabelsAndNodes)
		printSection("Explanation", res.SimpleExplanation)
		printArtifact("Image", built.Media, res.Diagram)
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeGoal == "" {
		return errors.New("please provide --goal")
	}
	if analyzeImagePath != "" {
		if _, err := os.Stat(analyzeImagePath); err != nil {
			return fmt.Errorf("image path: %w", err)
		}
	}

	_, built, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer built.Close()

	var res *app.AnalyzeResult
	err = runWithSpinner("Analyzing content", func() error {
		res, err = built.Pipeline.Analyze(cmd.Context(), app.AnalyzeRequest{
			Goal:     analyzeGoal,
			HasImage: analyzeImagePath != "",
			HasText:  strings.TrimSpace(analyzeText) != "",
		})
		return err
	})
	if err != nil {
		return err
	}

	return printResult(res, func() {
		printSection("Content type", string(res.ContentType))
		printList("Pipelines", res.Pipelines)
		printSection("Notes", res.Notes)
	})
}

func runDocument(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	_, built, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer built.Close()

	var res *app.DocumentResult
	err = runWithSpinner("Making document accessible", func() error {
		res, err = built.Pipeline.DocumentAccessible(cmd.Context(), filepath.Base(args[0]), data, documentAudio)
		return err
	})
	if err != nil {
		return err
	}

	return printResult(res, func() {
		printSection("Simplified", res.SimplifiedText)
		printList("Key points", res.BulletPoints)
		printSection("Summary", res.AltSummary)
		printArtifact("Audio", built.Media, res.Audio)
	})
}

func runReview(cmd *cobra.Command, args []string) error {
	_, built, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer built.Close()

	var res *app.ReviewResult
	err = runWithSpinner("Reviewing text", func() error {
		res, err = built.Pipeline.Review(cmd.Context(), strings.Join(args, " "))
		return err
	})
	if err != nil {
		return err
	}

	return printResult(res, func() {
		printSection("Readability", res.ReadabilityLevel)
		printList("Issues", res.Issues)
		printList("Suggestions", res.Suggestions)
	})
}

func printResult(v any, pretty func()) error {
	if !jsonOutput {
		pretty()
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSection(title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Println(labelStyle.Render(title))
	fmt.Println(body)
	fmt.Println()
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Println(labelStyle.Render(title))
	for _, item := range items {
		fmt.Println("  • " + item)
	}
	fmt.Println()
}

func printArtifact(title string, local *storage.LocalStorage, ref *storage.ArtifactRef) {
	if ref == nil {
		return
	}
	fmt.Println(labelStyle.Render(title))
	fmt.Println(successStyle.Render(fmt.Sprintf("✓ %s (%d bytes)", local.Path(ref.RelativePath), ref.Size)))
	fmt.Println()
}
