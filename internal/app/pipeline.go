package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"a11y/internal/document"
	"a11y/internal/media"
	"a11y/internal/storage"
	"a11y/internal/transform"
)

const (
	imageAudioBasename    = "image_description"
	documentAudioBasename = "doc_summary"
)

type Pipeline struct {
	service *Service
}

func NewPipeline(service *Service) *Pipeline {
	return &Pipeline{service: service}
}

type ImageToAudioRequest struct {
	Image       media.Image
	DetailLevel string
	Voice       string
	Review      bool
	// SaveUpload keeps a copy of the image under uploads/.
	SaveUpload bool
}

type ImageToAudioResult struct {
	Description string               `json:"description"`
	Upload      *storage.ArtifactRef `json:"upload,omitempty"`
	Audio       *storage.ArtifactRef `json:"audio"`
	Review      *ReviewResult        `json:"review,omitempty"`
}

// ImageToAudio describes an image and speaks the description. The detail
// level and voice are checked before any remote call, and the upload is only
// kept once the audio exists.
func (pipeline *Pipeline) ImageToAudio(ctx context.Context, request ImageToAudioRequest) (*ImageToAudioResult, error) {
	describe := transform.NewRequest(transform.KindImageDescription).With("image", request.Image)
	if request.DetailLevel != "" {
		level, err := transform.ParseDetailLevel(request.DetailLevel)
		if err != nil {
			return nil, err
		}
		describe = describe.With("detail_level", string(level))
	}

	voice := request.Voice
	if voice != "" {
		v, err := transform.ParseVoice(voice)
		if err != nil {
			return nil, err
		}
		voice = string(v)
	}

	result := &ImageToAudioResult{}

	slog.Info("Describing image...", "file", request.Image.Filename, "detail_level", request.DetailLevel)
	description, err := pipeline.service.Execute(ctx, describe)
	if err != nil {
		return nil, fmt.Errorf("describe image: %w", err)
	}
	result.Description = description.Text

	slog.Info("Generating audio...", "length", len(description.Text))
	audio, err := pipeline.speak(ctx, description.Text, voice, imageAudioBasename)
	if err != nil {
		return nil, err
	}
	result.Audio = audio

	if request.SaveUpload {
		ref, err := pipeline.SaveUpload(ctx, request.Image.Filename, request.Image.Data)
		if err != nil {
			return nil, err
		}
		result.Upload = &ref
	}

	if request.Review {
		review, err := pipeline.Review(ctx, description.Text)
		if err != nil {
			slog.Warn("Quality review failed", "error", err)
		} else {
			result.Review = review
		}
	}

	return result, nil
}

type SignResult struct {
	SimplifiedEnglish string `json:"simplified_english"`
	ASLGloss          string `json:"asl_gloss"`
	BodyAndFaceNotes  string `json:"body_and_face_notes"`
}

func (pipeline *Pipeline) TextToSign(ctx context.Context, text string) (*SignResult, error) {
	slog.Info("Generating sign language gloss...", "length", len(text))
	res, err := pipeline.service.Execute(ctx, transform.NewRequest(transform.KindSignGloss).With("text", text))
	if err != nil {
		return nil, fmt.Errorf("sign gloss: %w", err)
	}

	return &SignResult{
		SimplifiedEnglish: res.Field("simplified_english"),
		ASLGloss:          res.Field("asl_gloss"),
		BodyAndFaceNotes:  res.Field("body_and_face_notes"),
	}, nil
}

type VisualResult struct {
	ShortTitle         string               `json:"short_title"`
	DiagramDescription string               `json:"diagram_description"`
	LabelsAndNodes     []string             `json:"labels_and_nodes"`
	SimpleExplanation  string               `json:"simple_explanation"`
	Diagram            *storage.ArtifactRef `json:"diagram,omitempty"`
}

// TextToVisual plans a visual explanation and optionally renders the
// diagram it describes.
func (pipeline *Pipeline) TextToVisual(ctx context.Context, text string, generateDiagram bool) (*VisualResult, error) {
	slog.Info("Planning visual explanation...", "length", len(text))
	plan, err := pipeline.service.Execute(ctx, transform.NewRequest(transform.KindVisualPlan).With("text", text))
	if err != nil {
		return nil, fmt.Errorf("visual plan: %w", err)
	}

	result := &VisualResult{
		ShortTitle:         plan.Field("short_title"),
		DiagramDescription: plan.Field("diagram_description"),
		LabelsAndNodes:     plan.List("labels_and_nodes"),
		SimpleExplanation:  plan.Field("simple_explanation"),
	}

	if !generateDiagram {
		return result, nil
	}
	if strings.TrimSpace(result.DiagramDescription) == "" {
		slog.Warn("Visual plan has no diagram description, skipping diagram")
		return result, nil
	}

	slog.Info("Generating diagram...")
	diagram, err := pipeline.service.Execute(ctx, transform.NewRequest(transform.KindDiagramImage).With("prompt", result.DiagramDescription))
	if err != nil {
		return nil, fmt.Errorf("generate diagram: %w", err)
	}
	result.Diagram = diagram.Artifact

	return result, nil
}

type DocumentResult struct {
	Extracted      string               `json:"-"`
	SimplifiedText string               `json:"simplified_text"`
	BulletPoints   []string             `json:"bullet_points"`
	AltSummary     string               `json:"alt_summary"`
	Audio          *storage.ArtifactRef `json:"audio,omitempty"`
}

// DocumentAccessible extracts a document's text, rewrites it accessibly and
// optionally speaks the summary. Unreadable formats flow through as the
// extractor's sentinel text.
func (pipeline *Pipeline) DocumentAccessible(ctx context.Context, filename string, data []byte, generateAudio bool) (*DocumentResult, error) {
	slog.Info("Extracting document text...", "file", filename, "size", len(data))
	text, err := pipeline.service.extractor.Extract(filename, data)
	if err != nil {
		return nil, fmt.Errorf("extract document: %w", err)
	}
	if text == document.Unsupported {
		slog.Warn("Document format not readable", "file", filename)
	}

	acc, err := pipeline.service.Execute(ctx, transform.NewRequest(transform.KindDocumentAccessibility).With("text", text))
	if err != nil {
		return nil, fmt.Errorf("make document accessible: %w", err)
	}

	result := &DocumentResult{
		Extracted:      text,
		SimplifiedText: acc.Field("simplified_text"),
		BulletPoints:   acc.List("bullet_points"),
		AltSummary:     acc.Field("alt_summary"),
	}

	if generateAudio && strings.TrimSpace(result.AltSummary) != "" {
		slog.Info("Generating audio summary...")
		audio, err := pipeline.speak(ctx, result.AltSummary, "", documentAudioBasename)
		if err != nil {
			return nil, err
		}
		result.Audio = audio
	}

	return result, nil
}

type AnalyzeRequest struct {
	Goal     string
	HasImage bool
	HasText  bool
}

type AnalyzeResult struct {
	ContentType transform.ContentType `json:"content_type"`
	Pipelines   []string              `json:"recommended_pipelines"`
	Notes       string                `json:"notes"`
}

// Analyze asks the remote model which pipelines fit the user's goal.
func (pipeline *Pipeline) Analyze(ctx context.Context, request AnalyzeRequest) (*AnalyzeResult, error) {
	req := transform.NewRequest(transform.KindContentRouting).
		With("goal", request.Goal).
		With("has_image", request.HasImage).
		With("has_text", request.HasText)

	slog.Info("Analyzing content...", "has_image", request.HasImage, "has_text", request.HasText)
	res, err := pipeline.service.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("analyze content: %w", err)
	}

	return &AnalyzeResult{
		ContentType: transform.ParseContentType(res.Field("content_type")),
		Pipelines:   res.List("recommended_pipelines"),
		Notes:       res.Field("notes"),
	}, nil
}

type ReviewResult struct {
	ReadabilityLevel string   `json:"readability_level"`
	Issues           []string `json:"issues"`
	Suggestions      []string `json:"suggestions"`
}

func (pipeline *Pipeline) Review(ctx context.Context, text string) (*ReviewResult, error) {
	res, err := pipeline.service.Execute(ctx, transform.NewRequest(transform.KindQualityReview).With("text", text))
	if err != nil {
		return nil, fmt.Errorf("quality review: %w", err)
	}

	return &ReviewResult{
		ReadabilityLevel: res.Field("readability_level"),
		Issues:           res.List("issues"),
		Suggestions:      res.List("suggestions"),
	}, nil
}

// Speak synthesizes text into audio/<basename>.
func (pipeline *Pipeline) Speak(ctx context.Context, text, voice, basename string) (*storage.ArtifactRef, error) {
	return pipeline.speak(ctx, text, voice, basename)
}

func (pipeline *Pipeline) speak(ctx context.Context, text, voice, basename string) (*storage.ArtifactRef, error) {
	req := transform.NewRequest(transform.KindTextToSpeech).With("text", text)
	if voice != "" {
		req = req.With("voice", voice)
	}
	req.Basename = basename

	res, err := pipeline.service.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("text to speech: %w", err)
	}
	return res.Artifact, nil
}

// SaveUpload stores an uploaded file under uploads/ with a random name that
// keeps the original extension.
func (pipeline *Pipeline) SaveUpload(ctx context.Context, filename string, data []byte) (storage.ArtifactRef, error) {
	ext := storage.SanitizeBasename(filepath.Ext(filename))
	if ext == "" {
		ext = "bin"
	}

	ref, err := pipeline.service.Store().Store(ctx, data, storage.CategoryUploads, uuid.NewString(), ext)
	if err != nil {
		return storage.ArtifactRef{}, fmt.Errorf("save upload: %w", err)
	}
	return ref, nil
}
