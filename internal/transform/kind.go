package transform

import (
	"fmt"
	"slices"
	"strings"
)

// Kind names one registered transform.
type Kind string

const (
	KindImageDescription      Kind = "image_description"
	KindTextToSpeech          Kind = "text_to_speech"
	KindSignGloss             Kind = "sign_gloss"
	KindVisualPlan            Kind = "visual_plan"
	KindDiagramImage          Kind = "diagram_image"
	KindDocumentAccessibility Kind = "document_accessibility"
	KindContentRouting        Kind = "content_routing"
	KindQualityReview         Kind = "quality_review"
)

var kinds = []Kind{
	KindImageDescription,
	KindTextToSpeech,
	KindSignGloss,
	KindVisualPlan,
	KindDiagramImage,
	KindDocumentAccessibility,
	KindContentRouting,
	KindQualityReview,
}

func Kinds() []Kind {
	return slices.Clone(kinds)
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	if !slices.Contains(kinds, k) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransform, s)
	}
	return k, nil
}

// OutputKind selects how a reply is parsed.
type OutputKind string

const (
	OutputStructured OutputKind = "structured"
	OutputPlainText  OutputKind = "plain_text"
	OutputBinaryFile OutputKind = "binary_file"
)

// DetailLevel is the verbosity of an image description.
type DetailLevel string

const (
	DetailBrief    DetailLevel = "brief"
	DetailStandard DetailLevel = "standard"
	DetailDetailed DetailLevel = "detailed"
)

var detailLevels = []DetailLevel{DetailBrief, DetailStandard, DetailDetailed}

func DetailLevels() []DetailLevel {
	return slices.Clone(detailLevels)
}

func ParseDetailLevel(s string) (DetailLevel, error) {
	d := DetailLevel(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: detail level %q must be one of %s", ErrInvalidInput, s, joinValues(detailLevels))
	}
	return d, nil
}

func (d DetailLevel) Valid() bool {
	return slices.Contains(detailLevels, d)
}

// ContentType is the routing verdict on what the user supplied.
type ContentType string

const (
	ContentImage   ContentType = "image"
	ContentText    ContentType = "text"
	ContentUnknown ContentType = "unknown"
)

// ParseContentType never fails: anything unrecognised is ContentUnknown.
func ParseContentType(s string) ContentType {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentImage:
		return ContentImage
	case ContentText:
		return ContentText
	default:
		return ContentUnknown
	}
}

// Voice is a speech synthesis voice name.
type Voice string

const (
	VoiceAlloy    Voice = "alloy"
	VoiceCoral    Voice = "coral"
	VoiceSage     Voice = "sage"
	VoiceNova     Voice = "nova"
	VoiceVerse    Voice = "verse"
	VoiceAsh      Voice = "ash"
	VoiceEmber    Voice = "ember"
	VoiceSpark    Voice = "spark"
	VoiceBreeze   Voice = "breeze"
	VoiceFlow     Voice = "flow"
	VoiceSpectrum Voice = "spectrum"
	VoiceEcho     Voice = "echo"
	VoiceFable    Voice = "fable"
	VoiceOnyx     Voice = "onyx"
	VoiceShimmer  Voice = "shimmer"
	VoiceBallad   Voice = "ballad"
)

var voices = []Voice{
	VoiceAlloy, VoiceCoral, VoiceSage, VoiceNova, VoiceVerse, VoiceAsh,
	VoiceEmber, VoiceSpark, VoiceBreeze, VoiceFlow, VoiceSpectrum,
	VoiceEcho, VoiceFable, VoiceOnyx, VoiceShimmer, VoiceBallad,
}

func Voices() []Voice {
	return slices.Clone(voices)
}

func ParseVoice(s string) (Voice, error) {
	v := Voice(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(voices, v) {
		return "", fmt.Errorf("%w: voice %q must be one of %s", ErrInvalidInput, s, joinValues(voices))
	}
	return v, nil
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func stringValues[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
