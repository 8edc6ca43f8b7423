package transform

import (
	"a11y/internal/llm"
	"a11y/internal/storage"
)

type InputType string

const (
	InputText  InputType = "text"
	InputImage InputType = "image_bytes"
	InputEnum  InputType = "enum"
	InputFlag  InputType = "flag"
)

// InputField declares one request value. Optional fields without a value
// take Default.
type InputField struct {
	Name     string
	Type     InputType
	Required bool
	Allowed  []string
	Default  any
}

// OutputField is one structured reply key. When the reply lacks it the
// parser uses the value of the DefaultFrom input, or Default.
type OutputField struct {
	Name        string
	Default     string
	DefaultFrom string
}

// Artifact is where binary output lands.
type Artifact struct {
	Category string
	Basename string
	Ext      string
}

// Spec is the immutable description of one transform.
type Spec struct {
	Kind     Kind
	Inputs   []InputField
	Model    string
	Format   llm.Format
	Output   OutputKind
	Shape    []OutputField
	Artifact Artifact

	Voice        string
	ImageSize    string
	ImageQuality string
}

func (s *Spec) input(name string) (InputField, bool) {
	for _, f := range s.Inputs {
		if f.Name == name {
			return f, true
		}
	}
	return InputField{}, false
}

// FieldNames lists the structured output keys in declaration order.
func (s *Spec) FieldNames() []string {
	names := make([]string, len(s.Shape))
	for i, f := range s.Shape {
		names[i] = f.Name
	}
	return names
}

// Options tune the built-in spec table.
type Options struct {
	Models       map[Kind]string
	Voice        Voice
	AudioFormat  string
	ImageSize    string
	ImageQuality string
	ImageFormat  string
}

const (
	defaultAudioFormat = "mp3"
	defaultImageSize   = "1024x1024"
	defaultImageFormat = "png"
)

func DefaultModels() map[Kind]string {
	return map[Kind]string{
		KindImageDescription:      "gpt-4o-mini",
		KindTextToSpeech:          "gpt-4o-mini-tts",
		KindSignGloss:             "gpt-4.1-mini",
		KindVisualPlan:            "gpt-4.1-mini",
		KindDiagramImage:          "gpt-image-1",
		KindDocumentAccessibility: "gpt-4.1-mini",
		KindContentRouting:        "gpt-4o-mini",
		KindQualityReview:         "gpt-4o-mini",
	}
}

func (o Options) withDefaults() Options {
	models := DefaultModels()
	for k, m := range o.Models {
		if m != "" {
			models[k] = m
		}
	}
	o.Models = models

	if o.Voice == "" {
		o.Voice = VoiceAlloy
	}
	if o.AudioFormat == "" {
		o.AudioFormat = defaultAudioFormat
	}
	if o.ImageSize == "" {
		o.ImageSize = defaultImageSize
	}
	if o.ImageFormat == "" {
		o.ImageFormat = defaultImageFormat
	}
	return o
}

func textInput(name string) InputField {
	return InputField{Name: name, Type: InputText, Required: true}
}

// Specs builds the full transform table.
func Specs(opts Options) []Spec {
	o := opts.withDefaults()

	return []Spec{
		{
			Kind: KindImageDescription,
			Inputs: []InputField{
				{Name: "image", Type: InputImage, Required: true},
				{Name: "detail_level", Type: InputEnum, Allowed: stringValues(detailLevels), Default: string(DetailStandard)},
			},
			Model:  o.Models[KindImageDescription],
			Format: llm.FormatText,
			Output: OutputPlainText,
		},
		{
			Kind: KindTextToSpeech,
			Inputs: []InputField{
				textInput("text"),
				{Name: "voice", Type: InputEnum, Allowed: stringValues(voices), Default: string(o.Voice)},
			},
			Model:  o.Models[KindTextToSpeech],
			Format: llm.FormatAudio,
			Output: OutputBinaryFile,
			Artifact: Artifact{
				Category: storage.CategoryAudio,
				Basename: "audio_description",
				Ext:      o.AudioFormat,
			},
			Voice: string(o.Voice),
		},
		{
			Kind:   KindSignGloss,
			Inputs: []InputField{textInput("text")},
			Model:  o.Models[KindSignGloss],
			Format: llm.FormatJSON,
			Output: OutputStructured,
			Shape: []OutputField{
				{Name: "simplified_english", DefaultFrom: "text"},
				{Name: "asl_gloss"},
				{Name: "body_and_face_notes"},
			},
		},
		{
			Kind:   KindVisualPlan,
			Inputs: []InputField{textInput("text")},
			Model:  o.Models[KindVisualPlan],
			Format: llm.FormatJSON,
			Output: OutputStructured,
			Shape: []OutputField{
				{Name: "short_title", Default: "Visual Explanation"},
				{Name: "diagram_description"},
				{Name: "labels_and_nodes"},
				{Name: "simple_explanation"},
			},
		},
		{
			Kind:   KindDiagramImage,
			Inputs: []InputField{textInput("prompt")},
			Model:  o.Models[KindDiagramImage],
			Format: llm.FormatImage,
			Output: OutputBinaryFile,
			Artifact: Artifact{
				Category: storage.CategoryDiagrams,
				Basename: "diagram",
				Ext:      o.ImageFormat,
			},
			ImageSize:    o.ImageSize,
			ImageQuality: o.ImageQuality,
		},
		{
			Kind:   KindDocumentAccessibility,
			Inputs: []InputField{textInput("text")},
			Model:  o.Models[KindDocumentAccessibility],
			Format: llm.FormatJSON,
			Output: OutputStructured,
			Shape: []OutputField{
				{Name: "simplified_text"},
				{Name: "bullet_points"},
				{Name: "alt_summary"},
			},
		},
		{
			Kind: KindContentRouting,
			Inputs: []InputField{
				textInput("goal"),
				{Name: "has_image", Type: InputFlag, Default: false},
				{Name: "has_text", Type: InputFlag, Default: false},
			},
			Model:  o.Models[KindContentRouting],
			Format: llm.FormatJSON,
			Output: OutputStructured,
			Shape: []OutputField{
				{Name: "content_type", Default: string(ContentUnknown)},
				{Name: "recommended_pipelines"},
				{Name: "notes"},
			},
		},
		{
			Kind:   KindQualityReview,
			Inputs: []InputField{textInput("text")},
			Model:  o.Models[KindQualityReview],
			Format: llm.FormatJSON,
			Output: OutputStructured,
			Shape: []OutputField{
				{Name: "readability_level"},
				{Name: "issues"},
				{Name: "suggestions"},
			},
		},
	}
}
