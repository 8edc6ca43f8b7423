package transform

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"a11y/internal/llm"
	"a11y/internal/media"
	"a11y/internal/storage"
	"a11y/pkg/prompts"
)

type fakeClient struct {
	body  string
	err   error
	calls []*llm.Call
}

func (f *fakeClient) Invoke(ctx context.Context, call *llm.Call) (*llm.Reply, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Reply{Body: f.body, Model: call.Model}, nil
}

func newTestRegistry(t *testing.T, client llm.Client) (*Registry, *storage.LocalStorage) {
	t.Helper()

	p, err := prompts.Default()
	require.NoError(t, err)

	store := storage.NewLocalStorage(t.TempDir(), "/media")
	r, err := NewRegistry(client, p, store, Specs(Options{}))
	require.NoError(t, err)
	return r, store
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func validRequest(kind Kind) Request {
	req := NewRequest(kind)
	switch kind {
	case KindImageDescription:
		return req.With("image", media.Image{Data: pngBytes, Filename: "photo.png"})
	case KindDiagramImage:
		return req.With("prompt", "flowchart of photosynthesis")
	case KindContentRouting:
		return req.With("goal", "help me read this menu").With("has_image", true)
	default:
		return req.With("text", "The cat is sleeping on the mat.")
	}
}

func TestExecuteStructuredFieldsAlwaysPresent(t *testing.T) {
	bodies := []struct {
		name string
		body string
	}{
		{name: "emptyObject", body: `{}`},
		{name: "unrelatedKeys", body: `{"foo": "bar"}`},
		{name: "nullValues", body: `{"asl_gloss": null, "short_title": null, "content_type": null}`},
	}

	for _, kind := range Kinds() {
		r, _ := newTestRegistry(t, &fakeClient{})
		spec, _ := r.Spec(kind)
		if spec.Output != OutputStructured {
			continue
		}

		for _, b := range bodies {
			t.Run(string(kind)+"/"+b.name, func(t *testing.T) {
				r, _ := newTestRegistry(t, &fakeClient{body: b.body})

				res, err := r.Execute(context.Background(), validRequest(kind))
				require.NoError(t, err)

				assert.Len(t, res.Fields, len(spec.Shape))
				for _, name := range spec.FieldNames() {
					_, ok := res.Fields[name]
					assert.True(t, ok, "field %s missing", name)
				}
			})
		}
	}
}

func TestExecuteStructuredDefaults(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		field string
		want  string
	}{
		{name: "signGlossFallsBackToInput", kind: KindSignGloss, field: "simplified_english", want: "The cat is sleeping on the mat."},
		{name: "signGlossEmptyGloss", kind: KindSignGloss, field: "asl_gloss", want: ""},
		{name: "visualPlanTitle", kind: KindVisualPlan, field: "short_title", want: "Visual Explanation"},
		{name: "routingUnknown", kind: KindContentRouting, field: "content_type", want: "unknown"},
		{name: "documentSummary", kind: KindDocumentAccessibility, field: "alt_summary", want: ""},
		{name: "reviewIssues", kind: KindQualityReview, field: "issues", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t, &fakeClient{body: `{}`})

			res, err := r.Execute(context.Background(), validRequest(tt.kind))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Field(tt.field))
		})
	}
}

func TestExecuteSignGlossScenario(t *testing.T) {
	client := &fakeClient{body: `{"simplified_english": "A cat sleeps.", "asl_gloss": "CAT SLEEP", "body_and_face_notes": "neutral"}`}
	r, _ := newTestRegistry(t, client)

	res, err := r.Execute(context.Background(), NewRequest(KindSignGloss).With("text", "The cat is sleeping on the mat."))
	require.NoError(t, err)

	assert.Equal(t, OutputStructured, res.Output)
	assert.Equal(t, map[string]string{
		"simplified_english":  "A cat sleeps.",
		"asl_gloss":           "CAT SLEEP",
		"body_and_face_notes": "neutral",
	}, res.Fields)

	require.Len(t, client.calls, 1)
	call := client.calls[0]
	assert.Equal(t, llm.FormatJSON, call.Format)
	assert.Equal(t, "gpt-4.1-mini", call.Model)
	assert.Contains(t, call.System(), "American Sign Language")
	assert.Equal(t, "The cat is sleeping on the mat.", call.Prompt())
}

func TestExecuteDiagramScenario(t *testing.T) {
	client := &fakeClient{body: base64.StdEncoding.EncodeToString(pngBytes)}
	r, store := newTestRegistry(t, client)

	res, err := r.Execute(context.Background(), NewRequest(KindDiagramImage).With("prompt", "flowchart of photosynthesis"))
	require.NoError(t, err)

	require.NotNil(t, res.Artifact)
	assert.Equal(t, "diagrams/diagram.png", res.Artifact.RelativePath)
	assert.Equal(t, int64(len(pngBytes)), res.Artifact.Size)
	assert.Equal(t, "/media/diagrams/diagram.png", res.Artifact.URL)

	data, err := os.ReadFile(store.Path(res.Artifact.RelativePath))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	call := client.calls[0]
	assert.Equal(t, llm.FormatImage, call.Format)
	assert.Equal(t, "1024x1024", call.ImageSize)
	assert.Equal(t, "png", call.ImageFormat)
	assert.Equal(t, "flowchart of photosynthesis", call.Prompt())
}

func TestExecuteTextToSpeech(t *testing.T) {
	audio := []byte("ID3 fake mp3")
	client := &fakeClient{body: base64.StdEncoding.EncodeToString(audio)}
	r, store := newTestRegistry(t, client)

	req := NewRequest(KindTextToSpeech).With("text", "A red bicycle.").With("voice", VoiceNova)
	req.Basename = "Image Description"

	res, err := r.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "audio/image_description.mp3", res.Artifact.RelativePath)
	assert.Equal(t, int64(len(audio)), res.Artifact.Size)
	_, err = os.Stat(store.Path(res.Artifact.RelativePath))
	require.NoError(t, err)

	call := client.calls[0]
	assert.Equal(t, llm.FormatAudio, call.Format)
	assert.Equal(t, "nova", call.Voice)
	assert.Equal(t, "mp3", call.AudioFormat)
	assert.Equal(t, "A red bicycle.", call.Prompt())
}

func TestExecuteTextToSpeechDefaultBasename(t *testing.T) {
	client := &fakeClient{body: base64.StdEncoding.EncodeToString([]byte("mp3"))}
	r, _ := newTestRegistry(t, client)

	req := NewRequest(KindTextToSpeech).With("text", "hello")
	req.Basename = "???"

	res, err := r.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "audio/audio_description.mp3", res.Artifact.RelativePath)
	assert.Equal(t, "alloy", client.calls[0].Voice)
}

func TestExecuteImageDescription(t *testing.T) {
	client := &fakeClient{body: "\n  A dog running on a beach.  \n"}
	r, _ := newTestRegistry(t, client)

	res, err := r.Execute(context.Background(), validRequest(KindImageDescription).With("detail_level", DetailDetailed))
	require.NoError(t, err)

	assert.Equal(t, OutputPlainText, res.Output)
	assert.Equal(t, "A dog running on a beach.", res.Text)
	assert.Nil(t, res.Artifact)

	call := client.calls[0]
	require.Len(t, call.Messages, 1)
	msg := call.Messages[0]
	assert.Equal(t, llm.RoleUser, msg.Role)
	assert.Contains(t, msg.Text(), "Detail level: DETAILED.")
	require.Len(t, msg.Parts, 2)
	assert.Equal(t, llm.PartImage, msg.Parts[1].Type)
	assert.True(t, strings.HasPrefix(msg.Parts[1].ImageURL, "data:image/png;base64,"))
}

func TestExecuteImageDescriptionDefaultDetail(t *testing.T) {
	client := &fakeClient{body: "desc"}
	r, _ := newTestRegistry(t, client)

	_, err := r.Execute(context.Background(), NewRequest(KindImageDescription).With("image", []byte{0xff, 0xd8}))
	require.NoError(t, err)

	msg := client.calls[0].Messages[0]
	assert.Contains(t, msg.Text(), "Detail level: STANDARD.")
	assert.True(t, strings.HasPrefix(msg.Parts[1].ImageURL, "data:image/jpeg;base64,"))
}

func TestExecuteInvalidDetailLevelMakesNoCalls(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		level := rapid.String().Filter(func(s string) bool {
			return !DetailLevel(s).Valid()
		}).Draw(rt, "level")

		client := &fakeClient{body: "unused"}
		r, _ := newTestRegistry(t, client)

		_, err := r.Execute(context.Background(), validRequest(KindImageDescription).With("detail_level", level))
		if !errors.Is(err, ErrInvalidInput) {
			rt.Fatalf("detail level %q: got %v, want invalid input", level, err)
		}
		if len(client.calls) != 0 {
			rt.Fatalf("detail level %q: %d remote calls, want 0", level, len(client.calls))
		}
	})
}

func TestExecuteBatchReportsProblems(t *testing.T) {
	client := &fakeClient{}
	r, _ := newTestRegistry(t, client)

	req := NewRequest(KindContentRouting).With("has_image", "yes").With("colour", "blue")
	_, err := r.Execute(context.Background(), req)

	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, KindContentRouting, inputErr.Kind)
	assert.Equal(t, []string{"goal", "has_image", "colour"}, inputErr.Fields())
	assert.Contains(t, err.Error(), "goal: required")
	assert.Empty(t, client.calls)
}

func TestExecuteRejectsBlankText(t *testing.T) {
	client := &fakeClient{}
	r, _ := newTestRegistry(t, client)

	_, err := r.Execute(context.Background(), NewRequest(KindSignGloss).With("text", "   "))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, client.calls)
}

func TestExecuteUnknownTransform(t *testing.T) {
	client := &fakeClient{}
	r, _ := newTestRegistry(t, client)

	_, err := r.Execute(context.Background(), NewRequest(Kind("braille")))
	assert.ErrorIs(t, err, ErrUnknownTransform)
	assert.Empty(t, client.calls)
}

func TestExecuteRemoteErrors(t *testing.T) {
	classified := llm.Unavailable("chat completion", errors.New("429 too many requests"))
	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name      string
		clientErr error
		wantIs    []error
		same      bool
	}{
		{name: "classifiedPassesThrough", clientErr: classified, wantIs: []error{ErrRemoteUnavailable}, same: true},
		{name: "unclassifiedIsWrapped", clientErr: cause, wantIs: []error{ErrRemoteUnavailable, cause}},
		{name: "malformedPassesThrough", clientErr: llm.Malformed("chat completion", "no choices"), wantIs: []error{ErrMalformedResponse}, same: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{err: tt.clientErr}
			r, _ := newTestRegistry(t, client)

			_, err := r.Execute(context.Background(), validRequest(KindVisualPlan))
			require.Error(t, err)
			for _, target := range tt.wantIs {
				assert.ErrorIs(t, err, target)
			}
			if tt.same {
				assert.Equal(t, tt.clientErr, err)
			}
			assert.Len(t, client.calls, 1)
		})
	}
}

func TestExecuteMalformedReplies(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		body string
	}{
		{name: "notJSON", kind: KindSignGloss, body: "Sure! Here is the gloss: CAT SLEEP"},
		{name: "jsonArray", kind: KindVisualPlan, body: `["a", "b"]`},
		{name: "truncatedJSON", kind: KindDocumentAccessibility, body: `{"simplified_text": "abc`},
		{name: "emptyStructured", kind: KindContentRouting, body: ""},
		{name: "blankPlainText", kind: KindImageDescription, body: "   "},
		{name: "emptyBinary", kind: KindDiagramImage, body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t, &fakeClient{body: tt.body})

			res, err := r.Execute(context.Background(), validRequest(tt.kind))
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.Nil(t, res)
		})
	}
}

func TestExecuteFencedJSON(t *testing.T) {
	body := "```json\n{\"short_title\": \"Water Cycle\", \"labels_and_nodes\": [\"Evaporation\", \"Condensation\"]}\n```"
	r, _ := newTestRegistry(t, &fakeClient{body: body})

	res, err := r.Execute(context.Background(), validRequest(KindVisualPlan))
	require.NoError(t, err)
	assert.Equal(t, "Water Cycle", res.Field("short_title"))
	assert.Equal(t, "Evaporation\nCondensation", res.Field("labels_and_nodes"))
}

func TestExecuteBadBinaryWritesNothing(t *testing.T) {
	r, store := newTestRegistry(t, &fakeClient{body: "%%% not base64 %%%"})

	_, err := r.Execute(context.Background(), validRequest(KindDiagramImage))
	assert.ErrorIs(t, err, ErrCodec)

	_, statErr := os.Stat(filepath.Join(store.Root(), storage.CategoryDiagrams))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecuteEmptyImageFailsBeforeCall(t *testing.T) {
	client := &fakeClient{body: "unused"}
	r, _ := newTestRegistry(t, client)

	_, err := r.Execute(context.Background(), NewRequest(KindImageDescription).With("image", media.Image{Filename: "a.png"}))
	assert.ErrorIs(t, err, ErrCodec)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
	assert.Empty(t, client.calls)
}

func TestContentRoutingPromptCarriesFlags(t *testing.T) {
	client := &fakeClient{body: `{"content_type": "IMAGE", "recommended_pipelines": ["image_to_audio", "text_to_sign"], "notes": "menu photo"}`}
	r, _ := newTestRegistry(t, client)

	res, err := r.Execute(context.Background(), validRequest(KindContentRouting))
	require.NoError(t, err)

	assert.Equal(t, ContentImage, ParseContentType(res.Field("content_type")))
	assert.Equal(t, []string{"image_to_audio", "text_to_sign"}, res.List("recommended_pipelines"))
	assert.Contains(t, client.calls[0].Prompt(), "- image: true")
	assert.Contains(t, client.calls[0].Prompt(), "- text: false")
}

func TestNewRegistryErrors(t *testing.T) {
	p, err := prompts.Default()
	require.NoError(t, err)
	store := storage.NewLocalStorage(t.TempDir(), "")
	specs := Specs(Options{})

	_, err = NewRegistry(nil, p, store, specs)
	assert.Error(t, err)

	_, err = NewRegistry(&fakeClient{}, p, nil, specs)
	assert.Error(t, err, "binary transforms need a store")

	_, err = NewRegistry(&fakeClient{}, &prompts.Prompts{Transforms: map[string]prompts.Template{}}, store, specs)
	assert.Error(t, err, "missing templates")

	_, err = NewRegistry(&fakeClient{}, p, store, append(specs, specs[0]))
	assert.Error(t, err, "duplicate kind")
}

func TestSpecsHonourOptions(t *testing.T) {
	specs := Specs(Options{
		Models:      map[Kind]string{KindSignGloss: "llama-3.3-70b-versatile"},
		Voice:       VoiceCoral,
		AudioFormat: "wav",
	})

	i := slices.IndexFunc(specs, func(s Spec) bool { return s.Kind == KindSignGloss })
	assert.Equal(t, "llama-3.3-70b-versatile", specs[i].Model)

	i = slices.IndexFunc(specs, func(s Spec) bool { return s.Kind == KindTextToSpeech })
	assert.Equal(t, "wav", specs[i].Artifact.Ext)
	assert.Equal(t, "coral", specs[i].Voice)

	i = slices.IndexFunc(specs, func(s Spec) bool { return s.Kind == KindVisualPlan })
	assert.Equal(t, "gpt-4.1-mini", specs[i].Model)
	assert.Len(t, specs, len(Kinds()))
}
