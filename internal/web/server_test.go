package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a11y/internal/app"
	"a11y/internal/document"
	"a11y/internal/metrics"
	"a11y/internal/storage"
	"a11y/internal/transform"
)

type fakeExecutor struct {
	results map[transform.Kind]*transform.Result
	err     error
}

func (f *fakeExecutor) Execute(_ context.Context, req transform.Request) (*transform.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[req.Kind]; ok {
		return res, nil
	}
	return &transform.Result{Kind: req.Kind, Fields: map[string]string{}}, nil
}

type testServer struct {
	handler   http.Handler
	mediaRoot string
	collector *metrics.Collector
}

func newTestServer(t *testing.T, exec transform.Executor, mutate ...func(*Options)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	store := storage.NewLocalStorage(root, "/media")
	require.NoError(t, store.EnsureDirectories(storage.CategoryAudio, storage.CategoryUploads))

	pipeline := app.NewPipeline(app.NewService(app.ServiceOptions{
		Executor:  exec,
		Extractor: document.NewExtractor(""),
		Store:     store,
	}))

	collector := metrics.NewCollector()
	opts := Options{
		Pipeline:       pipeline,
		Metrics:        collector,
		MediaRoot:      root,
		MediaURLPrefix: "/media",
		Origins:        []string{"*"},
		MaxUploadBytes: 1 << 20,
	}
	for _, m := range mutate {
		m(&opts)
	}

	return &testServer{handler: NewServer(opts).Handler(), mediaRoot: root, collector: collector}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postMultipart(t *testing.T, path, field, filename string, content []byte, values map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["tools"], len(tools))
	assert.Len(t, body["voices"], len(transform.Voices()))
	assert.Contains(t, body["detail_levels"], "detailed")
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestTextToSign(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{results: map[transform.Kind]*transform.Result{
		transform.KindSignGloss: {Fields: map[string]string{
			"simplified_english":  "Store I go.",
			"asl_gloss":           "STORE I GO",
			"body_and_face_notes": "Eyebrows up.",
		}},
	}})

	w := ts.do(postForm("/text-to-sign/", url.Values{"text": {"I am going to the store."}}))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "STORE I GO", body["asl_gloss"])
	assert.Equal(t, "Eyebrows up.", body["body_and_face_notes"])
}

func TestTextToVisual(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{results: map[transform.Kind]*transform.Result{
		transform.KindVisualPlan: {Fields: map[string]string{
			"short_title":         "Photosynthesis",
			"diagram_description": "Sun, leaf, arrows",
			"labels_and_nodes":    "Sun\nLeaf\nSugar",
			"simple_explanation":  "Plants make food from light.",
		}},
		transform.KindDiagramImage: {Artifact: &storage.ArtifactRef{RelativePath: "diagrams/diagram.png", Size: 5, URL: "/media/diagrams/diagram.png"}},
	}})

	w := ts.do(postForm("/text-to-visual/", url.Values{"text": {"How do plants eat?"}, "generate_diagram": {"on"}}))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Photosynthesis", body["short_title"])
	assert.Len(t, body["labels_and_nodes"], 3)
	diagram, ok := body["diagram"].(map[string]any)
	require.True(t, ok, "diagram missing: %v", body)
	assert.Equal(t, "diagrams/diagram.png", diagram["relative_path"])
}

func TestImageToAudio(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{results: map[transform.Kind]*transform.Result{
		transform.KindImageDescription: {Text: "A dog on a beach."},
		transform.KindTextToSpeech:     {Artifact: &storage.ArtifactRef{RelativePath: "audio/image_description.mp3", Size: 3}},
	}})

	req := postMultipart(t, "/image-to-audio/", "image", "dog.png", []byte("\x89PNG"), map[string]string{"detail_level": "brief"})
	w := ts.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "A dog on a beach.", body["description"])

	upload, ok := body["upload"].(map[string]any)
	require.True(t, ok, "upload missing: %v", body)
	rel, _ := upload["relative_path"].(string)
	assert.True(t, strings.HasPrefix(rel, "uploads/") && strings.HasSuffix(rel, ".png"), rel)

	saved, err := os.ReadFile(filepath.Join(ts.mediaRoot, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), saved)
}

func TestImageToAudioMissingFile(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{})

	w := ts.do(postMultipart(t, "/image-to-audio/", "", "", nil, map[string]string{"detail_level": "brief"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "image")
}

func TestImageToAudioInvalidVoice(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{})

	w := ts.do(postMultipart(t, "/image-to-audio/", "image", "dog.png", []byte("\x89PNG"), map[string]string{"voice": "robot"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "voice")

	entries, err := os.ReadDir(filepath.Join(ts.mediaRoot, storage.CategoryUploads))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDocumentAccessible(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{results: map[transform.Kind]*transform.Result{
		transform.KindDocumentAccessibility: {Fields: map[string]string{
			"simplified_text": "Short text.",
			"bullet_points":   "- one\n- two",
			"alt_summary":     "",
		}},
	}})

	req := postMultipart(t, "/document-accessible/", "document", "notes.txt", []byte("Some long notes."), map[string]string{"generate_audio": "true"})
	w := ts.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Short text.", body["simplified_text"])
	assert.Equal(t, []any{"one", "two"}, body["bullet_points"])
	assert.NotContains(t, body, "audio")
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{results: map[transform.Kind]*transform.Result{
		transform.KindContentRouting: {Fields: map[string]string{
			"content_type":          "Text",
			"recommended_pipelines": "text_to_sign",
			"notes":                 "",
		}},
	}})

	w := ts.do(postForm("/analyze/", url.Values{"goal": {"deaf audience"}, "has_text": {"1"}}))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "text", body["content_type"])
	assert.Equal(t, []any{"text_to_sign"}, body["recommended_pipelines"])
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "invalidInput",
			err:        &transform.InputError{Kind: transform.KindSignGloss, Problems: []transform.FieldProblem{{Field: "text", Reason: "required"}}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "text: required",
		},
		{
			name:       "unknownTransform",
			err:        transform.ErrUnknownTransform,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "unknown transform",
		},
		{
			name:       "remoteUnavailable",
			err:        fmt.Errorf("sign_gloss: %w", transform.ErrRemoteUnavailable),
			wantStatus: http.StatusBadGateway,
			wantMsg:    "sign_gloss",
		},
		{
			name:       "malformedResponse",
			err:        transform.ErrMalformedResponse,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "unclassified",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeExecutor{err: tt.err})

			w := ts.do(postForm("/text-to-sign/", url.Values{"text": {"hello"}}))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantMsg != "" {
				assert.Contains(t, decode(t, w)["error"], tt.wantMsg)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{}, func(o *Options) {
		o.RateLimit = 0.001
		o.RateBurst = 1
	})

	first := ts.do(postForm("/text-to-sign/", url.Values{"text": {"one"}}))
	second := ts.do(postForm("/text-to-sign/", url.Values{"text": {"two"}}))
	health := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{})

	generated := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, generated.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	echoed := ts.do(req)
	assert.Equal(t, "abc-123", echoed.Header().Get(requestIDHeader))
}

func TestMediaServed(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{})
	require.NoError(t, os.WriteFile(filepath.Join(ts.mediaRoot, "audio", "doc_summary.mp3"), []byte("ID3"), 0644))

	w := ts.do(httptest.NewRequest(http.MethodGet, "/media/audio/doc_summary.mp3", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ID3", w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeExecutor{})
	ts.do(postForm("/text-to-sign/", url.Values{"text": {"hello"}}))

	w := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `a11y_http_requests_total{method="POST",path="/text-to-sign/",status="200"} 1`)
}

func TestFormBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "on", want: true},
		{value: "true", want: true},
		{value: "1", want: true},
		{value: "Yes", want: true},
		{value: "", want: false},
		{value: "off", want: false},
		{value: "garbage", want: false},
	}

	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = postForm("/", url.Values{"flag": {tt.value}})
			assert.Equal(t, tt.want, formBool(c, "flag"))
		})
	}
}
