package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"a11y/internal/app"
	"a11y/internal/media"
	"a11y/internal/transform"
)

type tool struct {
	Path   string   `json:"path"`
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
}

var tools = []tool{
	{Path: "/image-to-audio/", Title: "Image to audio description", Fields: []string{"image", "detail_level", "voice", "review"}},
	{Path: "/text-to-visual/", Title: "Text to visual explanation", Fields: []string{"text", "generate_diagram"}},
	{Path: "/text-to-sign/", Title: "Text to sign language gloss", Fields: []string{"text"}},
	{Path: "/document-accessible/", Title: "Accessible document", Fields: []string{"document", "generate_audio"}},
	{Path: "/analyze/", Title: "Content analysis", Fields: []string{"goal", "has_image", "has_text"}},
}

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tools":         tools,
		"detail_levels": transform.DetailLevels(),
		"voices":        transform.Voices(),
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) imageToAudio(c *gin.Context) {
	filename, data, err := formFile(c, "image")
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := s.pipeline.ImageToAudio(c.Request.Context(), app.ImageToAudioRequest{
		Image:       media.Image{Filename: filename, Data: data},
		DetailLevel: c.PostForm("detail_level"),
		Voice:       c.PostForm("voice"),
		Review:      formBool(c, "review"),
		SaveUpload:  true,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) textToVisual(c *gin.Context) {
	res, err := s.pipeline.TextToVisual(c.Request.Context(), c.PostForm("text"), formBool(c, "generate_diagram"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) textToSign(c *gin.Context) {
	res, err := s.pipeline.TextToSign(c.Request.Context(), c.PostForm("text"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) documentAccessible(c *gin.Context) {
	filename, data, err := formFile(c, "document")
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := s.pipeline.DocumentAccessible(c.Request.Context(), filename, data, formBool(c, "generate_audio"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) analyze(c *gin.Context) {
	res, err := s.pipeline.Analyze(c.Request.Context(), app.AnalyzeRequest{
		Goal:     c.PostForm("goal"),
		HasImage: formBool(c, "has_image"),
		HasText:  formBool(c, "has_text"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func formFile(c *gin.Context, field string) (string, []byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: %s file is required", transform.ErrInvalidInput, field)
	}

	f, err := header.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", field, err)
	}
	return header.Filename, data, nil
}

// formBool accepts checkbox values ("on") as well as strconv booleans.
func formBool(c *gin.Context, field string) bool {
	v := strings.ToLower(strings.TrimSpace(c.PostForm(field)))
	if v == "on" || v == "yes" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, transform.ErrInvalidInput),
		errors.Is(err, transform.ErrUnknownTransform),
		errors.Is(err, transform.ErrUnsupportedMedia):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, transform.ErrRemoteUnavailable),
		errors.Is(err, transform.ErrMalformedResponse),
		errors.Is(err, transform.ErrCodec):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Unhandled error", "path", c.FullPath(), "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
