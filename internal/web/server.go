package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"a11y/internal/app"
	"a11y/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

type Options struct {
	Pipeline       *app.Pipeline
	Metrics        *metrics.Collector
	MediaRoot      string
	MediaURLPrefix string
	Origins        []string
	RateLimit      float64
	RateBurst      int
	MaxUploadBytes int64
}

type Server struct {
	engine   *gin.Engine
	pipeline *app.Pipeline
}

func NewServer(opts Options) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), requestLogger())
	if opts.Metrics != nil {
		engine.Use(recordMetrics(opts.Metrics))
	}
	engine.Use(cors.New(corsConfig(opts.Origins)))

	if opts.MaxUploadBytes > 0 {
		engine.MaxMultipartMemory = opts.MaxUploadBytes
	}

	s := &Server{engine: engine, pipeline: opts.Pipeline}

	engine.GET("/", s.index)
	engine.GET("/healthz", s.health)
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.MediaRoot != "" && opts.MediaURLPrefix != "" {
		engine.Static(opts.MediaURLPrefix, opts.MediaRoot)
	}

	tools := engine.Group("/", rateLimit(opts.RateLimit, opts.RateBurst), limitBody(opts.MaxUploadBytes))
	tools.POST("/image-to-audio/", s.imageToAudio)
	tools.POST("/text-to-visual/", s.textToVisual)
	tools.POST("/text-to-sign/", s.textToSign)
	tools.POST("/document-accessible/", s.documentAccessible)
	tools.POST("/analyze/", s.analyze)

	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
