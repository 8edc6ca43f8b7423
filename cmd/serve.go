package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"a11y/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web interface",
	Long: `Serve the accessibility tools over HTTP. Generated audio, diagrams and
uploads are served from the media root under the configured URL prefix.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (defaults to server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, built, err := build(ctx)
	if err != nil {
		return err
	}
	defer built.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	server := web.NewServer(web.Options{
		Pipeline:       built.Pipeline,
		Metrics:        built.Metrics,
		MediaRoot:      cfg.Media.Root,
		MediaURLPrefix: cfg.Media.URLPrefix,
		Origins:        cfg.Server.Origins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})

	slog.Info("Starting server",
		"addr", addr,
		"media", cfg.Media.Root,
		"text", cfg.Providers.Text,
		"speech", cfg.Providers.Speech,
	)

	return server.Run(ctx, addr)
}
