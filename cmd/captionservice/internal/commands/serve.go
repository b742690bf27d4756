package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/adampresley/imagecaptioning/cmd/captionservice/internal/captions"
	"github.com/adampresley/imagecaptioning/pkg/captioner"
	"github.com/adampresley/imagecaptioning/pkg/logging"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

const (
	ProviderCatalog = "catalog"
	ProviderGemini  = "gemini"
)

type serveOptions struct {
	host          string
	logLevel      string
	uploadsDir    string
	catalogPath   string
	provider      string
	geminiApiKey  string
	geminiModel   string
	minDelay      time.Duration
	maxDelay      time.Duration
	maxConcurrent int
	maxUploadMB   int64
}

func newServeCmd(version string) *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the caption HTTP endpoint",
		Example: `  # Serve catalog captions on the default address
  captionservice serve

  # Use Gemini with no artificial delay
  GEMINI_API_KEY=... captionservice serve --provider gemini --min-delay 0 --max-delay 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(envOr(opts.logLevel, "LOG_LEVEL", "info"), "captionservice", version)
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "localhost:5000", "Address to listen on")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.uploadsDir, "uploads", "uploads", "Directory uploaded images are saved to")
	cmd.Flags().StringVar(&opts.catalogPath, "captions", "", "YAML file with the caption catalog")
	cmd.Flags().StringVar(&opts.provider, "provider", ProviderCatalog, "Caption provider (catalog or gemini)")
	cmd.Flags().StringVar(&opts.geminiApiKey, "gemini-api-key", "", "Gemini API key. Defaults to $GEMINI_API_KEY")
	cmd.Flags().StringVar(&opts.geminiModel, "gemini-model", captioner.DefaultGeminiModel, "Gemini model name")
	cmd.Flags().DurationVar(&opts.minDelay, "min-delay", 5*time.Second, "Minimum simulated processing time")
	cmd.Flags().DurationVar(&opts.maxDelay, "max-delay", 10*time.Second, "Maximum simulated processing time")
	cmd.Flags().IntVar(&opts.maxConcurrent, "max-concurrent", 4, "Caption generations allowed at once")
	cmd.Flags().Int64Var(&opts.maxUploadMB, "max-upload-mb", 16, "Largest accepted upload in MB")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	var (
		err       error
		catalog   captioner.Catalog
		generator captioner.Generator
	)

	if catalog, err = loadCatalog(opts.catalogPath); err != nil {
		return err
	}

	if generator, err = newGenerator(opts, catalog); err != nil {
		return err
	}

	controller := captions.NewCaptionController(captions.CaptionControllerConfig{
		Catalog:       catalog,
		Generator:     generator,
		MaxConcurrent: opts.maxConcurrent,
		MaxDelay:      opts.maxDelay,
		MaxUploadMB:   opts.maxUploadMB,
		MinDelay:      opts.minDelay,
		UploadsDir:    opts.uploadsDir,
	})

	server := &http.Server{
		Addr:              opts.host,
		Handler:           newHandler(controller),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		slog.Info("caption service started", "host", opts.host, "provider", opts.provider, "captions", catalog.Len())

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down caption service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err = server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error shutting down caption service", "error", err)
			return err
		}

		controller.Stop()
		slog.Info("caption service stopped")
		return nil

	case err = <-serverErr:
		controller.Stop()
		return fmt.Errorf("error running caption service: %w", err)
	}
}

func newHandler(controller captions.CaptionHandlers) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate_caption", controller.GenerateCaption)
	mux.HandleFunc("POST /next_caption", controller.NextCaption)
	mux.HandleFunc("GET /heartbeat", controller.Heartbeat)

	return cors.Default().Handler(mux)
}

func loadCatalog(path string) (captioner.Catalog, error) {
	if path == "" {
		return captioner.DefaultCatalog(), nil
	}

	catalog, err := captioner.LoadCatalog(path)

	if err != nil {
		return captioner.Catalog{}, fmt.Errorf("error loading caption catalog: %w", err)
	}

	return catalog, nil
}

func newGenerator(opts serveOptions, catalog captioner.Catalog) (captioner.Generator, error) {
	switch opts.provider {
	case "", ProviderCatalog:
		return captioner.NewCatalogGenerator(catalog), nil

	case ProviderGemini:
		apiKey := envOr(opts.geminiApiKey, "GEMINI_API_KEY", "")

		if apiKey == "" {
			return nil, fmt.Errorf("the gemini provider needs --gemini-api-key or GEMINI_API_KEY")
		}

		return captioner.NewGeminiGenerator(captioner.GeminiGeneratorConfig{
			ApiKey:  apiKey,
			Catalog: catalog,
			Model:   opts.geminiModel,
		}), nil

	default:
		return nil, fmt.Errorf("unknown caption provider '%s'", opts.provider)
	}
}

func envOr(value, envName, fallback string) string {
	if value != "" {
		return value
	}

	if env := os.Getenv(envName); env != "" {
		return env
	}

	return fallback
}
