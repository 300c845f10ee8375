package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inboxgist/inboxgist/internal/config"
	"github.com/inboxgist/inboxgist/internal/instrumentation"
	"github.com/inboxgist/inboxgist/internal/llm"
	"github.com/inboxgist/inboxgist/internal/logging"
	"github.com/inboxgist/inboxgist/internal/server"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode     bool
		httpAddr      string
		baseURL       string
		metricsConfig MetricsConfig
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the inboxgist HTTP API",
		Long: `Start the HTTP API server.

The server exposes the Google sign-in flow, the Gmail read routes under
/gmail, and the summarization route under /ai. Google OAuth client
credentials must be provided via GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET
(a .env file in the working directory is honored). Summarization requires
OPENROUTER_API_KEY; without it the /ai routes report a configuration error
while the rest of the API keeps working.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(debugMode, httpAddr, baseURL, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", server.DefaultAddr, "Listen address for the HTTP API. Can also use HTTP_ADDR env var.")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Externally visible base URL used for the OAuth redirect (default "+server.DefaultBaseURL+"). Can also use BASE_URL env var.")
	cmd.Flags().BoolVar(&metricsConfig.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsConfig.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(debugMode bool, httpAddr, baseURL string, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := setupLogger(debugMode)
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateOAuth(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Flags left at their defaults fall back to the environment.
	if httpAddr == "" || httpAddr == server.DefaultAddr {
		if addr := os.Getenv("HTTP_ADDR"); addr != "" {
			httpAddr = addr
		}
	}
	if baseURL == "" {
		baseURL = os.Getenv("BASE_URL")
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			metricsConfig.Enabled = parsed
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			logger.Info("metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}
	defer func() {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}
	}()

	// Summarization is optional: without an API key the /ai routes report a
	// configuration error while the Gmail routes keep working.
	var llmClient *llm.Client
	if err := cfg.ValidateLLM(); err != nil {
		logger.Warn("summarization disabled", logging.Err(err))
	} else {
		llmClient = llm.NewClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey,
			llm.WithModel(cfg.OpenRouterModel),
			llm.WithLogger(logger),
			llm.WithMetrics(provider.Metrics()),
		)
		logger.Info("summarization enabled", "model", llmClient.Model())
	}

	if cfg.UsingDefaultSessionSecret() {
		logger.Warn("SESSION_SECRET_KEY is at its default value; set a strong secret before exposing the server")
	}

	var auditLogger *instrumentation.AuditLogger
	if provider.Enabled() {
		auditLogger = instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging)
	}

	srv, err := server.NewServer(server.Config{
		Addr:               httpAddr,
		BaseURL:            baseURL,
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		SessionSecret:      cfg.SessionSecretKey,
		LLM:                llmClient,
		Logger:             logger,
		Metrics:            provider.Metrics(),
		AuditLogger:        auditLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// setupLogger builds the process-wide JSON logger.
func setupLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
