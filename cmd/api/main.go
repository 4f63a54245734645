package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"videokit/internal/adapter/repo"
	"videokit/internal/gallery"
	"videokit/internal/http/handlers"
	httpapi "videokit/internal/http/httpapi"
	"videokit/internal/infra"
	"videokit/internal/jobs"
	"videokit/internal/poller"
	"videokit/internal/preferences"
	"videokit/internal/preview"
	"videokit/internal/providers/kie"
	"videokit/internal/providers/prompt"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	// Config & logger
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// Local store
	ctx := context.Background()
	db, err := infra.OpenDB(ctx, cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open database")
	}
	runner := infra.NewSQLRunner(db, logger)
	jobRepo := repo.NewJobRepository(runner)
	imageRepo := repo.NewImageRepository(runner)
	prefs := preferences.NewStore(runner)

	provider := kie.NewClient(kie.Options{
		APIKey:         cfg.KieAPIKey,
		Keys:           prefs,
		BaseURL:        cfg.KieBaseURL,
		UploadURL:      cfg.KieUploadURL,
		UploadPath:     cfg.KieUploadPath,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if !provider.HasCredentials(ctx) {
		logger.Warn().Msg("no provider API key configured; set KIE_API_KEY or store one via /api/settings/api-key")
	}

	fixer := prompt.NewClient(prompt.Options{
		APIKey:         cfg.AnthropicAPIKey,
		BaseURL:        cfg.AnthropicBaseURL,
		Model:          cfg.AnthropicModel,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if !fixer.Configured() {
		logger.Info().Msg("ANTHROPIC_API_KEY not set; timestamp fixing is disabled")
	}

	previews := preview.NewManager(cfg.PreviewMaxDim, &logger)

	controller := jobs.NewController(jobs.Deps{
		Jobs:        jobRepo,
		Images:      imageRepo,
		Provider:    provider,
		Preferences: prefs,
		Logger:      &logger,
	})
	engine := poller.NewEngine(controller, provider, poller.NewWatchSet(), poller.ClockScheduler{}, poller.Options{
		Interval:       cfg.PollInterval,
		MaxAttempts:    cfg.PollMaxAttempts,
		TimeoutMessage: cfg.PollTimeoutMessage(),
		Logger:         &logger,
	})
	controller.AttachWatcher(engine)

	// Resume jobs that were generating when the process last stopped.
	if err := controller.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load jobs")
	}

	app := &handlers.App{
		Config:      cfg,
		Logger:      logger,
		Jobs:        controller,
		Checker:     engine,
		Gallery:     gallery.NewService(imageRepo, controller, previews, cfg.MaxUploadBytes, &logger),
		Previews:    previews,
		Preferences: prefs,
		Downloader:  provider,
		Prompts:     fixer,
	}
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	engine.Stop()
	previews.ReleaseAll()
	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close database")
	}
	logger.Info().Msg("server stopped")
}
