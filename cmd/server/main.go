// Command server runs the assistant backend HTTP API.
//
// Startup order: load .env (best effort), read config, install logging and
// tracing globals, acquire the shared database engine from the session
// registry, wire the event dispatcher and its subscribers, register command
// and query handlers on the buses, then serve HTTP until SIGINT/SIGTERM and
// shut down gracefully.
package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/convoforge/go-assistant-backend/internal/app"
	"github.com/convoforge/go-assistant-backend/internal/config"
	"github.com/convoforge/go-assistant-backend/internal/domain"
	"github.com/convoforge/go-assistant-backend/internal/events"
	"github.com/convoforge/go-assistant-backend/internal/generator"
	"github.com/convoforge/go-assistant-backend/internal/httpapi"
	"github.com/convoforge/go-assistant-backend/internal/observability"
	"github.com/convoforge/go-assistant-backend/internal/repo"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Optional .env for local development; env vars win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	observability.SetupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Shared engine for the process lifetime. Released on shutdown; the
	// final DisposeAll sweeps anything still pooled.
	db, err := repo.Sessions.Acquire(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.DatabaseURL).Msg("database acquire failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	// Event fan-out: metrics and logs for every namespace, plus the JSON
	// feedback read model on feedback events.
	dispatcher := events.NewDispatcher(log.Logger)
	dispatcher.SubscribeAll(events.LoggingSubscriber{Log: log.Logger})
	dispatcher.SubscribeAll(events.MetricsSubscriber{})

	feedbackRM, err := repo.NewFeedbackReadModel(cfg.FeedbackStorePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.FeedbackStorePath).Msg("feedback store init failed")
	}
	dispatcher.Subscribe(domain.NSFeedbackAdded, feedbackRM)

	gen, err := buildGenerator(cfg.Generator)
	if err != nil {
		log.Fatal().Err(err).Msg("generator init failed")
	}

	commands := app.NewCommandBus()
	queries := app.NewQueryBus()

	cmdHandlers := &app.ConversationHandlers{
		Engine:          db,
		Events:          dispatcher,
		Generator:       gen,
		ConflictRetries: cfg.ConflictRetries,
		TxTimeout:       cfg.UoWTimeout,
	}
	cmdHandlers.RegisterAll(commands)
	(&app.QueryHandlers{Engine: db}).RegisterAll(queries)

	r := gin.New()
	httpapi.RegisterRoutes(r, commands, queries, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Block until SIGINT/SIGTERM, then drain.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	repo.Sessions.Release(cfg.DatabaseURL)
	repo.Sessions.DisposeAll()

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("bye")
}

// buildGenerator constructs the configured ResponseGenerator: a remote HTTP
// backend, or the local retrieval generator over a paragraph corpus. A
// missing local corpus file is tolerated (messages are stored without
// assistant replies).
func buildGenerator(cfg config.GeneratorConfig) (app.ResponseGenerator, error) {
	switch cfg.Mode {
	case "remote":
		return generator.NewRemote(cfg.RemoteURL, &http.Client{Timeout: cfg.Timeout}), nil
	default:
		g, err := generator.NewLocalFromFile(cfg.CorpusPath, cfg.Threshold)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn().Str("path", cfg.CorpusPath).Msg("corpus missing, replies disabled")
				return nil, nil
			}
			return nil, err
		}
		return g, nil
	}
}
