package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/heavenlabs/voiceroom/internal/adapters/http"
	"github.com/heavenlabs/voiceroom/internal/app"
	"github.com/heavenlabs/voiceroom/internal/auth"
	"github.com/heavenlabs/voiceroom/internal/config"
	"github.com/heavenlabs/voiceroom/internal/core"
	"github.com/heavenlabs/voiceroom/internal/ledger"
	"github.com/heavenlabs/voiceroom/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := store.Open(cfg.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	oracle := ledger.NewHTTPOracle(cfg.OracleURL)
	credits := ledger.New(db, oracle, cfg.WelcomeBonusSeconds)

	tokens := auth.NewTokenMinter(cfg.TokenSecret, cfg.TokenTTL)
	authSvc := auth.NewService(db, tokens, cfg.NonceTTL)

	index := app.NewDiscoveryIndex()
	sink := core.MultiSink{
		index,
		app.NewArchiver(db),
		app.NewMediaNotifier(cfg.MediaWebhookURL),
	}
	rooms := app.NewRegistry(credits, sink, oracle, core.Options{
		QueueSize:      cfg.ActorQueueSize,
		LivenessWindow: cfg.LivenessWindow,
	}, cfg.DispatchTimeout)

	api := router.NewAPI(authSvc, credits, rooms, index, cfg.FeedPushPeriod)
	r := router.SetupRouter(cfg, api)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("voiceroom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
