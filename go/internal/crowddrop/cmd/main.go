package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/crowddrop/go/internal/config"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/audit"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/chat"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/gamelink"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/gateway"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/round"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := config.NewConfigFromEnv()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load item catalog")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Game link. A failed first connect is not fatal; sends retry.
	var codec gamelink.Codec
	if cfg.GameCodec != config.CodecNone {
		codec = gamelink.ProtoCodec{}
	}
	link := gamelink.New(cfg.Game, codec)
	if err := link.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("game not reachable yet, will retry on the next event")
	}

	auditLog, err := audit.Open(cfg.AuditPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.AuditPath).Msg("failed to open audit log")
	}

	// Chat bridge, or log-only chat when disabled or NATS is down
	var (
		bridge    *chat.Bridge
		announcer round.Announcer = chat.LogAnnouncer{}
	)
	if cfg.ChatEnabled {
		bridge, err = chat.Connect(cfg.Chat)
		if err != nil {
			log.Error().Err(err).Msg("chat bridge unavailable, announcements go to the log")
		} else {
			announcer = bridge
		}
	}

	hubConfig := gateway.DefaultHubConfig()
	hubConfig.PointerRate = cfg.PointerRate
	hub := gateway.NewHub(hubConfig)

	session := round.NewSession(catalog, cfg.Round, hub, link,
		round.WithAnnouncer(announcer),
		round.WithAuditor(auditLog),
	)

	if bridge != nil {
		if err := bridge.Listen(chat.NewRouter(session, catalog, announcer)); err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe to chat")
		}
	}

	service := gateway.NewService(gateway.Config{OverlayDir: cfg.OverlayDir}, hub, session)
	server := setupServer(cfg.Port, service, log.Logger)

	log.Info().
		Str("port", cfg.Port).
		Str("game_addr", cfg.Game.Addr).
		Bool("game_enabled", link.Enabled()).
		Bool("chat", bridge != nil).
		Int("items", catalog.Len()).
		Dur("voting", cfg.Round.VotingDuration).
		Dur("break", cfg.Round.BreakDuration).
		Msg("starting crowddrop")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		service.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		round.NewMachine(session).Run(ctx)
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	wg.Wait()

	if bridge != nil {
		if err := bridge.Close(); err != nil {
			log.Error().Err(err).Msg("chat bridge close failed")
		}
	}
	if err := link.Close(); err != nil {
		log.Error().Err(err).Msg("game link close failed")
	}
	if err := auditLog.Close(); err != nil {
		log.Error().Err(err).Msg("audit log close failed")
	}

	log.Info().Msg("crowddrop shutdown complete")
}
