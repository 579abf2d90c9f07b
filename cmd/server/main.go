package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/GroupCall/internal/adapters/http"
	"github.com/dkeye/GroupCall/internal/adapters/kurento"
	signaladapter "github.com/dkeye/GroupCall/internal/adapters/signal"
	"github.com/dkeye/GroupCall/internal/app"
	"github.com/dkeye/GroupCall/internal/config"
	"github.com/dkeye/GroupCall/internal/store"
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

	mediaClient, err := kurento.Dial(ctx, cfg.MediaURI)
	if err != nil {
		log.Fatal().Err(err).Str("uri", cfg.MediaURI).Msg("failed to reach media server")
	}
	defer mediaClient.Close()

	// The store backend is picked once here; nothing downstream branches on it.
	var (
		sessions store.SessionStore
		rdb      *goredis.Client
	)
	switch cfg.Store {
	case "redis":
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		sessions = store.NewRedis(rdb, cfg.KeyPrefix)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis session store")
	default:
		sessions = store.NewMemory()
		log.Info().Msg("using in-memory session store")
	}

	hub := signaladapter.NewHub(rdb, cfg.KeyPrefix)
	go hub.Run(ctx)

	reg := app.NewRegistry()
	orch := app.NewOrchestrator(sessions, reg, mediaClient, hub, cfg.Seats, cfg.MediaTimeout)
	ctl := signaladapter.NewController(orch, hub)

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("GroupCall server started")
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
