package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Quiz/internal/adapters/http"
	"github.com/dkeye/Quiz/internal/adapters/natspub"
	sig "github.com/dkeye/Quiz/internal/adapters/signal"
	"github.com/dkeye/Quiz/internal/app"
	"github.com/dkeye/Quiz/internal/config"
	"github.com/dkeye/Quiz/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logger first so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Err(err).Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	var publisher core.ResultPublisher
	if cfg.NATS.URL != "" {
		nc, err := natspub.Connect(cfg.NATS.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("nats")
		}
		defer nc.Drain()
		publisher = natspub.NewPublisher(nc, cfg.NATS.SubjectPrefix)
		log.Info().Str("url", cfg.NATS.URL).Str("prefix", cfg.NATS.SubjectPrefix).Msg("publishing round results")
	}

	reg := app.NewRegistry()
	hub := app.NewHub(app.HubOptions{
		Rules:     cfg.Game.Rules(),
		Registry:  reg,
		Policy:    app.SimplePolicy{},
		Publisher: publisher,
	})
	go hub.Run(ctx)

	limiter := sig.NewRateLimiter(cfg.RateLimit.Messages, cfg.RateLimit.Interval, nil)
	ctl := sig.NewController(hub, reg, limiter, sig.Options{
		SendBuffer: cfg.SendBuffer,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	})

	if cfg.TCPAddr != "" {
		ln, err := net.Listen("tcp", cfg.TCPAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.TCPAddr).Msg("tcp listen")
		}
		go func() {
			if err := ctl.ServeTCP(ctx, ln); err != nil {
				log.Error().Err(err).Msg("tcp server error")
			}
		}()
	}

	r := router.SetupRouter(ctx, cfg, hub, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Quiz server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
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
