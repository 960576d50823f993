package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/strefethen/soundtouch-hub-go/internal/config"
	"github.com/strefethen/soundtouch-hub-go/internal/logging"
	"github.com/strefethen/soundtouch-hub-go/internal/mqtt"
	"github.com/strefethen/soundtouch-hub-go/internal/server"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	logger := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Development: cfg.IsDevelopment(),
	})
	addr := cfg.Host + ":" + cfg.Port

	var opts server.Options
	if cfg.MQTT.Enabled {
		publisher, err := mqtt.Connect(cfg.MQTT, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt connect error")
		}
		defer publisher.Close()
		opts.Listeners = []soundtouch.Listener{publisher}
	}

	hub, err := server.New(cfg, opts, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("server init error")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(ctx) }()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}()

	logger.Info().Str("addr", addr).Int("devices", len(cfg.Devices)).Msg("soundtouch-hub-go listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server error")
		stop()
	}

	if err := <-hubDone; err != nil {
		logger.Error().Err(err).Msg("hub error")
	}
	if err := hub.Close(); err != nil {
		logger.Error().Err(err).Msg("close error")
	}
}
