package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mobile-controller/panel/internal/bridge"
	"github.com/mobile-controller/panel/internal/config"
	"github.com/mobile-controller/panel/internal/logging"
	"github.com/mobile-controller/panel/internal/mock"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override bridge port")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *port > 0 {
		cfg.Bridge.Port = *port
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := logging.Console(cfg.Logging.Level); err != nil {
		log.Fatal().Err(err).Msg("logging")
	}

	hub := bridge.NewHub(cfg.Bridge.MaxConnections)
	sim := mock.NewSimulator(cfg.Simulator, hub)
	server := bridge.NewServer(hub, sim, cfg.Bridge.Token, cfg.Bridge.AllowedOrigins)

	srv := &http.Server{
		Addr:              cfg.BridgeAddr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("module", "bridge").Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Str("module", "bridge").Msg("shutting down")

	if err := sim.Stop(); err != nil && !errors.Is(err, bridge.ErrNotRunning) {
		log.Warn().Err(err).Msg("stop simulator")
	}
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
