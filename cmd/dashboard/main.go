// cmd/dashboard/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/souravmenon1999/ticker-dashboard/internal/config"
	"github.com/souravmenon1999/ticker-dashboard/internal/dashboard"
	"github.com/souravmenon1999/ticker-dashboard/internal/exchange/bybit"
	"github.com/souravmenon1999/ticker-dashboard/internal/logging"
	"github.com/souravmenon1999/ticker-dashboard/internal/ticker"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logging.InitLogger(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("symbol", cfg.Bybit.Symbol).Str("addr", cfg.Server.Addr).Msg("Ticker dashboard starting...")
	log.Debug().Interface("config", cfg).Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Ticker stream ---
	dialer := bybit.NewDialer(cfg.Bybit.WSURL, cfg.Bybit.HandshakeTimeout, cfg.Bybit.PingInterval)
	store := ticker.NewStore(dialer, ticker.WithFlashDuration(cfg.Dashboard.FlashDuration))

	// --- Dashboard ---
	theme, _ := dashboard.ParseTheme(cfg.Dashboard.DefaultTheme)
	srv, err := dashboard.NewServer(cfg.Dashboard.Title, cfg.Bybit.Symbol, store, dashboard.NewThemeState(theme), logging.Component("dashboard"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dashboard server")
	}

	if err := store.Start(ctx, bybit.TickerTopic(cfg.Bybit.Symbol)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start ticker stream")
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Dashboard listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("Dashboard server failed")
		}
	}

	// Browsers first, then the upstream socket.
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP shutdown")
	}
	store.Stop()

	log.Info().Msg("Ticker dashboard stopped.")
}
