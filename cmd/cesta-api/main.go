// Command cesta-api serves the synced injury table over HTTP and relays
// sync.completed events to websocket clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fortuna/cesta/internal/api/rest"
	"github.com/fortuna/cesta/internal/api/websocket"
	"github.com/fortuna/cesta/internal/config"
	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/publisher"
	"github.com/fortuna/cesta/internal/service"
	"github.com/fortuna/cesta/internal/store"
)

func main() {
	_ = godotenv.Load(".env")

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cesta-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadAPI()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).Named("cesta-api")
	logging.SetDefault(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	// The relay is optional; without Redis the websocket endpoint stays
	// mounted but idle.
	var follower websocket.Follower
	if cfg.RedisURL != "" {
		pub, err := publisher.NewRedisPublisher(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Warn("redis unavailable, sync relay disabled", "error", err)
		} else {
			defer pub.Close()
			follower = pub
		}
	}

	ws := websocket.NewServer(follower, logger)
	go func() {
		if err := ws.Run(ctx); err != nil {
			logger.Error("sync relay stopped", "error", err)
		}
	}()

	handler := rest.NewHandler(service.NewInjuryService(db), db, logger)
	server := rest.NewServer(cfg.Addr, handler, ws, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "env", cfg.AppEnv)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
