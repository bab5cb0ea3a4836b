// Command cesta runs the NBA statistics sync jobs.
//
// Usage:
//
//	cesta list
//	cesta run standings injuries
//	cesta run --all --on-empty skip
//	cesta run leaders --season 2025 --dry-run
//	cesta preview standings-web --limit 5
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fortuna/cesta/internal/catalog"
	"github.com/fortuna/cesta/internal/config"
	"github.com/fortuna/cesta/internal/ingest"
	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/sink"
	"github.com/fortuna/cesta/internal/source"
	"github.com/fortuna/cesta/internal/store"
	"github.com/fortuna/cesta/internal/syncerr"
)

const (
	appName    = "cesta"
	appVersion = "1.0.0"
)

func main() {
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	catalogPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Sync NBA statistics from public sources into the stats tables",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "job catalog file (defaults to the built-in catalog)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newPreviewCmd(opts))
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// env bundles what every job-running command builds from configuration.
type env struct {
	cfg     config.Config
	logger  *logging.Logger
	deps    source.Deps
	closers []func()
}

func newEnv(requireStore bool) (*env, error) {
	load := config.LoadWithoutStore
	if requireStore {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("app", appName, "env", cfg.AppEnv)
	logging.SetDefault(logger)

	e := &env{
		cfg:    cfg,
		logger: logger,
		deps: source.Deps{
			HTTP:   ingest.NewClient(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, logger),
			Logger: logger,
		},
	}
	if cfg.HTTP.BrowserFetch {
		browser := ingest.NewBrowser(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, logger)
		e.deps.Browser = browser
		e.closers = append(e.closers, browser.Close)
	}
	return e, nil
}

func (e *env) openSink(ctx context.Context) (sink.Sink, error) {
	switch e.cfg.Store.Driver {
	case config.DriverPostgres:
		dsn, err := e.cfg.Store.PostgresDSN()
		if err != nil {
			return nil, err
		}
		db, err := store.NewDatabase(ctx, dsn)
		if err != nil {
			return nil, syncerr.SinkWrite(err, "connect store")
		}
		e.closers = append(e.closers, func() { _ = db.Close() })
		return sink.NewPostgres(db, e.logger), nil
	default:
		return sink.NewPostgREST(e.cfg.Store.URL, e.cfg.Store.Key, &http.Client{Timeout: e.cfg.HTTP.Timeout}, e.logger), nil
	}
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	_ = e.logger.Sync()
}

func loadCatalog(opts *rootOptions) (*catalog.Catalog, error) {
	return catalog.Load(opts.catalogPath)
}
