package main

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/fortuna/cesta/internal/catalog"
	"github.com/fortuna/cesta/internal/ingest/espn"
	"github.com/fortuna/cesta/internal/metrics"
	"github.com/fortuna/cesta/internal/publisher"
	"github.com/fortuna/cesta/internal/sink"
	"github.com/fortuna/cesta/internal/syncerr"
	"github.com/fortuna/cesta/internal/syncjob"
)

type runOptions struct {
	all     bool
	dryRun  bool
	onEmpty string
	season  int
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [job...]",
		Short: "Fetch, normalize and write one or more jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.all == (len(args) > 0) {
				return syncerr.Configuration("name one or more jobs, or pass --all")
			}
			ctx, stop := signalContext()
			defer stop()
			return runJobs(ctx, cmd, root, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.all, "all", false, "run every job in the catalog")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "fetch and normalize, write into an in-memory table only")
	cmd.Flags().StringVar(&opts.onEmpty, "on-empty", "", "override every job's empty-result policy (fail|skip)")
	cmd.Flags().IntVar(&opts.season, "season", 0, "season year for the leaders job (defaults to the current season)")
	return cmd
}

func runJobs(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *runOptions, names []string) error {
	cat, err := loadCatalog(root)
	if err != nil {
		return err
	}
	jobs := cat.All()
	if !opts.all {
		if jobs, err = cat.Select(names...); err != nil {
			return err
		}
	}
	if opts.season > 0 {
		for i := range jobs {
			if jobs[i].Source.Kind == espn.KindLeaders {
				jobs[i] = catalog.WithParam(jobs[i], "season", strconv.Itoa(opts.season))
			}
		}
	}

	e, err := newEnv(!opts.dryRun)
	if err != nil {
		return err
	}
	defer e.Close()

	policy := e.cfg.EmptyPolicy
	if opts.onEmpty != "" {
		policy = opts.onEmpty
	}
	emptyPolicy, err := syncjob.ParseEmptyPolicy(policy)
	if err != nil {
		return err
	}

	runnerOpts := []syncjob.Option{syncjob.WithEmptyPolicy(emptyPolicy)}

	var target sink.Sink
	if opts.dryRun {
		target = sink.NewMemory()
		runnerOpts = append(runnerOpts, syncjob.WithDryRun())
	} else {
		if target, err = e.openSink(ctx); err != nil {
			return err
		}

		if e.cfg.RedisURL != "" {
			pub, err := publisher.NewRedisPublisher(ctx, e.cfg.RedisURL, e.logger)
			if err != nil {
				e.logger.Warn("sync events disabled", "error", err)
			} else {
				defer pub.Close()
				runnerOpts = append(runnerOpts, syncjob.WithNotifier(pub))
			}
		}
	}

	pusher := metrics.New(e.cfg.PushgatewayURL)
	runnerOpts = append(runnerOpts, syncjob.WithRecorder(pusher))
	defer func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pusher.Push(pushCtx); err != nil {
			e.logger.Warn("push metrics", "error", err)
		}
	}()

	runner := syncjob.NewRunner(e.deps, target, runnerOpts...)
	reporter := newConsoleReporter(cmd.OutOrStdout(), opts.dryRun)

	results, err := runner.RunAll(ctx, jobs, reporter)
	reporter.Summary(results)
	if err != nil {
		return errors.Wrap(err, "sync")
	}
	return nil
}
