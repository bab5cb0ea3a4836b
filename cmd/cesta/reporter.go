package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fortuna/cesta/internal/syncjob"
)

// consoleReporter prints operator-facing progress lines; structured logs go
// through the logger separately.
type consoleReporter struct {
	out    io.Writer
	dryRun bool
}

func newConsoleReporter(out io.Writer, dryRun bool) *consoleReporter {
	return &consoleReporter{out: out, dryRun: dryRun}
}

func (c *consoleReporter) OnJobStart(job syncjob.Job) {
	fmt.Fprintf(c.out, "==> %s -> %s (%s, dry_run=%v)\n", job.Name, job.Target.Table, job.Target.Strategy, c.dryRun)
}

func (c *consoleReporter) OnFetched(job syncjob.Job, records int) {
	fmt.Fprintf(c.out, "    fetched %d records\n", records)
}

func (c *consoleReporter) OnRowSkipped(job syncjob.Job, err error) {
	fmt.Fprintf(c.out, "    skipped: %v\n", err)
}

func (c *consoleReporter) OnJobComplete(res syncjob.Result) {
	if res.Status == syncjob.StatusNoData {
		fmt.Fprintf(c.out, "    no data, %s left untouched\n", res.Table)
		return
	}
	fmt.Fprintf(c.out, "    wrote %d rows in %d batch(es) (%s)\n", res.Written, res.Batches, res.Duration.Round(time.Millisecond))
}

func (c *consoleReporter) OnJobError(job syncjob.Job, err error) {
	fmt.Fprintf(c.out, "    FAILED: %v\n", err)
}

// Summary prints one line per job once all have run.
func (c *consoleReporter) Summary(results []syncjob.Result) {
	if len(results) < 2 {
		return
	}
	fmt.Fprintln(c.out, "summary:")
	for _, res := range results {
		line := fmt.Sprintf("  %-14s %-9s fetched=%d written=%d dropped=%d", res.Job, res.Status, res.Fetched, res.Written, res.Dropped)
		if res.ErrorKind != "" {
			line += " error=" + res.ErrorKind
		}
		fmt.Fprintln(c.out, line)
	}
}
