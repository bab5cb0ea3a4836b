// Package metrics records sync runs as Prometheus gauges and pushes them to
// a Pushgateway, since jobs exit before anything could scrape them.
package metrics

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/fortuna/cesta/internal/syncjob"
)

const (
	namespace = "cesta"
	pushJob   = "cesta"
)

// Pusher holds all sync metrics.
type Pusher struct {
	RowsFetched *prometheus.GaugeVec
	RowsWritten *prometheus.GaugeVec
	RowsDropped *prometheus.GaugeVec
	Duration    *prometheus.GaugeVec
	LastSuccess *prometheus.GaugeVec
	RunsTotal   *prometheus.CounterVec

	registry   *prometheus.Registry
	gatewayURL string
	mu         sync.Mutex
	observed   int
}

// New creates the collectors. An empty gatewayURL makes Push a no-op.
func New(gatewayURL string) *Pusher {
	p := &Pusher{
		registry:   prometheus.NewRegistry(),
		gatewayURL: gatewayURL,
	}

	p.RowsFetched = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_rows_fetched",
			Help:      "Raw records fetched by the last run",
		},
		[]string{"sync_job"},
	)
	p.RowsWritten = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_rows_written",
			Help:      "Rows written to the destination table by the last run",
		},
		[]string{"sync_job", "table"},
	)
	p.RowsDropped = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_rows_dropped",
			Help:      "Records skipped during normalization by the last run",
		},
		[]string{"sync_job"},
	)
	p.Duration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of the last run",
		},
		[]string{"sync_job"},
	)
	p.LastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote rows",
		},
		[]string{"sync_job"},
	)
	p.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Runs by final status",
		},
		[]string{"sync_job", "status", "error_kind"},
	)

	p.registry.MustRegister(p.RowsFetched, p.RowsWritten, p.RowsDropped, p.Duration, p.LastSuccess, p.RunsTotal)
	return p
}

// Observe records one finished run.
func (p *Pusher) Observe(res syncjob.Result) {
	p.mu.Lock()
	p.observed++
	p.mu.Unlock()

	p.RowsFetched.WithLabelValues(res.Job).Set(float64(res.Fetched))
	p.RowsWritten.WithLabelValues(res.Job, res.Table).Set(float64(res.Written))
	p.RowsDropped.WithLabelValues(res.Job).Set(float64(res.Dropped))
	p.Duration.WithLabelValues(res.Job).Set(res.Duration.Seconds())
	if res.Status == syncjob.StatusSucceeded {
		p.LastSuccess.WithLabelValues(res.Job).Set(float64(res.StartedAt.Add(res.Duration).Unix()))
	}
	kind := res.ErrorKind
	if kind == "" {
		kind = "none"
	}
	p.RunsTotal.WithLabelValues(res.Job, string(res.Status), kind).Inc()
}

// Registry exposes the underlying registry.
func (p *Pusher) Registry() *prometheus.Registry {
	return p.registry
}

// Push sends everything observed so far. Nothing is sent when no gateway is
// configured or no run was observed.
func (p *Pusher) Push(ctx context.Context) error {
	p.mu.Lock()
	observed := p.observed
	p.mu.Unlock()
	if p.gatewayURL == "" || observed == 0 {
		return nil
	}

	err := push.New(p.gatewayURL, pushJob).
		Gatherer(p.registry).
		PushContext(ctx)
	if err != nil {
		return errors.Wrapf(err, "push metrics to %s", p.gatewayURL)
	}
	return nil
}
