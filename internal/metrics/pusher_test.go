package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cesta/internal/syncjob"
)

func TestObserve(t *testing.T) {
	t.Parallel()

	p := New("")
	started := time.Unix(1_760_000_000, 0)
	p.Observe(syncjob.Result{
		Job:       "standings",
		Table:     "classificacao_nba",
		Status:    syncjob.StatusSucceeded,
		Fetched:   30,
		Written:   30,
		StartedAt: started,
		Duration:  2 * time.Second,
	})
	p.Observe(syncjob.Result{
		Job:       "injuries",
		Table:     "nba_injured_players",
		Status:    syncjob.StatusFailed,
		ErrorKind: "sink_write",
	})

	assert.Equal(t, 30.0, testutil.ToFloat64(p.RowsWritten.WithLabelValues("standings", "classificacao_nba")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.Duration.WithLabelValues("standings")))
	assert.Equal(t, float64(started.Unix()+2), testutil.ToFloat64(p.LastSuccess.WithLabelValues("standings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.RunsTotal.WithLabelValues("standings", "succeeded", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.RunsTotal.WithLabelValues("injuries", "failed", "sink_write")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.LastSuccess), "failed runs do not set last success")
}

func TestPushWithoutGatewayIsNoop(t *testing.T) {
	t.Parallel()

	p := New("")
	p.Observe(syncjob.Result{Job: "players", Status: syncjob.StatusSucceeded})
	assert.NoError(t, p.Push(context.Background()))
}

func TestPushSendsToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	p := New(gw.URL)
	require.NoError(t, p.Push(context.Background()))
	mu.Lock()
	assert.Empty(t, path, "nothing observed, nothing pushed")
	mu.Unlock()

	p.Observe(syncjob.Result{Job: "leaders", Table: "nba_lideres", Status: syncjob.StatusSucceeded, Written: 50})
	require.NoError(t, p.Push(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/cesta", path)
	assert.NotEmpty(t, body)
}

func TestPushReportsGatewayError(t *testing.T) {
	t.Parallel()

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gw.Close()

	p := New(gw.URL)
	p.Observe(syncjob.Result{Job: "leaders", Status: syncjob.StatusSucceeded})
	assert.Error(t, p.Push(context.Background()))
}
