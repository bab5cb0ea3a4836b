package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/syncerr"
)

func TestGetJSONSendsBrowserHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "pt-BR", r.Header.Get("Accept-Language"))
		_, _ = w.Write([]byte(`{"players":[{"id":1,"statistics":{"avgPoints":20.5}}]}`))
	}))
	defer srv.Close()

	client := NewClient(time.Second, "Mozilla/5.0", logging.NewNop())
	out, err := client.GetObject(context.Background(), srv.URL, map[string]string{"Accept-Language": "pt-BR"})
	require.NoError(t, err)

	players, ok := out["players"].([]any)
	require.True(t, ok)
	require.Len(t, players, 1)
	assert.Equal(t, float64(1), players[0].(map[string]any)["id"])
}

func TestGetJSONFailureKinds(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status int
		body   string
		kind   error
	}{
		"forbidden":   {http.StatusForbidden, "denied", syncerr.ErrSourceUnreachable},
		"server":      {http.StatusBadGateway, "", syncerr.ErrSourceUnreachable},
		"html page":   {http.StatusOK, "<html>blocked</html>", syncerr.ErrSourceShapeMismatch},
		"malformed":   {http.StatusOK, `{"players":[`, syncerr.ErrSourceShapeMismatch},
		"not objects": {http.StatusOK, `[1,2]`, syncerr.ErrSourceShapeMismatch},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(time.Second, "ua", nil).GetObject(context.Background(), srv.URL, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestUnreachableHost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(time.Second, "ua", nil).GetJSON(context.Background(), url, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrSourceUnreachable))
}

func TestGetHTML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		if r.URL.Path == "/empty" {
			return
		}
		_, _ = w.Write([]byte("<table><tr><td>1</td></tr></table>"))
	}))
	defer srv.Close()

	client := NewClient(time.Second, "ua", nil)
	html, err := client.FetchPage(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Contains(t, html, "<table>")

	_, err = client.GetHTML(context.Background(), srv.URL+"/empty", nil)
	assert.True(t, errors.Is(err, syncerr.ErrSourceShapeMismatch))
}
