package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cesta/internal/ingest"
	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/syncerr"
)

func testDeps() Deps {
	return Deps{HTTP: ingest.NewClient(time.Second, "Mozilla/5.0", logging.NewNop()), Logger: logging.NewNop()}
}

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJSONSourceConcatenatesRecordPaths(t *testing.T) {
	t.Parallel()

	srv := serve(t, map[string]string{
		"/standings": `{"children":[
			{"standings":{"entries":[{"team":{"displayName":"Boston Celtics"}}]}},
			{"standings":{"entries":[{"team":{"displayName":"Denver Nuggets"}},{"team":{"displayName":"Utah Jazz"}}]}}
		]}`,
	})

	src, err := New(KindJSON, testDeps())
	require.NoError(t, err)

	records, err := src.Fetch(context.Background(), Spec{
		URL:     srv.URL + "/standings",
		Records: []string{"children[0].standings.entries", "children[1].standings.entries", "children[2].standings.entries"},
	})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Boston Celtics", mapping.LookupString(records[0], "team.displayName"))
	assert.Equal(t, "Utah Jazz", mapping.LookupString(records[2], "team.displayName"))
}

func TestJSONSourceMissingCollectionIsShapeMismatch(t *testing.T) {
	t.Parallel()

	srv := serve(t, map[string]string{"/players": `{"athletes":[]}`})
	src, err := New(KindJSON, testDeps())
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), Spec{URL: srv.URL + "/players", Records: []string{"players"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrSourceShapeMismatch))
}

func TestJSONSourceEmptyCollectionIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := serve(t, map[string]string{"/players": `{"players":[]}`})
	src, err := New(KindJSON, testDeps())
	require.NoError(t, err)

	records, err := src.Fetch(context.Background(), Spec{URL: srv.URL + "/players", Records: []string{"players"}})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONSourceTopLevelArray(t *testing.T) {
	t.Parallel()

	srv := serve(t, map[string]string{"/a": `[{"id":1},{"id":2}]`, "/b": `{"id":3}`})
	src, err := New(KindJSON, testDeps())
	require.NoError(t, err)

	records, err := src.Fetch(context.Background(), Spec{URLs: []string{srv.URL + "/a", srv.URL + "/b"}})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestJSONSourceUnreachable(t *testing.T) {
	t.Parallel()

	srv := serve(t, nil)
	src, err := New(KindJSON, testDeps())
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), Spec{URL: srv.URL + "/gone", Records: []string{"players"}})
	assert.True(t, errors.Is(err, syncerr.ErrSourceUnreachable))
}

type stubPages struct {
	html  string
	calls int
}

func (s *stubPages) FetchPage(context.Context, string, map[string]string) (string, error) {
	s.calls++
	return s.html, nil
}

func TestHTMLTableSourceJoinsTables(t *testing.T) {
	t.Parallel()

	page := `<table><tbody><tr><td>x-Boston Celtics</td></tr><tr><td>Hornets</td></tr></tbody></table>
	<table><tbody><tr><td>48</td><td>12</td></tr></tbody></table>`
	srv := serve(t, map[string]string{"/classificacao": page})

	src, err := New(KindHTMLTable, testDeps())
	require.NoError(t, err)

	records, err := src.Fetch(context.Background(), Spec{URL: srv.URL + "/classificacao", Tables: []int{0, 1}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []any{"x-Boston Celtics", "48", "12"}, mapping.LookupSlice(records[0], "cells"))
	assert.Equal(t, []any{"Hornets"}, mapping.LookupSlice(records[1], "cells"))
}

func TestHTMLTableSourceUsesBrowserWhenAsked(t *testing.T) {
	t.Parallel()

	browser := &stubPages{html: `<table><tr><td>a</td></tr></table>`}
	deps := testDeps()
	deps.Browser = browser

	src, err := New(KindHTMLTable, deps)
	require.NoError(t, err)

	records, err := src.Fetch(context.Background(), Spec{URL: "http://example.invalid/page", Browser: true})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, browser.calls)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	assert.True(t, Known(KindJSON))
	assert.Contains(t, Kinds(), KindHTMLTable)
	_, err := New("ftp", testDeps())
	assert.Error(t, err)
	assert.Panics(t, func() { Register(KindJSON, nil) })
}

func TestSpecParams(t *testing.T) {
	t.Parallel()

	spec := Spec{Params: map[string]string{"top": "5", "stats": "false", "bad": "x"}}
	n, err := spec.IntParam("top", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = spec.IntParam("missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	b, err := spec.BoolParam("stats", true)
	require.NoError(t, err)
	assert.False(t, b)
	_, err = spec.IntParam("bad", 1)
	assert.True(t, errors.Is(err, syncerr.ErrConfiguration))
	_, err = spec.BoolParam("bad", true)
	assert.True(t, errors.Is(err, syncerr.ErrConfiguration))
}
