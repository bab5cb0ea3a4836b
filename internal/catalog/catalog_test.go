package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/syncerr"
	"github.com/fortuna/cesta/internal/syncjob"
	"github.com/fortuna/cesta/internal/tablesync"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"injuries", "leaders", "players", "standings", "standings-web", "team-form"}, c.Names())

	want := map[string]struct {
		kind     string
		table    string
		strategy tablesync.Strategy
		key      []string
	}{
		"players":       {"json", "nba_jogadores_stats", tablesync.StrategyUpsert, []string{"id"}},
		"standings":     {"json", "classificacao_nba", tablesync.StrategyUpsert, []string{"time"}},
		"standings-web": {"html_table", "classificacao_nba_web", tablesync.StrategyUpsert, []string{"time_nome"}},
		"injuries":      {"espn_injuries", "nba_injured_players", tablesync.StrategyUpsert, []string{"player_id", "injury_date"}},
		"team-form":     {"espn_team_form", "nba_times_forma", tablesync.StrategyUpsert, []string{"espn_id"}},
		"leaders":       {"espn_leaders", "nba_lideres", tablesync.StrategyReplace, nil},
	}
	for _, job := range c.All() {
		w, ok := want[job.Name]
		require.True(t, ok, job.Name)
		assert.Equal(t, w.kind, job.Source.Kind, job.Name)
		assert.Equal(t, w.table, job.Target.Table, job.Name)
		assert.Equal(t, w.strategy, job.Target.Strategy, job.Name)
		assert.Equal(t, w.key, job.Target.ConflictKey, job.Name)
	}

	injuries, err := c.Get("injuries")
	require.NoError(t, err)
	assert.Equal(t, 50, injuries.Target.BatchSize)
	assert.Equal(t, syncjob.EmptySkip, injuries.OnEmpty)

	leaders, err := c.Get("leaders")
	require.NoError(t, err)
	assert.Equal(t, "categoria", leaders.Target.Sentinel.Column)
	assert.Equal(t, "__sentinel__", leaders.Target.Sentinel.Value)
}

func TestPlayersMappingScenario(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)
	job, err := c.Get("players")
	require.NoError(t, err)

	rows, skipped, err := job.Mapping.Normalize([]mapping.Record{map[string]any{
		"id":         float64(1),
		"fullName":   "A. Example",
		"team":       map[string]any{"displayName": "Metro City"},
		"statistics": map[string]any{"avgPoints": 20.5},
	}})
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, rows, 1)
	assert.Equal(t, mapping.Row{
		"id":           int64(1),
		"nome":         "A. Example",
		"time":         "Metro City",
		"posicao":      nil,
		"pontos":       20.5,
		"rebotes":      float64(0),
		"assistencias": float64(0),
	}, rows[0])
}

func TestStandingsMappingFlattensStats(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)
	job, err := c.Get("standings")
	require.NoError(t, err)

	entry := map[string]any{
		"team": map[string]any{"displayName": "Boston Celtics"},
		"stats": []any{
			map[string]any{"name": "wins", "abbreviation": "W", "displayValue": "48", "value": float64(48)},
			map[string]any{"name": "losses", "abbreviation": "L", "displayValue": "12", "value": float64(12)},
			map[string]any{"name": "winPercent", "abbreviation": "PCT", "displayValue": ".800", "value": 0.8},
			map[string]any{"name": "avgPointsFor", "displayValue": "120.5"},
			map[string]any{"name": "avgPointsAgainst", "displayValue": "109.3"},
			map[string]any{"name": "streak", "displayValue": "W3"},
			map[string]any{"name": "Home", "type": "home", "displayValue": "27-3"},
			map[string]any{"name": "vs. Div.", "displayValue": "10-2"},
			map[string]any{"name": "Last Ten Games", "displayValue": "8-2"},
		},
	}

	rows, skipped, err := job.Mapping.Normalize([]mapping.Record{entry})
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "Boston Celtics", row["time"])
	assert.Equal(t, int64(48), row["v"])
	assert.Equal(t, int64(12), row["d"])
	assert.Equal(t, 0.8, row["pct_vit"])
	assert.Equal(t, int64(60), row["ja"], "games played derived from wins and losses")
	assert.Equal(t, "27-3", row["casa"])
	assert.Nil(t, row["visitante"])
	assert.Equal(t, "10-2", row["div"])
	assert.Equal(t, 120.5, row["pts"])
	assert.Equal(t, 11.2, row["dif"])
	assert.Equal(t, "W3", row["strk"])
	assert.Equal(t, "8-2", row["u10"])
}

func TestStandingsWebMapping(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)
	job, err := c.Get("standings-web")
	require.NoError(t, err)

	cells := func(values ...any) mapping.Record { return map[string]any{"cells": values} }
	rows, skipped, err := job.Mapping.Normalize([]mapping.Record{
		cells("x - Boston Celtics", "48", "12", "", "-", "27-3", "21-9", "10-2", "30-8", "120,5", "109,3", "", "V3", "8-2"),
		cells("Conferência Leste", "V", "D"),
		cells("Detroit Pistons", "V", "D", "PCT", "GB", "CASA", "VIS", "DIV", "CONF", "PTS", "PTS C", "DIF", "SEQ", "U10"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, skipped, 2)

	row := rows[0]
	assert.Equal(t, "Boston Celtics", row["time_nome"])
	assert.Equal(t, int64(48), row["vitorias"])
	assert.Equal(t, 0.8, row["pct_vitoria"])
	assert.Equal(t, 11.2, row["diferenca_pontos"])
	assert.Equal(t, "8-2", row["ultimos_10"])
}

func TestLeadersMapping(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)
	job, err := c.Get("leaders")
	require.NoError(t, err)

	rows, skipped, err := job.Mapping.Normalize([]mapping.Record{map[string]any{
		"category": map[string]any{"name": "pointsPerGame", "displayName": "Points Per Game"},
		"rank":     1,
		"leader":   map[string]any{"value": 33.9, "displayValue": "33.9"},
		"athlete":  map[string]any{"id": "3945274", "displayName": "Luka Doncic"},
		"team":     map[string]any{"displayName": "Dallas Mavericks", "abbreviation": "DAL"},
		"season":   2025,
		"statistics": []any{
			map[string]any{"name": "gamesPlayed", "abbreviation": "GP", "value": float64(70)},
			map[string]any{"name": "avgMinutes", "abbreviation": "MIN", "value": 37.48},
		},
	}})
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, rows, 1)

	assert.Equal(t, "pointsPerGame", rows[0]["categoria"])
	assert.Equal(t, int64(1), rows[0]["posicao"])
	assert.Equal(t, "3945274", rows[0]["atleta_id"])
	assert.Equal(t, "DAL", rows[0]["time_sigla"])
	assert.Equal(t, int64(70), rows[0]["jogos"])
	assert.Equal(t, 37.5, rows[0]["minutos"])
	assert.Equal(t, int64(2025), rows[0]["temporada"])
}

func TestGetUnknownJob(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)

	_, err = c.Get("predictions")
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrConfiguration))

	_, err = c.Select("players", "nope")
	assert.Error(t, err)

	jobs, err := c.Select("leaders", "players")
	require.NoError(t, err)
	assert.Equal(t, "leaders", jobs[0].Name)
	assert.Equal(t, "players", jobs[1].Name)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty": `jobs: []`,
		"unknown field": `
jobs:
  - name: x
    source: {kind: json, url: http://x}
    mapping: {columns: [{name: a, paths: [a], tipe: int}]}
    target: {table: t, strategy: upsert, conflict_key: [a]}`,
		"unknown kind": `
jobs:
  - name: x
    source: {kind: ftp}
    mapping: {columns: [{name: a, paths: [a]}]}
    target: {table: t, strategy: upsert, conflict_key: [a]}`,
		"duplicate": `
jobs:
  - name: x
    source: {kind: json, url: http://x}
    mapping: {columns: [{name: a, paths: [a]}]}
    target: {table: t, strategy: upsert, conflict_key: [a]}
  - name: x
    source: {kind: json, url: http://x}
    mapping: {columns: [{name: a, paths: [a]}]}
    target: {table: t, strategy: upsert, conflict_key: [a]}`,
		"replace without sentinel": `
jobs:
  - name: x
    source: {kind: json, url: http://x}
    mapping: {columns: [{name: a, paths: [a]}]}
    target: {table: t, strategy: replace}`,
		"bad derive": `
jobs:
  - name: x
    source: {kind: json, url: http://x}
    mapping: {columns: [{name: a, derive: {op: win_pct, args: [b, c]}}]}
    target: {table: t, strategy: upsert, conflict_key: [a]}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, syncerr.ErrConfiguration), err.Error())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - name: teams
    source: {kind: json, url: "http://localhost/teams", records: [teams]}
    mapping: {columns: [{name: id, paths: [id], type: int, required: true}]}
    target: {table: teams, strategy: upsert, conflict_key: [id]}
    on_empty: skip
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"teams"}, c.Names())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, syncerr.ErrConfiguration))
}

func TestWithParamCopies(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)
	leaders, err := c.Get("leaders")
	require.NoError(t, err)

	custom := WithParam(leaders, "season", "2024")
	assert.Equal(t, "2024", custom.Source.Params["season"])

	again, err := c.Get("leaders")
	require.NoError(t, err)
	_, set := again.Source.Params["season"]
	assert.False(t, set)
}
