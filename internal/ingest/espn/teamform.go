package espn

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/source"
)

// TeamFormSource emits one record per team with its recent results:
//
//	{"team": {...}, "form": "V-D-V-V-D", "results": ["V", ...], "wins": 3, "played": 5}
//
// Schedules are fetched concurrently; records keep the team list order.
type TeamFormSource struct {
	deps source.Deps
}

func (s *TeamFormSource) Fetch(ctx context.Context, spec source.Spec) ([]mapping.Record, error) {
	limit, err := spec.IntParam("limit", 35)
	if err != nil {
		return nil, err
	}
	games, err := spec.IntParam("games", 5)
	if err != nil {
		return nil, err
	}
	workers, err := spec.IntParam("concurrency", 4)
	if err != nil {
		return nil, err
	}
	sep := spec.Param("separator", "-")

	client := clientFor(s.deps, spec)
	logger := s.deps.Logger.Named("espn-team-form")

	teams, err := client.Teams(ctx, limit)
	if err != nil {
		return nil, err
	}

	results := make([][]GameResult, len(teams))
	ok := make([]bool, len(teams))

	p := pool.New().WithMaxGoroutines(max(workers, 1))
	for i, team := range teams {
		p.Go(func() {
			events, err := client.Schedule(ctx, team.ID)
			if err != nil {
				logger.WarnContext(ctx, "schedule unavailable, skipping team", "team", team.DisplayName, "err", err)
				return
			}
			results[i] = finishedGames(events, team.ID)
			ok[i] = true
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]mapping.Record, 0, len(teams))
	for i, team := range teams {
		if !ok[i] {
			continue
		}
		form := recentForm(results[i], games)
		wins := 0
		letters := make([]any, len(form))
		for j, letter := range form {
			letters[j] = letter
			if letter == FormWin {
				wins++
			}
		}
		records = append(records, map[string]any{
			"team":    team.Raw,
			"form":    joinForm(form, sep),
			"results": letters,
			"wins":    wins,
			"played":  min(len(results[i]), games),
		})
	}
	return records, nil
}
