package espn

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/source"
)

// InjuriesSource emits one record per currently injured athlete:
//
//	{"athlete": {...}, "team": {...}, "injury": injuries[0], "player_url": "...", "fetched_at": "..."}
//
// A team whose roster cannot be fetched is skipped; the team list itself is
// required.
type InjuriesSource struct {
	deps source.Deps
}

func (s *InjuriesSource) Fetch(ctx context.Context, spec source.Spec) ([]mapping.Record, error) {
	limit, err := spec.IntParam("limit", 0)
	if err != nil {
		return nil, err
	}

	client := clientFor(s.deps, spec)
	logger := s.deps.Logger.Named("espn-injuries")

	teams, err := client.Teams(ctx, limit)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "teams found", "count", len(teams))

	fetchedAt := s.deps.Now().UTC().Format(time.RFC3339)
	var records []mapping.Record
	for _, team := range teams {
		athletes, err := client.Roster(ctx, team.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.WarnContext(ctx, "roster unavailable, skipping team", "team", team.DisplayName, "err", err)
			continue
		}

		injured := 0
		for _, athlete := range athletes {
			injuries := mapping.LookupSlice(athlete, "injuries")
			if len(injuries) == 0 {
				continue
			}
			injured++
			records = append(records, map[string]any{
				"athlete":    athlete,
				"team":       team.Raw,
				"injury":     injuries[0],
				"player_url": fmt.Sprintf(PlayerURLFormat, mapping.LookupString(athlete, "id")),
				"fetched_at": fetchedAt,
			})
		}
		if injured > 0 {
			logger.InfoContext(ctx, "injured players", "team", team.Abbreviation, "count", injured)
		}
	}
	return records, nil
}
