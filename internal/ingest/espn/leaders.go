package espn

import (
	"context"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/source"
	"github.com/fortuna/cesta/internal/syncerr"
)

// LeadersSource emits one record per (category, rank) from the core API
// leaders document:
//
//	{"category": {...}, "rank": 1, "leader": {"value": .., "displayValue": ..},
//	 "athlete": {...}, "team": {...}, "statistics": [stat entries], "season": 2025}
//
// Team documents are resolved up front with a bounded fan-out. Athletes and
// their statistics are then resolved one at a time; a leader whose athlete
// cannot be resolved is skipped.
type LeadersSource struct {
	deps source.Deps
}

func (s *LeadersSource) Fetch(ctx context.Context, spec source.Spec) ([]mapping.Record, error) {
	season, err := spec.IntParam("season", CurrentSeason(s.deps.Now()))
	if err != nil {
		return nil, err
	}
	seasonType, err := spec.IntParam("season_type", SeasonTypeRegular)
	if err != nil {
		return nil, err
	}
	top, err := spec.IntParam("top", 5)
	if err != nil {
		return nil, err
	}
	workers, err := spec.IntParam("concurrency", 8)
	if err != nil {
		return nil, err
	}
	withStats, err := spec.BoolParam("statistics", true)
	if err != nil {
		return nil, err
	}
	wanted := splitList(spec.Param("categories", ""))

	client := clientFor(s.deps, spec)
	logger := s.deps.Logger.Named("espn-leaders")

	doc, err := client.Leaders(ctx, season, seasonType)
	if err != nil {
		return nil, err
	}
	rawCategories, ok := doc["categories"].([]any)
	if !ok {
		return nil, syncerr.ShapeMismatch("leaders payload has no \"categories\" list")
	}

	type entry struct {
		category map[string]any
		rank     int
		leader   map[string]any
	}
	var entries []entry
	for _, c := range rawCategories {
		category, _ := c.(map[string]any)
		if category == nil {
			continue
		}
		if len(wanted) > 0 && !wanted[mapping.LookupString(category, "name")] {
			continue
		}
		for i, l := range mapping.LookupSlice(category, "leaders") {
			if i >= top {
				break
			}
			if leader, ok := l.(map[string]any); ok {
				entries = append(entries, entry{category: category, rank: i + 1, leader: leader})
			}
		}
	}

	teamRefs := make([]string, 0)
	for _, e := range entries {
		if ref := mapping.LookupString(e.leader, `team["$ref"]`); ref != "" {
			teamRefs = append(teamRefs, ref)
		}
	}
	teams := s.resolveTeams(ctx, client, teamRefs, workers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	athletes := make(map[string]map[string]any)
	statistics := make(map[string][]any)
	records := make([]mapping.Record, 0, len(entries))
	for _, e := range entries {
		athleteRef := mapping.LookupString(e.leader, `athlete["$ref"]`)
		if athleteRef == "" {
			logger.WarnContext(ctx, "leader without athlete reference, skipping", "category", mapping.LookupString(e.category, "name"), "rank", e.rank)
			continue
		}

		athlete, seen := athletes[athleteRef]
		if !seen {
			athlete, err = client.Ref(ctx, athleteRef)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.WarnContext(ctx, "athlete unresolved, skipping", "ref", athleteRef, "err", err)
				athletes[athleteRef] = nil
				continue
			}
			athletes[athleteRef] = athlete
		}
		if athlete == nil {
			continue
		}

		var stats []any
		if statsRef := mapping.LookupString(e.leader, `statistics["$ref"]`); withStats && statsRef != "" {
			cached, seen := statistics[statsRef]
			if !seen {
				statsDoc, err := client.Ref(ctx, statsRef)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					logger.WarnContext(ctx, "statistics unresolved", "ref", statsRef, "err", err)
				} else {
					cached = flattenStatistics(statsDoc)
				}
				statistics[statsRef] = cached
			}
			stats = cached
		}

		record := map[string]any{
			"category": e.category,
			"rank":     e.rank,
			"leader":   e.leader,
			"athlete":  athlete,
			"season":   season,
		}
		if team, ok := teams[mapping.LookupString(e.leader, `team["$ref"]`)]; ok {
			record["team"] = team
		}
		if stats != nil {
			record["statistics"] = stats
		}
		records = append(records, record)
	}

	logger.InfoContext(ctx, "leaders resolved", "season", season, "records", len(records), "teams", len(teams))
	return records, nil
}

// resolveTeams fetches every distinct team reference concurrently and
// returns the documents keyed by reference. Failed lookups are left out.
func (s *LeadersSource) resolveTeams(ctx context.Context, client *Client, refs []string, workers int) map[string]map[string]any {
	var (
		mu    sync.Mutex
		teams = make(map[string]map[string]any, len(refs))
		seen  = make(map[string]bool, len(refs))
	)

	p := pool.New().WithMaxGoroutines(max(workers, 1))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		p.Go(func() {
			doc, err := client.Ref(ctx, ref)
			if err != nil {
				s.deps.Logger.WarnContext(ctx, "team unresolved", "ref", ref, "err", err)
				return
			}
			mu.Lock()
			teams[ref] = doc
			mu.Unlock()
		})
	}
	p.Wait()
	return teams
}

func splitList(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out[part] = true
		}
	}
	return out
}
