package espn

import (
	"sort"
	"strings"

	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/syncerr"
)

// parseTeams walks sports[].leagues[].teams[].team.
func parseTeams(payload map[string]any) ([]Team, error) {
	sports, ok := payload["sports"].([]any)
	if !ok {
		return nil, syncerr.ShapeMismatch("teams payload has no \"sports\" list")
	}

	var teams []Team
	for _, sport := range sports {
		for _, league := range mapping.LookupSlice(sport, "leagues") {
			for _, item := range mapping.LookupSlice(league, "teams") {
				raw := mapping.LookupMap(item, "team")
				if raw == nil {
					continue
				}
				team := Team{
					ID:           mapping.LookupString(raw, "id"),
					DisplayName:  mapping.LookupString(raw, "displayName"),
					Name:         mapping.LookupString(raw, "name"),
					Abbreviation: mapping.LookupString(raw, "abbreviation"),
					Raw:          raw,
				}
				if team.ID == "" {
					continue
				}
				teams = append(teams, team)
			}
		}
	}
	return teams, nil
}

// parseRoster accepts both the flat athletes list and the grouped form where
// each entry carries an items list.
func parseRoster(payload map[string]any) ([]map[string]any, error) {
	entries, ok := payload["athletes"].([]any)
	if !ok {
		return nil, syncerr.ShapeMismatch("roster payload has no \"athletes\" list")
	}

	var athletes []map[string]any
	for _, entry := range entries {
		if items := mapping.LookupSlice(entry, "items"); items != nil {
			for _, item := range items {
				if athlete, ok := item.(map[string]any); ok {
					athletes = append(athletes, athlete)
				}
			}
			continue
		}
		if athlete, ok := entry.(map[string]any); ok {
			athletes = append(athletes, athlete)
		}
	}
	return athletes, nil
}

func parseSchedule(payload map[string]any) ([]any, error) {
	events, ok := payload["events"]
	if !ok || events == nil {
		return nil, nil
	}
	list, ok := events.([]any)
	if !ok {
		return nil, syncerr.ShapeMismatch("schedule \"events\" is %T, not a list", events)
	}
	return list, nil
}

// finishedGames returns the team's completed games in date order.
func finishedGames(events []any, teamID string) []GameResult {
	var results []GameResult
	for _, event := range events {
		competition := mapping.LookupMap(event, "competitions[0]")
		if competition == nil || mapping.LookupString(competition, "status.type.state") != "post" {
			continue
		}
		result := GameResult{
			EventID: mapping.LookupString(event, "id"),
			Date:    mapping.LookupString(event, "date"),
		}
		for _, competitor := range mapping.LookupSlice(competition, "competitors") {
			id := mapping.LookupString(competitor, "id")
			if id == "" {
				id = mapping.LookupString(competitor, "team.id")
			}
			if id != teamID {
				continue
			}
			fields, _ := competitor.(map[string]any)
			result.Won, _ = fields["winner"].(bool)
		}
		results = append(results, result)
	}

	// ISO-8601 dates sort lexically.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Date < results[j].Date })
	return results
}

// recentForm returns the last n results as V/D letters, oldest first,
// padded at the front with losses when fewer than n games were played.
func recentForm(results []GameResult, n int) []string {
	if len(results) > n {
		results = results[len(results)-n:]
	}
	form := make([]string, 0, n)
	for i := len(results); i < n; i++ {
		form = append(form, FormLoss)
	}
	for _, r := range results {
		form = append(form, r.Letter())
	}
	return form
}

func joinForm(form []string, sep string) string {
	return strings.Join(form, sep)
}

// flattenStatistics merges splits.categories[].stats[] of an athlete
// statistics document into one list of stat entries.
func flattenStatistics(doc map[string]any) []any {
	var out []any
	for _, category := range mapping.LookupSlice(doc, "splits.categories") {
		out = append(out, mapping.LookupSlice(category, "stats")...)
	}
	return out
}
