package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fortuna/cesta/internal/store"
	"github.com/fortuna/cesta/internal/store/repository"
)

const unknown = "Unknown"

// InjuryService answers the read API's questions about injured players.
type InjuryService struct {
	repo *repository.InjuryRepository
}

// NewInjuryService creates a new injury service
func NewInjuryService(db *store.Database) *InjuryService {
	return &InjuryService{repo: repository.NewInjuryRepository(db)}
}

// InjuryPage is a limited listing plus the table total.
type InjuryPage struct {
	Injuries []store.Injury
	Total    int
}

// TeamInjuries groups injured players under their team.
type TeamInjuries struct {
	TeamAbbreviation string          `json:"team_abbreviation"`
	TeamName         string          `json:"team_name"`
	InjuredCount     int             `json:"injured_count"`
	Players          []InjuredPlayer `json:"players"`
}

type InjuredPlayer struct {
	PlayerName   string `json:"player_name"`
	Position     string `json:"position"`
	InjuryStatus string `json:"injury_status"`
}

// InjuryStats summarizes the table.
type InjuryStats struct {
	TotalInjuries int            `json:"total_injuries"`
	ByStatus      map[string]int `json:"by_status"`
	ByPosition    map[string]int `json:"by_position"`
	TopTeams      []TeamCount    `json:"top_5_teams"`
	LastUpdated   *string        `json:"last_updated"`
}

type TeamCount struct {
	Team  string `json:"team"`
	Count int    `json:"count"`
}

func (s *InjuryService) List(ctx context.Context, limit int) (*InjuryPage, error) {
	injuries, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &InjuryPage{Injuries: injuries, Total: total}, nil
}

func (s *InjuryService) ByTeam(ctx context.Context, abbreviation string) ([]store.Injury, error) {
	return s.repo.ByTeam(ctx, strings.TrimSpace(abbreviation))
}

// ByPlayer wraps repository.ErrNotFound when the player has no injury.
func (s *InjuryService) ByPlayer(ctx context.Context, playerID string) (*store.Injury, error) {
	return s.repo.ByPlayer(ctx, strings.TrimSpace(playerID))
}

func (s *InjuryService) ByStatus(ctx context.Context, status string) ([]store.Injury, error) {
	return s.repo.ByStatus(ctx, strings.TrimSpace(status))
}

func (s *InjuryService) Search(ctx context.Context, term string) ([]store.Injury, error) {
	return s.repo.SearchByName(ctx, strings.ToLower(strings.TrimSpace(term)))
}

// Teams lists teams with injured players, most injuries first.
func (s *InjuryService) Teams(ctx context.Context) ([]TeamInjuries, error) {
	injuries, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching injuries: %w", err)
	}
	return GroupByTeam(injuries), nil
}

func (s *InjuryService) Stats(ctx context.Context) (*InjuryStats, error) {
	injuries, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching injuries: %w", err)
	}
	return Summarize(injuries), nil
}

// GroupByTeam groups injuries by team abbreviation. Rows without one are
// left out. Ties keep first-seen order.
func GroupByTeam(injuries []store.Injury) []TeamInjuries {
	index := map[string]int{}
	teams := []TeamInjuries{}
	for _, inj := range injuries {
		abbr := store.Deref(inj.TeamAbbreviation, "")
		if abbr == "" {
			continue
		}
		i, ok := index[abbr]
		if !ok {
			i = len(teams)
			index[abbr] = i
			teams = append(teams, TeamInjuries{
				TeamAbbreviation: abbr,
				TeamName:         store.Deref(inj.TeamName, ""),
			})
		}
		teams[i].InjuredCount++
		teams[i].Players = append(teams[i].Players, InjuredPlayer{
			PlayerName:   store.Deref(inj.PlayerName, ""),
			Position:     store.Deref(inj.Position, ""),
			InjuryStatus: store.Deref(inj.InjuryStatus, ""),
		})
	}

	sort.SliceStable(teams, func(a, b int) bool {
		return teams[a].InjuredCount > teams[b].InjuredCount
	})
	return teams
}

// Summarize counts injuries by status, position and team.
func Summarize(injuries []store.Injury) *InjuryStats {
	stats := &InjuryStats{
		TotalInjuries: len(injuries),
		ByStatus:      map[string]int{},
		ByPosition:    map[string]int{},
		TopTeams:      []TeamCount{},
	}

	byTeam := map[string]int{}
	var order []string
	for _, inj := range injuries {
		stats.ByStatus[store.Deref(inj.InjuryStatus, unknown)]++
		stats.ByPosition[store.Deref(inj.Position, unknown)]++

		team := store.Deref(inj.TeamAbbreviation, unknown)
		if _, seen := byTeam[team]; !seen {
			order = append(order, team)
		}
		byTeam[team]++

		if inj.LastUpdated != nil && (stats.LastUpdated == nil || *inj.LastUpdated > *stats.LastUpdated) {
			stats.LastUpdated = inj.LastUpdated
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return byTeam[order[a]] > byTeam[order[b]]
	})
	for _, team := range order[:min(5, len(order))] {
		stats.TopTeams = append(stats.TopTeams, TeamCount{Team: team, Count: byTeam[team]})
	}
	return stats
}
