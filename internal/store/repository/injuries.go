package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/cesta/internal/store"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

const injuryColumns = `
	player_id, player_name, player_short_name, team_id, team_name,
	team_abbreviation, position, position_full, jersey_number, headshot_url,
	injury_status, injury_type, injury_details, injury_description,
	injury_date::text AS injury_date, last_updated::text AS last_updated, espn_player_url`

// InjuryRepository reads nba_injured_players.
type InjuryRepository struct {
	db *store.Database
}

// NewInjuryRepository creates a new injury repository
func NewInjuryRepository(db *store.Database) *InjuryRepository {
	return &InjuryRepository{db: db}
}

// List returns up to limit injuries ordered by team and player.
func (r *InjuryRepository) List(ctx context.Context, limit int) ([]store.Injury, error) {
	query := `SELECT ` + injuryColumns + `
		FROM nba_injured_players
		ORDER BY team_abbreviation, player_name
		LIMIT $1`

	injuries := []store.Injury{}
	if err := r.db.DB().SelectContext(ctx, &injuries, query, limit); err != nil {
		return nil, fmt.Errorf("querying injuries: %w", err)
	}
	return injuries, nil
}

// All returns every injury; the table holds one row per injured player so
// it stays small.
func (r *InjuryRepository) All(ctx context.Context) ([]store.Injury, error) {
	query := `SELECT ` + injuryColumns + `
		FROM nba_injured_players
		ORDER BY team_abbreviation, player_name`

	injuries := []store.Injury{}
	if err := r.db.DB().SelectContext(ctx, &injuries, query); err != nil {
		return nil, fmt.Errorf("querying injuries: %w", err)
	}
	return injuries, nil
}

func (r *InjuryRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.DB().GetContext(ctx, &n, `SELECT COUNT(*) FROM nba_injured_players`); err != nil {
		return 0, fmt.Errorf("counting injuries: %w", err)
	}
	return n, nil
}

// ByTeam matches the team abbreviation case-insensitively ("lal", "LAL").
func (r *InjuryRepository) ByTeam(ctx context.Context, abbreviation string) ([]store.Injury, error) {
	query := `SELECT ` + injuryColumns + `
		FROM nba_injured_players
		WHERE UPPER(team_abbreviation) = UPPER($1)
		ORDER BY player_name`

	injuries := []store.Injury{}
	if err := r.db.DB().SelectContext(ctx, &injuries, query, abbreviation); err != nil {
		return nil, fmt.Errorf("querying injuries for team %s: %w", abbreviation, err)
	}
	return injuries, nil
}

// ByPlayer returns the player's most recent injury.
func (r *InjuryRepository) ByPlayer(ctx context.Context, playerID string) (*store.Injury, error) {
	query := `SELECT ` + injuryColumns + `
		FROM nba_injured_players
		WHERE player_id = $1
		ORDER BY injury_date DESC
		LIMIT 1`

	injury := &store.Injury{}
	err := r.db.DB().GetContext(ctx, injury, query, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("injury for player %s: %w", playerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying injury for player %s: %w", playerID, err)
	}
	return injury, nil
}

// ByStatus matches injury_status case-insensitively ("out", "Day-To-Day").
func (r *InjuryRepository) ByStatus(ctx context.Context, status string) ([]store.Injury, error) {
	query := `SELECT ` + injuryColumns + `
		FROM nba_injured_players
		WHERE LOWER(injury_status) = LOWER($1)
		ORDER BY team_abbreviation, player_name`

	injuries := []store.Injury{}
	if err := r.db.DB().SelectContext(ctx, &injuries, query, status); err != nil {
		return nil, fmt.Errorf("querying injuries with status %s: %w", status, err)
	}
	return injuries, nil
}

// SearchByName does a case-insensitive substring match on player_name.
func (r *InjuryRepository) SearchByName(ctx context.Context, term string) ([]store.Injury, error) {
	query := `SELECT ` + injuryColumns + `
		FROM nba_injured_players
		WHERE player_name ILIKE '%' || $1 || '%'
		ORDER BY player_name`

	injuries := []store.Injury{}
	if err := r.db.DB().SelectContext(ctx, &injuries, query, term); err != nil {
		return nil, fmt.Errorf("searching injuries for %q: %w", term, err)
	}
	return injuries, nil
}
