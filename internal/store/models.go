package store

// Injury is one row of nba_injured_players as written by the injuries job.
// Every column other than the conflict key may be NULL.
type Injury struct {
	PlayerID          string  `json:"player_id" db:"player_id"`
	PlayerName        *string `json:"player_name" db:"player_name"`
	PlayerShortName   *string `json:"player_short_name" db:"player_short_name"`
	TeamID            *string `json:"team_id" db:"team_id"`
	TeamName          *string `json:"team_name" db:"team_name"`
	TeamAbbreviation  *string `json:"team_abbreviation" db:"team_abbreviation"`
	Position          *string `json:"position" db:"position"`
	PositionFull      *string `json:"position_full" db:"position_full"`
	JerseyNumber      *string `json:"jersey_number" db:"jersey_number"`
	HeadshotURL       *string `json:"headshot_url" db:"headshot_url"`
	InjuryStatus      *string `json:"injury_status" db:"injury_status"`
	InjuryType        *string `json:"injury_type" db:"injury_type"`
	InjuryDetails     *string `json:"injury_details" db:"injury_details"`
	InjuryDescription *string `json:"injury_description" db:"injury_description"`
	InjuryDate        string  `json:"injury_date" db:"injury_date"`
	LastUpdated       *string `json:"last_updated" db:"last_updated"`
	ESPNPlayerURL     *string `json:"espn_player_url" db:"espn_player_url"`
}

// Deref returns the pointed-to string or fallback when nil.
func Deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
