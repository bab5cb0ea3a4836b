package espn

// Team captures the identifiers the sync jobs need from a team listing
// entry. Raw keeps the whole entry so mappings can reach any other field.
type Team struct {
	ID           string
	DisplayName  string
	Name         string
	Abbreviation string
	Raw          map[string]any
}

// GameResult is one finished game seen from a single team's side.
type GameResult struct {
	EventID string
	Date    string
	Won     bool
}

const (
	FormWin  = "V"
	FormLoss = "D"
)

func (g GameResult) Letter() string {
	if g.Won {
		return FormWin
	}
	return FormLoss
}
