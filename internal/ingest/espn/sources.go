package espn

import (
	"time"

	"github.com/fortuna/cesta/internal/source"
)

// Source kinds backed by ESPN reference-graph traversal.
const (
	KindInjuries = "espn_injuries"
	KindTeamForm = "espn_team_form"
	KindLeaders  = "espn_leaders"
)

func init() {
	source.Register(KindInjuries, func(d source.Deps) source.Source { return &InjuriesSource{deps: d} })
	source.Register(KindTeamForm, func(d source.Deps) source.Source { return &TeamFormSource{deps: d} })
	source.Register(KindLeaders, func(d source.Deps) source.Source { return &LeadersSource{deps: d} })
}

// clientFor builds a client honouring the site_url/core_url params, which
// the catalog leaves unset outside tests.
func clientFor(deps source.Deps, spec source.Spec) *Client {
	return NewClient(deps.HTTP, spec.Param("site_url", SiteBaseURL), spec.Param("core_url", CoreBaseURL), spec.Headers, deps.Logger)
}

// CurrentSeason returns ESPN's season year (the year the season ends) for t.
func CurrentSeason(t time.Time) int {
	if t.Month() >= time.October {
		return t.Year() + 1
	}
	return t.Year()
}
