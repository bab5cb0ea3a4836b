package espn

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fortuna/cesta/internal/ingest"
	"github.com/fortuna/cesta/internal/logging"
)

const (
	SiteBaseURL     = "https://site.api.espn.com/apis/site/v2/sports/basketball/nba"
	CoreBaseURL     = "https://sports.core.api.espn.com/v2/sports/basketball/leagues/nba"
	PlayerURLFormat = "https://www.espn.com/nba/player/_/id/%s"

	SeasonTypeRegular = 2
)

// Client wraps the ESPN site and core APIs. Site endpoints return documents;
// core endpoints return $ref links that have to be followed one by one.
type Client struct {
	http    *ingest.Client
	siteURL string
	coreURL string
	headers map[string]string
	logger  *logging.Logger
}

func NewClient(http *ingest.Client, siteURL, coreURL string, headers map[string]string, logger *logging.Logger) *Client {
	if siteURL == "" {
		siteURL = SiteBaseURL
	}
	if coreURL == "" {
		coreURL = CoreBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		http:    http,
		siteURL: strings.TrimRight(siteURL, "/"),
		coreURL: strings.TrimRight(coreURL, "/"),
		headers: headers,
		logger:  logger.Named("espn-client"),
	}
}

// Teams lists the league's teams. limit <= 0 uses ESPN's default page size.
func (c *Client) Teams(ctx context.Context, limit int) ([]Team, error) {
	endpoint := c.siteURL + "/teams"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	payload, err := c.http.GetObject(ctx, endpoint, c.headers)
	if err != nil {
		return nil, err
	}
	return parseTeams(payload)
}

// Roster returns the athletes currently listed for a team.
func (c *Client) Roster(ctx context.Context, teamID string) ([]map[string]any, error) {
	payload, err := c.http.GetObject(ctx, fmt.Sprintf("%s/teams/%s/roster", c.siteURL, url.PathEscape(teamID)), c.headers)
	if err != nil {
		return nil, err
	}
	return parseRoster(payload)
}

// Schedule returns a team's events for the current season.
func (c *Client) Schedule(ctx context.Context, teamID string) ([]any, error) {
	payload, err := c.http.GetObject(ctx, fmt.Sprintf("%s/teams/%s/schedule", c.siteURL, url.PathEscape(teamID)), c.headers)
	if err != nil {
		return nil, err
	}
	return parseSchedule(payload)
}

// Leaders fetches the core API leaders document for a season.
func (c *Client) Leaders(ctx context.Context, season, seasonType int) (map[string]any, error) {
	return c.http.GetObject(ctx, fmt.Sprintf("%s/seasons/%d/types/%d/leaders", c.coreURL, season, seasonType), c.headers)
}

// Ref follows a $ref link from a core API document.
func (c *Client) Ref(ctx context.Context, ref string) (map[string]any, error) {
	return c.http.GetObject(ctx, secureRef(ref), c.headers)
}

// secureRef upgrades ESPN's http:// $ref links; other hosts are left alone.
func secureRef(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "http" {
		return ref
	}
	if host := u.Hostname(); host == "espn.com" || strings.HasSuffix(host, ".espn.com") {
		u.Scheme = "https"
		return u.String()
	}
	return ref
}
