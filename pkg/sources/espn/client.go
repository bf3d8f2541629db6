// Package espn reads live game status from ESPN's public scoreboard API.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phenomenon0/sportsboard/pkg/board"
)

const (
	BaseURL = "https://site.api.espn.com/apis/site/v2/sports"
)

// SportPaths maps a league to its scoreboard path.
var SportPaths = map[board.League]string{
	board.LeagueNFL:   "football/nfl",
	board.LeagueNBA:   "basketball/nba",
	board.LeagueMLB:   "baseball/mlb",
	board.LeagueNHL:   "hockey/nhl",
	board.LeagueMLS:   "soccer/usa.1",
	board.LeagueWNBA:  "basketball/wnba",
	board.LeagueNCAAF: "football/college-football",
	board.LeagueNCAAB: "basketball/mens-college-basketball",
	board.LeagueUFC:   "mma/ufc",
}

// Client handles ESPN API requests
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// New creates a new ESPN API client. An empty baseURL uses BaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "Mozilla/5.0 (compatible; sportsboard/1.0)",
	}
}

// Game is one scoreboard entry reduced to what status matching needs.
type Game struct {
	ID     string       `json:"id"`
	League board.League `json:"league"`
	Away   Team         `json:"away"`
	Home   Team         `json:"home"`
	Status string       `json:"status"` // e.g. STATUS_IN_PROGRESS
	Detail string       `json:"detail,omitempty"`
}

// Team names as ESPN reports them.
type Team struct {
	DisplayName string `json:"display_name"` // "Los Angeles Lakers"
	ShortName   string `json:"short_name"`   // "Lakers"
}

// Descriptions returns "Away @ Home" forms of the game, full names first.
func (g Game) Descriptions() []string {
	var out []string
	if g.Away.DisplayName != "" && g.Home.DisplayName != "" {
		out = append(out, g.Away.DisplayName+" @ "+g.Home.DisplayName)
	}
	if g.Away.ShortName != "" && g.Home.ShortName != "" &&
		(g.Away.ShortName != g.Away.DisplayName || g.Home.ShortName != g.Home.DisplayName) {
		out = append(out, g.Away.ShortName+" @ "+g.Home.ShortName)
	}
	return out
}

type scoreboardResponse struct {
	Events []struct {
		ID     string `json:"id"`
		Status struct {
			Type struct {
				Name   string `json:"name"`
				Detail string `json:"shortDetail"`
			} `json:"type"`
		} `json:"status"`
		Competitions []struct {
			Competitors []struct {
				HomeAway string `json:"homeAway"`
				Team     struct {
					DisplayName      string `json:"displayName"`
					ShortDisplayName string `json:"shortDisplayName"`
				} `json:"team"`
			} `json:"competitors"`
		} `json:"competitions"`
	} `json:"events"`
}

// FetchScoreboard fetches today's games for a league.
func (c *Client) FetchScoreboard(ctx context.Context, league board.League) ([]Game, error) {
	path, ok := SportPaths[league]
	if !ok {
		return nil, fmt.Errorf("no scoreboard for league %s", league)
	}

	var resp scoreboardResponse
	if err := c.fetch(ctx, fmt.Sprintf("%s/%s/scoreboard", c.baseURL, path), &resp); err != nil {
		return nil, err
	}

	games := make([]Game, 0, len(resp.Events))
	for _, ev := range resp.Events {
		g := Game{
			ID:     ev.ID,
			League: league,
			Status: ev.Status.Type.Name,
			Detail: ev.Status.Type.Detail,
		}
		if len(ev.Competitions) > 0 {
			for _, comp := range ev.Competitions[0].Competitors {
				t := Team{DisplayName: comp.Team.DisplayName, ShortName: comp.Team.ShortDisplayName}
				switch comp.HomeAway {
				case "home":
					g.Home = t
				case "away":
					g.Away = t
				}
			}
		}
		games = append(games, g)
	}
	return games, nil
}

// FetchAll fetches every league's scoreboard. A failing league is reported in
// the error map and does not stop the others.
func (c *Client) FetchAll(ctx context.Context, leagues []board.League) ([]Game, map[board.League]error) {
	var games []Game
	errs := make(map[board.League]error)
	for _, league := range leagues {
		g, err := c.FetchScoreboard(ctx, league)
		if err != nil {
			errs[league] = err
			continue
		}
		games = append(games, g...)
	}
	return games, errs
}

// fetch makes an HTTP GET request and decodes the JSON body into out.
func (c *Client) fetch(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ESPN API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
