package teams

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultDirectoryTTL is how long a fetched team list is served before refresh.
const DefaultDirectoryTTL = 24 * time.Hour

// Team is one entry of the secondary provider's team directory.
type Team struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Alias        string `json:"alias,omitempty"`
	League       string `json:"league"`
	Logo         string `json:"logo,omitempty"`
}

// Directory fetches the provider's /teams list and resolves names to teams.
// It backs display lookups (logos, abbreviations); matching never uses it.
type Directory struct {
	httpClient *http.Client
	baseURL    string
	ttl        time.Duration
	now        func() time.Time

	mu          sync.RWMutex
	byName      map[string]*Team // normalized name or alias
	byAbbrev    map[string]*Team // lowercase abbreviation
	count       int
	lastRefresh time.Time
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) DirectoryOption {
	return func(d *Directory) { d.httpClient = c }
}

// WithTTL sets the cache lifetime.
func WithTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) { d.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) DirectoryOption {
	return func(d *Directory) { d.now = now }
}

// NewDirectory creates a directory reading from baseURL + "/teams".
func NewDirectory(baseURL string, opts ...DirectoryOption) *Directory {
	d := &Directory{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		ttl:        DefaultDirectoryTTL,
		now:        time.Now,
		byName:     make(map[string]*Team),
		byAbbrev:   make(map[string]*Team),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type teamEntry struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Abbreviation string  `json:"abbreviation"`
	Alias        *string `json:"alias"`
	League       string  `json:"league"`
	Logo         string  `json:"logo"`
}

// Refresh replaces the cached list with a fresh fetch.
func (d *Directory) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/teams", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching teams: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("teams API returned %d", resp.StatusCode)
	}

	var entries []teamEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return fmt.Errorf("decoding teams: %w", err)
	}

	byName := make(map[string]*Team, len(entries))
	byAbbrev := make(map[string]*Team, len(entries))
	for _, e := range entries {
		team := &Team{
			ID:           strconv.Itoa(e.ID),
			Name:         e.Name,
			Abbreviation: e.Abbreviation,
			League:       e.League,
			Logo:         e.Logo,
		}
		if e.Alias != nil {
			team.Alias = *e.Alias
		}

		if key := Normalize(team.Name); key != "" {
			byName[key] = team
		}
		if key := Normalize(team.Alias); key != "" {
			if _, exists := byName[key]; !exists {
				byName[key] = team
			}
		}
		if team.Abbreviation != "" {
			byAbbrev[strings.ToLower(team.Abbreviation)] = team
		}
	}

	d.mu.Lock()
	d.byName = byName
	d.byAbbrev = byAbbrev
	d.count = len(entries)
	d.lastRefresh = d.now()
	d.mu.Unlock()
	return nil
}

// EnsureLoaded refreshes when the list is empty or older than the TTL.
func (d *Directory) EnsureLoaded(ctx context.Context) error {
	d.mu.RLock()
	stale := d.count == 0 || d.now().Sub(d.lastRefresh) > d.ttl
	d.mu.RUnlock()

	if stale {
		return d.Refresh(ctx)
	}
	return nil
}

// Lookup resolves a team by name, alias or abbreviation.
func (d *Directory) Lookup(ctx context.Context, name string) (Team, bool, error) {
	if err := d.EnsureLoaded(ctx); err != nil {
		return Team{}, false, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if t, ok := d.byName[Normalize(name)]; ok {
		return *t, true, nil
	}
	if t, ok := d.byAbbrev[strings.ToLower(strings.TrimSpace(name))]; ok {
		return *t, true, nil
	}
	return Team{}, false, nil
}

// Len returns the number of loaded teams.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}
