// Package scraper collects real Battlesnake games: it finds game ids on the
// public leaderboards and downloads their frames from the engine.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

const userAgent = "BattlesnakeScraper/1.0 (training-data-collector)"

type DiscoveryConfig struct {
	BaseURL string
	// Leaderboards are paths under BaseURL, e.g. /leaderboard/standard.
	Leaderboards []string
	RequestDelay time.Duration
	// MaxPlayers caps the players checked per leaderboard. Zero is unlimited.
	MaxPlayers int
}

func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		BaseURL:      "https://play.battlesnake.com",
		Leaderboards: []string{"/leaderboard/standard", "/leaderboard/standard-duels"},
		RequestDelay: 500 * time.Millisecond,
		MaxPlayers:   100,
	}
}

var (
	gameIDRe = regexp.MustCompile(`/game/([a-f0-9-]+)`)
	// /leaderboard/{arena}/{username}/stats
	playerRe = regexp.MustCompile(`/leaderboard/[^/]+/([^/]+)/stats`)
)

// Player is a leaderboard entry.
type Player struct {
	Username string
	StatsURL string
}

// Discovery finds new game ids. Ids seen once are never sent again.
type Discovery struct {
	cfg    DiscoveryConfig
	client *http.Client

	mu    sync.Mutex
	known map[string]bool
}

func NewDiscovery(cfg DiscoveryConfig, known map[string]bool) *Discovery {
	if known == nil {
		known = make(map[string]bool)
	}
	return &Discovery{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		known:  known,
	}
}

// Discover walks every leaderboard and each listed player's recent games,
// sending unseen ids to out. It returns when the walk is done or ctx ends.
func (d *Discovery) Discover(ctx context.Context, out chan<- string) error {
	total := 0
	for _, board := range d.cfg.Leaderboards {
		players, err := d.LeaderboardPlayers(ctx, d.resolve(board))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("leaderboard", board).Msg("leaderboard fetch failed")
			continue
		}
		if d.cfg.MaxPlayers > 0 && len(players) > d.cfg.MaxPlayers {
			players = players[:d.cfg.MaxPlayers]
		}
		log.Info().Str("leaderboard", board).Int("players", len(players)).Msg("crawling leaderboard")

		fresh := 0
		for i, p := range players {
			ids, err := d.PlayerGames(ctx, p.StatsURL)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Str("player", p.Username).Msg("stats fetch failed")
				continue
			}
			for _, id := range ids {
				if !d.markKnown(id) {
					continue
				}
				select {
				case out <- id:
					fresh++
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			log.Debug().Int("player", i+1).Str("username", p.Username).Int("games", len(ids)).Msg("player checked")

			if d.cfg.RequestDelay > 0 {
				select {
				case <-time.After(d.cfg.RequestDelay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		log.Info().Str("leaderboard", board).Int("new_games", fresh).Msg("leaderboard done")
		total += fresh
	}
	log.Info().Int("new_games", total).Msg("discovery complete")
	return nil
}

// LeaderboardPlayers lists the players linked from a leaderboard page, in
// page order.
func (d *Discovery) LeaderboardPlayers(ctx context.Context, pageURL string) ([]Player, error) {
	doc, err := d.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var players []Player
	seen := make(map[string]bool)
	doc.Find("a[href*='/leaderboard/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := playerRe.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		players = append(players, Player{Username: m[1], StatsURL: d.resolve(href)})
	})
	return players, nil
}

// PlayerGames lists the game ids linked from a player's stats page.
func (d *Discovery) PlayerGames(ctx context.Context, statsURL string) ([]string, error) {
	doc, err := d.fetch(ctx, statsURL)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	doc.Find("a[href*='/game/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := gameIDRe.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	})
	return ids, nil
}

// markKnown reports whether id was new.
func (d *Discovery) markKnown(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.known[id] {
		return false
	}
	d.known[id] = true
	return true
}

func (d *Discovery) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", pageURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (d *Discovery) resolve(ref string) string {
	base, err := url.Parse(d.cfg.BaseURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
