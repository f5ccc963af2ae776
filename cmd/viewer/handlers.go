package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/brensch/snekcore/agent"
	"github.com/brensch/snekcore/catalog"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
	"github.com/brensch/snekcore/store"
)

type GamesResponse struct {
	Total int64                 `json:"total"`
	Games []catalog.GameSummary `json:"games"`
}

type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type Snake struct {
	ID     string  `json:"id"`
	Alive  bool    `json:"alive"`
	Health int32   `json:"health"`
	Body   []Point `json:"body"`
	// Move is empty when no move was recorded.
	Move  string  `json:"move,omitempty"`
	Score float32 `json:"score"`
	Value float32 `json:"value"`
}

type Turn struct {
	GameID       string  `json:"game_id"`
	Turn         int32   `json:"turn"`
	Width        int32   `json:"width"`
	Height       int32   `json:"height"`
	Ruleset      string  `json:"ruleset"`
	Food         []Point `json:"food"`
	Hazards      []Point `json:"hazards"`
	HazardDamage int32   `json:"hazard_damage"`
	Snakes       []Snake `json:"snakes"`
	Source       string  `json:"source"`
}

type DecisionResponse struct {
	GameID string  `json:"game_id"`
	Turn   int32   `json:"turn"`
	Ego    string  `json:"ego"`
	Move   string  `json:"move"`
	Score  float64 `json:"score"`
	// Played is what the snake really did from this position, if recorded.
	Played string `json:"played,omitempty"`
}

type newAgent func(r rules.Ruleset) (agent.Agent, error)

type Server struct {
	catalog     *catalog.Catalog
	newAgent    newAgent
	moveTimeout time.Duration
	log         zerolog.Logger
}

func NewServer(c *catalog.Catalog, newAgent newAgent, moveTimeout time.Duration, log zerolog.Logger) *Server {
	return &Server{catalog: c, newAgent: newAgent, moveTimeout: moveTimeout, log: log}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/games", s.handleGames)
	mux.HandleFunc("/api/games/", s.handleGameTurns)
	mux.HandleFunc("/api/sources", s.handleSources)
	mux.HandleFunc("/api/decide", s.handleDecide)
}

// get handles CORS preflight and rejects anything but GET.
func get(w http.ResponseWriter, r *http.Request) bool {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return false
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	total, err := s.catalog.GamesTotal(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	games, err := s.catalog.Games(r.Context(),
		parseIntQuery(r, "limit", 200),
		parseIntQuery(r, "offset", 0),
		r.URL.Query().Get("sort"),
		r.URL.Query().Get("dir"),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, GamesResponse{Total: total, Games: games})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	sources, err := s.catalog.Sources(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, sources)
}

// handleGameTurns serves /api/games/{id}/turns.
func (s *Server) handleGameTurns(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/games/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "turns" {
		http.NotFound(w, r)
		return
	}
	gameID, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}

	rows, ok := s.loadGame(w, r, gameID)
	if !ok {
		return
	}
	turns := make([]Turn, 0, len(rows))
	for i := range rows {
		turns = append(turns, toTurn(&rows[i]))
	}
	writeJSON(w, turns)
}

// handleDecide runs the configured agent on one archived position:
// /api/decide?game_id=...&turn=...&ego=...
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	q := r.URL.Query()
	gameID := strings.TrimSpace(q.Get("game_id"))
	turn := parseIntQuery(r, "turn", -1)
	ego := strings.TrimSpace(q.Get("ego"))
	if gameID == "" || turn < 0 || ego == "" {
		http.Error(w, "game_id, turn and ego are required", http.StatusBadRequest)
		return
	}

	rows, ok := s.loadGame(w, r, gameID)
	if !ok {
		return
	}
	var row *store.ArchiveTurnRow
	for i := range rows {
		if rows[i].Turn == int32(turn) {
			row = &rows[i]
			break
		}
	}
	if row == nil {
		http.Error(w, "turn not found", http.StatusNotFound)
		return
	}
	g := &game.Game{Board: row.Board(), YouID: ego}
	if _, alive := g.You(); !alive {
		http.Error(w, "ego is not alive on this turn", http.StatusBadRequest)
		return
	}

	ruleset, err := rules.ByName(row.Ruleset)
	if err != nil {
		s.log.Warn().Err(err).Str("ruleset", row.Ruleset).Msg("falling back to standard rules")
		ruleset = rules.Standard{}
	}
	a, err := s.newAgent(ruleset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.moveTimeout)
	defer cancel()
	d, err := a.Decide(ctx, g)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := DecisionResponse{GameID: gameID, Turn: row.Turn, Ego: ego, Move: d.Direction.String(), Score: d.Score}
	if sn, ok := row.Snake(ego); ok && sn.Policy != store.NoPolicy {
		resp.Played = game.Direction(sn.Policy).String()
	}
	writeJSON(w, resp)
}

// loadGame reads every row of gameID in turn order, answering the request
// itself when that fails.
func (s *Server) loadGame(w http.ResponseWriter, r *http.Request, gameID string) ([]store.ArchiveTurnRow, bool) {
	file, err := s.catalog.GameFile(r.Context(), gameID)
	if errors.Is(err, catalog.ErrGameNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	all, err := store.ReadArchiveParquet(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}

	rows := all[:0]
	for _, row := range all {
		if row.GameID == gameID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Turn < rows[j].Turn })
	return rows, true
}

func toTurn(row *store.ArchiveTurnRow) Turn {
	t := Turn{
		GameID:       row.GameID,
		Turn:         row.Turn,
		Width:        row.Width,
		Height:       row.Height,
		Ruleset:      row.Ruleset,
		Food:         zipPoints(row.FoodX, row.FoodY),
		Hazards:      zipPoints(row.HazardX, row.HazardY),
		HazardDamage: row.HazardDamage,
		Source:       row.Source,
	}
	for _, s := range row.Snakes {
		sn := Snake{
			ID:     s.ID,
			Alive:  s.Alive,
			Health: s.Health,
			Body:   zipPoints(s.BodyX, s.BodyY),
			Score:  s.Score,
			Value:  s.Value,
		}
		if s.Policy != store.NoPolicy {
			sn.Move = game.Direction(s.Policy).String()
		}
		t.Snakes = append(t.Snakes, sn)
	}
	return t
}

func zipPoints(xs, ys []int32) []Point {
	n := min(len(xs), len(ys))
	out := make([]Point, n)
	for i := 0; i < n; i++ {
		out[i] = Point{X: xs[i], Y: ys[i]}
	}
	return out
}
