package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/brensch/snekcore/agent"
	"github.com/brensch/snekcore/config"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
)

const minComputeTime = 50 * time.Millisecond

// newAgent builds an agent for one ruleset. Agents are cheap, the server
// builds one per move.
type newAgent func(r rules.Ruleset) (agent.Agent, error)

type Server struct {
	cfg      config.Server
	newAgent newAgent
	log      zerolog.Logger
	version  string
}

func NewServer(cfg config.Server, build newAgent, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, newAgent: build, log: logger, version: "1.0.0"}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/move", s.handleMove)
	mux.HandleFunc("/end", s.handleEnd)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, BattlesnakeInfoResponse{
		APIVersion: "1",
		Author:     s.cfg.Author,
		Color:      s.cfg.Color,
		Head:       s.cfg.Head,
		Tail:       s.cfg.Tail,
		Version:    s.version,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Info().
		Str("game", req.Game.ID).
		Str("ruleset", req.Game.Ruleset.Name).
		Str("you", req.You.Name).
		Int("snakes", len(req.Board.Snakes)).
		Msg("game started")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) computeTime(req *GameRequest) time.Duration {
	timeout := s.cfg.MoveTimeout
	if req.Game.Timeout > 0 {
		timeout = time.Duration(req.Game.Timeout) * time.Millisecond
	}
	compute := timeout - s.cfg.LatencyReserve
	if compute < minComputeTime {
		compute = minComputeTime
	}
	return compute
}

func (s *Server) ruleset(req *GameRequest) rules.Ruleset {
	r, err := rules.ByName(req.Game.Ruleset.Name)
	if err != nil {
		s.log.Warn().Err(err).Str("game", req.Game.ID).Msg("falling back to standard rules")
		return rules.Standard{}
	}
	return r
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g := convertToGame(&req)
	ctx, cancel := context.WithTimeout(r.Context(), s.computeTime(&req))
	defer cancel()

	d := game.Decision{Direction: game.Up}
	a, err := s.newAgent(s.ruleset(&req))
	if err == nil {
		d, err = a.Decide(ctx, g)
	}
	if err != nil {
		// An answer is always better than a timeout.
		s.log.Error().Err(err).Str("game", req.Game.ID).Int("turn", req.Turn).Msg("decide failed")
		d = game.Decision{Direction: game.Up}
	}

	s.log.Info().
		Str("game", req.Game.ID).
		Int("turn", req.Turn).
		Str("move", d.Direction.String()).
		Float64("score", d.Score).
		Dur("took", time.Since(start)).
		Msg("move")

	writeJSON(w, MoveResponse{
		Move:  d.Direction.String(),
		Shout: fmt.Sprintf("%.2f", d.Score),
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome := rules.Check(convertToGame(&req).Board)
	result := "lost"
	switch {
	case outcome.Kind == rules.Draw:
		result = "draw"
	case outcome.Kind == rules.Won && outcome.Winner == req.You.ID:
		result = "won"
	}

	s.log.Info().Str("game", req.Game.ID).Int("turn", req.Turn).Str("result", result).Msg("game ended")
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
