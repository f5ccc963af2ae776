package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/brensch/snekcore/agent"
	"github.com/brensch/snekcore/config"
	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
)

const moveBody = `{
  "game": {"id": "g1", "ruleset": {"name": "standard", "settings": {"hazardDamagePerTurn": 14}}, "timeout": 500},
  "turn": 3,
  "board": {
    "height": 7, "width": 7,
    "food": [{"x": 3, "y": 3}],
    "hazards": [{"x": 0, "y": 6}],
    "snakes": [
      {"id": "me", "name": "me", "health": 90, "body": [{"x": 0, "y": 0}, {"x": 0, "y": 1}, {"x": 0, "y": 2}]},
      {"id": "them", "name": "them", "health": 80, "body": [{"x": 6, "y": 6}, {"x": 6, "y": 5}]}
    ]
  },
  "you": {"id": "me", "name": "me", "health": 90, "body": [{"x": 0, "y": 0}, {"x": 0, "y": 1}, {"x": 0, "y": 2}]}
}`

type agentFunc func(ctx context.Context, g *game.Game) (game.Decision, error)

func (f agentFunc) Decide(ctx context.Context, g *game.Game) (game.Decision, error) { return f(ctx, g) }

func testServer(build newAgent) *httptest.Server {
	s := NewServer(config.Default().Server, build, zerolog.Nop())
	return httptest.NewServer(s.Handler())
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIndex(t *testing.T) {
	ts := testServer(nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var info BattlesnakeInfoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.Equal(t, "1", info.APIVersion)
	require.Equal(t, config.Default().Server.Color, info.Color)

	resp2, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestMove_RealAgentAvoidsDeath(t *testing.T) {
	ts := testServer(func(r rules.Ruleset) (agent.Agent, error) {
		return &agent.Minimax{Ruleset: r, Evaluation: eval.NewHeuristic(eval.DefaultWeights), MaxDepth: 2}, nil
	})
	defer ts.Close()

	resp := post(t, ts.URL+"/move", moveBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mv MoveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mv))
	// Up is the neck, left and down leave the board.
	require.Equal(t, "right", mv.Move)
}

func TestMove_PassesConvertedGameAndDeadline(t *testing.T) {
	var seen *game.Game
	var ruleset string
	var deadline time.Duration
	var hasDeadline bool
	ts := testServer(func(r rules.Ruleset) (agent.Agent, error) {
		ruleset = r.Name()
		return agentFunc(func(ctx context.Context, g *game.Game) (game.Decision, error) {
			seen = g
			var dl time.Time
			dl, hasDeadline = ctx.Deadline()
			deadline = time.Until(dl)
			return game.Decision{Direction: game.Down, Score: 0.25}, nil
		}), nil
	})
	defer ts.Close()

	resp := post(t, ts.URL+"/move", moveBody)
	var mv MoveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mv))
	require.Equal(t, "down", mv.Move)

	require.Equal(t, "standard", ruleset)
	require.True(t, hasDeadline)
	require.NotNil(t, seen)
	require.Equal(t, "me", seen.YouID)
	require.Equal(t, int32(3), seen.Board.Turn)
	require.Equal(t, int32(14), seen.Board.HazardDamage)
	require.Equal(t, []game.Point{{X: 0, Y: 6}}, seen.Board.Hazards)
	require.Len(t, seen.Board.Snakes, 2)
	require.LessOrEqual(t, deadline, 300*time.Millisecond, "timeout minus the latency reserve")
}

func TestMove_AgentErrorStillAnswers(t *testing.T) {
	ts := testServer(func(r rules.Ruleset) (agent.Agent, error) {
		return nil, errors.New("boom")
	})
	defer ts.Close()

	resp := post(t, ts.URL+"/move", moveBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mv MoveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mv))
	require.Equal(t, "up", mv.Move)
}

func TestMove_BadBody(t *testing.T) {
	ts := testServer(nil)
	defer ts.Close()

	resp := post(t, ts.URL+"/move", "{")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartAndEnd(t *testing.T) {
	ts := testServer(nil)
	defer ts.Close()

	require.Equal(t, http.StatusOK, post(t, ts.URL+"/start", moveBody).StatusCode)
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/end", moveBody).StatusCode)
}

func TestComputeTime(t *testing.T) {
	s := NewServer(config.Server{MoveTimeout: time.Second, LatencyReserve: 200 * time.Millisecond}, nil, zerolog.Nop())
	require.Equal(t, 800*time.Millisecond, s.computeTime(&GameRequest{}))
	require.Equal(t, 300*time.Millisecond, s.computeTime(&GameRequest{Game: Game{Timeout: 500}}))
	require.Equal(t, minComputeTime, s.computeTime(&GameRequest{Game: Game{Timeout: 100}}))
}
