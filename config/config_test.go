package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brensch/snekcore/eval"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snek.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9000"
  latency_reserve: 150ms
search:
  algorithm: minimax
  depth: 5
eval:
  weights:
    health: 3
log:
  level: debug
  pretty: false
selfplay:
  ruleset: royale
  food:
    minimum_food: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Server.Listen)
	require.Equal(t, 150*time.Millisecond, cfg.Server.LatencyReserve)
	require.Equal(t, 500*time.Millisecond, cfg.Server.MoveTimeout, "untouched keys keep their default")
	require.Equal(t, AlgorithmMinimax, cfg.Search.Algorithm)
	require.Equal(t, 5, cfg.Search.Depth)
	require.Equal(t, eval.DefaultBounds, cfg.Search.Bounds)
	require.Equal(t, 3.0, cfg.Eval.Weights.Health)
	require.Equal(t, eval.DefaultWeights.Space, cfg.Eval.Weights.Space)
	require.Equal(t, "debug", cfg.Log.Level)
	require.False(t, cfg.Log.Pretty)
	require.Equal(t, "royale", cfg.SelfPlay.Ruleset)
	require.Equal(t, 3, cfg.SelfPlay.Food.MinimumFood)
	require.Equal(t, 15, cfg.SelfPlay.Food.FoodSpawnChance)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"algorithm":  "search:\n  algorithm: alphazero\n",
		"onnx model": "eval:\n  kind: onnx\n",
		"bounds":     "search:\n  bounds: {min: 1, max: 0, draw: 0.5}\n",
		"ruleset":    "selfplay:\n  ruleset: wrapped\n",
		"yaml":       "search: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
