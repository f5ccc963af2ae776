// Package config loads the YAML configuration shared by the binaries.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/logging"
	"github.com/brensch/snekcore/rules"
)

const (
	AlgorithmMinimax = "minimax"
	AlgorithmMCTS    = "mcts"

	EvalHeuristic = "heuristic"
	EvalONNX      = "onnx"
)

type Config struct {
	Server   Server         `yaml:"server"`
	Search   Search         `yaml:"search"`
	Eval     Eval           `yaml:"eval"`
	Log      logging.Config `yaml:"log"`
	SelfPlay SelfPlay       `yaml:"selfplay"`
}

type Server struct {
	Listen string `yaml:"listen"`
	// MoveTimeout is used when a request does not carry its own timeout.
	MoveTimeout time.Duration `yaml:"move_timeout"`
	// LatencyReserve is kept back from the timeout for the network.
	LatencyReserve time.Duration `yaml:"latency_reserve"`

	Author string `yaml:"author"`
	Color  string `yaml:"color"`
	Head   string `yaml:"head"`
	Tail   string `yaml:"tail"`
}

type Search struct {
	Algorithm string `yaml:"algorithm"`
	// Depth is the deepest minimax iteration.
	Depth int `yaml:"depth"`
	// Iterations caps MCTS per worker. Zero runs until the deadline.
	Iterations  int         `yaml:"iterations"`
	Workers     int         `yaml:"workers"`
	Exploration float64     `yaml:"exploration"`
	Bounds      eval.Bounds `yaml:"bounds"`
}

type Eval struct {
	Kind      string       `yaml:"kind"`
	ModelPath string       `yaml:"model_path"`
	BatchSize int          `yaml:"batch_size"`
	Weights   eval.Weights `yaml:"weights"`
}

type SelfPlay struct {
	Workers       int                `yaml:"workers"`
	Games         int                `yaml:"games"`
	OutDir        string             `yaml:"out_dir"`
	GamesPerFlush int                `yaml:"games_per_flush"`
	Width         int32              `yaml:"width"`
	Height        int32              `yaml:"height"`
	Snakes        int                `yaml:"snakes"`
	MaxTurns      int32              `yaml:"max_turns"`
	Ruleset       string             `yaml:"ruleset"`
	MoveTimeout   time.Duration      `yaml:"move_timeout"`
	Food          rules.FoodSettings `yaml:"food"`
}

func Default() Config {
	return Config{
		Server: Server{
			Listen:         ":8080",
			MoveTimeout:    500 * time.Millisecond,
			LatencyReserve: 200 * time.Millisecond,
			Author:         "brensch",
			Color:          "#00FF00",
			Head:           "default",
			Tail:           "default",
		},
		Search: Search{
			Algorithm:   AlgorithmMCTS,
			Depth:       3,
			Workers:     1,
			Exploration: 1.4142135623730951,
			Bounds:      eval.DefaultBounds,
		},
		Eval: Eval{
			Kind:    EvalHeuristic,
			Weights: eval.DefaultWeights,
		},
		Log: logging.Config{Level: "info", Pretty: true},
		SelfPlay: SelfPlay{
			Workers:       4,
			Games:         0,
			OutDir:        "data/generated",
			GamesPerFlush: 50,
			Width:         11,
			Height:        11,
			Snakes:        4,
			MaxTurns:      500,
			Ruleset:       "standard",
			MoveTimeout:   50 * time.Millisecond,
			Food:          rules.DefaultFoodSettings,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Search.Algorithm {
	case AlgorithmMinimax, AlgorithmMCTS:
	default:
		return fmt.Errorf("search.algorithm %q: want %s or %s", c.Search.Algorithm, AlgorithmMinimax, AlgorithmMCTS)
	}
	switch c.Eval.Kind {
	case EvalHeuristic:
	case EvalONNX:
		if c.Eval.ModelPath == "" {
			return fmt.Errorf("eval.model_path is required for %s", EvalONNX)
		}
	default:
		return fmt.Errorf("eval.kind %q: want %s or %s", c.Eval.Kind, EvalHeuristic, EvalONNX)
	}
	if err := c.Search.Bounds.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if _, err := rules.ByName(c.SelfPlay.Ruleset); err != nil {
		return fmt.Errorf("selfplay: %w", err)
	}
	return nil
}
