// Package agent turns the searches into move deciders that respect a
// deadline.
package agent

import (
	"context"
	"fmt"

	"github.com/brensch/snekcore/config"
	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/mcts"
	"github.com/brensch/snekcore/rules"
)

// Agent picks a move for g.YouID before ctx is done. It always returns a
// direction; an error means a search invariant broke.
type Agent interface {
	Decide(ctx context.Context, g *game.Game) (game.Decision, error)
}

// New builds the agent described by cfg.
func New(cfg config.Search, r rules.Ruleset, e eval.Evaluation) (Agent, error) {
	switch cfg.Algorithm {
	case config.AlgorithmMinimax:
		return &Minimax{Ruleset: r, Evaluation: e, MaxDepth: cfg.Depth, Bounds: cfg.Bounds}, nil
	case config.AlgorithmMCTS:
		return &MCTS{
			Ruleset:    r,
			Evaluation: e,
			Config:     mcts.Config{Exploration: cfg.Exploration, Bounds: cfg.Bounds},
			Iterations: cfg.Iterations,
			Workers:    cfg.Workers,
		}, nil
	}
	return nil, fmt.Errorf("unknown search algorithm %q", cfg.Algorithm)
}

// NewEvaluation builds the evaluation described by cfg. The returned close
// function releases any model session.
func NewEvaluation(cfg config.Eval, bounds eval.Bounds) (eval.Evaluation, func() error, error) {
	switch cfg.Kind {
	case "", config.EvalHeuristic:
		h := eval.NewHeuristic(cfg.Weights)
		h.Bounds = bounds
		return h, func() error { return nil }, nil
	case config.EvalONNX:
		v, err := eval.NewValueNet(eval.ValueNetConfig{ModelPath: cfg.ModelPath, BatchSize: cfg.BatchSize}, bounds)
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown evaluation %q", cfg.Kind)
}
