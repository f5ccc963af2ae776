// Package minimax implements a depth limited adversarial search over
// simultaneous moves.
//
// One depth unit is two phases: the controlled snake commits to a direction,
// then every opponent combination answers it. The opponents are treated as one
// minimizing player that sees your pending move, which is pessimistic for a
// simultaneous game but keeps the tree a plain two player tree.
package minimax

import (
	"context"
	"fmt"
	"math"

	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
)

const DefaultDepth = 3

// cancellation is polled once per this many nodes.
const ctxCheckInterval = 1024

type Config struct {
	Depth  int
	Bounds eval.Bounds
	// DisablePruning searches the full tree. Results must match the pruned
	// search, it only exists to check that.
	DisablePruning bool
}

type Stats struct {
	Nodes   int
	Cutoffs int
}

type Search struct {
	ruleset rules.Ruleset
	eval    eval.Evaluation
	cfg     Config
	you     string
	ctx     context.Context
	stats   Stats
}

func New(r rules.Ruleset, e eval.Evaluation, cfg Config) *Search {
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultDepth
	}
	if cfg.Bounds == (eval.Bounds{}) {
		cfg.Bounds = eval.DefaultBounds
	}
	return &Search{ruleset: r, eval: e, cfg: cfg}
}

// Stats reports the last Best call.
func (s *Search) Stats() Stats { return s.stats }

// Best searches g to the configured depth. g is not modified.
func (s *Search) Best(g *game.Game) (game.Decision, error) {
	return s.BestContext(context.Background(), g)
}

// BestContext is Best that gives up with ctx.Err() once ctx is done.
func (s *Search) BestContext(ctx context.Context, g *game.Game) (game.Decision, error) {
	s.you = g.YouID
	s.ctx = ctx
	s.stats = Stats{}

	score, dir, err := s.maximize(g.Board, s.cfg.Depth, s.cfg.Bounds.Min, s.cfg.Bounds.Max)
	if err != nil {
		return game.Decision{}, err
	}
	return game.Decision{Direction: dir, Score: score}, nil
}

func (s *Search) maximize(b *game.Board, depth int, alpha, beta float64) (float64, game.Direction, error) {
	if err := s.visit(); err != nil {
		return 0, game.Up, err
	}

	if o := s.ruleset.Check(b); o.Over() {
		return s.cfg.Bounds.Terminal(o, s.you), game.Up, nil
	}
	if depth == 0 {
		return s.eval.Score(&game.Game{Board: b, YouID: s.you}), game.Up, nil
	}

	moves := s.ruleset.GenerateMoves(b, s.you)
	if len(moves) == 0 {
		// We are gone while the others play on.
		return s.cfg.Bounds.Min, game.Up, nil
	}

	best := math.Inf(-1)
	bestDir := moves[0]
	for _, d := range moves {
		v, err := s.minimize(b, d, depth, alpha, beta)
		if err != nil {
			return 0, game.Up, err
		}
		if v > best {
			best, bestDir = v, d
		}
		if s.cfg.DisablePruning {
			continue
		}
		if best >= beta {
			s.stats.Cutoffs++
			break
		}
		alpha = math.Max(alpha, best)
	}
	return best, bestDir, nil
}

func (s *Search) minimize(b *game.Board, pending game.Direction, depth int, alpha, beta float64) (float64, error) {
	if err := s.visit(); err != nil {
		return 0, err
	}

	best := math.Inf(1)
	for _, jm := range rules.Combinations(s.ruleset, b, rules.Opponents(b, s.you)) {
		jm[s.you] = pending
		next := b.Clone()
		if err := s.ruleset.Apply(next, jm); err != nil {
			return 0, fmt.Errorf("apply turn %d: %w", b.Turn, err)
		}
		v, _, err := s.maximize(next, depth-1, alpha, beta)
		if err != nil {
			return 0, err
		}
		if v < best {
			best = v
		}
		if s.cfg.DisablePruning {
			continue
		}
		if best <= alpha {
			s.stats.Cutoffs++
			break
		}
		beta = math.Min(beta, best)
	}
	return best, nil
}

func (s *Search) visit() error {
	s.stats.Nodes++
	if s.stats.Nodes%ctxCheckInterval == 0 {
		return s.ctx.Err()
	}
	return nil
}
