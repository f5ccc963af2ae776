package agent

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/minimax"
	"github.com/brensch/snekcore/rules"
)

// Minimax deepens one ply at a time until MaxDepth or the deadline. An
// iteration cut off by ctx is thrown away.
type Minimax struct {
	Ruleset    rules.Ruleset
	Evaluation eval.Evaluation
	MaxDepth   int
	Bounds     eval.Bounds
}

func (m *Minimax) Decide(ctx context.Context, g *game.Game) (game.Decision, error) {
	maxDepth := m.MaxDepth
	if maxDepth <= 0 {
		maxDepth = minimax.DefaultDepth
	}

	start := time.Now()
	var best game.Decision
	completed := 0
	for depth := 1; depth <= maxDepth; depth++ {
		if ctx.Err() != nil {
			break
		}
		s := minimax.New(m.Ruleset, m.Evaluation, minimax.Config{Depth: depth, Bounds: m.Bounds})
		d, err := s.BestContext(ctx, g)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if err != nil {
			return game.Decision{}, err
		}
		best, completed = d, depth
		log.Debug().
			Int("depth", depth).
			Int("nodes", s.Stats().Nodes).
			Str("move", d.Direction.String()).
			Float64("score", d.Score).
			Msg("minimax-iteration")
	}

	if completed == 0 {
		// Not even depth one fitted. Judge the moves on the spot.
		d, err := minimax.New(m.Ruleset, eval.Func(func(*game.Game) float64 { return m.bounds().Draw }), minimax.Config{Depth: 1, Bounds: m.Bounds}).Best(g)
		if err != nil {
			return game.Decision{}, err
		}
		best = d
	}

	log.Debug().
		Str("you", g.YouID).
		Int32("turn", g.Board.Turn).
		Int("depth", completed).
		Dur("took", time.Since(start)).
		Str("move", best.Direction.String()).
		Msg("minimax-decision")
	return best, nil
}

func (m *Minimax) bounds() eval.Bounds {
	if m.Bounds == (eval.Bounds{}) {
		return eval.DefaultBounds
	}
	return m.Bounds
}
