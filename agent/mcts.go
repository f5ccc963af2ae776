package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/mcts"
	"github.com/brensch/snekcore/rules"
)

// MCTS grows one tree per worker until Iterations, the deadline, or a
// terminal root, then merges the root statistics.
type MCTS struct {
	Ruleset    rules.Ruleset
	Evaluation eval.Evaluation
	Config     mcts.Config
	// Iterations per worker. Zero means until ctx is done, which needs a
	// deadline to terminate.
	Iterations int
	Workers    int
}

func (m *MCTS) Decide(ctx context.Context, g *game.Game) (game.Decision, error) {
	workers := m.Workers
	if workers <= 0 {
		workers = 1
	}
	iterations := m.Iterations
	if iterations <= 0 {
		if _, ok := ctx.Deadline(); !ok {
			iterations = DefaultIterations
		}
	}

	start := time.Now()
	trees := make([]*mcts.Tree, workers)
	eg := errgroup.Group{}
	for w := 0; w < workers; w++ {
		trees[w] = mcts.New(m.Ruleset, m.Evaluation, g, m.Config)
		tree := trees[w]
		eg.Go(func() error {
			return grow(ctx, tree, iterations)
		})
	}
	if err := eg.Wait(); err != nil {
		return game.Decision{}, err
	}

	d, ok := mcts.BestEdge(mcts.Merge(trees...))
	if !ok {
		d = trees[0].Best()
	}

	total := 0
	for _, t := range trees {
		total += t.Iterations()
	}
	log.Debug().
		Str("you", g.YouID).
		Int32("turn", g.Board.Turn).
		Int("workers", workers).
		Int("iterations", total).
		Dur("took", time.Since(start)).
		Str("move", d.Direction.String()).
		Float64("score", d.Score).
		Msg("mcts-decision")
	return d, nil
}

const DefaultIterations = 1000

func grow(ctx context.Context, tree *mcts.Tree, iterations int) error {
	for i := 0; iterations <= 0 || i < iterations; i++ {
		if ctx.Err() != nil {
			return nil
		}
		done, err := tree.Advance()
		if err != nil {
			return err
		}
		if done && len(tree.LastPath()) == 0 {
			// The root itself is over.
			return nil
		}
	}
	return nil
}
