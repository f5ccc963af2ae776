// Package selfplay runs engine-vs-engine games and records them as archive
// rows.
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekcore/agent"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
	"github.com/brensch/snekcore/store"
)

const Source = "selfplay"

type Options struct {
	Width, Height int32
	Snakes        int
	MaxTurns      int32
	Ruleset       rules.Ruleset
	Food          rules.FoodSettings
	// MoveTimeout bounds each snake's decision.
	MoveTimeout time.Duration
	// Seed drives start positions and food. Zero picks one from the clock.
	Seed uint64
	// OnTurn, if set, sees every board before moves are applied.
	OnTurn func(b *game.Board)
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 11
	}
	if o.Height <= 0 {
		o.Height = 11
	}
	if o.Snakes <= 0 {
		o.Snakes = 2
	}
	if o.MaxTurns <= 0 {
		o.MaxTurns = 500
	}
	if o.Ruleset == nil {
		o.Ruleset = rules.Standard{}
	}
	if o.MoveTimeout <= 0 {
		o.MoveTimeout = 50 * time.Millisecond
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
}

type Result struct {
	GameID  string
	Outcome rules.Outcome
	Turns   int32
	Rows    []store.ArchiveTurnRow
}

// Play runs one game. Snake i is driven by agents[i%len(agents)]. Rows hold
// every position before its moves plus the final position, and each snake's
// Value is filled in once the outcome is known. A game cut off by MaxTurns
// counts as a draw for every snake.
func Play(ctx context.Context, agents []agent.Agent, opts Options) (Result, error) {
	if len(agents) == 0 {
		return Result{}, errors.New("selfplay: no agents")
	}
	opts.defaults()

	rng := rand.New(rand.NewSource(opts.Seed))
	b, err := InitialBoard(rng, opts.Width, opts.Height, opts.Snakes)
	if err != nil {
		return Result{}, err
	}
	rules.ApplyFoodSettings(b, rng, rules.FoodSettings{MinimumFood: max(1, opts.Food.MinimumFood)})

	ruleset := &rules.Spawning{Ruleset: opts.Ruleset, Settings: opts.Food, Rng: rng}
	res := Result{GameID: uuid.NewString()}
	drivers := make(map[string]agent.Agent, len(b.Snakes))
	for i, s := range b.Snakes {
		drivers[s.ID] = agents[i%len(agents)]
	}

	for !ruleset.Check(b).Over() && b.Turn < opts.MaxTurns {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if opts.OnTurn != nil {
			opts.OnTurn(b)
		}

		decisions, err := decideAll(ctx, opts.Ruleset, drivers, b, opts.MoveTimeout)
		if err != nil {
			return res, fmt.Errorf("game %s turn %d: %w", res.GameID, b.Turn, err)
		}

		row := store.RowFromBoard(res.GameID, Source, opts.Ruleset.Name(), b)
		moves := make(game.JointMove, len(decisions))
		for i := range row.Snakes {
			d, ok := decisions[row.Snakes[i].ID]
			if !ok {
				continue
			}
			row.Snakes[i].Policy = int32(d.Direction)
			row.Snakes[i].Score = float32(d.Score)
			moves[row.Snakes[i].ID] = d.Direction
		}
		res.Rows = append(res.Rows, row)

		if err := ruleset.Apply(b, moves); err != nil {
			return res, fmt.Errorf("game %s turn %d: %w", res.GameID, b.Turn, err)
		}
	}

	res.Outcome = ruleset.Check(b)
	res.Turns = b.Turn
	res.Rows = append(res.Rows, store.RowFromBoard(res.GameID, Source, opts.Ruleset.Name(), b))
	store.AssignValues(res.Rows, res.Outcome)

	log.Debug().
		Str("game", res.GameID).
		Int32("turns", res.Turns).
		Str("outcome", res.Outcome.Kind.String()).
		Str("winner", res.Outcome.Winner).
		Msg("selfplay game finished")
	return res, nil
}

// decideAll asks every living snake for a move in parallel, each from its
// own point of view.
func decideAll(ctx context.Context, r rules.Ruleset, drivers map[string]agent.Agent, b *game.Board, timeout time.Duration) (map[string]game.Decision, error) {
	decisions := make([]game.Decision, len(b.Snakes))
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range b.Snakes {
		g := &game.Game{Board: b.Clone(), YouID: b.Snakes[i].ID}
		a := drivers[g.YouID]
		eg.Go(func() error {
			moveCtx, cancel := context.WithTimeout(egCtx, timeout)
			defer cancel()
			d, err := a.Decide(moveCtx, g)
			if err != nil {
				return fmt.Errorf("snake %s: %w", g.YouID, err)
			}
			decisions[i] = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]game.Decision, len(decisions))
	for i, s := range b.Snakes {
		out[s.ID] = decisions[i]
	}
	return out, nil
}

// InitialBoard places n snakes of length 3 on the standard start cells in a
// random order.
func InitialBoard(rng *rand.Rand, width, height int32, n int) (*game.Board, error) {
	starts := startCells(width, height)
	if n > len(starts) {
		return nil, fmt.Errorf("selfplay: %d snakes do not fit a %dx%d board", n, width, height)
	}
	rng.Shuffle(len(starts), func(i, j int) { starts[i], starts[j] = starts[j], starts[i] })

	b := &game.Board{Width: width, Height: height}
	for i := 0; i < n; i++ {
		p := starts[i]
		b.Snakes = append(b.Snakes, game.Snake{
			ID:     fmt.Sprintf("snake%d", i+1),
			Health: game.MaxHealth,
			Body:   []game.Point{p, p, p},
		})
	}
	return b, nil
}

func startCells(width, height int32) []game.Point {
	minX, midX, maxX := int32(1), (width-1)/2, width-2
	minY, midY, maxY := int32(1), (height-1)/2, height-2
	if width < 7 || height < 7 {
		return []game.Point{{X: minX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: maxX, Y: minY}}
	}
	return []game.Point{
		{X: minX, Y: minY}, {X: minX, Y: midY}, {X: minX, Y: maxY},
		{X: midX, Y: minY}, {X: midX, Y: maxY},
		{X: maxX, Y: minY}, {X: maxX, Y: midY}, {X: maxX, Y: maxY},
	}
}
