package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brensch/snekcore/agent"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/scraper"
)

type turnReport struct {
	Turn   int32
	Chosen game.Direction
	Actual game.Direction
	Score  float64
}

func (t turnReport) Agree() bool { return t.Chosen == t.Actual }

type gameReport struct {
	GameID  string
	SnakeID string
	Turns   []turnReport
}

func (r gameReport) Agreement() (agree, total int) {
	for _, t := range r.Turns {
		if t.Agree() {
			agree++
		}
	}
	return agree, len(r.Turns)
}

// pickSnake finds the snake to analyse: the one named name, or the first
// snake of the opening frame when name is empty.
func pickSnake(dl *scraper.Download, name string) (string, error) {
	if len(dl.Frames) == 0 || len(dl.Frames[0].Snakes) == 0 {
		return "", fmt.Errorf("%s: no snakes", dl.ID)
	}
	if name == "" {
		return dl.Frames[0].Snakes[0].ID, nil
	}
	for _, s := range dl.Frames[0].Snakes {
		if s.Name == name || s.ID == name {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("%s: snake %q not in game", dl.ID, name)
}

// analyzeGame replays every turn the snake survived through the agent and
// records what it would have played next to what was played.
func analyzeGame(ctx context.Context, a agent.Agent, dl *scraper.Download, snakeID string, moveTimeout time.Duration) (gameReport, error) {
	report := gameReport{GameID: dl.ID, SnakeID: snakeID}
	for i := 0; i+1 < len(dl.Frames); i++ {
		actual, ok := scraper.ActualMoves(&dl.Frames[i], &dl.Frames[i+1])[snakeID]
		if !ok {
			break
		}
		g := dl.Game(i, snakeID)
		if _, alive := g.You(); !alive {
			break
		}

		moveCtx, cancel := context.WithTimeout(ctx, moveTimeout)
		d, err := a.Decide(moveCtx, g)
		cancel()
		if err != nil {
			return report, fmt.Errorf("%s turn %d: %w", dl.ID, g.Board.Turn, err)
		}
		report.Turns = append(report.Turns, turnReport{Turn: g.Board.Turn, Chosen: d.Direction, Actual: actual, Score: d.Score})

		if err := ctx.Err(); err != nil {
			return report, err
		}
	}
	return report, nil
}
