package rules

import (
	"errors"
	"fmt"

	"github.com/brensch/snekcore/game"
)

var (
	// ErrMissingMove is returned when a joint move has no entry for a living
	// snake. It signals a caller bug, never bad input.
	ErrMissingMove = errors.New("joint move missing living snake")

	ErrUnknownRuleset = errors.New("unknown ruleset")
)

// Ruleset is a rule variant searches can run against.
type Ruleset interface {
	Name() string
	// GenerateMoves returns every direction for a living snake, unfiltered.
	// Moves that kill the snake are resolved by Apply, not here.
	GenerateMoves(b *game.Board, id string) []game.Direction
	// Apply advances the board one tick in place.
	Apply(b *game.Board, moves game.JointMove) error
	Check(b *game.Board) Outcome
}

type OutcomeKind uint8

const (
	Ongoing OutcomeKind = iota
	Draw
	Won
)

func (k OutcomeKind) String() string {
	switch k {
	case Ongoing:
		return "ongoing"
	case Draw:
		return "draw"
	case Won:
		return "won"
	}
	return fmt.Sprintf("OutcomeKind(%d)", uint8(k))
}

// Outcome is the terminal classification of a board. Winner is only set
// when Kind is Won.
type Outcome struct {
	Kind   OutcomeKind
	Winner string
}

func (o Outcome) Over() bool { return o.Kind != Ongoing }

// Check classifies a board: no snakes is a draw, one snake has won.
func Check(b *game.Board) Outcome {
	switch len(b.Snakes) {
	case 0:
		return Outcome{Kind: Draw}
	case 1:
		return Outcome{Kind: Won, Winner: b.Snakes[0].ID}
	default:
		return Outcome{Kind: Ongoing}
	}
}

// GenerateMoves returns all four directions for a snake on the board, or nil
// for an id that is not alive.
func GenerateMoves(b *game.Board, id string) []game.Direction {
	if _, ok := b.Snake(id); !ok {
		return nil
	}
	moves := make([]game.Direction, len(game.Directions))
	copy(moves, game.Directions[:])
	return moves
}

// Opponents lists the ids of every living snake other than you, in board order.
func Opponents(b *game.Board, you string) []string {
	ids := make([]string, 0, len(b.Snakes))
	for _, s := range b.Snakes {
		if s.ID != you {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Combinations returns the cartesian product of the generated moves of ids.
// The first id varies slowest. No ids yields one empty joint move.
func Combinations(r Ruleset, b *game.Board, ids []string) []game.JointMove {
	out := []game.JointMove{{}}
	for _, id := range ids {
		moves := r.GenerateMoves(b, id)
		next := make([]game.JointMove, 0, len(out)*len(moves))
		for _, partial := range out {
			for _, d := range moves {
				jm := make(game.JointMove, len(partial)+1)
				for k, v := range partial {
					jm[k] = v
				}
				jm[id] = d
				next = append(next, jm)
			}
		}
		out = next
	}
	return out
}

// ByName maps a Battlesnake ruleset name onto an implementation.
func ByName(name string) (Ruleset, error) {
	switch name {
	case "", "standard", "solo", "duel", "constrictor-free":
		return Standard{}, nil
	case "royale":
		return DefaultRoyale(), nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownRuleset)
}
