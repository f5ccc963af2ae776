// Package eval scores game positions for the searches.
//
// Every score is from the controlled snake's point of view and lies within
// the configured Bounds, so a search can flip it for the opponent side.
package eval

import (
	"fmt"

	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
)

// Evaluation scores a non-terminal position for g.YouID.
type Evaluation interface {
	Score(g *game.Game) float64
}

// Func adapts a plain function to Evaluation.
type Func func(g *game.Game) float64

func (f Func) Score(g *game.Game) float64 { return f(g) }

// Bounds are the score range searches work in. Draw is usually halfway.
type Bounds struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Draw float64 `yaml:"draw"`
}

var DefaultBounds = Bounds{Min: 0, Max: 1, Draw: 0.5}

func (b Bounds) Validate() error {
	if !(b.Min < b.Max) {
		return fmt.Errorf("bounds: min %v must be below max %v", b.Min, b.Max)
	}
	if b.Draw < b.Min || b.Draw > b.Max {
		return fmt.Errorf("bounds: draw %v outside [%v, %v]", b.Draw, b.Min, b.Max)
	}
	return nil
}

// Terminal scores a finished game for you.
func (b Bounds) Terminal(o rules.Outcome, you string) float64 {
	switch o.Kind {
	case rules.Won:
		if o.Winner == you {
			return b.Max
		}
		return b.Min
	default:
		return b.Draw
	}
}

// Flip returns the same score seen from the other side.
func (b Bounds) Flip(r float64) float64 { return b.Max + b.Min - r }

func (b Bounds) Clamp(r float64) float64 {
	if r < b.Min {
		return b.Min
	}
	if r > b.Max {
		return b.Max
	}
	return r
}

// Scale maps a score in [0,1] onto the bounds.
func (b Bounds) Scale(unit float64) float64 {
	return b.Clamp(b.Min + unit*(b.Max-b.Min))
}
