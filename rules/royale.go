package rules

import "github.com/brensch/snekcore/game"

// Royale is Standard plus a hazard ring that closes in from the edges of the
// board every ShrinkEvery turns.
//
// The official engine shrinks one random side at a time. This variant closes
// a whole ring at once.
type Royale struct {
	ShrinkEvery int32
	Damage      int32
}

func DefaultRoyale() Royale {
	return Royale{ShrinkEvery: 25, Damage: 14}
}

func (Royale) Name() string { return "royale" }

func (Royale) GenerateMoves(b *game.Board, id string) []game.Direction {
	return GenerateMoves(b, id)
}

func (r Royale) Apply(b *game.Board, moves game.JointMove) error {
	if err := Apply(b, moves); err != nil {
		return err
	}
	if r.ShrinkEvery <= 0 || b.Turn%r.ShrinkEvery != 0 {
		return nil
	}
	b.HazardDamage = r.Damage
	b.Hazards = append(b.Hazards, ring(b, b.Turn/r.ShrinkEvery-1)...)
	return nil
}

func (Royale) Check(b *game.Board) Outcome { return Check(b) }

// ring returns the cells at distance k from the board edge. It is empty once
// the rings have met in the middle.
func ring(b *game.Board, k int32) []game.Point {
	minX, maxX := k, b.Width-1-k
	minY, maxY := k, b.Height-1-k
	if minX > maxX || minY > maxY {
		return nil
	}
	cells := make([]game.Point, 0, 2*(maxX-minX+1)+2*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		cells = append(cells, game.Point{X: x, Y: minY})
		if maxY != minY {
			cells = append(cells, game.Point{X: x, Y: maxY})
		}
	}
	for y := minY + 1; y < maxY; y++ {
		cells = append(cells, game.Point{X: minX, Y: y})
		if maxX != minX {
			cells = append(cells, game.Point{X: maxX, Y: y})
		}
	}
	return cells
}
