package rules

import (
	"fmt"

	"github.com/brensch/snekcore/game"
)

// Standard implements the standard Battlesnake rules without food spawning.
type Standard struct{}

func (Standard) Name() string { return "standard" }

func (Standard) GenerateMoves(b *game.Board, id string) []game.Direction {
	return GenerateMoves(b, id)
}

func (Standard) Apply(b *game.Board, moves game.JointMove) error {
	return Apply(b, moves)
}

func (Standard) Check(b *game.Board) Outcome { return Check(b) }

// Apply executes one tick in place. The order is fixed because every step
// reads the board left behind by the previous one:
// movement, hazard damage, feeding, out-of-bounds and starvation
// eliminations, then collision eliminations.
func Apply(b *game.Board, moves game.JointMove) error {
	for i := range b.Snakes {
		if _, ok := moves[b.Snakes[i].ID]; !ok {
			return fmt.Errorf("snake %s: %w", b.Snakes[i].ID, ErrMissingMove)
		}
	}

	moveSnakes(b, moves)
	damageHazards(b)
	feedSnakes(b)
	eliminateOutOfBoundsAndStarved(b)
	eliminateCollisions(b)
	b.Turn++
	return nil
}

func moveSnakes(b *game.Board, moves game.JointMove) {
	for i := range b.Snakes {
		s := &b.Snakes[i]
		head := s.Head().Add(moves[s.ID])
		// Shift the body one cell towards the tail, dropping the old tail.
		copy(s.Body[1:], s.Body[:len(s.Body)-1])
		s.Body[0] = head
		s.Health--
	}
}

func damageHazards(b *game.Board) {
	if len(b.Hazards) == 0 {
		return
	}
	for i := range b.Snakes {
		s := &b.Snakes[i]
		head := s.Head()
		for _, h := range b.Hazards {
			if h != head {
				continue
			}
			s.Health -= b.HazardDamage
			if s.Health > game.MaxHealth {
				s.Health = game.MaxHealth
			}
			break
		}
	}
}

// feedSnakes removes a food only after every snake on it has eaten, so a
// contested food feeds all of them.
func feedSnakes(b *game.Board) {
	if len(b.Food) == 0 {
		return
	}
	remaining := b.Food[:0]
	for _, f := range b.Food {
		eaten := false
		for i := range b.Snakes {
			s := &b.Snakes[i]
			if s.Head() != f {
				continue
			}
			s.Body = append(s.Body, s.Body[len(s.Body)-1])
			s.Health = game.MaxHealth
			eaten = true
		}
		if !eaten {
			remaining = append(remaining, f)
		}
	}
	b.Food = remaining
}

// Bounds and health are independent filters over the same snapshot.
func eliminateOutOfBoundsAndStarved(b *game.Board) {
	alive := b.Snakes[:0]
	for _, s := range b.Snakes {
		if !b.InBounds(s.Head()) || s.Health <= 0 {
			continue
		}
		alive = append(alive, s)
	}
	b.Snakes = alive
}

// eliminateCollisions decides every elimination against one snapshot and
// then removes them together.
func eliminateCollisions(b *game.Board) {
	dead := make([]bool, len(b.Snakes))
	for i := range b.Snakes {
		s := &b.Snakes[i]
		head := s.Head()
		for j := range b.Snakes {
			other := &b.Snakes[j]
			if bodyContains(other.Body[1:], head) {
				dead[i] = true
				break
			}
			if i != j && other.Head() == head && s.Len() <= other.Len() {
				dead[i] = true
				break
			}
		}
	}

	alive := b.Snakes[:0]
	for i, s := range b.Snakes {
		if !dead[i] {
			alive = append(alive, s)
		}
	}
	b.Snakes = alive
}

func bodyContains(body []game.Point, p game.Point) bool {
	for _, c := range body {
		if c == p {
			return true
		}
	}
	return false
}
