// Package game defines the core state types for Battlesnake.
//
// These types represent the minimal state needed for rules evaluation and
// search. Boards are designed to be cheaply and deeply clonable so every
// search node can own its own snapshot.
package game

// MaxHealth is the health a snake is reset to when it eats, and the cap
// applied after hazard damage.
const MaxHealth = 100

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
// Negative values are valid and represent positions off the board.
type Point struct {
	X int32
	Y int32
}

// Add returns the point one step away in direction d.
func (p Point) Add(d Direction) Point {
	o := d.Offset()
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

type Snake struct {
	ID     string
	Health int32
	// Body[0] is the head, the last element is the tail.
	Body []Point
}

func (s *Snake) Head() Point { return s.Body[0] }
func (s *Snake) Len() int    { return len(s.Body) }

// Clone returns a deep copy of the snake.
func (s Snake) Clone() Snake {
	out := Snake{ID: s.ID, Health: s.Health}
	if len(s.Body) > 0 {
		out.Body = make([]Point, len(s.Body))
		copy(out.Body, s.Body)
	}
	return out
}

// Board is the unit of state advanced by a ruleset. Only living snakes are
// kept in Snakes; eliminated snakes are removed.
type Board struct {
	Width        int32
	Height       int32
	Turn         int32
	Hazards      []Point
	HazardDamage int32
	Food         []Point
	Snakes       []Snake
}

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}

	out := &Board{
		Width:        b.Width,
		Height:       b.Height,
		Turn:         b.Turn,
		HazardDamage: b.HazardDamage,
	}

	if len(b.Food) > 0 {
		out.Food = make([]Point, len(b.Food))
		copy(out.Food, b.Food)
	}
	if len(b.Hazards) > 0 {
		out.Hazards = make([]Point, len(b.Hazards))
		copy(out.Hazards, b.Hazards)
	}
	if len(b.Snakes) > 0 {
		out.Snakes = make([]Snake, len(b.Snakes))
		for i := range b.Snakes {
			out.Snakes[i] = b.Snakes[i].Clone()
		}
	}

	return out
}

// Snake looks a living snake up by id.
func (b *Board) Snake(id string) (*Snake, bool) {
	for i := range b.Snakes {
		if b.Snakes[i].ID == id {
			return &b.Snakes[i], true
		}
	}
	return nil, false
}

func (b *Board) InBounds(p Point) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// Game is a board seen from the controlled snake. YouID stays stable while
// other snakes are eliminated and is always resolved by id.
type Game struct {
	Board *Board
	YouID string
}

// You returns the controlled snake, or false once it has been eliminated.
func (g *Game) You() (*Snake, bool) {
	return g.Board.Snake(g.YouID)
}

func (g *Game) Clone() *Game {
	return &Game{Board: g.Board.Clone(), YouID: g.YouID}
}

// JointMove holds exactly one direction for every living snake on a board.
type JointMove map[string]Direction

// Decision is what a search hands back to its driver.
type Decision struct {
	Direction Direction
	Score     float64
}
