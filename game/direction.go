package game

import "fmt"

type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions is the order moves are generated and searched in.
var Directions = [4]Direction{Up, Right, Left, Down}

// Offset returns the unit vector for d.
func (d Direction) Offset() Point {
	switch d {
	case Up:
		return Point{X: 0, Y: 1}
	case Down:
		return Point{X: 0, Y: -1}
	case Left:
		return Point{X: -1, Y: 0}
	case Right:
		return Point{X: 1, Y: 0}
	}
	return Point{}
}

// String returns the Battlesnake wire name.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return Up, fmt.Errorf("unknown direction %q", s)
}

// DirectionBetween returns the direction that moves from a to the adjacent
// point b.
func DirectionBetween(a, b Point) (Direction, bool) {
	for _, d := range Directions {
		if a.Add(d) == b {
			return d, true
		}
	}
	return Up, false
}
