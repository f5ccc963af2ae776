package eval

import (
	"github.com/brensch/snekcore/game"
)

// Weights balance the heuristic features. Only their ratios matter.
type Weights struct {
	Health float64 `yaml:"health"`
	Length float64 `yaml:"length"`
	Space  float64 `yaml:"space"`
}

var DefaultWeights = Weights{Health: 1, Length: 2, Space: 2}

// Heuristic is a survival oriented evaluation: stay fed, stay longer than the
// opposition and keep room to move. Scores are a weighted mean of features
// in [0,1], mapped onto Bounds.
type Heuristic struct {
	Weights Weights
	Bounds  Bounds
}

func NewHeuristic(w Weights) Heuristic {
	return Heuristic{Weights: w, Bounds: DefaultBounds}
}

func (h Heuristic) Score(g *game.Game) float64 {
	you, ok := g.You()
	if !ok {
		return h.Bounds.Min
	}

	total := h.Weights.Health + h.Weights.Length + h.Weights.Space
	if total <= 0 {
		return h.Bounds.Draw
	}

	health := float64(you.Health) / float64(game.MaxHealth)
	length := relativeLength(g.Board, you)
	space := float64(Reachable(g.Board, you.Head())) / float64(max(1, g.Board.Width*g.Board.Height))

	unit := (h.Weights.Health*health + h.Weights.Length*length + h.Weights.Space*space) / total
	return h.Bounds.Scale(unit)
}

// relativeLength is your share of the length of you and your longest
// opponent. With no opponents it is 1.
func relativeLength(b *game.Board, you *game.Snake) float64 {
	longest := 0
	for _, s := range b.Snakes {
		if s.ID != you.ID && s.Len() > longest {
			longest = s.Len()
		}
	}
	if longest == 0 {
		return 1
	}
	return float64(you.Len()) / float64(you.Len()+longest)
}

// Reachable counts the free cells reachable from start without passing
// through a body. Tails are free, they move away next tick.
func Reachable(b *game.Board, start game.Point) int {
	w, h := int(b.Width), int(b.Height)
	if w <= 0 || h <= 0 {
		return 0
	}
	blocked := make([]bool, w*h)
	for _, s := range b.Snakes {
		for i, p := range s.Body {
			if i == len(s.Body)-1 && i > 0 {
				continue
			}
			if b.InBounds(p) {
				blocked[int(p.Y)*w+int(p.X)] = true
			}
		}
	}

	seen := make([]bool, w*h)
	queue := make([]game.Point, 0, w*h)
	for _, d := range game.Directions {
		n := start.Add(d)
		if !b.InBounds(n) {
			continue
		}
		idx := int(n.Y)*w + int(n.X)
		if blocked[idx] || seen[idx] {
			continue
		}
		seen[idx] = true
		queue = append(queue, n)
	}

	count := 0
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		count++
		for _, d := range game.Directions {
			n := p.Add(d)
			if !b.InBounds(n) {
				continue
			}
			idx := int(n.Y)*w + int(n.X)
			if blocked[idx] || seen[idx] {
				continue
			}
			seen[idx] = true
			queue = append(queue, n)
		}
	}
	return count
}
