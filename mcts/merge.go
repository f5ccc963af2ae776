package mcts

import "github.com/brensch/snekcore/game"

// Edge is the statistics of one root direction.
type Edge struct {
	Direction game.Direction
	Visits    int
	Total     float64
}

func (e Edge) Mean() float64 {
	if e.Visits == 0 {
		return 0
	}
	return e.Total / float64(e.Visits)
}

// Merge sums root statistics of independent trees per direction. Directions
// keep the order they first appear in.
func Merge(trees ...*Tree) []Edge {
	var out []Edge
	index := make(map[game.Direction]int, len(game.Directions))
	for _, t := range trees {
		for _, e := range t.Edges() {
			i, ok := index[e.Direction]
			if !ok {
				index[e.Direction] = len(out)
				out = append(out, e)
				continue
			}
			out[i].Visits += e.Visits
			out[i].Total += e.Total
		}
	}
	return out
}

// BestEdge applies the visit count policy of Tree.Best to edges. It is false
// when no edge has been visited.
func BestEdge(edges []Edge) (game.Decision, bool) {
	best := -1
	for i, e := range edges {
		if e.Visits == 0 {
			continue
		}
		if best < 0 || e.Visits > edges[best].Visits ||
			(e.Visits == edges[best].Visits && e.Mean() > edges[best].Mean()) {
			best = i
		}
	}
	if best < 0 {
		return game.Decision{}, false
	}
	return game.Decision{Direction: edges[best].Direction, Score: edges[best].Mean()}, true
}
