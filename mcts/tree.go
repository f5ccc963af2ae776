// Package mcts implements Monte Carlo Tree Search with UCB1 selection for
// simultaneous move Battlesnake.
//
// A Tree owns every node by value and nodes are reached through index paths
// from the root, so nothing in the tree aliases anything else. A Tree is not
// safe for concurrent use; run one per worker and combine them with Merge.
package mcts

import (
	"errors"
	"fmt"
	"math"

	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
)

var (
	ErrInvalidPath     = errors.New("mcts: invalid node path")
	ErrAlreadyExpanded = errors.New("mcts: node already expanded")
)

type Config struct {
	// Exploration is the UCB1 constant. Defaults to sqrt(2).
	Exploration float64
	Bounds      eval.Bounds
}

type Tree struct {
	ruleset rules.Ruleset
	eval    eval.Evaluation
	cfg     Config
	you     string
	root    Node

	lastPath []int
}

// New roots a tree at a copy of g.
func New(r rules.Ruleset, e eval.Evaluation, g *game.Game, cfg Config) *Tree {
	if cfg.Exploration <= 0 {
		cfg.Exploration = math.Sqrt2
	}
	if cfg.Bounds == (eval.Bounds{}) {
		cfg.Bounds = eval.DefaultBounds
	}
	return &Tree{
		ruleset: r,
		eval:    e,
		cfg:     cfg,
		you:     g.YouID,
		root:    Node{Kind: Decide, Board: g.Board.Clone()},
	}
}

func (t *Tree) Root() *Node { return &t.root }

// Iterations is the number of iterations that were backed up.
func (t *Tree) Iterations() int { return t.root.Visits }

// LastPath is the index path selected by the last Advance.
func (t *Tree) LastPath() []int { return t.lastPath }

// Node walks path from the root.
func (t *Tree) Node(path []int) (*Node, error) {
	n := &t.root
	for depth, idx := range path {
		if idx < 0 || idx >= len(n.Children) {
			return nil, fmt.Errorf("%w: index %d at depth %d of %v", ErrInvalidPath, idx, depth, path)
		}
		n = &n.Children[idx]
	}
	return n, nil
}

// Advance runs one select, expand, evaluate and backup cycle. It reports true
// when the selected leaf ends the game, in which case nothing is expanded.
func (t *Tree) Advance() (bool, error) {
	path := t.selectPath()
	t.lastPath = path

	leaf, err := t.Node(path)
	if err != nil {
		return false, err
	}

	if leaf.terminal {
		t.backup(path, t.reward(leaf, leaf.terminalScore))
		return true, nil
	}
	if over, score := t.checkTerminal(leaf); over {
		// First arrival only records the result.
		leaf.terminal = true
		leaf.terminalScore = score
		leaf.Simulated = true
		return true, nil
	}

	if err := t.expand(leaf); err != nil {
		return false, err
	}
	score := t.eval.Score(&game.Game{Board: leaf.Board, YouID: t.you})
	t.backup(path, t.reward(leaf, t.cfg.Bounds.Clamp(score)))
	return false, nil
}

// selectPath descends through fully simulated nodes by UCB1 and stops at the
// first child that has not been simulated yet, at an unexpanded root, or at a
// known terminal node.
func (t *Tree) selectPath() []int {
	var path []int
	n := &t.root
	for n.Simulated && !n.terminal && len(n.Children) > 0 {
		if idx := n.firstUnsimulated(); idx >= 0 {
			return append(path, idx)
		}
		idx := t.bestUCB(n)
		path = append(path, idx)
		n = &n.Children[idx]
	}
	return path
}

func (t *Tree) bestUCB(n *Node) int {
	best, bestIdx := math.Inf(-1), 0
	logN := math.Log(float64(n.Visits))
	for i := range n.Children {
		c := &n.Children[i]
		var u float64
		if c.Visits == 0 {
			u = math.Inf(1)
		} else {
			u = c.Mean() + t.cfg.Exploration*math.Sqrt(logN/float64(c.Visits))
		}
		if u > best {
			best, bestIdx = u, i
		}
	}
	return bestIdx
}

// checkTerminal scores a finished position for the controlled snake. Being
// eliminated, or having nothing to play, while others go on is a loss.
func (t *Tree) checkTerminal(n *Node) (bool, float64) {
	if n.Kind == Respond {
		return false, 0
	}
	if o := t.ruleset.Check(n.Board); o.Over() {
		return true, t.cfg.Bounds.Terminal(o, t.you)
	}
	if len(t.ruleset.GenerateMoves(n.Board, t.you)) == 0 {
		return true, t.cfg.Bounds.Min
	}
	return false, 0
}

func (t *Tree) expand(n *Node) error {
	if len(n.Children) > 0 {
		return ErrAlreadyExpanded
	}

	switch n.Kind {
	case Decide:
		moves := t.ruleset.GenerateMoves(n.Board, t.you)
		n.Children = make([]Node, 0, len(moves))
		for _, d := range moves {
			n.Children = append(n.Children, Node{Kind: Respond, Board: n.Board, Move: d})
		}
	case Respond:
		combos := rules.Combinations(t.ruleset, n.Board, rules.Opponents(n.Board, t.you))
		n.Children = make([]Node, 0, len(combos))
		for _, jm := range combos {
			jm[t.you] = n.Move
			next := n.Board.Clone()
			if err := t.ruleset.Apply(next, jm); err != nil {
				n.Children = nil
				return fmt.Errorf("expand turn %d: %w", n.Board.Turn, err)
			}
			n.Children = append(n.Children, Node{Kind: Decide, Board: next, Joint: jm})
		}
	}
	n.Simulated = true
	return nil
}

// reward turns a score for the controlled snake into the reward of the side
// that moved into n.
func (t *Tree) reward(n *Node, score float64) float64 {
	if n.Kind == Decide {
		return t.cfg.Bounds.Flip(score)
	}
	return score
}

// backup credits every node on path, leaf first, flipping the reward at each
// level. The root only counts the visit.
func (t *Tree) backup(path []int, reward float64) {
	nodes := make([]*Node, 0, len(path))
	n := &t.root
	for _, idx := range path {
		n = &n.Children[idx]
		nodes = append(nodes, n)
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		nodes[i].Visits++
		nodes[i].Total += reward
		reward = t.cfg.Bounds.Flip(reward)
	}
	t.root.Visits++
}

// Edges summarizes the root's children.
func (t *Tree) Edges() []Edge {
	edges := make([]Edge, 0, len(t.root.Children))
	for i := range t.root.Children {
		c := &t.root.Children[i]
		edges = append(edges, Edge{Direction: c.Move, Visits: c.Visits, Total: c.Total})
	}
	return edges
}

// Best picks the root child with the most visits, breaking ties by the higher
// mean and then by generation order. Before any child exists it returns Up
// scored by the root position itself.
func (t *Tree) Best() game.Decision {
	if d, ok := BestEdge(t.Edges()); ok {
		return d
	}
	if over, score := t.checkTerminal(&t.root); over {
		return game.Decision{Direction: game.Up, Score: score}
	}
	return game.Decision{
		Direction: game.Up,
		Score:     t.cfg.Bounds.Clamp(t.eval.Score(&game.Game{Board: t.root.Board, YouID: t.you})),
	}
}
