package mcts

import (
	"github.com/brensch/snekcore/game"
)

// Ply says whose choice a node's children represent.
type Ply uint8

const (
	// Decide nodes branch on the controlled snake's direction.
	Decide Ply = iota
	// Respond nodes branch on every opponent combination answering the
	// parent's direction.
	Respond
)

func (p Ply) String() string {
	if p == Decide {
		return "decide"
	}
	return "respond"
}

// Node is one position in the tree. Visits and Total are kept from the point
// of view of the side that moved into the node: the controlled snake for a
// Respond node, its opponents for a Decide node.
type Node struct {
	Kind Ply
	// Board is shared between a Respond node and its parent. Never mutate it.
	Board *game.Board
	// Move is the controlled snake's direction that led to a Respond node.
	Move game.Direction
	// Joint is the full joint move that produced a Decide node. Nil at the root.
	Joint game.JointMove

	Children []Node
	Visits   int
	Total    float64
	// Simulated is set once the node has been expanded, or found terminal.
	Simulated bool

	terminal      bool
	terminalScore float64
}

func (n *Node) Mean() float64 {
	if n.Visits == 0 {
		return 0
	}
	return n.Total / float64(n.Visits)
}

// Terminal reports whether the node was found to end the game. Only known
// after the node has been selected once.
func (n *Node) Terminal() bool { return n.terminal }

func (n *Node) firstUnsimulated() int {
	for i := range n.Children {
		if !n.Children[i].Simulated {
			return i
		}
	}
	return -1
}
