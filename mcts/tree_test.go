package mcts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
)

var flat = eval.Func(func(*game.Game) float64 { return 0.5 })

func duel() *game.Game {
	return &game.Game{YouID: "me", Board: &game.Board{
		Width: 7, Height: 7,
		Food: []game.Point{{X: 3, Y: 3}},
		Snakes: []game.Snake{
			{ID: "me", Health: 80, Body: []game.Point{{X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}},
			{ID: "them", Health: 80, Body: []game.Point{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}}},
		},
	}}
}

func advance(t *testing.T, tree *Tree, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := tree.Advance()
		require.NoError(t, err)
	}
}

func TestAdvance_FirstIterationExpandsRoot(t *testing.T) {
	tree := New(rules.Standard{}, flat, duel(), Config{})

	done, err := tree.Advance()
	require.NoError(t, err)
	require.False(t, done)

	root := tree.Root()
	require.True(t, root.Simulated)
	require.Equal(t, 1, root.Visits)
	require.Len(t, root.Children, 4)
	for i, d := range game.Directions {
		require.Equal(t, Respond, root.Children[i].Kind)
		require.Equal(t, d, root.Children[i].Move)
		require.Zero(t, root.Children[i].Visits)
	}
}

func TestAdvance_TriesEveryChildOnceFirst(t *testing.T) {
	tree := New(rules.Standard{}, flat, duel(), Config{})
	advance(t, tree, 1)

	for i := 0; i < 4; i++ {
		advance(t, tree, 1)
		require.Equal(t, []int{i}, tree.LastPath())
	}
	for _, c := range tree.Root().Children {
		require.Equal(t, 1, c.Visits)
		require.Len(t, c.Children, 4, "one child per opponent reply")
	}

	// The next round goes one level deeper.
	advance(t, tree, 1)
	require.Len(t, tree.LastPath(), 2)
}

func TestAdvance_BackupFlipsPerspective(t *testing.T) {
	h := eval.NewHeuristic(eval.DefaultWeights)
	tree := New(rules.Standard{}, h, duel(), Config{})
	advance(t, tree, 40)

	for iter := 0; iter < 20; iter++ {
		before := snapshot(tree.Root())
		done, err := tree.Advance()
		require.NoError(t, err)
		if done {
			continue
		}

		path := tree.LastPath()
		require.NotEmpty(t, path)
		deltas := make([]float64, 0, len(path))
		n := tree.Root()
		for i, idx := range path {
			n = &n.Children[idx]
			prev := before[key(path[:i+1])]
			require.Equal(t, prev.visits+1, n.Visits)
			deltas = append(deltas, n.Total-prev.total)
		}
		for i := 0; i+1 < len(deltas); i++ {
			require.InDelta(t, 1-deltas[i+1], deltas[i], 1e-9, "path %v level %d", path, i)
		}
	}
}

func TestAdvance_VisitCountsAreConsistent(t *testing.T) {
	tree := New(rules.Standard{}, eval.NewHeuristic(eval.DefaultWeights), duel(), Config{})
	advance(t, tree, 300)

	var check func(n *Node)
	check = func(n *Node) {
		if !n.Simulated || n.Terminal() {
			return
		}
		sum := 0
		for i := range n.Children {
			sum += n.Children[i].Visits
			check(&n.Children[i])
		}
		require.Equal(t, 1+sum, n.Visits)
	}
	check(tree.Root())
	require.LessOrEqual(t, tree.Iterations(), 300)
}

func TestAdvance_TerminalRoot(t *testing.T) {
	g := &game.Game{YouID: "me", Board: &game.Board{
		Width: 5, Height: 5,
		Snakes: []game.Snake{{ID: "me", Health: 100, Body: []game.Point{{X: 2, Y: 2}}}},
	}}
	tree := New(rules.Standard{}, flat, g, Config{})

	done, err := tree.Advance()
	require.NoError(t, err)
	require.True(t, done)
	require.Empty(t, tree.Root().Children)
	require.Zero(t, tree.Iterations(), "the first terminal arrival is not backed up")
	require.Equal(t, game.Decision{Direction: game.Up, Score: 1}, tree.Best())

	done, err = tree.Advance()
	require.NoError(t, err)
	require.True(t, done)
	require.Empty(t, tree.Root().Children)
}

func TestAdvance_EliminatedYouIsALoss(t *testing.T) {
	g := &game.Game{YouID: "me", Board: &game.Board{
		Width: 7, Height: 7,
		Snakes: []game.Snake{
			{ID: "a", Health: 100, Body: []game.Point{{X: 1, Y: 1}}},
			{ID: "b", Health: 100, Body: []game.Point{{X: 5, Y: 5}}},
		},
	}}
	tree := New(rules.Standard{}, flat, g, Config{})

	done, err := tree.Advance()
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, game.Decision{Direction: game.Up, Score: 0}, tree.Best())
}

func TestBest_FindsWinningTrap(t *testing.T) {
	g := &game.Game{YouID: "me", Board: &game.Board{
		Width: 5, Height: 5,
		Snakes: []game.Snake{
			{ID: "me", Health: 100, Body: []game.Point{{X: 2, Y: 0}, {X: 3, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 1}}},
			{ID: "them", Health: 100, Body: []game.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}}},
		},
	}}
	tree := New(rules.Standard{}, flat, g, Config{})
	advance(t, tree, 500)

	d := tree.Best()
	require.Equal(t, game.Left, d.Direction)
	require.Greater(t, d.Score, 0.8)
}

func TestBest_BeforeSearchUsesEvaluation(t *testing.T) {
	tree := New(rules.Standard{}, eval.Func(func(*game.Game) float64 { return 0.3 }), duel(), Config{})
	require.Equal(t, game.Decision{Direction: game.Up, Score: 0.3}, tree.Best())
}

func TestNode_Paths(t *testing.T) {
	tree := New(rules.Standard{}, flat, duel(), Config{})
	advance(t, tree, 6)

	n, err := tree.Node(nil)
	require.NoError(t, err)
	require.Same(t, tree.Root(), n)

	n, err = tree.Node([]int{0, 0})
	require.NoError(t, err)
	require.Equal(t, Decide, n.Kind)
	require.Equal(t, game.Up, n.Joint["me"])

	_, err = tree.Node([]int{9})
	require.ErrorIs(t, err, ErrInvalidPath)
	_, err = tree.Node([]int{1, 0, 0, 0})
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestExpand_Twice(t *testing.T) {
	tree := New(rules.Standard{}, flat, duel(), Config{})
	advance(t, tree, 1)

	require.ErrorIs(t, tree.expand(tree.Root()), ErrAlreadyExpanded)
}

func TestNew_CopiesRoot(t *testing.T) {
	g := duel()
	before := g.Clone()
	tree := New(rules.Standard{}, flat, g, Config{})
	advance(t, tree, 50)
	require.Equal(t, before, g)
}

type stat struct {
	visits int
	total  float64
}

func key(path []int) string {
	b := make([]byte, 0, len(path)*2)
	for _, i := range path {
		b = append(b, byte(i), '/')
	}
	return string(b)
}

func snapshot(root *Node) map[string]stat {
	out := map[string]stat{}
	var walk func(n *Node, path []int)
	walk = func(n *Node, path []int) {
		out[key(path)] = stat{visits: n.Visits, total: n.Total}
		for i := range n.Children {
			walk(&n.Children[i], append(append([]int(nil), path...), i))
		}
	}
	walk(root, nil)
	return out
}
