package selfplay

import (
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/brensch/snekcore/game"
)

// PrintBoard writes a console picture of the board seen from g.YouID:
// O/o for you, S/s for the others, F for food and ~ for hazards.
func PrintBoard(w io.Writer, g *game.Game, color bool) {
	au := aurora.NewAurora(color)
	b := g.Board

	grid := make([][]aurora.Value, b.Height)
	for y := range grid {
		grid[y] = make([]aurora.Value, b.Width)
		for x := range grid[y] {
			grid[y][x] = au.Gray(12, ".")
		}
	}
	set := func(p game.Point, v aurora.Value) {
		if b.InBounds(p) {
			grid[p.Y][p.X] = v
		}
	}

	for _, p := range b.Hazards {
		set(p, au.Magenta("~"))
	}
	for _, f := range b.Food {
		set(f, au.Red("F"))
	}
	for _, s := range b.Snakes {
		body, head := au.Blue("s"), au.Blue("S")
		if s.ID == g.YouID {
			body, head = au.Green("o"), au.Green("O")
		}
		for i := len(s.Body) - 1; i >= 0; i-- {
			if i == 0 {
				set(s.Body[i], head)
			} else {
				set(s.Body[i], body)
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Turn %d (you=%s) ===\n", b.Turn, g.YouID)
	for y := b.Height - 1; y >= 0; y-- {
		for x := int32(0); x < b.Width; x++ {
			fmt.Fprintf(&sb, "%v ", grid[y][x])
		}
		sb.WriteString("\n")
	}
	for _, s := range b.Snakes {
		fmt.Fprintf(&sb, "%s health=%d len=%d\n", s.ID, s.Health, s.Len())
	}
	_, _ = io.WriteString(w, sb.String())
}
