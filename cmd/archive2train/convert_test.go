package main

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"

	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
	"github.com/brensch/snekcore/store"
)

func archiveRow(width int32) store.ArchiveTurnRow {
	b := &game.Board{
		Width: width, Height: width, Turn: 3,
		Food: []game.Point{{X: 4, Y: 4}},
		Snakes: []game.Snake{
			{ID: "a", Health: 50, Body: []game.Point{{X: 1, Y: 1}, {X: 1, Y: 0}}},
			{ID: "b", Health: 80, Body: []game.Point{{X: 5, Y: 5}, {X: 5, Y: 6}}},
		},
	}
	row := store.RowFromBoard("g1", "selfplay", "standard", b)
	row.Snakes[0].Policy = int32(game.Right)
	rows := []store.ArchiveTurnRow{row}
	store.AssignValues(rows, rules.Outcome{Kind: rules.Won, Winner: "a"})
	return rows[0]
}

func TestExamples(t *testing.T) {
	row := archiveRow(11)
	got := examples(&row)
	require.Len(t, got, 1, "b has no recorded move")

	ex := got[0]
	require.Equal(t, "a", ex.EgoID)
	require.Equal(t, int32(game.Right), ex.Policy)
	probs := [4]float32{ex.PolicyP0, ex.PolicyP1, ex.PolicyP2, ex.PolicyP3}
	var want [4]float32
	want[game.Right] = 1
	require.Equal(t, want, probs)
	require.Equal(t, float32(1), ex.Value)
	require.Len(t, ex.X, eval.InputSize*4)

	// Food sits on plane 0 at (4,4).
	idx := 4*eval.Width + 4
	require.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(ex.X[idx*4:])))

	small := archiveRow(7)
	require.Empty(t, examples(&small))
}

func TestConvertOne(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.parquet")
	require.NoError(t, parquet.WriteFile(in, []store.ArchiveTurnRow{archiveRow(11), archiveRow(11), archiveRow(7)}))

	out := filepath.Join(dir, "out.train.parquet")
	n, err := convertOne(in, out)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rows, err := parquet.ReadFile[TrainingXRow](out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int32(eval.Channels), rows[0].XC)

	empty := filepath.Join(dir, "empty.parquet")
	require.NoError(t, parquet.WriteFile(empty, []store.ArchiveTurnRow{archiveRow(7)}))
	n, err = convertOne(empty, filepath.Join(dir, "empty.train.parquet"))
	require.NoError(t, err)
	require.Zero(t, n)
	_, err = os.Stat(filepath.Join(dir, "empty.train.parquet"))
	require.True(t, os.IsNotExist(err))
}

func TestFindInputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tmp"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.parquet"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp", "b.parquet"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	require.Equal(t, []string{filepath.Join(dir, "a.parquet")}, findInputs(dir))
}
