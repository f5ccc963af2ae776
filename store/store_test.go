package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
)

func sampleBoard() *game.Board {
	return &game.Board{
		Width: 11, Height: 11, Turn: 7,
		Food:         []game.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
		Hazards:      []game.Point{{X: 0, Y: 0}},
		HazardDamage: 14,
		Snakes: []game.Snake{
			{ID: "zed", Health: 40, Body: []game.Point{{X: 9, Y: 9}, {X: 9, Y: 8}}},
			{ID: "amy", Health: 90, Body: []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}}},
		},
	}
}

func TestRowFromBoard_RoundTripsBoard(t *testing.T) {
	b := sampleBoard()
	row := RowFromBoard("g1", "selfplay", "standard", b)

	require.Equal(t, "amy", row.Snakes[0].ID, "snakes are ordered by id")
	require.Equal(t, int32(NoPolicy), row.Snakes[0].Policy)

	got := row.Board()
	require.Equal(t, b.Turn, got.Turn)
	require.Equal(t, b.Food, got.Food)
	require.Equal(t, b.Hazards, got.Hazards)
	require.Equal(t, b.HazardDamage, got.HazardDamage)
	require.Len(t, got.Snakes, 2)
	amy, ok := got.Snake("amy")
	require.True(t, ok)
	require.Equal(t, b.Snakes[1], *amy)
}

func TestWriteAndReadArchive(t *testing.T) {
	dir := t.TempDir()
	row := RowFromBoard("g1", "selfplay", "royale", sampleBoard())
	row.Snakes[0].Policy = int32(game.Left)
	row.Snakes[0].Score = 0.75
	row.Snakes[0].Value = 1

	path, err := WriteArchiveBatchParquetAtomic(dir, []ArchiveTurnRow{row})
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))

	tmp, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	require.Empty(t, tmp, "nothing should be left behind in tmp")

	rows, err := ReadArchiveParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "royale", rows[0].Ruleset)
	amy, ok := rows[0].Snake("amy")
	require.True(t, ok)
	require.Equal(t, int32(game.Left), amy.Policy)
	require.Equal(t, float32(0.75), amy.Score)
	require.Equal(t, []int32{5, 5, 5}, amy.BodyX)
}

func TestBatchWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir)
	require.NoError(t, err)

	b := sampleBoard()
	game1 := []ArchiveTurnRow{RowFromBoard("g1", "selfplay", "standard", b), RowFromBoard("g1", "selfplay", "standard", b)}
	game2 := []ArchiveTurnRow{RowFromBoard("g2", "selfplay", "standard", b)}
	require.NoError(t, w.WriteGame(game1))
	require.NoError(t, w.WriteGame(game2))
	require.Equal(t, 2, w.BufferedGames())

	_, err = os.Stat(w.OutPath())
	require.True(t, os.IsNotExist(err), "output should not exist before finalize")

	path, rows, games, err := w.Finalize()
	require.NoError(t, err)
	require.Equal(t, 3, rows)
	require.Equal(t, 2, games)

	got, err := ReadArchiveParquet(path)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "g2", got[2].GameID)

	require.Error(t, w.WriteGame(game2))
}

func TestBatchWriter_EmptyFinalize(t *testing.T) {
	w, err := NewBatchWriter(t.TempDir())
	require.NoError(t, err)
	path, rows, games, err := w.Finalize()
	require.NoError(t, err)
	require.Empty(t, path)
	require.Zero(t, rows)
	require.Zero(t, games)
}

func TestWrittenLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "written.log")

	l, err := OpenWrittenLog(path)
	require.NoError(t, err)
	require.NoError(t, l.Add("a"))
	require.NoError(t, l.AddMany([]string{"b", "a", "c"}))
	require.True(t, l.Has("b"))
	require.Equal(t, 3, l.Count())
	require.Error(t, l.Add(""))
	require.NoError(t, l.Close())
	require.Error(t, l.Add("d"))

	reopened, err := OpenWrittenLog(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, 3, reopened.Count())
	require.True(t, reopened.Has("c"))
	require.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, reopened.Snapshot())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\n", string(data))
}

func TestAssignValues(t *testing.T) {
	rows := []ArchiveTurnRow{RowFromBoard("g", "selfplay", "standard", sampleBoard())}

	AssignValues(rows, rules.Outcome{Kind: rules.Won, Winner: "zed"})
	zed, _ := rows[0].Snake("zed")
	amy, _ := rows[0].Snake("amy")
	require.Equal(t, float32(1), zed.Value)
	require.Equal(t, float32(0), amy.Value)

	AssignValues(rows, rules.Outcome{Kind: rules.Draw})
	require.Equal(t, float32(0.5), zed.Value)
	require.Equal(t, float32(0.5), amy.Value)

	AssignValues(rows, rules.Outcome{Kind: rules.Ongoing})
	require.Equal(t, float32(0.5), amy.Value)
}
