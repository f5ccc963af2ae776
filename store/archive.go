// Package store persists played games as Parquet archives.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
)

const archiveSchema = "archive_turn_v2"

// NoPolicy marks a snake without a recorded move on a turn.
const NoPolicy = -1

// ArchiveTurnRow is a single (game, turn) snapshot intended for long-term storage.
//
// It is model-agnostic and optimized for compression:
// - one row per turn (no duplication of food/hazards across snakes)
// - nested/repeated snake data
type ArchiveTurnRow struct {
	GameID  string `parquet:"game_id,dict"`
	Turn    int32  `parquet:"turn"`
	Width   int32  `parquet:"width"`
	Height  int32  `parquet:"height"`
	Ruleset string `parquet:"ruleset,dict"`

	FoodX []int32 `parquet:"food_x"`
	FoodY []int32 `parquet:"food_y"`

	HazardX      []int32 `parquet:"hazard_x"`
	HazardY      []int32 `parquet:"hazard_y"`
	HazardDamage int32   `parquet:"hazard_damage"`

	Snakes []ArchiveSnake `parquet:"snakes"`

	Source string `parquet:"source,dict"`
}

// ArchiveSnake is one snake on a turn.
//
// Policy is the move the snake played from this position, as a game.Direction,
// or NoPolicy. Score is the searched score of that move. Value is the final
// outcome from the snake's point of view: 1 win, 0.5 draw, 0 loss.
type ArchiveSnake struct {
	ID     string `parquet:"id,dict"`
	Alive  bool   `parquet:"alive"`
	Health int32  `parquet:"health"`

	BodyX []int32 `parquet:"body_x"`
	BodyY []int32 `parquet:"body_y"`

	Policy int32   `parquet:"policy"`
	Score  float32 `parquet:"score"`
	Value  float32 `parquet:"value"`
}

func splitPoints(ps []game.Point) (xs, ys []int32) {
	if len(ps) == 0 {
		return nil, nil
	}
	xs = make([]int32, len(ps))
	ys = make([]int32, len(ps))
	for i, p := range ps {
		xs[i], ys[i] = p.X, p.Y
	}
	return xs, ys
}

func joinPoints(xs, ys []int32) []game.Point {
	n := min(len(xs), len(ys))
	if n == 0 {
		return nil
	}
	out := make([]game.Point, n)
	for i := 0; i < n; i++ {
		out[i] = game.Point{X: xs[i], Y: ys[i]}
	}
	return out
}

// RowFromBoard snapshots b with snakes ordered by id and no policies.
func RowFromBoard(gameID, source, ruleset string, b *game.Board) ArchiveTurnRow {
	row := ArchiveTurnRow{
		GameID:       gameID,
		Turn:         b.Turn,
		Width:        b.Width,
		Height:       b.Height,
		Ruleset:      ruleset,
		HazardDamage: b.HazardDamage,
		Source:       source,
	}
	row.FoodX, row.FoodY = splitPoints(b.Food)
	row.HazardX, row.HazardY = splitPoints(b.Hazards)

	snakes := make([]game.Snake, len(b.Snakes))
	copy(snakes, b.Snakes)
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].ID < snakes[j].ID })

	row.Snakes = make([]ArchiveSnake, 0, len(snakes))
	for _, s := range snakes {
		as := ArchiveSnake{
			ID:     s.ID,
			Alive:  s.Health > 0 && len(s.Body) > 0,
			Health: s.Health,
			Policy: NoPolicy,
		}
		as.BodyX, as.BodyY = splitPoints(s.Body)
		row.Snakes = append(row.Snakes, as)
	}
	return row
}

// Board rebuilds the living snakes of a row.
func (r *ArchiveTurnRow) Board() *game.Board {
	b := &game.Board{
		Width:        r.Width,
		Height:       r.Height,
		Turn:         r.Turn,
		Food:         joinPoints(r.FoodX, r.FoodY),
		Hazards:      joinPoints(r.HazardX, r.HazardY),
		HazardDamage: r.HazardDamage,
	}
	for _, s := range r.Snakes {
		if !s.Alive {
			continue
		}
		b.Snakes = append(b.Snakes, game.Snake{ID: s.ID, Health: s.Health, Body: joinPoints(s.BodyX, s.BodyY)})
	}
	return b
}

// AssignValues fills every snake's Value from the game's final outcome. A
// game that did not finish counts as a draw.
func AssignValues(rows []ArchiveTurnRow, o rules.Outcome) {
	for i := range rows {
		for j := range rows[i].Snakes {
			s := &rows[i].Snakes[j]
			switch {
			case o.Kind != rules.Won:
				s.Value = 0.5
			case s.ID == o.Winner:
				s.Value = 1
			default:
				s.Value = 0
			}
		}
	}
}

// Snake finds a snake of the row by id.
func (r *ArchiveTurnRow) Snake(id string) (*ArchiveSnake, bool) {
	for i := range r.Snakes {
		if r.Snakes[i].ID == id {
			return &r.Snakes[i], true
		}
	}
	return nil, false
}

func writerOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", archiveSchema),
	}
}

// WriteArchiveBatchParquetAtomic writes rows into outDir/tmp and then renames
// the file into outDir, so readers never see a partial file.
func WriteArchiveBatchParquetAtomic(outDir string, rows []ArchiveTurnRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writerOptions()...); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

func ReadArchiveParquet(path string) ([]ArchiveTurnRow, error) {
	rows, err := parquet.ReadFile[ArchiveTurnRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
