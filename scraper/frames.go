package scraper

import (
	"encoding/json"

	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
	"github.com/brensch/snekcore/store"
)

// Source tags archive rows built from downloaded games.
const Source = "scraped"

const defaultSize = 11

// Size is the board size from game_info, falling back to the frames and then
// to the standard 11x11.
func (dl *Download) Size() (width, height int32) {
	width, height = int32(dl.Info.Game.Width), int32(dl.Info.Game.Height)
	if (width <= 0 || height <= 0) && len(dl.Frames) > 0 {
		width, height = int32(dl.Frames[0].Board.Width), int32(dl.Frames[0].Board.Height)
	}
	if width <= 0 || height <= 0 {
		width, height = defaultSize, defaultSize
	}
	return width, height
}

func (dl *Download) RulesetName() string {
	if dl.Info.Ruleset.Name == "" {
		return "standard"
	}
	return dl.Info.Ruleset.Name
}

func (dl *Download) hazardDamage() int32 {
	var settings struct {
		HazardDamagePerTurn int32 `json:"hazardDamagePerTurn"`
	}
	if len(dl.Info.Ruleset.Settings) == 0 {
		return 0
	}
	if err := json.Unmarshal(dl.Info.Ruleset.Settings, &settings); err != nil {
		return 0
	}
	return settings.HazardDamagePerTurn
}

// Board converts frame i into an engine board holding the snakes still alive
// in that frame.
func (dl *Download) Board(i int) *game.Board {
	f := &dl.Frames[i]
	w, h := dl.Size()
	b := &game.Board{
		Width:        w,
		Height:       h,
		Turn:         int32(f.Turn),
		Food:         points(f.Food),
		HazardDamage: dl.hazardDamage(),
	}
	// Feeds put hazards in either place.
	b.Hazards = append(points(f.Hazards), points(f.Board.Hazards)...)
	for j := range f.Snakes {
		s := &f.Snakes[j]
		if !s.Alive() {
			continue
		}
		b.Snakes = append(b.Snakes, game.Snake{ID: s.ID, Health: int32(s.Health), Body: points(s.Body)})
	}
	return b
}

// Game is frame i seen by snake you.
func (dl *Download) Game(i int, you string) *game.Game {
	return &game.Game{Board: dl.Board(i), YouID: you}
}

// Outcome classifies the last frame.
func (dl *Download) Outcome() rules.Outcome {
	if len(dl.Frames) == 0 {
		return rules.Outcome{}
	}
	return rules.Check(dl.Board(len(dl.Frames) - 1))
}

// ActualMoves derives the move every snake alive in prev made to reach next.
// Snakes that died on the way still report the move that killed them.
func ActualMoves(prev, next *FrameData) game.JointMove {
	heads := make(map[string]game.Point, len(next.Snakes))
	for _, s := range next.Snakes {
		if len(s.Body) > 0 {
			heads[s.ID] = point(s.Body[0])
		}
	}

	moves := make(game.JointMove, len(prev.Snakes))
	for i := range prev.Snakes {
		s := &prev.Snakes[i]
		if !s.Alive() {
			continue
		}
		to, ok := heads[s.ID]
		if !ok {
			continue
		}
		if d, ok := game.DirectionBetween(point(s.Body[0]), to); ok {
			moves[s.ID] = d
		}
	}
	return moves
}

// Rows builds one archive row per frame. Each snake's Policy is the move it
// actually made out of that frame and Value the final outcome.
func (dl *Download) Rows() []store.ArchiveTurnRow {
	rows := make([]store.ArchiveTurnRow, 0, len(dl.Frames))
	for i := range dl.Frames {
		row := store.RowFromBoard(dl.ID, Source, dl.RulesetName(), dl.Board(i))
		if i+1 < len(dl.Frames) {
			moves := ActualMoves(&dl.Frames[i], &dl.Frames[i+1])
			for j := range row.Snakes {
				if d, ok := moves[row.Snakes[j].ID]; ok {
					row.Snakes[j].Policy = int32(d)
				}
			}
		}
		rows = append(rows, row)
	}
	store.AssignValues(rows, dl.Outcome())
	return rows
}

func point(c Coord) game.Point { return game.Point{X: int32(c.X), Y: int32(c.Y)} }

func points(cs []Coord) []game.Point {
	if len(cs) == 0 {
		return nil
	}
	out := make([]game.Point, len(cs))
	for i, c := range cs {
		out[i] = point(c)
	}
	return out
}
