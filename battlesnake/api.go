package main

import (
	"github.com/brensch/snekcore/game"
)

// Battlesnake API request/response types

type BattlesnakeInfoResponse struct {
	APIVersion string `json:"apiversion"`
	Author     string `json:"author"`
	Color      string `json:"color"`
	Head       string `json:"head"`
	Tail       string `json:"tail"`
	Version    string `json:"version"`
}

type GameRequest struct {
	Game  Game        `json:"game"`
	Turn  int         `json:"turn"`
	Board Board       `json:"board"`
	You   Battlesnake `json:"you"`
}

type Game struct {
	ID      string  `json:"id"`
	Ruleset Ruleset `json:"ruleset"`
	Map     string  `json:"map"`
	Timeout int     `json:"timeout"`
	Source  string  `json:"source"`
}

type Ruleset struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings RulesetSettings `json:"settings"`
}

type RulesetSettings struct {
	FoodSpawnChance     int `json:"foodSpawnChance"`
	MinimumFood         int `json:"minimumFood"`
	HazardDamagePerTurn int `json:"hazardDamagePerTurn"`
}

type Board struct {
	Height  int           `json:"height"`
	Width   int           `json:"width"`
	Food    []Coord       `json:"food"`
	Hazards []Coord       `json:"hazards"`
	Snakes  []Battlesnake `json:"snakes"`
}

type Battlesnake struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Health  int     `json:"health"`
	Body    []Coord `json:"body"`
	Latency string  `json:"latency"`
	Head    Coord   `json:"head"`
	Length  int     `json:"length"`
	Shout   string  `json:"shout"`
	Squad   string  `json:"squad"`
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type MoveResponse struct {
	Move  string `json:"move"`
	Shout string `json:"shout,omitempty"`
}

func toPoints(cs []Coord) []game.Point {
	out := make([]game.Point, len(cs))
	for i, c := range cs {
		out[i] = game.Point{X: int32(c.X), Y: int32(c.Y)}
	}
	return out
}

// convertToGame converts a Battlesnake API request into a search root.
func convertToGame(req *GameRequest) *game.Game {
	b := &game.Board{
		Width:        int32(req.Board.Width),
		Height:       int32(req.Board.Height),
		Turn:         int32(req.Turn),
		Food:         toPoints(req.Board.Food),
		Hazards:      toPoints(req.Board.Hazards),
		HazardDamage: int32(req.Game.Ruleset.Settings.HazardDamagePerTurn),
		Snakes:       make([]game.Snake, 0, len(req.Board.Snakes)),
	}
	for _, s := range req.Board.Snakes {
		if len(s.Body) == 0 {
			continue
		}
		b.Snakes = append(b.Snakes, game.Snake{
			ID:     s.ID,
			Health: int32(s.Health),
			Body:   toPoints(s.Body),
		})
	}
	return &game.Game{Board: b, YouID: req.You.ID}
}
