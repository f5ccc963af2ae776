package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrNoFrames = errors.New("no frames received")

type DownloaderConfig struct {
	// EngineURL is a template taking the game id.
	EngineURL      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		EngineURL:      "wss://engine.battlesnake.com/games/%s/events",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
	}
}

// GameEvent is one message of the engine's event stream.
type GameEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// GameInfo from the "game_info" event.
type GameInfo struct {
	Game    GameDetails `json:"game"`
	Ruleset RulesetInfo `json:"ruleset"`
}

type GameDetails struct {
	ID      string `json:"id"`
	Timeout int    `json:"timeout"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type RulesetInfo struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings json.RawMessage `json:"settings"`
}

// FrameData from "frame" events.
type FrameData struct {
	Turn    int         `json:"turn"`
	Snakes  []SnakeData `json:"snakes"`
	Food    []Coord     `json:"food"`
	Hazards []Coord     `json:"hazards"`
	Board   BoardData   `json:"board,omitempty"`
}

type SnakeData struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Health int     `json:"health"`
	Body   []Coord `json:"body"`
	Author string  `json:"author,omitempty"`
	Death  *Death  `json:"death,omitempty"`
}

// Alive reports whether the snake is still on the board in its frame.
func (s *SnakeData) Alive() bool {
	return s.Death == nil && s.Health > 0 && len(s.Body) > 0
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type BoardData struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Hazards []Coord `json:"hazards"`
}

type Death struct {
	Cause string `json:"cause"`
	Turn  int    `json:"turn"`
}

// Download holds everything the engine streamed for one game.
type Download struct {
	ID     string
	Info   GameInfo
	Frames []FrameData
}

type Downloader struct {
	cfg DownloaderConfig
}

func NewDownloader(cfg DownloaderConfig) *Downloader {
	return &Downloader{cfg: cfg}
}

// Fetch reads the event stream of a finished game until the engine closes
// it or sends game_end. A stream that breaks after some frames still counts.
func (d *Downloader) Fetch(ctx context.Context, gameID string) (*Download, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, fmt.Sprintf(d.cfg.EngineURL, gameID), nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", gameID, err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	dl := &Download{ID: gameID}
	for {
		if d.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || len(dl.Frames) > 0 {
				break
			}
			return nil, fmt.Errorf("read %s: %w", gameID, err)
		}

		var event GameEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Debug().Err(err).Str("game", gameID).Msg("skipping unparseable event")
			continue
		}

		done := false
		switch event.Type {
		case "game_info":
			if err := json.Unmarshal(event.Data, &dl.Info); err != nil {
				log.Debug().Err(err).Str("game", gameID).Msg("bad game_info")
			}
		case "frame":
			var frame FrameData
			if err := json.Unmarshal(event.Data, &frame); err != nil {
				log.Debug().Err(err).Str("game", gameID).Msg("bad frame")
				continue
			}
			dl.Frames = append(dl.Frames, frame)
		case "game_end":
			done = true
		}
		if done {
			break
		}
	}

	if len(dl.Frames) == 0 {
		return nil, fmt.Errorf("%s: %w", gameID, ErrNoFrames)
	}
	return dl, nil
}
