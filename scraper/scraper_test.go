package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/rules"
	"github.com/brensch/snekcore/store"
)

func page(links ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><body><table>")
	for _, l := range links {
		fmt.Fprintf(&sb, `<tr><td><a href="%s">x</a></td></tr>`, l)
	}
	sb.WriteString("</table></body></html>")
	return sb.String()
}

func leaderboardServer(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/leaderboard/standard": page(
			"/leaderboard/standard/alice/stats",
			"/leaderboard/standard/bob/stats",
			"/leaderboard/standard/alice/stats",
			"/leaderboard/standard-duels",
		),
		"/leaderboard/standard/alice/stats": page("/game/abc-123", "/game/abc-123", "/game/def-456", "/about"),
		"/leaderboard/standard/bob/stats":   page("/game/def-456", "/game/0f0f"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok || r.Header.Get("User-Agent") != userAgent {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscovery_Players(t *testing.T) {
	srv := leaderboardServer(t)
	d := NewDiscovery(DiscoveryConfig{BaseURL: srv.URL}, nil)

	players, err := d.LeaderboardPlayers(context.Background(), srv.URL+"/leaderboard/standard")
	require.NoError(t, err)
	require.Equal(t, []Player{
		{Username: "alice", StatsURL: srv.URL + "/leaderboard/standard/alice/stats"},
		{Username: "bob", StatsURL: srv.URL + "/leaderboard/standard/bob/stats"},
	}, players)

	ids, err := d.PlayerGames(context.Background(), players[0].StatsURL)
	require.NoError(t, err)
	require.Equal(t, []string{"abc-123", "def-456"}, ids)

	_, err = d.PlayerGames(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
}

func TestDiscovery_DiscoverSkipsKnown(t *testing.T) {
	srv := leaderboardServer(t)
	d := NewDiscovery(DiscoveryConfig{
		BaseURL:      srv.URL,
		Leaderboards: []string{"/leaderboard/missing", "/leaderboard/standard"},
	}, map[string]bool{"0f0f": true})

	out := make(chan string, 10)
	require.NoError(t, d.Discover(context.Background(), out))
	close(out)

	var got []string
	for id := range out {
		got = append(got, id)
	}
	require.Equal(t, []string{"abc-123", "def-456"}, got)
}

func TestDiscovery_MaxPlayers(t *testing.T) {
	srv := leaderboardServer(t)
	d := NewDiscovery(DiscoveryConfig{
		BaseURL:      srv.URL,
		Leaderboards: []string{"/leaderboard/standard"},
		MaxPlayers:   1,
	}, nil)

	out := make(chan string, 10)
	require.NoError(t, d.Discover(context.Background(), out))
	close(out)
	require.Len(t, out, 2)
}

func TestDiscovery_Cancelled(t *testing.T) {
	srv := leaderboardServer(t)
	d := NewDiscovery(DiscoveryConfig{
		BaseURL:      srv.URL,
		Leaderboards: []string{"/leaderboard/standard"},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Unbuffered and never read.
	require.ErrorIs(t, d.Discover(ctx, make(chan string)), context.Canceled)
}

func event(t *testing.T, typ string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	msg, err := json.Marshal(GameEvent{Type: typ, Data: raw})
	require.NoError(t, err)
	return msg
}

func sampleFrames() []FrameData {
	return []FrameData{
		{Turn: 0, Food: []Coord{{X: 5, Y: 5}}, Snakes: []SnakeData{
			{ID: "a", Health: 100, Body: []Coord{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}},
			{ID: "b", Health: 100, Body: []Coord{{X: 9, Y: 9}, {X: 9, Y: 9}, {X: 9, Y: 9}}},
		}},
		{Turn: 1, Food: []Coord{{X: 5, Y: 5}}, Snakes: []SnakeData{
			{ID: "a", Health: 99, Body: []Coord{{X: 1, Y: 2}, {X: 1, Y: 1}, {X: 1, Y: 1}}},
			{ID: "b", Health: 99, Body: []Coord{{X: 8, Y: 9}, {X: 9, Y: 9}, {X: 9, Y: 9}}},
		}},
		{Turn: 2, Food: []Coord{{X: 5, Y: 5}}, Snakes: []SnakeData{
			{ID: "a", Health: 98, Body: []Coord{{X: 2, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 1}}},
			{ID: "b", Health: 98, Body: []Coord{{X: 8, Y: 10}, {X: 8, Y: 9}, {X: 9, Y: 9}},
				Death: &Death{Cause: "wall-collision", Turn: 2}},
		}},
	}
}

func engineServer(t *testing.T, send func(conn *websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		send(conn)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/games/%s/events"
}

func TestDownloader_Fetch(t *testing.T) {
	frames := sampleFrames()
	url := engineServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, event(t, "game_info", GameInfo{
			Game:    GameDetails{ID: "g1", Width: 11, Height: 11},
			Ruleset: RulesetInfo{Name: "standard"},
		}))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, event(t, "frame", f))
		}
		_ = conn.WriteMessage(websocket.TextMessage, event(t, "game_end", struct{}{}))
		// Anything after game_end is ignored.
		_ = conn.WriteMessage(websocket.TextMessage, event(t, "frame", frames[0]))
	})

	d := NewDownloader(DownloaderConfig{EngineURL: url, ConnectTimeout: time.Second, ReadTimeout: time.Second})
	dl, err := d.Fetch(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, "g1", dl.ID)
	require.Equal(t, "standard", dl.Info.Ruleset.Name)
	require.Equal(t, frames, dl.Frames)
}

func TestDownloader_NoFrames(t *testing.T) {
	url := engineServer(t, func(*websocket.Conn) {})
	d := NewDownloader(DownloaderConfig{EngineURL: url, ConnectTimeout: time.Second, ReadTimeout: time.Second})
	_, err := d.Fetch(context.Background(), "g1")
	require.ErrorIs(t, err, ErrNoFrames)
}

func TestDownloader_DialError(t *testing.T) {
	d := NewDownloader(DownloaderConfig{EngineURL: "ws://127.0.0.1:1/games/%s/events", ConnectTimeout: time.Second})
	_, err := d.Fetch(context.Background(), "g1")
	require.Error(t, err)
}

func sampleDownload() *Download {
	return &Download{
		ID: "g1",
		Info: GameInfo{Ruleset: RulesetInfo{
			Name:     "royale",
			Settings: json.RawMessage(`{"hazardDamagePerTurn": 14}`),
		}},
		Frames: sampleFrames(),
	}
}

func TestDownload_Board(t *testing.T) {
	dl := sampleDownload()
	w, h := dl.Size()
	require.Equal(t, int32(11), w)
	require.Equal(t, int32(11), h)

	b := dl.Board(1)
	require.Equal(t, int32(1), b.Turn)
	require.Equal(t, int32(14), b.HazardDamage)
	require.Equal(t, []game.Point{{X: 5, Y: 5}}, b.Food)
	require.Len(t, b.Snakes, 2)

	last := dl.Board(2)
	require.Len(t, last.Snakes, 1, "dead snakes are dropped")
	require.Equal(t, rules.Outcome{Kind: rules.Won, Winner: "a"}, dl.Outcome())

	g := dl.Game(0, "b")
	you, ok := g.You()
	require.True(t, ok)
	require.Equal(t, game.Point{X: 9, Y: 9}, you.Head())
}

func TestActualMoves(t *testing.T) {
	f := sampleFrames()
	require.Equal(t, game.JointMove{"a": game.Up, "b": game.Left}, ActualMoves(&f[0], &f[1]))
	require.Equal(t, game.JointMove{"a": game.Right, "b": game.Up}, ActualMoves(&f[1], &f[2]), "the fatal move is still reported")

	// A snake missing from the next frame has no move.
	next := FrameData{Snakes: f[1].Snakes[:1]}
	require.Equal(t, game.JointMove{"a": game.Up}, ActualMoves(&f[0], &next))
}

func TestDownload_Rows(t *testing.T) {
	rows := sampleDownload().Rows()
	require.Len(t, rows, 3)
	require.Equal(t, Source, rows[0].Source)
	require.Equal(t, "royale", rows[0].Ruleset)

	a, ok := rows[0].Snake("a")
	require.True(t, ok)
	require.Equal(t, int32(game.Up), a.Policy)
	require.Equal(t, float32(1), a.Value)

	b, ok := rows[1].Snake("b")
	require.True(t, ok)
	require.Equal(t, int32(game.Up), b.Policy)
	require.Equal(t, float32(0), b.Value)

	_, ok = rows[2].Snake("b")
	require.False(t, ok)
	a, _ = rows[2].Snake("a")
	require.Equal(t, int32(store.NoPolicy), a.Policy)
}
