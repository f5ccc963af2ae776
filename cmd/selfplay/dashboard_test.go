package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/brensch/snekcore/rules"
)

func TestModel_RecordsGames(t *testing.T) {
	updates := make(chan gameUpdate)
	var m tea.Model = initialModel(updates)

	m, _ = m.Update(gameUpdate{Worker: 1, GameID: "0123456789abcdef", Outcome: rules.Outcome{Kind: rules.Won, Winner: "snake2"}, Turns: 80, Rows: 81})
	m, _ = m.Update(gameUpdate{Worker: 2, GameID: "g2", Outcome: rules.Outcome{Kind: rules.Draw}, Turns: 12, Rows: 13})

	got := m.(model)
	require.Equal(t, 2, got.gamesPlayed)
	require.Equal(t, 94, got.totalRows)
	require.Equal(t, 1, got.wins)
	require.Equal(t, 1, got.draws)
	require.Equal(t, []string{
		"worker 2: g2 draw after 12 turns (13 rows)",
		"worker 1: 01234567 winner snake2 after 80 turns (81 rows)",
	}, got.recentGames)
	require.Contains(t, got.View(), "Games Played:   2 (won 1, drawn 1)")
}

func TestModel_KeepsTenRecent(t *testing.T) {
	m := initialModel(nil)
	for i := 0; i < 15; i++ {
		m = m.record(gameUpdate{GameID: "g", Outcome: rules.Outcome{Kind: rules.Draw}})
	}
	require.Len(t, m.recentGames, 10)
	require.Equal(t, 15, m.gamesPlayed)
}

func TestModel_Quit(t *testing.T) {
	m := initialModel(nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	require.Equal(t, tea.QuitMsg{}, cmd())
}
