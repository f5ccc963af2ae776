package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekcore/rules"
)

type gameUpdate struct {
	Worker  int
	GameID  string
	Outcome rules.Outcome
	Turns   int32
	Rows    int
}

type tickMsg time.Time

type model struct {
	gamesPlayed int
	totalRows   int
	wins, draws int
	turns       int64
	startTime   time.Time
	recentGames []string
	updates     <-chan gameUpdate
}

func initialModel(updates <-chan gameUpdate) model {
	return model{startTime: time.Now(), updates: updates}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForUpdate(updates <-chan gameUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return tea.Quit()
		}
		return u
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.turns = totalTurns.Load()
		return m, tickCmd()
	case gameUpdate:
		m = m.record(msg)
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) record(u gameUpdate) model {
	m.gamesPlayed++
	m.totalRows += u.Rows
	result := u.Outcome.Kind.String()
	switch u.Outcome.Kind {
	case rules.Won:
		m.wins++
		result = "winner " + u.Outcome.Winner
	case rules.Draw:
		m.draws++
	}
	line := fmt.Sprintf("worker %d: %s %s after %d turns (%d rows)", u.Worker, u.GameID[:min(8, len(u.GameID))], result, u.Turns, u.Rows)
	m.recentGames = append([]string{line}, m.recentGames...)
	if len(m.recentGames) > 10 {
		m.recentGames = m.recentGames[:10]
	}
	return m
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	var gamesPerSec, turnsPerSec float64
	if duration.Seconds() >= 1 {
		gamesPerSec = float64(m.gamesPlayed) / duration.Seconds()
		turnsPerSec = float64(m.turns) / duration.Seconds()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Games Played:   %d (won %d, drawn %d)\n", m.gamesPlayed, m.wins, m.draws)
	fmt.Fprintf(&sb, "Rows Recorded:  %d\n", m.totalRows)
	fmt.Fprintf(&sb, "Total Turns:    %d\n", m.turns)
	fmt.Fprintf(&sb, "Duration:       %s\n", duration.Round(time.Second))
	fmt.Fprintf(&sb, "Games/Sec:      %.2f\n", gamesPerSec)
	fmt.Fprintf(&sb, "Turns/Sec:      %.2f\n\n", turnsPerSec)

	sb.WriteString("Recent Games:\n")
	for _, g := range m.recentGames {
		sb.WriteString(g + "\n")
	}
	sb.WriteString("\nPress q to quit.\n")
	return sb.String()
}
