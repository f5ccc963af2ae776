// Command selfplay pits the configured agent against itself and archives the
// games as Parquet batches.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brensch/snekcore/agent"
	"github.com/brensch/snekcore/config"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/logging"
	"github.com/brensch/snekcore/rules"
	"github.com/brensch/snekcore/selfplay"
	"github.com/brensch/snekcore/store"
)

var (
	totalTurns atomic.Int64
	totalGames atomic.Int64
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	outDir := flag.String("out-dir", "", "Output directory for parquet batches (overrides config)")
	workers := flag.Int("workers", 0, "Number of self-play workers (overrides config)")
	maxGames := flag.Int("max-games", -1, "If >= 0, stop after this many games across all workers (overrides config)")
	tui := flag.Bool("tui", true, "Show the live dashboard; logs go to -log-file")
	logFile := flag.String("log-file", "selfplay.log", "Log destination while the dashboard is shown")
	debug := flag.Bool("debug", false, "Play a single game, printing every board, and write nothing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *outDir != "" {
		cfg.SelfPlay.OutDir = *outDir
	}
	if *workers > 0 {
		cfg.SelfPlay.Workers = *workers
	}
	if *maxGames >= 0 {
		cfg.SelfPlay.Games = *maxGames
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	useTUI := *tui && !*debug
	var logger zerolog.Logger
	if useTUI {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal().Err(err).Msg("open log file")
		}
		defer f.Close()
		logger, err = logging.SetupWriter(cfg.Log, f)
		if err != nil {
			log.Fatal().Err(err).Msg("logging")
		}
	} else if logger, err = logging.Setup(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("logging")
	}

	ruleset, err := rules.ByName(cfg.SelfPlay.Ruleset)
	if err != nil {
		logger.Fatal().Err(err).Msg("ruleset")
	}
	evaluation, closeEval, err := agent.NewEvaluation(cfg.Eval, cfg.Search.Bounds)
	if err != nil {
		logger.Fatal().Err(err).Msg("create evaluation")
	}
	defer closeEval()
	a, err := agent.New(cfg.Search, ruleset, evaluation)
	if err != nil {
		logger.Fatal().Err(err).Msg("create agent")
	}

	opts := selfplay.Options{
		Width:       cfg.SelfPlay.Width,
		Height:      cfg.SelfPlay.Height,
		Snakes:      cfg.SelfPlay.Snakes,
		MaxTurns:    cfg.SelfPlay.MaxTurns,
		Ruleset:     ruleset,
		Food:        cfg.SelfPlay.Food,
		MoveTimeout: cfg.SelfPlay.MoveTimeout,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	if *debug {
		playDebug(ctx, a, opts)
		return
	}

	logger.Info().
		Int("workers", cfg.SelfPlay.Workers).
		Str("algorithm", cfg.Search.Algorithm).
		Str("eval", cfg.Eval.Kind).
		Str("ruleset", ruleset.Name()).
		Str("out_dir", cfg.SelfPlay.OutDir).
		Msg("starting self-play")

	updates := make(chan gameUpdate, cfg.SelfPlay.Workers)
	writeReqs := make(chan []store.ArchiveTurnRow, cfg.SelfPlay.Workers*4)
	writerDone := make(chan struct{})
	go func() {
		writeLoop(cfg.SelfPlay.OutDir, cfg.SelfPlay.GamesPerFlush, writeReqs)
		close(writerDone)
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < cfg.SelfPlay.Workers; i++ {
		workerWG.Add(1)
		go func(worker int) {
			defer workerWG.Done()
			runWorker(ctx, cancel, worker, a, opts, cfg.SelfPlay.Games, writeReqs, updates)
		}(i)
	}
	go func() {
		workerWG.Wait()
		close(updates)
	}()

	if useTUI {
		p := tea.NewProgram(initialModel(updates), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("dashboard")
		}
		cancel()
	} else {
		logProgress(ctx, updates)
	}

	logger.Info().Msg("shutdown requested; waiting for workers to finish current games")
	workerWG.Wait()
	close(writeReqs)
	<-writerDone
	logger.Info().Int64("games", totalGames.Load()).Msg("shutdown complete")
}

func runWorker(ctx context.Context, cancel context.CancelFunc, worker int, a agent.Agent, opts selfplay.Options, maxGames int, out chan<- []store.ArchiveTurnRow, updates chan<- gameUpdate) {
	opts.OnTurn = func(*game.Board) { totalTurns.Add(1) }
	for ctx.Err() == nil {
		res, err := selfplay.Play(ctx, []agent.Agent{a}, opts)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Int("worker", worker).Msg("game aborted")
			}
			continue
		}

		out <- res.Rows
		total := totalGames.Add(1)
		if maxGames > 0 && total >= int64(maxGames) {
			cancel()
		}

		// Updates are best effort so a closed dashboard never stalls a worker.
		select {
		case updates <- gameUpdate{Worker: worker, GameID: res.GameID, Outcome: res.Outcome, Turns: res.Turns, Rows: len(res.Rows)}:
		default:
		}
	}
}

func logProgress(ctx context.Context, updates <-chan gameUpdate) {
	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			log.Info().
				Int("worker", u.Worker).
				Str("game", u.GameID).
				Str("outcome", u.Outcome.Kind.String()).
				Str("winner", u.Outcome.Winner).
				Int32("turns", u.Turns).
				Int("rows", u.Rows).
				Msg("game finished")
		case <-ticker.C:
			elapsed := time.Since(start).Seconds()
			log.Info().
				Float64("turns_per_sec", float64(totalTurns.Load())/elapsed).
				Float64("games_per_sec", float64(totalGames.Load())/elapsed).
				Msg("stats")
		}
	}
}

func playDebug(ctx context.Context, a agent.Agent, opts selfplay.Options) {
	opts.OnTurn = func(b *game.Board) {
		selfplay.PrintBoard(os.Stdout, &game.Game{Board: b, YouID: b.Snakes[0].ID}, true)
	}
	res, err := selfplay.Play(ctx, []agent.Agent{a}, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("debug game")
	}
	last := res.Rows[len(res.Rows)-1].Board()
	you := ""
	if len(last.Snakes) > 0 {
		you = last.Snakes[0].ID
	}
	selfplay.PrintBoard(os.Stdout, &game.Game{Board: last, YouID: you}, true)
	log.Info().
		Str("game", res.GameID).
		Str("outcome", res.Outcome.Kind.String()).
		Str("winner", res.Outcome.Winner).
		Int32("turns", res.Turns).
		Msg("debug game finished")
}
