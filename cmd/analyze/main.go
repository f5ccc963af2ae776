// Command analyze downloads a player's recent games, asks the configured agent
// what it would have played on every turn and renders the comparison as an
// HTML report.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brensch/snekcore/agent"
	"github.com/brensch/snekcore/config"
	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/logging"
	"github.com/brensch/snekcore/rules"
	"github.com/brensch/snekcore/scraper"
	"github.com/brensch/snekcore/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	statsURL := flag.String("stats-url", "", "Player stats page listing the games to analyse")
	snake := flag.String("snake", "", "Snake name or id to analyse (default: first snake of each game)")
	out := flag.String("out", "charts/analysis.html", "HTML report path")
	logPath := flag.String("log-path", "analyze-data/analysed_games.log", "Append-only log of game IDs already analysed")
	maxGames := flag.Int("max-games", 10, "Maximum number of games to analyse")
	moveTimeout := flag.Duration("move-timeout", 0, "Time per decision (default: server move timeout minus latency reserve)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("logging")
	}
	if *statsURL == "" {
		logger.Fatal().Msg("-stats-url is required")
	}
	if *moveTimeout <= 0 {
		*moveTimeout = cfg.Server.MoveTimeout - cfg.Server.LatencyReserve
	}

	evaluation, closeEval, err := agent.NewEvaluation(cfg.Eval, cfg.Search.Bounds)
	if err != nil {
		logger.Fatal().Err(err).Msg("create evaluation")
	}
	defer closeEval()

	analysed, err := store.OpenWrittenLog(*logPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open analysed log")
	}
	defer analysed.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports := analyse(ctx, logger, analyseConfig{
		statsURL:    *statsURL,
		snake:       *snake,
		maxGames:    *maxGames,
		moveTimeout: *moveTimeout,
		search:      cfg.Search,
		evaluation:  evaluation,
		discovery:   scraper.NewDiscovery(scraper.DefaultDiscoveryConfig(), nil),
		downloader:  scraper.NewDownloader(scraper.DefaultDownloaderConfig()),
		analysed:    analysed,
	})
	if len(reports) == 0 {
		logger.Info().Msg("nothing new to analyse")
		return
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create report dir")
	}
	f, err := os.Create(*out)
	if err != nil {
		logger.Fatal().Err(err).Msg("create report")
	}
	defer f.Close()
	if err := renderReport(f, reports); err != nil {
		logger.Fatal().Err(err).Msg("render report")
	}
	logger.Info().Str("path", *out).Int("games", len(reports)).Msg("report written")
}

type analyseConfig struct {
	statsURL    string
	snake       string
	maxGames    int
	moveTimeout time.Duration
	search      config.Search
	evaluation  eval.Evaluation
	discovery   *scraper.Discovery
	downloader  *scraper.Downloader
	analysed    *store.WrittenLog
}

func analyse(ctx context.Context, logger zerolog.Logger, cfg analyseConfig) []gameReport {
	ids, err := cfg.discovery.PlayerGames(ctx, cfg.statsURL)
	if err != nil {
		logger.Error().Err(err).Str("url", cfg.statsURL).Msg("list games")
		return nil
	}

	var reports []gameReport
	for _, id := range ids {
		if ctx.Err() != nil || (cfg.maxGames > 0 && len(reports) >= cfg.maxGames) {
			break
		}
		if cfg.analysed.Has(id) {
			continue
		}

		dl, err := cfg.downloader.Fetch(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Str("game", id).Msg("download failed")
			continue
		}
		snakeID, err := pickSnake(dl, cfg.snake)
		if err != nil {
			logger.Warn().Err(err).Msg("skipping game")
			continue
		}
		ruleset, err := rules.ByName(dl.RulesetName())
		if err != nil {
			logger.Warn().Err(err).Str("game", id).Msg("unsupported ruleset, using standard")
			ruleset = rules.Standard{}
		}
		a, err := agent.New(cfg.search, ruleset, cfg.evaluation)
		if err != nil {
			logger.Error().Err(err).Msg("create agent")
			return reports
		}

		report, err := analyzeGame(ctx, a, dl, snakeID, cfg.moveTimeout)
		if err != nil {
			logger.Warn().Err(err).Str("game", id).Msg("analysis failed")
			continue
		}
		if err := cfg.analysed.Add(id); err != nil {
			logger.Error().Err(err).Str("game", id).Msg("analysed log append failed")
		}

		agree, total := report.Agreement()
		logger.Info().Str("game", id).Str("snake", snakeID).Int("agree", agree).Int("turns", total).Msg("game analysed")
		reports = append(reports, report)
	}
	return reports
}
