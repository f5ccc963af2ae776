// Command scrape downloads public Battlesnake games from the leaderboards and
// archives them as Parquet batches.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brensch/snekcore/logging"
	"github.com/brensch/snekcore/scraper"
	"github.com/brensch/snekcore/store"
)

func main() {
	outDir := flag.String("out-dir", getEnvOrDefault("OUT_DIR", "data/scraped"), "Directory to write batch .parquet files")
	logPath := flag.String("log-path", getEnvOrDefault("WRITTEN_LOG", "scraper-data/written_games.log"), "Append-only log of game IDs already written")
	flushGames := flag.Int("flush-games", getEnvIntOrDefault("FLUSH_GAMES", 1000), "Flush when buffered games reaches this count")
	flushEvery := flag.Duration("flush-every", getEnvDurationOrDefault("FLUSH_EVERY", time.Hour), "Flush at this interval regardless of buffered count")
	maxPlayers := flag.Int("max-players", getEnvIntOrDefault("MAX_PLAYERS", 50), "Maximum number of players to check per leaderboard")
	requestDelay := flag.Duration("delay", getEnvDurationOrDefault("DELAY", 500*time.Millisecond), "Delay between HTTP requests")
	logLevel := flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	logger, err := logging.Setup(logging.Config{Level: *logLevel, Pretty: true})
	if err != nil {
		log.Fatal().Err(err).Msg("logging")
	}

	written, err := store.OpenWrittenLog(*logPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open written log")
	}
	defer written.Close()

	logger.Info().
		Str("out_dir", *outDir).
		Str("written_log", *logPath).
		Int("already_written", written.Count()).
		Int("flush_games", *flushGames).
		Dur("flush_every", *flushEvery).
		Int("max_players", *maxPlayers).
		Dur("delay", *requestDelay).
		Msg("starting battlesnake scraper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	discCfg := scraper.DefaultDiscoveryConfig()
	discCfg.MaxPlayers = *maxPlayers
	discCfg.RequestDelay = *requestDelay

	run(ctx, logger, runConfig{
		outDir:     *outDir,
		flushGames: *flushGames,
		flushEvery: *flushEvery,
		discovery:  scraper.NewDiscovery(discCfg, written.Snapshot()),
		downloader: scraper.NewDownloader(scraper.DefaultDownloaderConfig()),
		written:    written,
	})
}

type runConfig struct {
	outDir     string
	flushGames int
	flushEvery time.Duration
	discovery  *scraper.Discovery
	downloader *scraper.Downloader
	written    *store.WrittenLog
}

type counts struct {
	attempted, downloaded, skipped, failed int
	batches, rows                          int
}

func run(ctx context.Context, logger zerolog.Logger, cfg runConfig) counts {
	if cfg.flushGames <= 0 {
		cfg.flushGames = 1000
	}
	if cfg.flushEvery <= 0 {
		cfg.flushEvery = time.Hour
	}

	ids := make(chan string, 1000)
	go func() {
		defer close(ids)
		if err := cfg.discovery.Discover(ctx, ids); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("discovery")
		}
	}()

	ticker := time.NewTicker(cfg.flushEvery)
	defer ticker.Stop()

	var (
		c       counts
		w       *store.BatchWriter
		pending []string
	)
	flush := func(reason string) {
		if w == nil {
			return
		}
		path, rows, games, err := w.Finalize()
		w = nil
		if err != nil {
			logger.Error().Err(err).Str("reason", reason).Msg("flush failed")
			pending = pending[:0]
			return
		}
		// The archive is written; a failed log append only costs a re-download.
		if err := cfg.written.AddMany(pending); err != nil {
			logger.Error().Err(err).Str("reason", reason).Msg("written log append failed")
		}
		pending = pending[:0]
		c.batches++
		c.rows += rows
		logger.Info().Str("reason", reason).Int("games", games).Int("rows", rows).Str("path", path).Msg("flushed batch")
	}

	for {
		select {
		case <-ctx.Done():
			flush("signal")
			logger.Info().Msg("interrupted; exiting")
			return c
		case <-ticker.C:
			flush("ticker")
		case id, ok := <-ids:
			if !ok {
				flush("final")
				logger.Info().
					Int("attempted", c.attempted).
					Int("downloaded", c.downloaded).
					Int("skipped", c.skipped).
					Int("failed", c.failed).
					Int("batches", c.batches).
					Int("rows", c.rows).
					Msg("scraping complete")
				return c
			}
			if cfg.written.Has(id) {
				c.skipped++
				continue
			}

			c.attempted++
			dl, err := cfg.downloader.Fetch(ctx, id)
			if err == nil && len(dl.Frames) < 2 {
				err = fmt.Errorf("not enough frames: %d", len(dl.Frames))
			}
			if err != nil {
				c.failed++
				if c.failed%50 == 1 {
					logger.Warn().Err(err).Str("game", id).Int("failures", c.failed).Msg("download failed")
				}
				continue
			}

			if w == nil {
				if w, err = store.NewBatchWriter(cfg.outDir); err != nil {
					logger.Error().Err(err).Msg("open batch writer")
					continue
				}
			}
			if err := w.WriteGame(dl.Rows()); err != nil {
				c.failed++
				logger.Error().Err(err).Str("game", id).Msg("write game")
				continue
			}
			pending = append(pending, id)
			c.downloaded++
			if c.downloaded%50 == 0 {
				logger.Info().
					Int("downloaded", c.downloaded).
					Int("skipped", c.skipped).
					Int("failed", c.failed).
					Int("buffered_games", w.BufferedGames()).
					Int("buffered_rows", w.BufferedRows()).
					Msg("progress")
			}
			if w.BufferedGames() >= cfg.flushGames {
				flush("count")
			}
		}
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
