package main

import (
	"github.com/rs/zerolog/log"

	"github.com/brensch/snekcore/store"
)

// writeLoop streams finished games into Parquet batches of gamesPerFlush
// games and flushes the remainder when in closes.
func writeLoop(outDir string, gamesPerFlush int, in <-chan []store.ArchiveTurnRow) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}

	var w *store.BatchWriter
	flush := func(reason string) {
		if w == nil {
			return
		}
		path, rows, games, err := w.Finalize()
		w = nil
		if err != nil {
			log.Error().Err(err).Str("reason", reason).Msg("parquet flush failed")
			return
		}
		if path != "" {
			log.Info().Str("path", path).Int("games", games).Int("rows", rows).Str("reason", reason).Msg("parquet flush ok")
		}
	}

	for rows := range in {
		if len(rows) == 0 {
			continue
		}
		if w == nil {
			var err error
			if w, err = store.NewBatchWriter(outDir); err != nil {
				log.Error().Err(err).Msg("open batch writer")
				continue
			}
		}
		if err := w.WriteGame(rows); err != nil {
			log.Error().Err(err).Str("game", rows[0].GameID).Msg("write game")
			continue
		}
		if w.BufferedGames() >= gamesPerFlush {
			flush("count")
		}
	}
	flush("final")
}
