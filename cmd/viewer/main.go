// Command viewer serves a JSON API over the archived games for browsing and
// for asking the engine about any recorded position.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brensch/snekcore/agent"
	"github.com/brensch/snekcore/catalog"
	"github.com/brensch/snekcore/config"
	"github.com/brensch/snekcore/logging"
	"github.com/brensch/snekcore/rules"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "Path to YAML config")
	listen := fs.String("listen", "127.0.0.1:8081", "HTTP listen address")
	dataDirs := fs.String("data-dirs", "data/generated,data/scraped", "Comma-separated list of directories containing archive parquet shards")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("flag parse")
	}

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

	roots := parseDataRoots(*dataDirs)
	cat, err := catalog.Open(roots)
	if err != nil {
		logger.Fatal().Err(err).Msg("open catalog")
	}
	defer cat.Close()

	evaluation, closeEval, err := agent.NewEvaluation(cfg.Eval, cfg.Search.Bounds)
	if err != nil {
		logger.Fatal().Err(err).Msg("create evaluation")
	}
	defer closeEval()

	server := NewServer(cat, func(r rules.Ruleset) (agent.Agent, error) {
		return agent.New(cfg.Search, r, evaluation)
	}, cfg.Server.MoveTimeout, logger)

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info().Str("listen", *listen).Str("roots", strings.Join(roots, ",")).Msg("viewer listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server stopped")
	}
}
