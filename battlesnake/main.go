// Package main implements a Battlesnake API server on top of the searches.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brensch/snekcore/agent"
	"github.com/brensch/snekcore/config"
	"github.com/brensch/snekcore/logging"
	"github.com/brensch/snekcore/rules"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "Path to YAML config")
	listen := fs.String("listen", "", "HTTP listen address (overrides config)")
	algorithm := fs.String("algorithm", "", "Search algorithm: minimax or mcts (overrides config)")
	modelPath := fs.String("model-path", "", "ONNX model; switches evaluation to the value net")
	workers := fs.Int("workers", 0, "MCTS workers per move (overrides config)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("flag parse")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *algorithm != "" {
		cfg.Search.Algorithm = *algorithm
	}
	if *modelPath != "" {
		cfg.Eval.Kind = config.EvalONNX
		cfg.Eval.ModelPath = *modelPath
	}
	if *workers > 0 {
		cfg.Search.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("logging")
	}

	evaluation, closeEval, err := agent.NewEvaluation(cfg.Eval, cfg.Search.Bounds)
	if err != nil {
		logger.Fatal().Err(err).Msg("create evaluation")
	}
	defer closeEval()

	server := NewServer(cfg.Server, func(r rules.Ruleset) (agent.Agent, error) {
		return agent.New(cfg.Search, r, evaluation)
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info().
		Str("listen", cfg.Server.Listen).
		Str("algorithm", cfg.Search.Algorithm).
		Str("eval", cfg.Eval.Kind).
		Msg("battlesnake server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server stopped")
	}
}
