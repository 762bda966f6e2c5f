package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradebots/internal/broker"
	"tradebots/internal/config"
	"tradebots/internal/engine"
	"tradebots/internal/md"
	"tradebots/internal/metrics"
	"tradebots/internal/news"
	"tradebots/internal/risk"
	"tradebots/internal/strategy"
	"tradebots/internal/util"

	"github.com/rs/zerolog"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}

	root := util.NewLogger(cfg.Log.Level, cfg.Log.Pretty)
	kinds, err := cfg.Strategies()
	if err != nil {
		root.Error().Err(err).Msg("config error")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		root.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
	}

	runID := engine.NewRunID()
	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID, root)
	if err != nil {
		root.Error().Err(err).Str("path", cfg.DecisionsPath).Msg("decision journal error")
		return 1
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			root.Warn().Err(err).Msg("failed to close decision journal")
		}
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	agents := make([]*engine.Agent, 0, len(kinds))
	for _, kind := range kinds {
		agent, err := buildAgent(cfg, kind, decisions, rng, root)
		if err != nil {
			root.Error().Err(err).Str("strategy", string(kind)).Msg("agent setup failed")
			return 1
		}
		agents = append(agents, agent)
	}

	root.Info().
		Str("run_id", runID).
		Str("api_url", cfg.APIURL).
		Str("strategy", cfg.Strategy).
		Int("max_leverage", cfg.MaxLeverage).
		Bool("tape", cfg.Tape).
		Msg("starting bots")

	if len(agents) == 1 {
		err = agents[0].Run(ctx)
	} else {
		err = engine.NewSupervisor(agents, root).Run(ctx)
	}
	if err != nil {
		var regErr *broker.RegistrationError
		if errors.As(err, &regErr) && ctx.Err() == nil {
			root.Error().Err(err).Msg("registration failed, exiting")
			return 1
		}
		if ctx.Err() == nil {
			root.Error().Err(err).Msg("bots stopped with error")
			return 1
		}
	}
	root.Info().Msg("shutdown complete")
	return 0
}

// buildAgent gives each strategy its own client, identity and logger.
func buildAgent(cfg config.Config, kind strategy.Kind, decisions *engine.DecisionLogger, rng *rand.Rand, root zerolog.Logger) (*engine.Agent, error) {
	agentRand := rand.New(rand.NewSource(rng.Int63()))
	log := util.AgentLogger(root, kind.Tag(), string(kind))

	var feed news.Feed
	if kind == strategy.KindSentiment {
		opts := cfg.NewsOptions()
		opts.Rand = rand.New(rand.NewSource(rng.Int63()))
		f, err := news.New(opts, log)
		if err != nil {
			return nil, err
		}
		feed = f
	}

	strat, err := strategy.Build(kind, cfg.StrategyParams(), feed, agentRand, log)
	if err != nil {
		return nil, err
	}

	var tape *md.Tape
	if cfg.Tape {
		tape, err = md.NewTape(cfg.APIURL, cfg.ReconnectDelay, log)
		if err != nil {
			return nil, err
		}
	}

	return engine.New(engine.Options{
		Strategy:    strat,
		Exchange:    broker.New(cfg.APIURL, log),
		Gate:        risk.NewGate(risk.Limits{MaxLeverage: cfg.LeverageCeiling(kind)}, log),
		Decisions:   decisions,
		Tape:        tape,
		Username:    engine.Username(kind, rng),
		Password:    cfg.Password,
		StatusEvery: cfg.StatusEvery,
		Log:         log,
	}), nil
}
