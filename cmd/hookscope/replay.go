package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hookScope/internal/config"
	"hookScope/internal/hook"
	"hookScope/internal/hook/antisandwich"
	"hookScope/internal/hook/jitpenalty"
	"hookScope/internal/hook/limitorder"
	"hookScope/internal/model"
	"hookScope/internal/pool"
	"hookScope/internal/replay"
	"hookScope/internal/storage"
	"hookScope/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.PenaltyOffset == 0 {
		return fmt.Errorf("penalty offset must be greater than zero")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := pool.NewTracker(logger)

	feeHandler := antisandwich.FeeHandlerFunc(func(poolID common.Hash, block uint64, zeroForOne bool, excess *uint256.Int) error {
		logger.Debug("excess value captured",
			zap.String("pool_id", poolID.Hex()),
			zap.Uint64("block", block),
			zap.Bool("zero_for_one", zeroForOne),
			zap.String("excess", excess.Dec()),
		)
		return nil
	})

	guard := antisandwich.NewGuard(cfg.ProtectZeroForOne, feeHandler)
	penalty := jitpenalty.NewTracker(jitpenalty.Config{BlockNumberOffset: cfg.PenaltyOffset}, tracker)
	book := limitorder.NewBook()

	pipeline, err := hook.NewPipeline(logger, guard, penalty, book)
	if err != nil {
		return err
	}

	sinks := []storage.OutcomeSink{storage.NewJsonlOutcomeStorage(cfg.Out)}

	var stateStore replay.StateStore
	var poolSink storage.PoolSink
	if cfg.StateFile != "" {
		stateStore = &replay.FileStateStore{Path: cfg.StateFile}
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		pg := &pgSink{ctx: ctx, store: store}
		sinks = append(sinks, pg)
		poolSink = pg
		if stateStore == nil {
			stateStore = &replay.DBStateStore{Store: store, Name: "replay"}
		}
	}

	engine := replay.NewEngine(replay.Config{
		BatchSize:  cfg.BatchSize,
		ReplayFrom: cfg.ReplayFrom,
		StateStore: stateStore,
		PoolSink:   poolSink,
	}, tracker, pipeline, multiOutcomeSink(sinks), logger)

	logger.Info("replay start",
		zap.String("in", cfg.Input),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("replay_from", cfg.ReplayFrom),
		zap.Uint64("penalty_offset", cfg.PenaltyOffset),
		zap.Bool("protect_zero_for_one", cfg.ProtectZeroForOne),
	)

	return engine.Run(ctx, cfg.Input)
}

// pgSink adapts the Postgres store to the replay sink interfaces.
type pgSink struct {
	ctx   context.Context
	store *postgres.Store
}

func (s *pgSink) PutOutcomeBatch(outcomes []model.OutcomeRecord) error {
	return s.store.InsertOutcomes(s.ctx, outcomes)
}

func (s *pgSink) PutPoolBatch(chainID uint64, pools []model.PoolMeta) error {
	return s.store.UpsertPools(s.ctx, chainID, pools)
}

// multiOutcomeSink fans a batch out to every configured sink.
type multiOutcomeSink []storage.OutcomeSink

func (m multiOutcomeSink) PutOutcomeBatch(outcomes []model.OutcomeRecord) error {
	for _, sink := range m {
		if err := sink.PutOutcomeBatch(outcomes); err != nil {
			return err
		}
	}
	return nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
