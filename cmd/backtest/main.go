// Package main provides the backtest CLI: the entry point that loads a
// Play, drives internal/runner against an on-disk bar dataset, and
// writes the resulting trades, equity, metrics, and run manifest to
// disk as the run's canonical artifacts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ledgerline/btcore/internal/artifact"
	"github.com/ledgerline/btcore/internal/data"
	"github.com/ledgerline/btcore/internal/play"
	"github.com/ledgerline/btcore/internal/runner"
)

func main() {
	playPath := flag.String("play", "", "path to a Play definition file (yaml/json, required)")
	dataDir := flag.String("data", "./data", "bar dataset directory")
	symbol := flag.String("symbol", "", "symbol to run (defaults to the Play's first symbol_universe entry)")
	start := flag.String("start", "", "run window start, RFC3339 (optional)")
	end := flag.String("end", "", "run window end, RFC3339 (optional)")
	outDir := flag.String("out", "./out", "directory to write run artifacts to")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	if *playPath == "" {
		logger.Fatal("missing required -play flag")
	}

	p, err := play.Load(*playPath)
	if err != nil {
		logger.Fatal("load play", zap.Error(err))
	}

	runSymbol := *symbol
	if runSymbol == "" {
		if len(p.SymbolUniverse) == 0 {
			logger.Fatal("play declares no symbol_universe and -symbol was not given")
		}
		runSymbol = p.SymbolUniverse[0]
	}

	dataStore, err := data.NewStore(logger, *dataDir)
	if err != nil {
		logger.Fatal("open data store", zap.Error(err))
	}

	req := runner.Request{Symbol: runSymbol, Play: p, Provenance: *dataDir}
	if *start != "" {
		ts, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			logger.Fatal("parse -start", zap.Error(err))
		}
		req.StartTsMs = ts.UnixMilli()
	}
	if *end != "" {
		ts, err := time.Parse(time.RFC3339, *end)
		if err != nil {
			logger.Fatal("parse -end", zap.Error(err))
		}
		req.EndTsMs = ts.UnixMilli()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("running backtest",
		zap.String("play", p.ID), zap.String("symbol", runSymbol), zap.String("data_dir", *dataDir))

	arts, err := runner.Run(ctx, logger, dataStore, req)
	if err != nil {
		logger.Fatal("run backtest", zap.Error(err))
	}

	if err := writeArtifacts(*outDir, arts); err != nil {
		logger.Fatal("write artifacts", zap.Error(err))
	}

	logger.Info("backtest complete",
		zap.String("run_hash", arts.RunHash),
		zap.Int("trades", len(arts.Trades)),
		zap.String("out_dir", *outDir))
}

func writeArtifacts(outDir string, arts *artifact.Artifacts) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	files := map[string]any{
		"trades.json":       arts.Trades,
		"equity.json":       arts.Equity,
		"metrics.json":      arts.Metrics,
		"risk_metrics.json": arts.Risk,
		"run_manifest.json": arts.Manifest,
		"result.json": map[string]any{
			"play_hash":      arts.PlayHash,
			"input_hash":     arts.InputHash,
			"trades_hash":    arts.TradesHash,
			"equity_hash":    arts.EquityHash,
			"run_hash":       arts.RunHash,
			"overall_status": arts.OverallStatus,
			"stop_reason":    arts.StopReason,
		},
	}
	for name, v := range files {
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, name), raw, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
