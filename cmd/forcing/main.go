package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shepherdmeng/smrf/internal/adapter/ascgrid"
	"github.com/shepherdmeng/smrf/internal/adapter/csvdata"
	httpadapter "github.com/shepherdmeng/smrf/internal/adapter/http"
	kafkaadapter "github.com/shepherdmeng/smrf/internal/adapter/kafka"
	"github.com/shepherdmeng/smrf/internal/config"
	"github.com/shepherdmeng/smrf/internal/distribute"
	"github.com/shepherdmeng/smrf/internal/observability"
	"github.com/shepherdmeng/smrf/internal/output"
	"github.com/shepherdmeng/smrf/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	forcing, err := config.LoadForcing(cfg.ForcingPath)
	if err != nil {
		logger.Error("failed to load forcing config", "path", cfg.ForcingPath, "error", err)
		return 1
	}

	sink, closer := newSink(cfg, forcing, logger)
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}()

	orch, err := newOrchestrator(forcing, sink, logger, metrics)
	if err != nil {
		logger.Error("failed to prepare run", "error", err)
		return 1
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, orch, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := orch.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		logger.Error("distribution failed", "error", runErr)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

// newOrchestrator loads terrain and station data and builds the run.
func newOrchestrator(f *config.Forcing, sink output.Sink, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Orchestrator, error) {
	loc, err := f.Location()
	if err != nil {
		return nil, err
	}
	times, err := f.Timesteps()
	if err != nil {
		return nil, err
	}

	terrain, err := ascgrid.LoadTerrain(f.Topo.DEM, f.Topo.Mask)
	if err != nil {
		return nil, fmt.Errorf("terrain: %w", err)
	}
	dataset, err := csvdata.Load(f.CSV, loc)
	if err != nil {
		return nil, fmt.Errorf("station data: %w", err)
	}
	vars, err := distribute.Build(f, logger)
	if err != nil {
		return nil, err
	}

	ny, nx := terrain.Shape()
	logger.Info("run prepared",
		"timesteps", len(times),
		"grid", fmt.Sprintf("%dx%d", ny, nx),
		"stations", len(dataset.Metadata),
	)
	return pipeline.New(vars, terrain, dataset, times, sink, logger, metrics, pipeline.Options{
		Threading: f.System.Threading,
		Frequency: f.Output.Frequency,
		Variables: f.OutputVariables(),
		MaxDepth:  f.System.MaxValues,
		Timeout:   f.QueueTimeout(),
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newSink picks the output sink named by [output] sink. KAFKA_BROKERS
// overrides the brokers in the file.
func newSink(cfg *config.Config, f *config.Forcing, logger *slog.Logger) (output.Sink, io.Closer) {
	switch f.Output.Sink {
	case "kafka":
		brokers := f.Output.KafkaBrokers
		if len(cfg.KafkaBrokers) > 0 {
			brokers = cfg.KafkaBrokers
		}
		logger.Info("kafka sink enabled", "brokers", brokers, "topic", f.Output.KafkaTopic)
		s := kafkaadapter.NewSink(brokers, f.Output.KafkaTopic, logger)
		return s, s
	case "none":
		return output.Discard{}, nopCloser{}
	default:
		return output.NewLogSink(logger), nopCloser{}
	}
}
