package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/weatherforhumans/thermal-etl/internal/adapter/chartsvc"
	kafkaadapter "github.com/weatherforhumans/thermal-etl/internal/adapter/kafka"
	"github.com/weatherforhumans/thermal-etl/internal/adapter/maskfile"
	"github.com/weatherforhumans/thermal-etl/internal/adapter/mediastore"
	"github.com/weatherforhumans/thermal-etl/internal/adapter/mongostore"
	"github.com/weatherforhumans/thermal-etl/internal/adapter/nomads"
	"github.com/weatherforhumans/thermal-etl/internal/adapter/objectstore"
	"github.com/weatherforhumans/thermal-etl/internal/adapter/textalert"
	"github.com/weatherforhumans/thermal-etl/internal/config"
	"github.com/weatherforhumans/thermal-etl/internal/domain"
	"github.com/weatherforhumans/thermal-etl/internal/fetch"
	"github.com/weatherforhumans/thermal-etl/internal/guard"
	"github.com/weatherforhumans/thermal-etl/internal/observability"
	"github.com/weatherforhumans/thermal-etl/internal/pipeline"
	"github.com/weatherforhumans/thermal-etl/internal/thermal"
)

func main() {
	os.Exit(run())
}

// run executes one update cycle. The two no-work outcomes (another run in
// progress, source unchanged) exit 0 so the scheduler does not flag them.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mask, err := maskfile.Load(cfg.Mask.Path)
	if err != nil {
		logger.Error("failed to load land mask", "error", err)
		return 1
	}

	store, err := mongostore.New(ctx, cfg.Mongo)
	if err != nil {
		logger.Error("failed to connect to mongodb", "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("mongodb close error", "error", err)
		}
	}()

	snapshots, err := objectstore.New(ctx, cfg.Snapshot)
	if err != nil {
		logger.Error("failed to create snapshot store", "error", err)
		return 1
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			logger.Error("snapshot store close error", "error", err)
		}
	}()

	retry := fetch.Config{
		Attempts:  cfg.Retry.Attempts,
		BaseDelay: cfg.Retry.BaseDelay,
		MaxDelay:  cfg.Retry.MaxDelay,
	}
	client := nomads.NewClient(cfg.Source.RequestTimeout, cfg.Source.RateLimit, retry, logger)
	fields := nomads.NewFieldService(client, nomads.Region{
		North: cfg.Region.North,
		South: cfg.Region.South,
		East:  cfg.Region.East,
		West:  cfg.Region.West,
	}, cfg.Source.Hours)

	formulas := map[string]pipeline.Formula{
		pipeline.ParamUTCI: thermal.UTCI{},
		pipeline.ParamWBGT: thermal.WBGT{},
	}

	var notifier pipeline.RefreshNotifier
	if cfg.Kafka.Enabled {
		writer := kafkaadapter.NewWriter(cfg.Kafka, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		notifier = writer
	}

	p := pipeline.New(pipeline.Deps{
		Guard:          guard.New(store.Status(), logger),
		Locator:        nomads.NewDiscovery(client, cfg.Source.DirectoryURL),
		Calculator:     pipeline.NewCalculator(fields, formulas, logger, metrics),
		Publisher:      pipeline.NewPublisher(store.Forecasts(), cfg.Publish.ChunkSize, logger, metrics),
		Snapshots:      snapshots,
		Renderer:       chartsvc.NewClient(cfg.Renderer),
		Uploader:       mediastore.NewClient(cfg.Media),
		Alerter:        textalert.NewClient(cfg.Alert, logger),
		Notifier:       notifier,
		Mask:           mask,
		SourceOverride: cfg.Source.URL,
	}, logger, metrics)

	err = p.Run(ctx)
	switch {
	case err == nil,
		errors.Is(err, domain.ErrAlreadyRunning),
		errors.Is(err, domain.ErrSourceUnchanged):
		metrics.RunSuccess.Set(1)
		observability.Push(cfg.Metrics.PushgatewayURL, logger)
		return 0
	default:
		logger.Error("update failed", "error", err)
		metrics.RunSuccess.Set(0)
		observability.Push(cfg.Metrics.PushgatewayURL, logger)
		return 1
	}
}
