package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-screendistance/internal/config"
	"github.com/teslashibe/go-screendistance/internal/log"
	"github.com/teslashibe/go-screendistance/pkg/capture"
	"github.com/teslashibe/go-screendistance/pkg/detection"
	"github.com/teslashibe/go-screendistance/pkg/metrics"
	"github.com/teslashibe/go-screendistance/pkg/monitor"
	"github.com/teslashibe/go-screendistance/pkg/proximity"
	"github.com/teslashibe/go-screendistance/pkg/warning"
	"github.com/teslashibe/go-screendistance/pkg/web"
)

var simulatePeriod time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runMonitor(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().DurationVar(&simulatePeriod, "simulate", 0,
		"with the mock sensor, alternate NEAR and FAR every period (e.g. 10s)")
}

// loadConfig reads the config file and applies the --log-level flag.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runMonitor(ctx context.Context, cfg config.Config) error {
	logger := log.Init(cfg.LogLevel)
	logger.Info("starting screendistance",
		"version", version,
		"sensor", cfg.Proximity.Backend,
		"camera", cfg.Camera.Backend,
		"detector", cfg.Detector.Backend,
		"warning_threshold_cm", cfg.WarningThresholdCm,
	)

	sensor, err := proximity.NewSensor(cfg.Proximity, log.Component("proximity"))
	if err != nil {
		return fmt.Errorf("create sensor: %w", err)
	}
	source, err := capture.NewSource(cfg.Camera, log.Component("capture"))
	if err != nil {
		return fmt.Errorf("create camera: %w", err)
	}
	detector, err := detection.New(cfg.Detector, log.Component("detection"))
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}
	defer detector.Close()

	m := metrics.New()
	surfaces := warning.Multi{warning.NewLogSurface(log.Component("warning"))}
	var overlay *web.OverlaySurface
	if cfg.Web.Enabled {
		overlay = web.NewOverlaySurface(log.Component("overlay"))
		surfaces = append(surfaces, overlay)
	}

	svc := monitor.New(cfg.Monitor(), monitor.Components{
		Sensor:   sensor,
		Source:   source,
		Detector: detector,
		Surface:  surfaces,
	}, monitor.Options{
		Logger:  logger,
		Metrics: m,
	})
	defer func() {
		if err := svc.Shutdown(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
		logger.Info("screendistance stopped")
	}()

	if err := svc.Create(); err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Web.Enabled {
		srv := web.NewServer(cfg.Web.Addr(), svc, overlay, m, logger)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if cfgFile != "" {
		g.Go(func() error {
			return config.Watch(gctx, cfgFile, logger, func(next config.Config) {
				// Only the warning distance is live; other sections need a restart.
				if err := svc.SetWarningThreshold(next.WarningThresholdCm); err != nil {
					logger.Warn("apply config", "error", err)
				}
			})
		})
	}
	if mock, ok := sensor.(*proximity.MockSensor); ok && simulatePeriod > 0 {
		g.Go(func() error { return simulate(gctx, mock, simulatePeriod, logger) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// simulate alternates NEAR and FAR readings on the mock sensor.
func simulate(ctx context.Context, sensor *proximity.MockSensor, period time.Duration, logger *slog.Logger) error {
	const maxRange = 5.0
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	near := true
	for {
		if near {
			sensor.Emit(0, maxRange)
		} else {
			sensor.Emit(maxRange, maxRange)
		}
		logger.Debug("simulated proximity", "near", near)
		near = !near

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
