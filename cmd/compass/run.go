package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/target-compass/internal/config"
	"github.com/signalsfoundry/target-compass/internal/console"
	"github.com/signalsfoundry/target-compass/internal/logging"
	"github.com/signalsfoundry/target-compass/internal/navigation"
	"github.com/signalsfoundry/target-compass/internal/observability"
	"github.com/signalsfoundry/target-compass/internal/runtime"
	"github.com/signalsfoundry/target-compass/timectrl"
)

type runOptions struct {
	duration    time.Duration
	tick        time.Duration
	accelerated bool
	target      string
	metricsAddr string
	renderEvery time.Duration
	quiet       bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track the device and report distance and bearing to the target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := applyRunFlags(cmd, &cfg, runOpts); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCompass(ctx, cmd, cfg, runOpts)
	},
}

func init() {
	f := runCmd.Flags()
	f.DurationVar(&runOpts.duration, "duration", 0, "loop time to run for (0 runs until interrupted)")
	f.DurationVar(&runOpts.tick, "tick", 0, "tick interval (overrides loop.tick)")
	f.BoolVar(&runOpts.accelerated, "accelerated", false, "tick as fast as possible instead of in real time")
	f.StringVar(&runOpts.target, "target", "", "target as lat,lon (overrides target.latitude/longitude)")
	f.StringVar(&runOpts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (overrides observability.metrics_addr)")
	f.DurationVar(&runOpts.renderEvery, "render-every", time.Second, "loop time between panel redraws")
	f.BoolVarP(&runOpts.quiet, "quiet", "q", false, "do not draw the navigation panel")
	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config, o runOptions) error {
	flags := cmd.Flags()
	if flags.Changed("tick") {
		cfg.Loop.Tick = o.tick
	}
	if flags.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = o.metricsAddr
	}
	if flags.Changed("target") {
		lat, lon, err := parseLatLon(o.target)
		if err != nil {
			return fmt.Errorf("--target: %w", err)
		}
		cfg.Target.Latitude, cfg.Target.Longitude = lat, lon
	}
	return cfg.Validate()
}

func parseLatLon(s string) (float64, float64, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	return lat, lon, nil
}

func runCompass(ctx context.Context, cmd *cobra.Command, cfg config.Config, o runOptions) error {
	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()
	log := logging.New(logCfg)

	tracingCfg := cfg.TracingConfig()
	tracingCfg.ServiceVersion = version
	tracingShutdown, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), tracingShutdown, log)

	navMetrics, err := observability.NewNavCollector(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	loopMetrics, err := observability.NewLoopCollector(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.Observability.MetricsAddr, navMetrics, log)

	mode := timectrl.RealTime
	if o.accelerated {
		mode = timectrl.Accelerated
	}

	sim := runtime.NewSimulation(cfg)
	rt, err := runtime.New(cfg, sim.Bridges(),
		runtime.WithLogger(log),
		runtime.WithCollector(navMetrics),
		runtime.WithLoopCollector(loopMetrics),
		runtime.WithMode(mode),
		runtime.WithStartTime(time.Now().UTC()),
		runtime.WithBeforeTick(sim.OnTick),
	)
	if err != nil {
		return err
	}

	pointer := navigation.NewPointer(navigation.Rotation{})
	detachPointer := rt.Engine.AttachIndicator(pointer)
	defer detachPointer()

	panel := console.New(cmd.OutOrStdout(), rt.Location, rt.Sensors, rt.Engine,
		console.WithIndicatorThresholds(cfg.Accuracy.Indicator),
		console.WithPanelThresholds(cfg.Accuracy.Panel),
	)
	panel.Attach(rt.Lifecycle)
	defer panel.Detach()

	if !o.quiet {
		every := renderFrames(o.renderEvery, cfg.Loop.Tick)
		rt.Clock.AddListener(func(t timectrl.Tick) {
			if t.Frame%every != 0 {
				return
			}
			if err := panel.Flush(); err != nil {
				log.Warn(rt.Context(), "panel write failed", logging.Err(err))
			}
		})
	}

	rt.Initialize()
	runErr := rt.Run(ctx, o.duration)

	rt.DebugStatus()
	rot := pointer.Rotation()
	log.Info(rt.Context(), "final pointer rotation", logging.Float64("yaw", rot.Yaw))
	rt.Shutdown(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func renderFrames(every, tick time.Duration) uint64 {
	if tick <= 0 || every <= tick {
		return 1
	}
	return uint64(every / tick)
}

func serveMetrics(addr string, collector *observability.NavCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
