package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/satnav/core"
	"github.com/signalsfoundry/satnav/internal/config"
	"github.com/signalsfoundry/satnav/internal/logging"
	"github.com/signalsfoundry/satnav/internal/observability"
	"github.com/signalsfoundry/satnav/internal/statusapi"
	"github.com/signalsfoundry/satnav/model"
	"github.com/signalsfoundry/satnav/telemetry"
	"github.com/signalsfoundry/satnav/timectrl"
)

// replayOptions controls one replay of a recorded drive.
type replayOptions struct {
	Destination int
	Tick        time.Duration
	RealTime    bool
}

// replaySummary reports what a replay produced.
type replaySummary struct {
	Ticks    int
	Events   []model.ManeuverEvent
	Statuses map[model.Status]int
	Final    core.ServiceSnapshot
}

func main() {
	networkPath := flag.String("network", "", "road network file (.json, .msgpack, optionally .zst, or .db); overrides NAV_NETWORK_PATH")
	tracePath := flag.String("trace", "", "JSON array of recorded poses to replay")
	destination := flag.Int("destination", -1, "destination junction index")
	tick := flag.Duration("tick", 100*time.Millisecond, "tick interval")
	realTime := flag.Bool("realtime", false, "wait one tick interval between poses")
	httpAddr := flag.String("http-addr", "", "serve /status, /destination and /metrics on this address and keep running after the replay")
	exportPath := flag.String("export", "", "write the loaded network to this path (format from extension) and exit")
	envFile := flag.String("env-file", ".env", "optional .env file")
	flag.Parse()

	cfg, cfgErr := config.Load(*envFile)
	log := logging.New(cfg.Logging)
	ctx := context.Background()
	if cfgErr != nil {
		log.Warn(ctx, "ignoring invalid configuration values", logging.Error(cfgErr))
	}
	if *networkPath != "" {
		cfg.NetworkPath = *networkPath
	}
	if cfg.NetworkPath == "" {
		log.Error(ctx, "no network given; use -network or NAV_NETWORK_PATH")
		os.Exit(2)
	}
	src := core.SourceForPath(cfg.NetworkPath)

	if *exportPath != "" {
		if err := exportNetwork(ctx, src, *exportPath); err != nil {
			log.Error(ctx, "export failed", logging.Error(err))
			os.Exit(1)
		}
		log.Info(ctx, "network exported", logging.String("path", *exportPath))
		return
	}

	tracingCfg := cfg.Tracing.WithNetwork(cfg.NetworkPath, networkFormat(cfg.NetworkPath))
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Error(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewNavigationCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Error(err))
		os.Exit(1)
	}

	svc := core.NewNavigationService(src, cfg.Navigation,
		core.WithLogger(log),
		core.WithMetricsRecorder(collector),
	)

	var apiSrv *http.Server
	if *httpAddr != "" {
		apiSrv = serveAPI(*httpAddr, statusapi.NewRouter(svc, statusapi.Options{
			Metrics: collector.Handler(),
			Logger:  log,
		}), log)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if *tracePath != "" {
		poses, err := telemetry.LoadTraceFile(*tracePath)
		if err != nil {
			log.Error(ctx, "failed to load pose trace", logging.Error(err))
			os.Exit(1)
		}
		summary, err := replay(stopCtx, svc, poses, replayOptions{
			Destination: *destination,
			Tick:        *tick,
			RealTime:    *realTime,
		}, log)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "replay failed", logging.Error(err))
			os.Exit(1)
		}
		printSummary(summary)
	} else if *destination >= 0 {
		if err := svc.SetDestination(ctx, *destination); err != nil {
			log.Error(ctx, "failed to set destination", logging.Error(err))
		}
	}

	if apiSrv != nil {
		<-stopCtx.Done()
		log.Info(ctx, "shutting down status API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(shutdownCtx)
	}
}

// replay feeds poses through a PoseStore, one per tick, and ticks svc with
// the latest stored pose.
func replay(ctx context.Context, svc *core.NavigationService, poses []model.Pose, opts replayOptions, log logging.Logger) (replaySummary, error) {
	summary := replaySummary{Statuses: make(map[model.Status]int)}
	if log == nil {
		log = logging.Noop()
	}
	if len(poses) == 0 {
		summary.Final = svc.Snapshot()
		return summary, nil
	}

	if opts.Destination >= 0 {
		if err := svc.SetDestination(ctx, opts.Destination); err != nil {
			return summary, fmt.Errorf("set destination: %w", err)
		}
	}

	unsubscribe := svc.Subscribe(func(ev model.ManeuverEvent) {
		summary.Events = append(summary.Events, ev)
	})
	defer unsubscribe()

	poseStore := telemetry.NewPoseStore()
	mode := timectrl.Accelerated
	if opts.RealTime {
		mode = timectrl.RealTime
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	start := poses[0].Time
	if start.IsZero() {
		start = time.Now().UTC()
	}
	tc := timectrl.NewTimeController(start, tick, mode)

	tc.AddListener(func(i int, now time.Time) {
		p := poses[i]
		if p.Time.IsZero() {
			p.Time = now
		}
		if err := poseStore.Update(p); err != nil {
			log.Warn(ctx, "skipping invalid pose", logging.Int("index", i), logging.Error(err))
		}
		latest, ok := poseStore.Latest()
		if !ok {
			return
		}
		res := svc.Tick(ctx, latest)
		summary.Ticks++
		summary.Statuses[res.Status]++
	})

	err := tc.Run(ctx, len(poses))
	summary.Final = svc.Snapshot()
	return summary, err
}

func exportNetwork(ctx context.Context, src core.NetworkSource, path string) error {
	desc, err := src.Load(ctx)
	if err != nil {
		return err
	}
	if _, err := core.NewNetworkStore(desc); err != nil {
		return err
	}
	return core.SaveNetwork(ctx, desc, path)
}

// networkFormat names the encoding of a network file for trace resources.
func networkFormat(path string) string {
	if core.IsSQLitePath(path) {
		return "sqlite"
	}
	format, compressed, err := core.FormatFromPath(path)
	if err != nil {
		return ""
	}
	if compressed {
		return string(format) + "+zstd"
	}
	return string(format)
}

func printSummary(s replaySummary) {
	fmt.Printf("Replayed %d ticks; final status %s\n", s.Ticks, s.Final.Status)
	for _, ev := range s.Events {
		fmt.Printf("  [%s] %-8s %s (junction %d)\n", ev.Time.Format(time.RFC3339), ev.Kind, ev.Instruction, ev.Junction)
	}
}

func serveAPI(addr string, handler http.Handler, log logging.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "status API exited", logging.Error(err))
		}
	}()

	log.Info(context.Background(), "serving status API", logging.String("addr", addr))
	return srv
}
