package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/tablebus/internal/api"
	"github.com/shaharia-lab/tablebus/internal/build"
	"github.com/shaharia-lab/tablebus/internal/config"
	"github.com/shaharia-lab/tablebus/internal/eventbus"
	"github.com/shaharia-lab/tablebus/internal/events"
	"github.com/shaharia-lab/tablebus/internal/journal"
	"github.com/shaharia-lab/tablebus/internal/logger"
	"github.com/shaharia-lab/tablebus/internal/metrics"
	"github.com/shaharia-lab/tablebus/internal/scheduler"
	"github.com/shaharia-lab/tablebus/internal/server"
	"github.com/shaharia-lab/tablebus/internal/service"
	"github.com/shaharia-lab/tablebus/internal/telemetry"
)

// NewServeCmd returns the "serve" subcommand that starts the HTTP server.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var port int
	var noJournal bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the event bus HTTP server",
		Long: `Start the Tablebus HTTP server. It exposes the process-wide bus for
emitting events, inspecting history, streaming events over SSE and reading
the event journal.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if noJournal {
				cfg.JournalEnabled = false
			}

			logFile := filepath.Join(cfg.LogDir(), "system.log")
			fmt.Printf("Tablebus %s listening on http://localhost:%d\n", build.Version, cfg.Port)
			fmt.Printf("Logs: %s\n\n", logFile)

			if err := runServe(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "An error occurred. Please check the logs at: %s\n", logFile)
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Disable the SQLite event journal")

	return cmd
}

func runServe(cfg *config.AppConfig) (err error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sysLogger, logCloser, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(sysLogger)

	sysLogger.Info("tablebus starting",
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.Int("history_capacity", cfg.HistoryCapacity),
		slog.Bool("journal", cfg.JournalEnabled),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
		slog.String("build_date", build.BuildDate),
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, build.Version, sysLogger)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		if serr := shutdownTracing(context.Background()); serr != nil {
			sysLogger.Warn("tracing shutdown failed", "error", serr)
		}
	}()

	app, err := newServeApp(ctx, cfg, sysLogger, defaultBus)
	if err != nil {
		return err
	}
	defer app.Close()

	sysLogger.Info("server ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	return app.srv.Run(ctx)
}

// busFactory builds the bus the server exposes.
type busFactory func(opts ...eventbus.Option) *eventbus.Bus

// defaultBus installs opts on the process-wide bus.
func defaultBus(opts ...eventbus.Option) *eventbus.Bus {
	eventbus.InitDefault(opts...)
	return eventbus.Default()
}

// serveApp is the object graph behind "serve", minus process-level concerns
// (signals, log files, tracing).
type serveApp struct {
	bus     *eventbus.Bus
	srv     *server.Server
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *serveApp) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newServeApp(ctx context.Context, cfg *config.AppConfig, sysLogger *slog.Logger, newBus busFactory) (_ *serveApp, err error) {
	app := &serveApp{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	app.bus = newBus(
		eventbus.WithHistoryCapacity(cfg.HistoryCapacity),
		eventbus.WithLogger(sysLogger),
		eventbus.WithObserver(collector),
	)
	if err := collector.Track(app.bus); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	var store journal.Store
	if cfg.JournalEnabled {
		store, err = app.startJournal(ctx, cfg, sysLogger)
		if err != nil {
			return nil, err
		}
	}

	eventSvc := service.NewEventService(app.bus, store, sysLogger)
	app.srv = server.New(api.New(eventSvc, sysLogger), server.Config{
		Port:           cfg.Port,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Gatherer:       reg,
	}, sysLogger)
	return app, nil
}

// startJournal opens the SQLite journal, records the configured event types
// and schedules retention.
func (a *serveApp) startJournal(ctx context.Context, cfg *config.AppConfig, sysLogger *slog.Logger) (journal.Store, error) {
	db, err := journal.OpenSQLite(cfg.JournalPath(), sysLogger)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	store := journal.NewSQLiteStore(db)

	types := cfg.JournalTypes
	if len(types) == 0 {
		types = events.Types()
	}
	recorder := journal.NewRecorder(store, sysLogger, cfg.JournalBuffer)
	a.closers = append(a.closers, recorder.Close)
	if err := recorder.Attach(a.bus, types...); err != nil {
		return nil, fmt.Errorf("attaching journal: %w", err)
	}

	sched, err := scheduler.New(scheduler.Config{
		Pruner:    store,
		Retention: cfg.JournalRetention,
		Interval:  cfg.JournalPruneInterval,
		Logger:    sysLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing journal retention: %w", err)
	}
	if _, err := sched.PruneNow(ctx); err != nil {
		sysLogger.Warn("initial journal prune failed", "error", err)
	}
	sched.Start()
	a.closers = append(a.closers, func() {
		if serr := sched.Stop(); serr != nil {
			sysLogger.Warn("stopping scheduler", "error", serr)
		}
	})
	return store, nil
}
