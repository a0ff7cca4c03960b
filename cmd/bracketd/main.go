package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/arenaforge/bracketd/internal/clock"
	"github.com/arenaforge/bracketd/internal/config"
	"github.com/arenaforge/bracketd/internal/health"
	"github.com/arenaforge/bracketd/internal/leader"
	"github.com/arenaforge/bracketd/internal/passport"
	"github.com/arenaforge/bracketd/internal/reward"
	"github.com/arenaforge/bracketd/internal/store"
	"github.com/arenaforge/bracketd/internal/telemetry"
	"github.com/arenaforge/bracketd/internal/tournament"

	// Register store drivers so they are available via store.Open.
	_ "github.com/arenaforge/bracketd/internal/store/entstore"
	_ "github.com/arenaforge/bracketd/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open store using the configured driver (sqlx or ent).
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Database.Driver))

	// Wire the settlement components: the registry settles into the passport,
	// the passport mints through the reward engine.
	engine := reward.NewEngine(repos.Tokens, repos.Milestones, repos.Events,
		logger, tp.TracerProvider, cfg.Protocol.Admin, passport.Identity)
	ledger := passport.NewManager(repos.Profiles, repos.Results, repos.Achievements,
		engine, repos.Events, logger, tp.TracerProvider, cfg.Protocol.Admin,
		append([]string{tournament.Identity}, cfg.Protocol.Authorities...)...)
	registry := tournament.NewRegistry(repos.Events, ledger, logger, tp.TracerProvider, clk, cfg.Protocol)

	// Setup health checks. Readiness covers the store connection and, once
	// leading, the confirm sweeper's liveness.
	var lastSweep atomic.Int64
	healthHandler := health.NewHandler(clk,
		health.Database(repos.Ping),
		health.Sweeper(clk, cfg.Protocol.SweepInterval, func() time.Time {
			if n := lastSweep.Load(); n != 0 {
				return time.Unix(0, n)
			}
			return time.Time{}
		}),
	)

	// Start HTTP server for health checks (runs on all replicas).
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler())
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting health server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "health server error", slog.Any("error", listenErr))
		}
	}()

	// startCore is the work that only the leader should run: replaying the
	// event history and sweeping confirmable matches.
	startCore := func(ctx context.Context) {
		if n, recoverErr := registry.RecoverTournaments(ctx); recoverErr != nil {
			logger.ErrorContext(ctx, "tournament recovery failed", slog.Any("error", recoverErr))
			return
		} else if n > 0 {
			logger.InfoContext(ctx, "recovered tournaments", slog.Int("count", n))
		}

		sweeper, schedErr := startSweeper(ctx, registry, cfg.Protocol.SweepInterval, logger, func() {
			lastSweep.Store(clk.Now().UnixNano())
		})
		if schedErr != nil {
			logger.ErrorContext(ctx, "starting confirm sweeper failed", slog.Any("error", schedErr))
			return
		}

		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "bracketd is running (leader)", slog.String("version", version))

		// Block until leadership is lost or process is shutting down.
		<-ctx.Done()

		healthHandler.SetReady(false)
		if stopErr := sweeper.Shutdown(); stopErr != nil {
			logger.Error("sweeper shutdown error", slog.Any("error", stopErr))
		}
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, startCore, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		startCore(ctx)
		logger.Info("shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// startSweeper schedules the periodic job that confirms reported matches
// whose dispute window has elapsed. swept is called after each completed
// sweep for health reporting.
func startSweeper(ctx context.Context, registry *tournament.Registry, interval time.Duration, logger *slog.Logger, swept func()) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, sweepErr := registry.SweepConfirmable(ctx)
			if sweepErr != nil {
				logger.ErrorContext(ctx, "confirm sweep failed", slog.Any("error", sweepErr))
				return
			}
			swept()
			if n > 0 {
				logger.InfoContext(ctx, "confirmed elapsed match reports", slog.Int("count", n))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling sweep job: %w", err)
	}

	sched.Start()
	return sched, nil
}
