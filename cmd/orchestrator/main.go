package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/paas/internal/activity"
	"github.com/edvin/paas/internal/api"
	"github.com/edvin/paas/internal/backup"
	"github.com/edvin/paas/internal/config"
	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/db"
	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/logging"
	"github.com/edvin/paas/internal/mcpserver"
	"github.com/edvin/paas/internal/metrics"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/orchestrator"
	"github.com/edvin/paas/internal/plugin"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/remote"
	"github.com/edvin/paas/internal/sshca"
	"github.com/edvin/paas/internal/store"
	"github.com/edvin/paas/internal/template"
	"github.com/edvin/paas/internal/workflow"
)

// queueBackend is what both queue implementations offer the process.
type queueBackend interface {
	queue.Dispatcher
	queue.Inspector
	Close()
}

func main() {
	migrateFlag := flag.Bool("migrate", true, "Apply database migrations before starting (ignored without CORE_DATABASE_URL)")
	mcpConfigFlag := flag.String("mcp-config", "", "MCP tool configuration file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("orchestrator"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]api.Check{}

	// Records
	var st store.Store
	if cfg.CoreDatabaseURL != "" {
		if *migrateFlag {
			version, err := db.RunMigrations(ctx, cfg.CoreDatabaseURL, cfg.MigrationsDir)
			if err != nil {
				logger.Fatal().Err(err).Str("dir", cfg.MigrationsDir).Msg("migration failed")
			}
			logger.Info().Int64("version", version).Msg("database migrated")
		}
		pool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, db.PoolOptions{})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to core database")
		}
		defer pool.Close()
		metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool)
		checks["core_db"] = func(ctx context.Context) error { return pool.Ping(ctx) }
		st = store.NewPostgres(pool)
	} else {
		logger.Warn().Msg("CORE_DATABASE_URL not set, records are kept in memory")
		st = store.NewMemory()
	}

	// Remote execution
	executor, err := newExecutor(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure ssh")
	}

	catalog, err := template.LoadCatalog(cfg.TemplatesDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.TemplatesDir).Msg("failed to load templates")
	}
	logger.Info().Int("templates", len(catalog.List())).Msg("template catalog loaded")

	hub := events.NewHub(logger, events.HubOptions{})

	// Queue
	var (
		backend queueBackend
		start   func(h queue.Handler) error
	)
	switch cfg.QueueBackend {
	case config.QueueBackendTemporal:
		tc, err := dialTemporal(cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to temporal")
		}
		defer tc.Close()
		checks["temporal"] = func(ctx context.Context) error {
			_, err := tc.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
			return err
		}
		b := workflow.NewBackend(tc, logger)
		backend = b
		start = func(h queue.Handler) error {
			queues, err := knownQueues(ctx, st)
			if err != nil {
				return err
			}
			return b.Start(ctx, h, queues...)
		}
	default:
		m := queue.NewManager(logger, queue.ManagerOptions{
			Retention:       cfg.JobRetention,
			FailedRetention: cfg.FailedJobRetention,
		})
		prometheus.MustRegister(metrics.NewQueueCollector(m))
		backend = m
		start = func(h queue.Handler) error { return m.Start(ctx, h) }
	}
	defer backend.Close()

	orch := orchestrator.New(st, backend, hub, orchestrator.Options{AwaitTimeout: cfg.JobAwaitTimeout}, logger)

	deps := activity.Deps{
		Store:     st,
		Executor:  executor,
		Plugins:   plugin.NewManager(plugin.DefaultRegistry(), st, logger),
		Events:    hub,
		Templates: orch,
	}
	if cfg.S3Configured() {
		deps.Uploader = backup.NewS3Uploader(backup.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, logger)
	} else {
		logger.Warn().Msg("S3 not configured, database backups are disabled")
	}
	if err := start(activity.NewRunner(deps, logger)); err != nil {
		logger.Fatal().Err(err).Msg("failed to start queue workers")
	}

	services := core.NewServices(core.Deps{
		Store:     st,
		Queue:     backend,
		Inspector: backend,
		Events:    hub,
		Catalog:   catalog,
		Backups:   deps.Uploader != nil,
		Logger:    logger,
	})

	mcpCfg, err := mcpserver.LoadConfig(*mcpConfigFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load mcp config")
	}

	srv := api.NewServer(logger, api.Deps{
		Services: services,
		Hub:      hub,
		Checks:   checks,
		MCP:      mcpserver.New(mcpCfg, services, logger),
	})

	// No WriteTimeout: event streams stay open.
	httpServer := &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	servers := []*http.Server{httpServer}
	if cfg.MetricsAddr != "" {
		servers = append(servers, metrics.NewServer(cfg.MetricsAddr))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			logger.Info().Str("addr", s.Addr).Msg("listening")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", s.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			s.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func newExecutor(cfg *config.Config, logger zerolog.Logger) (*remote.SSHExecutor, error) {
	key, err := remote.LoadKeyFile(cfg.SSHKeyPath)
	if err != nil {
		return nil, err
	}
	ca, err := sshca.LoadFile(cfg.SSHCAKeyPath)
	if err != nil {
		return nil, err
	}
	if cfg.SSHKnownHosts == "" {
		logger.Warn().Msg("SSH_KNOWN_HOSTS not set, host keys are not verified")
	}
	return remote.NewSSHExecutor(remote.SSHConfig{
		ConnectTimeout: cfg.SSHConnectTimeout,
		KnownHostsPath: cfg.SSHKnownHosts,
		FallbackKey:    key,
		CA:             ca,
	}, logger)
}

func dialTemporal(cfg *config.Config, logger zerolog.Logger) (temporalclient.Client, error) {
	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		return nil, err
	}
	dialOpts := temporalclient.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	return temporalclient.Dial(dialOpts)
}

// knownQueues names every queue of every registered server, so jobs started
// before a restart find a worker.
func knownQueues(ctx context.Context, st store.Store) ([]string, error) {
	servers, err := st.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	var names []string
	for _, srv := range servers {
		for _, kind := range model.JobKinds {
			names = append(names, model.QueueName(srv.ID, kind))
		}
	}
	return names, nil
}

