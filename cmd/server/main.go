package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"veritrail/internal/audit"
	"veritrail/internal/content"
	"veritrail/internal/ingest"
	"veritrail/internal/ledger"
	"veritrail/internal/ledger/authcache"
	"veritrail/internal/platform/config"
	"veritrail/internal/platform/httpserver"
	"veritrail/internal/platform/logger"
	"veritrail/internal/platform/metrics"
	"veritrail/internal/platform/postgres"
	"veritrail/internal/platform/redis"
	"veritrail/internal/principal"
	"veritrail/internal/reconcile"
	"veritrail/internal/record"
	"veritrail/internal/trail"
	httptransport "veritrail/internal/transport/http"
	txcontext "veritrail/pkg/platform/tx"
)

const auditInboxSize = 256

// main wires dependencies and owns the process lifecycle: the HTTP server,
// the audit worker, and the authorization task runner all stop together on
// SIGINT/SIGTERM, and in-flight ledger submissions get a drain window before
// exit. Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("migrate schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerClient := ledger.NewRPCClient(cfg.Ledger)
	contentClient := content.NewBreakerClient(
		content.NewHTTPClient(cfg.Content.APIURL, cfg.Content.RequestTimeout), log)

	recordStore := record.NewPostgresStore(db)
	principalStore := principal.NewPostgresStore(db)
	auditStore := audit.NewPostgresStore(db)

	var auditSink audit.Sink
	kafkaSink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Error("connect kafka", "error", err)
		os.Exit(1)
	}
	if kafkaSink != nil {
		defer kafkaSink.Close()
		auditSink = kafkaSink
	}

	inbox := make(chan audit.Event, auditInboxSize)
	auditor := audit.NewPublisher(auditStore, inbox, log)
	auditWorker := audit.NewWorker(auditStore, auditSink, inbox, log)

	var authStore authcache.Store
	if redisClient != nil {
		authStore = authcache.NewRedisStore(redisClient.Client)
	}
	authz := authcache.NewChecker(ledgerClient, authStore, cfg.Redis.AuthTTL)

	runner := &txcontext.DBRunner{DB: db}
	coordinator := reconcile.NewCoordinator(ledgerClient, recordStore, authz, auditor, runner, log,
		reconcile.WithMetrics(reconcile.NewMetrics()))
	tasks := reconcile.NewTaskRunner(ledgerClient, authz, auditor, log)

	principalService := principal.NewService(principalStore, tasks, auditor, runner, log)
	ingestService := ingest.NewService(recordStore, contentClient, coordinator, auditor, log)
	trailService := trail.NewService(recordStore, principalStore, ledgerClient, auditor, log)

	health := httptransport.NewHealthHandler(map[string]httptransport.HealthChecker{
		"postgres": httptransport.HealthCheckFunc(func(ctx context.Context) error {
			return postgres.Health(ctx, db)
		}),
		"redis":  redisChecker(redisClient),
		"ledger": httptransport.HealthCheckFunc(ledgerClient.Health),
	})

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:        log,
		Authenticator: principalService,
		Metrics:       metrics.NewHTTP(),
		Principals:    principal.NewHandler(principalService, log),
		Health:        health,
		Ingest:        ingest.NewHandler(ingestService, coordinator, log),
		Trail:         trail.NewHandler(trailService, log),
	})

	srv := httpserver.New(cfg.Addr, router)

	requeuePending(ctx, recordStore, principalStore, coordinator, log)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return auditWorker.Run(groupCtx)
	})
	group.Go(func() error {
		return tasks.Run(groupCtx)
	})
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := coordinator.Drain(shutdownCtx); err != nil {
			log.Warn("submissions still in flight at shutdown", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// requeuePending resumes ledger submissions interrupted by a restart. Records
// stuck in pending are re-submitted; failures stay failed until the owner
// resubmits explicitly.
func requeuePending(ctx context.Context, records record.Store, principals principal.Store, coordinator *reconcile.Coordinator, log *slog.Logger) {
	pending, err := records.ListPending(ctx, 100)
	if err != nil {
		log.Warn("list pending records", "error", err)
		return
	}
	for _, rec := range pending {
		owner, err := principals.GetByID(ctx, rec.PrincipalID)
		if err != nil {
			log.Warn("resolve pending record owner", "token_id", rec.TokenID, "error", err)
			continue
		}
		coordinator.Submit(rec, owner.LedgerAddress)
	}
	if len(pending) > 0 {
		log.Info("requeued pending submissions", "count", len(pending))
	}
}

func redisChecker(client *redis.Client) httptransport.HealthChecker {
	if client == nil {
		return nil
	}
	return httptransport.HealthCheckFunc(client.Health)
}
