/**
 * @description
 * This is the main entry point for the ATS transfer service. It loads
 * configuration, connects PostgreSQL, Redis and RabbitMQ, wires the forwarder,
 * ledger, webhook receiver and reassignment into the core service, starts the
 * maintenance scheduler and serves HTTP until SIGINT or SIGTERM.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: shared webhook de-duplication.
 * - github.com/joho/godotenv: .env loading during local development.
 * - internal/api, internal/app, internal/config, internal/dedup, internal/store.
 * - pkg/carrierclient, pkg/reassignclient, pkg/rabbitmq.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ats/transfer-service/internal/api"
	"github.com/ats/transfer-service/internal/app"
	"github.com/ats/transfer-service/internal/config"
	"github.com/ats/transfer-service/internal/dedup"
	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/internal/store"
	"github.com/ats/transfer-service/pkg/carrierclient"
	"github.com/ats/transfer-service/pkg/rabbitmq"
	"github.com/ats/transfer-service/pkg/reassignclient"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// pendingReservationTTL bounds how long an in-flight webhook blocks its retries.
const pendingReservationTTL = 2 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	log.Printf("level=info component=bootstrap msg=\"starting ats transfer service\" port=%s carriers=%d", cfg.ServerPort, len(cfg.Carriers))
	if len(cfg.Carriers) == 0 {
		log.Println("level=warn component=bootstrap msg=\"no carrier endpoints configured; submissions will fail\" env=FORWARD_API_URL_ALLIANZ,FORWARD_API_URL_AE,CARRIERS_FILE")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	if cfg.DBAutoMigrate {
		migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
		err := store.EnsureSchema(migrateCtx, dbpool)
		cancelMigrate()
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"schema migration failed\" err=%v", err)
		}
		log.Println("level=info component=bootstrap msg=\"schema ensured\"")
	}

	var producer rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; events are logged only\" env=RABBITMQ_URL")
	} else if rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	defer producer.Close()

	seen, purger, closeDedup := newDedupStore(cfg)
	defer closeDedup()

	repository := store.NewPostgresRepository(dbpool)
	policy := app.SideEffectPolicyByName(cfg.SideEffectPolicy, repository)
	log.Printf("level=info component=bootstrap msg=\"side effect policy\" policy=%s", policy.Name())

	// A nil interface, not a typed nil, disables the reassignment trigger.
	var reassigner app.Reassigner
	if reassignClient := reassignclient.NewClient(cfg.ReassignContractsURL, cfg.InternalAPIKey); reassignClient.Configured() {
		reassigner = reassignClient
	} else {
		log.Println("level=warn component=bootstrap msg=\"reassignment url missing; COMPLETED statuses will not move contracts\" env=REASSIGN_CONTRACTS_URL")
	}

	sideEffects := app.NewSideEffects(repository, reassigner, policy)
	forwarder := app.NewForwarder(cfg.Carriers, carrierclient.NewClient(cfg.CarrierTimeout), cfg.CarrierConcurrency)
	service := app.NewService(repository, forwarder, sideEffects, producer)

	var transfers store.TransferRepository
	if cfg.WebhookApplyEnabled {
		transfers = repository
	} else {
		log.Println("level=warn component=bootstrap msg=\"webhook apply disabled; events are acknowledged only\" env=WEBHOOK_APPLY_ENABLED")
	}
	processor := app.NewWebhookProcessor(seen, transfers, domain.TransitionPolicyByName(cfg.TransferTransitionPolicy), producer)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	var dispatcher *app.OutboxDispatcher
	if policy.Name() == app.SideEffectPolicyOutbox {
		dispatcher = app.NewOutboxDispatcher(repository, sideEffects)
	}
	scheduler := app.NewScheduler(dispatcher, purger, logger, app.ScheduleConfig{
		OutboxFlush: cfg.OutboxFlushSchedule,
		DedupPurge:  cfg.DedupPurgeSchedule,
	})
	scheduler.Start()

	router := api.NewRouter(
		api.NewHandlers(service),
		api.NewWebhookHandler(processor, cfg.WebhookSecret),
		cfg.InternalAPIKey,
	)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}
	<-scheduler.Stop().Done()
	service.Wait()

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

// newDedupStore returns the shared Redis store when REDIS_URL is reachable and
// the per-process memory store otherwise. The purger is nil for Redis, which
// expires keys itself.
func newDedupStore(cfg config.Config) (dedup.Store, dedup.Purger, func()) {
	memory := func() (dedup.Store, dedup.Purger, func()) {
		memStore := dedup.NewMemoryStore(cfg.DedupTTL, pendingReservationTTL)
		return memStore, memStore, func() {}
	}

	if cfg.RedisURL == "" {
		log.Println("level=info component=bootstrap msg=\"redis url missing; webhook dedup is per instance\" env=REDIS_URL")
		return memory()
	}

	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; webhook dedup is per instance\" err=%v", err)
		return memory()
	}
	client := redis.NewClient(options)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; webhook dedup is per instance\" err=%v", err)
		client.Close()
		return memory()
	}

	log.Println("level=info component=bootstrap msg=\"redis connected; webhook dedup is shared\"")
	return dedup.NewRedisStore(client, cfg.RedisDedupPrefix, cfg.DedupTTL, pendingReservationTTL), nil, func() { client.Close() }
}
