package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stagecall/api/controllers"
	"github.com/angelmondragon/stagecall/api/routes"
	"github.com/angelmondragon/stagecall/internal/cron"
	"github.com/angelmondragon/stagecall/internal/devices"
	"github.com/angelmondragon/stagecall/internal/email"
	"github.com/angelmondragon/stagecall/internal/history"
	"github.com/angelmondragon/stagecall/internal/memberships"
	"github.com/angelmondragon/stagecall/internal/notifications"
	"github.com/angelmondragon/stagecall/internal/preferences"
	"github.com/angelmondragon/stagecall/internal/queue"
	"github.com/angelmondragon/stagecall/internal/reminders"
	"github.com/angelmondragon/stagecall/internal/topics"
	"github.com/angelmondragon/stagecall/pkg/bigquery"
	"github.com/angelmondragon/stagecall/pkg/config"
	"github.com/angelmondragon/stagecall/pkg/db"
	"github.com/angelmondragon/stagecall/pkg/firebase"
	"github.com/angelmondragon/stagecall/pkg/idempotency"
	"github.com/angelmondragon/stagecall/pkg/instance"
	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/metrics"
	"github.com/angelmondragon/stagecall/pkg/migrate"
	"github.com/angelmondragon/stagecall/pkg/pubsub"
	"github.com/angelmondragon/stagecall/pkg/push"
	"github.com/angelmondragon/stagecall/pkg/redis"
)

const (
	serviceName        = "notification-worker"
	historySweepPeriod = 24 * time.Hour
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	firebaseClient, err := firebase.NewClient(ctx, cfg.Firebase, cfg.GCP, logg)
	requireResource(ctx, logg, "firebase", err)
	provider := push.NewRateLimited(firebaseClient, cfg.Firebase.RatePerSecond, cfg.Firebase.Burst)

	deps := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
		"pubsub":   pubsubClient,
		"bigquery": nil,
	}
	gormDB := dbClient.DB()

	var recorder *history.Recorder
	if cfg.BigQuery.Enabled {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		requireResource(ctx, logg, "bigquery", err)
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		deps["bigquery"] = bqClient
		schema, err := history.DeliverySchema()
		requireResource(ctx, logg, "bigquery deliveries schema", err)
		err = bqClient.EnsureTable(ctx, bqClient.DeliveriesTable(), schema)
		requireResource(ctx, logg, "bigquery deliveries table", err)
		mirror, err := history.NewBigQueryMirror(bqClient, bqClient.DeliveriesTable(), history.RetryPolicy{})
		requireResource(ctx, logg, "delivery mirror", err)
		recorder, err = history.NewRecorder(gormDB, mirror, logg)
		requireResource(ctx, logg, "history recorder", err)
	} else {
		recorder, err = history.NewRecorder(gormDB, nil, logg)
		requireResource(ctx, logg, "history recorder", err)
	}

	registerer := prometheus.DefaultRegisterer
	deliveryMetrics := metrics.NewDeliveryMetrics(registerer)
	reminderMetrics := metrics.NewReminderMetrics(registerer)
	cronMetrics := metrics.NewCronJobMetrics(registerer)

	prefsRepo, err := preferences.NewRepository(gormDB)
	requireResource(ctx, logg, "preferences repository", err)
	devicesRepo, err := devices.NewRepository(gormDB)
	requireResource(ctx, logg, "devices repository", err)
	membersRepo, err := memberships.NewRepository(gormDB)
	requireResource(ctx, logg, "memberships repository", err)

	jobGuard, err := idempotency.NewManager(redisClient, cfg.Eventing.JobIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	jobs, err := queue.NewPublisher(pubsub.NewMessagePublisher(pubsubClient.NotificationPublisher()), pubsub.DefaultPublishTimeout)
	requireResource(ctx, logg, "job publisher", err)
	enqueuer, err := notifications.NewEnqueuer(jobs, logg)
	requireResource(ctx, logg, "enqueuer", err)

	resolver, err := notifications.NewGormResolver(gormDB, membersRepo)
	requireResource(ctx, logg, "entity resolver", err)
	engine, err := notifications.NewEngine(notifications.EngineParams{
		Preferences: prefsRepo,
		Users:       membersRepo,
		Devices:     devicesRepo,
		History:     recorder,
		Resolver:    resolver,
		Provider:    provider,
		Metrics:     deliveryMetrics,
		Logger:      logg,
		Concurrency: cfg.Worker.UserFanOut,
		SendTimeout: cfg.Firebase.SendTimeout,
	})
	requireResource(ctx, logg, "delivery engine", err)

	topicManager, err := topics.NewManager(topics.ManagerParams{
		Memberships: membersRepo,
		Devices:     devicesRepo,
		Provider:    provider,
		Namer:       topics.NewNamer(cfg.Topics.Namespace, cfg.App.TopicEnv()),
		Queue:       jobs,
		Metrics:     deliveryMetrics,
		Logger:      logg,
	})
	requireResource(ctx, logg, "topic manager", err)

	mailer, err := email.NewPublisher(pubsub.NewMessagePublisher(pubsubClient.EmailPublisher()), cfg.Email.UnsubscribeBaseURL, logg)
	requireResource(ctx, logg, "email publisher", err)

	scheduler, err := reminders.NewScheduler(reminders.SchedulerParams{
		Speakers:      membersRepo,
		Queue:         enqueuer,
		Mailer:        mailer,
		Claims:        jobGuard,
		MaxDelay:      cfg.Reminders.MaxTimerDelay,
		DisableTimers: cfg.Reminders.DisableTimers,
		Metrics:       reminderMetrics,
		Logger:        logg,
	})
	requireResource(ctx, logg, "reminder scheduler", err)

	subscription := pubsubClient.NotificationSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "notification subscription", errors.New("subscription not configured"))
	}
	subscription.ReceiveSettings.MaxOutstandingMessages = cfg.Worker.Concurrency
	consumer, err := queue.NewConsumer(queue.ConsumerParams{
		Subscription: subscription,
		Idempotency:  jobGuard,
		Deliveries:   engine,
		Topics:       topicManager,
		Reminders:    scheduler,
		Logger:       logg,
	})
	requireResource(ctx, logg, "queue consumer", err)

	cronService, err := newCronService(cfg, logg, redisClient, cronMetrics, recorder, scheduler)
	requireResource(ctx, logg, "cron service", err)

	service, err := NewService(ServiceParams{
		Config:       cfg,
		Logger:       logg,
		Dependencies: deps,
		Consumer:     consumer,
		Cron:         cronService,
		Reminders:    scheduler,
		OpsHandler:   routes.NewRouter(cfg, logg, deps, prometheus.DefaultGatherer),
	})
	requireResource(ctx, logg, "worker service", err)

	logg.Info(ctx, "starting notification worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "notification worker shutting down gracefully")
}

func newCronService(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	cronMetrics *metrics.CronJobMetrics,
	recorder *history.Recorder,
	scheduler *reminders.Scheduler,
) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewHistoryRetentionJob(cron.HistoryRetentionJobParams{
		Logger:    logg,
		History:   recorder,
		Retention: cfg.History.Retention(),
	})
	if err != nil {
		return nil, err
	}
	rearm, err := cron.NewReminderRearmJob(logg, scheduler)
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	registry.Register(retention, historySweepPeriod)
	// timers are process-local, so every replica re-arms its own
	registry.RegisterLocal(rearm, cfg.Reminders.RearmCron)

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
	})
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("failed to bootstrap %s", name), err)
	os.Exit(1)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return redis.Key("lock", "cron", env)
}
