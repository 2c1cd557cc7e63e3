package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"sickleave_notifier/internal/app"
	domainMetrics "sickleave_notifier/internal/domain/metrics"
	domainRegistry "sickleave_notifier/internal/domain/registry"
	domainTelegram "sickleave_notifier/internal/domain/telegram"
	"sickleave_notifier/internal/infra/clock"
	"sickleave_notifier/internal/infra/config"
	"sickleave_notifier/internal/infra/consumer"
	idb "sickleave_notifier/internal/infra/database"
	"sickleave_notifier/internal/infra/health"
	"sickleave_notifier/internal/infra/kafka"
	"sickleave_notifier/internal/infra/logger"
	"sickleave_notifier/internal/infra/metrics"
	"sickleave_notifier/internal/infra/mq"
	"sickleave_notifier/internal/infra/queue"
	"sickleave_notifier/internal/infra/registry"
	"sickleave_notifier/internal/infra/scheduler"
	"sickleave_notifier/internal/infra/telegram"
)

const (
	amqpDialAttempts = 10
	shutdownTimeout  = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Component("main")
	log.Infof("Configuration loaded. Environment: %s", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Could not apply schema: %v", err)
	}
	notificationRepo := idb.NewPostgresNotificationRepository(db)
	transactor := idb.NewPostgresTransactor(db)
	log.Info("Database connection established, schema applied.")

	// AWS: activation triggers and metrics
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Activation.AWSRegion))
	if err != nil {
		log.Fatalf("Could not load AWS configuration: %v", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	var recorder domainMetrics.Recorder = metrics.LogRecorder{}
	if cfg.Metrics.Namespace != "" {
		recorder = metrics.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg), cfg.Metrics.Namespace)
		log.WithField("namespace", cfg.Metrics.Namespace).Info("CloudWatch metrics enabled.")
	}

	// Legacy queue pair
	amqpConn, err := mq.DialWithRetry(ctx, cfg.Legacy.URL, amqpDialAttempts, time.Second)
	if err != nil {
		log.Fatalf("Could not connect to legacy queue manager: %v", err)
	}
	defer amqpConn.Close()
	receiptChannel, err := amqpConn.Channel()
	if err != nil {
		log.Fatalf("Could not open receipt channel: %v", err)
	}
	if err := mq.DeclareQueues(receiptChannel, cfg.Legacy.InboundQueue, cfg.Legacy.ReceiptQueue, cfg.Legacy.BackoutQueue); err != nil {
		log.Fatalf("Could not declare queues: %v", err)
	}
	legacySender, err := mq.OpenSender(amqpConn, cfg.Legacy.InboundQueue, cfg.Legacy.ReceiptQueue, cfg.Legacy.PublishTimeout)
	if err != nil {
		log.Fatalf("Could not open legacy sender: %v", err)
	}
	receiptSource := mq.NewReceiptSource(receiptChannel, cfg.Legacy.ReceiptQueue, cfg.Legacy.BackoutQueue)

	// Registries
	base := registry.NewBaseClient(&http.Client{Timeout: cfg.Registry.Timeout}, "registry", registry.DefaultRetryPolicy())
	eligibilityClient := registry.NewEligibilityClient(base, cfg.Registry.EligibilityURL, cfg.Registry.PersonURL)
	episodesClient := registry.NewEpisodesClient(base, cfg.Registry.EpisodesURL)
	var (
		eligibility domainRegistry.Eligibility = eligibilityClient
		episodes    domainRegistry.Episodes    = episodesClient
	)
	if !cfg.IsProduction() {
		permissive := registry.NewPermissive(eligibilityClient, episodesClient)
		eligibility, episodes = permissive, permissive
		log.Warn("Permissive registry fallback enabled outside production.")
	}

	// Operator alerts
	var alertClient domainTelegram.Client
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram.Token)
		if err != nil {
			log.Fatalf("Could not create Telegram bot: %v", err)
		}
		alertClient = telegram.NewTelebotAdapter(bot)
	}
	alerter := telegram.NewOperatorAlerter(alertClient, cfg.Telegram.ChatID)

	// Services
	rules := app.Rules{
		StopGraceDays:            cfg.Rules.StopGraceDays,
		LongHorizonThresholdDays: cfg.Rules.LongHorizonThresholdDays,
	}
	systemClock := clock.System{}
	notificationSender := app.NewNotificationSender(legacySender, recorder)
	schedulingService := app.NewSchedulingService(transactor, rules, systemClock, recorder)
	reconciliationService := app.NewReconciliationService(transactor, episodes, notificationSender, rules, systemClock, cfg.Rules.ReconciliationDelay, recorder)
	deathService := app.NewDeathService(transactor, recorder)
	activationService := app.NewActivationService(transactor, eligibility, notificationSender, rules, systemClock, recorder)
	receiptService := app.NewReceiptService(receiptSource, alerter, recorder)

	router := consumer.Router{
		cfg.Kafka.SettlementTopic:  app.SettlementHandler(schedulingService),
		cfg.Kafka.SickNoteTopic:    app.SickNoteHandler(reconciliationService),
		cfg.Kafka.PersonEventTopic: app.PersonEventHandler(deathService),
	}
	runnerOpts := []consumer.Option{
		consumer.WithClock(systemClock),
		consumer.WithMetrics(recorder),
		consumer.WithIdleBackoff(cfg.PollInterval),
		consumer.WithRetryBackoff(cfg.RetryBackoff),
	}

	var runners []*consumer.Runner
	for _, topic := range []string{cfg.Kafka.SettlementTopic, cfg.Kafka.SickNoteTopic, cfg.Kafka.PersonEventTopic} {
		source := kafka.NewSource(kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID, topic))
		defer source.Close()
		runners = append(runners, consumer.NewRunner(topic, source, router, runnerOpts...))
	}
	runners = append(runners,
		consumer.NewRunner(queue.SourceName, queue.NewTriggerSource(sqsClient, cfg.Activation.QueueURL), app.ActivationHandler(activationService), runnerOpts...),
		consumer.NewRunner("receipts", receiptSource, consumer.HandlerFunc(receiptService.Handle), runnerOpts...),
	)

	// Activation trigger scanner
	dueScanner := scheduler.NewDueScanner(
		notificationRepo,
		queue.NewTriggerPublisher(sqsClient, cfg.Activation.QueueURL),
		cfg.Activation.CronSpec,
		cfg.Activation.BatchSize,
		scheduler.WithResendAfter(cfg.Activation.ResendAfter),
	)
	if err := dueScanner.Start(); err != nil {
		log.Fatalf("Could not start due scanner: %v", err)
	}

	// Health
	state := &health.RunState{}
	server := &http.Server{
		Addr:              ":" + cfg.HealthPort,
		Handler:           health.NewRouter(state, idb.Pinger{DB: db}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error { return r.Run(gctx) })
	}
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down application...")
		state.SetReady(false)
		dueScanner.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	state.SetReady(true)
	log.WithField("loops", len(runners)).Info("Application setup complete. Consumption loops are running.")

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Application stopped with error")
		stop()
		os.Exit(1)
	}
	log.Info("Application shut down gracefully.")
}
