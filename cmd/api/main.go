package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/waveleads/lead-agent-platform/cmd/mainconfig"
	"github.com/waveleads/lead-agent-platform/internal/analytics"
	"github.com/waveleads/lead-agent-platform/internal/api/router"
	"github.com/waveleads/lead-agent-platform/internal/booking"
	"github.com/waveleads/lead-agent-platform/internal/calendar"
	"github.com/waveleads/lead-agent-platform/internal/cleanup"
	appconfig "github.com/waveleads/lead-agent-platform/internal/config"
	"github.com/waveleads/lead-agent-platform/internal/conversation"
	"github.com/waveleads/lead-agent-platform/internal/forwarder"
	"github.com/waveleads/lead-agent-platform/internal/http/handlers"
	"github.com/waveleads/lead-agent-platform/internal/messaging"
	"github.com/waveleads/lead-agent-platform/internal/observability/metrics"
	"github.com/waveleads/lead-agent-platform/internal/reminders"
	"github.com/waveleads/lead-agent-platform/internal/slots"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lead-agent-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Conversation store is the one dependency the service cannot run
	// without; everything else degrades.
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	_, err = dynamoClient.DescribeTable(pingCtx, &dynamodb.DescribeTableInput{
		TableName: aws.String(cfg.ConversationsTable),
	})
	pingCancel()
	if err != nil {
		logger.Error("conversation table unreachable", "error", err, "table", cfg.ConversationsTable)
		os.Exit(1)
	}
	store := conversation.NewStore(dynamoClient, cfg.ConversationsTable, logger)

	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	lock := conversation.NewContactLock(redisClient, 30*time.Second)
	deduper := messaging.NewDeduper(redisClient, cfg.DedupeTTL)

	msgMetrics := metrics.NewMessagingMetrics(nil)
	convMetrics := metrics.NewConversationMetrics(nil)

	oracle := buildOracle(ctx, cfg, awsCfg, logger)

	sender := messaging.NewClient(cfg.MessagingAPIBaseURL, cfg.MessagingPhoneID, cfg.MessagingAccessToken)
	sender.SetMetrics(msgMetrics)

	allocator, booker := buildScheduling(ctx, cfg, logger)

	var leadForwarder *forwarder.Forwarder
	if cfg.AutomationWebhookURL != "" {
		leadForwarder = forwarder.New(cfg.AutomationWebhookURL, cfg.AutomationTimeout, logger)
	} else {
		logger.Warn("AUTOMATION_WEBHOOK_URL not set, lead forwarding disabled")
	}

	engineCfg := conversation.EngineConfig{
		Store:   store,
		Lock:    lock,
		Oracle:  oracle,
		Sender:  sender,
		Metrics: convMetrics,
		Logger:  logger,
	}
	if allocator != nil {
		engineCfg.Slots = allocator
	}
	if booker != nil {
		engineCfg.Booker = booker
	}
	if leadForwarder != nil {
		engineCfg.Forwarder = leadForwarder
	}
	engine := conversation.NewEngine(engineCfg)

	var queue interface {
		Enqueue(ctx context.Context, msg messaging.Inbound) error
		Shutdown(ctx context.Context) error
	}
	dispatcherOpts := []conversation.DispatcherOption{
		conversation.WithWorkers(cfg.WorkerCount),
		conversation.WithJobTimeout(cfg.JobTimeout),
	}
	if cfg.UseMemoryQueue || cfg.InboundQueueURL == "" {
		logger.Info("using in-memory inbound queue")
		queue = conversation.NewDispatcher(engine, conversation.NewMemoryQueue(0), logger, dispatcherOpts...)
	} else {
		sqsClient := sqs.NewFromConfig(awsCfg)
		queue = conversation.NewDispatcher(engine,
			conversation.NewSQSQueue(sqsClient, cfg.InboundQueueURL), logger, dispatcherOpts...)
	}

	webhook := messaging.NewWebhookHandler(cfg.WebhookVerifyToken, queue, deduper, msgMetrics, logger)

	var analyticsStore *analytics.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres, analytics disabled", "error", err)
		} else {
			defer pool.Close()
			analyticsStore = analytics.NewStore(pool, logger)
			collector := analytics.NewCollector(store, analyticsStore, cfg.AnalyticsInterval, logger)
			go collector.Run(ctx)
		}
	} else {
		logger.Warn("DATABASE_URL not set, analytics disabled")
	}

	reminderSweeper := reminders.NewSweeper(store, sender, cfg.ReminderSweepInterval, convMetrics, logger).
		WithLocation(businessLocation(cfg, logger))
	go reminderSweeper.Run(ctx)

	cleanupSweeper := cleanup.NewSweeper(store, cfg.CleanupInterval, cfg.IdleCutoff, convMetrics, logger)
	go cleanupSweeper.Run(ctx)

	var previewer handlers.SlotPreviewer
	if allocator != nil {
		previewer = allocator
	}
	var adminForwarder handlers.LeadForwarder
	if leadForwarder != nil {
		adminForwarder = leadForwarder
	}
	admin := handlers.NewAdminHandler(store, analyticsStore, previewer, adminForwarder, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		Webhook:         webhook,
		Admin:           admin,
		MetricsHandler:  promhttp.Handler(),
		AdminAuthSecret: cfg.AdminJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown incomplete", "error", err)
	}

	logger.Info("server stopped")
}

// buildOracle assembles the LLM chain: Bedrock primary, Gemini fallback when
// an API key is configured.
func buildOracle(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) conversation.DecisionOracle {
	var llm conversation.LLMClient = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))

	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("failed to initialize Gemini fallback", "error", err)
		} else {
			llm = conversation.NewFallbackLLMClient(llm, gemini, logger)
		}
	}

	return conversation.NewLLMOracle(llm, cfg.BedrockModelID, cfg.OracleTimeout, logger)
}

// buildScheduling wires the calendar-backed allocator and booker, or returns
// nils when the calendar is unavailable so the funnel still runs up to the
// slot-offer stage.
func buildScheduling(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*slots.Allocator, *booking.Coordinator) {
	calClient, err := calendar.NewClient(ctx, cfg.GoogleCalendarID, logger)
	if err != nil {
		logger.Warn("calendar unavailable, slot offers and booking disabled", "error", err)
		return nil, nil
	}

	allocator := slots.NewAllocator(slots.Config{
		BusinessStartHour: cfg.BusinessHoursStart,
		BusinessEndHour:   cfg.BusinessHoursEnd,
		Duration:          time.Duration(cfg.SlotDurationMins) * time.Minute,
		Buffer:            time.Duration(cfg.SlotBufferMins) * time.Minute,
		HorizonDays:       cfg.SlotHorizonDays,
		Location:          businessLocation(cfg, logger),
	}, calClient, logger)

	return allocator, booking.NewCoordinator(allocator, calClient, logger)
}

// businessLocation resolves the configured timezone, falling back to UTC.
func businessLocation(cfg *appconfig.Config, logger *logging.Logger) *time.Location {
	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		logger.Warn("invalid business timezone, using UTC", "timezone", cfg.BusinessTimezone)
		return time.UTC
	}
	return loc
}
