package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aimkt/marketing-api/internal/config"
	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/provider"
	"github.com/aimkt/marketing-api/internal/provider/email"
	"github.com/aimkt/marketing-api/internal/provider/whatsapp"
	"github.com/aimkt/marketing-api/internal/ratelimit"
	"github.com/aimkt/marketing-api/internal/repository/postgres"
	"github.com/aimkt/marketing-api/internal/service/campaign"
	"github.com/aimkt/marketing-api/internal/service/content"
	"github.com/aimkt/marketing-api/internal/service/dispatch"
	"github.com/aimkt/marketing-api/internal/service/notification"
	"github.com/aimkt/marketing-api/internal/service/segment"
	"github.com/aimkt/marketing-api/internal/worker"
	"github.com/aimkt/marketing-api/pkg/lease"
	"github.com/aimkt/marketing-api/pkg/logger"
	redisbroker "github.com/aimkt/marketing-api/pkg/messaging/redis"
	"github.com/aimkt/marketing-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	appLogger := logger.NewLogger(&logger.Config{Level: level, Pretty: cfg.Log.Pretty})

	db, err := postgres.NewDB(cfg.Database.ToDBConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	campaignRepo := postgres.NewCampaignRepository(base)
	campaignLogRepo := postgres.NewCampaignLogRepository(base)
	customerRepo := postgres.NewCustomerRepository(base)
	segmentRepo := postgres.NewSegmentRepository(base)
	messageRepo := postgres.NewMessageRepository(base)
	contentRepo := postgres.NewContentRepository(base)
	notificationRepo := postgres.NewNotificationRepository(base)

	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse Redis URL")
	}
	redisClient := goredis.NewClient(redisOpts)
	defer redisClient.Close()

	broker, err := redisbroker.NewBroker(cfg.Redis.ToBrokerConfig(), &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}

	appMetrics := metrics.NewMetrics("marketing_worker")

	emailTransport := buildEmailTransport(cfg)
	transports := provider.Registry{
		model.ChannelEmail:    emailTransport,
		model.ChannelWhatsApp: buildWhatsAppTransport(cfg),
	}

	limiter := ratelimit.New(ratelimit.Config{
		model.ChannelEmail:    cfg.RateLimit.EmailPerMinute,
		model.ChannelWhatsApp: cfg.RateLimit.WhatsAppPerMinute,
	})

	dispatcher := dispatch.NewDispatcher(transports, messageRepo, dispatch.Config{
		MaxRetries: cfg.Dispatch.MaxRetries,
		BaseDelay:  cfg.Dispatch.BaseDelay,
		MaxDelay:   cfg.Dispatch.MaxDelay,
	}, appLogger, appMetrics)
	bulk := dispatch.NewBulkMessenger(dispatcher, limiter, messageRepo, cfg.Dispatch.Workers, appLogger, appMetrics)

	contentSvc := content.NewService(content.NewTemplateGenerator(), contentRepo, cfg.Campaign.ContentCacheTTL, appLogger, appMetrics)
	segmentSvc := segment.NewService(segmentRepo, customerRepo)
	notificationSvc := notification.NewService(notificationRepo, emailTransport, cfg.Campaign.AlertAddress, appLogger)

	orchestrator := campaign.NewOrchestrator(
		campaignRepo,
		campaignLogRepo,
		segmentSvc,
		contentSvc,
		bulk,
		notificationSvc,
		lease.NewRedisLocker(redisClient, "marketing"),
		broker,
		campaign.Config{
			FailureThreshold: cfg.Campaign.FailureThreshold,
			LeaseTTL:         cfg.Campaign.LeaseTTL,
		},
		appLogger,
		appMetrics,
	)

	scheduler := worker.NewScheduler(orchestrator, cfg.Worker.SchedulerInterval, cfg.Worker.BatchSize, appLogger)
	sweeper := worker.NewRetrySweeper(
		messageRepo,
		campaignRepo,
		customerRepo,
		contentSvc,
		bulk,
		cfg.Worker.SweepInterval,
		cfg.Worker.BatchSize,
		appLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scheduler.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler: mux,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start metrics server")
		}
	}()
	log.Info().Int("metrics_port", cfg.Worker.MetricsPort).Msg("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")

	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("metrics server forced to shutdown")
	}

	log.Info().Msg("worker exited properly")
}

// buildEmailTransport falls back to the mock transport when no SMTP host is
// configured, so local setups work without a mail server.
func buildEmailTransport(cfg *config.Config) provider.Transport {
	if cfg.Email.Host == "" {
		return provider.NewMockTransport(1)
	}
	return email.NewTransport(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		Subject:  cfg.Email.Subject,
	})
}

func buildWhatsAppTransport(cfg *config.Config) provider.Transport {
	if cfg.WhatsApp.BaseURL == "" {
		return provider.NewMockTransport(1)
	}
	return whatsapp.NewTransport(whatsapp.Config{
		BaseURL:     cfg.WhatsApp.BaseURL,
		APIKey:      cfg.WhatsApp.Token,
		From:        cfg.WhatsApp.From,
		Timeout:     cfg.WhatsApp.Timeout,
		MaxFailures: cfg.WhatsApp.MaxFailures,
	})
}
