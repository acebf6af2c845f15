package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// Application
	applicationPort "github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/internal/application/usecase"

	// Domain
	"github.com/dreschagin/soc-portal/internal/domain/service"

	// Infrastructure
	redisCache "github.com/dreschagin/soc-portal/internal/infrastructure/cache/redis"
	natsInfra "github.com/dreschagin/soc-portal/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/soc-portal/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/soc-portal/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/soc-portal/internal/infrastructure/observability/metrics"
	dynamodbRepo "github.com/dreschagin/soc-portal/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/soc-portal/internal/infrastructure/persistence/postgres"
	s3storage "github.com/dreschagin/soc-portal/internal/infrastructure/storage/s3"

	// Interfaces
	httpInterface "github.com/dreschagin/soc-portal/internal/interfaces/http"
	"github.com/dreschagin/soc-portal/internal/interfaces/http/handler"
	"github.com/dreschagin/soc-portal/internal/interfaces/http/middleware"
	"github.com/dreschagin/soc-portal/internal/interfaces/payload"

	// Shared
	"github.com/dreschagin/soc-portal/pkg/config"
	"github.com/dreschagin/soc-portal/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger
	log := logger.New(cfg.LogLevel)
	log.SetService("soc-portal-api")
	log.Info("Starting SOC Portal API")

	// 3. Подключаемся к БД
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("Failed to connect to database", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		log.Error("Failed to ping database", err)
		os.Exit(1)
	}

	status, err := postgres.Migrate(db, -1)
	if err != nil {
		log.Error("Failed to apply migrations", err)
		os.Exit(1)
	}
	log.Info("Database connected successfully", "schema_version", status.To)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Infrastructure Layer

	downtimeRepository := postgres.NewPostgresDowntimeRepository(db)

	hub := wsInfra.NewHub(log)
	prom := metrics.New(hub.ClientCount)

	// CloudWatch Logs Publisher
	var logsPublisher applicationPort.LogPublisher
	if cfg.CloudWatch.Enabled {
		publisherImpl, initErr := cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			LogGroupName:    cfg.CloudWatch.LogGroup,
			LogStreamName:   cfg.CloudWatch.LogStream,
			Region:          cfg.CloudWatch.Region,
			Endpoint:        cfg.CloudWatch.Endpoint,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
			AutoCreate:      true,
		})
		if initErr != nil {
			log.Error("Failed to initialize CloudWatch logs publisher", initErr)
			os.Exit(1)
		}
		logsPublisher = publisherImpl
		log.SetLogPublisher(logsPublisher)
		log.Info("CloudWatch logs publisher initialized", "group", cfg.CloudWatch.LogGroup)
	} else {
		log.Warn("CloudWatch logs publishing is disabled")
	}

	// Redis cache для отчетов
	var reportCache applicationPort.Cache
	if cfg.Redis.Enabled {
		cacheImpl, initErr := redisCache.NewRedisCache(ctx, redisCache.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Report.CacheTTL,
		})
		if initErr != nil {
			log.Warn("Failed to connect to Redis, continuing without report cache", "error", initErr.Error())
		} else {
			reportCache = cacheImpl
			defer cacheImpl.Close()
			log.Info("Redis report cache initialized", "ttl", cfg.Report.CacheTTL.String())
		}
	} else {
		log.Warn("Redis report cache is disabled")
	}

	// NATS Event Publisher
	var eventPublisher applicationPort.EventPublisher
	if cfg.NATS.Enabled {
		publisherImpl, initErr := natsInfra.NewNATSPublisher(natsInfra.Options{
			URL:        cfg.NATS.URL,
			ClientName: "soc-portal-api",
			Stream:     cfg.NATS.Stream,
		}, log)
		if initErr != nil {
			log.Warn("Failed to connect to NATS, continuing without event publishing", "error", initErr.Error())
		} else {
			eventPublisher = publisherImpl
			defer publisherImpl.Close()

			// Алерты watcher-а ретранслируются подписчикам WebSocket
			unsubscribe, subErr := publisherImpl.SubscribeSLABreaches(hub.BroadcastSLABreach)
			if subErr != nil {
				log.Warn("Failed to subscribe to SLA breaches", "error", subErr.Error())
			} else {
				defer unsubscribe()
			}
			log.Info("NATS event publisher initialized", "url", cfg.NATS.URL)
		}
	} else {
		log.Warn("NATS event publishing is disabled")
	}

	var reportStorage applicationPort.ReportStorage
	if cfg.S3.Enabled {
		storageImpl, initErr := s3storage.NewReportStorage(ctx, s3storage.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			URLMode:         s3storage.URLMode(cfg.S3.URLMode),
			PresignedTTL:    cfg.S3.PresignedTTL,
		})
		if initErr != nil {
			log.Error("Failed to initialize report storage", initErr)
			os.Exit(1)
		}
		reportStorage = storageImpl
	} else {
		log.Warn("S3 storage is disabled, report exports are unavailable")
	}

	var exportIndex applicationPort.ReportExportRepository
	if cfg.Dynamo.Enabled {
		repoImpl, initErr := dynamodbRepo.NewReportExportRepository(ctx, dynamodbRepo.Config{
			TableName:       cfg.Dynamo.Table,
			Region:          cfg.Dynamo.Region,
			Endpoint:        cfg.Dynamo.Endpoint,
			AccessKeyID:     cfg.Dynamo.AccessKeyID,
			SecretAccessKey: cfg.Dynamo.SecretAccessKey,
			StrongReads:     cfg.Dynamo.StrongReads,
		})
		if initErr != nil {
			log.Error("Failed to initialize report export index", initErr)
			os.Exit(1)
		}
		exportIndex = repoImpl
		log.Info("Report export index initialized", "provider", "dynamodb")
	} else {
		log.Warn("DynamoDB export index is disabled, using S3 listing mode")
	}

	// 5. Domain Layer
	aggregator := service.NewDowntimeAggregator()
	scorer := service.NewReliabilityScorer()
	classifier := service.NewDowntimeClassifier(aggregator)
	downtimeValidator := service.NewDowntimeValidator()

	// 6. Application Layer
	reportUC := usecase.NewGetReliabilityReportUseCase(downtimeRepository, aggregator, scorer, reportCache, log)

	var exportUC *usecase.ExportReliabilityReportUseCase
	var listExportsUC *usecase.ListReportExportsUseCase
	if reportStorage != nil {
		exportUC = usecase.NewExportReliabilityReportUseCase(reportUC, reportStorage, exportIndex,
			usecase.ExportReliabilityReportConfig{
				KeyPrefix:   cfg.S3.KeyPrefix,
				MetadataTTL: cfg.Dynamo.MetadataTTL,
			}, log)
		listExportsUC = usecase.NewListReportExportsUseCase(reportStorage, exportIndex,
			usecase.ListReportExportsConfig{
				KeyPrefix:           cfg.S3.KeyPrefix,
				FallbackToS3OnError: true,
			}, log)
	}

	// 7. Interfaces Layer
	validator, err := payload.NewValidator()
	if err != nil {
		log.Error("Failed to compile payload schemas", err)
		os.Exit(1)
	}

	authConfig := middleware.AuthConfig{
		Enabled:     cfg.Security.AuthEnabled,
		BearerToken: cfg.Security.AuthToken,
		JWTSecret:   cfg.Security.JWTSecret,
		JWTIssuer:   cfg.Security.JWTIssuer,
		OnFailure:   prom.AuthFailures.Inc,
	}

	handlers := httpInterface.Handlers{
		Downtime: handler.NewDowntimeHandler(handler.DowntimeUseCases{
			Report:      usecase.NewReportDowntimeUseCase(downtimeRepository, downtimeValidator, eventPublisher, hub, reportCache, log),
			Close:       usecase.NewCloseDowntimeUseCase(downtimeRepository, eventPublisher, hub, reportCache, log),
			List:        usecase.NewListDowntimesUseCase(downtimeRepository, log),
			Channels:    usecase.NewGetChannelDowntimeUseCase(downtimeRepository, aggregator, log),
			TypeSummary: usecase.NewGetDowntimeTypeSummaryUseCase(downtimeRepository, classifier, log),
		}, validator, cfg.Server.MaxBodyBytes, cfg.Report.MaxCustomRangeDays, prom, log),
		Reliability: handler.NewReliabilityHandler(reportUC, exportUC, listExportsUC, cfg.Report.MaxCustomRangeDays, prom, log),
		Stats:       handler.NewStatsHandler(usecase.NewGetDashboardStatsUseCase(downtimeRepository, cfg.Report.StatsTimeout, log)),
		WebSocket:   handler.NewWebSocketHandler(hub, cfg.Security.AllowedOrigins, authConfig, log),
	}
	if cfg.Watcher.BaseURL != "" {
		handlers.ReliabilityWatch = handler.NewReliabilityWatchHandler(cfg.Watcher.BaseURL, cfg.Watcher.ProxyTimeout, log)
	}

	router := httpInterface.NewRouter(handlers, httpInterface.RouterOptions{
		Security:      cfg.Security,
		SubmitLimiter: middleware.NewIPRateLimiter(cfg.Report.SubmitRateLimit, cfg.Report.SubmitBurst),
		Metrics:       prom,
		ReadinessCheck: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
		OnAuthFailure: prom.AuthFailures.Inc,
		OnRateLimited: prom.RateLimitDropped.Inc,
	}, log)

	// 8. Фоновые процессы
	go hub.Run(ctx)
	log.Info("WebSocket hub started")

	// 9. HTTP сервер
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// 10. Graceful shutdown
	<-sigChan
	log.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	// Останавливаем hub после того как HTTP больше не принимает клиентов
	cancel()

	if logsPublisher != nil {
		log.SetLogPublisher(nil)
		if err := logsPublisher.Flush(shutdownCtx); err != nil {
			log.Error("Failed to flush CloudWatch logs", err)
		}
	}

	log.Info("Server stopped gracefully")
}
