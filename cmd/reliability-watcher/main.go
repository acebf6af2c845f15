package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/internal/domain/service"
	natsInfra "github.com/dreschagin/soc-portal/internal/infrastructure/messaging/nats"
	"github.com/dreschagin/soc-portal/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/soc-portal/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/soc-portal/internal/infrastructure/persistence/postgres"
	"github.com/dreschagin/soc-portal/internal/reliabilitywatch"
	"github.com/dreschagin/soc-portal/pkg/config"
	"github.com/dreschagin/soc-portal/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	watchCfg, err := reliabilitywatch.Config{
		Port:     baseCfg.Watcher.Port,
		Interval: baseCfg.Watcher.Interval,
		Range:    baseCfg.Watcher.Range,
	}.Normalize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load watcher config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(baseCfg.LogLevel)
	log.SetService("reliability-watcher")
	log.Info(
		"Starting reliability watcher",
		"interval", watchCfg.Interval.String(),
		"range", watchCfg.Range,
		"port", watchCfg.Port,
	)

	db, err := sql.Open("postgres", baseCfg.Database.DSN())
	if err != nil {
		log.Error("Failed to connect to database", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Error("Failed to ping database", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prom := metrics.New(nil)
	sinks := reliabilitywatch.Sinks{Observer: prom}

	var exporter *cloudwatch.MetricsPublisher
	if baseCfg.CloudWatch.Enabled {
		exporter, err = cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			Namespace:       baseCfg.CloudWatch.Namespace,
			Region:          baseCfg.CloudWatch.Region,
			Endpoint:        baseCfg.CloudWatch.Endpoint,
			AccessKeyID:     baseCfg.CloudWatch.AccessKeyID,
			SecretAccessKey: baseCfg.CloudWatch.SecretAccessKey,
			DefaultDimensions: map[string]string{
				"Environment": baseCfg.CloudWatch.Environment,
			},
		})
		if err != nil {
			log.Error("Failed to initialize CloudWatch metrics publisher", err)
			os.Exit(1)
		}
		exporter.OnFlushError(func(err error) {
			log.Warn("CloudWatch metrics flush failed", "error", err.Error())
		})
		sinks.Exporter = exporter
	} else {
		log.Warn("CloudWatch metrics export is disabled")
	}

	if baseCfg.NATS.Enabled {
		publisher, natsErr := natsInfra.NewNATSPublisher(natsInfra.Options{
			URL:        baseCfg.NATS.URL,
			ClientName: "reliability-watcher",
			Stream:     baseCfg.NATS.Stream,
		}, log)
		if natsErr != nil {
			log.Warn("Failed to connect to NATS, breach alerts will only be counted", "error", natsErr.Error())
		} else {
			defer publisher.Close()
			sinks.Events = publisher
		}
	}

	aggregator := service.NewDowntimeAggregator()
	reporter := usecase.NewGetReliabilityReportUseCase(
		postgres.NewPostgresDowntimeRepository(db),
		aggregator,
		service.NewReliabilityScorer(),
		nil,
		log,
	)

	watchService := reliabilitywatch.NewService(reporter, watchCfg.Range, sinks, log)
	runner := reliabilitywatch.NewRunner(watchService, log, watchCfg)
	handler := reliabilitywatch.NewHandler(runner, prom.Handler())

	go runner.Start(ctx)

	server := &http.Server{
		Addr:         ":" + watchCfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: watchCfg.RunTimeout + 5*time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		log.Info("Reliability watcher HTTP server started", "port", watchCfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Reliability watcher HTTP server failed", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Reliability watcher HTTP server shutdown failed", err)
	}

	if exporter != nil {
		if err := exporter.Close(shutdownCtx); err != nil {
			log.Error("Failed to flush CloudWatch metrics", err)
		}
	}

	log.Info("Reliability watcher stopped")
}
