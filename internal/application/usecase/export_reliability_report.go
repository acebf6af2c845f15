package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/pkg/logger"
	"github.com/google/uuid"
)

const reportContentType = "text/csv"

// ReliabilityReporter - источник отчета для выгрузки
type ReliabilityReporter interface {
	Execute(ctx context.Context, query ReportQuery) (*dto.ReliabilityReportDTO, error)
}

type ExportReliabilityReportConfig struct {
	KeyPrefix   string
	MetadataTTL time.Duration
}

type ExportReliabilityReportUseCase struct {
	reporter ReliabilityReporter
	storage  port.ReportStorage
	index    port.ReportExportRepository
	config   ExportReliabilityReportConfig
	logger   *logger.Logger
	now      func() time.Time
}

func NewExportReliabilityReportUseCase(
	reporter ReliabilityReporter,
	storage port.ReportStorage,
	index port.ReportExportRepository,
	config ExportReliabilityReportConfig,
	log *logger.Logger,
) *ExportReliabilityReportUseCase {
	return &ExportReliabilityReportUseCase{
		reporter: reporter,
		storage:  storage,
		index:    index,
		config:   config,
		logger:   log,
		now:      time.Now,
	}
}

func (uc *ExportReliabilityReportUseCase) Execute(ctx context.Context, query ReportQuery) (*dto.ReportExportDTO, error) {
	if uc.storage == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}

	report, err := uc.reporter.Execute(ctx, query)
	if err != nil {
		return nil, err
	}

	body, err := RenderReliabilityCSV(report)
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	createdAt := uc.now().UTC()
	key := uc.buildS3Key(report.Range, createdAt)

	url, err := uc.storage.PutObject(ctx, key, reportContentType, body)
	if err != nil {
		uc.logger.Error("Failed to upload reliability report", err, "range", report.Range, "key", key)
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	export := &dto.ReportExportDTO{
		ID:                    uuid.NewString(),
		Range:                 report.Range,
		S3Key:                 key,
		URL:                   url,
		ContentType:           reportContentType,
		SizeBytes:             int64(len(body)),
		ReliabilityPercentage: report.ReliabilityPercentage,
		WindowStart:           report.WindowStart,
		WindowEnd:             report.WindowEnd,
		CreatedAt:             createdAt,
	}

	if uc.index != nil {
		record := port.ReportExportMetadata{
			ID:                    export.ID,
			Range:                 export.Range,
			S3Key:                 export.S3Key,
			URL:                   export.URL,
			ContentType:           export.ContentType,
			SizeBytes:             export.SizeBytes,
			ReliabilityPercentage: export.ReliabilityPercentage,
			WindowStart:           export.WindowStart,
			WindowEnd:             export.WindowEnd,
			CreatedAt:             createdAt,
		}
		if uc.config.MetadataTTL > 0 {
			record.ExpiresAt = createdAt.Add(uc.config.MetadataTTL)
		}

		// Объект уже в S3: при сбое индекса список выгрузок откатится на листинг S3
		if err := uc.index.Put(ctx, record); err != nil {
			uc.logger.Warn("Failed to index report export",
				"key", key,
				"error", err.Error(),
			)
		}
	}

	uc.logger.Info("Reliability report exported", "range", report.Range, "key", key, "bytes", len(body))

	return export, nil
}

func (uc *ExportReliabilityReportUseCase) buildS3Key(rangeToken string, createdAt time.Time) string {
	prefix := strings.Trim(uc.config.KeyPrefix, "/")
	if prefix == "" {
		prefix = "reports"
	}

	timestamp := createdAt.Format("20060102T150405Z")
	datePrefix := createdAt.Format("2006/01/02")

	return fmt.Sprintf("%s/%s/%s_%s.csv", prefix, datePrefix, timestamp, rangeToken)
}

// RenderReliabilityCSV выводит отчет: строка на канал и итоговая строка TOTAL
func RenderReliabilityCSV(report *dto.ReliabilityReportDTO) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"channel", "minutes", "incident_count", "percentage", "reliability_percentage"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, ch := range report.Channels {
		row := []string{
			ch.Channel,
			strconv.Itoa(ch.Minutes),
			strconv.Itoa(ch.IncidentCount),
			formatPercent(ch.Percentage),
			formatPercent(ch.ReliabilityPercentage),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	total := []string{
		"TOTAL",
		strconv.Itoa(report.TotalReliabilityImpactMinutes),
		"",
		formatPercent(report.ReliabilityImpactPercentage),
		formatPercent(report.ReliabilityPercentage),
	}
	if err := w.Write(total); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
