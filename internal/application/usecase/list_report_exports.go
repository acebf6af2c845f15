package usecase

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

type ListReportExportsCommand struct {
	Range  string
	Limit  int
	Cursor string
}

type ListReportExportsResult struct {
	Items      []dto.ReportExportDTO `json:"items"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

type ListReportExportsConfig struct {
	KeyPrefix           string
	DefaultLimit        int
	MaxLimit            int
	FallbackToS3OnError bool
}

type ListReportExportsUseCase struct {
	storage port.ReportStorage
	index   port.ReportExportRepository
	config  ListReportExportsConfig
	logger  *logger.Logger
}

func NewListReportExportsUseCase(
	storage port.ReportStorage,
	index port.ReportExportRepository,
	config ListReportExportsConfig,
	log *logger.Logger,
) *ListReportExportsUseCase {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 20
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 100
	}
	return &ListReportExportsUseCase{
		storage: storage,
		index:   index,
		config:  config,
		logger:  log,
	}
}

func (uc *ListReportExportsUseCase) Execute(ctx context.Context, cmd ListReportExportsCommand) (*ListReportExportsResult, error) {
	limit := cmd.Limit
	if limit <= 0 {
		limit = uc.config.DefaultLimit
	}
	if limit > uc.config.MaxLimit {
		limit = uc.config.MaxLimit
	}

	query := port.ReportExportListQuery{
		Range:  strings.TrimSpace(cmd.Range),
		Limit:  limit,
		Cursor: strings.TrimSpace(cmd.Cursor),
	}

	if uc.index != nil {
		page, err := uc.index.List(ctx, query)
		if err == nil {
			return uc.mapIndexPage(ctx, page), nil
		}

		if !uc.config.FallbackToS3OnError {
			return nil, fmt.Errorf("failed to list exports via index: %w", err)
		}

		uc.logger.Warn("Report export index is unavailable, using S3 fallback", "error", err.Error())
	}

	return uc.listFromS3(ctx, query)
}

func (uc *ListReportExportsUseCase) mapIndexPage(ctx context.Context, page port.ReportExportListPage) *ListReportExportsResult {
	items := make([]dto.ReportExportDTO, 0, len(page.Items))
	for _, record := range page.Items {
		url := record.URL
		if uc.storage != nil {
			if generatedURL, err := uc.storage.GetObjectURL(ctx, record.S3Key); err == nil {
				url = generatedURL
			}
		}

		items = append(items, dto.ReportExportDTO{
			ID:                    record.ID,
			Range:                 record.Range,
			S3Key:                 record.S3Key,
			URL:                   url,
			ContentType:           record.ContentType,
			SizeBytes:             record.SizeBytes,
			ReliabilityPercentage: record.ReliabilityPercentage,
			WindowStart:           record.WindowStart.UTC(),
			WindowEnd:             record.WindowEnd.UTC(),
			CreatedAt:             record.CreatedAt.UTC(),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return &ListReportExportsResult{Items: items, NextCursor: page.NextCursor}
}

func (uc *ListReportExportsUseCase) listFromS3(ctx context.Context, query port.ReportExportListQuery) (*ListReportExportsResult, error) {
	if uc.storage == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}
	if query.Cursor != "" {
		return nil, fmt.Errorf("cursor pagination requires report export index")
	}

	prefix := strings.Trim(uc.config.KeyPrefix, "/")
	if prefix == "" {
		prefix = "reports"
	}

	objects, err := uc.storage.ListObjects(ctx, prefix+"/", query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	items := make([]dto.ReportExportDTO, 0, len(objects))
	for _, object := range objects {
		createdAt, rangeToken := parseExportKey(object.Key)
		if query.Range != "" && !strings.EqualFold(rangeToken, query.Range) {
			continue
		}
		items = append(items, dto.ReportExportDTO{
			Range:       rangeToken,
			S3Key:       object.Key,
			URL:         object.URL,
			ContentType: reportContentType,
			SizeBytes:   object.SizeBytes,
			CreatedAt:   createdAt,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if len(items) > query.Limit {
		items = items[:query.Limit]
	}

	return &ListReportExportsResult{Items: items}, nil
}

// parseExportKey разбирает имя вида 20240101T120000Z_thisWeek.csv
func parseExportKey(key string) (time.Time, string) {
	filename := strings.TrimSuffix(path.Base(strings.TrimSpace(key)), ".csv")

	ts, rangeToken, ok := strings.Cut(filename, "_")
	if !ok {
		return time.Time{}, "unknown"
	}

	createdAt, err := time.Parse("20060102T150405Z", ts)
	if err != nil {
		return time.Time{}, rangeToken
	}
	return createdAt.UTC(), rangeToken
}
