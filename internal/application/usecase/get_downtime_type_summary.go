package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	"github.com/dreschagin/soc-portal/internal/domain/service"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// GetDowntimeTypeSummaryUseCase раскладывает простой по четырем корзинам для круговой диаграммы
type GetDowntimeTypeSummaryUseCase struct {
	repository repository.DowntimeRepository
	classifier *service.DowntimeClassifier
	logger     *logger.Logger
	now        func() time.Time
}

// NewGetDowntimeTypeSummaryUseCase создает новый use case
func NewGetDowntimeTypeSummaryUseCase(
	repository repository.DowntimeRepository,
	classifier *service.DowntimeClassifier,
	logger *logger.Logger,
) *GetDowntimeTypeSummaryUseCase {
	return &GetDowntimeTypeSummaryUseCase{
		repository: repository,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Execute выполняет классификацию. Фильтры модальности и типа влияния игнорируются:
// корзины сами задают эти условия.
func (uc *GetDowntimeTypeSummaryUseCase) Execute(ctx context.Context, query ReportQuery) (*dto.DowntimeTypeSummaryDTO, error) {
	now := uc.now()

	rr, err := query.resolve(now)
	if err != nil {
		return nil, err
	}

	repoQuery := query.repositoryQuery(rr, now)
	repoQuery.Modality, repoQuery.ImpactType, repoQuery.Reliability = "", "", ""

	records, err := uc.repository.FindOverlapping(ctx, repoQuery)
	if err != nil {
		uc.logger.Error("Failed to fetch downtime for type summary", err, "range", rr.Preset.String())
		return nil, fmt.Errorf("failed to fetch downtime: %w", err)
	}

	out := uc.classifier.Classify(records, rr.Window, now)
	logSkipped(uc.logger, out.Skipped)

	types := make([]dto.DowntimeTypeDTO, 0, len(out.Buckets))
	for _, bucket := range out.Buckets {
		modality, impact, _ := strings.Cut(bucket.Type.String(), "_")

		channels := make([]dto.ChannelDowntimeItemDTO, len(bucket.Channels))
		for i, ch := range bucket.Channels {
			channels[i] = dto.ChannelDowntimeItemDTO{
				Channel:       ch.Channel.String(),
				Minutes:       ch.Minutes,
				IncidentCount: ch.IncidentCount,
			}
		}

		types = append(types, dto.DowntimeTypeDTO{
			Type:          bucket.Type.String(),
			Modality:      modality,
			ImpactType:    impact,
			TotalMinutes:  bucket.TotalMinutes,
			IncidentCount: bucket.IncidentCount,
			Channels:      channels,
		})
	}

	return &dto.DowntimeTypeSummaryDTO{
		Range:          rr.Preset.String(),
		WindowStart:    rr.Window.Start().UTC(),
		WindowEnd:      rr.Window.End().UTC(),
		Types:          types,
		SkippedRecords: len(out.Skipped),
	}, nil
}
