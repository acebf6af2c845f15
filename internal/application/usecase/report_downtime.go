package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/port"
	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	"github.com/dreschagin/soc-portal/internal/domain/service"
	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
	"github.com/dreschagin/soc-portal/internal/infrastructure/cache/redis"
	"github.com/dreschagin/soc-portal/pkg/logger"
	"github.com/google/uuid"
)

// ReportDowntimeCommand - отчет о простое из формы или импорта
type ReportDowntimeCommand struct {
	IncidentID       string
	Category         string
	AffectedChannels []string
	StartTime        time.Time
	EndTime          *time.Time
	Modality         string
	ImpactType       string
}

// ReportDowntimeUseCase сохраняет отчет о простое и оповещает подписчиков
type ReportDowntimeUseCase struct {
	repository repository.DowntimeRepository
	validator  *service.DowntimeValidator
	announcer  *downtimeAnnouncer
	logger     *logger.Logger
	now        func() time.Time
}

// NewReportDowntimeUseCase создает новый use case; publisher, notifier и cache могут быть nil
func NewReportDowntimeUseCase(
	repository repository.DowntimeRepository,
	validator *service.DowntimeValidator,
	publisher port.EventPublisher,
	notifier port.NotificationService,
	cache port.Cache,
	logger *logger.Logger,
) *ReportDowntimeUseCase {
	return &ReportDowntimeUseCase{
		repository: repository,
		validator:  validator,
		announcer:  &downtimeAnnouncer{publisher: publisher, notifier: notifier, cache: cache, logger: logger},
		logger:     logger,
		now:        time.Now,
	}
}

// Execute сохраняет одну строку простоя
func (uc *ReportDowntimeUseCase) Execute(ctx context.Context, cmd ReportDowntimeCommand) (*dto.DowntimeDTO, error) {
	now := uc.now()

	downtime, err := uc.build(cmd, now)
	if err != nil {
		return nil, err
	}

	if err := uc.repository.Save(ctx, downtime); err != nil {
		uc.logger.Error("Failed to save downtime", err, "incident_id", downtime.IncidentID())
		return nil, fmt.Errorf("failed to save downtime: %w", err)
	}

	uc.logger.Info("Downtime reported",
		"incident_id", downtime.IncidentID(),
		"channels", downtime.AffectedChannel(),
		"modality", downtime.Modality().String(),
		"impact_type", downtime.ImpactType().String(),
		"reliability_impacted", downtime.Reliability().String(),
	)

	uc.announcer.announce(ctx, port.SubjectDowntimeReported, dto.NewDowntimeEventDTO("reported", downtime, now))

	return dto.FromDowntime(downtime, now), nil
}

// ExecuteBatch сохраняет несколько строк одной транзакцией (импорт).
// Любая невалидная строка отклоняет весь пакет.
func (uc *ReportDowntimeUseCase) ExecuteBatch(ctx context.Context, cmds []ReportDowntimeCommand) ([]*dto.DowntimeDTO, error) {
	if len(cmds) == 0 {
		return nil, domainerr.NewValidationError("downtimes", "batch is empty")
	}

	now := uc.now()

	downtimes := make([]*entity.Downtime, 0, len(cmds))
	for i, cmd := range cmds {
		d, err := uc.build(cmd, now)
		if err != nil {
			return nil, fmt.Errorf("downtime %d: %w", i, err)
		}
		downtimes = append(downtimes, d)
	}

	if err := uc.repository.SaveBatch(ctx, downtimes); err != nil {
		uc.logger.Error("Failed to save downtime batch", err, "count", len(downtimes))
		return nil, fmt.Errorf("failed to save downtime batch: %w", err)
	}

	uc.logger.Info("Downtime batch imported", "count", len(downtimes))

	for _, d := range downtimes {
		uc.announcer.announce(ctx, port.SubjectDowntimeReported, dto.NewDowntimeEventDTO("reported", d, now))
	}

	return dto.ToDowntimeDTOs(downtimes, now), nil
}

// build создает и валидирует сущность; все ошибки - ValidationError
func (uc *ReportDowntimeUseCase) build(cmd ReportDowntimeCommand, now time.Time) (*entity.Downtime, error) {
	modality, err := valueobject.ParseModality(cmd.Modality)
	if err != nil {
		return nil, domainerr.NewValidationError("modality", err.Error())
	}

	impactType, err := valueobject.ParseImpactType(cmd.ImpactType)
	if err != nil {
		return nil, domainerr.NewValidationError("impactType", err.Error())
	}

	affected := normalizeAffectedChannels(cmd.AffectedChannels)
	if affected == "" {
		return nil, domainerr.NewValidationError("affectedChannels", "at least one channel is required")
	}

	incidentID := strings.TrimSpace(cmd.IncidentID)
	if incidentID == "" {
		incidentID = GenerateIncidentID(cmd.StartTime)
	}

	downtime, err := entity.NewDowntime(incidentID, cmd.Category, affected, cmd.StartTime, cmd.EndTime, modality, impactType)
	if err != nil {
		return nil, domainerr.NewValidationError("downtime", err.Error())
	}

	if err := uc.validator.Validate(downtime, now); err != nil {
		return nil, domainerr.NewValidationError("downtime", err.Error())
	}

	return downtime, nil
}

// GenerateIncidentID создает идентификатор вида DT-20240101-1A2B3C по дате начала в зоне отчета
func GenerateIncidentID(start time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("DT-%s-%s", start.In(valueobject.ReportLocation()).Format("20060102"), suffix)
}

// normalizeAffectedChannels собирает список каналов формы в значение affected_channel
func normalizeAffectedChannels(raw []string) string {
	var channels []valueobject.Channel
	seen := make(map[valueobject.Channel]struct{})

	for _, item := range raw {
		if strings.EqualFold(strings.TrimSpace(item), valueobject.AllChannelsTag) {
			return valueobject.AllChannelsTag
		}
		for _, ch := range valueobject.ExpandChannels(item) {
			if _, dup := seen[ch]; dup {
				continue
			}
			seen[ch] = struct{}{}
			channels = append(channels, ch)
		}
	}

	service.SortChannels(channels)
	return valueobject.JoinChannels(channels)
}

// downtimeAnnouncer сбрасывает кеш отчетов и рассылает событие; ошибки только логируются
type downtimeAnnouncer struct {
	publisher port.EventPublisher
	notifier  port.NotificationService
	cache     port.Cache
	logger    *logger.Logger
}

func (a *downtimeAnnouncer) announce(ctx context.Context, subject string, event *dto.DowntimeEventDTO) {
	if a.cache != nil {
		if err := a.cache.DeletePattern(ctx, redis.ReliabilityKeyPrefix+"*"); err != nil {
			a.logger.Warn("Failed to invalidate reliability cache", "error", err.Error())
		}
	}

	if a.publisher != nil {
		if err := a.publisher.PublishEvent(ctx, subject, event); err != nil {
			a.logger.Warn("Failed to publish downtime event",
				"subject", subject,
				"incident_id", event.IncidentID,
				"error", err.Error(),
			)
		}
	}

	if a.notifier != nil {
		a.notifier.BroadcastDowntime(event)
	}
}
