package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/internal/interfaces/payload"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

const defaultMaxBodyBytes = 1 << 20

// DowntimeObserver получает уведомления об успешных изменениях (метрики)
type DowntimeObserver interface {
	ObserveDowntimes(rows []*dto.DowntimeDTO)
	ObserveIncidentClosed()
}

// DowntimeUseCases группирует use cases, которые обслуживает DowntimeHandler
type DowntimeUseCases struct {
	Report      *usecase.ReportDowntimeUseCase
	Close       *usecase.CloseDowntimeUseCase
	List        *usecase.ListDowntimesUseCase
	Channels    *usecase.GetChannelDowntimeUseCase
	TypeSummary *usecase.GetDowntimeTypeSummaryUseCase
}

// DowntimeHandler обрабатывает API запросы по простоям
type DowntimeHandler struct {
	useCases     DowntimeUseCases
	validator    *payload.Validator
	maxBodyBytes int64
	maxDays      int
	observer     DowntimeObserver
	logger       *logger.Logger
}

// NewDowntimeHandler создает новый handler; observer может быть nil
func NewDowntimeHandler(
	useCases DowntimeUseCases,
	validator *payload.Validator,
	maxBodyBytes int64,
	maxCustomDays int,
	observer DowntimeObserver,
	logger *logger.Logger,
) *DowntimeHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	return &DowntimeHandler{
		useCases:     useCases,
		validator:    validator,
		maxBodyBytes: maxBodyBytes,
		maxDays:      maxCustomDays,
		observer:     observer,
		logger:       logger,
	}
}

type closeDowntimeRequest struct {
	EndTime *time.Time `json:"endTime"`
}

// Create сохраняет один отчет о простое
func (h *DowntimeHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	req, err := h.validator.DecodeDowntime(body)
	if err != nil {
		writeError(w, h.logger, err, "Failed to decode downtime report")
		return
	}

	row, err := h.useCases.Report.Execute(r.Context(), req.ToCommand())
	if err != nil {
		writeError(w, h.logger, err, "Failed to report downtime")
		return
	}

	h.observeDowntimes([]*dto.DowntimeDTO{row})
	writeJSON(w, http.StatusCreated, row)
}

// CreateBatch сохраняет пакет отчетов целиком или не сохраняет ничего
func (h *DowntimeHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	batch, err := h.validator.DecodeBatch(body)
	if err != nil {
		writeError(w, h.logger, err, "Failed to decode downtime batch")
		return
	}

	rows, err := h.useCases.Report.ExecuteBatch(r.Context(), batch.ToCommands())
	if err != nil {
		writeError(w, h.logger, err, "Failed to report downtime batch")
		return
	}

	h.observeDowntimes(rows)
	writeJSON(w, http.StatusCreated, map[string]any{
		"downtimes": rows,
		"count":     len(rows),
	})
}

// List возвращает строки, пересекающие окно
func (h *DowntimeHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.useCases.List.Execute(r.Context(), reportQuery(r, h.maxDays))
	if err != nil {
		writeError(w, h.logger, err, "Failed to list downtime")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"downtimes": rows,
		"count":     len(rows),
	})
}

// GetIncident возвращает все строки инцидента
func (h *DowntimeHandler) GetIncident(w http.ResponseWriter, r *http.Request) {
	rows, err := h.useCases.List.FindIncident(r.Context(), r.PathValue("incident"))
	if err != nil {
		writeError(w, h.logger, err, "Failed to load incident")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"incidentId": r.PathValue("incident"),
		"downtimes":  rows,
	})
}

// Close завершает открытые строки инцидента
func (h *DowntimeHandler) Close(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req closeDowntimeRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, h.logger, domainerr.NewValidationError("body", "malformed JSON"), "")
			return
		}
	}

	cmd := usecase.CloseDowntimeCommand{IncidentID: r.PathValue("incident")}
	if req.EndTime != nil {
		cmd.EndTime = *req.EndTime
	}

	result, err := h.useCases.Close.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, h.logger, err, "Failed to close incident")
		return
	}

	if h.observer != nil {
		h.observer.ObserveIncidentClosed()
	}
	writeJSON(w, http.StatusOK, result)
}

// ChannelDowntime возвращает минуты простоя по каналам
func (h *DowntimeHandler) ChannelDowntime(w http.ResponseWriter, r *http.Request) {
	result, err := h.useCases.Channels.Execute(r.Context(), reportQuery(r, h.maxDays))
	if err != nil {
		writeError(w, h.logger, err, "Failed to compute channel downtime")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TypeSummary возвращает сводку по типам простоя
func (h *DowntimeHandler) TypeSummary(w http.ResponseWriter, r *http.Request) {
	result, err := h.useCases.TypeSummary.Execute(r.Context(), reportQuery(r, h.maxDays))
	if err != nil {
		writeError(w, h.logger, err, "Failed to compute downtime type summary")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *DowntimeHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return nil, false
	}
	return body, true
}

func (h *DowntimeHandler) observeDowntimes(rows []*dto.DowntimeDTO) {
	if h.observer != nil {
		h.observer.ObserveDowntimes(rows)
	}
}
