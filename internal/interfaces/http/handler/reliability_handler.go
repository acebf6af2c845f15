package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dreschagin/soc-portal/internal/application/dto"
	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// ReportObserver получает каждый рассчитанный отчет (gauges)
type ReportObserver interface {
	ObserveReport(report *dto.ReliabilityReportDTO)
}

// ReliabilityHandler обрабатывает отчет о надежности и его выгрузки
type ReliabilityHandler struct {
	reporter usecase.ReliabilityReporter
	exporter *usecase.ExportReliabilityReportUseCase
	exports  *usecase.ListReportExportsUseCase
	maxDays  int
	observer ReportObserver
	logger   *logger.Logger
}

// NewReliabilityHandler создает новый handler; exporter, exports и observer могут быть nil
func NewReliabilityHandler(
	reporter usecase.ReliabilityReporter,
	exporter *usecase.ExportReliabilityReportUseCase,
	exports *usecase.ListReportExportsUseCase,
	maxCustomDays int,
	observer ReportObserver,
	logger *logger.Logger,
) *ReliabilityHandler {
	return &ReliabilityHandler{
		reporter: reporter,
		exporter: exporter,
		exports:  exports,
		maxDays:  maxCustomDays,
		observer: observer,
		logger:   logger,
	}
}

// GetReport возвращает отчет о надежности за окно
func (h *ReliabilityHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Execute(r.Context(), reportQuery(r, h.maxDays))
	if err != nil {
		writeError(w, h.logger, err, "Failed to compute reliability report")
		return
	}

	if h.observer != nil {
		h.observer.ObserveReport(report)
	}
	writeJSON(w, http.StatusOK, report)
}

// Export выгружает отчет в CSV и возвращает ссылку
func (h *ReliabilityHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "report export storage is not configured"})
		return
	}

	export, err := h.exporter.Execute(r.Context(), reportQuery(r, h.maxDays))
	if err != nil {
		writeError(w, h.logger, err, "Failed to export reliability report")
		return
	}
	writeJSON(w, http.StatusCreated, export)
}

// ListExports возвращает последние выгрузки
func (h *ReliabilityHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "report export storage is not configured"})
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Field: "limit", Reason: "must be a positive integer"})
			return
		}
		limit = parsed
	}

	result, err := h.exports.Execute(r.Context(), usecase.ListReportExportsCommand{
		Range:  strings.TrimSpace(q.Get("range")),
		Limit:  limit,
		Cursor: strings.TrimSpace(q.Get("cursor")),
	})
	if err != nil {
		writeError(w, h.logger, err, "Failed to list report exports")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
