package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// defaultRange используется, когда клиент не передал range
const defaultRange = "thisWeek"

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError переводит ошибку use case в HTTP статус
func writeError(w http.ResponseWriter, log *logger.Logger, err error, message string) {
	var validationErr *domainerr.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation failed",
			Field:  validationErr.Field,
			Reason: validationErr.Reason,
		})
	case domainerr.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		log.Error(message, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: message})
	}
}

// reportQuery собирает параметры отчетного запроса из query string
func reportQuery(r *http.Request, maxCustomDays int) usecase.ReportQuery {
	q := r.URL.Query()

	rangeToken := strings.TrimSpace(q.Get("range"))
	if rangeToken == "" {
		rangeToken = defaultRange
	}

	return usecase.ReportQuery{
		Range:         rangeToken,
		StartDate:     strings.TrimSpace(q.Get("startDate")),
		EndDate:       strings.TrimSpace(q.Get("endDate")),
		Channel:       strings.TrimSpace(q.Get("channel")),
		Category:      strings.TrimSpace(q.Get("category")),
		Modality:      strings.TrimSpace(q.Get("modality")),
		ImpactType:    strings.TrimSpace(q.Get("impactType")),
		Reliability:   strings.TrimSpace(q.Get("reliability")),
		MaxCustomDays: maxCustomDays,
	}
}
