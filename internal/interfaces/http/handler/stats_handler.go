package handler

import (
	"net/http"

	"github.com/dreschagin/soc-portal/internal/application/usecase"
)

// StatsHandler отдает счетчики для карточек дашборда
type StatsHandler struct {
	statsUC *usecase.GetDashboardStatsUseCase
}

func NewStatsHandler(statsUC *usecase.GetDashboardStatsUseCase) *StatsHandler {
	return &StatsHandler{statsUC: statsUC}
}

// GetStats всегда отвечает 200; недоступные счетчики перечислены в degraded
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.statsUC.Execute(r.Context()))
}
