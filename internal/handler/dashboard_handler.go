package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/service"
)

type DashboardHandler struct {
	reports *service.ReportService
	logger  *zap.Logger
}

func NewDashboardHandler(reports *service.ReportService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{reports: reports, logger: logger}
}

func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.reports.Summary(r.Context())
	if err != nil {
		h.logger.Error("report summary failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
