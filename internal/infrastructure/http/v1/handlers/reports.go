package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"prodledger/internal/core/apperror"
	"prodledger/internal/domain/reports"
	"prodledger/internal/infrastructure/export"
	"prodledger/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// DailyRollup handles GET /reports/daily-rollup
func (h *ReportsHandler) DailyRollup(c *gin.Context) {
	rollup, ok := h.rollup(c)
	if !ok {
		return
	}
	h.OK(c, rollup)
}

// ExportDailyRollup handles GET /reports/daily-rollup/export
func (h *ReportsHandler) ExportDailyRollup(c *gin.Context) {
	rollup, ok := h.rollup(c)
	if !ok {
		return
	}

	// Render fully before writing so a failure still yields a JSON error.
	var buf bytes.Buffer
	if err := export.WriteRollup(&buf, rollup); err != nil {
		h.Error(c, apperror.NewInternal(err).WithDetail("component", "export"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(rollup)))
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

func (h *ReportsHandler) rollup(c *gin.Context) (*reports.Rollup, bool) {
	var q dto.DailyRollupQuery
	if !h.BindQuery(c, &q) {
		return nil, false
	}

	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return nil, false
	}

	rollup, err := h.service.DailyRollup(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return rollup, true
}
