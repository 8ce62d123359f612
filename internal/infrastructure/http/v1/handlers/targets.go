package handlers

import (
	"github.com/gin-gonic/gin"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
	"prodledger/internal/domain/audit"
	"prodledger/internal/domain/targets"
	"prodledger/internal/infrastructure/http/v1/dto"
)

// TargetsHandler handles HTTP requests for target events.
type TargetsHandler struct {
	*BaseHandler
	service *targets.Service
	history audit.Reader
}

// NewTargetsHandler creates a new targets handler. history may be nil.
func NewTargetsHandler(base *BaseHandler, service *targets.Service, history audit.Reader) *TargetsHandler {
	return &TargetsHandler{
		BaseHandler: base,
		service:     service,
		history:     history,
	}
}

// Create handles POST /targets
func (h *TargetsHandler) Create(c *gin.Context) {
	var req dto.CreateTargetRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromTargetResult(res))
}

// List handles GET /targets
func (h *TargetsHandler) List(c *gin.Context) {
	var q dto.ListTargetsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	res, err := h.service.List(c.Request.Context(), targets.ListFilter{
		From:      types.Day(q.From),
		To:        types.Day(q.To),
		LineCode:  q.LineCode,
		StyleCode: q.StyleCode,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse[dto.TargetResponse]{
		Items:      dto.FromTargets(res.Items),
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	})
}

// Get handles GET /targets/:id
func (h *TargetsHandler) Get(c *gin.Context) {
	targetID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	t, err := h.service.Get(c.Request.Context(), targetID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTarget(t))
}

// Replace handles PUT /targets/:id. The successor gets a new id.
func (h *TargetsHandler) Replace(c *gin.Context) {
	targetID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.CreateTargetRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Replace(c.Request.Context(), targetID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTargetResult(res))
}

// Delete handles DELETE /targets/:id
func (h *TargetsHandler) Delete(c *gin.Context) {
	targetID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	res, err := h.service.Delete(c.Request.Context(), targetID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTargetResult(res))
}

// BulkDelete handles POST /targets/bulk-delete. Per-item failures are
// reported in the body; the request itself succeeds. When the final delete
// fails after reconciliation ran, the error carries the report in
// details.report.
func (h *TargetsHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkDeleteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ids, err := id.ParseMany(req.IDs)
	if err != nil {
		h.Error(c, apperror.NewValidation("ids must be UUIDs").WithDetail("error", err.Error()))
		return
	}

	report, err := h.service.BulkDelete(c.Request.Context(), ids)
	if err != nil {
		if report.ReconciledCount > 0 || len(report.Errors) > 0 {
			appErr, ok := apperror.AsAppError(err)
			if !ok {
				appErr = apperror.NewInternal(err)
			}
			err = appErr.WithDetail("report", dto.FromBatchReport(report))
		}
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBatchReport(report))
}

// History handles GET /targets/:id/history
func (h *TargetsHandler) History(c *gin.Context) {
	serveHistory(c, h.BaseHandler, h.history, targets.EntityType)
}

func serveHistory(c *gin.Context, h *BaseHandler, reader audit.Reader, entityType string) {
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if reader == nil {
		h.Error(c, apperror.NewNotFound("history", entityID.String()))
		return
	}

	var q dto.PageQuery
	if !h.BindQuery(c, &q) {
		return
	}

	entries, err := reader.History(c.Request.Context(), entityType, entityID, q.Limit)
	if err != nil {
		h.Error(c, apperror.Persistence("audit.history", err))
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	h.OK(c, gin.H{"items": entries})
}
