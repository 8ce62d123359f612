package handlers

import (
	"github.com/gin-gonic/gin"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
	"prodledger/internal/domain/audit"
	"prodledger/internal/domain/production"
	"prodledger/internal/infrastructure/http/v1/dto"
)

// ProductionHandler handles HTTP requests for production entries.
type ProductionHandler struct {
	*BaseHandler
	service *production.Service
	history audit.Reader
}

// NewProductionHandler creates a new production entry handler. history may be nil.
func NewProductionHandler(base *BaseHandler, service *production.Service, history audit.Reader) *ProductionHandler {
	return &ProductionHandler{
		BaseHandler: base,
		service:     service,
		history:     history,
	}
}

// Add handles POST /production-entries
func (h *ProductionHandler) Add(c *gin.Context) {
	var req dto.AddEntryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lineID, err := id.Parse(req.LineID)
	if err != nil {
		h.Error(c, apperror.NewValidation("lineId must be a UUID").WithDetail("field", "lineId"))
		return
	}
	styleID, err := id.Parse(req.StyleID)
	if err != nil {
		h.Error(c, apperror.NewValidation("styleId must be a UUID").WithDetail("field", "styleId"))
		return
	}

	res, err := h.service.Add(c.Request.Context(), production.AddInput{
		Date:       req.Date,
		HourIndex:  *req.HourIndex,
		LineID:     lineID,
		StyleID:    styleID,
		Stage:      entity.Stage(req.Stage),
		Quantities: req.ToQuantities(),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromEntryResult(res))
}

// Correct handles PATCH /production-entries/:id
func (h *ProductionHandler) Correct(c *gin.Context) {
	entryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.CorrectEntryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Correct(c.Request.Context(), entryID, req.ToQuantities())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromEntryResult(res))
}

// Get handles GET /production-entries/:id
func (h *ProductionHandler) Get(c *gin.Context) {
	entryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	e, err := h.service.Get(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromEntry(e))
}

// List handles GET /production-entries
func (h *ProductionHandler) List(c *gin.Context) {
	var q dto.ListEntriesQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := production.ListFilter{
		From:   types.Day(q.From),
		To:     types.Day(q.To),
		Stage:  entity.Stage(q.Stage),
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if q.LineID != "" {
		v, err := id.Parse(q.LineID)
		if err != nil {
			h.Error(c, apperror.NewValidation("lineId must be a UUID").WithDetail("field", "lineId"))
			return
		}
		filter.LineID = &v
	}
	if q.StyleID != "" {
		v, err := id.Parse(q.StyleID)
		if err != nil {
			h.Error(c, apperror.NewValidation("styleId must be a UUID").WithDetail("field", "styleId"))
			return
		}
		filter.StyleID = &v
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse[dto.EntryResponse]{
		Items:      dto.FromEntries(res.Items),
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	})
}

// History handles GET /production-entries/:id/history
func (h *ProductionHandler) History(c *gin.Context) {
	serveHistory(c, h.BaseHandler, h.history, production.EntityType)
}
