package handlers

import (
	"github.com/gin-gonic/gin"

	"prodledger/internal/domain"
	"prodledger/internal/infrastructure/http/v1/dto"
)

// CatalogHandler provides generic HTTP handlers for catalog entities.
// T is returned as-is; catalog entities carry their own JSON tags.
type CatalogHandler[T domain.CatalogItem, CreateDTO any] struct {
	*BaseHandler
	service      *domain.CatalogService[T]
	mapCreateDTO func(req CreateDTO) T
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler[T domain.CatalogItem, CreateDTO any](
	base *BaseHandler,
	service *domain.CatalogService[T],
	mapCreateDTO func(req CreateDTO) T,
) *CatalogHandler[T, CreateDTO] {
	return &CatalogHandler[T, CreateDTO]{
		BaseHandler:  base,
		service:      service,
		mapCreateDTO: mapCreateDTO,
	}
}

// List handles GET /catalog/{entity}
func (h *CatalogHandler[T, CreateDTO]) List(c *gin.Context) {
	var q dto.CatalogListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := result.Items
	if items == nil {
		items = []T{}
	}
	h.OK(c, dto.ListResponse[T]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /catalog/{entity}/:id
func (h *CatalogHandler[T, CreateDTO]) Get(c *gin.Context) {
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	item, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, item)
}

// GetByCode handles GET /catalog/{entity}/by-code/:code
func (h *CatalogHandler[T, CreateDTO]) GetByCode(c *gin.Context) {
	item, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, item)
}

// Create handles POST /catalog/{entity}
func (h *CatalogHandler[T, CreateDTO]) Create(c *gin.Context) {
	var req CreateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	item := h.mapCreateDTO(req)
	if err := h.service.Create(c.Request.Context(), item); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, item)
}

// SetActive handles POST /catalog/{entity}/:id/active
func (h *CatalogHandler[T, CreateDTO]) SetActive(c *gin.Context) {
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), entityID, *req.Active); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
