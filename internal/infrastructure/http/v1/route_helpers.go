// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	GetByCode(c *gin.Context)
	SetActive(c *gin.Context)
}

// RegisterCatalogRoutes registers the standard routes for a catalog.
//
// Usage:
//
//	handler := handlers.NewCatalogHandler(base, lines.CatalogService, dto.CreateLineRequest.ToLine)
//	RegisterCatalogRoutes(catalogs.Group("/lines"), handler)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.GET("/by-code/:code", handler.GetByCode)
	group.POST("/:id/active", handler.SetActive)
}
