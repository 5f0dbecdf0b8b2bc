package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/nutriplan/backend/internal/service"
	"github.com/pageza/nutriplan/backend/internal/types"
)

// CatalogHandler exposes the food catalog filter.
type CatalogHandler struct {
	catalog service.CatalogFilter
}

func NewCatalogHandler(catalog service.CatalogFilter) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/catalog/filter", h.Filter)
}

// Filter returns up to 20 catalog rows for the given age, conditions and goal.
func (h *CatalogHandler) Filter(c *gin.Context) {
	var req types.CatalogFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.catalog.Filter(c.Request.Context(), req.Age, req.Conditions, req.Goal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.CatalogFilterResponse{Count: len(rows), Rows: rows})
}
