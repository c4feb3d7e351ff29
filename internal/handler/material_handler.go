package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cai360/TVBsAdScheduler/internal/dto"
	"github.com/cai360/TVBsAdScheduler/internal/models"
	"github.com/cai360/TVBsAdScheduler/internal/service"
	appErrors "github.com/cai360/TVBsAdScheduler/pkg/errors"
	"github.com/cai360/TVBsAdScheduler/pkg/response"
)

type materialLookup interface {
	List(ctx context.Context, query dto.MaterialQuery) ([]models.Material, *models.Pagination, error)
}

type deliveryLookup interface {
	Get(ctx context.Context, id string) (*models.LogDelivery, error)
}

// CatalogueHandler serves read-only lookups used by the arrangement screen.
type CatalogueHandler struct {
	materials  materialLookup
	deliveries deliveryLookup
}

// NewCatalogueHandler constructs the handler.
func NewCatalogueHandler(materials *service.MaterialService, deliveries *service.LogDeliveryService) *CatalogueHandler {
	return &CatalogueHandler{materials: materials, deliveries: deliveries}
}

// Materials godoc
// @Summary List catalogue materials
// @Tags Catalogue
// @Produce json
// @Param channelId query string false "Only materials allowed on this channel"
// @Param kind query string false "Material kind (C, I, G, 9)"
// @Param date query string false "Only materials valid on this date"
// @Param q query string false "Code or name search"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /materials [get]
func (h *CatalogueHandler) Materials(c *gin.Context) {
	var query dto.MaterialQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid material query"))
		return
	}
	materials, pagination, err := h.materials.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, pagination)
}

// Delivery godoc
// @Summary Get the delivery status of a converted LOG
// @Tags Logs
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} response.Envelope
// @Router /deliveries/{id} [get]
func (h *CatalogueHandler) Delivery(c *gin.Context) {
	delivery, err := h.deliveries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, delivery, nil)
}
