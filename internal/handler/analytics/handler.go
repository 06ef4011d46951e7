package analytics

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/handler"
	"github.com/aimkt/marketing-api/internal/service/analytics"
)

type Handler struct {
	service *analytics.Service
}

func NewHandler(service *analytics.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	metrics := r.Group("/metrics")
	{
		metrics.GET("/campaigns/:id", h.CampaignMetrics)
		metrics.GET("/dashboard", h.Dashboard)
		metrics.GET("/export", h.Export)
	}
}

func (h *Handler) CampaignMetrics(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	metrics, err := h.service.Summarize(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(metrics))
}

func (h *Handler) Dashboard(c *gin.Context) {
	accountID, err := uuid.Parse(c.Query("account_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid account ID"))
		return
	}

	summary, err := h.service.DashboardSummary(c.Request.Context(), accountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) Export(c *gin.Context) {
	accountID, err := uuid.Parse(c.Query("account_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid account ID"))
		return
	}

	format := analytics.ExportFormat(c.DefaultQuery("format", "csv"))
	data, contentType, err := h.service.Export(c.Request.Context(), accountID, format)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=campaign-metrics.%s", format))
	c.Data(http.StatusOK, contentType, data)
}
