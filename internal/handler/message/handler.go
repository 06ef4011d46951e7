package message

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/handler"
	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/service/message"
)

type Handler struct {
	service *message.Service
}

func NewHandler(service *message.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/campaigns/:id/messages", h.ListByCampaign)
	r.GET("/messages/:id/attempts", h.ListAttempts)
}

// RegisterPublicRoutes exposes event ingestion without authentication:
// tracking pixels and wrapped links in delivered mail cannot carry a bearer
// token.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/messages/:id/events", h.RecordEvent)
}

type eventRequest struct {
	Event string `json:"event" binding:"required,oneof=opened clicked"`
}

// RecordEvent ingests an open or click event for a delivered message,
// typically from the tracking pixel or a wrapped link.
func (h *Handler) RecordEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.RecordEvent(c.Request.Context(), id, model.MessageEvent(req.Event)); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

type listMessagesQuery struct {
	Channel string `form:"channel" binding:"omitempty,channel"`
}

func (h *Handler) ListByCampaign(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	var query listMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	messages, err := h.service.ListByCampaign(c.Request.Context(), campaignID, model.Channel(query.Channel))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(messages))
}

func (h *Handler) ListAttempts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}

	attempts, err := h.service.ListAttempts(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(attempts))
}
