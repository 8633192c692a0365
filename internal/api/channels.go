package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kvasnell/telezap/internal/channels"
	"github.com/kvasnell/telezap/internal/models"
)

// ChannelRequest describes one channel in a list replacement
type ChannelRequest struct {
	Number      int    `json:"number" binding:"required,gt=0"`
	Name        string `json:"name" binding:"required"`
	URLTemplate string `json:"url_template" binding:"required"`
}

// ReplaceChannelsRequest carries a full channel list replacement
type ReplaceChannelsRequest struct {
	Channels []ChannelRequest `json:"channels" binding:"required"`
}

// ChannelsHandler handles channel list requests
type ChannelsHandler struct {
	service *channels.Service
}

// NewChannelsHandler creates a new channel list handler
func NewChannelsHandler(service *channels.Service) *ChannelsHandler {
	return &ChannelsHandler{service: service}
}

// List handles GET /channels
func (h *ChannelsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.service.List()})
}

// Replace handles PUT /channels, swapping the whole active list at once
func (h *ChannelsHandler) Replace(c *gin.Context) {
	var req ReplaceChannelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	list := make([]models.Channel, 0, len(req.Channels))
	for _, ch := range req.Channels {
		list = append(list, *models.NewChannel(ch.Number, ch.Name, ch.URLTemplate))
	}

	if err := h.service.Replace(c.Request.Context(), list); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid_channel_list", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "replaced", "channels": len(list)})
}

// SetupChannelRoutes registers channel list routes behind the preflight gate
func SetupChannelRoutes(apiGroup *gin.RouterGroup, handler *ChannelsHandler, gate gin.HandlerFunc) {
	group := apiGroup.Group("/channels", gate)
	group.GET("", handler.List)
	group.PUT("", handler.Replace)
}
