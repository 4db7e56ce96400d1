package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rdm-project/rdm-server/internal/api/http/dto"
	"github.com/rdm-project/rdm-server/internal/api/http/middleware"
	"github.com/rdm-project/rdm-server/internal/sessions"
	"github.com/rdm-project/rdm-server/internal/store"
)

type ConnectionHandler struct {
	broker *sessions.Broker
}

func NewConnectionHandler(broker *sessions.Broker) *ConnectionHandler {
	return &ConnectionHandler{broker: broker}
}

func (h *ConnectionHandler) Initiate(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	var req dto.InitiateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.broker.Initiate(c.Request.Context(), p, req.DeviceID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.InitiateConnectionResponse{
		ConnectionURL:   result.ConnectionURL,
		ConnectionLogID: result.SessionLogID,
		GatewayConnID:   result.GatewayRef,
		DeviceName:      result.DeviceName,
		Protocol:        string(result.Protocol),
		CanControl:      result.CanControl,
	})
}

func (h *ConnectionHandler) End(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.EndConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.broker.End(c.Request.Context(), p, id, store.SessionStatus(req.Status)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ConnectionHandler) Logs(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	page, size := pageParams(c)

	items, total, err := h.broker.ListForUser(c.Request.Context(), p, page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLogPage(items, total, page, size))
}

func (h *ConnectionHandler) DeviceLogs(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, size := pageParams(c)

	items, total, err := h.broker.ListForDevice(c.Request.Context(), p, id, page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLogPage(items, total, page, size))
}

func toLogPage(items []store.SessionLog, total int64, page, size int) dto.Page[dto.ConnectionLogResponse] {
	result := make([]dto.ConnectionLogResponse, len(items))
	for i, l := range items {
		result[i] = dto.ConnectionLogResponse{
			ID:              l.ID,
			UserID:          l.UserID,
			DeviceID:        l.DeviceID,
			ConnectionStart: l.ConnectionStart,
			ConnectionEnd:   l.ConnectionEnd,
			Duration:        l.Duration,
			Status:          string(l.Status),
			IPAddress:       l.IPAddress,
			UserAgent:       l.UserAgent,
		}
	}
	return dto.Page[dto.ConnectionLogResponse]{Items: result, Total: total, Page: page, Size: size}
}
