package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rdm-project/rdm-server/internal/api/http/dto"
	"github.com/rdm-project/rdm-server/internal/api/http/middleware"
	"github.com/rdm-project/rdm-server/internal/permissions"
)

type GrantHandler struct {
	service *permissions.Service
}

func NewGrantHandler(service *permissions.Service) *GrantHandler {
	return &GrantHandler{service: service}
}

func (h *GrantHandler) GrantDirect(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	deviceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.DirectGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.GrantDirect(c.Request.Context(), p, req.UserID, deviceID, req.Permission, c.ClientIP()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GrantHandler) RevokeDirect(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	deviceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	if err := h.service.RevokeDirect(c.Request.Context(), p, userID, deviceID, c.ClientIP()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GrantHandler) GrantGroup(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	deviceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.GroupGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.GrantGroup(c.Request.Context(), p, req.GroupID, deviceID, req.Permission, c.ClientIP()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GrantHandler) RevokeGroup(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	deviceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	groupID, ok := pathID(c, "groupId")
	if !ok {
		return
	}

	if err := h.service.RevokeGroup(c.Request.Context(), p, groupID, deviceID, c.ClientIP()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GrantHandler) CreateGroup(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.service.CreateGroup(c.Request.Context(), p, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": group.ID, "name": group.Name, "description": group.Description})
}

func (h *GrantHandler) AddMember(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.GroupMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.AddMember(c.Request.Context(), p, groupID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GrantHandler) RemoveMember(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	if err := h.service.RemoveMember(c.Request.Context(), p, groupID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
