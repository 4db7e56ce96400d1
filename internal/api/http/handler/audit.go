package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rdm-project/rdm-server/internal/api/http/dto"
	"github.com/rdm-project/rdm-server/internal/store"
)

type AuditHandler struct {
	store *store.Store
}

func NewAuditHandler(st *store.Store) *AuditHandler {
	return &AuditHandler{store: st}
}

type auditLogResponse struct {
	ID           int64          `json:"id"`
	UserID       *int64         `json:"userId,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   int64          `json:"resourceId"`
	Details      map[string]any `json:"details"`
	IPAddress    string         `json:"ipAddress"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// List is admin-only (enforced by route middleware).
func (h *AuditHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	if size > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page size cannot exceed 100"})
		return
	}
	if size <= 0 {
		size = 20
	}
	if page < 1 {
		page = 1
	}

	items, total, err := h.store.ListAuditLogs(c.Request.Context(), size, (page-1)*size)
	if err != nil {
		respondError(c, err)
		return
	}

	result := make([]auditLogResponse, len(items))
	for i, l := range items {
		result[i] = auditLogResponse{
			ID:           l.ID,
			UserID:       l.UserID,
			Action:       string(l.Action),
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			Details:      l.Details,
			IPAddress:    l.IPAddress,
			CreatedAt:    l.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, dto.Page[auditLogResponse]{Items: result, Total: total, Page: page, Size: size})
}
