package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rdm-project/rdm-server/internal/api/http/dto"
	"github.com/rdm-project/rdm-server/internal/api/http/middleware"
	"github.com/rdm-project/rdm-server/internal/devices"
	"github.com/rdm-project/rdm-server/internal/store"
)

type DeviceHandler struct {
	service *devices.Service
}

func NewDeviceHandler(service *devices.Service) *DeviceHandler {
	return &DeviceHandler{service: service}
}

func (h *DeviceHandler) Create(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	var req dto.CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.service.Create(c.Request.Context(), p, devices.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Host:        req.Host,
		Port:        req.Port,
		Protocol:    store.Protocol(req.Protocol),
		Username:    req.Username,
		Password:    req.Password,
		PrivateKey:  req.PrivateKey,
		Tags:        req.Tags,
	}, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDeviceResponse(device))
}

func (h *DeviceHandler) Update(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := devices.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Host:        req.Host,
		Port:        req.Port,
		Username:    req.Username,
		Password:    req.Password,
		PrivateKey:  req.PrivateKey,
		Tags:        req.Tags,
		IsActive:    req.IsActive,
	}
	if req.Protocol != nil {
		protocol := store.Protocol(*req.Protocol)
		in.Protocol = &protocol
	}

	device, err := h.service.Update(c.Request.Context(), p, id, in, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeviceResponse(device))
}

func (h *DeviceHandler) Delete(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), p, id, c.ClientIP()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DeviceHandler) Get(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	device, err := h.service.Get(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeviceResponse(device))
}

func (h *DeviceHandler) List(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	page, size := pageParams(c)
	filter := store.DeviceFilter{
		Name:     c.Query("name"),
		Protocol: store.Protocol(c.Query("protocol")),
	}

	items, total, err := h.service.List(c.Request.Context(), p, filter, page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	result := make([]dto.DeviceResponse, len(items))
	for i, d := range items {
		result[i] = toDeviceResponse(d)
	}
	c.JSON(http.StatusOK, dto.Page[dto.DeviceResponse]{Items: result, Total: total, Page: page, Size: size})
}

func toDeviceResponse(d store.Device) dto.DeviceResponse {
	return dto.DeviceResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Host:        d.Host,
		Port:        d.Port,
		Protocol:    string(d.Protocol),
		Username:    d.Username,
		Status:      d.Status,
		Tags:        d.Tags,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
