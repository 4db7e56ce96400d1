package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rdm-project/rdm-server/internal/api/http/dto"
	"github.com/rdm-project/rdm-server/internal/api/http/middleware"
	"github.com/rdm-project/rdm-server/internal/store"
	"github.com/rdm-project/rdm-server/internal/users"
)

type UserHandler struct {
	service *users.Service
}

func NewUserHandler(service *users.Service) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Create(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.Create(c.Request.Context(), p, req.Username, req.Password, store.Role(req.Role), c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h *UserHandler) List(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	page, size := pageParams(c)

	items, total, err := h.service.List(c.Request.Context(), p, page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	result := make([]dto.UserResponse, len(items))
	for i, u := range items {
		result[i] = toUserResponse(u)
	}
	c.JSON(http.StatusOK, dto.Page[dto.UserResponse]{Items: result, Total: total, Page: page, Size: size})
}

func (h *UserHandler) Get(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.Get(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) Update(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := users.UpdateInput{IsActive: req.IsActive}
	if req.Role != nil {
		role := store.Role(*req.Role)
		in.Role = &role
	}

	user, err := h.service.Update(c.Request.Context(), p, id, in, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}
