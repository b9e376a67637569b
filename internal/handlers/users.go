package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// Register handles POST /api/users/register
func (h *Handlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/users/login
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
