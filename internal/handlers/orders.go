package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// CreateOrder handles POST /api/orders
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	actor, _ := middleware.ActorFrom(c)
	order, err := h.orderService.CreateOrder(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /api/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	order, err := h.orderService.GetOrder(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /api/orders
func (h *Handlers) ListOrders(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	orders, err := h.orderService.ListOrders(c.Request.Context(), actor)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetMyOrders handles GET /api/orders/my-orders
func (h *Handlers) GetMyOrders(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	orders, err := h.orderService.ListUserOrders(c.Request.Context(), actor)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// UpdateOrderStatus handles PUT /api/orders/:id
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	actor, _ := middleware.ActorFrom(c)
	order, err := h.orderService.TransitionOrder(c.Request.Context(), actor, c.Param("id"), req.NewStatus)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Order status updated to %s", order.OrderStatus),
		"order":   order,
	})
}

// CancelOrder handles PUT /api/orders/:id/cancel
func (h *Handlers) CancelOrder(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	order, err := h.orderService.CancelOrder(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled successfully",
		"order":   order,
	})
}

// DeleteOrder handles DELETE /api/orders/:id
func (h *Handlers) DeleteOrder(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	if err := h.orderService.DeleteOrder(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order removed"})
}
