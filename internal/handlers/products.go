package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// ListProducts handles GET /api/products
func (h *Handlers) ListProducts(c *gin.Context) {
	products, err := h.productService.ListProducts(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetProduct handles GET /api/products/:id
func (h *Handlers) GetProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

// CreateProduct handles POST /api/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// UpdateProduct handles PUT /api/products/:id
func (h *Handlers) UpdateProduct(c *gin.Context) {
	var req models.UpdateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

// RestockProduct handles PATCH /api/products/restock
func (h *Handlers) RestockProduct(c *gin.Context) {
	var req models.RestockRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := h.productService.Restock(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product restocked successfully",
		"product": product,
	})
}

// DeleteProduct handles DELETE /api/products/:id
func (h *Handlers) DeleteProduct(c *gin.Context) {
	if err := h.productService.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
