package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
	"go.uber.org/zap"
)

// Handlers holds all HTTP handlers for the storefront service.
type Handlers struct {
	orderService   *service.OrderService
	productService *service.ProductService
	userService    *service.UserService
	store          *repository.Store
	config         *config.Config
	logger         *zap.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	orderService *service.OrderService,
	productService *service.ProductService,
	userService *service.UserService,
	store *repository.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		orderService:   orderService,
		productService: productService,
		userService:    userService,
		store:          store,
		config:         cfg,
		logger:         logger.Named("handlers"),
	}
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Debug("Failed to bind request", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// handleError maps service errors onto status codes. Unknown errors are
// logged and reported as 500 without leaking their text.
func (h *Handlers) handleError(c *gin.Context, err error) {
	var (
		validationErr *apperrors.ValidationError
		stockErr      *apperrors.InsufficientStockError
		stateErr      *apperrors.InvalidStateError
	)

	switch {
	case errors.As(err, &validationErr):
		body := gin.H{"error": validationErr.Error()}
		if validationErr.Details != "" {
			body["details"] = validationErr.Details
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   stockErr.Error(),
			"product": stockErr.ProductID,
			"size":    stockErr.Size,
		})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": stateErr.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to access this resource"})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
