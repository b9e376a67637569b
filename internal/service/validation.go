package service

import (
	"fmt"
	"strings"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// ValidateCreateOrderRequest validates an order creation request.
func ValidateCreateOrderRequest(req *models.CreateOrderRequest) error {
	if len(req.OrderItems) == 0 {
		return apperrors.NewValidationError("", "No order items found")
	}

	for i := range req.OrderItems {
		if err := validateOrderItem(&req.OrderItems[i], i); err != nil {
			return err
		}
	}

	if err := validateShippingAddress(&req.ShippingAddress); err != nil {
		return err
	}

	if strings.TrimSpace(req.PaymentDetails.Method) == "" && strings.TrimSpace(req.PaymentMethod) == "" {
		return apperrors.NewValidationError("paymentDetails.method", "payment method is required")
	}
	if strings.TrimSpace(req.PaymentDetails.TransactionID) == "" {
		return apperrors.NewValidationError("paymentDetails.transactionId", "transaction ID is required")
	}
	switch req.PaymentDetails.Status {
	case "", models.PaymentStatusPending, models.PaymentStatusCompleted, models.PaymentStatusFailed:
	default:
		return apperrors.NewValidationError("paymentDetails.status", fmt.Sprintf("invalid payment status %q", req.PaymentDetails.Status))
	}

	return nil
}

func validateOrderItem(item *models.OrderItem, index int) error {
	field := fmt.Sprintf("orderItems[%d]", index)

	if item.ProductID == "" {
		return apperrors.NewValidationError(field, "product is required")
	}
	if item.Size == "" {
		return apperrors.NewValidationError(field, "size is required")
	}
	if !models.ValidSizeLabel(item.Size.String()) {
		return apperrors.NewValidationError(field, fmt.Sprintf("invalid size %q", item.Size))
	}
	if item.Quantity <= 0 {
		return apperrors.NewValidationError(field, "quantity must be positive")
	}
	if item.Price < 0 {
		return apperrors.NewValidationError(field, "price cannot be negative")
	}

	return nil
}

func validateShippingAddress(addr *models.ShippingAddress) error {
	const field = "shippingAddress"

	if strings.TrimSpace(addr.Address) == "" {
		return apperrors.NewValidationError(field, "address is required")
	}
	if strings.TrimSpace(addr.City) == "" {
		return apperrors.NewValidationError(field, "city is required")
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		return apperrors.NewValidationError(field, "postal code is required")
	}
	if strings.TrimSpace(addr.Country) == "" {
		return apperrors.NewValidationError(field, "country is required")
	}

	return nil
}

// ValidateOrderStatus checks a requested target status.
func ValidateOrderStatus(status models.OrderStatus) error {
	if status == "" {
		return apperrors.NewValidationError("newStatus", "status is required")
	}
	if !status.IsValid() {
		return apperrors.NewValidationError("newStatus", fmt.Sprintf("invalid order status %q", status))
	}
	return nil
}

// validateSizes checks a stock map. With positive set every quantity must be
// greater than zero, otherwise zero is allowed.
func validateSizes(sizes map[string]int, positive bool) error {
	for size, qty := range sizes {
		if !models.ValidSizeLabel(size) {
			return apperrors.NewValidationError("sizes", fmt.Sprintf("invalid size %q", size))
		}
		if qty < 0 || (positive && qty == 0) {
			return apperrors.NewValidationError("sizes", fmt.Sprintf("invalid quantity %d for size %s", qty, size))
		}
	}
	return nil
}

// ValidateCreateProductRequest validates a new catalog entry.
func ValidateCreateProductRequest(req *models.CreateProductRequest) error {
	if req.Brand == "" || req.Name == "" || req.Price <= 0 || req.ImageURL == "" || req.Category == "" || len(req.Sizes) == 0 {
		return apperrors.NewValidationError("", "Please provide all required fields")
	}
	return validateSizes(req.Sizes, false)
}

// ValidateUpdateProductRequest validates a partial catalog update.
func ValidateUpdateProductRequest(req *models.UpdateProductRequest) error {
	if req.Price < 0 {
		return apperrors.NewValidationError("price", "price cannot be negative")
	}
	return validateSizes(req.Sizes, false)
}

// ValidateRestockRequest validates a restock request.
func ValidateRestockRequest(req *models.RestockRequest) error {
	if req.ProductID == "" {
		return apperrors.NewValidationError("productId", "productId is required")
	}
	if len(req.Sizes) == 0 {
		return apperrors.NewValidationError("sizes", "at least one size is required")
	}
	return validateSizes(req.Sizes, true)
}
