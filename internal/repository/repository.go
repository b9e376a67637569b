package repository

import (
	"context"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// ProductRepository persists catalog entries.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context) ([]*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}

// StockLedger mutates the per-size stock counters of a single product.
// Each call is atomic with respect to that product; there is no atomicity
// across products.
type StockLedger interface {
	// DecrementStock removes qty units of size. It returns
	// apperrors.ErrNotFound if the product does not exist and
	// apperrors.ErrInsufficientStock if the size is absent or holds fewer
	// than qty units. A failed call never changes the stored quantity.
	DecrementStock(ctx context.Context, productID, size string, qty int) error

	// IncrementStock adds qty units of size, creating the size entry if it
	// is absent. It returns apperrors.ErrNotFound if the product does not
	// exist.
	IncrementStock(ctx context.Context, productID, size string, qty int) error
}

// OrderRepository persists orders.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// List returns matching orders, newest first.
	List(ctx context.Context, filter models.OrderListFilter) ([]*models.Order, error)
	// UpdateStatus moves the order to status "to" only if its current status
	// is one of "from". The timestamp for "to" is stamped with "at" unless it
	// is already set. Returns apperrors.ErrStatusConflict when the current
	// status is not in "from".
	UpdateStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (*models.Order, error)
	// UpdatePaymentStatus sets paymentDetails.status without touching the
	// order status.
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, at time.Time) (*models.Order, error)
	Delete(ctx context.Context, id string) error
}

// UserRepository persists accounts.
type UserRepository interface {
	// Create returns apperrors.ErrDuplicate if the email is taken.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// OrderCache defines caching operations for orders.
type OrderCache interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
	GetByUserID(ctx context.Context, userID string) ([]*models.Order, error)
	SetByUserID(ctx context.Context, userID string, orders []*models.Order) error
	InvalidateByUserID(ctx context.Context, userID string) error
}

// Store bundles the repositories of one backend.
type Store struct {
	Products ProductRepository
	Stock    StockLedger
	Orders   OrderRepository
	Users    UserRepository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping checks connectivity with the backend.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend connection.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

func containsStatus(statuses []models.OrderStatus, status models.OrderStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
