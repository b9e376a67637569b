package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// memoryDB holds every collection behind one lock. Values are copied on the
// way in and out so callers never share state with the store.
type memoryDB struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	orders   map[string]*models.Order
	users    map[string]*models.User
}

// NewMemoryStore returns a Store backed by process memory.
func NewMemoryStore() *Store {
	db := &memoryDB{
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		users:    make(map[string]*models.User),
	}
	products := &MemoryProductRepository{db: db}

	return &Store{
		Products: products,
		Stock:    products,
		Orders:   &MemoryOrderRepository{db: db},
		Users:    &MemoryUserRepository{db: db},
	}
}

// MemoryProductRepository implements ProductRepository and StockLedger.
type MemoryProductRepository struct {
	db *memoryDB
}

func (r *MemoryProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.products[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryProductRepository) List(ctx context.Context) ([]*models.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	products := make([]*models.Product, 0, len(r.db.products))
	for _, p := range r.db.products {
		products = append(products, p.Clone())
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (r *MemoryProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.products[product.ID]; ok {
		return apperrors.ErrDuplicate
	}
	r.db.products[product.ID] = product.Clone()
	return nil
}

func (r *MemoryProductRepository) Update(ctx context.Context, product *models.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.products[product.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.db.products[product.ID] = product.Clone()
	return nil
}

func (r *MemoryProductRepository) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.products[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.db.products, id)
	return nil
}

func (r *MemoryProductRepository) DecrementStock(ctx context.Context, productID, size string, qty int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.products[productID]
	if !ok {
		return apperrors.ErrNotFound
	}
	available, ok := p.Sizes[size]
	if !ok || available < qty {
		return apperrors.ErrInsufficientStock
	}
	p.Sizes[size] = available - qty
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryProductRepository) IncrementStock(ctx context.Context, productID, size string, qty int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.products[productID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if p.Sizes == nil {
		p.Sizes = make(map[string]int)
	}
	p.Sizes[size] += qty
	p.UpdatedAt = time.Now()
	return nil
}

// MemoryOrderRepository implements OrderRepository.
type MemoryOrderRepository struct {
	db *memoryDB
}

func (r *MemoryOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.orders[order.ID]; ok {
		return apperrors.ErrDuplicate
	}
	order.CalculateTotal()
	r.db.orders[order.ID] = order.Clone()
	return nil
}

func (r *MemoryOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	o, ok := r.db.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) List(ctx context.Context, filter models.OrderListFilter) ([]*models.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	orders := make([]*models.Order, 0)
	for _, o := range r.db.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		orders = append(orders, o.Clone())
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r *MemoryOrderRepository) UpdateStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	o, ok := r.db.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if !containsStatus(from, o.OrderStatus) {
		return nil, apperrors.ErrStatusConflict
	}
	o.SetStatus(to, at)
	o.CalculateTotal()
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, at time.Time) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	o, ok := r.db.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	o.PaymentDetails.Status = status
	o.UpdatedAt = at
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.orders[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.db.orders, id)
	return nil
}

// MemoryUserRepository implements UserRepository.
type MemoryUserRepository struct {
	db *memoryDB
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperrors.ErrDuplicate
		}
	}
	c := *user
	r.db.users[user.ID] = &c
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}
