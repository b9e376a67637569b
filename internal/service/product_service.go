package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"go.uber.org/zap"
)

// ProductService manages the catalog and restocking.
type ProductService struct {
	products repository.ProductRepository
	stock    repository.StockLedger
	logger   *zap.Logger
	now      func() time.Time
}

func NewProductService(store *repository.Store, logger *zap.Logger) *ProductService {
	return &ProductService{
		products: store.Products,
		stock:    store.Stock,
		logger:   logger.Named("product-service"),
		now:      time.Now,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if err := ValidateCreateProductRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	product := &models.Product{
		ID:          uuid.NewString(),
		Brand:       req.Brand,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
		Sizes:       make(map[string]int, len(req.Sizes)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for size, qty := range req.Sizes {
		product.Sizes[size] = qty
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Product", id)
	}
	return product, err
}

func (s *ProductService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.products.List(ctx)
}

// UpdateProduct applies a partial update. A supplied sizes map replaces the
// stored stock map wholesale.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, error) {
	if err := ValidateUpdateProductRequest(req); err != nil {
		return nil, err
	}

	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(product)
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Product", id)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("Product updated", zap.String("product_id", id))
	return product, nil
}

// Restock adds the given quantities through the stock ledger so it never
// overwrites concurrent reservations.
func (s *ProductService) Restock(ctx context.Context, req *models.RestockRequest) (*models.Product, error) {
	if err := ValidateRestockRequest(req); err != nil {
		return nil, err
	}

	if _, err := s.GetProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}

	sizes := make([]string, 0, len(req.Sizes))
	for size := range req.Sizes {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)

	for _, size := range sizes {
		if err := s.stock.IncrementStock(ctx, req.ProductID, size, req.Sizes[size]); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("Product", req.ProductID)
			}
			return nil, fmt.Errorf("failed to restock %s: %w", size, err)
		}
	}

	s.logger.Info("Product restocked",
		zap.String("product_id", req.ProductID),
		zap.Int("sizes", len(sizes)),
	)

	return s.GetProduct(ctx, req.ProductID)
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewNotFoundError("Product", id)
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}
