package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"go.uber.org/zap"
)

func validProductRequest() *models.CreateProductRequest {
	return &models.CreateProductRequest{
		Brand:    "Acme",
		Name:     "Runner",
		Price:    59.99,
		ImageURL: "/img/runner.png",
		Category: "shoes",
		Sizes:    map[string]int{"42": 3, "43": 0},
	}
}

func TestProductService_CreateAndGet(t *testing.T) {
	svc := NewProductService(repository.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, validProductRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)
	assert.False(t, product.CreatedAt.IsZero())

	got, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"42": 3, "43": 0}, got.Sizes)

	_, err = svc.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductService_CreateValidation(t *testing.T) {
	svc := NewProductService(repository.NewMemoryStore(), zap.NewNop())

	tests := []struct {
		name   string
		mutate func(r *models.CreateProductRequest)
		msg    string
	}{
		{"missing brand", func(r *models.CreateProductRequest) { r.Brand = "" }, "Please provide all required fields"},
		{"no sizes", func(r *models.CreateProductRequest) { r.Sizes = nil }, "Please provide all required fields"},
		{"negative stock", func(r *models.CreateProductRequest) { r.Sizes["42"] = -1 }, "sizes: invalid quantity -1 for size 42"},
		{"dotted size", func(r *models.CreateProductRequest) { r.Sizes = map[string]int{"4.5": 1} }, `sizes: invalid size "4.5"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validProductRequest()
			tt.mutate(req)

			_, err := svc.CreateProduct(context.Background(), req)

			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Error())
		})
	}
}

func TestProductService_UpdateIsPartial(t *testing.T) {
	svc := NewProductService(repository.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, validProductRequest())
	require.NoError(t, err)

	updated, err := svc.UpdateProduct(ctx, product.ID, &models.UpdateProductRequest{Price: 49.99})
	require.NoError(t, err)
	assert.Equal(t, 49.99, updated.Price)
	assert.Equal(t, "Runner", updated.Name)
	assert.Equal(t, 3, updated.Sizes["42"])

	_, err = svc.UpdateProduct(ctx, "missing", &models.UpdateProductRequest{Name: "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductService_Restock(t *testing.T) {
	svc := NewProductService(repository.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, validProductRequest())
	require.NoError(t, err)

	restocked, err := svc.Restock(ctx, &models.RestockRequest{
		ProductID: product.ID,
		Sizes:     map[string]int{"42": 2, "44": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"42": 5, "43": 0, "44": 5}, restocked.Sizes)

	_, err = svc.Restock(ctx, &models.RestockRequest{ProductID: product.ID, Sizes: map[string]int{"42": 0}})
	var verr *apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Restock(ctx, &models.RestockRequest{ProductID: "missing", Sizes: map[string]int{"42": 1}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductService_Delete(t *testing.T) {
	svc := NewProductService(repository.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, validProductRequest())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, product.ID))
	assert.ErrorIs(t, svc.DeleteProduct(ctx, product.ID), apperrors.ErrNotFound)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}
