package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/auth"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
	"go.uber.org/zap"
)

type testEnv struct {
	router   http.Handler
	store    *repository.Store
	tokens   *auth.TokenManager
	customer string
	other    string
	admin    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0},
		Store:  config.StoreConfig{Driver: "memory"},
	}
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	m := metrics.New()

	users := service.NewUserService(store, tokens, logger)
	h := handlers.NewHandlers(
		service.NewOrderService(store, nil, nil, nil, m, cfg, logger),
		service.NewProductService(store, logger),
		users,
		store,
		cfg,
		logger,
	)

	env := &testEnv{
		router: New(h, tokens, users, m, cfg, logger).Router(),
		store:  store,
		tokens: tokens,
	}
	env.customer = env.token(t, env.seedUser(t, "u1", false))
	env.other = env.token(t, env.seedUser(t, "u2", false))
	env.admin = env.token(t, env.seedUser(t, "admin", true))
	return env
}

func (e *testEnv) seedUser(t *testing.T, id string, admin bool) *models.User {
	t.Helper()
	user := &models.User{ID: id, Username: id, Email: id + "@example.com", IsAdmin: admin}
	require.NoError(t, e.store.Users.Create(context.Background(), user))
	return user
}

func (e *testEnv) token(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := e.tokens.Issue(user)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func (e *testEnv) seedProduct(t *testing.T, id string, sizes map[string]int) {
	t.Helper()
	require.NoError(t, e.store.Products.Create(context.Background(), &models.Product{
		ID: id, Name: "Runner", Price: 10, Sizes: sizes,
	}))
}

func (e *testEnv) stock(t *testing.T, id, size string) int {
	t.Helper()
	p, err := e.store.Products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Sizes[size]
}

func orderBody(productID string, size interface{}, qty int) gin.H {
	return gin.H{
		"orderItems": []gin.H{
			{"product": productID, "name": "Runner", "size": size, "quantity": qty, "price": 10},
		},
		"shippingAddress": gin.H{"address": "1 Main St", "city": "Springfield", "postalCode": "12345", "country": "US"},
		"paymentDetails":  gin.H{"method": "card", "transactionId": "tx-1"},
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "p1", map[string]int{"42": 5})

	w, resp := env.do(t, http.MethodPost, "/api/orders", env.customer, orderBody("p1", 42, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 20.0, resp["totalPrice"])
	assert.Equal(t, "Pending", resp["orderStatus"])
	assert.Equal(t, 3, env.stock(t, "p1", "42"))
	id := resp["id"].(string)

	w, _ = env.do(t, http.MethodGet, "/api/orders/"+id, env.other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(t, http.MethodPut, "/api/orders/"+id, env.customer, gin.H{"newStatus": "Shipped"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp = env.do(t, http.MethodPut, "/api/orders/"+id, env.admin, gin.H{"newStatus": "Shipped"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order status updated to Shipped", resp["message"])

	w, resp = env.do(t, http.MethodPut, "/api/orders/"+id+"/cancel", env.customer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Order cannot be cancelled at this stage", resp["error"])
	assert.Equal(t, 3, env.stock(t, "p1", "42"))

	w, _ = env.do(t, http.MethodPut, "/api/orders/"+id, env.admin, gin.H{"newStatus": "Confirmed"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = env.do(t, http.MethodPut, "/api/orders/"+id+"/cancel", env.customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order cancelled successfully", resp["message"])
	assert.Equal(t, 5, env.stock(t, "p1", "42"))

	w, resp = env.do(t, http.MethodPut, "/api/orders/"+id, env.admin, gin.H{"newStatus": "Delivered"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot update a cancelled order", resp["error"])

	w, resp = env.do(t, http.MethodDelete, "/api/orders/"+id, env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order removed", resp["message"])

	w, _ = env.do(t, http.MethodGet, "/api/orders/"+id, env.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminCancelsShippedOrderOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "p1", map[string]int{"42": 5})

	w, resp := env.do(t, http.MethodPost, "/api/orders", env.customer, orderBody("p1", 42, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := resp["id"].(string)

	w, _ = env.do(t, http.MethodPut, "/api/orders/"+id, env.admin, gin.H{"newStatus": "Shipped"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = env.do(t, http.MethodPut, "/api/orders/"+id, env.admin, gin.H{"newStatus": "Cancelled"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Order status updated to Cancelled", resp["message"])
	assert.Equal(t, 3, env.stock(t, "p1", "42"))
}

func TestDemotedAdminLosesAccess(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, env.seedUser(t, "former-admin", false))
	stale, err := env.tokens.Issue(&models.User{ID: "former-admin", IsAdmin: true})
	require.NoError(t, err)

	w, resp := env.do(t, http.MethodGet, "/api/orders", stale, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized as an admin", resp["error"])

	w, _ = env.do(t, http.MethodGet, "/api/orders", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	ghost, err := env.tokens.Issue(&models.User{ID: "ghost", IsAdmin: true})
	require.NoError(t, err)
	w, resp = env.do(t, http.MethodGet, "/api/orders", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authorized, token failed", resp["error"])
}

func TestCreateOrderErrorsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "p1", map[string]int{"M": 1})

	w, resp := env.do(t, http.MethodPost, "/api/orders", env.customer, orderBody("p1", "M", 2))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Not enough stock for Runner size M", resp["error"])
	assert.Equal(t, 1, env.stock(t, "p1", "M"))

	w, _ = env.do(t, http.MethodPost, "/api/orders", env.customer, orderBody("missing", "M", 1))
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := orderBody("p1", "M", 1)
	body["orderItems"] = []gin.H{}
	w, resp = env.do(t, http.MethodPost, "/api/orders", env.customer, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No order items found", resp["error"])

	w, resp = env.do(t, http.MethodPost, "/api/orders", "", orderBody("p1", "M", 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authorized, no token", resp["error"])
}

func TestOrderListingOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "p1", map[string]int{"M": 10})

	w, resp := env.do(t, http.MethodGet, "/api/orders/my-orders", env.customer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No orders found for this user", resp["error"])

	w, _ = env.do(t, http.MethodPost, "/api/orders", env.customer, orderBody("p1", "M", 1))
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/orders/my-orders", env.customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	w, resp = env.do(t, http.MethodGet, "/api/orders", env.customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized as an admin", resp["error"])

	w, _ = env.do(t, http.MethodGet, "/api/orders", env.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProductRoutes(t *testing.T) {
	env := newTestEnv(t)

	product := gin.H{
		"brand": "Acme", "name": "Runner", "price": 59.99, "imageUrl": "/img.png",
		"category": "shoes", "sizes": gin.H{"42": 1},
	}

	w, _ := env.do(t, http.MethodPost, "/api/products", env.customer, product)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp := env.do(t, http.MethodPost, "/api/products", env.admin, product)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := resp["product"].(map[string]interface{})["id"].(string)

	w, resp = env.do(t, http.MethodPatch, "/api/products/restock", env.admin, gin.H{"productId": id, "sizes": gin.H{"42": 4}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Product restocked successfully", resp["message"])
	assert.Equal(t, 5, env.stock(t, id, "42"))

	w, resp = env.do(t, http.MethodGet, "/api/products/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Runner", resp["product"].(map[string]interface{})["name"])

	w, resp = env.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["products"], 1)

	w, resp = env.do(t, http.MethodDelete, "/api/products/"+id, env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Product deleted successfully", resp["message"])

	w, _ = env.do(t, http.MethodGet, "/api/products/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserRoutes(t *testing.T) {
	env := newTestEnv(t)

	creds := gin.H{"username": "jane", "email": "jane@example.com", "password": "s3cret"}

	w, resp := env.do(t, http.MethodPost, "/api/users/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, resp["token"])

	w, resp = env.do(t, http.MethodPost, "/api/users/register", "", creds)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", resp["error"])

	w, resp = env.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "jane@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	token := resp["token"].(string)

	env.seedProduct(t, "p1", map[string]int{"M": 1})
	w, _ = env.do(t, http.MethodPost, "/api/orders", token, orderBody("p1", "M", 1))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestOperationalRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/ready", "/live", "/version", "/metrics"} {
		w, _ := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
