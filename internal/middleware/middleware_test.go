package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.uber.org/zap"
)

type fakeParser map[string]models.Actor

func (f fakeParser) Parse(token string) (models.Actor, error) {
	actor, ok := f[token]
	if !ok {
		return models.Actor{}, errors.New("bad token")
	}
	return actor, nil
}

// fakeUsers holds the stored admin flag per user id.
type fakeUsers map[string]bool

func (f fakeUsers) ResolveActor(ctx context.Context, actor models.Actor) (models.Actor, error) {
	if actor.UserID == "broken" {
		return models.Actor{}, errors.New("connection reset")
	}
	isAdmin, ok := f[actor.UserID]
	if !ok {
		return models.Actor{}, apperrors.ErrUnauthorized
	}
	return models.Actor{UserID: actor.UserID, IsAdmin: isAdmin}, nil
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	parser := fakeParser{
		"user":  {UserID: "u1"},
		"admin": {UserID: "a1", IsAdmin: true},
	}

	r := gin.New()
	r.Use(RequestID(), Logger(zap.NewNop()), Metrics(metrics.New()))
	r.GET("/me", Protect(parser, nil), func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.UserID, "request_id": RequestIDFromContext(c.Request.Context())})
	})
	r.GET("/admin", Protect(parser, nil), AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestProtect(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"not bearer", "/me", "Basic abc", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"user", "/me", "Bearer user", http.StatusOK},
		{"user on admin route", "/admin", "Bearer user", http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer admin", http.StatusNoContent},
	}

	r := newRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestProtect_ChecksStoredAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)

	parser := fakeParser{
		"admin":   {UserID: "a1", IsAdmin: true},
		"demoted": {UserID: "a2", IsAdmin: true},
		"deleted": {UserID: "gone"},
		"broken":  {UserID: "broken"},
	}
	users := fakeUsers{"a1": true, "a2": false}

	r := gin.New()
	r.GET("/admin", Protect(parser, users), AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		token string
		want  int
	}{
		{"admin", http.StatusNoContent},
		{"demoted", http.StatusForbidden},
		{"deleted", http.StatusUnauthorized},
		{"broken", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	r := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer user")
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Contains(t, w.Body.String(), `"request_id":"req-42"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}
