// Package middleware provides the gin middleware of the storefront API.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-ID"

	actorKey = "actor"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request id stored by RequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID propagates the X-Request-ID header, generating one when absent.
// The id is stored in the request context so the service layer can attach
// it to published events.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), requestIDKey{}, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// Logger logs one line per request.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", RequestIDFromContext(c.Request.Context())),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("Request failed", fields...)
			return
		}
		logger.Info("Request handled", fields...)
	}
}

// Metrics records request counts and latency per route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// TokenParser resolves a bearer token to the calling actor.
type TokenParser interface {
	Parse(token string) (models.Actor, error)
}

// ActorResolver reloads the account behind a token so that deleted users
// are rejected and admin rights follow the stored record, not the claim.
type ActorResolver interface {
	ResolveActor(ctx context.Context, actor models.Actor) (models.Actor, error)
}

// Protect rejects requests without a valid bearer token. When users is
// non-nil the token's actor is replaced by the stored account's.
func Protect(tokens TokenParser, users ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, no token"})
			return
		}

		actor, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, token failed"})
			return
		}

		if users != nil {
			actor, err = users.ResolveActor(c.Request.Context(), actor)
			if errors.Is(err, apperrors.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, token failed"})
				return
			}
			if err != nil {
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// AdminOnly must run after Protect.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || !actor.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not authorized as an admin"})
			return
		}
		c.Next()
	}
}

// ActorFrom returns the actor set by Protect.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// SetActor stores actor on the context the way Protect does.
func SetActor(c *gin.Context, actor models.Actor) {
	c.Set(actorKey, actor)
}
