package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"go.uber.org/zap"
)

type Server struct {
	config   *config.Config
	router   *gin.Engine
	handlers *handlers.Handlers
	tokens   middleware.TokenParser
	users    middleware.ActorResolver
	metrics  *metrics.Metrics
	logger   *zap.Logger
	http     *http.Server
}

func New(
	h *handlers.Handlers,
	tokens middleware.TokenParser,
	users middleware.ActorResolver,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Metrics(m),
	)

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		tokens:   tokens,
		users:    users,
		metrics:  m,
		logger:   logger.Named("server"),
	}

	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/live", s.handlers.Live)
	s.router.GET("/version", s.handlers.Version)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	protect := middleware.Protect(s.tokens, s.users)
	admin := middleware.AdminOnly()

	api := s.router.Group("/api")

	users := api.Group("/users")
	{
		users.POST("/register", s.handlers.Register)
		users.POST("/login", s.handlers.Login)
	}

	products := api.Group("/products")
	{
		products.GET("", s.handlers.ListProducts)
		products.GET("/:id", s.handlers.GetProduct)
		products.POST("", protect, admin, s.handlers.CreateProduct)
		products.PATCH("/restock", protect, admin, s.handlers.RestockProduct)
		products.PUT("/:id", protect, admin, s.handlers.UpdateProduct)
		products.DELETE("/:id", protect, admin, s.handlers.DeleteProduct)
	}

	orders := api.Group("/orders", protect)
	{
		orders.POST("", s.handlers.CreateOrder)
		orders.GET("", admin, s.handlers.ListOrders)
		orders.GET("/my-orders", s.handlers.GetMyOrders)
		orders.GET("/:id", s.handlers.GetOrder)
		orders.PUT("/:id", admin, s.handlers.UpdateOrderStatus)
		orders.PUT("/:id/cancel", s.handlers.CancelOrder)
		orders.DELETE("/:id", admin, s.handlers.DeleteOrder)
	}
}

// Router exposes the configured engine, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
