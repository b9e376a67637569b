package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"go.uber.org/zap"
)

const (
	msgCancelledOrder = "Cannot update a cancelled order"
	msgNotCancellable = "Order cannot be cancelled at this stage"
	msgNoUserOrders   = "No orders found for this user"
	msgStatusChanged  = "Order status changed concurrently, please retry"
)

// fulfilledOrderStatuses are the statuses in which goods have left the
// warehouse. Cancelling from them does not return stock.
var fulfilledOrderStatuses = []models.OrderStatus{
	models.OrderStatusShipped,
	models.OrderStatusDelivered,
}

// EventPublisher publishes order lifecycle events.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error
	PublishOrderCancelled(ctx context.Context, order *models.Order, reason string) error
	PublishOrderDeleted(ctx context.Context, order *models.Order) error
}

// NotificationSender delivers customer notifications.
type NotificationSender interface {
	Send(ctx context.Context, req *models.SendNotificationRequest) (*models.SendNotificationResponse, error)
}

// OrderService handles order business logic: creation with stock
// reservation, status transitions and cancellation with stock reversal.
type OrderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	stock    repository.StockLedger
	cache    repository.OrderCache
	events   EventPublisher
	notifier NotificationSender
	metrics  *metrics.Metrics
	config   *config.Config
	logger   *zap.Logger

	now   func() time.Time
	async func(func())
}

// NewOrderService creates a new order service. cache, events and notifier
// may be nil; they are also skipped when their feature flag is off.
func NewOrderService(
	store *repository.Store,
	cache repository.OrderCache,
	events EventPublisher,
	notifier NotificationSender,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:   store.Orders,
		products: store.Products,
		stock:    store.Stock,
		cache:    cache,
		events:   events,
		notifier: notifier,
		metrics:  m,
		config:   cfg,
		logger:   logger.Named("order-service"),
		now:      time.Now,
		async:    func(fn func()) { go fn() },
	}
}

// CreateOrder validates stock for every line, reserves it with conditional
// decrements and then persists the order as Pending.
//
// Validation reads only. Reservation is not atomic across products: if a
// later line fails, the lines already reserved are released. If the order
// cannot be persisted every reservation is released. A crash between
// reservation and persistence leaves stock decremented without an order.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, req *models.CreateOrderRequest) (*models.Order, error) {
	s.logger.Info("Creating order",
		zap.String("user_id", actor.UserID),
		zap.Int("item_count", len(req.OrderItems)),
	)

	if err := ValidateCreateOrderRequest(req); err != nil {
		return nil, err
	}

	items := append([]models.OrderItem(nil), req.OrderItems...)

	products, err := s.checkStock(ctx, items)
	if err != nil {
		return nil, err
	}

	if err := s.reserveStock(ctx, items, products); err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		ID:              uuid.NewString(),
		UserID:          actor.UserID,
		OrderItems:      items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentDetails:  req.PaymentDetails,
		OrderStatus:     models.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = order.PaymentDetails.Method
	}
	if order.PaymentDetails.Method == "" {
		order.PaymentDetails.Method = order.PaymentMethod
	}
	if order.PaymentDetails.Status == "" {
		order.PaymentDetails.Status = models.PaymentStatusPending
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("Failed to create order, releasing reserved stock",
			zap.String("user_id", actor.UserID),
			zap.Error(err),
		)
		s.releaseStock(ctx, items)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.invalidateCache(ctx, order)
	s.metrics.OrderCreated()

	if s.eventsEnabled() {
		if err := s.events.PublishOrderCreated(ctx, order); err != nil {
			s.logger.Error("Failed to publish order created event",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
	}

	s.notify(order, models.NotificationTypeOrderConfirmation, "Order Confirmation",
		fmt.Sprintf("Your order %s has been received.", order.ID))

	s.logger.Info("Order created successfully",
		zap.String("order_id", order.ID),
		zap.Float64("total", order.TotalPrice),
	)

	return order, nil
}

type stockKey struct {
	productID string
	size      string
}

// checkStock is the read-only validation pass. Quantities are summed per
// product and size so repeated lines are checked against their combined
// demand. With server-side pricing on, the line snapshots are refreshed
// from the catalog.
func (s *OrderService) checkStock(ctx context.Context, items []models.OrderItem) (map[string]*models.Product, error) {
	products := make(map[string]*models.Product)
	demand := make(map[stockKey]int)

	for i := range items {
		item := &items[i]

		product, ok := products[item.ProductID]
		if !ok {
			p, err := s.products.GetByID(ctx, item.ProductID)
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("Product", item.ProductID)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load product %s: %w", item.ProductID, err)
			}
			products[item.ProductID] = p
			product = p
		}

		if s.config.Features.ServerSidePricing {
			item.Price = product.Price
			item.Name = product.Name
			item.ImageURL = product.ImageURL
		}

		key := stockKey{productID: item.ProductID, size: item.Size.String()}
		demand[key] += item.Quantity

		available, ok := product.Stock(key.size)
		if !ok || available < demand[key] {
			s.metrics.StockRejected()
			return nil, &apperrors.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Size:        key.size,
				Requested:   demand[key],
				Available:   available,
			}
		}
	}

	return products, nil
}

// reserveStock is the mutation pass.
func (s *OrderService) reserveStock(ctx context.Context, items []models.OrderItem, products map[string]*models.Product) error {
	for i, item := range items {
		err := s.stock.DecrementStock(ctx, item.ProductID, item.Size.String(), item.Quantity)
		if err == nil {
			continue
		}

		s.releaseStock(ctx, items[:i])

		switch {
		case errors.Is(err, apperrors.ErrInsufficientStock):
			s.metrics.StockRejected()
			name := item.Name
			if p, ok := products[item.ProductID]; ok {
				name = p.Name
			}
			return &apperrors.InsufficientStockError{
				ProductID:   item.ProductID,
				ProductName: name,
				Size:        item.Size.String(),
				Requested:   item.Quantity,
			}
		case errors.Is(err, apperrors.ErrNotFound):
			return apperrors.NewNotFoundError("Product", item.ProductID)
		default:
			return fmt.Errorf("failed to reserve stock: %w", err)
		}
	}
	return nil
}

// releaseStock returns reserved quantities. It runs even if the request
// context has been cancelled.
func (s *OrderService) releaseStock(ctx context.Context, items []models.OrderItem) {
	ctx = context.WithoutCancel(ctx)

	for _, item := range items {
		if err := s.stock.IncrementStock(ctx, item.ProductID, item.Size.String(), item.Quantity); err != nil {
			s.metrics.StockReconcileFailed("release")
			s.logger.Error("Failed to release reserved stock",
				zap.String("product_id", item.ProductID),
				zap.String("size", item.Size.String()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

// GetOrder returns an order readable by its owner or an admin.
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	s.logger.Debug("Getting order", zap.String("order_id", id))

	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin && order.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: order belongs to another user", apperrors.ErrForbidden)
	}

	return order, nil
}

// loadOrder reads through the cache when caching is enabled.
func (s *OrderService) loadOrder(ctx context.Context, id string) (*models.Order, error) {
	if s.cacheEnabled() {
		if order, err := s.cache.Get(ctx, id); err == nil && order != nil {
			return order, nil
		}
	}

	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if s.cacheEnabled() {
		_ = s.cache.Set(ctx, order)
	}

	return order, nil
}

// ListOrders returns every order, newest first. Admin only.
func (s *OrderService) ListOrders(ctx context.Context, actor models.Actor) ([]*models.Order, error) {
	if !actor.IsAdmin {
		return nil, apperrors.ErrForbidden
	}
	return s.orders.List(ctx, models.OrderListFilter{})
}

// ListUserOrders returns the caller's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, actor models.Actor) ([]*models.Order, error) {
	s.logger.Debug("Getting user orders", zap.String("user_id", actor.UserID))

	if s.cacheEnabled() {
		if orders, err := s.cache.GetByUserID(ctx, actor.UserID); err == nil && len(orders) > 0 {
			return orders, nil
		}
	}

	orders, err := s.orders.List(ctx, models.OrderListFilter{UserID: actor.UserID})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, &apperrors.NotFoundError{Resource: "Order", Message: msgNoUserOrders}
	}

	if s.cacheEnabled() {
		_ = s.cache.SetByUserID(ctx, actor.UserID, orders)
	}

	return orders, nil
}

// TransitionOrder sets an order's status. Any status may follow any
// non-cancelled status; Cancelled is terminal. Cancelling a Pending or
// Confirmed order goes through CancelOrder so stock is restored. Cancelling
// a Shipped or Delivered order only changes the status.
func (s *OrderService) TransitionOrder(ctx context.Context, actor models.Actor, id string, status models.OrderStatus) (*models.Order, error) {
	s.logger.Info("Updating order status",
		zap.String("order_id", id),
		zap.String("new_status", string(status)),
	)

	if !actor.IsAdmin {
		return nil, apperrors.ErrForbidden
	}
	if err := ValidateOrderStatus(status); err != nil {
		return nil, err
	}
	current, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if current.OrderStatus.IsTerminal() {
		return nil, apperrors.NewInvalidStateError(id, string(current.OrderStatus), msgCancelledOrder)
	}

	if status == models.OrderStatusCancelled {
		if current.CanCancel() {
			return s.CancelOrder(ctx, actor, id)
		}
		return s.cancelFulfilled(ctx, actor, current)
	}

	order, err := s.orders.UpdateStatus(ctx, id, models.ActiveOrderStatuses, status, s.now())
	switch {
	case errors.Is(err, apperrors.ErrStatusConflict):
		return nil, apperrors.NewInvalidStateError(id, string(models.OrderStatusCancelled), msgCancelledOrder)
	case errors.Is(err, apperrors.ErrNotFound):
		return nil, apperrors.NewNotFoundError("Order", id)
	case err != nil:
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.invalidateCache(ctx, order)
	s.metrics.StatusTransition(string(status))

	if s.eventsEnabled() {
		if err := s.events.PublishOrderStatusChanged(ctx, order, current.OrderStatus); err != nil {
			s.logger.Error("Failed to publish status change event",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
	}

	switch status {
	case models.OrderStatusShipped:
		s.notify(order, models.NotificationTypeOrderShipped, "Order Shipped",
			fmt.Sprintf("Your order %s has been shipped.", order.ID))
	case models.OrderStatusDelivered:
		s.notify(order, models.NotificationTypeOrderDelivered, "Order Delivered",
			fmt.Sprintf("Your order %s has been delivered.", order.ID))
	}

	return order, nil
}

// CancelOrder cancels a Pending or Confirmed order and restores its stock.
//
// Stock is restored before the status write, and the status write only
// succeeds if the order is still Pending or Confirmed. A crash in between
// leaves an uncancelled order with its stock already returned; it never
// leaves a Cancelled order whose stock was not returned. If the status
// write loses a race, the restored stock is taken back.
func (s *OrderService) CancelOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	s.logger.Info("Cancelling order",
		zap.String("order_id", id),
		zap.String("actor", actor.UserID),
	)

	current, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if !actor.IsAdmin && current.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: order belongs to another user", apperrors.ErrForbidden)
	}
	if !current.CanCancel() {
		return nil, apperrors.NewInvalidStateError(id, string(current.OrderStatus), msgNotCancellable)
	}

	restored, err := s.restoreStock(ctx, current.OrderItems)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.UpdateStatus(ctx, id, models.CancellableOrderStatuses, models.OrderStatusCancelled, s.now())
	if err != nil {
		s.retakeStock(ctx, id, restored)
		switch {
		case errors.Is(err, apperrors.ErrStatusConflict):
			return nil, apperrors.NewInvalidStateError(id, "", msgNotCancellable)
		case errors.Is(err, apperrors.ErrNotFound):
			return nil, apperrors.NewNotFoundError("Order", id)
		default:
			return nil, fmt.Errorf("failed to cancel order: %w", err)
		}
	}

	s.orderCancelled(ctx, actor, current, order)
	return order, nil
}

// cancelFulfilled cancels a Shipped or Delivered order. Its stock is not
// restored.
func (s *OrderService) cancelFulfilled(ctx context.Context, actor models.Actor, current *models.Order) (*models.Order, error) {
	order, err := s.orders.UpdateStatus(ctx, current.ID, fulfilledOrderStatuses, models.OrderStatusCancelled, s.now())
	switch {
	case errors.Is(err, apperrors.ErrStatusConflict):
		return nil, apperrors.NewInvalidStateError(current.ID, "", msgStatusChanged)
	case errors.Is(err, apperrors.ErrNotFound):
		return nil, apperrors.NewNotFoundError("Order", current.ID)
	case err != nil:
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	s.logger.Info("Cancelled fulfilled order without restoring stock",
		zap.String("order_id", order.ID),
		zap.String("previous_status", string(current.OrderStatus)),
	)

	s.orderCancelled(ctx, actor, current, order)
	return order, nil
}

func (s *OrderService) orderCancelled(ctx context.Context, actor models.Actor, previous, order *models.Order) {
	s.invalidateCache(ctx, order)
	s.metrics.OrderCancelled()
	s.metrics.StatusTransition(string(models.OrderStatusCancelled))

	if s.eventsEnabled() {
		if err := s.events.PublishOrderCancelled(ctx, order, cancelReason(actor, previous)); err != nil {
			s.logger.Error("Failed to publish order cancelled event",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
	}

	s.notify(order, models.NotificationTypeOrderCancelled, "Order Cancelled",
		fmt.Sprintf("Your order %s has been cancelled.", order.ID))
}

// ConfirmPayment records a completed payment and confirms the order if it
// is still Pending. Redelivered or late events never move an order that has
// progressed past Pending.
func (s *OrderService) ConfirmPayment(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.UpdatePaymentStatus(ctx, id, models.PaymentStatusCompleted, s.now())
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	if order.OrderStatus != models.OrderStatusPending {
		s.invalidateCache(ctx, order)
		s.logger.Info("Payment completed for order past Pending, status unchanged",
			zap.String("order_id", id),
			zap.String("status", string(order.OrderStatus)),
		)
		return order, nil
	}

	confirmed, err := s.orders.UpdateStatus(ctx, id, []models.OrderStatus{models.OrderStatusPending}, models.OrderStatusConfirmed, s.now())
	switch {
	case errors.Is(err, apperrors.ErrStatusConflict):
		s.invalidateCache(ctx, order)
		s.logger.Info("Order left Pending before payment confirmation", zap.String("order_id", id))
		return order, nil
	case errors.Is(err, apperrors.ErrNotFound):
		return nil, apperrors.NewNotFoundError("Order", id)
	case err != nil:
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	s.invalidateCache(ctx, confirmed)
	s.metrics.StatusTransition(string(models.OrderStatusConfirmed))

	if s.eventsEnabled() {
		if err := s.events.PublishOrderStatusChanged(ctx, confirmed, models.OrderStatusPending); err != nil {
			s.logger.Error("Failed to publish status change event",
				zap.String("order_id", id),
				zap.Error(err),
			)
		}
	}

	return confirmed, nil
}

// FailPayment records a failed payment and cancels the order, restoring
// stock, if it can still be cancelled. Orders past Confirmed keep their
// status.
func (s *OrderService) FailPayment(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.UpdatePaymentStatus(ctx, id, models.PaymentStatusFailed, s.now())
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	if !order.CanCancel() {
		s.invalidateCache(ctx, order)
		s.logger.Warn("Payment failed for order that can no longer be cancelled",
			zap.String("order_id", id),
			zap.String("status", string(order.OrderStatus)),
		)
		return order, nil
	}

	cancelled, err := s.CancelOrder(ctx, models.SystemActor, id)
	var stateErr *apperrors.InvalidStateError
	if errors.As(err, &stateErr) {
		s.invalidateCache(ctx, order)
		return order, nil
	}
	return cancelled, err
}

// restoreStock increments stock for every line. Lines whose product no
// longer exists are skipped. On any other failure the lines restored so far
// are taken back and the error is returned.
func (s *OrderService) restoreStock(ctx context.Context, items []models.OrderItem) ([]models.OrderItem, error) {
	restored := make([]models.OrderItem, 0, len(items))

	for _, item := range items {
		err := s.stock.IncrementStock(ctx, item.ProductID, item.Size.String(), item.Quantity)
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Product no longer exists, skipping stock restore",
				zap.String("product_id", item.ProductID),
				zap.String("size", item.Size.String()),
			)
			continue
		}
		if err != nil {
			s.retakeStock(ctx, "", restored)
			return nil, fmt.Errorf("failed to restore stock: %w", err)
		}
		restored = append(restored, item)
	}

	return restored, nil
}

// retakeStock undoes restoreStock after the status write failed. If the
// restored units were sold in the meantime the take-back fails, stock stays
// inflated by those units and the failure is counted for reconciliation.
func (s *OrderService) retakeStock(ctx context.Context, orderID string, items []models.OrderItem) {
	ctx = context.WithoutCancel(ctx)

	for _, item := range items {
		if err := s.stock.DecrementStock(ctx, item.ProductID, item.Size.String(), item.Quantity); err != nil {
			s.metrics.StockReconcileFailed("retake")
			s.logger.Error("Failed to take back restored stock",
				zap.String("order_id", orderID),
				zap.String("product_id", item.ProductID),
				zap.String("size", item.Size.String()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

func cancelReason(actor models.Actor, order *models.Order) string {
	switch {
	case actor == models.SystemActor:
		return "payment failed"
	case actor.UserID == order.UserID:
		return "cancelled by customer"
	default:
		return "cancelled by admin"
	}
}

// DeleteOrder removes an order without touching stock. Admin only.
func (s *OrderService) DeleteOrder(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsAdmin {
		return apperrors.ErrForbidden
	}

	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NewNotFoundError("Order", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}

	if err := s.orders.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewNotFoundError("Order", id)
		}
		return fmt.Errorf("failed to delete order: %w", err)
	}

	s.invalidateCache(ctx, order)

	if s.eventsEnabled() {
		if err := s.events.PublishOrderDeleted(ctx, order); err != nil {
			s.logger.Error("Failed to publish order deleted event",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Order deleted", zap.String("order_id", id))
	return nil
}

func (s *OrderService) cacheEnabled() bool {
	return s.config.Features.EnableOrderCaching && s.cache != nil
}

func (s *OrderService) eventsEnabled() bool {
	return s.config.Features.EnableOrderEvents && s.events != nil
}

func (s *OrderService) invalidateCache(ctx context.Context, order *models.Order) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Delete(ctx, order.ID); err != nil {
		s.logger.Warn("Failed to invalidate cached order", zap.String("order_id", order.ID), zap.Error(err))
	}
	if err := s.cache.InvalidateByUserID(ctx, order.UserID); err != nil {
		s.logger.Warn("Failed to invalidate cached order list", zap.String("user_id", order.UserID), zap.Error(err))
	}
}

func (s *OrderService) notify(order *models.Order, kind models.NotificationType, subject, body string) {
	if !s.config.Features.EnableNotifications || s.notifier == nil {
		return
	}

	req := &models.SendNotificationRequest{
		Type:      kind,
		Recipient: order.UserID,
		Subject:   subject,
		Body:      body,
		Metadata: map[string]string{
			"order_id": order.ID,
			"total":    fmt.Sprintf("%.2f", order.TotalPrice),
		},
	}

	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := s.notifier.Send(ctx, req); err != nil {
			s.logger.Error("Failed to send notification",
				zap.String("order_id", order.ID),
				zap.String("type", string(kind)),
				zap.Error(err),
			)
		}
	})
}
