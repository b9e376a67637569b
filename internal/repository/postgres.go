package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	brand       TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       DOUBLE PRECISION NOT NULL,
	image_url   TEXT NOT NULL,
	category    TEXT NOT NULL,
	sizes       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	items            JSONB NOT NULL,
	shipping_address JSONB NOT NULL,
	payment_method   TEXT NOT NULL,
	payment_details  JSONB NOT NULL,
	total_price      DOUBLE PRECISION NOT NULL,
	status           TEXT NOT NULL,
	confirmed_at     TIMESTAMPTZ,
	shipped_at       TIMESTAMPTZ,
	delivered_at     TIMESTAMPTZ,
	cancelled_at     TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore opens a connection pool, creates the schema if needed
// and returns a Store over it.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger = logger.Named("postgres-store")
	logger.Info("Database connected",
		zap.String("host", cfg.Host),
		zap.String("name", cfg.Name),
	)

	return NewPostgresStoreFromDB(db, logger), nil
}

// NewPostgresStoreFromDB wraps an already open database handle.
func NewPostgresStoreFromDB(db *sql.DB, logger *zap.Logger) *Store {
	products := &PostgresProductRepository{db: db, logger: logger}

	return &Store{
		Products: products,
		Stock:    products,
		Orders:   &PostgresOrderRepository{db: db, logger: logger},
		Users:    &PostgresUserRepository{db: db},
		ping:     db.PingContext,
		close: func(context.Context) error {
			return db.Close()
		},
	}
}

// EnsureSchema creates the tables used by the store.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// PostgresProductRepository implements ProductRepository and StockLedger.
// Stock maps are stored as JSONB objects keyed by size label.
type PostgresProductRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

const productColumns = `id, brand, name, description, price, image_url, category, sizes, created_at, updated_at`

func (r *PostgresProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return product, err
}

func (r *PostgresProductRepository) List(ctx context.Context) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (r *PostgresProductRepository) Create(ctx context.Context, product *models.Product) error {
	sizesJSON, err := json.Marshal(product.Sizes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		product.ID,
		product.Brand,
		product.Name,
		product.Description,
		product.Price,
		product.ImageURL,
		product.Category,
		sizesJSON,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.ErrDuplicate
	}
	return err
}

func (r *PostgresProductRepository) Update(ctx context.Context, product *models.Product) error {
	sizesJSON, err := json.Marshal(product.Sizes)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET brand = $2, name = $3, description = $4, price = $5, image_url = $6,
		    category = $7, sizes = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		product.ID,
		product.Brand,
		product.Name,
		product.Description,
		product.Price,
		product.ImageURL,
		product.Category,
		sizesJSON,
		product.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *PostgresProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// DecrementStock rewrites one key of the JSONB stock map in a single UPDATE
// guarded by the current quantity.
func (r *PostgresProductRepository) DecrementStock(ctx context.Context, productID, size string, qty int) error {
	query := `
		UPDATE products
		SET sizes = jsonb_set(sizes, ARRAY[$2::text], to_jsonb((sizes->>$2::text)::int - $3::int)),
		    updated_at = $4
		WHERE id = $1 AND (sizes->>$2::text)::int >= $3::int
	`

	result, err := r.db.ExecContext(ctx, query, productID, size, qty, time.Now())
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	exists, err := r.exists(ctx, productID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrNotFound
	}

	r.logger.Debug("Stock decrement rejected",
		zap.String("product_id", productID),
		zap.String("size", size),
		zap.Int("quantity", qty),
	)
	return apperrors.ErrInsufficientStock
}

func (r *PostgresProductRepository) IncrementStock(ctx context.Context, productID, size string, qty int) error {
	query := `
		UPDATE products
		SET sizes = jsonb_set(sizes, ARRAY[$2::text], to_jsonb(COALESCE((sizes->>$2::text)::int, 0) + $3::int), true),
		    updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, productID, size, qty, time.Now())
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *PostgresProductRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var product models.Product
	var sizesJSON []byte

	err := row.Scan(
		&product.ID,
		&product.Brand,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.ImageURL,
		&product.Category,
		&sizesJSON,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(sizesJSON, &product.Sizes); err != nil {
		return nil, err
	}
	return &product, nil
}

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

const orderColumns = `
	id, user_id, items, shipping_address, payment_method, payment_details,
	total_price, status, confirmed_at, shipped_at, delivered_at, cancelled_at,
	created_at, updated_at`

// Create inserts the order after recomputing its total.
func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order) error {
	order.CalculateTotal()

	itemsJSON, err := json.Marshal(order.OrderItems)
	if err != nil {
		return err
	}
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return err
	}
	paymentJSON, err := json.Marshal(order.PaymentDetails)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		itemsJSON,
		shippingJSON,
		order.PaymentMethod,
		paymentJSON,
		order.TotalPrice,
		order.OrderStatus,
		order.ConfirmedAt,
		order.ShippedAt,
		order.DeliveredAt,
		order.CancelledAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.ErrDuplicate
	}
	if err != nil {
		r.logger.Error("Failed to create order",
			zap.String("user_id", order.UserID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return order, err
}

func (r *PostgresOrderRepository) List(ctx context.Context, filter models.OrderListFilter) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := make([]interface{}, 0, 1)

	if filter.UserID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateStatus is a single conditional UPDATE; COALESCE keeps timestamps
// that are already set.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (*models.Order, error) {
	var confirmedAt, shippedAt, deliveredAt, cancelledAt *time.Time
	switch to {
	case models.OrderStatusConfirmed:
		confirmedAt = &at
	case models.OrderStatusShipped:
		shippedAt = &at
	case models.OrderStatusDelivered:
		deliveredAt = &at
	case models.OrderStatusCancelled:
		cancelledAt = &at
	}

	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	query := `
		UPDATE orders
		SET status = $2, updated_at = $3,
		    confirmed_at = COALESCE(confirmed_at, $4),
		    shipped_at = COALESCE(shipped_at, $5),
		    delivered_at = COALESCE(delivered_at, $6),
		    cancelled_at = COALESCE(cancelled_at, $7)
		WHERE id = $1 AND status = ANY($8)
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query,
		id, to, at, confirmedAt, shippedAt, deliveredAt, cancelledAt, pq.Array(allowed),
	))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.ErrStatusConflict
	}
	if err != nil {
		r.logger.Error("Failed to update order status",
			zap.String("order_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	return order, nil
}

func (r *PostgresOrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, at time.Time) (*models.Order, error) {
	query := `
		UPDATE orders
		SET payment_details = jsonb_set(payment_details, '{status}', to_jsonb($2::text)),
		    updated_at = $3
		WHERE id = $1
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, string(status), at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *PostgresOrderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var itemsJSON, shippingJSON, paymentJSON []byte
	var confirmedAt, shippedAt, deliveredAt, cancelledAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&shippingJSON,
		&order.PaymentMethod,
		&paymentJSON,
		&order.TotalPrice,
		&order.OrderStatus,
		&confirmedAt,
		&shippedAt,
		&deliveredAt,
		&cancelledAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.OrderItems); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shippingJSON, &order.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(paymentJSON, &order.PaymentDetails); err != nil {
		return nil, err
	}

	order.ConfirmedAt = nullTime(confirmedAt)
	order.ShippedAt = nullTime(shippedAt)
	order.DeliveredAt = nullTime(deliveredAt)
	order.CancelledAt = nullTime(cancelledAt)

	return &order, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// PostgresUserRepository implements UserRepository.
type PostgresUserRepository struct {
	db *sql.DB
}

const userColumns = `id, username, email, password_hash, is_admin, created_at, updated_at`

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.ErrDuplicate
	}
	return err
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
