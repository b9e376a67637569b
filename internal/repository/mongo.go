package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
	usersCollection    = "users"
)

// NewMongoStore connects to MongoDB and returns a Store over the products,
// orders and users collections.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	if err := ensureMongoIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger = logger.Named("mongo-store")
	logger.Info("Connected to mongo", zap.String("database", cfg.Database))

	products := &MongoProductRepository{coll: db.Collection(productsCollection), logger: logger}

	return &Store{
		Products: products,
		Stock:    products,
		Orders:   &MongoOrderRepository{coll: db.Collection(ordersCollection), logger: logger},
		Users:    &MongoUserRepository{coll: db.Collection(usersCollection)},
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		close: client.Disconnect,
	}, nil
}

func ensureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	_, err = db.Collection(ordersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create orders index: %w", err)
	}

	return nil
}

// MongoProductRepository implements ProductRepository and StockLedger.
type MongoProductRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func (r *MongoProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *MongoProductRepository) List(ctx context.Context) ([]*models.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := make([]*models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *MongoProductRepository) Create(ctx context.Context, product *models.Product) error {
	_, err := r.coll.InsertOne(ctx, product)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.ErrDuplicate
	}
	return err
}

func (r *MongoProductRepository) Update(ctx context.Context, product *models.Product) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": product.ID}, product)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *MongoProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DecrementStock applies a guarded $inc: the filter only matches while the
// size holds at least qty units, so the counter never goes negative.
func (r *MongoProductRepository) DecrementStock(ctx context.Context, productID, size string, qty int) error {
	field := "sizes." + size
	filter := bson.M{"_id": productID, field: bson.M{"$gte": qty}}
	update := bson.M{
		"$inc": bson.M{field: -qty},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": productID})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}

	r.logger.Debug("Stock decrement rejected",
		zap.String("product_id", productID),
		zap.String("size", size),
		zap.Int("quantity", qty),
	)
	return apperrors.ErrInsufficientStock
}

func (r *MongoProductRepository) IncrementStock(ctx context.Context, productID, size string, qty int) error {
	update := bson.M{
		"$inc": bson.M{"sizes." + size: qty},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": productID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MongoOrderRepository implements OrderRepository.
type MongoOrderRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func (r *MongoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	order.CalculateTotal()

	_, err := r.coll.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.ErrDuplicate
	}
	return err
}

func (r *MongoOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *MongoOrderRepository) List(ctx context.Context, filter models.OrderListFilter) ([]*models.Order, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user"] = filter.UserID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]*models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus uses an aggregation-pipeline update so the status timestamp
// can be set only when it is still missing, in the same atomic write as the
// status guard.
func (r *MongoOrderRepository) UpdateStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) (*models.Order, error) {
	set := bson.M{
		"orderStatus": to,
		"updatedAt":   at,
	}
	if field := models.TimestampField(to); field != "" {
		set[field] = bson.M{"$ifNull": bson.A{"$" + field, at}}
	}

	filter := bson.M{"_id": id, "orderStatus": bson.M{"$in": from}}
	update := mongo.Pipeline{bson.D{{Key: "$set", Value: set}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, countErr := r.coll.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return nil, countErr
		}
		if n == 0 {
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

	return &order, nil
}

func (r *MongoOrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, at time.Time) (*models.Order, error) {
	update := bson.M{"$set": bson.M{
		"paymentDetails.status": status,
		"updatedAt":             at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *MongoOrderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MongoUserRepository implements UserRepository.
type MongoUserRepository struct {
	coll *mongo.Collection
}

func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.ErrDuplicate
	}
	return err
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
