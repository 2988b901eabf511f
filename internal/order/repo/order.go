package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Skotchmaster/storefront/internal/order/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrDuplicate     = errors.New("order already exists")
)

const collectionName = "orders"

type MongoRepo struct {
	Coll *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{Coll: db.Collection(collectionName)}
}

func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	if _, err := r.Coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}
	return nil
}

func (r *MongoRepo) Insert(ctx context.Context, o *models.Order) error {
	if _, err := r.Coll.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: session %s", ErrDuplicate, o.SessionID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *MongoRepo) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var o models.Order
	if err := r.Coll.FindOne(ctx, filter).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

func (r *MongoRepo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"session_id": sessionID})
}

func (r *MongoRepo) list(ctx context.Context, filter bson.M, offset, limit int) ([]models.Order, int64, error) {
	total, err := r.Coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.Coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer cur.Close(ctx)

	orders := make([]models.Order, 0, limit)
	if err := cur.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("decode orders: %w", err)
	}
	return orders, total, nil
}

func (r *MongoRepo) ListByEmail(ctx context.Context, email string, offset, limit int) ([]models.Order, int64, error) {
	return r.list(ctx, bson.M{"email": email}, offset, limit)
}

// ListAll lists every order, optionally restricted to one status.
func (r *MongoRepo) ListAll(ctx context.Context, status models.Status, offset, limit int) ([]models.Order, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.list(ctx, filter, offset, limit)
}

// MarkPaid moves the order for sessionID from pending to paid. The filter on
// status makes the update a single atomic compare-and-set: only one caller
// ever sees transitioned == true for a given session.
func (r *MongoRepo) MarkPaid(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	res, err := r.Coll.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "status": models.StatusPending},
		bson.M{"$set": bson.M{"status": models.StatusPaid, "paid_at": at}},
	)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return res.ModifiedCount == 1, nil
}
