package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yourorg/businesshub/internal/domain"
	mongoinfra "github.com/yourorg/businesshub/internal/infrastructure/mongo"
)

// MongoBusinessRepository implements domain.BusinessRepository
type MongoBusinessRepository struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewMongoBusinessRepository creates a new business repository
func NewMongoBusinessRepository(db *mongo.Database, logger *slog.Logger) *MongoBusinessRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoBusinessRepository{
		coll:   db.Collection(mongoinfra.BusinessCollection),
		logger: logger,
	}
}

// Insert creates a new business document
func (r *MongoBusinessRepository) Insert(ctx context.Context, business *domain.Business) error {
	result, err := r.coll.InsertOne(ctx, business)
	if err != nil {
		r.logger.Error("failed to insert business",
			slog.String("name", business.Name),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to insert business: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		business.ID = oid
	}
	return nil
}

// GetByID retrieves a business by id
func (r *MongoBusinessRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Business, error) {
	business := &domain.Business{}

	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(business)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("business %s: %w", id.Hex(), domain.ErrNotFound)
		}
		r.logger.Error("failed to get business",
			slog.String("id", id.Hex()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return business, nil
}

// GetByIDs batch-fetches businesses; missing ids are skipped, not errors
func (r *MongoBusinessRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*domain.Business, error) {
	if len(ids) == 0 {
		return []*domain.Business{}, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to batch-fetch businesses: %w", err)
	}
	defer cursor.Close(ctx)

	businesses := []*domain.Business{}
	if err := cursor.All(ctx, &businesses); err != nil {
		return nil, fmt.Errorf("failed to decode businesses: %w", err)
	}
	return businesses, nil
}

// SearchByName matches the query as a case-insensitive substring of the
// business name. The query is quoted so user input cannot inject regex
// operators into the filter.
func (r *MongoBusinessRepository) SearchByName(ctx context.Context, query string) ([]*domain.Business, error) {
	filter := bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		r.logger.Error("failed to search businesses",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to search businesses: %w", err)
	}
	defer cursor.Close(ctx)

	businesses := []*domain.Business{}
	if err := cursor.All(ctx, &businesses); err != nil {
		return nil, fmt.Errorf("failed to decode businesses: %w", err)
	}
	return businesses, nil
}
