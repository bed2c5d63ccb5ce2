package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yourorg/businesshub/internal/domain"
	mongoinfra "github.com/yourorg/businesshub/internal/infrastructure/mongo"
)

// MongoMembershipRepository implements domain.MembershipRepository
type MongoMembershipRepository struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewMongoMembershipRepository creates a new membership repository
func NewMongoMembershipRepository(db *mongo.Database, logger *slog.Logger) *MongoMembershipRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoMembershipRepository{
		coll:   db.Collection(mongoinfra.MembershipCollection),
		logger: logger,
	}
}

// Insert writes a membership document. The unique (business_id, user_id)
// index rejects duplicates at the store layer; that rejection is surfaced as
// domain.ErrConflict so concurrent join requests resolve to exactly one
// success.
func (r *MongoMembershipRepository) Insert(ctx context.Context, m *domain.Membership) error {
	result, err := r.coll.InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("membership for business %s user %s: %w",
				m.BusinessID.Hex(), m.UserID.Hex(), domain.ErrConflict)
		}
		r.logger.Error("failed to insert membership",
			slog.String("business_id", m.BusinessID.Hex()),
			slog.String("user_id", m.UserID.Hex()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to insert membership: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		m.ID = oid
	}
	return nil
}

// Get returns the membership for (businessID, userID), or nil when absent.
func (r *MongoMembershipRepository) Get(ctx context.Context, businessID, userID primitive.ObjectID) (*domain.Membership, error) {
	m := &domain.Membership{}
	filter := bson.M{"business_id": businessID, "user_id": userID}

	err := r.coll.FindOne(ctx, filter).Decode(m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListApprovedByUser returns all memberships granting the user access.
func (r *MongoMembershipRepository) ListApprovedByUser(ctx context.Context, userID primitive.ObjectID) ([]*domain.Membership, error) {
	cursor, err := r.coll.Find(ctx, approvedByUserFilter(userID))
	if err != nil {
		r.logger.Error("failed to list approved memberships",
			slog.String("user_id", userID.Hex()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer cursor.Close(ctx)

	var memberships []*domain.Membership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, fmt.Errorf("failed to decode memberships: %w", err)
	}
	return memberships, nil
}

// ListPendingByBusiness returns the open join requests of a business.
func (r *MongoMembershipRepository) ListPendingByBusiness(ctx context.Context, businessID primitive.ObjectID) ([]*domain.Membership, error) {
	cursor, err := r.coll.Find(ctx, pendingByBusinessFilter(businessID))
	if err != nil {
		r.logger.Error("failed to list pending memberships",
			slog.String("business_id", businessID.Hex()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list pending memberships: %w", err)
	}
	defer cursor.Close(ctx)

	var memberships []*domain.Membership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, fmt.Errorf("failed to decode pending memberships: %w", err)
	}
	return memberships, nil
}

// SetApprovedBy stamps the approver and reports the matched count. The
// update is unconditional so re-approval is idempotent; deciding what a
// zero-match means is the caller's policy, not the store's.
func (r *MongoMembershipRepository) SetApprovedBy(ctx context.Context, businessID, userID, approverID primitive.ObjectID) (int64, error) {
	filter := bson.M{"business_id": businessID, "user_id": userID}
	update := bson.M{"$set": bson.M{"approved_by": approverID}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("failed to approve membership",
			slog.String("business_id", businessID.Hex()),
			slog.String("user_id", userID.Hex()),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to approve membership: %w", err)
	}
	return result.MatchedCount, nil
}

// CountPendingByBusiness aggregates open join requests per business.
func (r *MongoMembershipRepository) CountPendingByBusiness(ctx context.Context) (map[primitive.ObjectID]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"role": bson.M{"$ne": domain.RoleCreator},
			"$or": bson.A{
				bson.M{"approved_by": bson.M{"$exists": false}},
				bson.M{"approved_by": nil},
			},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$business_id", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending memberships: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		BusinessID primitive.ObjectID `bson:"_id"`
		Count      int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode pending counts: %w", err)
	}

	counts := make(map[primitive.ObjectID]int64, len(rows))
	for _, row := range rows {
		counts[row.BusinessID] = row.Count
	}
	return counts, nil
}
