package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gatekeeper/internal/constants"
)

type MongoRecorder struct {
	collection *mongo.Collection
}

func NewMongoRecorder(db *mongo.Database) *MongoRecorder {
	return &MongoRecorder{
		collection: db.Collection(constants.DecisionCollection),
	}
}

func (r *MongoRecorder) RecordDecision(ctx context.Context, decision Decision) error {
	if _, err := r.collection.InsertOne(ctx, decision); err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

func (r *MongoRecorder) ListDecisions(ctx context.Context, filter DecisionFilter) ([]Decision, error) {
	query := bson.M{}
	if filter.GroupID != "" {
		query["group_id"] = filter.GroupID
	}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Approved != nil {
		query["approved"] = *filter.Approved
	}

	limit := filter.Limit
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "decided_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find decisions: %w", err)
	}
	defer cursor.Close(ctx)

	var decisions []Decision
	if err := cursor.All(ctx, &decisions); err != nil {
		return nil, fmt.Errorf("failed to decode decisions: %w", err)
	}
	return decisions, nil
}
