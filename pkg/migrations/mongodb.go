package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gatekeeper/internal/constants"
)

// EnsureMongoCollection creates the indexes the decision log queries depend
// on. The collection itself appears on first insert.
func EnsureMongoCollection(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(constants.DecisionCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "decided_at", Value: -1}},
			Options: options.Index().SetName("idx_decisions_group_decided_at"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "decided_at", Value: -1}},
			Options: options.Index().SetName("idx_decisions_user_decided_at"),
		},
		{
			Keys:    bson.D{{Key: "decided_at", Value: -1}},
			Options: options.Index().SetName("idx_decisions_decided_at"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
