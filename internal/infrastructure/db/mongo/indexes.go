package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the credential invariants rely on.
// The unique index on user_id is what turns a racing double-generation
// into a store conflict, and the one on id_number backstops collisions
// in the generated numbers.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	credentialIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "id_number", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := db.Collection("credentials").Indexes().CreateMany(ctx, credentialIndexes); err != nil {
		return err
	}

	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := db.Collection(authCollection).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return err
	}

	residentIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}
	_, err := db.Collection(collectionResidents).Indexes().CreateMany(ctx, residentIndexes)
	return err
}
