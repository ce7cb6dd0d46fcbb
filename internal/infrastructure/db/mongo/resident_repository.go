package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ebarangay/registry-system/internal/core/domain"
)

const collectionResidents = "residents"

type ResidentRepository struct {
	col *mongo.Collection
}

func NewResidentRepository(db *mongo.Database) *ResidentRepository {
	return &ResidentRepository{col: db.Collection(collectionResidents)}
}

// FindByID retrieves a resident profile by its document id.
func (r *ResidentRepository) FindByID(ctx context.Context, id string) (*domain.Resident, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res domain.Resident
	err := r.col.FindOne(ctx, bson.M{"_id": storeID(id)}).Decode(&res)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrResidentNotFound
		}
		return nil, err
	}
	return &res, nil
}

// FindByUserID retrieves the resident profile linked to a portal account.
func (r *ResidentRepository) FindByUserID(ctx context.Context, userID string) (*domain.Resident, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res domain.Resident
	err := r.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&res)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrResidentNotFound
		}
		return nil, err
	}
	return &res, nil
}
