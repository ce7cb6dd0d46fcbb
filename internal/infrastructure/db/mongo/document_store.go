package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ebarangay/registry-system/internal/core/domain"
	"github.com/ebarangay/registry-system/internal/core/ports"
)

// mongoErrUnauthorized is the server error code for a rejected session.
const mongoErrUnauthorized = 13

// mongoErrDocValidation is the server error code raised when a write violates
// the collection's $jsonSchema validator (how schema drift shows up here).
const mongoErrDocValidation = 121

// DocumentStore implements the generic remote document store on MongoDB.
// Raw driver errors are classified into the domain error classes so the
// update protocol can branch on them.
type DocumentStore struct {
	db *mongo.Database
}

func NewDocumentStore(db *mongo.Database) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get retrieves a single document by id.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (*ports.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": storeID(id)}).Decode(&raw)
	if err != nil {
		return nil, classifyError(err)
	}
	return toDocument(raw), nil
}

// List returns all documents matching the equality filters.
func (s *DocumentStore) List(ctx context.Context, collection string, filters []ports.Filter) ([]ports.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{}
	for _, f := range filters {
		query[f.Key] = f.Value
	}

	cursor, err := s.db.Collection(collection).Find(ctx, query)
	if err != nil {
		return nil, classifyError(err)
	}
	defer cursor.Close(ctx)

	var docs []ports.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		docs = append(docs, *toDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, classifyError(err)
	}
	return docs, nil
}

// Create inserts a document. An empty id lets the store assign an ObjectID.
func (s *DocumentStore) Create(ctx context.Context, collection, id string, fields map[string]any) (*ports.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var docID any
	if id == "" {
		docID = primitive.NewObjectID()
	} else {
		docID = storeID(id)
	}

	doc := bson.M{"_id": docID}
	for k, v := range fields {
		doc[k] = v
	}

	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return nil, classifyError(err)
	}
	return toDocument(doc), nil
}

// Update overwrites the given fields and returns the resulting document.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) (*ports.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	after := options.After
	var raw bson.M
	err := s.db.Collection(collection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": storeID(id)},
		bson.M{"$set": bson.M(fields)},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	).Decode(&raw)
	if err != nil {
		return nil, classifyError(err)
	}
	return toDocument(raw), nil
}

// Attributes returns the attribute keys the collection currently accepts:
// the $jsonSchema validator properties when one is configured, otherwise the
// keys of a sampled document.
func (s *DocumentStore) Attributes(ctx context.Context, collection string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if attrs, err := s.validatorAttributes(ctx, collection); err == nil && len(attrs) > 0 {
		return attrs, nil
	}

	var sample bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{}).Decode(&sample)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, classifyError(err)
	}
	attrs := make([]string, 0, len(sample))
	for k := range sample {
		if k != "_id" {
			attrs = append(attrs, k)
		}
	}
	return attrs, nil
}

func (s *DocumentStore) validatorAttributes(ctx context.Context, collection string) ([]string, error) {
	cursor, err := s.db.ListCollections(ctx, bson.M{"name": collection})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var spec bson.M
		if err := cursor.Decode(&spec); err != nil {
			return nil, err
		}
		opts, _ := spec["options"].(bson.M)
		validator, _ := opts["validator"].(bson.M)
		schema, _ := validator["$jsonSchema"].(bson.M)
		properties, _ := schema["properties"].(bson.M)
		if len(properties) == 0 {
			return nil, nil
		}
		attrs := make([]string, 0, len(properties))
		for k := range properties {
			attrs = append(attrs, k)
		}
		return attrs, nil
	}
	return nil, cursor.Err()
}

// storeID converts a hex id back to an ObjectID where possible; ids from
// other deployments stay plain strings.
func storeID(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// toDocument normalises a raw BSON document into the transport-neutral form
// the core works with.
func toDocument(raw bson.M) *ports.Document {
	doc := &ports.Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			switch id := v.(type) {
			case primitive.ObjectID:
				doc.ID = id.Hex()
			case string:
				doc.ID = id
			default:
				doc.ID = fmt.Sprintf("%v", id)
			}
			continue
		}
		doc.Fields[k] = normalizeValue(v)
	}
	return doc
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.ObjectID:
		return val.Hex()
	case primitive.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

// classifyError maps driver errors onto the domain error classes.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("duplicate key: %w", domain.ErrConflict)
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case mongoErrDocValidation:
			return fmt.Errorf("%s: %w", cmdErr.Message, domain.ErrSchemaMismatch)
		case mongoErrUnauthorized:
			return fmt.Errorf("%s: %w", cmdErr.Message, domain.ErrUnauthorized)
		}
	}

	var writeEx mongo.WriteException
	if errors.As(err, &writeEx) {
		for _, we := range writeEx.WriteErrors {
			if we.Code == mongoErrDocValidation {
				return fmt.Errorf("%s: %w", we.Message, domain.ErrSchemaMismatch)
			}
		}
	}

	return err
}
