package ports

import "context"

// Document is a raw record from the remote document store. Fields holds the
// attribute values keyed by attribute name, normalised to plain Go types.
type Document struct {
	ID     string
	Fields map[string]any
}

// Filter is a single equality constraint for List queries.
type Filter struct {
	Key   string
	Value any
}

// DocumentStore abstracts the remote document store: generic CRUD on named
// collections plus schema introspection. Implementations classify raw store
// errors into the domain error classes (ErrNotFound, ErrConflict,
// ErrSchemaMismatch, ErrUnauthorized) so the update protocol can branch on
// them with errors.Is.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string, filters []Filter) ([]Document, error)
	// Create inserts a document. An empty id asks the store to assign one.
	Create(ctx context.Context, collection, id string, fields map[string]any) (*Document, error)
	// Update overwrites the given fields and returns the resulting document.
	Update(ctx context.Context, collection, id string, fields map[string]any) (*Document, error)
	// Attributes returns the attribute keys the collection currently accepts.
	Attributes(ctx context.Context, collection string) ([]string, error)
}
