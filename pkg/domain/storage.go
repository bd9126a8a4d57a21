package domain

import "context"

// Store defines the record storage operations used by the HTTP handlers.
// Implementations must be safe for concurrent use.
type Store[T any] interface {
	// FindOne returns the first record matching filter. found is false when nothing matches.
	FindOne(ctx context.Context, database, collection string, filter Filter, opts *FindOneOptions) (record T, found bool, err error)
	// InsertOne persists record and returns the identifier assigned by the store.
	InsertOne(ctx context.Context, database, collection string, record T, opts *InsertOneOptions) (InsertResult, error)
}

// Filter is a set of field equality constraints, e.g. {"id": 76}.
type Filter map[string]interface{}

// SortField orders FindOne candidates by a single field.
type SortField struct {
	Field      string
	Descending bool
}

// FindOneOptions tunes a FindOne query. A nil value means no options.
type FindOneOptions struct {
	Skip int64
	Sort []SortField
}

// InsertOneOptions tunes an InsertOne call. A nil value means no options.
type InsertOneOptions struct {
	BypassDocumentValidation bool
}

// InsertResult carries the identifier assigned to a newly inserted record.
// InsertedID is the lowercase hex form of the native id, or empty when the
// native id has no hex form.
type InsertResult struct {
	InsertedID string `json:"insertedID"`
}
