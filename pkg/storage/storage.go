package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-users/pkg/domain"
)

// Driver is the untyped database handle behind a Store. One driver is
// constructed at startup and shared by every Store and request.
type Driver interface {
	// FindOne returns the first matching document, or nil when nothing matches.
	FindOne(ctx context.Context, database, collection string, filter domain.Filter, opts *domain.FindOneOptions) (bson.Raw, error)
	// InsertOne stores doc and returns the native identifier assigned to it.
	InsertOne(ctx context.Context, database, collection string, doc interface{}, opts *domain.InsertOneOptions) (interface{}, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Store adapts a Driver to domain.Store for records of type T.
// It holds no mutable state.
type Store[T any] struct {
	driver Driver
}

// NewStore creates a typed store over driver
func NewStore[T any](driver Driver) *Store[T] {
	return &Store[T]{driver: driver}
}

var _ domain.Store[domain.User] = (*Store[domain.User])(nil)

// FindOne implements domain.Store
func (s *Store[T]) FindOne(ctx context.Context, database, collection string, filter domain.Filter, opts *domain.FindOneOptions) (T, bool, error) {
	var record T

	raw, err := s.driver.FindOne(ctx, database, collection, filter, opts)
	if err != nil {
		return record, false, &domain.StorageError{Op: "find_one", Database: database, Collection: collection, Err: err}
	}
	if raw == nil {
		return record, false, nil
	}

	if err := bson.Unmarshal(raw, &record); err != nil {
		return record, false, &domain.StorageError{
			Op:         "find_one",
			Database:   database,
			Collection: collection,
			Err:        fmt.Errorf("decode document: %w", err),
		}
	}
	return record, true, nil
}

// InsertOne implements domain.Store
func (s *Store[T]) InsertOne(ctx context.Context, database, collection string, record T, opts *domain.InsertOneOptions) (domain.InsertResult, error) {
	id, err := s.driver.InsertOne(ctx, database, collection, record, opts)
	if err != nil {
		return domain.InsertResult{}, &domain.StorageError{Op: "insert_one", Database: database, Collection: collection, Err: err}
	}
	return domain.InsertResult{InsertedID: InsertedIDString(id)}, nil
}

// InsertedIDString canonicalizes a native inserted id. ObjectIDs become their
// 24 character hex form; any other id becomes the empty string.
func InsertedIDString(id interface{}) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case *primitive.ObjectID:
		if v != nil {
			return v.Hex()
		}
	}
	return ""
}
