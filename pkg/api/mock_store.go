package api

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-users/pkg/domain"
	"github.com/adfharrison1/go-users/pkg/storage/query"
)

// FindOneCall records the arguments of a MockStore.FindOne call
type FindOneCall struct {
	Database   string
	Collection string
	Filter     domain.Filter
	Options    *domain.FindOneOptions
}

// InsertOneCall records the arguments of a MockStore.InsertOne call
type InsertOneCall[T any] struct {
	Database   string
	Collection string
	Record     T
	Options    *domain.InsertOneOptions
}

// MockStore provides an in-memory implementation of domain.Store for testing.
// Calls are recorded; FindOneFunc and InsertOneFunc replace the default
// in-memory behavior when set.
type MockStore[T any] struct {
	mu          sync.RWMutex
	collections map[string][]T
	findCalls   []FindOneCall
	insertCalls []InsertOneCall[T]

	FindOneFunc   func(ctx context.Context, database, collection string, filter domain.Filter, opts *domain.FindOneOptions) (T, bool, error)
	InsertOneFunc func(ctx context.Context, database, collection string, record T, opts *domain.InsertOneOptions) (domain.InsertResult, error)
}

// NewMockStore creates a new mock store
func NewMockStore[T any]() *MockStore[T] {
	return &MockStore[T]{
		collections: make(map[string][]T),
	}
}

var _ domain.Store[domain.User] = (*MockStore[domain.User])(nil)

// FindOne returns the first stored record whose BSON form matches filter
func (m *MockStore[T]) FindOne(ctx context.Context, database, collection string, filter domain.Filter, opts *domain.FindOneOptions) (T, bool, error) {
	m.mu.Lock()
	m.findCalls = append(m.findCalls, FindOneCall{Database: database, Collection: collection, Filter: filter, Options: opts})
	fn := m.FindOneFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, database, collection, filter, opts)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type candidate struct {
		record T
		doc    bson.M
	}
	var matches []candidate
	for _, record := range m.collections[collectionKey(database, collection)] {
		doc, err := toDocument(record)
		if err != nil {
			var zero T
			return zero, false, &domain.StorageError{Op: "find_one", Database: database, Collection: collection, Err: err}
		}
		if query.MatchesFilter(doc, filter) {
			matches = append(matches, candidate{record: record, doc: doc})
		}
	}

	var skip int64
	if opts != nil && opts.Skip > 0 {
		skip = opts.Skip
	}
	if opts != nil {
		sort.SliceStable(matches, func(i, j int) bool {
			return query.Less(matches[i].doc, matches[j].doc, opts.Sort)
		})
	}
	if int64(len(matches)) <= skip {
		var zero T
		return zero, false, nil
	}
	return matches[skip].record, true, nil
}

// InsertOne appends record to the in-memory collection and returns a fresh ObjectID hex
func (m *MockStore[T]) InsertOne(ctx context.Context, database, collection string, record T, opts *domain.InsertOneOptions) (domain.InsertResult, error) {
	m.mu.Lock()
	m.insertCalls = append(m.insertCalls, InsertOneCall[T]{Database: database, Collection: collection, Record: record, Options: opts})
	fn := m.InsertOneFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, database, collection, record, opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := collectionKey(database, collection)
	m.collections[key] = append(m.collections[key], record)

	return domain.InsertResult{InsertedID: primitive.NewObjectID().Hex()}, nil
}

// FindCalls returns a copy of the recorded FindOne calls
func (m *MockStore[T]) FindCalls() []FindOneCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FindOneCall(nil), m.findCalls...)
}

// InsertCalls returns a copy of the recorded InsertOne calls
func (m *MockStore[T]) InsertCalls() []InsertOneCall[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]InsertOneCall[T](nil), m.insertCalls...)
}

// GetCollectionCount returns the number of records stored in a collection
func (m *MockStore[T]) GetCollectionCount(database, collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collectionKey(database, collection)])
}

func collectionKey(database, collection string) string {
	return database + "." + collection
}

func toDocument(record interface{}) (bson.M, error) {
	data, err := bson.Marshal(record)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
