// Package embedded implements a file-backed document engine with the same
// driver surface as the MongoDB adapter. Documents are kept as raw BSON in
// memory and persisted as msgpack snapshots.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-users/pkg/domain"
	"github.com/adfharrison1/go-users/pkg/storage/query"
)

var (
	// ErrDuplicateKey is returned when an inserted _id already exists in the collection.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")
)

// collection holds documents in insertion order plus an _id set for uniqueness.
type collection struct {
	docs []bson.Raw
	ids  map[string]struct{}
}

func newCollection() *collection {
	return &collection{ids: make(map[string]struct{})}
}

// Engine is an embedded document store. It is safe for concurrent use.
type Engine struct {
	mu        sync.RWMutex
	databases map[string]map[string]*collection
	dirty     bool
	closed    bool

	// Configuration
	path             string // empty means memory only
	saveOnWrite      bool
	compression      bool
	snapshotInterval time.Duration

	// Serializes snapshot writes
	saveMu sync.Mutex

	// Background workers
	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
	closeOnce    sync.Once
}

// Open creates an engine backed by the snapshot at path, loading it when it
// exists. An empty path gives a memory-only engine.
func Open(path string, options ...Option) (*Engine, error) {
	engine := &Engine{
		databases:   make(map[string]map[string]*collection),
		path:        path,
		compression: true,
		stopChan:    make(chan struct{}),
	}

	for _, option := range options {
		option(engine)
	}

	if path != "" {
		if err := engine.load(); err != nil {
			return nil, err
		}
	}

	engine.startBackgroundSaver()
	return engine, nil
}

func (e *Engine) load() error {
	snap, err := readSnapshot(e.path)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", e.path, err)
	}
	if snap == nil {
		log.Info().Str("path", e.path).Msg("no snapshot found, starting empty")
		return nil
	}

	total := 0
	for dbName, colls := range snap.Databases {
		db := make(map[string]*collection, len(colls))
		for collName, docs := range colls {
			c := newCollection()
			for _, data := range docs {
				raw := bson.Raw(data)
				if err := raw.Validate(); err != nil {
					return fmt.Errorf("corrupt document in %s.%s: %w", dbName, collName, err)
				}
				idValue, err := raw.LookupErr("_id")
				if err != nil {
					return fmt.Errorf("document without _id in %s.%s", dbName, collName)
				}
				c.ids[idKey(idValue)] = struct{}{}
				c.docs = append(c.docs, raw)
			}
			db[collName] = c
			total += len(c.docs)
		}
		e.databases[dbName] = db
	}

	log.Info().
		Str("path", e.path).
		Int("documents", total).
		Time("saved_at", snap.SavedAt).
		Msg("loaded snapshot")
	return nil
}

// FindOne returns the first document in collection matching filter, or nil when none match.
func (e *Engine) FindOne(ctx context.Context, database, coll string, filter domain.Filter, opts *domain.FindOneOptions) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}

	c := e.databases[database][coll]
	if c == nil {
		return nil, nil
	}

	var skip int64
	var order []domain.SortField
	if opts != nil {
		skip = opts.Skip
		order = opts.Sort
	}
	// Negative skips are ignored, as the MongoDB driver does.
	if skip < 0 {
		skip = 0
	}

	type candidate struct {
		raw bson.Raw
		doc bson.M
	}
	var matches []candidate

	for _, raw := range c.docs {
		var doc bson.M
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode stored document: %w", err)
		}
		if !query.MatchesFilter(doc, filter) {
			continue
		}
		if len(order) == 0 {
			if skip > 0 {
				skip--
				continue
			}
			return cloneRaw(raw), nil
		}
		matches = append(matches, candidate{raw: raw, doc: doc})
	}

	if len(order) == 0 || int64(len(matches)) <= skip {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return query.Less(matches[i].doc, matches[j].doc, order)
	})
	return cloneRaw(matches[skip].raw), nil
}

// InsertOne stores doc and returns its _id. Documents without an _id get a new ObjectID.
// The engine has no document validators, so BypassDocumentValidation has no effect.
func (e *Engine) InsertOne(ctx context.Context, database, coll string, doc interface{}, _ *domain.InsertOneOptions) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, id, key, err := prepareDocument(doc)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}

	db, exists := e.databases[database]
	if !exists {
		db = make(map[string]*collection)
		e.databases[database] = db
	}
	c, exists := db[coll]
	if !exists {
		c = newCollection()
		db[coll] = c
	}

	if _, dup := c.ids[key]; dup {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: _id %v", ErrDuplicateKey, id)
	}

	c.ids[key] = struct{}{}
	c.docs = append(c.docs, raw)
	e.dirty = true
	e.mu.Unlock()

	if e.saveOnWrite {
		if err := e.Save(); err != nil {
			return nil, fmt.Errorf("persist insert: %w", err)
		}
	}

	return id, nil
}

// Ping reports whether the engine is open.
func (e *Engine) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// Count returns the number of documents in a collection.
func (e *Engine) Count(database, coll string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c := e.databases[database][coll]; c != nil {
		return len(c.docs)
	}
	return 0
}

// Save writes a snapshot of the current state. It is a no-op for memory-only engines.
func (e *Engine) Save() error {
	if e.path == "" {
		return nil
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	snap := e.snapshotLocked()
	e.dirty = false
	e.mu.Unlock()

	if err := writeSnapshot(e.path, snap, e.compression); err != nil {
		e.mu.Lock()
		e.dirty = true
		e.mu.Unlock()
		return err
	}
	return nil
}

// snapshotLocked copies the document index. Raw documents are never mutated
// after insertion so they are shared, not copied. Caller must hold e.mu.
func (e *Engine) snapshotLocked() *snapshot {
	snap := &snapshot{
		Databases: make(map[string]map[string][][]byte, len(e.databases)),
		SavedAt:   time.Now().UTC(),
	}
	for dbName, colls := range e.databases {
		out := make(map[string][][]byte, len(colls))
		for collName, c := range colls {
			docs := make([][]byte, len(c.docs))
			for i, raw := range c.docs {
				docs[i] = raw
			}
			out[collName] = docs
		}
		snap.Databases[dbName] = out
	}
	return snap
}

func (e *Engine) isDirty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dirty
}

// Close stops background workers and writes a final snapshot if anything changed.
func (e *Engine) Close(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		e.stopBackgroundSaver()

		if e.isDirty() {
			err = e.Save()
		}

		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		log.Info().Str("path", e.path).Msg("embedded engine closed")
	})
	return err
}

// prepareDocument encodes doc, adding an ObjectID _id when it has none. It returns
// the encoded document, the native id and the id's uniqueness key.
func prepareDocument(doc interface{}) (bson.Raw, interface{}, string, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, nil, "", fmt.Errorf("encode document: %w", err)
	}
	raw := bson.Raw(data)

	if idValue, err := raw.LookupErr("_id"); err == nil {
		var id interface{}
		if err := idValue.Unmarshal(&id); err != nil {
			return nil, nil, "", fmt.Errorf("decode _id: %w", err)
		}
		return raw, id, idKey(idValue), nil
	}

	var fields bson.D
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, nil, "", fmt.Errorf("decode document: %w", err)
	}

	oid := primitive.NewObjectID()
	withID := append(bson.D{{Key: "_id", Value: oid}}, fields...)
	data, err = bson.Marshal(withID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("encode document: %w", err)
	}
	raw = bson.Raw(data)

	idValue, err := raw.LookupErr("_id")
	if err != nil {
		return nil, nil, "", fmt.Errorf("lookup generated _id: %w", err)
	}
	return raw, oid, idKey(idValue), nil
}

// idKey identifies an _id by BSON type and encoded bytes.
func idKey(v bson.RawValue) string {
	return string(append([]byte{byte(v.Type)}, v.Value...))
}

func cloneRaw(raw bson.Raw) bson.Raw {
	out := make(bson.Raw, len(raw))
	copy(out, raw)
	return out
}
