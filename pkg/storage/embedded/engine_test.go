package embedded

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"

	"github.com/adfharrison1/go-users/pkg/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openMemory(t *testing.T, options ...Option) *Engine {
	t.Helper()
	engine, err := Open("", options...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close(context.Background()) })
	return engine
}

func decodeUser(t *testing.T, raw bson.Raw) domain.User {
	t.Helper()
	var u domain.User
	require.NoError(t, bson.Unmarshal(raw, &u))
	return u
}

func TestEngine_InsertAndFindOne(t *testing.T) {
	ctx := context.Background()
	engine := openMemory(t)

	user := domain.User{ID: 76, Name: "Ada", Phone: "555", Email: domain.StringPtr("ada@example.com"), IsActive: true}
	id, err := engine.InsertOne(ctx, "myDB", "users", user, nil)
	require.NoError(t, err)

	oid, ok := id.(primitive.ObjectID)
	require.True(t, ok, "expected generated ObjectID, got %T", id)
	assert.False(t, oid.IsZero())
	assert.Equal(t, 1, engine.Count("myDB", "users"))

	raw, err := engine.FindOne(ctx, "myDB", "users", domain.Filter{"id": 76}, nil)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, user, decodeUser(t, raw))

	storedID, err := raw.LookupErr("_id")
	require.NoError(t, err)
	assert.Equal(t, oid, storedID.ObjectID())
}

func TestEngine_FindOneNoMatch(t *testing.T) {
	ctx := context.Background()
	engine := openMemory(t)

	_, err := engine.InsertOne(ctx, "myDB", "users", domain.User{ID: 1, Name: "A", Phone: "1"}, nil)
	require.NoError(t, err)

	tests := []struct {
		name       string
		database   string
		collection string
		filter     domain.Filter
	}{
		{"unknown database", "other", "users", nil},
		{"unknown collection", "myDB", "accounts", nil},
		{"no matching document", "myDB", "users", domain.Filter{"id": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := engine.FindOne(ctx, tt.database, tt.collection, tt.filter, nil)
			require.NoError(t, err)
			assert.Nil(t, raw)
		})
	}
}

func TestEngine_ExplicitIDAndDuplicateKey(t *testing.T) {
	ctx := context.Background()
	engine := openMemory(t)

	doc := bson.D{{Key: "_id", Value: "user-1"}, {Key: "name", Value: "A"}}
	id, err := engine.InsertOne(ctx, "myDB", "users", doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	_, err = engine.InsertOne(ctx, "myDB", "users", doc, nil)
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, 1, engine.Count("myDB", "users"))

	// Same _id in another collection is fine
	_, err = engine.InsertOne(ctx, "myDB", "archive", doc, nil)
	require.NoError(t, err)
}

func TestEngine_FindOneSortAndSkip(t *testing.T) {
	ctx := context.Background()
	engine := openMemory(t)

	for _, u := range []domain.User{
		{ID: 3, Name: "Carol", Phone: "3", IsActive: true},
		{ID: 1, Name: "Alice", Phone: "1", IsActive: true},
		{ID: 2, Name: "Bob", Phone: "2", IsActive: false},
		{ID: 4, Name: "Dan", Phone: "4", IsActive: true},
	} {
		_, err := engine.InsertOne(ctx, "myDB", "users", u, nil)
		require.NoError(t, err)
	}

	tests := []struct {
		name       string
		filter     domain.Filter
		opts       *domain.FindOneOptions
		expectedID uint32
		found      bool
	}{
		{"natural order", domain.Filter{"isActive": true}, nil, 3, true},
		{"skip in natural order", domain.Filter{"isActive": true}, &domain.FindOneOptions{Skip: 1}, 1, true},
		{"sort ascending", nil, &domain.FindOneOptions{Sort: []domain.SortField{{Field: "id"}}}, 1, true},
		{"sort descending", nil, &domain.FindOneOptions{Sort: []domain.SortField{{Field: "id", Descending: true}}}, 4, true},
		{"sort with skip", domain.Filter{"isActive": true}, &domain.FindOneOptions{Skip: 2, Sort: []domain.SortField{{Field: "name"}}}, 4, true},
		{"skip past the end", domain.Filter{"isActive": true}, &domain.FindOneOptions{Skip: 3}, 0, false},
		{"sorted skip past the end", nil, &domain.FindOneOptions{Skip: 4, Sort: []domain.SortField{{Field: "id"}}}, 0, false},
		{"negative skip is ignored", domain.Filter{"isActive": true}, &domain.FindOneOptions{Skip: -1}, 3, true},
		{"negative skip with sort is ignored", nil, &domain.FindOneOptions{Skip: -1, Sort: []domain.SortField{{Field: "id"}}}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := engine.FindOne(ctx, "myDB", "users", tt.filter, tt.opts)
			require.NoError(t, err)
			if !tt.found {
				assert.Nil(t, raw)
				return
			}
			require.NotNil(t, raw)
			assert.Equal(t, tt.expectedID, decodeUser(t, raw).ID)
		})
	}
}

func TestEngine_PersistenceRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
	}{
		{"compressed", nil},
		{"uncompressed", []Option{WithCompression(false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "data", "users"+FileExtension)

			engine, err := Open(path, tt.options...)
			require.NoError(t, err)

			user := domain.User{ID: 76, Name: "Ada", Phone: "555", IsActive: true}
			id, err := engine.InsertOne(ctx, "myDB", "users", user, nil)
			require.NoError(t, err)
			require.NoError(t, engine.Close(ctx))

			reopened, err := Open(path, tt.options...)
			require.NoError(t, err)
			defer reopened.Close(ctx)

			assert.Equal(t, 1, reopened.Count("myDB", "users"))
			raw, err := reopened.FindOne(ctx, "myDB", "users", domain.Filter{"id": 76}, nil)
			require.NoError(t, err)
			require.NotNil(t, raw)
			assert.Equal(t, user, decodeUser(t, raw))

			// Reloaded ids still enforce uniqueness
			_, err = reopened.InsertOne(ctx, "myDB", "users", bson.D{{Key: "_id", Value: id}}, nil)
			assert.ErrorIs(t, err, ErrDuplicateKey)
		})
	}
}

func TestEngine_SaveOnWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.godb")

	engine, err := Open(path, WithSaveOnWrite(true))
	require.NoError(t, err)
	defer engine.Close(ctx)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = engine.InsertOne(ctx, "myDB", "users", domain.User{ID: 1, Name: "A", Phone: "1"}, nil)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.False(t, engine.isDirty())
}

func TestEngine_BackgroundSaver(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.godb")

	engine, err := Open(path, WithSaveOnWrite(true), WithSnapshotInterval(10*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, engine.saveOnWrite, "background saves disable save-on-write")

	_, err = engine.InsertOne(ctx, "myDB", "users", domain.User{ID: 1, Name: "A", Phone: "1"}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil && !engine.isDirty()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, engine.Close(ctx))
}

func TestEngine_Closed(t *testing.T) {
	ctx := context.Background()
	engine, err := Open("")
	require.NoError(t, err)
	require.NoError(t, engine.Close(ctx))
	require.NoError(t, engine.Close(ctx), "close is idempotent")

	_, err = engine.InsertOne(ctx, "myDB", "users", domain.User{}, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = engine.FindOne(ctx, "myDB", "users", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, engine.Ping(ctx), ErrClosed)
}

func TestEngine_CanceledContext(t *testing.T) {
	engine := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.InsertOne(ctx, "myDB", "users", domain.User{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = engine.FindOne(ctx, "myDB", "users", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, engine.Ping(ctx), context.Canceled)
}

func TestEngine_ConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	engine := openMemory(t)

	const workers = 50
	ids := make([]interface{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := engine.InsertOne(ctx, "myDB", "users", domain.User{ID: uint32(i), Name: fmt.Sprintf("user-%d", i), Phone: "1"}, nil)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assert.Equal(t, workers, engine.Count("myDB", "users"))
	seen := make(map[interface{}]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %v", id)
		seen[id] = true
	}
}

func TestOpen_CorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.godb")
	require.NoError(t, os.WriteFile(path, []byte("NOPE\x01\x00\x00\x00"), 0644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file header")
}

func TestReadHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, FlagLZ4))

	header, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint8(FormatVersion), header.Version)
	assert.Equal(t, FlagLZ4, header.Flags)

	data := buf.Bytes()
	data[4] = FormatVersion + 1
	_, err = ReadHeader(bytes.NewReader(data))
	assert.ErrorContains(t, err, "unsupported file version")
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		name         string
		uri          string
		expectedPath string
		wantErr      bool
		check        func(t *testing.T, e *Engine)
	}{
		{
			name:         "absolute path",
			uri:          "file:///var/lib/go-users/users.godb",
			expectedPath: "/var/lib/go-users/users.godb",
		},
		{
			name:         "opaque relative path",
			uri:          "file:data/users.godb",
			expectedPath: "data/users.godb",
		},
		{
			name:         "host style relative path",
			uri:          "file://data/users.godb",
			expectedPath: "data/users.godb",
		},
		{
			name:         "options",
			uri:          "file:///tmp/u.godb?snapshot_interval=30s&compression=false",
			expectedPath: "/tmp/u.godb",
			check: func(t *testing.T, e *Engine) {
				assert.Equal(t, 30*time.Second, e.snapshotInterval)
				assert.False(t, e.compression)
				assert.False(t, e.saveOnWrite)
			},
		},
		{
			name:         "save on write",
			uri:          "file:///tmp/u.godb?save_on_write=true",
			expectedPath: "/tmp/u.godb",
			check: func(t *testing.T, e *Engine) {
				assert.True(t, e.saveOnWrite)
			},
		},
		{name: "bad interval", uri: "file:///tmp/u.godb?snapshot_interval=soon", wantErr: true},
		{name: "bad bool", uri: "file:///tmp/u.godb?save_on_write=maybe", wantErr: true},
		{name: "no path", uri: "file://", wantErr: true},
		{name: "wrong scheme", uri: "mongodb://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, options, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedPath, path)

			if tt.check != nil {
				e := &Engine{compression: true}
				for _, option := range options {
					option(e)
				}
				tt.check(t, e)
			}
		})
	}
}
