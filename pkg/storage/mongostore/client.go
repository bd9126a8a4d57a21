// Package mongostore is the MongoDB driver behind the record stores.
package mongostore

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/adfharrison1/go-users/pkg/domain"
)

// Client wraps a *mongo.Client, which is safe for concurrent use and is
// meant to live for the whole process.
type Client struct {
	client *mongo.Client
}

type Option func(*options.ClientOptions)

// WithAppName reports name to the server in the connection handshake
func WithAppName(name string) Option {
	return func(o *options.ClientOptions) {
		if name != "" {
			o.SetAppName(name)
		}
	}
}

// WithTimeout sets the client-side timeout applied to every operation
func WithTimeout(d time.Duration) Option {
	return func(o *options.ClientOptions) {
		o.SetTimeout(d)
	}
}

// WithServerSelectionTimeout bounds how long an operation waits for a usable server
func WithServerSelectionTimeout(d time.Duration) Option {
	return func(o *options.ClientOptions) {
		o.SetServerSelectionTimeout(d)
	}
}

// Connect parses uri and builds a client. Server connections are opened in the
// background, so an unreachable server is not an error here.
func Connect(ctx context.Context, uri string, opts ...Option) (*Client, error) {
	clientOpts := options.Client().ApplyURI(uri)
	for _, opt := range opts {
		opt(clientOpts)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

// FindOne returns the first matching document as raw BSON, or nil when nothing matches.
func (c *Client) FindOne(ctx context.Context, database, coll string, filter domain.Filter, opts *domain.FindOneOptions) (bson.Raw, error) {
	var findOpts []*options.FindOneOptions
	if opts != nil {
		findOpts = append(findOpts, findOneOptions(opts))
	}

	raw, err := c.client.Database(database).Collection(coll).
		FindOne(ctx, filterDocument(filter), findOpts...).
		Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// InsertOne inserts doc and returns the server or driver assigned _id.
func (c *Client) InsertOne(ctx context.Context, database, coll string, doc interface{}, opts *domain.InsertOneOptions) (interface{}, error) {
	var insertOpts []*options.InsertOneOptions
	if opts != nil {
		insertOpts = append(insertOpts, options.InsertOne().SetBypassDocumentValidation(opts.BypassDocumentValidation))
	}

	res, err := c.client.Database(database).Collection(coll).InsertOne(ctx, doc, insertOpts...)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

// Ping checks connectivity to the primary
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// filterDocument converts an equality filter to a key-ordered bson.D so the
// command sent to the server is deterministic.
func filterDocument(filter domain.Filter) bson.D {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: filter[k]})
	}
	return doc
}

func findOneOptions(opts *domain.FindOneOptions) *options.FindOneOptions {
	o := options.FindOne()
	if opts.Skip > 0 {
		o.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		order := make(bson.D, 0, len(opts.Sort))
		for _, f := range opts.Sort {
			dir := 1
			if f.Descending {
				dir = -1
			}
			order = append(order, bson.E{Key: f.Field, Value: dir})
		}
		o.SetSort(order)
	}
	return o
}
