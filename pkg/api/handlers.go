package api

import (
	"context"

	"github.com/adfharrison1/go-users/pkg/domain"
)

const (
	// DefaultDatabase is the database holding the users collection
	DefaultDatabase = "myDB"
	// UsersCollection is the collection user records live in
	UsersCollection = "users"
	// FeaturedUserID is the record id served by GET /user
	FeaturedUserID = 76
)

// Pinger reports whether the storage backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the user API
type Handler struct {
	users      domain.Store[domain.User]
	database   string
	collection string
	pinger     Pinger
}

type HandlerOption func(*Handler)

// WithDatabase overrides the database name (default: DefaultDatabase)
func WithDatabase(name string) HandlerOption {
	return func(h *Handler) {
		if name != "" {
			h.database = name
		}
	}
}

// WithCollection overrides the collection name (default: UsersCollection)
func WithCollection(name string) HandlerOption {
	return func(h *Handler) {
		if name != "" {
			h.collection = name
		}
	}
}

// WithPinger makes the health endpoint check storage reachability
func WithPinger(p Pinger) HandlerOption {
	return func(h *Handler) {
		h.pinger = p
	}
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(users domain.Store[domain.User], options ...HandlerOption) *Handler {
	h := &Handler{
		users:      users,
		database:   DefaultDatabase,
		collection: UsersCollection,
	}
	for _, option := range options {
		option(h)
	}
	return h
}
