package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/adfharrison1/go-users/pkg/domain"
	"github.com/adfharrison1/go-users/pkg/storage/embedded"
	"github.com/adfharrison1/go-users/pkg/storage/mongostore"
)

// Open constructs the driver named by the URI scheme:
//
//	mongodb://, mongodb+srv://  MongoDB cluster
//	file://                     embedded engine persisted to a snapshot file
//
// No network round trip happens here; MongoDB connections are established on first use.
// Failures are reported as *domain.ConnectionError.
func Open(ctx context.Context, uri string, appName string) (Driver, error) {
	if uri == "" {
		return nil, &domain.ConnectionError{Err: errors.New("empty connection URI")}
	}

	// Only the scheme is read here. MongoDB seed lists such as "h1:27017,h2" are not
	// valid net/url hosts, so each driver parses the full string itself.
	scheme, _, ok := strings.Cut(uri, ":")
	if !ok {
		return nil, &domain.ConnectionError{Err: errors.New("connection URI has no scheme")}
	}

	switch scheme {
	case "mongodb", "mongodb+srv":
		client, err := mongostore.Connect(ctx, uri, mongostore.WithAppName(appName))
		if err != nil {
			return nil, &domain.ConnectionError{Scheme: scheme, Err: err}
		}
		log.Info().Str("driver", "mongodb").Msg("storage driver ready")
		return client, nil

	case "file":
		path, options, err := embedded.ParseURI(uri)
		if err != nil {
			return nil, &domain.ConnectionError{Scheme: scheme, Err: err}
		}
		engine, err := embedded.Open(path, options...)
		if err != nil {
			return nil, &domain.ConnectionError{Scheme: scheme, Err: err}
		}
		log.Info().Str("driver", "embedded").Str("path", path).Msg("storage driver ready")
		return engine, nil

	default:
		return nil, &domain.ConnectionError{Scheme: scheme, Err: errors.New("unsupported URI scheme")}
	}
}
