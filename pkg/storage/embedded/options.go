package embedded

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

type Option func(*Engine)

// WithSnapshotInterval saves dirty state in the background every interval.
// Save-on-write is disabled when background saves are enabled.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(engine *Engine) {
		engine.snapshotInterval = interval
		if interval > 0 {
			engine.saveOnWrite = false
		}
	}
}

// WithSaveOnWrite writes a snapshot after every insert (default: false)
func WithSaveOnWrite(enabled bool) Option {
	return func(engine *Engine) {
		engine.saveOnWrite = enabled
	}
}

// WithCompression toggles lz4 compression of snapshot files (default: true)
func WithCompression(enabled bool) Option {
	return func(engine *Engine) {
		engine.compression = enabled
	}
}

// ParseURI splits a file URI into a snapshot path and engine options.
//
//	file:///var/lib/go-users/users.godb?snapshot_interval=30s&save_on_write=false&compression=true
//	file:data/users.godb
func ParseURI(uri string) (string, []Option, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", nil, err
	}
	if u.Scheme != "file" {
		return "", nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	path := u.Host + u.Path
	if path == "" {
		path = u.Opaque
	}
	if path == "" {
		return "", nil, fmt.Errorf("file URI %q has no path", uri)
	}

	var options []Option
	q := u.Query()

	if v := q.Get("snapshot_interval"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return "", nil, fmt.Errorf("invalid snapshot_interval: %w", err)
		}
		options = append(options, WithSnapshotInterval(interval))
	}

	if v := q.Get("save_on_write"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return "", nil, fmt.Errorf("invalid save_on_write: %w", err)
		}
		options = append(options, WithSaveOnWrite(enabled))
	}

	if v := q.Get("compression"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return "", nil, fmt.Errorf("invalid compression: %w", err)
		}
		options = append(options, WithCompression(enabled))
	}

	return path, options, nil
}
