package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/onnwee/rankiro/internal/ranking"
)

// Backend names a ranking.Store implementation.
type Backend string

// Supported backends.
const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
	// ErrMissingURL is returned by Open when a backend needs a connection URL.
	ErrMissingURL = errors.New("store backend requires a connection url")
)

// Options selects and configures a backend.
type Options struct {
	Backend     Backend
	DatabaseURL string
	RedisURL    string
	RedisPrefix string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open connects the configured backend. The returned closer releases the
// underlying connection and must be called by the caller.
func Open(ctx context.Context, opts Options) (ranking.Store, io.Closer, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return ranking.NewInMemoryStore(), nopCloser{}, nil

	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("%s: %w", opts.Backend, ErrMissingURL)
		}
		db, err := OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(db), db, nil

	case BackendRedis:
		if opts.RedisURL == "" {
			return nil, nil, fmt.Errorf("%s: %w", opts.Backend, ErrMissingURL)
		}
		client, err := OpenRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client, opts.RedisPrefix), client, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
