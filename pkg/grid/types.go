package grid

import (
	"context"
	"errors"
)

// Backend is the raw transport behind a Session. Keys and values are JSON
// documents. Lookups of absent keys return a nil slice and no error.
type Backend interface {
	// Ping reports whether the grid is ready to serve requests.
	Ping(ctx context.Context) error
	Get(ctx context.Context, mapName string, key []byte) ([]byte, error)
	// Put stores value under key and returns the previous value, if any.
	Put(ctx context.Context, mapName string, key, value []byte) ([]byte, error)
	// Remove deletes key and returns the removed value, if any.
	Remove(ctx context.Context, mapName string, key []byte) ([]byte, error)
	Values(ctx context.Context, mapName string) ([][]byte, error)
	Size(ctx context.Context, mapName string) (int, error)
	Clear(ctx context.Context, mapName string) error
	Close() error
}

var (
	// ErrSessionClosed is returned by map operations after Session.Close.
	ErrSessionClosed = errors.New("grid: session closed")
	// ErrNotReady is returned when the grid does not answer within the
	// ready timeout.
	ErrNotReady = errors.New("grid: not ready")
	// ErrInvalidMapName is returned for empty map names.
	ErrInvalidMapName = errors.New("grid: map name is required")
)
