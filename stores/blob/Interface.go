// Package blob provides key/value storage for raw objects with several backends.
package blob

import (
	"context"
)

// Store holds opaque values under byte keys. Get on a missing key returns an
// error matching errors.ErrNotFound.
type Store interface {
	// Health returns an HTTP status code and a short description of the backend.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Exists(ctx context.Context, key []byte) (bool, error)
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key []byte, value []byte) error
	Del(ctx context.Context, key []byte) error
	Close(ctx context.Context) error
}
