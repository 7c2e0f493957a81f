package blob

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	dir := t.TempDir()

	urls := map[string]string{
		"memory":       "memory://",
		"file":         "file://" + filepath.Join(dir, "objects"),
		"sqlitememory": "sqlitememory:///objects",
		"sqlite":       "sqlite:///objects",
	}

	for name, rawURL := range urls {
		t.Run(name, func(t *testing.T) {
			storeURL, err := url.Parse(rawURL)
			require.NoError(t, err)

			store, err := NewStore(ulogger.TestLogger{}, storeURL, dir)
			require.NoError(t, err)

			defer func() {
				_ = store.Close(context.Background())
			}()

			testStore(t, store)
		})
	}
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()
	key := []byte("00002fa163c7dab0991544424b9fd302bb1782b185e5a3bbdf12afb758e57dee")

	status, _, err := store.Health(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 200, status)

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Get(ctx, key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, store.Set(ctx, key, []byte(`{"type":"block"}`)))
	require.NoError(t, store.Set(ctx, key, []byte(`{"type":"block","v":2}`)))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	value, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"block","v":2}`, string(value))

	require.NoError(t, store.Del(ctx, key))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUnknownScheme(t *testing.T) {
	storeURL, _ := url.Parse("s3://bucket")

	_, err := NewStore(ulogger.TestLogger{}, storeURL, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
