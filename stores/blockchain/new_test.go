package blockchain

import (
	"context"
	"net/url"
	"testing"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
	"github.com/bsv-blockchain/marabu/stores/utxo"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pubKey = "3f0bc71a375b574e4bda3ddf502fe1afd99aa020bf6049adfe525d9ad18ff33f"

func TestStores(t *testing.T) {
	for _, storeURL := range []string{"memory:///", "sqlitememory:///blockchain"} {
		t.Run(storeURL, func(t *testing.T) {
			u, err := url.Parse(storeURL)
			require.NoError(t, err)

			store, err := NewStore(ulogger.TestLogger{}, u, t.TempDir())
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

	cb := model.NewCoinbase(1, pubKey, 50)

	genesis := &meta.BlockMeta{
		BlockInfo: meta.BlockInfo{ID: "aa", Height: 0, Created: 100},
		UTXO:      utxo.NewSet(),
	}

	parentID := genesis.ID
	child := &meta.BlockMeta{
		BlockInfo: meta.BlockInfo{ID: "bb", ParentID: &parentID, Height: 1, Created: 200},
		UTXO:      utxo.NewSet(cb.Outpoint(0).Key()),
	}

	_, err := store.GetBlockMeta(ctx, genesis.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// children need their parent first
	err = store.StoreBlockMeta(ctx, child)
	require.Error(t, err)

	require.NoError(t, store.StoreBlockMeta(ctx, genesis))
	require.NoError(t, store.StoreBlockMeta(ctx, child))
	require.NoError(t, store.StoreBlockMeta(ctx, child))

	exists, err := store.BlockMetaExists(ctx, child.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.BlockMetaExists(ctx, "cc")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := store.GetBlockMeta(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Height)
	assert.Equal(t, int64(200), got.Created)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, genesis.ID, *got.ParentID)
	assert.True(t, got.UTXO.Has(cb.Outpoint(0)))

	info, err := store.GetBlockInfo(ctx, genesis.ID)
	require.NoError(t, err)
	assert.Nil(t, info.ParentID)
	assert.Equal(t, uint64(0), info.Height)

	_, err = store.GetState(ctx, "longestchain")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, store.SetState(ctx, "longestchain", []byte("one")))
	require.NoError(t, store.SetState(ctx, "longestchain", []byte("two")))

	state, err := store.GetState(ctx, "longestchain")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), state)
}

func TestNewStore_UnknownScheme(t *testing.T) {
	u, err := url.Parse("aerospike://localhost")
	require.NoError(t, err)

	_, err = NewStore(ulogger.TestLogger{}, u, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
