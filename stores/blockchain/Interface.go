// Package blockchain stores per-block chain metadata: parent, height, creation
// time and the UTXO set after applying the block.
package blockchain

import (
	"context"

	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
)

type Store interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	// StoreBlockMeta is a no-op when meta for the block already exists.
	StoreBlockMeta(ctx context.Context, blockMeta *meta.BlockMeta) error
	// GetBlockMeta returns a NotFound error for unknown blocks.
	GetBlockMeta(ctx context.Context, id model.ObjectID) (*meta.BlockMeta, error)
	// GetBlockInfo is GetBlockMeta without the UTXO set.
	GetBlockInfo(ctx context.Context, id model.ObjectID) (*meta.BlockInfo, error)
	BlockMetaExists(ctx context.Context, id model.ObjectID) (bool, error)
	// GetState returns a NotFound error for unknown keys.
	GetState(ctx context.Context, key string) ([]byte, error)
	SetState(ctx context.Context, key string, data []byte) error
	Close(ctx context.Context) error
}
