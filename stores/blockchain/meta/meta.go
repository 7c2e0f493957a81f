// Package meta holds the per-block chain metadata records shared by the
// blockchain store implementations.
package meta

import (
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/utxo"
)

type BlockInfo struct {
	ID model.ObjectID
	// ParentID is nil for genesis.
	ParentID *model.ObjectID
	Height   uint64
	Created  int64
}

// BlockMeta is recorded for valid blocks only. UTXO is shared between readers
// and must be copied before it is modified.
type BlockMeta struct {
	BlockInfo
	UTXO *utxo.Set
}
