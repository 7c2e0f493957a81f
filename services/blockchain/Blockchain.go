// Package blockchain tracks the longest chain of valid blocks and rebases the
// mempool whenever its tip moves.
package blockchain

import (
	"context"
	"sync"

	"github.com/bsv-blockchain/marabu/chaincfg"
	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/blockchain"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
	"github.com/bsv-blockchain/marabu/ulogger"
	jsoniter "github.com/json-iterator/go"
)

// StateKeyLongestChain is the state key the chain tip is persisted under.
const StateKeyLongestChain = "longestchain"

// Mempool is rebuilt on top of every new tip. replay holds the transactions of
// blocks that left the longest chain, oldest first.
type Mempool interface {
	Rebase(ctx context.Context, tip *meta.BlockMeta, replay []*model.Transaction) error
}

// ObjectGetter reads stored blocks and transactions.
type ObjectGetter interface {
	Get(ctx context.Context, id model.ObjectID) (model.Object, error)
	GetTransaction(ctx context.Context, id model.ObjectID) (*model.Transaction, error)
}

type persistedTip struct {
	BlockID model.ObjectID `json:"blockid"`
	Height  uint64         `json:"height"`
}

type Blockchain struct {
	logger  ulogger.Logger
	params  *chaincfg.Params
	store   blockchain.Store
	objects ObjectGetter
	mempool Mempool

	mu    sync.Mutex
	index *blockIndex
	tip   *meta.BlockMeta
}

func New(logger ulogger.Logger, params *chaincfg.Params, store blockchain.Store, objects ObjectGetter, mempool Mempool) *Blockchain {
	initPrometheusMetrics()

	return &Blockchain{
		logger:  logger,
		params:  params,
		store:   store,
		objects: objects,
		mempool: mempool,
		index:   newBlockIndex(),
	}
}

// Init loads the persisted tip. Without one the tip is genesis, once genesis
// has been validated.
func (b *Blockchain) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tip, err := b.loadTip(ctx)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			b.logger.Warnf("[Init] failed to load chain tip, falling back to genesis: %v", err)
		}

		tip, err = b.store.GetBlockMeta(ctx, b.params.GenesisID())
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				b.logger.Infof("[Init] genesis has not been validated yet, chain is empty")
				return nil
			}

			return err
		}
	}

	if _, err = b.indexBlock(ctx, tip.BlockInfo); err != nil {
		return err
	}

	b.tip = tip
	prometheusBlockchainHeight.Set(float64(tip.Height))

	b.logger.Infof("[Init] chain tip %s at height %d", tip.ID, tip.Height)

	return nil
}

func (b *Blockchain) loadTip(ctx context.Context) (*meta.BlockMeta, error) {
	data, err := b.store.GetState(ctx, StateKeyLongestChain)
	if err != nil {
		return nil, err
	}

	var tip persistedTip
	if err = jsoniter.ConfigFastest.Unmarshal(data, &tip); err != nil {
		return nil, errors.NewStorageError("stored chain tip is corrupt", err)
	}

	blockMeta, err := b.store.GetBlockMeta(ctx, tip.BlockID)
	if err != nil {
		return nil, err
	}

	if blockMeta.Height != tip.Height {
		return nil, errors.NewStorageError("stored chain tip %s claims height %d, block metadata says %d", tip.BlockID, tip.Height, blockMeta.Height)
	}

	return blockMeta, nil
}

func (b *Blockchain) saveTip(ctx context.Context) error {
	data, err := jsoniter.ConfigFastest.Marshal(persistedTip{BlockID: b.tip.ID, Height: b.tip.Height})
	if err != nil {
		return errors.NewProcessingError("failed to encode chain tip", err)
	}

	return b.store.SetState(ctx, StateKeyLongestChain, data)
}

// OnValidBlock adopts block as the new tip when it is higher than the current
// one. Blocks at or below the tip height are indexed but not adopted.
func (b *Blockchain) OnValidBlock(ctx context.Context, block *model.Block, blockMeta *meta.BlockMeta) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	newPos, err := b.indexBlock(ctx, blockMeta.BlockInfo)
	if err != nil {
		return err
	}

	if b.tip != nil && blockMeta.Height <= b.tip.Height {
		b.logger.Debugf("[OnValidBlock][%s] height %d does not exceed tip height %d", blockMeta.ID.Short(), blockMeta.Height, b.tip.Height)
		return nil
	}

	var replay []*model.Transaction

	if b.tip != nil {
		oldPos, _ := b.index.lookup(b.tip.ID)

		lca, shortFork, longFork, err := b.index.forks(oldPos, newPos)
		if err != nil {
			return err
		}

		if len(shortFork) > 0 {
			prometheusBlockchainReorgs.Inc()
			prometheusBlockchainReorgDepth.Observe(float64(len(shortFork)))

			b.logger.Infof("[OnValidBlock][%s] reorganizing from %s: common ancestor %s, %d blocks abandoned, %d blocks adopted",
				blockMeta.ID.Short(), b.tip.ID.Short(), b.index.nodes[lca].id.Short(), len(shortFork), len(longFork))
		}

		replay, err = b.forkTransactions(ctx, b.index.ids(shortFork))
		if err != nil {
			// the blocks were valid, so this is a local storage problem
			b.logger.Errorf("[OnValidBlock][%s] failed to load abandoned transactions: %v", blockMeta.ID.Short(), err)
		}
	}

	b.tip = blockMeta
	prometheusBlockchainHeight.Set(float64(blockMeta.Height))

	b.logger.Infof("[OnValidBlock][%s] new chain tip at height %d", blockMeta.ID, blockMeta.Height)

	var errs []error

	if b.mempool != nil {
		if err = b.mempool.Rebase(ctx, blockMeta, replay); err != nil {
			errs = append(errs, err)
		}
	}

	if err = b.saveTip(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// indexBlock indexes info, loading any ancestors missing from the index from
// the store first.
func (b *Blockchain) indexBlock(ctx context.Context, info meta.BlockInfo) (int, error) {
	if pos, ok := b.index.lookup(info.ID); ok {
		return pos, nil
	}

	missing := []meta.BlockInfo{info}

	for parentID := info.ParentID; parentID != nil; {
		if _, ok := b.index.lookup(*parentID); ok {
			break
		}

		parent, err := b.store.GetBlockInfo(ctx, *parentID)
		if err != nil {
			return 0, err
		}

		missing = append(missing, *parent)
		parentID = parent.ParentID
	}

	var (
		pos int
		err error
	)

	for i := len(missing) - 1; i >= 0; i-- {
		if pos, err = b.index.add(missing[i].ID, missing[i].ParentID, missing[i].Height); err != nil {
			return 0, err
		}
	}

	return pos, nil
}

// forkTransactions returns the non-coinbase transactions of blocks in order.
func (b *Blockchain) forkTransactions(ctx context.Context, blockIDs []model.ObjectID) ([]*model.Transaction, error) {
	var txs []*model.Transaction

	for _, id := range blockIDs {
		obj, err := b.objects.Get(ctx, id)
		if err != nil {
			return txs, err
		}

		block, ok := obj.(*model.Block)
		if !ok {
			return txs, errors.NewStorageError("object %s is a %s, not a block", id, obj.Type())
		}

		for _, txID := range block.TxIDs {
			tx, err := b.objects.GetTransaction(ctx, txID)
			if err != nil {
				return txs, err
			}

			if !tx.IsCoinbase() {
				txs = append(txs, tx)
			}
		}
	}

	return txs, nil
}

// GetForks returns the lowest common ancestor of two valid blocks and the blocks
// leading from it to each of them, ordered from the ancestor forward.
func (b *Blockchain) GetForks(ctx context.Context, oldTip, newTip model.ObjectID) (lca model.ObjectID, shortFork, longFork []model.ObjectID, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make([]int, 2)

	for i, id := range []model.ObjectID{oldTip, newTip} {
		info, err := b.store.GetBlockInfo(ctx, id)
		if err != nil {
			return "", nil, nil, err
		}

		if positions[i], err = b.indexBlock(ctx, *info); err != nil {
			return "", nil, nil, err
		}
	}

	lcaPos, shortPos, longPos, err := b.index.forks(positions[0], positions[1])
	if err != nil {
		return "", nil, nil, err
	}

	return b.index.nodes[lcaPos].id, b.index.ids(shortPos), b.index.ids(longPos), nil
}

// GetBestBlock returns the chain tip, or a NotFound error before genesis is known.
func (b *Blockchain) GetBestBlock(_ context.Context) (*meta.BlockInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tip == nil {
		return nil, errors.NewNotFoundError("chain has no tip yet")
	}

	info := b.tip.BlockInfo

	return &info, nil
}

// GetBestBlockMeta is GetBestBlock with the tip's UTXO set.
func (b *Blockchain) GetBestBlockMeta(_ context.Context) (*meta.BlockMeta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tip == nil {
		return nil, errors.NewNotFoundError("chain has no tip yet")
	}

	return b.tip, nil
}

func (b *Blockchain) GetBlockMeta(ctx context.Context, id model.ObjectID) (*meta.BlockMeta, error) {
	return b.store.GetBlockMeta(ctx, id)
}
