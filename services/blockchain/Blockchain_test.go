package blockchain

import (
	"context"
	"sync"
	"testing"

	"github.com/bsv-blockchain/marabu/chaincfg"
	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/services/objects"
	blobmemory "github.com/bsv-blockchain/marabu/stores/blob/memory"
	chainmemory "github.com/bsv-blockchain/marabu/stores/blockchain/memory"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
	"github.com/bsv-blockchain/marabu/stores/utxo"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/bsv-blockchain/marabu/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rebase struct {
	tip    model.ObjectID
	replay []model.ObjectID
}

type recordingMempool struct {
	mu      sync.Mutex
	rebases []rebase
}

func (m *recordingMempool) Rebase(_ context.Context, tip *meta.BlockMeta, replay []*model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := rebase{tip: tip.ID}
	for _, tx := range replay {
		r.replay = append(r.replay, tx.ID())
	}

	m.rebases = append(m.rebases, r)

	return nil
}

func (m *recordingMempool) last() rebase {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.rebases[len(m.rebases)-1]
}

type fixture struct {
	params  *chaincfg.Params
	key     *test.Key
	store   *chainmemory.Memory
	objects *objects.Manager
	mempool *recordingMempool
	chain   *Blockchain
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		params:  &chaincfg.RegressionNetParams,
		key:     test.NewKey(1),
		store:   chainmemory.New(),
		mempool: &recordingMempool{},
	}

	f.objects = objects.New(ulogger.TestLogger{}, blobmemory.New(), nil, 0)
	f.chain = New(ulogger.TestLogger{}, f.params, f.store, f.objects, f.mempool)

	require.NoError(t, f.chain.Init(context.Background()))

	f.accept(t, f.params.Genesis, nil, 0)

	return f
}

// add stores block as valid at height without telling the chain.
func (f *fixture) add(t *testing.T, block *model.Block, txs []*model.Transaction, height uint64) *meta.BlockMeta {
	t.Helper()

	ctx := context.Background()

	for _, tx := range txs {
		_, _, err := f.objects.Put(ctx, tx)
		require.NoError(t, err)
	}

	_, _, err := f.objects.Put(ctx, block)
	require.NoError(t, err)

	blockMeta := &meta.BlockMeta{
		BlockInfo: meta.BlockInfo{
			ID:       block.ID(),
			ParentID: block.PrevID,
			Height:   height,
			Created:  block.Created,
		},
		UTXO: utxo.NewSet(),
	}

	require.NoError(t, f.store.StoreBlockMeta(ctx, blockMeta))

	return blockMeta
}

func (f *fixture) accept(t *testing.T, block *model.Block, txs []*model.Transaction, height uint64) {
	t.Helper()

	blockMeta := f.add(t, block, txs, height)
	require.NoError(t, f.chain.OnValidBlock(context.Background(), block, blockMeta))
}

func (f *fixture) acceptChain(t *testing.T, blocks []*model.Block, coinbases []*model.Transaction, startHeight uint64) {
	t.Helper()

	for i, block := range blocks {
		f.accept(t, block, coinbases[i:i+1], startHeight+uint64(i))
	}
}

func (f *fixture) requireTip(t *testing.T, id model.ObjectID, height uint64) {
	t.Helper()

	tip, err := f.chain.GetBestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, tip.ID)
	assert.Equal(t, height, tip.Height)
}

func TestBlockchain_GenesisIsFirstTip(t *testing.T) {
	f := newFixture(t)

	f.requireTip(t, f.params.GenesisID(), 0)

	assert.Equal(t, rebase{tip: f.params.GenesisID()}, f.mempool.last())

	tipMeta, err := f.chain.GetBestBlockMeta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, tipMeta.UTXO.Len())
}

func TestBlockchain_Fork(t *testing.T) {
	f := newFixture(t)

	main, mainCoinbases := test.Chain(f.params, f.params.Genesis, 1, 5, f.key, 0)
	f.acceptChain(t, main, mainCoinbases, 1)
	f.requireTip(t, main[4].ID(), 5)

	// a competing chain forking off the block at height 3
	fork, forkCoinbases := test.Chain(f.params, main[2], 4, 3, f.key, 1)

	f.acceptChain(t, fork[:2], forkCoinbases[:2], 4)
	f.requireTip(t, main[4].ID(), 5)
	assert.Equal(t, main[4].ID(), f.mempool.last().tip)

	f.acceptChain(t, fork[2:], forkCoinbases[2:], 6)
	f.requireTip(t, fork[2].ID(), 6)
	assert.Equal(t, fork[2].ID(), f.mempool.last().tip)

	lca, shortFork, longFork, err := f.chain.GetForks(context.Background(), main[4].ID(), fork[2].ID())
	require.NoError(t, err)

	assert.Equal(t, main[2].ID(), lca)
	assert.Equal(t, []model.ObjectID{main[3].ID(), main[4].ID()}, shortFork)
	assert.Equal(t, []model.ObjectID{fork[0].ID(), fork[1].ID(), fork[2].ID()}, longFork)
}

func TestBlockchain_GetForksOnOneChain(t *testing.T) {
	f := newFixture(t)

	blocks, coinbases := test.Chain(f.params, f.params.Genesis, 1, 3, f.key, 0)
	f.acceptChain(t, blocks, coinbases, 1)

	lca, shortFork, longFork, err := f.chain.GetForks(context.Background(), blocks[0].ID(), blocks[2].ID())
	require.NoError(t, err)

	assert.Equal(t, blocks[0].ID(), lca)
	assert.Empty(t, shortFork)
	assert.Equal(t, []model.ObjectID{blocks[1].ID(), blocks[2].ID()}, longFork)

	_, _, _, err = f.chain.GetForks(context.Background(), blocks[0].ID(), model.ObjectID("00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBlockchain_ReorgReplaysAbandonedTransactions(t *testing.T) {
	f := newFixture(t)

	cb1 := test.Coinbase(1, f.key, f.params.BlockReward)
	b1 := test.NewBlock(f.params, f.params.Genesis, []*model.Transaction{cb1})
	f.accept(t, b1, []*model.Transaction{cb1}, 1)

	cb2 := test.Coinbase(2, f.key, f.params.BlockReward)
	spend := test.SpendOutput(cb1, 0, f.key, test.Output(test.NewKey(2), 10))
	b2 := test.NewBlock(f.params, b1, []*model.Transaction{cb2, spend})
	f.accept(t, b2, []*model.Transaction{cb2, spend}, 2)

	assert.Empty(t, f.mempool.last().replay)

	forkBlocks, forkCoinbases := test.Chain(f.params, b1, 2, 2, f.key, 7)
	f.acceptChain(t, forkBlocks, forkCoinbases, 2)

	f.requireTip(t, forkBlocks[1].ID(), 3)
	assert.Equal(t, rebase{tip: forkBlocks[1].ID(), replay: []model.ObjectID{spend.ID()}}, f.mempool.last())
}

func TestBlockchain_RestoresTipAfterRestart(t *testing.T) {
	f := newFixture(t)

	main, mainCoinbases := test.Chain(f.params, f.params.Genesis, 1, 5, f.key, 0)
	f.acceptChain(t, main, mainCoinbases, 1)

	fork, forkCoinbases := test.Chain(f.params, main[2], 4, 3, f.key, 1)
	f.acceptChain(t, fork[:2], forkCoinbases[:2], 4)

	// a fresh chain manager over the same stores knows nothing but the tip
	f.chain = New(ulogger.TestLogger{}, f.params, f.store, f.objects, f.mempool)
	require.NoError(t, f.chain.Init(context.Background()))
	f.requireTip(t, main[4].ID(), 5)

	f.acceptChain(t, fork[2:], forkCoinbases[2:], 6)
	f.requireTip(t, fork[2].ID(), 6)

	lca, shortFork, longFork, err := f.chain.GetForks(context.Background(), main[4].ID(), fork[2].ID())
	require.NoError(t, err)
	assert.Equal(t, main[2].ID(), lca)
	assert.Len(t, shortFork, 2)
	assert.Len(t, longFork, 3)
}

func TestBlockchain_Init(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		chain := New(ulogger.TestLogger{}, &chaincfg.RegressionNetParams, chainmemory.New(), nil, nil)
		require.NoError(t, chain.Init(context.Background()))

		_, err := chain.GetBestBlock(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("corrupt tip falls back to genesis", func(t *testing.T) {
		f := newFixture(t)

		blocks, coinbases := test.Chain(f.params, f.params.Genesis, 1, 2, f.key, 0)
		f.acceptChain(t, blocks, coinbases, 1)

		require.NoError(t, f.store.SetState(context.Background(), StateKeyLongestChain, []byte("garbage")))

		chain := New(ulogger.TestLogger{}, f.params, f.store, f.objects, f.mempool)
		require.NoError(t, chain.Init(context.Background()))

		tip, err := chain.GetBestBlock(context.Background())
		require.NoError(t, err)
		assert.Equal(t, f.params.GenesisID(), tip.ID)
	})
}

func TestBlockIndex_RejectsOrphansAndBadHeights(t *testing.T) {
	idx := newBlockIndex()

	genesis := model.ObjectID("g")
	child := model.ObjectID("c")
	orphanParent := model.ObjectID("x")

	pos, err := idx.add(genesis, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	_, err = idx.add(child, &orphanParent, 1)
	require.Error(t, err)

	_, err = idx.add(child, &genesis, 2)
	require.Error(t, err)

	pos, err = idx.add(child, &genesis, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	// adding again is a no-op
	pos, err = idx.add(child, &genesis, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Len(t, idx.nodes, 2)

	other, err := idx.add(model.ObjectID("o"), nil, 0)
	require.NoError(t, err)

	_, _, _, err = idx.forks(pos, other)
	require.Error(t, err)
}
