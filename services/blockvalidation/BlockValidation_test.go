package blockvalidation

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bsv-blockchain/marabu/chaincfg"
	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/services/objects"
	"github.com/bsv-blockchain/marabu/services/validator"
	"github.com/bsv-blockchain/marabu/settings"
	blobmemory "github.com/bsv-blockchain/marabu/stores/blob/memory"
	chainmemory "github.com/bsv-blockchain/marabu/stores/blockchain/memory"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/bsv-blockchain/marabu/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chainRecorder struct {
	mu     sync.Mutex
	blocks []model.ObjectID
}

func (c *chainRecorder) OnValidBlock(_ context.Context, block *model.Block, _ *meta.BlockMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks = append(c.blocks, block.ID())

	return nil
}

func (c *chainRecorder) count(id model.ObjectID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0

	for _, b := range c.blocks {
		if b == id {
			n++
		}
	}

	return n
}

type countingNetwork struct {
	requests  atomic.Int32
	requested chan model.ObjectID
}

func newCountingNetwork() *countingNetwork {
	return &countingNetwork{requested: make(chan model.ObjectID, 1)}
}

func (n *countingNetwork) RequestObject(_ context.Context, id model.ObjectID) error {
	n.requests.Add(1)

	select {
	case n.requested <- id:
	default:
	}

	return nil
}

func (n *countingNetwork) Broadcast(_ context.Context, _ objects.Message) error {
	return nil
}

type fixture struct {
	params   *chaincfg.Params
	key      *test.Key
	now      time.Time
	objects  *objects.Manager
	chain    *chainmemory.Memory
	notifier *chainRecorder
	bv       *BlockValidation
}

func newFixture(t *testing.T, tSettings *settings.Settings, network objects.Network) *fixture {
	t.Helper()

	if tSettings == nil {
		tSettings = test.CreateBaseTestSettings()
	}

	f := &fixture{
		params:   tSettings.ChainCfgParams,
		key:      test.NewKey(1),
		now:      time.Unix(tSettings.ChainCfgParams.Genesis.Created+1_000_000, 0),
		chain:    chainmemory.New(),
		notifier: &chainRecorder{},
	}

	f.objects = objects.New(ulogger.TestLogger{}, blobmemory.New(), network, tSettings.BlockValidation.ObjectFetchTimeout)

	f.bv = New(ulogger.NewVerboseTestLogger(t), tSettings, f.objects, f.chain,
		validator.New(ulogger.TestLogger{}, f.objects), f.notifier,
		WithClock(func() time.Time { return f.now }),
	)
	t.Cleanup(f.bv.Stop)

	_, err := f.bv.ValidateBlock(context.Background(), f.params.Genesis)
	require.NoError(t, err)

	return f
}

func (f *fixture) put(t *testing.T, objs ...model.Object) {
	t.Helper()

	for _, obj := range objs {
		_, _, err := f.objects.Put(context.Background(), obj)
		require.NoError(t, err)
	}
}

func (f *fixture) coinbase(height uint64, value uint64) *model.Transaction {
	return test.Coinbase(height, f.key, value)
}

func requireWireName(t *testing.T, err error, name string) {
	t.Helper()

	require.Error(t, err)

	wireName, ok := errors.WireName(err)
	require.True(t, ok, err.Error())
	assert.Equal(t, name, wireName, err.Error())
}

func TestValidateBlock_Genesis(t *testing.T) {
	f := newFixture(t, nil, nil)

	genesisID := f.params.GenesisID()

	blockMeta, err := f.bv.ValidateBlock(context.Background(), f.params.Genesis)
	require.NoError(t, err)

	assert.Equal(t, genesisID, blockMeta.ID)
	assert.Equal(t, uint64(0), blockMeta.Height)
	assert.Nil(t, blockMeta.ParentID)
	assert.Equal(t, 0, blockMeta.UTXO.Len())

	exists, err := f.objects.Exists(context.Background(), genesisID)
	require.NoError(t, err)
	assert.True(t, exists)

	// the second validation returned the stored result
	assert.Equal(t, 1, f.notifier.count(genesisID))
}

func TestValidateBlock_AlteredGenesis(t *testing.T) {
	f := newFixture(t, nil, nil)

	tests := []struct {
		name  string
		alter func(b *model.Block)
		want  string
	}{
		{name: "note", alter: test.WithNote("not the genesis"), want: "INVALID_GENESIS"},
		{name: "no note", alter: func(b *model.Block) { b.Note = nil }, want: "INVALID_GENESIS"},
		{name: "miner", alter: func(b *model.Block) { miner := "someone else"; b.Miner = &miner }, want: "INVALID_GENESIS"},
		{name: "no miner", alter: func(b *model.Block) { b.Miner = nil }, want: "INVALID_GENESIS"},
		{name: "created", alter: test.WithCreated(f.params.Genesis.Created + 1), want: "INVALID_GENESIS"},
		{name: "nonce", alter: test.WithNonce(1), want: "INVALID_GENESIS"},
		{
			name:  "txids",
			alter: func(b *model.Block) { b.TxIDs = []model.ObjectID{f.coinbase(0, 1).ID()} },
			want:  "INVALID_GENESIS",
		},
		// the target is checked before ancestry
		{name: "target", alter: test.WithTarget(chaincfg.MainNetParams.Target), want: "INVALID_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			altered := f.params.Genesis.Clone()
			tt.alter(altered)
			require.NotEqual(t, f.params.GenesisID(), altered.ID())

			_, err := f.bv.ValidateBlock(context.Background(), altered)
			requireWireName(t, err, tt.want)

			exists, err := f.chain.BlockMetaExists(context.Background(), altered.ID())
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestValidateBlock_WrongTarget(t *testing.T) {
	f := newFixture(t, nil, nil)

	block := test.NewBlock(f.params, f.params.Genesis, nil, test.WithTarget(chaincfg.MainNetParams.Target))

	_, err := f.bv.ValidateBlock(context.Background(), block)
	requireWireName(t, err, "INVALID_FORMAT")
}

// mine varies the nonce of b until its proof of work is as wanted.
func mine(t *testing.T, b *model.Block, wantPoW bool) *model.Block {
	t.Helper()

	for n := uint64(0); n < 1000; n++ {
		test.WithNonce(n)(b)

		if b.HasPoW() == wantPoW {
			return b
		}
	}

	t.Fatal("no nonce found")

	return nil
}

func TestValidateBlock_ProofOfWork(t *testing.T) {
	tSettings := test.CreateBaseTestSettings()

	params := *tSettings.ChainCfgParams
	params.Target = "8" + strings.Repeat("0", 63)

	genesis := params.Genesis.Clone()
	genesis.T = params.Target
	params.Genesis = mine(t, genesis, true)

	tSettings.ChainCfgParams = &params

	f := newFixture(t, tSettings, nil)

	weak := mine(t, test.NewBlock(f.params, f.params.Genesis, nil), false)

	_, err := f.bv.ValidateBlock(context.Background(), weak)
	requireWireName(t, err, "INVALID_BLOCK_POW")

	strong := mine(t, test.NewBlock(f.params, f.params.Genesis, nil), true)

	blockMeta, err := f.bv.ValidateBlock(context.Background(), strong)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blockMeta.Height)
}

func TestValidateBlock_Chain(t *testing.T) {
	f := newFixture(t, nil, nil)

	blocks, coinbases := test.Chain(f.params, f.params.Genesis, 1, 3, f.key, 0)

	for i, block := range blocks {
		f.put(t, coinbases[i])

		blockMeta, err := f.bv.ValidateBlock(context.Background(), block)
		require.NoError(t, err)

		assert.Equal(t, uint64(i+1), blockMeta.Height)
		assert.Equal(t, i+1, blockMeta.UTXO.Len())
		assert.True(t, blockMeta.UTXO.Has(coinbases[i].Outpoint(0)))
	}

	// the parent's set is left alone
	parentMeta, err := f.chain.GetBlockMeta(context.Background(), blocks[0].ID())
	require.NoError(t, err)
	assert.Equal(t, 1, parentMeta.UTXO.Len())
}

func TestValidateBlock_ValidatesMissingParents(t *testing.T) {
	f := newFixture(t, nil, nil)

	blocks, coinbases := test.Chain(f.params, f.params.Genesis, 1, 3, f.key, 0)

	for i := range blocks {
		f.put(t, coinbases[i])
	}

	// only the ancestors are in the object store, unvalidated
	f.put(t, blocks[0], blocks[1])

	blockMeta, err := f.bv.ValidateBlock(context.Background(), blocks[2])
	require.NoError(t, err)
	assert.Equal(t, uint64(3), blockMeta.Height)

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()

	assert.Equal(t, []model.ObjectID{f.params.GenesisID(), blocks[0].ID(), blocks[1].ID(), blocks[2].ID()}, f.notifier.blocks)
}

func TestValidateBlock_CoinbaseRewardPlusFees(t *testing.T) {
	f := newFixture(t, nil, nil)

	reward := f.params.BlockReward

	cb1 := f.coinbase(1, reward)
	block1 := test.NewBlock(f.params, f.params.Genesis, []*model.Transaction{cb1})
	f.put(t, cb1)

	_, err := f.bv.ValidateBlock(context.Background(), block1)
	require.NoError(t, err)

	spend := test.SpendOutput(cb1, 0, f.key, test.Output(test.NewKey(2), reward-10))
	f.put(t, spend)

	greedy := f.coinbase(2, reward+11)
	exact := f.coinbase(2, reward+10)
	f.put(t, greedy, exact)

	_, err = f.bv.ValidateBlock(context.Background(), test.NewBlock(f.params, block1, []*model.Transaction{greedy, spend}))
	requireWireName(t, err, "INVALID_BLOCK_COINBASE")

	blockMeta, err := f.bv.ValidateBlock(context.Background(), test.NewBlock(f.params, block1, []*model.Transaction{exact, spend}))
	require.NoError(t, err)

	assert.Equal(t, uint64(2), blockMeta.Height)
	assert.False(t, blockMeta.UTXO.Has(cb1.Outpoint(0)))
	assert.True(t, blockMeta.UTXO.Has(spend.Outpoint(0)))
	assert.True(t, blockMeta.UTXO.Has(exact.Outpoint(0)))
}

func TestValidateBlock_CoinbaseHeight(t *testing.T) {
	f := newFixture(t, nil, nil)

	cb := f.coinbase(2, f.params.BlockReward)
	f.put(t, cb)

	_, err := f.bv.ValidateBlock(context.Background(), test.NewBlock(f.params, f.params.Genesis, []*model.Transaction{cb}))
	requireWireName(t, err, "INVALID_BLOCK_COINBASE")
}

func TestValidateBlock_CoinbasePlacement(t *testing.T) {
	f := newFixture(t, nil, nil)

	blocks, coinbases := test.Chain(f.params, f.params.Genesis, 1, 1, f.key, 0)
	f.put(t, coinbases[0])

	_, err := f.bv.ValidateBlock(context.Background(), blocks[0])
	require.NoError(t, err)

	cb := f.coinbase(2, f.params.BlockReward)
	spend := test.SpendOutput(coinbases[0], 0, f.key, test.Output(f.key, 1))
	spendOwn := test.SpendOutput(cb, 0, f.key, test.Output(f.key, 1))
	f.put(t, cb, spend, spendOwn)

	t.Run("coinbase after another transaction", func(t *testing.T) {
		_, err := f.bv.ValidateBlock(context.Background(), test.NewBlock(f.params, blocks[0], []*model.Transaction{spend, cb}))
		requireWireName(t, err, "INVALID_FORMAT")
	})

	t.Run("spending the coinbase of the same block", func(t *testing.T) {
		_, err := f.bv.ValidateBlock(context.Background(), test.NewBlock(f.params, blocks[0], []*model.Transaction{cb, spendOwn}))
		requireWireName(t, err, "INVALID_TX_OUTPOINT")
	})
}

func TestValidateBlock_TransactionsSpendEarlierOnes(t *testing.T) {
	f := newFixture(t, nil, nil)

	blocks, coinbases := test.Chain(f.params, f.params.Genesis, 1, 1, f.key, 0)
	f.put(t, coinbases[0])

	_, err := f.bv.ValidateBlock(context.Background(), blocks[0])
	require.NoError(t, err)

	first := test.SpendOutput(coinbases[0], 0, f.key, test.Output(f.key, 100))
	second := test.SpendOutput(first, 0, f.key, test.Output(f.key, 90))
	f.put(t, first, second)

	blockMeta, err := f.bv.ValidateBlock(context.Background(), test.NewBlock(f.params, blocks[0], []*model.Transaction{first, second}))
	require.NoError(t, err)
	assert.Equal(t, 1, blockMeta.UTXO.Len())
	assert.True(t, blockMeta.UTXO.Has(second.Outpoint(0)))

	_, err = f.bv.ValidateBlock(context.Background(), test.NewBlock(f.params, blocks[0], []*model.Transaction{second, first}))
	requireWireName(t, err, "INVALID_TX_OUTPOINT")
}

func TestValidateBlock_RevalidationReturnsSameResult(t *testing.T) {
	f := newFixture(t, nil, nil)

	blocks, coinbases := test.Chain(f.params, f.params.Genesis, 1, 1, f.key, 0)
	f.put(t, coinbases[0])

	_, err := f.bv.ValidateBlock(context.Background(), blocks[0])
	require.NoError(t, err)

	cb2 := f.coinbase(2, f.params.BlockReward)
	spend := test.SpendOutput(coinbases[0], 0, f.key, test.Output(f.key, 60), test.Output(f.key, 40))
	f.put(t, cb2, spend)

	block := test.NewBlock(f.params, blocks[0], []*model.Transaction{cb2, spend})

	first, err := f.bv.ValidateBlock(context.Background(), block)
	require.NoError(t, err)

	second, err := f.bv.ValidateBlock(context.Background(), block)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), second.Height)
	assert.Equal(t, first.Height, second.Height)
	assert.ElementsMatch(t, first.UTXO.Outpoints(), second.UTXO.Outpoints())
	assert.ElementsMatch(t, []string{
		cb2.Outpoint(0).Key(),
		spend.Outpoint(0).Key(),
		spend.Outpoint(1).Key(),
	}, second.UTXO.Outpoints())

	assert.Equal(t, 1, f.notifier.count(block.ID()))
}

func TestValidateBlock_Timestamps(t *testing.T) {
	f := newFixture(t, nil, nil)

	genesis := f.params.Genesis
	now := f.now.Unix()

	tests := []struct {
		name    string
		created int64
		valid   bool
	}{
		{name: "same as parent", created: genesis.Created, valid: false},
		{name: "before parent", created: genesis.Created - 1, valid: false},
		{name: "in the future", created: now + 1, valid: false},
		{name: "now", created: now, valid: true},
		{name: "after parent", created: genesis.Created + 1, valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bv.ValidateBlock(context.Background(), test.NewBlock(f.params, genesis, nil, test.WithCreated(tt.created)))
			if tt.valid {
				require.NoError(t, err)
				return
			}

			requireWireName(t, err, "INVALID_BLOCK_TIMESTAMP")
		})
	}
}

func TestValidateBlock_FutureBlockValidatesLater(t *testing.T) {
	f := newFixture(t, nil, nil)

	early := test.NewBlock(f.params, f.params.Genesis, nil, test.WithCreated(f.now.Unix()+5))
	child := test.NewBlock(f.params, early, nil)
	f.put(t, early)

	_, err := f.bv.ValidateBlock(context.Background(), early)
	requireWireName(t, err, "INVALID_BLOCK_TIMESTAMP")
	assert.Nil(t, f.bv.rejected.Get(early.ID()))

	_, err = f.bv.ValidateBlock(context.Background(), child)
	requireWireName(t, err, "INVALID_ANCESTRY")
	assert.Nil(t, f.bv.rejected.Get(child.ID()))

	f.now = f.now.Add(time.Minute)

	blockMeta, err := f.bv.ValidateBlock(context.Background(), early)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blockMeta.Height)

	blockMeta, err = f.bv.ValidateBlock(context.Background(), child)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), blockMeta.Height)
}

func TestValidateBlock_Unfindable(t *testing.T) {
	f := newFixture(t, nil, nil)

	t.Run("transaction", func(t *testing.T) {
		block := test.NewBlock(f.params, f.params.Genesis, []*model.Transaction{f.coinbase(1, 1)})

		_, err := f.bv.ValidateBlock(context.Background(), block)
		requireWireName(t, err, "UNFINDABLE_OBJECT")

		// transient failures are not remembered
		assert.Nil(t, f.bv.rejected.Get(block.ID()))
	})

	t.Run("parent", func(t *testing.T) {
		missing := test.NewBlock(f.params, f.params.Genesis, nil, test.WithNote("never sent"))
		block := test.NewBlock(f.params, missing, nil)

		_, err := f.bv.ValidateBlock(context.Background(), block)
		requireWireName(t, err, "UNFINDABLE_OBJECT")
		assert.Nil(t, f.bv.rejected.Get(block.ID()))
	})
}

func TestValidateBlock_ParentIsNotABlock(t *testing.T) {
	f := newFixture(t, nil, nil)

	tx := f.coinbase(1, 1)
	f.put(t, tx)

	txID := tx.ID()
	block := test.NewBlock(f.params, f.params.Genesis, nil)
	block.PrevID = &txID

	_, err := f.bv.ValidateBlock(context.Background(), block)
	requireWireName(t, err, "INVALID_FORMAT")
}

func TestValidateBlock_TransactionIsABlock(t *testing.T) {
	f := newFixture(t, nil, nil)

	block := test.NewBlock(f.params, f.params.Genesis, nil)
	block.TxIDs = []model.ObjectID{f.params.GenesisID()}

	_, err := f.bv.ValidateBlock(context.Background(), block)
	requireWireName(t, err, "INVALID_FORMAT")
}

func TestValidateBlock_InvalidParent(t *testing.T) {
	f := newFixture(t, nil, nil)

	cb := f.coinbase(5, f.params.BlockReward)
	parent := test.NewBlock(f.params, f.params.Genesis, []*model.Transaction{cb})
	child := test.NewBlock(f.params, parent, nil)

	f.put(t, cb, parent)

	_, err := f.bv.ValidateBlock(context.Background(), child)
	requireWireName(t, err, "INVALID_ANCESTRY")
	assert.True(t, errors.Is(err, errors.ErrInvalidAncestry))

	// the parent was rejected on its own account
	_, err = f.bv.ValidateBlock(context.Background(), parent)
	requireWireName(t, err, "INVALID_BLOCK_COINBASE")
}

func TestValidateBlock_RejectedBlocksAreRemembered(t *testing.T) {
	f := newFixture(t, nil, nil)

	cb := f.coinbase(3, f.params.BlockReward)
	f.put(t, cb)

	block := test.NewBlock(f.params, f.params.Genesis, []*model.Transaction{cb})

	_, err := f.bv.ValidateBlock(context.Background(), block)
	requireWireName(t, err, "INVALID_BLOCK_COINBASE")

	item := f.bv.rejected.Get(block.ID())
	require.NotNil(t, item)

	_, err = f.bv.ValidateBlock(context.Background(), block)
	assert.Equal(t, item.Value(), err)
}

func TestValidateBlock_ConcurrentValidationsRunOnce(t *testing.T) {
	network := newCountingNetwork()
	f := newFixture(t, nil, network)

	cb := f.coinbase(1, f.params.BlockReward)
	block := test.NewBlock(f.params, f.params.Genesis, []*model.Transaction{cb})

	const n = 20

	var wg sync.WaitGroup

	metas := make([]*meta.BlockMeta, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			metas[i], errs[i] = f.bv.ValidateBlock(context.Background(), block)
		}()
	}

	select {
	case id := <-network.requested:
		assert.Equal(t, cb.ID(), id)
	case <-time.After(time.Second):
		t.Fatal("transaction was never requested")
	}

	f.put(t, cb)

	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, block.ID(), metas[i].ID)
		assert.Equal(t, uint64(1), metas[i].Height)
	}

	assert.Equal(t, int32(1), network.requests.Load())
	assert.Equal(t, 1, f.notifier.count(block.ID()))
}

func TestValidationFSM(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	machine := f.bv.newValidationFSM(f.params.GenesisID())
	assert.Equal(t, StateReceived, machine.Current())

	require.Error(t, transition(ctx, machine, EventAccept))

	for _, event := range []string{EventPoWChecked, EventAncestryChecked, EventTxsChecked} {
		require.NoError(t, transition(ctx, machine, event))
	}

	assert.Equal(t, StateTxOK, machine.Current())

	require.NoError(t, transition(ctx, machine, EventReject))
	assert.Equal(t, StateRejected, machine.Current())

	err := transition(ctx, machine, EventAccept)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProcessing))
}
