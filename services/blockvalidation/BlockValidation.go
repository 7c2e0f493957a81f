// Package blockvalidation validates blocks against their parent's UTXO set,
// retrieving missing parents and transactions from peers.
//
// Concurrent validations of the same block id share one execution. Blocks that
// fail for a reason that cannot change are remembered for a while, so repeated
// submissions are refused without running the checks again.
package blockvalidation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/bsv-blockchain/marabu/chaincfg"
	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/services/objects"
	"github.com/bsv-blockchain/marabu/services/validator"
	"github.com/bsv-blockchain/marabu/settings"
	"github.com/bsv-blockchain/marabu/stores/blockchain"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
	"github.com/bsv-blockchain/marabu/stores/utxo"
	"github.com/bsv-blockchain/marabu/tracing"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/bsv-blockchain/marabu/util"
	"github.com/bsv-blockchain/marabu/util/deduplicator"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/errgroup"
)

// ChainNotifier is told about every block that passed validation, parents
// before children.
type ChainNotifier interface {
	OnValidBlock(ctx context.Context, block *model.Block, blockMeta *meta.BlockMeta) error
}

// DataKeyNotBefore is set on rejections of blocks from the future, to the unix
// time from which the block may be valid. Such rejections, and those of their
// descendants, are not remembered.
const DataKeyNotBefore = "not_before"

type result struct {
	meta *meta.BlockMeta
	// notBlock is set when the id being resolved as a parent is some other object.
	notBlock bool
}

type BlockValidation struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	params    *chaincfg.Params
	objects   *objects.Manager
	store     blockchain.Store
	validator *validator.Validator
	notifier  ChainNotifier
	dedup     *deduplicator.DeDuplicator[model.ObjectID, result]
	rejected  *ttlcache.Cache[model.ObjectID, error]
	now       func() time.Time
	stopOnce  sync.Once
}

type Option func(*BlockValidation)

// WithClock replaces the clock used to refuse blocks from the future.
func WithClock(now func() time.Time) Option {
	return func(v *BlockValidation) {
		v.now = now
	}
}

func New(logger ulogger.Logger, tSettings *settings.Settings, objectManager *objects.Manager, store blockchain.Store,
	txValidator *validator.Validator, notifier ChainNotifier, opts ...Option) *BlockValidation {
	initPrometheusMetrics()

	v := &BlockValidation{
		logger:    logger,
		settings:  tSettings,
		params:    tSettings.ChainCfgParams,
		objects:   objectManager,
		store:     store,
		validator: txValidator,
		notifier:  notifier,
		dedup:     deduplicator.New[model.ObjectID, result]("blockvalidation"),
		rejected: ttlcache.New[model.ObjectID, error](
			ttlcache.WithTTL[model.ObjectID, error](tSettings.BlockValidation.InvalidBlockCacheTTL),
			ttlcache.WithDisableTouchOnHit[model.ObjectID, error](),
		),
		now: time.Now,
	}

	for _, opt := range opts {
		opt(v)
	}

	go v.rejected.Start()

	return v
}

// Stop ends the expiry loop of the rejected block cache.
func (v *BlockValidation) Stop() {
	v.stopOnce.Do(v.rejected.Stop)
}

// SetNotifier sets the receiver of valid blocks. It must be called before the
// first validation.
func (v *BlockValidation) SetNotifier(notifier ChainNotifier) {
	v.notifier = notifier
}

// ValidateBlock validates block and returns its metadata. Validating a block
// that is already known to be valid returns the stored metadata.
func (v *BlockValidation) ValidateBlock(ctx context.Context, block *model.Block) (*meta.BlockMeta, error) {
	res, _, err := v.dedup.DeDuplicate(ctx, block.ID(), func(ctx context.Context) (result, error) {
		return v.run(ctx, block)
	})
	if err != nil {
		return nil, err
	}

	return res.meta, nil
}

// InFlight reports whether a validation of id is running.
func (v *BlockValidation) InFlight(id model.ObjectID) bool {
	return v.dedup.InFlight(id)
}

func (v *BlockValidation) run(ctx context.Context, block *model.Block) (result, error) {
	id := block.ID()

	blockMeta, err := v.known(ctx, id)
	if blockMeta != nil || err != nil {
		return result{meta: blockMeta}, err
	}

	blockMeta, err = v.validate(ctx, block)
	if err != nil {
		if errors.IsFatalForPeer(err) && errors.GetData(err, DataKeyNotBefore) == nil {
			v.rejected.Set(id, err, ttlcache.DefaultTTL)
		}

		return result{}, err
	}

	return result{meta: blockMeta}, nil
}

// known returns the stored metadata of a valid block, the remembered error of a
// rejected one, or neither.
func (v *BlockValidation) known(ctx context.Context, id model.ObjectID) (*meta.BlockMeta, error) {
	if item := v.rejected.Get(id); item != nil {
		prometheusBlockValidationRejectedCacheHits.Inc()
		return nil, item.Value()
	}

	blockMeta, err := v.store.GetBlockMeta(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return blockMeta, nil
}

func (v *BlockValidation) validate(ctx context.Context, block *model.Block) (blockMeta *meta.BlockMeta, err error) {
	id := block.ID()

	ctx, _, deferFn := tracing.StartTracing(ctx, "BlockValidation:validate",
		tracing.WithHistogram(prometheusBlockValidationValidateBlock),
		tracing.WithLogMessage(v.logger, "[validate][%s] validating block with %d transactions", id.Short(), len(block.TxIDs)),
	)
	defer deferFn()

	machine := v.newValidationFSM(id)

	defer func() {
		if err == nil {
			return
		}

		if fsmErr := machine.Event(ctx, EventReject); fsmErr != nil {
			v.logger.Errorf("[validate][%s] failed to mark block rejected: %v", id.Short(), fsmErr)
		}

		if name, ok := errors.WireName(err); ok {
			prometheusBlockValidationRejectedBlocks.WithLabelValues(name).Inc()
		}

		v.logger.Warnf("[validate][%s] block rejected: %v", id.Short(), err)
	}()

	if block.T != v.params.Target {
		return nil, errors.NewInvalidFormatError("block %s has target %s, the network target is %s", id, block.T, v.params.Target)
	}

	if !block.HasPoW() {
		return nil, errors.NewInvalidBlockPoWError("block %s does not meet its target", id)
	}

	if err = transition(ctx, machine, EventPoWChecked); err != nil {
		return nil, err
	}

	height, base, err := v.checkAncestry(ctx, block)
	if err != nil {
		return nil, err
	}

	if err = transition(ctx, machine, EventAncestryChecked); err != nil {
		return nil, err
	}

	txs, err := v.fetchTransactions(ctx, block)
	if err != nil {
		return nil, err
	}

	utxoSet, err := v.validateTransactions(ctx, block, height, base, txs)
	if err != nil {
		return nil, err
	}

	if err = transition(ctx, machine, EventTxsChecked); err != nil {
		return nil, err
	}

	blockMeta = &meta.BlockMeta{
		BlockInfo: meta.BlockInfo{
			ID:       id,
			ParentID: block.PrevID,
			Height:   height,
			Created:  block.Created,
		},
		UTXO: utxoSet,
	}

	if err = v.persist(ctx, block, txs, blockMeta); err != nil {
		return nil, err
	}

	if err = transition(ctx, machine, EventAccept); err != nil {
		return nil, err
	}

	prometheusBlockValidationValidatedBlocks.Inc()
	prometheusBlockValidationTransactions.Observe(float64(len(txs)))

	v.logger.Infof("[validate][%s] block valid at height %d", id.Short(), height)

	if v.notifier != nil {
		if notifyErr := v.notifier.OnValidBlock(ctx, block, blockMeta); notifyErr != nil {
			v.logger.Errorf("[validate][%s] failed to notify chain of valid block: %v", id.Short(), notifyErr)
		}
	}

	return blockMeta, nil
}

// checkAncestry returns the height of block and the UTXO set it builds on.
func (v *BlockValidation) checkAncestry(ctx context.Context, block *model.Block) (uint64, *utxo.Set, error) {
	id := block.ID()

	if block.PrevID == nil {
		if !v.params.IsGenesis(block) {
			return 0, nil, errors.NewInvalidGenesisError("block %s has no parent but is not the genesis block", id)
		}

		return 0, utxo.NewSet(), nil
	}

	parent, err := v.resolveParent(ctx, id, *block.PrevID)
	if err != nil {
		return 0, nil, err
	}

	if block.Created <= parent.Created {
		return 0, nil, errors.NewInvalidTimestampError("block %s created at %d, not after its parent at %d", id, block.Created, parent.Created)
	}

	if now := v.now().Unix(); block.Created > now {
		futureErr := errors.New(errors.ERR_INVALID_BLOCK_TIMESTAMP, "block %s created at %d, which is in the future", id, block.Created)
		futureErr.SetData(DataKeyNotBefore, block.Created)

		return 0, nil, futureErr
	}

	return parent.Height + 1, parent.UTXO, nil
}

// resolveParent returns the metadata of the parent of block id, validating the
// parent first when it is not known yet.
func (v *BlockValidation) resolveParent(ctx context.Context, id, parentID model.ObjectID) (*meta.BlockMeta, error) {
	parentMeta, err := v.store.GetBlockMeta(ctx, parentID)
	if err == nil {
		return parentMeta, nil
	}

	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	res, _, err := v.dedup.DeDuplicate(ctx, parentID, func(ctx context.Context) (result, error) {
		if blockMeta, err := v.known(ctx, parentID); blockMeta != nil || err != nil {
			return result{meta: blockMeta}, err
		}

		obj, err := v.objects.Retrieve(ctx, parentID)
		if err != nil {
			return result{}, err
		}

		parent, ok := obj.(*model.Block)
		if !ok {
			return result{notBlock: true}, errors.NewInvalidFormatError("object %s is a %s, not a block", parentID, obj.Type())
		}

		return v.run(ctx, parent)
	})
	if err == nil {
		return res.meta, nil
	}

	if res.notBlock {
		return nil, errors.NewInvalidFormatError("parent of block %s is not a block", id, err)
	}

	if errors.IsContextError(err) {
		return nil, errors.NewContextCanceledError("resolving parent of block %s", id, err)
	}

	if _, ok := errors.ProtocolCode(err); !ok {
		return nil, err
	}

	if errors.IsTransient(err) {
		return nil, errors.NewUnfindableObjectError("parent %s of block %s could not be retrieved", parentID, id, err)
	}

	return nil, errors.NewInvalidAncestryError("parent %s of block %s is invalid", parentID, id, err)
}

// fetchTransactions returns the transactions of block in block order.
func (v *BlockValidation) fetchTransactions(ctx context.Context, block *model.Block) ([]*model.Transaction, error) {
	id := block.ID()
	txs := make([]*model.Transaction, len(block.TxIDs))

	g, gCtx := errgroup.WithContext(ctx)
	util.SafeSetLimit(g, v.settings.BlockValidation.MaxConcurrentTxFetches)

	for i, txID := range block.TxIDs {
		g.Go(func() error {
			obj, err := v.objects.Retrieve(gCtx, txID)
			if err != nil {
				return err
			}

			tx, ok := obj.(*model.Transaction)
			if !ok {
				return errors.NewInvalidFormatError("block %s lists %s which is a %s, not a transaction", id, txID, obj.Type())
			}

			txs[i] = tx

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return txs, nil
}

// validateTransactions applies txs in order to a copy of base and returns it.
func (v *BlockValidation) validateTransactions(ctx context.Context, block *model.Block, height uint64, base *utxo.Set,
	txs []*model.Transaction) (*utxo.Set, error) {
	id := block.ID()

	working := base.Copy()
	local := make(map[model.ObjectID]*model.Transaction, len(txs))

	var coinbaseID *model.ObjectID

	if len(txs) > 0 && txs[0].IsCoinbase() {
		cbID := txs[0].ID()
		coinbaseID = &cbID
	}

	var fees uint64

	for i, tx := range txs {
		fee, err := v.validator.ValidateTransaction(ctx, tx, working, &validator.BlockContext{
			Index:      i,
			Local:      local,
			CoinbaseID: coinbaseID,
		})
		if err != nil {
			return nil, err
		}

		if err = working.Apply(tx); err != nil {
			return nil, err
		}

		local[block.TxIDs[i]] = tx

		if fees+fee < fees {
			return nil, errors.NewTxConservationError("fees of block %s overflow", id)
		}

		fees += fee
	}

	if coinbaseID != nil {
		if err := v.checkCoinbase(id, txs[0], height, fees); err != nil {
			return nil, err
		}
	}

	return working, nil
}

func (v *BlockValidation) checkCoinbase(id model.ObjectID, coinbase *model.Transaction, height, fees uint64) error {
	if *coinbase.Height != height {
		return errors.NewInvalidCoinbaseError("coinbase of block %s claims height %d, the block is at height %d", id, *coinbase.Height, height)
	}

	allowed := v.params.BlockReward + fees
	if allowed < fees {
		allowed = math.MaxUint64
	}

	if value := coinbase.Outputs[0].Value; value > allowed {
		return errors.NewInvalidCoinbaseError("coinbase of block %s pays %d, at most %d is allowed", id, value, allowed)
	}

	return nil
}

// persist stores the transactions, the block metadata and finally the block,
// so a stored block always has its metadata.
func (v *BlockValidation) persist(ctx context.Context, block *model.Block, txs []*model.Transaction, blockMeta *meta.BlockMeta) error {
	for _, tx := range txs {
		if _, _, err := v.objects.Put(ctx, tx); err != nil {
			return err
		}
	}

	if err := v.store.StoreBlockMeta(ctx, blockMeta); err != nil {
		return err
	}

	_, _, err := v.objects.Put(ctx, block)

	return err
}
