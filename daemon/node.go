// Package daemon wires the stores and services of one node together and
// serves its health, metrics and profiling endpoints.
package daemon

import (
	"context"
	"net/http"
	"strings"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/services/blockchain"
	"github.com/bsv-blockchain/marabu/services/blockvalidation"
	"github.com/bsv-blockchain/marabu/services/mempool"
	"github.com/bsv-blockchain/marabu/services/objects"
	"github.com/bsv-blockchain/marabu/services/validator"
	"github.com/bsv-blockchain/marabu/settings"
	"github.com/bsv-blockchain/marabu/stores/blob"
	blockchain_store "github.com/bsv-blockchain/marabu/stores/blockchain"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/google/uuid"
)

// PeerVerdict is the outcome of an object received from a peer. Name is the
// protocol error name to report to the peer, empty when the object was accepted
// or when the failure was local. Fatal peers should be disconnected.
type PeerVerdict struct {
	Name        string
	Description string
	Fatal       bool
	// Err is the underlying error, also set for local failures.
	Err error
}

func (v PeerVerdict) OK() bool {
	return v.Err == nil
}

func newPeerVerdict(err error) PeerVerdict {
	if err == nil {
		return PeerVerdict{}
	}

	name, ok := errors.WireName(err)
	if !ok {
		return PeerVerdict{Err: err}
	}

	return PeerVerdict{
		Name:        name,
		Description: err.Error(),
		Fatal:       errors.IsFatalForPeer(err),
		Err:         err,
	}
}

// Node owns all state of one node. Several nodes can run in one process.
type Node struct {
	ID uuid.UUID

	logger              ulogger.Logger
	loggerFactory       func(serviceName string) ulogger.Logger
	settings            *settings.Settings
	network             objects.Network
	blockValidationOpts []blockvalidation.Option

	objectStore blob.Store
	chainStore  blockchain_store.Store

	objects         *objects.Manager
	validator       *validator.Validator
	blockValidation *blockvalidation.BlockValidation
	mempool         *mempool.Mempool
	chain           *blockchain.Blockchain
}

// NewNode opens the configured stores, restores the chain tip and the mempool
// and makes sure the genesis block is known.
func NewNode(ctx context.Context, tSettings *settings.Settings, opts ...Option) (*Node, error) {
	n := &Node{
		ID:       uuid.New(),
		settings: tSettings,
		loggerFactory: func(serviceName string) ulogger.Logger {
			return ulogger.New(serviceName, ulogger.WithLevel(tSettings.LogLevel), ulogger.WithPretty(tSettings.PrettyLogs))
		},
	}

	for _, opt := range opts {
		opt(n)
	}

	n.logger = n.loggerFactory("node")

	var err error

	if n.objectStore, err = blob.NewStore(n.loggerFactory("objectstore"), tSettings.ObjectStore.StoreURL, tSettings.DataFolder); err != nil {
		return nil, err
	}

	if n.chainStore, err = blockchain_store.NewStore(n.loggerFactory("chainstore"), tSettings.BlockChain.StoreURL, tSettings.DataFolder); err != nil {
		_ = n.objectStore.Close(ctx)
		return nil, err
	}

	if err = n.start(ctx); err != nil {
		_ = n.Close(ctx)
		return nil, err
	}

	return n, nil
}

func (n *Node) start(ctx context.Context) error {
	params := n.settings.ChainCfgParams

	n.objects = objects.New(n.loggerFactory("objects"), n.objectStore, n.network, n.settings.BlockValidation.ObjectFetchTimeout)
	n.validator = validator.New(n.loggerFactory("validator"), n.objects)
	n.mempool = mempool.New(n.loggerFactory("mempool"), n.chainStore, n.objects)
	n.chain = blockchain.New(n.loggerFactory("blockchain"), params, n.chainStore, n.objects, n.mempool)

	if err := n.chain.Init(ctx); err != nil {
		return err
	}

	n.blockValidation = blockvalidation.New(n.loggerFactory("blockvalidation"), n.settings, n.objects, n.chainStore,
		n.validator, n.chain, n.blockValidationOpts...)

	if _, err := n.blockValidation.ValidateBlock(ctx, params.Genesis); err != nil {
		return errors.NewProcessingError("genesis block of %s does not validate", params.Name, err)
	}

	tip, err := n.chain.GetBestBlockMeta(ctx)
	if err != nil {
		return err
	}

	n.mempool.Load(ctx, tip)

	n.logger.Infof("[start] node %s on %s at height %d, tip %s", n.ID, params.Name, tip.Height, tip.ID)

	return nil
}

// HandleObject validates an object received from a peer, stores it when it is
// valid and tells which error, if any, to report back.
func (n *Node) HandleObject(ctx context.Context, obj model.Object) PeerVerdict {
	// anyone waiting for this object gets it now, validated or not
	n.objects.Deliver(obj)

	var err error

	switch o := obj.(type) {
	case *model.Transaction:
		err = n.handleTransaction(ctx, o)
	case *model.Block:
		_, err = n.blockValidation.ValidateBlock(ctx, o)
	default:
		err = errors.NewUnknownObjectError("object %s has unknown type %s", obj.ID(), obj.Type())
	}

	verdict := newPeerVerdict(err)
	if verdict.Err != nil && verdict.Name == "" {
		n.logger.Errorf("[HandleObject][%s] failed to process object: %v", obj.ID().Short(), err)
	}

	return verdict
}

// HandleMessage parses a raw object received from a peer and handles it.
func (n *Node) HandleMessage(ctx context.Context, data []byte) PeerVerdict {
	obj, err := model.ParseObject(data)
	if err != nil {
		return newPeerVerdict(err)
	}

	return n.HandleObject(ctx, obj)
}

func (n *Node) handleTransaction(ctx context.Context, tx *model.Transaction) error {
	txID := tx.ID()

	if _, err := n.validator.ValidateTransaction(ctx, tx, nil, nil); err != nil {
		return err
	}

	if _, _, err := n.objects.Put(ctx, tx); err != nil {
		return err
	}

	accepted, err := n.mempool.OnTransactionArrival(ctx, tx)
	if err != nil {
		n.logger.Warnf("[handleTransaction][%s] failed to persist mempool: %v", txID.Short(), err)
	}

	n.logger.Debugf("[handleTransaction][%s] valid, admitted to mempool: %t", txID.Short(), accepted)

	return nil
}

// GetChainTip returns the id of the longest chain's tip.
func (n *Node) GetChainTip(ctx context.Context) (model.ObjectID, error) {
	tip, err := n.chain.GetBestBlock(ctx)
	if err != nil {
		return "", err
	}

	return tip.ID, nil
}

// GetMempool returns the ids of the pending transactions.
func (n *Node) GetMempool() []model.ObjectID {
	return n.mempool.TxIDs()
}

// GetObject returns a stored object, or a NotFound error.
func (n *Node) GetObject(ctx context.Context, id model.ObjectID) (model.Object, error) {
	return n.objects.Get(ctx, id)
}

// OnChainTip requests the tip a peer announced unless it is already known.
func (n *Node) OnChainTip(ctx context.Context, id model.ObjectID) error {
	return n.requestUnknown(ctx, []model.ObjectID{id})
}

// OnMempool requests the transactions of a peer's mempool that are not known.
func (n *Node) OnMempool(ctx context.Context, txIDs []model.ObjectID) error {
	return n.requestUnknown(ctx, txIDs)
}

// OnIHaveObject requests an announced object unless it is already known.
func (n *Node) OnIHaveObject(ctx context.Context, id model.ObjectID) error {
	return n.requestUnknown(ctx, []model.ObjectID{id})
}

func (n *Node) requestUnknown(ctx context.Context, ids []model.ObjectID) error {
	if n.network == nil {
		return nil
	}

	for _, id := range ids {
		if !id.Valid() {
			return errors.NewInvalidFormatError("announced object id %q is not valid", id)
		}

		exists, err := n.objects.Exists(ctx, id)
		if err != nil {
			return err
		}

		if exists {
			continue
		}

		if err = n.network.RequestObject(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

// Health reports the health of both stores.
func (n *Node) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	var details []string

	for _, store := range []interface {
		Health(ctx context.Context, checkLiveness bool) (int, string, error)
	}{n.objectStore, n.chainStore} {
		status, detail, err := store.Health(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			return status, detail, err
		}

		details = append(details, detail)
	}

	return http.StatusOK, strings.Join(details, ", "), nil
}

// Close stops the services and closes the stores.
func (n *Node) Close(ctx context.Context) error {
	if n.blockValidation != nil {
		n.blockValidation.Stop()
	}

	var errs []error

	if n.chainStore != nil {
		if err := n.chainStore.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if n.objectStore != nil {
		if err := n.objectStore.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
