// Package mempool holds the locally admitted transactions that are not yet in
// the longest chain, on top of the UTXO set of the chain tip.
package mempool

import (
	"context"
	"sync"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/blockchain"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
	"github.com/bsv-blockchain/marabu/stores/utxo"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/dolthub/swiss"
	jsoniter "github.com/json-iterator/go"
)

// StateKeyMempool is the state key the mempool is persisted under.
const StateKeyMempool = "mempool"

// TxGetter reads stored transactions.
type TxGetter interface {
	GetTransaction(ctx context.Context, id model.ObjectID) (*model.Transaction, error)
}

type persistedMempool struct {
	Tip       model.ObjectID   `json:"tip"`
	TxIDs     []model.ObjectID `json:"txids"`
	Outpoints []string         `json:"outpoints"`
	Claimed   []string         `json:"claimed"`
}

type Mempool struct {
	logger ulogger.Logger
	store  blockchain.Store
	txs    TxGetter

	mu      sync.Mutex
	tipID   model.ObjectID
	pending []*model.Transaction
	utxo    *utxo.Set
	claimed *swiss.Map[string, struct{}]
}

func New(logger ulogger.Logger, store blockchain.Store, txs TxGetter) *Mempool {
	initPrometheusMetrics()

	return &Mempool{
		logger:  logger,
		store:   store,
		txs:     txs,
		utxo:    utxo.NewSet(),
		claimed: swiss.NewMap[string, struct{}](16),
	}
}

// Load restores the persisted mempool. When there is none, or it cannot be
// read, or it was built on another tip, the mempool starts empty on top of tip.
// tip is nil before genesis is known.
func (m *Mempool) Load(ctx context.Context, tip *meta.BlockMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(ctx, tip); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			m.logger.Warnf("[Load] failed to load mempool, starting empty on the chain tip: %v", err)
		}

		m.resetLocked(tip)
	}

	prometheusMempoolSize.Set(float64(len(m.pending)))

	m.logger.Infof("[Load] mempool has %d transactions", len(m.pending))
}

func (m *Mempool) loadLocked(ctx context.Context, tip *meta.BlockMeta) error {
	data, err := m.store.GetState(ctx, StateKeyMempool)
	if err != nil {
		return err
	}

	var state persistedMempool
	if err = jsoniter.ConfigFastest.Unmarshal(data, &state); err != nil {
		return errors.NewStorageError("stored mempool is corrupt", err)
	}

	if tip == nil || state.Tip != tip.ID {
		return errors.NewStorageError("stored mempool was built on %s, not on the chain tip", state.Tip)
	}

	pending := make([]*model.Transaction, len(state.TxIDs))

	for i, txID := range state.TxIDs {
		if pending[i], err = m.txs.GetTransaction(ctx, txID); err != nil {
			return err
		}
	}

	claimed := swiss.NewMap[string, struct{}](uint32(len(state.Claimed)))
	for _, key := range state.Claimed {
		claimed.Put(key, struct{}{})
	}

	m.tipID = state.Tip
	m.pending = pending
	m.utxo = utxo.NewSetFromOutpoints(state.Outpoints)
	m.claimed = claimed

	return nil
}

func (m *Mempool) resetLocked(tip *meta.BlockMeta) {
	m.tipID = ""
	m.utxo = utxo.NewSet()

	if tip != nil {
		m.tipID = tip.ID
		m.utxo = tip.UTXO.Copy()
	}

	m.pending = nil
	m.claimed = swiss.NewMap[string, struct{}](16)
}

func (m *Mempool) saveLocked(ctx context.Context) error {
	state := persistedMempool{
		Tip:       m.tipID,
		TxIDs:     make([]model.ObjectID, len(m.pending)),
		Outpoints: m.utxo.Outpoints(),
		Claimed:   make([]string, 0, m.claimed.Count()),
	}

	for i, tx := range m.pending {
		state.TxIDs[i] = tx.ID()
	}

	m.claimed.Iter(func(key string, _ struct{}) bool {
		state.Claimed = append(state.Claimed, key)
		return false
	})

	data, err := jsoniter.ConfigFastest.Marshal(state)
	if err != nil {
		return errors.NewProcessingError("failed to encode mempool", err)
	}

	return m.store.SetState(ctx, StateKeyMempool, data)
}

// OnTransactionArrival admits tx when none of its inputs is missing from the
// mempool UTXO set, already claimed by a pending transaction or repeated in tx.
// Coinbases are never admitted. The error only reports a failure to persist an
// admission.
func (m *Mempool) OnTransactionArrival(ctx context.Context, tx *model.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.admitLocked(tx) {
		prometheusMempoolRejected.Inc()
		return false, nil
	}

	prometheusMempoolAdmitted.Inc()
	prometheusMempoolSize.Set(float64(len(m.pending)))

	return true, m.saveLocked(ctx)
}

func (m *Mempool) admitLocked(tx *model.Transaction) bool {
	txID := tx.ID()

	if tx.IsCoinbase() {
		m.logger.Debugf("[admit][%s] coinbase transactions are not admitted", txID.Short())
		return false
	}

	seen := make(map[string]struct{}, len(tx.Inputs))

	for _, in := range tx.Inputs {
		key := in.Outpoint.Key()

		if _, dup := seen[key]; dup {
			m.logger.Debugf("[admit][%s] spends %s twice", txID.Short(), key)
			return false
		}

		seen[key] = struct{}{}

		if m.claimed.Has(key) {
			m.logger.Debugf("[admit][%s] spends %s which a pending transaction already spends", txID.Short(), key)
			return false
		}

		if !m.utxo.Contains(key) {
			m.logger.Debugf("[admit][%s] spends %s which is not unspent", txID.Short(), key)
			return false
		}
	}

	if err := m.utxo.Apply(tx); err != nil {
		m.logger.Debugf("[admit][%s] could not be applied: %v", txID.Short(), err)
		return false
	}

	for key := range seen {
		m.claimed.Put(key, struct{}{})
	}

	m.pending = append(m.pending, tx)

	return true
}

// Rebase rebuilds the mempool on top of tip. The transactions of abandoned
// blocks in replay are admitted first, then the previously pending ones.
// Transactions that no longer fit are dropped.
func (m *Mempool) Rebase(ctx context.Context, tip *meta.BlockMeta, replay []*model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous := m.pending

	m.resetLocked(tip)

	admitted := 0

	for _, tx := range replay {
		if m.admitLocked(tx) {
			admitted++
		}
	}

	for _, tx := range previous {
		if m.admitLocked(tx) {
			admitted++
		}
	}

	dropped := len(replay) + len(previous) - admitted

	prometheusMempoolRebases.Inc()
	prometheusMempoolSize.Set(float64(len(m.pending)))

	m.logger.Infof("[Rebase][%s] mempool rebased with %d transactions, %d dropped", tip.ID.Short(), len(m.pending), dropped)

	return m.saveLocked(ctx)
}

// TxIDs returns the ids of the pending transactions in admission order.
func (m *Mempool) TxIDs() []model.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]model.ObjectID, len(m.pending))
	for i, tx := range m.pending {
		ids[i] = tx.ID()
	}

	return ids
}

// UTXO returns a copy of the mempool UTXO set.
func (m *Mempool) UTXO() *utxo.Set {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.utxo.Copy()
}
