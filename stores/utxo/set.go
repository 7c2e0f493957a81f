// Package utxo implements the set of unspent outpoints a block or the mempool
// builds on. Sets are cheap to copy: copies share immutable layers and only
// record their own additions and removals.
package utxo

import (
	"sort"
	"sync"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/dolthub/swiss"
)

// maxLayerDepth bounds lookups: once a chain of sealed layers gets this deep
// it is flattened into a single layer.
const maxLayerDepth = 32

type keySet = swiss.Map[string, struct{}]

func newKeySet(size int) *keySet {
	return swiss.NewMap[string, struct{}](uint32(size))
}

// layer is immutable once sealed. removed only ever holds keys present in parent.
type layer struct {
	parent  *layer
	added   *keySet
	removed *keySet
	depth   int
}

func (l *layer) has(key string) bool {
	for ; l != nil; l = l.parent {
		if l.removed.Has(key) {
			return false
		}

		if l.added.Has(key) {
			return true
		}
	}

	return false
}

// Set is a set of "txid:index" outpoint keys.
type Set struct {
	mu      sync.RWMutex
	base    *layer
	added   *keySet
	removed *keySet
	size    int
}

func NewSet(keys ...string) *Set {
	s := &Set{
		added:   newKeySet(len(keys)),
		removed: newKeySet(0),
	}

	for _, k := range keys {
		if !s.added.Has(k) {
			s.added.Put(k, struct{}{})
			s.size++
		}
	}

	return s
}

// NewSetFromOutpoints builds a set from persisted outpoint keys.
func NewSetFromOutpoints(keys []string) *Set {
	return NewSet(keys...)
}

func (s *Set) hasLocked(key string) bool {
	if s.removed.Has(key) {
		return false
	}

	if s.added.Has(key) {
		return true
	}

	return s.base.has(key)
}

func (s *Set) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hasLocked(key)
}

func (s *Set) Has(outpoint model.Outpoint) bool {
	return s.Contains(outpoint.Key())
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.size
}

// Copy returns an independent snapshot. Changes to either set afterwards are
// invisible to the other.
func (s *Set) Copy() *Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sealLocked()

	return &Set{
		base:    s.base,
		added:   newKeySet(0),
		removed: newKeySet(0),
		size:    s.size,
	}
}

// sealLocked freezes the local changes into a new shared layer.
func (s *Set) sealLocked() {
	if s.added.Count() == 0 && s.removed.Count() == 0 {
		return
	}

	depth := 0
	if s.base != nil {
		depth = s.base.depth + 1
	}

	s.base = &layer{
		parent:  s.base,
		added:   s.added,
		removed: s.removed,
		depth:   depth,
	}

	if depth >= maxLayerDepth {
		s.base = &layer{
			added:   s.collectLocked(),
			removed: newKeySet(0),
		}
	}

	s.added = newKeySet(0)
	s.removed = newKeySet(0)
}

// collectLocked materializes every member of the set.
func (s *Set) collectLocked() *keySet {
	var layers []*layer
	for l := s.base; l != nil; l = l.parent {
		layers = append(layers, l)
	}

	all := newKeySet(s.size)

	// oldest first so later removals win
	for i := len(layers) - 1; i >= 0; i-- {
		layers[i].removed.Iter(func(k string, _ struct{}) bool {
			all.Delete(k)
			return false
		})
		layers[i].added.Iter(func(k string, _ struct{}) bool {
			all.Put(k, struct{}{})
			return false
		})
	}

	s.removed.Iter(func(k string, _ struct{}) bool {
		all.Delete(k)
		return false
	})
	s.added.Iter(func(k string, _ struct{}) bool {
		all.Put(k, struct{}{})
		return false
	})

	return all
}

// Outpoints returns every member, sorted.
func (s *Set) Outpoints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.collectLocked()
	keys := make([]string, 0, all.Count())

	all.Iter(func(k string, _ struct{}) bool {
		keys = append(keys, k)
		return false
	})

	sort.Strings(keys)

	return keys
}

func (s *Set) removeLocked(key string) {
	if s.added.Has(key) {
		s.added.Delete(key)
	} else {
		s.removed.Put(key, struct{}{})
	}

	s.size--
}

func (s *Set) addLocked(key string) {
	if s.hasLocked(key) {
		return
	}

	if s.removed.Has(key) {
		s.removed.Delete(key)
	} else {
		s.added.Put(key, struct{}{})
	}

	s.size++
}

// CheckInputs verifies every input of tx is unspent in the set and that no
// outpoint is consumed twice by tx.
func (s *Set) CheckInputs(tx *model.Transaction) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.checkInputsLocked(tx)
}

func (s *Set) checkInputsLocked(tx *model.Transaction) error {
	seen := make(map[string]struct{}, len(tx.Inputs))

	for i, in := range tx.Inputs {
		key := in.Outpoint.Key()

		if _, dup := seen[key]; dup {
			return errors.NewTxOutpointError("input %d spends outpoint %s twice", i, key)
		}

		seen[key] = struct{}{}

		if !s.hasLocked(key) {
			return errors.NewTxOutpointError("input %d spends outpoint %s which is not in the utxo set", i, key)
		}
	}

	return nil
}

// Apply consumes the inputs of tx and adds its outputs. On error the set is unchanged.
func (s *Set) Apply(tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyLocked(tx)
}

func (s *Set) applyLocked(tx *model.Transaction) error {
	if err := s.checkInputsLocked(tx); err != nil {
		return err
	}

	for _, in := range tx.Inputs {
		s.removeLocked(in.Outpoint.Key())
	}

	for _, op := range tx.ProducedOutpoints() {
		s.addLocked(op.Key())
	}

	return nil
}

// ApplyMultiple applies txs in order, so later transactions may spend outputs of
// earlier ones. Either all of them are applied or none.
func (s *Set) ApplyMultiple(txs []*model.Transaction) error {
	working := s.Copy()

	for i, tx := range txs {
		if err := working.Apply(tx); err != nil {
			return errors.NewTxOutpointError("transaction %d (%s) could not be applied", i, tx.ID(), err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working.mu.RLock()
	defer working.mu.RUnlock()

	s.base = working.base
	s.added = working.added
	s.removed = working.removed
	s.size = working.size

	return nil
}
