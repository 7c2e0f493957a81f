// Package objects stores peer objects by id and retrieves missing ones from
// the network.
package objects

import (
	"context"
	"sync"
	"time"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/blob"
	"github.com/bsv-blockchain/marabu/tracing"
	"github.com/bsv-blockchain/marabu/ulogger"
)

// retrieval is resolved exactly once, either with an object or with an error.
type retrieval struct {
	done chan struct{}
	obj  model.Object
	err  error
}

type Manager struct {
	logger  ulogger.Logger
	store   blob.Store
	network Network
	timeout time.Duration

	mu      sync.Mutex
	pending map[model.ObjectID]*retrieval
}

func New(logger ulogger.Logger, store blob.Store, network Network, timeout time.Duration) *Manager {
	initPrometheusMetrics()

	if network == nil {
		network = NoopNetwork{}
	}

	return &Manager{
		logger:  logger,
		store:   store,
		network: network,
		timeout: timeout,
		pending: make(map[model.ObjectID]*retrieval),
	}
}

func (m *Manager) Exists(ctx context.Context, id model.ObjectID) (bool, error) {
	return m.store.Exists(ctx, []byte(id))
}

// Get returns a stored object, or a NotFound error.
func (m *Manager) Get(ctx context.Context, id model.ObjectID) (model.Object, error) {
	data, err := m.store.Get(ctx, []byte(id))
	if err != nil {
		return nil, err
	}

	obj, err := model.ParseObject(data)
	if err != nil {
		return nil, errors.NewStorageError("stored object %s is corrupt", id, err)
	}

	return obj, nil
}

// GetTransaction returns a stored transaction. A stored block with that id is a format error.
func (m *Manager) GetTransaction(ctx context.Context, id model.ObjectID) (*model.Transaction, error) {
	obj, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, ok := obj.(*model.Transaction)
	if !ok {
		return nil, errors.NewInvalidFormatError("object %s is a %s, not a transaction", id, obj.Type())
	}

	return tx, nil
}

// Put stores a validated obj under its id, wakes anyone retrieving it and
// announces it to peers when it was not stored before.
func (m *Manager) Put(ctx context.Context, obj model.Object) (id model.ObjectID, isNew bool, err error) {
	id = obj.ID()

	exists, err := m.store.Exists(ctx, []byte(id))
	if err != nil {
		return id, false, err
	}

	if !exists {
		if err = m.store.Set(ctx, []byte(id), obj.Canonical()); err != nil {
			return id, false, err
		}

		prometheusObjectsStored.WithLabelValues(obj.Type()).Inc()

		if err = m.network.Broadcast(ctx, IHaveObject(id)); err != nil {
			m.logger.Warnf("[Put][%s] failed to announce object: %v", id.Short(), err)
		}
	}

	m.Deliver(obj)

	return id, !exists, nil
}

// Deliver hands obj to everyone waiting in Retrieve without storing it.
func (m *Manager) Deliver(obj model.Object) {
	id := obj.ID()

	m.mu.Lock()
	r, ok := m.pending[id]
	delete(m.pending, id)
	m.mu.Unlock()

	if ok {
		r.obj = obj
		close(r.done)
	}
}

// Retrieve returns the object from the store, or asks the network for it and
// waits until it is delivered. After the fetch timeout every waiter gets an
// UnfindableObject error.
func (m *Manager) Retrieve(ctx context.Context, id model.ObjectID) (model.Object, error) {
	obj, err := m.Get(ctx, id)
	if err == nil {
		return obj, nil
	}

	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	ctx, _, deferFn := tracing.StartTracing(ctx, "objects:Retrieve",
		tracing.WithHistogram(prometheusRetrieveDuration),
		tracing.WithLogMessage(m.logger, "[Retrieve][%s] requesting object from peers", id.Short()),
	)
	defer deferFn()

	m.mu.Lock()

	r, found := m.pending[id]
	if !found {
		r = &retrieval{done: make(chan struct{})}
		m.pending[id] = r
	}

	m.mu.Unlock()

	if !found {
		// it may have been stored between the lookup above and registering
		if obj, err = m.Get(ctx, id); err == nil {
			m.Deliver(obj)
			return obj, nil
		}

		prometheusRetrievals.Inc()

		if err = m.network.RequestObject(ctx, id); err != nil {
			m.logger.Warnf("[Retrieve][%s] failed to request object: %v", id.Short(), err)
		}
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case <-r.done:
		return r.obj, r.err
	case <-timer.C:
		m.expire(id, r)
		<-r.done

		return r.obj, r.err
	case <-ctx.Done():
		return nil, errors.NewContextCanceledError("retrieval of %s abandoned", id, ctx.Err())
	}
}

// expire resolves r with an unfindable error unless it was resolved already.
func (m *Manager) expire(id model.ObjectID, r *retrieval) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending[id] != r {
		return
	}

	delete(m.pending, id)

	prometheusRetrievalTimeouts.Inc()

	r.err = errors.NewUnfindableObjectError("object %s was not received within %s", id, m.timeout)
	close(r.done)
}

// Pending reports how many objects are being waited for.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pending)
}
