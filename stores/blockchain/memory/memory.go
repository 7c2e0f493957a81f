package memory

import (
	"context"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
)

type Memory struct {
	mu     sync.RWMutex
	blocks map[model.ObjectID]*meta.BlockMeta
	state  map[string][]byte
}

func New() *Memory {
	return &Memory{
		blocks: make(map[model.ObjectID]*meta.BlockMeta),
		state:  make(map[string][]byte),
	}
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "Memory Store", nil
}

func (m *Memory) StoreBlockMeta(_ context.Context, blockMeta *meta.BlockMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[blockMeta.ID]; ok {
		return nil
	}

	if blockMeta.ParentID != nil {
		if _, ok := m.blocks[*blockMeta.ParentID]; !ok {
			return errors.NewStorageError("parent %s of block %s has no metadata", *blockMeta.ParentID, blockMeta.ID)
		}
	}

	m.blocks[blockMeta.ID] = blockMeta

	return nil
}

func (m *Memory) GetBlockMeta(_ context.Context, id model.ObjectID) (*meta.BlockMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blockMeta, ok := m.blocks[id]
	if !ok {
		return nil, errors.NewNotFoundError("block %s not found", id)
	}

	return blockMeta, nil
}

func (m *Memory) GetBlockInfo(ctx context.Context, id model.ObjectID) (*meta.BlockInfo, error) {
	blockMeta, err := m.GetBlockMeta(ctx, id)
	if err != nil {
		return nil, err
	}

	info := blockMeta.BlockInfo

	return &info, nil
}

func (m *Memory) BlockMetaExists(_ context.Context, id model.ObjectID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blocks[id]

	return ok, nil
}

func (m *Memory) GetState(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.state[key]
	if !ok {
		return nil, errors.NewNotFoundError("state %s not found", key)
	}

	return append([]byte(nil), data...), nil
}

func (m *Memory) SetState(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state[key] = append([]byte(nil), data...)

	return nil
}

func (m *Memory) Close(_ context.Context) error {
	return nil
}
