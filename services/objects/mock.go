package objects

import (
	"context"

	"github.com/bsv-blockchain/marabu/model"
	"github.com/stretchr/testify/mock"
)

// MockNetwork records requests and broadcasts.
type MockNetwork struct {
	mock.Mock
}

func NewMockNetwork() *MockNetwork {
	return &MockNetwork{}
}

func (m *MockNetwork) RequestObject(ctx context.Context, id model.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockNetwork) Broadcast(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
