package objects

import (
	"context"

	"github.com/bsv-blockchain/marabu/model"
)

const (
	MessageTypeIHaveObject = "ihaveobject"
	MessageTypeGetObject   = "getobject"
)

// Message is a peer message the node originates. The network layer encodes it.
type Message struct {
	Type     string         `json:"type"`
	ObjectID model.ObjectID `json:"objectid"`
}

func IHaveObject(id model.ObjectID) Message {
	return Message{Type: MessageTypeIHaveObject, ObjectID: id}
}

func GetObject(id model.ObjectID) Message {
	return Message{Type: MessageTypeGetObject, ObjectID: id}
}

// Network is the peer layer as seen by the node.
type Network interface {
	// RequestObject asks peers for id. The object arrives later through the node's
	// object handler; RequestObject does not wait for it.
	RequestObject(ctx context.Context, id model.ObjectID) error
	Broadcast(ctx context.Context, msg Message) error
}

// NoopNetwork drops everything. Retrievals through it always time out.
type NoopNetwork struct{}

func (NoopNetwork) RequestObject(context.Context, model.ObjectID) error {
	return nil
}

func (NoopNetwork) Broadcast(context.Context, Message) error {
	return nil
}
