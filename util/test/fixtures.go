package test

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/bsv-blockchain/marabu/chaincfg"
	"github.com/bsv-blockchain/marabu/model"
)

type Key struct {
	Private ed25519.PrivateKey
	PubKey  string
}

// NewKey derives a key from seed, so fixtures are reproducible.
func NewKey(seed byte) *Key {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}

	priv := ed25519.NewKeyFromSeed(s)

	return &Key{
		Private: priv,
		PubKey:  hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
	}
}

func (k *Key) Sign(message []byte) string {
	return hex.EncodeToString(ed25519.Sign(k.Private, message))
}

// Spendable is an outpoint and the key that owns it.
type Spendable struct {
	Outpoint model.Outpoint
	Key      *Key
}

func Coinbase(height uint64, key *Key, value uint64) *model.Transaction {
	return model.NewCoinbase(height, key.PubKey, value)
}

// Output pays value to key.
func Output(key *Key, value uint64) model.Output {
	return model.Output{PubKey: key.PubKey, Value: value}
}

// Spend builds a transaction consuming from and signs every input with its owner's key.
func Spend(from []Spendable, outputs ...model.Output) *model.Transaction {
	inputs := make([]model.Input, len(from))
	for i, s := range from {
		inputs[i] = model.Input{Outpoint: s.Outpoint}
	}

	tx := model.NewSpending(inputs, outputs)
	message := tx.SigningBytes()

	for i, s := range from {
		sig := s.Key.Sign(message)
		tx.Inputs[i].Sig = &sig
	}

	return tx
}

// SpendOutput is Spend for a single output index of prev.
func SpendOutput(prev *model.Transaction, index uint64, key *Key, outputs ...model.Output) *model.Transaction {
	return Spend([]Spendable{{Outpoint: prev.Outpoint(index), Key: key}}, outputs...)
}

type BlockOption func(*model.Block)

func WithNonce(n uint64) BlockOption {
	return func(b *model.Block) {
		var buf [32]byte

		binary.BigEndian.PutUint64(buf[24:], n)
		b.Nonce = hex.EncodeToString(buf[:])
	}
}

func WithCreated(created int64) BlockOption {
	return func(b *model.Block) {
		b.Created = created
	}
}

func WithNote(note string) BlockOption {
	return func(b *model.Block) {
		b.Note = &note
	}
}

func WithTarget(target string) BlockOption {
	return func(b *model.Block) {
		b.T = target
	}
}

// NewBlock builds a child of parent carrying txs, one second after its parent.
func NewBlock(params *chaincfg.Params, parent *model.Block, txs []*model.Transaction, opts ...BlockOption) *model.Block {
	parentID := parent.ID()

	txIDs := make([]model.ObjectID, len(txs))
	for i, tx := range txs {
		txIDs[i] = tx.ID()
	}

	miner := "test"

	b := &model.Block{
		PrevID:  &parentID,
		TxIDs:   txIDs,
		Nonce:   fmt.Sprintf("%064x", 0),
		T:       params.Target,
		Created: parent.Created + 1,
		Miner:   &miner,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Chain is a sequence of blocks, each with a coinbase paying key, starting at parent.
func Chain(params *chaincfg.Params, parent *model.Block, startHeight uint64, length int, key *Key, nonce uint64) ([]*model.Block, []*model.Transaction) {
	blocks := make([]*model.Block, 0, length)
	coinbases := make([]*model.Transaction, 0, length)

	for i := 0; i < length; i++ {
		cb := Coinbase(startHeight+uint64(i), key, params.BlockReward)
		b := NewBlock(params, parent, []*model.Transaction{cb}, WithNonce(nonce))

		blocks = append(blocks, b)
		coinbases = append(coinbases, cb)
		parent = b
	}

	return blocks, coinbases
}
