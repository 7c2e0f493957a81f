package model

import (
	"strconv"
)

// Outpoint references output Index of transaction TxID.
type Outpoint struct {
	TxID  ObjectID
	Index uint64
}

// Key is the "txid:index" form used as the UTXO set member.
func (o Outpoint) Key() string {
	return string(o.TxID) + ":" + strconv.FormatUint(o.Index, 10)
}

func (o Outpoint) String() string {
	return o.Key()
}

type Input struct {
	Outpoint Outpoint
	// Sig is nil when the input is unsigned.
	Sig *string
}

type Output struct {
	PubKey string
	Value  uint64
}

// Transaction is either a coinbase (Height set, no inputs) or a spending
// transaction (inputs, no height). ParseObject guarantees exactly one of the two.
type Transaction struct {
	Height  *uint64
	Inputs  []Input
	Outputs []Output
}

func NewCoinbase(height uint64, pubKey string, value uint64) *Transaction {
	return &Transaction{
		Height:  &height,
		Outputs: []Output{{PubKey: pubKey, Value: value}},
	}
}

func NewSpending(inputs []Input, outputs []Output) *Transaction {
	return &Transaction{
		Inputs:  inputs,
		Outputs: outputs,
	}
}

func (tx *Transaction) sealed() {}

func (tx *Transaction) Type() string {
	return TypeTransaction
}

func (tx *Transaction) IsCoinbase() bool {
	return tx.Height != nil
}

func (tx *Transaction) ID() ObjectID {
	return IDOf(tx.Wire())
}

func (tx *Transaction) Canonical() []byte {
	return mustCanonicalize(tx.Wire())
}

// SigningBytes is the canonical encoding with every signature replaced by null.
func (tx *Transaction) SigningBytes() []byte {
	return mustCanonicalize(tx.wire(true))
}

// Outpoint returns the outpoint of output index of this transaction.
func (tx *Transaction) Outpoint(index uint64) Outpoint {
	return Outpoint{TxID: tx.ID(), Index: index}
}

// ProducedOutpoints lists the outpoints created by this transaction.
func (tx *Transaction) ProducedOutpoints() []Outpoint {
	txID := tx.ID()
	outpoints := make([]Outpoint, len(tx.Outputs))

	for i := range tx.Outputs {
		outpoints[i] = Outpoint{TxID: txID, Index: uint64(i)}
	}

	return outpoints
}

// OutputSum returns the total output value, or false on overflow.
func (tx *Transaction) OutputSum() (uint64, bool) {
	var sum uint64

	for _, out := range tx.Outputs {
		if sum+out.Value < sum {
			return 0, false
		}

		sum += out.Value
	}

	return sum, true
}

func (tx *Transaction) Wire() map[string]interface{} {
	return tx.wire(false)
}

func (tx *Transaction) wire(stripSigs bool) map[string]interface{} {
	outputs := make([]interface{}, len(tx.Outputs))
	for i, out := range tx.Outputs {
		outputs[i] = map[string]interface{}{
			"pubkey": out.PubKey,
			"value":  out.Value,
		}
	}

	m := map[string]interface{}{
		"type":    TypeTransaction,
		"outputs": outputs,
	}

	if tx.Height != nil {
		m["height"] = *tx.Height
		return m
	}

	inputs := make([]interface{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		var sig interface{}
		if in.Sig != nil && !stripSigs {
			sig = *in.Sig
		}

		inputs[i] = map[string]interface{}{
			"outpoint": map[string]interface{}{
				"txid":  string(in.Outpoint.TxID),
				"index": in.Outpoint.Index,
			},
			"sig": sig,
		}
	}

	m["inputs"] = inputs

	return m
}

// MarshalJSON emits the canonical encoding.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	return Canonicalize(tx.Wire())
}
