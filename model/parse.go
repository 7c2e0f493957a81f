package model

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/bsv-blockchain/marabu/errors"
	jsoniter "github.com/json-iterator/go"
)

const maxTextLength = 128

var wireJSON = jsoniter.Config{
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

var (
	blockFields       = fieldSet("type", "previd", "txids", "nonce", "T", "created", "miner", "note")
	coinbaseFields    = fieldSet("type", "height", "outputs")
	spendingFields    = fieldSet("type", "inputs", "outputs")
	inputFields       = fieldSet("outpoint", "sig")
	outpointFields    = fieldSet("txid", "index")
	outputFields      = fieldSet("pubkey", "value")
	requiredBlockKeys = []string{"type", "previd", "txids", "nonce", "T", "created"}
)

func fieldSet(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}

	return m
}

// ParseObject decodes a wire object. Any structural problem is an invalid format error.
func ParseObject(data []byte) (Object, error) {
	var raw map[string]interface{}
	if err := wireJSON.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewInvalidFormatError("object is not a JSON object", err)
	}

	return ObjectFromWire(raw)
}

// ObjectFromWire builds a Block or Transaction from an already decoded JSON object.
func ObjectFromWire(raw map[string]interface{}) (Object, error) {
	if raw == nil {
		return nil, errors.NewInvalidFormatError("object is null")
	}

	typ, ok := raw["type"].(string)
	if !ok {
		return nil, errors.NewInvalidFormatError("object has no type")
	}

	switch typ {
	case TypeBlock:
		return blockFromWire(raw)
	case TypeTransaction:
		return transactionFromWire(raw)
	default:
		return nil, errors.NewInvalidFormatError("unknown object type %q", typ)
	}
}

func ParseBlock(data []byte) (*Block, error) {
	obj, err := ParseObject(data)
	if err != nil {
		return nil, err
	}

	block, ok := obj.(*Block)
	if !ok {
		return nil, errors.NewInvalidFormatError("object %s is not a block", obj.ID())
	}

	return block, nil
}

func ParseTransaction(data []byte) (*Transaction, error) {
	obj, err := ParseObject(data)
	if err != nil {
		return nil, err
	}

	tx, ok := obj.(*Transaction)
	if !ok {
		return nil, errors.NewInvalidFormatError("object %s is not a transaction", obj.ID())
	}

	return tx, nil
}

func checkFields(raw map[string]interface{}, allowed map[string]struct{}, what string) error {
	for k := range raw {
		if _, ok := allowed[k]; !ok {
			return errors.NewInvalidFormatError("%s has unexpected field %q", what, k)
		}
	}

	return nil
}

func blockFromWire(raw map[string]interface{}) (*Block, error) {
	if err := checkFields(raw, blockFields, "block"); err != nil {
		return nil, err
	}

	for _, k := range requiredBlockKeys {
		if _, ok := raw[k]; !ok {
			return nil, errors.NewInvalidFormatError("block is missing field %q", k)
		}
	}

	b := &Block{}

	if raw["previd"] != nil {
		prev, ok := asHex(raw["previd"], 64)
		if !ok {
			return nil, errors.NewInvalidFormatError("block previd is not a valid id")
		}

		prevID := ObjectID(prev)
		b.PrevID = &prevID
	}

	txIDs, ok := raw["txids"].([]interface{})
	if !ok {
		return nil, errors.NewInvalidFormatError("block txids is not a list")
	}

	b.TxIDs = make([]ObjectID, len(txIDs))

	for i, v := range txIDs {
		id, ok := asHex(v, 64)
		if !ok {
			return nil, errors.NewInvalidFormatError("block txid %d is not a valid id", i)
		}

		b.TxIDs[i] = ObjectID(id)
	}

	if b.Nonce, ok = asHex(raw["nonce"], 64); !ok {
		return nil, errors.NewInvalidFormatError("block nonce is not 32 bytes of hex")
	}

	if b.T, ok = asHex(raw["T"], 64); !ok {
		return nil, errors.NewInvalidFormatError("block target is not 32 bytes of hex")
	}

	created, ok := asUint(raw["created"])
	if !ok || created > math.MaxInt64 {
		return nil, errors.NewInvalidFormatError("block created is not a non-negative integer")
	}

	b.Created = int64(created)

	if v, present := raw["miner"]; present {
		miner, ok := asText(v)
		if !ok {
			return nil, errors.NewInvalidFormatError("block miner is not printable ascii of at most %d characters", maxTextLength)
		}

		b.Miner = &miner
	}

	if v, present := raw["note"]; present {
		note, ok := asText(v)
		if !ok {
			return nil, errors.NewInvalidFormatError("block note is not printable ascii of at most %d characters", maxTextLength)
		}

		b.Note = &note
	}

	return b, nil
}

func transactionFromWire(raw map[string]interface{}) (*Transaction, error) {
	_, hasHeight := raw["height"]
	_, hasInputs := raw["inputs"]

	if hasHeight == hasInputs {
		return nil, errors.NewInvalidFormatError("transaction must have exactly one of height or inputs")
	}

	tx := &Transaction{}

	outputs, ok := raw["outputs"].([]interface{})
	if !ok {
		return nil, errors.NewInvalidFormatError("transaction outputs is not a list")
	}

	tx.Outputs = make([]Output, len(outputs))

	for i, v := range outputs {
		out, err := outputFromWire(v)
		if err != nil {
			return nil, errors.NewInvalidFormatError("transaction output %d", i, err)
		}

		tx.Outputs[i] = out
	}

	if hasHeight {
		if err := checkFields(raw, coinbaseFields, "coinbase transaction"); err != nil {
			return nil, err
		}

		height, ok := asUint(raw["height"])
		if !ok {
			return nil, errors.NewInvalidFormatError("coinbase height is not a non-negative integer")
		}

		tx.Height = &height

		return tx, nil
	}

	if err := checkFields(raw, spendingFields, "transaction"); err != nil {
		return nil, err
	}

	inputs, ok := raw["inputs"].([]interface{})
	if !ok {
		return nil, errors.NewInvalidFormatError("transaction inputs is not a list")
	}

	tx.Inputs = make([]Input, len(inputs))

	for i, v := range inputs {
		in, err := inputFromWire(v)
		if err != nil {
			return nil, errors.NewInvalidFormatError("transaction input %d", i, err)
		}

		tx.Inputs[i] = in
	}

	return tx, nil
}

func outputFromWire(v interface{}) (Output, error) {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return Output{}, errors.NewInvalidFormatError("output is not an object")
	}

	if err := checkFields(raw, outputFields, "output"); err != nil {
		return Output{}, err
	}

	pubKey, ok := asHex(raw["pubkey"], 64)
	if !ok {
		return Output{}, errors.NewInvalidFormatError("output pubkey is not 32 bytes of hex")
	}

	value, ok := asUint(raw["value"])
	if !ok {
		return Output{}, errors.NewInvalidFormatError("output value is not a non-negative integer")
	}

	return Output{PubKey: pubKey, Value: value}, nil
}

func inputFromWire(v interface{}) (Input, error) {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return Input{}, errors.NewInvalidFormatError("input is not an object")
	}

	if err := checkFields(raw, inputFields, "input"); err != nil {
		return Input{}, err
	}

	op, ok := raw["outpoint"].(map[string]interface{})
	if !ok {
		return Input{}, errors.NewInvalidFormatError("input outpoint is not an object")
	}

	if err := checkFields(op, outpointFields, "outpoint"); err != nil {
		return Input{}, err
	}

	txID, ok := asHex(op["txid"], 64)
	if !ok {
		return Input{}, errors.NewInvalidFormatError("outpoint txid is not a valid id")
	}

	index, ok := asUint(op["index"])
	if !ok {
		return Input{}, errors.NewInvalidFormatError("outpoint index is not a non-negative integer")
	}

	in := Input{Outpoint: Outpoint{TxID: ObjectID(txID), Index: index}}

	s, present := raw["sig"]
	if !present {
		return Input{}, errors.NewInvalidFormatError("input has no sig, an unsigned input carries sig null")
	}

	if s != nil {
		sig, ok := asHex(s, 128)
		if !ok {
			return Input{}, errors.NewInvalidFormatError("input sig is not 64 bytes of hex")
		}

		in.Sig = &sig
	}

	return in, nil
}

func asHex(v interface{}, length int) (string, bool) {
	s, ok := v.(string)
	if !ok || !isHex(s, length) {
		return "", false
	}

	return s, true
}

func asText(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok || !isPrintableASCII(s, maxTextLength) {
		return "", false
	}

	return s, true
}

// asUint accepts plain decimal JSON integers and the integer types callers may
// put into a wire map directly.
func asUint(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case json.Number:
		u, err := strconv.ParseUint(string(n), 10, 64)
		return u, err == nil
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case float64:
		if n < 0 || n != math.Trunc(n) || n > 1<<53 {
			return 0, false
		}

		return uint64(n), true
	default:
		return 0, false
	}
}
