// Package model holds the objects exchanged by peers: transactions and blocks,
// their canonical encoding and their content-addressed identifiers.
package model

import (
	"encoding/hex"
	"math/big"

	"github.com/bsv-blockchain/marabu/errors"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/blake2s"
)

const (
	TypeBlock       = "block"
	TypeTransaction = "transaction"
)

// canonicalJSON produces sorted keys, no whitespace and no HTML escaping.
var canonicalJSON = jsoniter.Config{
	SortMapKeys:            true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// ObjectID is the lowercase hex blake2s-256 digest of an object's canonical encoding.
type ObjectID string

func (id ObjectID) String() string {
	return string(id)
}

// Valid reports whether id is 64 lowercase hex characters.
func (id ObjectID) Valid() bool {
	return isHex(string(id), 64)
}

// Short returns a prefix suitable for log lines.
func (id ObjectID) Short() string {
	if len(id) <= 12 {
		return string(id)
	}

	return string(id[:12])
}

// Object is either a *Block or a *Transaction.
type Object interface {
	ID() ObjectID
	Type() string
	Canonical() []byte
	Wire() map[string]interface{}

	sealed()
}

// Hash returns the hex blake2s-256 digest of data.
func Hash(data []byte) string {
	sum := blake2s.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Canonicalize encodes a wire map with sorted keys and no whitespace.
func Canonicalize(v interface{}) ([]byte, error) {
	b, err := canonicalJSON.Marshal(v)
	if err != nil {
		return nil, errors.NewProcessingError("failed to canonicalize object", err)
	}

	return b, nil
}

func mustCanonicalize(v map[string]interface{}) []byte {
	// wire maps only ever hold strings, integers, nil, slices and nested maps
	b, err := canonicalJSON.Marshal(v)
	if err != nil {
		panic(err)
	}

	return b
}

// IDOf computes the identifier of a wire map.
func IDOf(v map[string]interface{}) ObjectID {
	return ObjectID(Hash(mustCanonicalize(v)))
}

// HasPoW reports whether the block id, read as a big-endian integer, does not exceed target.
func HasPoW(id ObjectID, target string) bool {
	idInt, ok := new(big.Int).SetString(string(id), 16)
	if !ok {
		return false
	}

	targetInt, ok := new(big.Int).SetString(target, 16)
	if !ok {
		return false
	}

	return idInt.Cmp(targetInt) <= 0
}

func isHex(s string, length int) bool {
	if len(s) != length {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}

func isPrintableASCII(s string, maxLen int) bool {
	if len(s) > maxLen {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}

	return true
}
