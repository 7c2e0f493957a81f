// Package chaincfg defines the consensus parameters of the networks the node can join.
package chaincfg

import (
	"strings"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
)

// BU is the number of base units in one coin.
const BU uint64 = 1_000_000_000_000

// Params holds everything that must be identical between nodes of one network.
type Params struct {
	Name string

	// Target is the fixed proof-of-work target every block must carry in T.
	Target string

	// Genesis is the only block allowed to have no parent.
	Genesis *model.Block

	// BlockReward is the subsidy a coinbase may claim on top of the block's fees.
	BlockReward uint64
}

// GenesisID returns the id of the genesis block.
func (p *Params) GenesisID() model.ObjectID {
	return p.Genesis.ID()
}

// IsGenesis reports whether b is byte-identical to the genesis block.
func (p *Params) IsGenesis(b *model.Block) bool {
	return string(b.Canonical()) == string(p.Genesis.Canonical())
}

func strPtr(s string) *string {
	return &s
}

const mainTarget = "0000abc000000000000000000000000000000000000000000000000000000000"

// MainNetParams are the parameters of the public network.
var MainNetParams = Params{
	Name:   "mainnet",
	Target: mainTarget,
	Genesis: &model.Block{
		T:       mainTarget,
		Created: 1671062400,
		Miner:   strPtr("Marabu"),
		Nonce:   "00000000000000000000000000000000000000000000000000000000005bb0f2",
		Note:    strPtr("The New York Times 2022-12-13: Scientists Achieve Nuclear Fusion Breakthrough With Blast of 192 Lasers"),
		TxIDs:   []model.ObjectID{},
	},
	BlockReward: 50 * BU,
}

const regtestTarget = "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

// RegressionNetParams accept any block id, so blocks can be built without mining.
var RegressionNetParams = Params{
	Name:   "regtest",
	Target: regtestTarget,
	Genesis: &model.Block{
		T:       regtestTarget,
		Created: 1671062400,
		Miner:   strPtr("Marabu"),
		Nonce:   "0000000000000000000000000000000000000000000000000000000000000000",
		Note:    strPtr("regtest genesis"),
		TxIDs:   []model.ObjectID{},
	},
	BlockReward: 50 * BU,
}

// GetChainParams returns the parameters of the named network.
func GetChainParams(network string) (*Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main", "":
		return &MainNetParams, nil
	case "regtest", "regression":
		return &RegressionNetParams, nil
	default:
		return nil, errors.NewConfigurationError("unknown network %q", network)
	}
}
