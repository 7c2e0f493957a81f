// Package validator checks transactions in isolation or in the context of a
// block and a UTXO snapshot.
package validator

import (
	"context"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/utxo"
	"github.com/bsv-blockchain/marabu/tracing"
	"github.com/bsv-blockchain/marabu/ulogger"
)

// TxResolver looks up transactions referenced by inputs. A missing transaction
// is reported with a NotFound error.
type TxResolver interface {
	GetTransaction(ctx context.Context, id model.ObjectID) (*model.Transaction, error)
}

// BlockContext describes where in a block a transaction is being validated.
type BlockContext struct {
	Index int
	// Local holds the block's transactions by id. They are resolved before the store.
	Local map[model.ObjectID]*model.Transaction
	// CoinbaseID is set when the block starts with a coinbase. Its outputs
	// cannot be spent inside the same block.
	CoinbaseID *model.ObjectID
}

// DataKeyOutpoint names the outpoint an INVALID_TX_OUTPOINT error is about.
const DataKeyOutpoint = "outpoint"

type Validator struct {
	logger   ulogger.Logger
	resolver TxResolver
	verifier SignatureVerifier
}

type Option func(*Validator)

func WithSignatureVerifier(verifier SignatureVerifier) Option {
	return func(v *Validator) {
		v.verifier = verifier
	}
}

func New(logger ulogger.Logger, resolver TxResolver, opts ...Option) *Validator {
	initPrometheusMetrics()

	v := &Validator{
		logger:   logger,
		resolver: resolver,
		verifier: Ed25519Verifier{},
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// ValidateTransaction returns the fee paid by tx, which is zero for coinbases.
//
// snapshot may be nil, in which case UTXO membership is not checked. It is never
// modified. blockCtx is nil outside a block.
func (v *Validator) ValidateTransaction(ctx context.Context, tx *model.Transaction, snapshot *utxo.Set, blockCtx *BlockContext) (fee uint64, err error) {
	ctx, _, deferFn := tracing.StartTracing(ctx, "ValidateTransaction",
		tracing.WithHistogram(prometheusValidateTransaction),
	)

	defer func() {
		deferFn()

		if err != nil {
			if name, ok := errors.WireName(err); ok {
				prometheusInvalidTransactions.WithLabelValues(name).Inc()
			}

			return
		}

		prometheusValidatedTransactions.Inc()
	}()

	if tx.IsCoinbase() {
		return 0, v.validateCoinbase(tx, blockCtx)
	}

	return v.validateSpending(ctx, tx, snapshot, blockCtx)
}

func (v *Validator) validateCoinbase(tx *model.Transaction, blockCtx *BlockContext) error {
	txID := tx.ID()

	if len(tx.Outputs) != 1 {
		return errors.NewInvalidFormatError("coinbase %s must have exactly one output, has %d", txID, len(tx.Outputs))
	}

	if blockCtx != nil && blockCtx.Index > 0 {
		return errors.NewInvalidFormatError("coinbase %s found at index %d, only index 0 may hold a coinbase", txID, blockCtx.Index)
	}

	return nil
}

func (v *Validator) validateSpending(ctx context.Context, tx *model.Transaction, snapshot *utxo.Set, blockCtx *BlockContext) (uint64, error) {
	txID := tx.ID()

	if len(tx.Inputs) == 0 {
		return 0, errors.NewInvalidFormatError("transaction %s has no inputs", txID)
	}

	prometheusTransactionInputsPerTx.Observe(float64(len(tx.Inputs)))

	// duplicates fail before any signature is looked at
	seen := make(map[string]struct{}, len(tx.Inputs))

	for i, in := range tx.Inputs {
		key := in.Outpoint.Key()
		if _, dup := seen[key]; dup {
			return 0, outpointError(in.Outpoint, "transaction %s input %d spends outpoint %s twice", txID, i, key)
		}

		seen[key] = struct{}{}
	}

	signedMessage := tx.SigningBytes()

	var inputSum uint64

	for i, in := range tx.Inputs {
		op := in.Outpoint

		if blockCtx != nil && blockCtx.CoinbaseID != nil && op.TxID == *blockCtx.CoinbaseID {
			return 0, outpointError(op, "transaction %s input %d spends the coinbase of its own block", txID, i)
		}

		if snapshot != nil && !snapshot.Has(op) {
			return 0, outpointError(op, "transaction %s input %d spends %s which is not unspent", txID, i, op)
		}

		prev, err := v.resolve(ctx, op.TxID, blockCtx)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return 0, outpointError(op, "transaction %s input %d references unknown transaction %s", txID, i, op.TxID, err)
			}

			return 0, err
		}

		if op.Index >= uint64(len(prev.Outputs)) {
			return 0, outpointError(op, "transaction %s input %d references output %d of %s which has %d outputs", txID, i, op.Index, op.TxID, len(prev.Outputs))
		}

		spent := prev.Outputs[op.Index]

		if in.Sig == nil {
			return 0, errors.NewInvalidFormatError("transaction %s input %d is not signed", txID, i)
		}

		prometheusSignatureVerifications.Inc()

		if !v.verifier.Verify(*in.Sig, signedMessage, spent.PubKey) {
			return 0, errors.NewTxSignatureError("transaction %s input %d has an invalid signature", txID, i)
		}

		if inputSum+spent.Value < inputSum {
			return 0, errors.NewTxConservationError("transaction %s input values overflow", txID)
		}

		inputSum += spent.Value
	}

	outputSum, ok := tx.OutputSum()
	if !ok {
		return 0, errors.NewTxConservationError("transaction %s output values overflow", txID)
	}

	if outputSum > inputSum {
		return 0, errors.NewTxConservationError("transaction %s spends %d but its inputs only hold %d", txID, outputSum, inputSum)
	}

	return inputSum - outputSum, nil
}

// outpointError is an INVALID_TX_OUTPOINT error carrying the offending outpoint
// under DataKeyOutpoint.
func outpointError(op model.Outpoint, message string, params ...interface{}) error {
	err := errors.New(errors.ERR_INVALID_TX_OUTPOINT, message, params...)
	err.SetData(DataKeyOutpoint, op.Key())

	return err
}

func (v *Validator) resolve(ctx context.Context, id model.ObjectID, blockCtx *BlockContext) (*model.Transaction, error) {
	if blockCtx != nil {
		if tx, ok := blockCtx.Local[id]; ok {
			return tx, nil
		}
	}

	if v.resolver == nil {
		return nil, errors.NewNotFoundError("transaction %s not found", id)
	}

	return v.resolver.GetTransaction(ctx, id)
}
