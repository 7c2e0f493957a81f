package blockvalidation

import (
	"context"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/looplab/fsm"
)

// validation states
const (
	StateReceived   = "received"
	StatePoWOK      = "pow_ok"
	StateAncestryOK = "ancestry_ok"
	StateTxOK       = "tx_ok"
	StateValid      = "valid"
	StateRejected   = "rejected"
)

// validation events
const (
	EventPoWChecked      = "pow_checked"
	EventAncestryChecked = "ancestry_checked"
	EventTxsChecked      = "txs_checked"
	EventAccept          = "accept"
	EventReject          = "reject"
)

// newValidationFSM creates the state machine one block moves through while it
// is validated. Every check moves it one state forward, any failure moves it
// to rejected and only a block in tx_ok can become valid.
func (v *BlockValidation) newValidationFSM(id model.ObjectID) *fsm.FSM {
	return fsm.NewFSM(
		StateReceived,
		fsm.Events{
			{
				Name: EventPoWChecked,
				Src:  []string{StateReceived},
				Dst:  StatePoWOK,
			},
			{
				Name: EventAncestryChecked,
				Src:  []string{StatePoWOK},
				Dst:  StateAncestryOK,
			},
			{
				Name: EventTxsChecked,
				Src:  []string{StateAncestryOK},
				Dst:  StateTxOK,
			},
			{
				Name: EventAccept,
				Src:  []string{StateTxOK},
				Dst:  StateValid,
			},
			{
				Name: EventReject,
				Src: []string{
					StateReceived,
					StatePoWOK,
					StateAncestryOK,
					StateTxOK,
				},
				Dst: StateRejected,
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				v.logger.Debugf("[validate][%s] %s -> %s", id.Short(), e.Src, e.Dst)
				prometheusBlockValidationTransitions.WithLabelValues(e.Dst).Inc()
			},
		},
	)
}

func transition(ctx context.Context, machine *fsm.FSM, event string) error {
	if err := machine.Event(ctx, event); err != nil {
		return errors.NewProcessingError("block validation cannot %s in state %s", event, machine.Current(), err)
	}

	return nil
}
