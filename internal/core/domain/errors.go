package domain

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/wire"
)

// Error taxonomy. Every error returned by the core wraps exactly one of these.
var (
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrInvalidKey        = fmt.Errorf("invalid key")
	ErrGateway           = fmt.Errorf("blockchain gateway error")
	ErrInsufficientFunds = fmt.Errorf("insufficient funds")
	ErrBroadcastFailure  = fmt.Errorf("failed to broadcast funding transaction")
	ErrDuplicateClient   = fmt.Errorf("client already exists")
	ErrClientNotFound    = fmt.Errorf("client not found")
)

var (
	ErrMissingClientID        = fmt.Errorf("%w: missing client id", ErrInvalidInput)
	ErrUnknownClient          = fmt.Errorf("%w: unknown client id", ErrInvalidInput)
	ErrZeroSatoshi            = fmt.Errorf("%w: satoshi must be greater than zero", ErrInvalidInput)
	ErrZeroOutputCount        = fmt.Errorf("%w: number of outpoints must be greater than zero", ErrInvalidInput)
	ErrMalformedLockingScript = fmt.Errorf("%w: locking script is not valid hex", ErrInvalidInput)
	ErrUnknownNetwork         = fmt.Errorf("%w: unknown network", ErrInvalidInput)
	ErrNoSpendableUtxo        = fmt.Errorf("%w: no utxo covers the total cost", ErrInsufficientFunds)
)

// BroadcastError is returned when one of the funding txs could not be
// broadcast. Outpoints and Txs hold what was broadcast successfully before
// the failure, in creation order.
type BroadcastError struct {
	Outpoints []Outpoint
	Txs       []*wire.MsgTx
	Err       error
}

func (e *BroadcastError) Error() string {
	msg := ErrBroadcastFailure.Error()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	if len(e.Outpoints) > 0 {
		outpoints := make([]string, 0, len(e.Outpoints))
		for _, o := range e.Outpoints {
			outpoints = append(outpoints, o.String())
		}
		msg = fmt.Sprintf(
			"%s (already broadcast: %s)", msg, strings.Join(outpoints, ", "),
		)
	}
	return msg
}

func (e *BroadcastError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBroadcastFailure}
	}
	return []error{ErrBroadcastFailure, e.Err}
}
