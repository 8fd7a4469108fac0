package domain

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// FundRequest asks for OutputCount outputs of SatoshiPerOutput each, paying
// LockingScript. With MultiTx (and more than one output) every output gets
// its own tx.
type FundRequest struct {
	ClientID         string
	SatoshiPerOutput uint64
	OutputCount      uint32
	MultiTx          bool
	LockingScript    []byte
}

// Validate checks the request fields that do not depend on wallet state.
func (r FundRequest) Validate() error {
	if len(r.ClientID) <= 0 {
		return ErrMissingClientID
	}
	if r.SatoshiPerOutput == 0 {
		return ErrZeroSatoshi
	}
	if r.OutputCount == 0 {
		return ErrZeroOutputCount
	}
	return nil
}

// IsMultiTx tells whether the request is served with one tx per output.
func (r FundRequest) IsMultiTx() bool {
	return r.MultiTx && r.OutputCount > 1
}

// ParseLockingScript decodes a hex encoded locking script.
func ParseLockingScript(script string) ([]byte, error) {
	buf, err := hex.DecodeString(script)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedLockingScript, err)
	}
	return buf, nil
}

// Outpoint references one output of a funding tx.
type Outpoint struct {
	Hash  string `json:"hash"`
	Index uint32 `json:"index"`
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}

// FundingResponse lists the funded outpoints in creation order, together
// with the signed txs that created them.
type FundingResponse struct {
	Outpoints []Outpoint
	Txs       []*wire.MsgTx
}

// FundedOutpoints returns the outpoints of the funded outputs of tx. The
// change output sits at index 0, so funded outputs start at index 1.
func FundedOutpoints(tx *wire.MsgTx) []Outpoint {
	hash := tx.TxHash().String()
	outpoints := make([]Outpoint, 0, len(tx.TxOut)-1)
	for i := 1; i < len(tx.TxOut); i++ {
		outpoints = append(outpoints, Outpoint{Hash: hash, Index: uint32(i)})
	}
	return outpoints
}
