package wallet

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"
)

// TxToHex serializes the tx in the legacy (non segwit) format, which is the
// only format BSV nodes accept.
func TxToHex(tx *wire.MsgTx) (string, error) {
	buf := bytes.NewBuffer(make([]byte, 0, tx.SerializeSizeStripped()))
	if err := tx.SerializeNoWitness(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// TxFromHex is the inverse of TxToHex.
func TxFromHex(txHex string) (*wire.MsgTx, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, err
	}
	tx := &wire.MsgTx{}
	if err := tx.DeserializeNoWitness(bytes.NewReader(buf)); err != nil {
		return nil, err
	}
	return tx, nil
}
