package wallet

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// SigHashForkID is the replay protection flag every BSV signature must
	// carry. It selects the BIP143 digest algorithm.
	SigHashForkID txscript.SigHashType = 0x40
	// SigHashAllForkID commits to every input and output of the tx and to
	// the value of the spent output.
	SigHashAllForkID = txscript.SigHashAll | SigHashForkID
	// SigHashNoneForkID commits to the inputs only. Kept for verifying txs
	// produced by older funders, never used to sign.
	SigHashNoneForkID = txscript.SigHashNone | SigHashForkID
)

type SignInputArgs struct {
	Tx          *wire.MsgTx
	InIndex     int
	PrevScript  []byte
	PrevValue   int64
	SigHashType txscript.SigHashType
}

func (a SignInputArgs) validate() error {
	if a.Tx == nil {
		return ErrMissingTx
	}
	if a.InIndex < 0 || a.InIndex >= len(a.Tx.TxIn) {
		return fmt.Errorf("input index %d out of range", a.InIndex)
	}
	if len(a.PrevScript) <= 0 {
		return ErrMissingPrevScript
	}
	if a.PrevValue <= 0 {
		return ErrInvalidPrevValue
	}
	return nil
}

func (a SignInputArgs) sighashType() txscript.SigHashType {
	if a.SigHashType == 0 {
		return SigHashAllForkID
	}
	return a.SigHashType
}

// CalcSignatureHash returns the BIP143-style digest BSV uses for forkid
// signatures: the spent output script and value are committed together with
// the tx according to the given sighash type.
func CalcSignatureHash(
	tx *wire.MsgTx, inIndex int, prevScript []byte, prevValue int64,
	sighashType txscript.SigHashType,
) ([]byte, error) {
	fetcher := txscript.NewCannedPrevOutputFetcher(prevScript, prevValue)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	return txscript.CalcWitnessSigHash(
		prevScript, sigHashes, sighashType, tx, inIndex, prevValue,
	)
}

// SignInput signs the requested input and sets its unlocking script to
// <signature+sighash byte> <pubkey>.
func (k *Key) SignInput(args SignInputArgs) error {
	if err := args.validate(); err != nil {
		return err
	}

	sighashType := args.sighashType()
	hash, err := CalcSignatureHash(
		args.Tx, args.InIndex, args.PrevScript, args.PrevValue, sighashType,
	)
	if err != nil {
		return err
	}

	signature := ecdsa.Sign(k.prvkey, hash)
	if !signature.Verify(hash, k.pubkey) {
		return fmt.Errorf("%w for input %d", ErrInvalidSignature, args.InIndex)
	}

	sigWithSigHashType := append(signature.Serialize(), byte(sighashType))

	sigScript, err := txscript.NewScriptBuilder().
		AddData(sigWithSigHashType).
		AddData(k.SerializedPubKey()).
		Script()
	if err != nil {
		return err
	}

	args.Tx.TxIn[args.InIndex].SignatureScript = sigScript
	return nil
}

// VerifyInputSignature checks that the unlocking script of the given input
// satisfies the P2PKH prevout script for the given value. It returns the
// sighash type found in the signature.
func VerifyInputSignature(
	tx *wire.MsgTx, inIndex int, prevScript []byte, prevValue int64,
) (txscript.SigHashType, error) {
	if tx == nil {
		return 0, ErrMissingTx
	}
	if inIndex < 0 || inIndex >= len(tx.TxIn) {
		return 0, fmt.Errorf("input index %d out of range", inIndex)
	}
	if !txscript.IsPayToPubKeyHash(prevScript) {
		return 0, ErrNotPayToPubKeyHash
	}

	pushes, err := txscript.PushedData(tx.TxIn[inIndex].SignatureScript)
	if err != nil {
		return 0, err
	}
	if len(pushes) != 2 || len(pushes[0]) <= 1 {
		return 0, ErrMissingSigScript
	}

	rawSig, rawPubkey := pushes[0], pushes[1]
	sighashType := txscript.SigHashType(rawSig[len(rawSig)-1])

	pubkey, err := btcec.ParsePubKey(rawPubkey)
	if err != nil {
		return 0, err
	}
	// OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG
	if !bytes.Equal(btcutil.Hash160(rawPubkey), prevScript[3:23]) {
		return 0, ErrPubKeyHashMismatch
	}

	signature, err := ecdsa.ParseDERSignature(rawSig[:len(rawSig)-1])
	if err != nil {
		return 0, err
	}

	hash, err := CalcSignatureHash(
		tx, inIndex, prevScript, prevValue, sighashType,
	)
	if err != nil {
		return 0, err
	}
	if !signature.Verify(hash, pubkey) {
		return 0, ErrInvalidSignature
	}

	return sighashType, nil
}
