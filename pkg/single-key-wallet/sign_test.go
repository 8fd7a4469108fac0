package wallet_test

import (
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	wallet "github.com/vulpemventures/funder/pkg/single-key-wallet"
)

const prevValue = int64(9564208)

func TestSignInput(t *testing.T) {
	t.Parallel()

	key := newTestKey(t)

	t.Run("all forkid commits to spent value and outputs", func(t *testing.T) {
		t.Parallel()

		tx := newTestTx(t, key)
		err := key.SignInput(wallet.SignInputArgs{
			Tx:         tx,
			InIndex:    0,
			PrevScript: key.LockingScript(),
			PrevValue:  prevValue,
		})
		require.NoError(t, err)
		require.NotEmpty(t, tx.TxIn[0].SignatureScript)

		sighashType, err := wallet.VerifyInputSignature(
			tx, 0, key.LockingScript(), prevValue,
		)
		require.NoError(t, err)
		require.Equal(t, wallet.SigHashAllForkID, sighashType)
		require.EqualValues(t, 0x41, sighashType)

		_, err = wallet.VerifyInputSignature(
			tx, 0, key.LockingScript(), prevValue-1,
		)
		require.ErrorIs(t, err, wallet.ErrInvalidSignature)

		tx.TxOut[0].Value--
		_, err = wallet.VerifyInputSignature(
			tx, 0, key.LockingScript(), prevValue,
		)
		require.ErrorIs(t, err, wallet.ErrInvalidSignature)
	})

	// Older funders signed with SIGHASH_NONE|FORKID, which leaves outputs
	// unprotected. The signer still supports it only so such txs can be
	// checked; this documents the difference.
	t.Run("legacy none forkid does not commit to outputs", func(t *testing.T) {
		t.Parallel()

		tx := newTestTx(t, key)
		err := key.SignInput(wallet.SignInputArgs{
			Tx:          tx,
			InIndex:     0,
			PrevScript:  key.LockingScript(),
			PrevValue:   prevValue,
			SigHashType: wallet.SigHashNoneForkID,
		})
		require.NoError(t, err)

		tx.TxOut[0].Value--
		sighashType, err := wallet.VerifyInputSignature(
			tx, 0, key.LockingScript(), prevValue,
		)
		require.NoError(t, err)
		require.Equal(t, wallet.SigHashNoneForkID, sighashType)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		tx := newTestTx(t, key)
		tests := []struct {
			name string
			args wallet.SignInputArgs
		}{
			{"missing tx", wallet.SignInputArgs{
				PrevScript: key.LockingScript(), PrevValue: prevValue,
			}},
			{"index out of range", wallet.SignInputArgs{
				Tx: tx, InIndex: 1, PrevScript: key.LockingScript(),
				PrevValue: prevValue,
			}},
			{"missing prev script", wallet.SignInputArgs{
				Tx: tx, PrevValue: prevValue,
			}},
			{"zero prev value", wallet.SignInputArgs{
				Tx: tx, PrevScript: key.LockingScript(),
			}},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				require.Error(t, key.SignInput(tt.args))
			})
		}
	})

	t.Run("tx hex roundtrip keeps the txid", func(t *testing.T) {
		t.Parallel()

		tx := newTestTx(t, key)
		require.NoError(t, key.SignInput(wallet.SignInputArgs{
			Tx:         tx,
			PrevScript: key.LockingScript(),
			PrevValue:  prevValue,
		}))

		txHex, err := wallet.TxToHex(tx)
		require.NoError(t, err)

		decoded, err := wallet.TxFromHex(txHex)
		require.NoError(t, err)
		require.Equal(t, tx.TxHash(), decoded.TxHash())
	})
}

func newTestKey(t *testing.T) *wallet.Key {
	wif, _ := newTestWif(t, &chaincfg.TestNet3Params, true)
	key, err := wallet.NewKeyFromWif(wallet.NewKeyFromWifArgs{
		Wif:     wif,
		Network: &chaincfg.TestNet3Params,
	})
	require.NoError(t, err)
	return key
}

func newTestTx(t *testing.T, key *wallet.Key) *wire.MsgTx {
	var hash chainhash.Hash
	_, err := rand.Read(hash[:])
	require.NoError(t, err)

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&hash, 3), nil, nil))
	tx.AddTxOut(wire.NewTxOut(prevValue-1000, key.LockingScript()))
	tx.AddTxOut(wire.NewTxOut(123, key.LockingScript()))
	return tx
}
