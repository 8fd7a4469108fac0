package domain

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	wallet "github.com/vulpemventures/funder/pkg/single-key-wallet"
)

const (
	// FeeRatePerKb is charged for every full kilobyte of locking script in
	// the funded outputs.
	FeeRatePerKb = 500
	// BaseFee is the flat part of the fee of every funding tx.
	BaseFee = 750

	fundingTxVersion = 1
)

// EstimateFee returns the fee of a funding tx carrying outputCount outputs
// with the given locking script length. Integer division is floor division.
func EstimateFee(lockingScriptLen int, outputCount uint32) uint64 {
	return (uint64(lockingScriptLen)*uint64(outputCount)/1000)*FeeRatePerKb +
		BaseFee
}

// Wallet holds the key of one client and a local, advisory cache of its
// utxos sorted ascending by value. The cache is overwritten by every refresh
// and updated by every funding tx built.
type Wallet struct {
	ClientID string

	key     *wallet.Key
	balance Balance
	utxos   []UtxoEntry
}

// NewWallet decodes the WIF key for the given network.
func NewWallet(clientID, wifKey string, network Network) (*Wallet, error) {
	if len(clientID) <= 0 {
		return nil, ErrMissingClientID
	}
	params := network.ChainParams()
	if params == nil {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownNetwork, network)
	}

	key, err := wallet.NewKeyFromWif(wallet.NewKeyFromWifArgs{
		Wif:     wifKey,
		Network: params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w for client %s: %s", ErrInvalidKey, clientID, err)
	}

	return &Wallet{ClientID: clientID, key: key}, nil
}

func (w *Wallet) Address() string {
	return w.key.Address()
}

func (w *Wallet) LockingScript() []byte {
	return w.key.LockingScript()
}

func (w *Wallet) Balance() Balance {
	return w.balance
}

// Utxos returns a copy of the cached utxos, sorted ascending by value.
func (w *Wallet) Utxos() []UtxoEntry {
	return append([]UtxoEntry{}, w.utxos...)
}

// Update replaces balance and utxo cache wholesale.
func (w *Wallet) Update(balance Balance, utxos []UtxoEntry) {
	w.balance = balance
	w.utxos = append(make([]UtxoEntry, 0, len(utxos)), utxos...)
	SortUtxos(w.utxos)
}

// WalletSnapshot is an opaque copy of the wallet state.
type WalletSnapshot struct {
	balance Balance
	utxos   []UtxoEntry
}

func (w *Wallet) Snapshot() WalletSnapshot {
	return WalletSnapshot{w.balance, w.Utxos()}
}

// Restore brings the wallet back to a previously taken snapshot.
func (w *Wallet) Restore(s WalletSnapshot) {
	w.balance = s.balance
	w.utxos = append([]UtxoEntry{}, s.utxos...)
}

// HasSufficientBalance compares the cost of the request with the largest
// cached utxo. The second value is false when the cache is empty and no
// answer can be given.
func (w *Wallet) HasSufficientBalance(
	satoshi uint64, outputCount uint32, multiTx bool, lockingScriptLen int,
) (bool, bool) {
	if len(w.utxos) <= 0 {
		return false, false
	}
	largest := w.utxos[len(w.utxos)-1].Value

	var cost uint64
	var overflow bool
	if multiTx && outputCount > 1 {
		perTx := satoshi + EstimateFee(lockingScriptLen, 1)
		if perTx < satoshi {
			return false, true
		}
		cost, overflow = mul(perTx, uint64(outputCount))
	} else {
		cost, overflow = totalCost(satoshi, outputCount, lockingScriptLen)
	}
	if overflow {
		return false, true
	}

	return cost < largest, true
}

// CreateFundingTx builds and signs a tx spending the smallest cached utxo
// whose value is strictly greater than the total cost. Output 0 is the
// change back to the wallet, followed by outputCount outputs paying
// lockingScript. On success the spent utxo is replaced in the cache by the
// change output. ErrNoSpendableUtxo is returned if no utxo qualifies.
func (w *Wallet) CreateFundingTx(
	satoshi uint64, outputCount uint32, lockingScript []byte,
) (*wire.MsgTx, error) {
	cost, overflow := totalCost(satoshi, outputCount, len(lockingScript))
	if overflow {
		return nil, ErrNoSpendableUtxo
	}

	index := -1
	for i, u := range w.utxos {
		if u.Value > cost {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrNoSpendableUtxo
	}
	utxo := w.utxos[index]
	change := utxo.Value - cost

	prevHash, err := chainhash.NewHashFromStr(utxo.TxHash)
	if err != nil {
		return nil, fmt.Errorf("invalid cached utxo %s: %w", utxo, err)
	}

	tx := wire.NewMsgTx(fundingTxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prevHash, utxo.TxPos), nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(change), w.key.LockingScript()))
	for i := uint32(0); i < outputCount; i++ {
		tx.AddTxOut(wire.NewTxOut(int64(satoshi), lockingScript))
	}

	if err := w.key.SignInput(wallet.SignInputArgs{
		Tx:          tx,
		InIndex:     0,
		PrevScript:  w.key.LockingScript(),
		PrevValue:   int64(utxo.Value),
		SigHashType: wallet.SigHashAllForkID,
	}); err != nil {
		return nil, err
	}

	if err := w.ApplyFundingTx(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// CreateMultipleFundingTxs builds outputCount single-output funding txs,
// each one able to spend the change of the previous. It stops at the first
// tx that cannot be built and returns the ones built so far; running out of
// spendable utxos is not an error.
func (w *Wallet) CreateMultipleFundingTxs(
	satoshi uint64, outputCount uint32, lockingScript []byte,
) ([]*wire.MsgTx, error) {
	txs := make([]*wire.MsgTx, 0, outputCount)
	for i := uint32(0); i < outputCount; i++ {
		tx, err := w.CreateFundingTx(satoshi, 1, lockingScript)
		if err != nil {
			if errors.Is(err, ErrNoSpendableUtxo) {
				break
			}
			return txs, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// ApplyFundingTx updates the cache with a funding tx built by this wallet:
// the spent utxo is removed and the change output is added unconfirmed.
func (w *Wallet) ApplyFundingTx(tx *wire.MsgTx) error {
	if len(tx.TxIn) != 1 || len(tx.TxOut) < 2 {
		return fmt.Errorf("tx %s is not a funding tx", tx.TxHash())
	}

	prevout := tx.TxIn[0].PreviousOutPoint
	prevHash := prevout.Hash.String()
	index := -1
	for i, u := range w.utxos {
		if strings.EqualFold(u.TxHash, prevHash) && u.TxPos == prevout.Index {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("utxo %s not found in wallet %s", prevout, w.ClientID)
	}

	utxos := make([]UtxoEntry, 0, len(w.utxos))
	utxos = append(utxos, w.utxos[:index]...)
	utxos = append(utxos, w.utxos[index+1:]...)
	utxos = append(utxos, UtxoEntry{
		Height: 0,
		TxPos:  0,
		TxHash: tx.TxHash().String(),
		Value:  uint64(tx.TxOut[0].Value),
	})
	SortUtxos(utxos)
	w.utxos = utxos
	return nil
}

func totalCost(
	satoshi uint64, outputCount uint32, lockingScriptLen int,
) (uint64, bool) {
	amount, overflow := mul(satoshi, uint64(outputCount))
	if overflow {
		return 0, true
	}
	cost := amount + EstimateFee(lockingScriptLen, outputCount)
	return cost, cost < amount
}

func mul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi != 0
}
