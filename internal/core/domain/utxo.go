package domain

import (
	"fmt"
	"sort"
)

// ConfirmationDepth is the number of blocks an output must be buried under to
// count as confirmed.
const ConfirmationDepth = 6

// UtxoEntry is a spendable output of a wallet, as reported by the gateway.
type UtxoEntry struct {
	Height uint32 `json:"height"`
	TxPos  uint32 `json:"tx_pos"`
	TxHash string `json:"tx_hash"`
	Value  uint64 `json:"value"`
}

func (u UtxoEntry) Outpoint() Outpoint {
	return Outpoint{Hash: u.TxHash, Index: u.TxPos}
}

func (u UtxoEntry) String() string {
	return fmt.Sprintf("{%s:%d %d sat @%d}", u.TxHash, u.TxPos, u.Value, u.Height)
}

// Balance splits the value of a wallet in confirmed and unconfirmed.
type Balance struct {
	Confirmed   uint64 `json:"confirmed"`
	Unconfirmed uint64 `json:"unconfirmed"`
}

func (b Balance) Total() uint64 {
	return b.Confirmed + b.Unconfirmed
}

// NewBalance derives the balance of the given utxos at the given chain
// height. An entry is confirmed if its height is at most
// chainHeight - ConfirmationDepth. With a chain shorter than the depth,
// every entry is unconfirmed.
func NewBalance(utxos []UtxoEntry, chainHeight uint32) Balance {
	var balance Balance
	if chainHeight < ConfirmationDepth {
		for _, u := range utxos {
			balance.Unconfirmed += u.Value
		}
		return balance
	}

	confirmationHeight := chainHeight - ConfirmationDepth
	for _, u := range utxos {
		if u.Height <= confirmationHeight {
			balance.Confirmed += u.Value
		} else {
			balance.Unconfirmed += u.Value
		}
	}
	return balance
}

// SortUtxos sorts the given list ascending by value. Entries with equal
// value keep their relative order.
func SortUtxos(utxos []UtxoEntry) {
	sort.SliceStable(utxos, func(i, j int) bool {
		return utxos[i].Value < utxos[j].Value
	})
}
