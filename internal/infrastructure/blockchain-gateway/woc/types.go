package woc_gateway

import "github.com/vulpemventures/funder/internal/core/domain"

type wocBalance struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

// Unconfirmed balance is negative when mempool txs spend confirmed coins; the
// split is clamped so that the total is preserved and no side is negative.
func (b wocBalance) toDomain() *domain.Balance {
	confirmed, unconfirmed := b.Confirmed, b.Unconfirmed
	if unconfirmed < 0 {
		confirmed += unconfirmed
		unconfirmed = 0
	}
	if confirmed < 0 {
		confirmed = 0
	}
	return &domain.Balance{
		Confirmed:   uint64(confirmed),
		Unconfirmed: uint64(unconfirmed),
	}
}

type wocUtxo struct {
	Height int64  `json:"height"`
	TxPos  uint32 `json:"tx_pos"`
	TxHash string `json:"tx_hash"`
	Value  uint64 `json:"value"`
}

func (u wocUtxo) toDomain() domain.UtxoEntry {
	height := u.Height
	if height < 0 {
		height = 0
	}
	return domain.UtxoEntry{
		Height: uint32(height),
		TxPos:  u.TxPos,
		TxHash: u.TxHash,
		Value:  u.Value,
	}
}

type wocUtxos []wocUtxo

func (l wocUtxos) toDomain() []domain.UtxoEntry {
	utxos := make([]domain.UtxoEntry, 0, len(l))
	for _, u := range l {
		if u.Value == 0 {
			continue
		}
		utxos = append(utxos, u.toDomain())
	}
	return utxos
}

type broadcastRequest struct {
	TxHex string `json:"txhex"`
}
