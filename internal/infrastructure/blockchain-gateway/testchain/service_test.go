package testchain_gateway_test

import (
	"context"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/funder/internal/core/domain"
	"github.com/vulpemventures/funder/internal/core/ports"
	testchain_gateway "github.com/vulpemventures/funder/internal/infrastructure/blockchain-gateway/testchain"
	wallet "github.com/vulpemventures/funder/pkg/single-key-wallet"
)

const (
	address     = "mfWxJ45yp2SFn7UciZyNpvDKrzbhyfKrY8"
	chainHeight = 1517571
)

var (
	ctx    = context.Background()
	values = []uint64{240, 100, 100, 100, 100, 39080962, 39327675, 9564208, 123}
)

func TestGateway(t *testing.T) {
	t.Parallel()

	gw := testchain_gateway.NewService(domain.Testnet, chainHeight)
	var _ ports.BlockchainGateway = gw

	utxos := make([]domain.UtxoEntry, 0, len(values))
	for i, v := range values {
		utxos = append(utxos, domain.UtxoEntry{
			Height: chainHeight - uint32(i), TxHash: chainhash.Hash{byte(i)}.String(), Value: v,
		})
	}
	gw.SetUtxos(address, utxos)

	t.Run("network and liveness", func(t *testing.T) {
		require.Equal(t, domain.Testnet, gw.Network())
		require.NoError(t, gw.GetBlockHeaders(ctx))
	})

	t.Run("balance split", func(t *testing.T) {
		balance, err := gw.GetBalance(ctx, address)
		require.NoError(t, err)
		// Entries at depth 6 and more: 39327675, 9564208 and 123.
		require.Equal(t, uint64(39327675+9564208+123), balance.Confirmed)
		require.Equal(t, uint64(240+400+39080962), balance.Unconfirmed)
	})

	t.Run("refresh is idempotent", func(t *testing.T) {
		b1, err := gw.GetBalance(ctx, address)
		require.NoError(t, err)
		b2, err := gw.GetBalance(ctx, address)
		require.NoError(t, err)
		require.Equal(t, b1, b2)

		u1, err := gw.GetUtxos(ctx, address)
		require.NoError(t, err)
		u2, err := gw.GetUtxos(ctx, address)
		require.NoError(t, err)
		require.Equal(t, u1, u2)
		require.Equal(t, utxos, u1)
	})

	t.Run("unknown address", func(t *testing.T) {
		utxos, err := gw.GetUtxos(ctx, "unknown")
		require.NoError(t, err)
		require.Empty(t, utxos)

		balance, err := gw.GetBalance(ctx, "unknown")
		require.NoError(t, err)
		require.Equal(t, domain.Balance{}, *balance)
	})
}

func TestGatewayShortChain(t *testing.T) {
	t.Parallel()

	gw := testchain_gateway.NewService(domain.Stn, 3)
	gw.AddUtxo(address, domain.UtxoEntry{Height: 0, Value: 1000})
	gw.AddUtxo(address, domain.UtxoEntry{Height: 2, Value: 500})

	balance, err := gw.GetBalance(ctx, address)
	require.NoError(t, err)
	require.Equal(t, domain.Balance{Unconfirmed: 1500}, *balance)

	gw.SetHeight(8)
	require.Equal(t, uint32(8), gw.Height())
	balance, err = gw.GetBalance(ctx, address)
	require.NoError(t, err)
	require.Equal(t, domain.Balance{Confirmed: 1500}, *balance)
}

func TestGatewayBroadcast(t *testing.T) {
	t.Parallel()

	gw := testchain_gateway.NewService(domain.Testnet, chainHeight)

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{1}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	txHex, err := wallet.TxToHex(tx)
	require.NoError(t, err)

	wg := &sync.WaitGroup{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txid, err := gw.BroadcastTransaction(ctx, txHex)
			require.NoError(t, err)
			require.Equal(t, tx.TxHash().String(), txid)
		}()
	}
	wg.Wait()
	require.Len(t, gw.Broadcasts(), 5)

	txid, err := gw.BroadcastTransaction(ctx, "not hex")
	require.ErrorIs(t, err, domain.ErrGateway)
	require.Empty(t, txid)
	require.Len(t, gw.Broadcasts(), 5)
}
