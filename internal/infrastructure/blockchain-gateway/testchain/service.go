package testchain_gateway

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/funder/internal/core/domain"
)

// Gateway is an in-memory chain fixture. It serves the utxos injected for
// each address at a fixed chain height and records every broadcasted tx
// without ever failing.
type Gateway struct {
	lock       *sync.Mutex
	network    domain.Network
	height     uint32
	utxos      map[string][]domain.UtxoEntry
	broadcasts []string

	log func(format string, a ...interface{})
}

func NewService(network domain.Network, height uint32) *Gateway {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("test gateway: %s", format)
		log.Debugf(format, a...)
	}

	return &Gateway{
		lock:    &sync.Mutex{},
		network: network,
		height:  height,
		utxos:   make(map[string][]domain.UtxoEntry),
		log:     logFn,
	}
}

// SetUtxos replaces the utxo set of the given address.
func (g *Gateway) SetUtxos(address string, utxos []domain.UtxoEntry) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.utxos[address] = append([]domain.UtxoEntry{}, utxos...)
}

// AddUtxo appends a utxo to the set of the given address.
func (g *Gateway) AddUtxo(address string, utxo domain.UtxoEntry) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.utxos[address] = append(g.utxos[address], utxo)
}

func (g *Gateway) SetHeight(height uint32) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.height = height
}

func (g *Gateway) Height() uint32 {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.height
}

// Broadcasts returns the raw txs broadcasted so far, oldest first.
func (g *Gateway) Broadcasts() []string {
	g.lock.Lock()
	defer g.lock.Unlock()

	return append([]string{}, g.broadcasts...)
}

func (g *Gateway) Network() domain.Network {
	return g.network
}

func (g *Gateway) GetBalance(
	_ context.Context, address string,
) (*domain.Balance, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	balance := domain.NewBalance(g.utxos[address], g.height)
	return &balance, nil
}

func (g *Gateway) GetUtxos(
	_ context.Context, address string,
) ([]domain.UtxoEntry, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	return append([]domain.UtxoEntry{}, g.utxos[address]...), nil
}

func (g *Gateway) BroadcastTransaction(
	_ context.Context, txHex string,
) (string, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return "", fmt.Errorf("%w: invalid tx hex: %s", domain.ErrGateway, err)
	}
	txid := chainhash.DoubleHashH(buf).String()

	g.lock.Lock()
	defer g.lock.Unlock()

	g.broadcasts = append(g.broadcasts, txHex)
	g.log("broadcasted tx %s", txid)
	return txid, nil
}

func (g *Gateway) GetBlockHeaders(_ context.Context) error {
	return nil
}
