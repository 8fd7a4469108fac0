package ports

import (
	"context"

	"github.com/vulpemventures/funder/internal/core/domain"
)

// BlockchainGateway is the abstraction for any kind of service giving info
// about the balance and the utxos of BSV addresses, and letting broadcast
// transactions. Every error returned wraps domain.ErrGateway.
type BlockchainGateway interface {
	// Network returns the network the gateway is connected to.
	Network() domain.Network
	// GetBalance returns the confirmed and unconfirmed balance of the address.
	GetBalance(ctx context.Context, address string) (*domain.Balance, error)
	// GetUtxos returns the spendable outputs of the address.
	GetUtxos(ctx context.Context, address string) ([]domain.UtxoEntry, error)
	// BroadcastTransaction sends the given raw tx (in hex string) over the
	// network and returns its id.
	BroadcastTransaction(ctx context.Context, txHex string) (string, error)
	// GetBlockHeaders is a liveness probe: it fails if the service behind the
	// gateway can not be reached.
	GetBlockHeaders(ctx context.Context) error
}
