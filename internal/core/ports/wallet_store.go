package ports

import (
	"context"

	"github.com/vulpemventures/funder/internal/core/domain"
)

// WalletStore is the abstraction for any kind of storage persisting the keys
// of the wallets added at runtime.
type WalletStore interface {
	// Load returns the persisted wallet keys. A missing or unparseable file
	// is reported as an empty list, not as an error.
	Load(ctx context.Context) ([]domain.WalletKey, error)
	// Save replaces the whole persisted list with the given one.
	Save(ctx context.Context, keys []domain.WalletKey) error
	// Close releases the resources held by the store.
	Close()
}
