package inmemory

import (
	"context"
	"sync"

	"github.com/vulpemventures/funder/internal/core/domain"
	"github.com/vulpemventures/funder/internal/core/ports"
)

type store struct {
	keys []domain.WalletKey
	lock *sync.RWMutex
}

// NewStore returns a wallet store whose content is lost on restart.
func NewStore() ports.WalletStore {
	return &store{
		keys: make([]domain.WalletKey, 0),
		lock: &sync.RWMutex{},
	}
}

func (s *store) Load(_ context.Context) ([]domain.WalletKey, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]domain.WalletKey{}, s.keys...), nil
}

func (s *store) Save(_ context.Context, keys []domain.WalletKey) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.keys = append([]domain.WalletKey{}, keys...)
	return nil
}

func (s *store) Close() {}
