package application_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/stretchr/testify/mock"
	"github.com/vulpemventures/funder/internal/core/domain"
	wallet "github.com/vulpemventures/funder/pkg/single-key-wallet"
)

// ports.BlockchainGateway
type mockGateway struct {
	mock.Mock
}

func newMockedGateway() *mockGateway {
	m := &mockGateway{}
	m.On("Network").Return(domain.Testnet)
	return m
}

func (m *mockGateway) Network() domain.Network {
	args := m.Called()
	return args.Get(0).(domain.Network)
}

func (m *mockGateway) GetBalance(
	ctx context.Context, address string,
) (*domain.Balance, error) {
	args := m.Called(ctx, address)
	var res *domain.Balance
	if a := args.Get(0); a != nil {
		res = a.(*domain.Balance)
	}
	return res, args.Error(1)
}

func (m *mockGateway) GetUtxos(
	ctx context.Context, address string,
) ([]domain.UtxoEntry, error) {
	args := m.Called(ctx, address)
	var res []domain.UtxoEntry
	if a := args.Get(0); a != nil {
		res = a.([]domain.UtxoEntry)
	}
	return res, args.Error(1)
}

// BroadcastTransaction returns the id of the given tx unless an error is
// configured.
func (m *mockGateway) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	args := m.Called(ctx, txHex)
	if err := args.Error(1); err != nil {
		return "", err
	}
	tx, err := wallet.TxFromHex(txHex)
	if err != nil {
		return "", err
	}
	return tx.TxHash().String(), nil
}

func (m *mockGateway) GetBlockHeaders(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// broadcasts returns the raw txs passed to BroadcastTransaction, failed
// attempts included.
func (m *mockGateway) broadcasts() []string {
	list := make([]string, 0)
	for _, call := range m.Calls {
		if call.Method == "BroadcastTransaction" {
			list = append(list, call.Arguments.String(1))
		}
	}
	return list
}

// ports.WalletStore
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context) ([]domain.WalletKey, error) {
	args := m.Called(ctx)
	var res []domain.WalletKey
	if a := args.Get(0); a != nil {
		res = a.([]domain.WalletKey)
	}
	return res, args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, keys []domain.WalletKey) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *mockStore) Close() {}

func randomHex(len int) string {
	return hex.EncodeToString(randomBytes(len))
}

func randomBytes(len int) []byte {
	b := make([]byte, len)
	// nolint
	rand.Read(b)
	return b
}
