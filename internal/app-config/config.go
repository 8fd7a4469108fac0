package appconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/funder/internal/config"
	"github.com/vulpemventures/funder/internal/core/application"
	"github.com/vulpemventures/funder/internal/core/domain"
	"github.com/vulpemventures/funder/internal/core/ports"
	testchain_gateway "github.com/vulpemventures/funder/internal/infrastructure/blockchain-gateway/testchain"
	woc_gateway "github.com/vulpemventures/funder/internal/infrastructure/blockchain-gateway/woc"
	badgerstore "github.com/vulpemventures/funder/internal/infrastructure/wallet-store/badger"
	filestore "github.com/vulpemventures/funder/internal/infrastructure/wallet-store/file"
	"github.com/vulpemventures/funder/internal/infrastructure/wallet-store/inmemory"
	pgstore "github.com/vulpemventures/funder/internal/infrastructure/wallet-store/postgres"
)

// AppConfig is the struct holding all configuration options for the funding
// service. This data structure acts also as a factory of the service and of
// the portable services used by it.
// Public config args:
//   - Network - (required) The BSV network (mainnet, testnet, stn).
//   - GatewayType - (required) One of the supported blockchain gateway types.
//   - GatewayConfig - (optional) Custom config args for the gateway based on its type.
//   - WalletStoreType - (required) One of the supported wallet store types.
//   - WalletStoreConfig - (optional) Custom config args for the wallet store based on its type.
//   - StaticWallets - (optional) The wallets listed in the config file.
//   - RefreshInterval - (optional) Time between two refreshes of all wallets.
//   - RefreshTicker - (optional) Custom ticker driving the refreshes, takes the place of RefreshInterval.
//   - Registerer - (optional) Where to register the service metrics, defaults to a private registry.
type AppConfig struct {
	Version string
	Commit  string
	Date    string

	Network         domain.Network
	StaticWallets   []domain.WalletKey
	RefreshInterval time.Duration
	RefreshTicker   ticker.Ticker
	Registerer      prometheus.Registerer

	GatewayType       string
	WalletStoreType   string
	GatewayConfig     interface{}
	WalletStoreConfig interface{}

	gw        ports.BlockchainGateway
	store     ports.WalletStore
	funderSvc *application.FundingService
}

func (c *AppConfig) Validate() error {
	if _, err := domain.ParseNetwork(c.Network.String()); err != nil {
		return err
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must not be negative")
	}
	if len(c.GatewayType) == 0 {
		return fmt.Errorf("missing blockchain gateway type")
	}
	if _, ok := config.SupportedGateways[c.GatewayType]; !ok {
		return fmt.Errorf(
			"blockchain gateway type not supported, must be one of: %s",
			config.SupportedGateways,
		)
	}
	if len(c.WalletStoreType) == 0 {
		return fmt.Errorf("missing wallet store type")
	}
	if _, ok := config.SupportedWalletStores[c.WalletStoreType]; !ok {
		return fmt.Errorf(
			"wallet store type not supported, must be one of: %s",
			config.SupportedWalletStores,
		)
	}
	if _, err := c.gateway(); err != nil {
		return err
	}
	if _, err := c.walletStore(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) Gateway() ports.BlockchainGateway {
	return c.gw
}

func (c *AppConfig) WalletStore() ports.WalletStore {
	return c.store
}

// FundingService returns the service, building it on first call. Building
// fails if the blockchain gateway can not be reached.
func (c *AppConfig) FundingService(
	ctx context.Context,
) (*application.FundingService, error) {
	return c.fundingService(ctx)
}

func (c *AppConfig) gateway() (ports.BlockchainGateway, error) {
	if c.gw != nil {
		return c.gw, nil
	}

	switch c.GatewayType {
	case "woc":
		args := woc_gateway.ServiceArgs{Network: c.Network}
		if c.GatewayConfig != nil {
			cfg, ok := c.GatewayConfig.(woc_gateway.ServiceArgs)
			if !ok {
				return nil, fmt.Errorf(
					"invalid blockchain gateway config type, must be " +
						"woc_gateway.ServiceArgs",
				)
			}
			args = cfg
			args.Network = c.Network
		}
		gw, err := woc_gateway.NewService(args)
		if err != nil {
			return nil, err
		}
		c.gw = gw
		return c.gw, nil
	case "test":
		if c.GatewayConfig == nil {
			return nil, fmt.Errorf("missing blockchain gateway config args")
		}
		height, ok := c.GatewayConfig.(uint32)
		if !ok {
			return nil, fmt.Errorf(
				"invalid blockchain gateway config type, must be uint32",
			)
		}
		c.gw = testchain_gateway.NewService(c.Network, height)
		return c.gw, nil
	default:
		return nil, fmt.Errorf("unknown blockchain gateway type")
	}
}

func (c *AppConfig) walletStore() (ports.WalletStore, error) {
	if c.store != nil {
		return c.store, nil
	}

	switch c.WalletStoreType {
	case "inmemory":
		c.store = inmemory.NewStore()
		return c.store, nil
	case "file":
		if c.WalletStoreConfig == nil {
			return nil, fmt.Errorf("missing wallet store config args")
		}
		filename, ok := c.WalletStoreConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid wallet store config type, must be string")
		}
		store, err := filestore.NewStore(filename)
		if err != nil {
			return nil, err
		}
		c.store = store
		return c.store, nil
	case "badger":
		if c.WalletStoreConfig == nil {
			return nil, fmt.Errorf("missing wallet store config args")
		}
		datadir, ok := c.WalletStoreConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid wallet store config type, must be string")
		}
		store, err := badgerstore.NewStore(datadir, log.New())
		if err != nil {
			return nil, err
		}
		c.store = store
		return c.store, nil
	case "postgres":
		dbConfig, ok := c.WalletStoreConfig.(pgstore.DbConfig)
		if !ok {
			return nil, fmt.Errorf(
				"invalid wallet store config type, must be pgstore.DbConfig",
			)
		}
		store, err := pgstore.NewStore(dbConfig)
		if err != nil {
			return nil, err
		}
		c.store = store
		return c.store, nil
	default:
		return nil, fmt.Errorf("unknown wallet store type")
	}
}

func (c *AppConfig) fundingService(
	ctx context.Context,
) (*application.FundingService, error) {
	if c.funderSvc != nil {
		return c.funderSvc, nil
	}

	gw, err := c.gateway()
	if err != nil {
		return nil, err
	}
	store, err := c.walletStore()
	if err != nil {
		return nil, err
	}

	svc, err := application.NewFundingService(ctx, application.ServiceArgs{
		Gateway:         gw,
		Store:           store,
		StaticWallets:   c.StaticWallets,
		BuildInfo:       c.buildInfo(),
		RefreshTicker:   c.RefreshTicker,
		RefreshInterval: c.RefreshInterval,
		Registerer:      c.Registerer,
	})
	if err != nil {
		return nil, err
	}
	c.funderSvc = svc
	return c.funderSvc, nil
}

func (c *AppConfig) buildInfo() application.BuildInfo {
	return application.BuildInfo{
		Version: c.Version,
		Commit:  c.Commit,
		Date:    c.Date,
	}
}
