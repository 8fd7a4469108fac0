package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	appconfig "github.com/vulpemventures/funder/internal/app-config"
	"github.com/vulpemventures/funder/internal/config"
	woc_gateway "github.com/vulpemventures/funder/internal/infrastructure/blockchain-gateway/woc"
	pgstore "github.com/vulpemventures/funder/internal/infrastructure/wallet-store/postgres"
	"github.com/vulpemventures/funder/internal/interfaces"
	rest_interface "github.com/vulpemventures/funder/internal/interfaces/rest"
	"github.com/vulpemventures/funder/pkg/profiler"
)

var (
	// Build info.
	version string
	commit  string
	date    string

	// Config from env vars and config file.
	gatewayType     = config.GetString(config.GatewayTypeKey)
	gatewayUrl      = config.GetString(config.GatewayUrlKey)
	gatewayTimeout  = time.Duration(config.GetInt(config.GatewayTimeoutKey)) * time.Second
	testChainHeight = uint32(config.GetInt(config.TestChainHeightKey))
	walletStoreType = config.GetString(config.WalletStoreTypeKey)
	logLevel        = config.GetInt(config.LogLevelKey)
	datadir         = config.GetDatadir()
	address         = config.GetString(config.AddressKey)
	port            = config.GetInt(config.PortKey)
	profilerPort    = config.GetInt(config.ProfilerPortKey)
	network         = config.GetNetwork()
	noProfiler      = config.GetBool(config.NoProfilerKey)
	dbDir           = filepath.Join(datadir, config.DbLocation)
	profilerDir     = filepath.Join(datadir, config.ProfilerLocation)
	statsInterval   = time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second
	refreshInterval = time.Duration(config.GetInt(config.RefreshIntervalKey)) * time.Second
	dbUser          = config.GetString(config.DbUserKey)
	dbPass          = config.GetString(config.DbPassKey)
	dbHost          = config.GetString(config.DbHostKey)
	dbPort          = config.GetInt(config.DbPortKey)
	dbName          = config.GetString(config.DbNameKey)
)

func main() {
	log.SetLevel(log.Level(logLevel))

	staticClients, err := config.GetStaticClients()
	if err != nil {
		log.WithError(err).Fatal("config: error while reading static clients")
	}

	if profilerEnabled := !noProfiler; profilerEnabled {
		profilerSvc, err := profiler.NewService(profiler.ServiceOpts{
			Port:          profilerPort,
			StatsInterval: statsInterval,
			Datadir:       profilerDir,
		})
		if err != nil {
			log.WithError(err).Fatal("profiler: error while starting")
		}

		// nolint
		profilerSvc.Start()
		defer func() {
			profilerSvc.Stop()
		}()
	}

	var gatewayConfig interface{}
	switch gatewayType {
	case "woc":
		gatewayConfig = woc_gateway.ServiceArgs{
			Network: network,
			BaseUrl: gatewayUrl,
			Timeout: gatewayTimeout,
		}
	case "test":
		gatewayConfig = testChainHeight
	}

	var walletStoreConfig interface{}
	switch walletStoreType {
	case "file":
		walletStoreConfig = config.GetWalletStoreFilename()
	case "badger":
		walletStoreConfig = dbDir
	case "postgres":
		walletStoreConfig = pgstore.DbConfig{
			DbUser:     dbUser,
			DbPassword: dbPass,
			DbHost:     dbHost,
			DbPort:     dbPort,
			DbName:     dbName,
		}
	}

	serviceCfg := rest_interface.ServiceConfig{
		Address: address,
		Port:    port,
	}
	appCfg := &appconfig.AppConfig{
		Version:           version,
		Commit:            commit,
		Date:              date,
		Network:           network,
		StaticWallets:     staticClients,
		RefreshInterval:   refreshInterval,
		Registerer:        prometheus.DefaultRegisterer,
		GatewayType:       gatewayType,
		WalletStoreType:   walletStoreType,
		GatewayConfig:     gatewayConfig,
		WalletStoreConfig: walletStoreConfig,
	}

	serviceManager, err := interfaces.NewRestServiceManager(serviceCfg, appCfg)
	if err != nil {
		log.WithError(err).Fatal("service: error while initializing")
	}
	defer func() {
		serviceManager.Service.Stop()
	}()

	if err := serviceManager.Service.Start(); err != nil {
		serviceManager.Service.Stop()
		log.WithError(err).Fatal("service: error while starting")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
}
