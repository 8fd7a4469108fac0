package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
	"github.com/vulpemventures/funder/internal/core/domain"
)

const (
	// DatadirKey is the key to customize the funderd datadir.
	DatadirKey = "DATADIR"
	// NetworkKey is the key to customize the BSV network.
	NetworkKey = "NETWORK"
	// GatewayTypeKey is the key to customize the type of blockchain gateway
	// to use.
	GatewayTypeKey = "GATEWAY_TYPE"
	// GatewayUrlKey is the key to override the base url of the WhatsOnChain
	// api.
	GatewayUrlKey = "GATEWAY_URL"
	// GatewayTimeoutKey is the key to customize the timeout in seconds of
	// every request to the blockchain gateway.
	GatewayTimeoutKey = "GATEWAY_TIMEOUT"
	// TestChainHeightKey is the key to customize the chain height reported by
	// the test gateway. Should be used only for testing purposes.
	TestChainHeightKey = "TEST_CHAIN_HEIGHT"
	// WalletStoreTypeKey is the key to customize the type of store for
	// dynamically added wallets.
	WalletStoreTypeKey = "WALLET_STORE_TYPE"
	// WalletStoreFilenameKey is the key to customize the file where the file
	// store persists dynamically added wallets.
	WalletStoreFilenameKey = "WALLET_STORE_FILENAME"
	// AddressKey is the key to customize the address where the REST interface
	// will be listening to.
	AddressKey = "ADDRESS"
	// PortKey is the key to customize the port where the REST interface will
	// be listening to.
	PortKey = "PORT"
	// RefreshIntervalKey is the key to customize the interval in seconds
	// between two refreshes of all wallets.
	RefreshIntervalKey = "REFRESH_INTERVAL"
	// LogLevelKey is the key to customize the log level to catch more specific
	// or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// NoProfilerKey is the key to disable Prometheus profiling.
	NoProfilerKey = "NO_PROFILER"
	// ProfilerPortKey is the key to customize the port where the profiler will
	// be listening to.
	ProfilerPortKey = "PROFILER_PORT"
	// StatsIntervalKey is the key to customize the interval for the profiler
	// to gather profiling stats.
	StatsIntervalKey = "STATS_INTERVAL"
	// ConfigFileKey is the key to load static clients and legacy settings
	// from a config file.
	ConfigFileKey = "CONFIG_FILE"
	// DbUserKey is user used to connect to db
	DbUserKey = "DB_USER"
	// DbPassKey is password used to connect to db
	DbPassKey = "DB_PASS"
	// DbHostKey is host where db is installed
	DbHostKey = "DB_HOST"
	// DbPortKey is port on which db is listening
	DbPortKey = "DB_PORT"
	// DbNameKey is name of database
	DbNameKey = "DB_NAME"

	// LegacyConfigEnv is the env var holding the whole config document in
	// JSON format. When set, it takes the place of the config file.
	LegacyConfigEnv = "FS_CONFIG"

	// DbLocation is the folder inside the datadir containing db files.
	DbLocation = "db"
	// ProfilerLocation is the folder inside the datadir containing profiler
	// stats files.
	ProfilerLocation = "stats"
	// DefaultWalletStoreFilename is the name of the file store inside the
	// datadir.
	DefaultWalletStoreFilename = "dynamic_wallets.toml"
)

var (
	vip *viper.Viper
	// file holds the content of the config file, if any.
	file *viper.Viper

	defaultDatadir         = btcutil.AppDataDir("funderd", false)
	defaultNetwork         = domain.Testnet.String()
	defaultGatewayType     = "woc"
	defaultGatewayTimeout  = 30
	defaultTestChainHeight = 1000
	defaultWalletStoreType = "file"
	defaultAddress         = "127.0.0.1"
	defaultPort            = 8080
	defaultRefreshInterval = 60
	defaultLogLevel        = 4
	defaultProfilerPort    = 18001
	defaultStatsInterval   = 600 // 10 minutes

	SupportedGateways = supportedType{
		"woc":  {},
		"test": {},
	}
	SupportedWalletStores = supportedType{
		"file":     {},
		"badger":   {},
		"postgres": {},
		"inmemory": {},
	}

	// legacyKeys maps the sections of the config file onto flat keys.
	legacyKeys = map[string]string{
		"blockchain_interface.interface_type": GatewayTypeKey,
		"blockchain_interface.network_type":   NetworkKey,
		"blockchain_interface.url":            GatewayUrlKey,
		"web_interface.address":               AddressKey,
		"web_interface.port":                  PortKey,
		"dynamic_config.filename":             WalletStoreFilenameKey,
	}
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("FUNDER")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(NetworkKey, defaultNetwork)
	vip.SetDefault(GatewayTypeKey, defaultGatewayType)
	vip.SetDefault(GatewayTimeoutKey, defaultGatewayTimeout)
	vip.SetDefault(TestChainHeightKey, defaultTestChainHeight)
	vip.SetDefault(WalletStoreTypeKey, defaultWalletStoreType)
	vip.SetDefault(AddressKey, defaultAddress)
	vip.SetDefault(PortKey, defaultPort)
	vip.SetDefault(RefreshIntervalKey, defaultRefreshInterval)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(NoProfilerKey, false)
	vip.SetDefault(ProfilerPortKey, defaultProfilerPort)
	vip.SetDefault(StatsIntervalKey, defaultStatsInterval)
	vip.SetDefault(DbUserKey, "root")
	vip.SetDefault(DbPassKey, "secret")
	vip.SetDefault(DbHostKey, "127.0.0.1")
	vip.SetDefault(DbPortKey, 5432)
	vip.SetDefault(DbNameKey, "funderd-db-pg")

	f, err := readConfigFile(GetString(ConfigFileKey), os.Getenv(LegacyConfigEnv))
	if err != nil {
		log.Fatalf("config: error while reading config file: %s", err)
	}
	file = f
	applyConfigFile(vip, file)

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	if err := initDatadir(); err != nil {
		log.Fatalf("config: error while creating datadir: %s", err)
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	if _, err := domain.ParseNetwork(GetString(NetworkKey)); err != nil {
		return err
	}

	gatewayType := GetString(GatewayTypeKey)
	if _, ok := SupportedGateways[gatewayType]; !ok {
		return fmt.Errorf(
			"unsupported blockchain gateway type, must be one of %s",
			SupportedGateways,
		)
	}
	if GetInt(GatewayTimeoutKey) < 0 {
		return fmt.Errorf("gateway timeout must not be negative")
	}

	storeType := GetString(WalletStoreTypeKey)
	if _, ok := SupportedWalletStores[storeType]; !ok {
		return fmt.Errorf(
			"unsupported wallet store type, must be one of %s",
			SupportedWalletStores,
		)
	}

	if GetInt(RefreshIntervalKey) <= 0 {
		return fmt.Errorf("refresh interval must be greater than zero")
	}

	port := GetInt(PortKey)
	noProfiler := GetBool(NoProfilerKey)
	if !noProfiler {
		profilerPort := GetInt(ProfilerPortKey)
		if port == profilerPort {
			return fmt.Errorf("port and profiler port must not be equal")
		}
	}

	if _, err := GetStaticClients(); err != nil {
		return err
	}

	return nil
}

func GetDatadir() string {
	return filepath.Join(GetString(DatadirKey), GetString(NetworkKey))
}

func GetNetwork() domain.Network {
	net, _ := domain.ParseNetwork(GetString(NetworkKey))
	return net
}

// GetWalletStoreFilename returns the configured file store, or the default
// one inside the datadir.
func GetWalletStoreFilename() string {
	if filename := GetString(WalletStoreFilenameKey); filename != "" {
		return filename
	}
	return filepath.Join(GetDatadir(), DefaultWalletStoreFilename)
}

// GetStaticClients returns the clients listed in the config file. These are
// never read from env vars.
func GetStaticClients() ([]domain.WalletKey, error) {
	return staticClients(file)
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func Unset(key string) {
	vip.Set(key, nil)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

// readConfigFile parses the JSON document in content if not empty, or the
// given file otherwise. The format of the file is inferred from its
// extension.
func readConfigFile(filename, content string) (*viper.Viper, error) {
	v := viper.New()
	if content != "" {
		v.SetConfigType("json")
		if err := v.ReadConfig(strings.NewReader(content)); err != nil {
			return nil, fmt.Errorf("invalid %s: %s", LegacyConfigEnv, err)
		}
		return v, nil
	}
	if filename == "" {
		return v, nil
	}
	v.SetConfigFile(filename)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

// applyConfigFile sets the config file values as defaults of the flat keys,
// so that env vars keep precedence over them.
func applyConfigFile(v, f *viper.Viper) {
	for section, key := range legacyKeys {
		if !f.IsSet(section) {
			continue
		}
		val := f.Get(section)
		if key == GatewayTypeKey {
			// Legacy files use "WoC" and "Test".
			val = strings.ToLower(f.GetString(section))
		}
		v.SetDefault(key, val)
	}
}

func staticClients(f *viper.Viper) ([]domain.WalletKey, error) {
	clients := make([]domain.WalletKey, 0)
	if f == nil || !f.IsSet("client") {
		return clients, nil
	}
	if err := f.UnmarshalKey("client", &clients); err != nil {
		return nil, fmt.Errorf("invalid static clients: %s", err)
	}
	for i, c := range clients {
		if c.ClientID == "" {
			return nil, fmt.Errorf("static client #%d: missing client_id", i)
		}
		if c.WifKey == "" {
			return nil, fmt.Errorf("static client %s: missing wif_key", c.ClientID)
		}
	}
	return clients, nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}

	noProfiler := GetBool(NoProfilerKey)
	if noProfiler {
		return nil
	}
	return makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}
