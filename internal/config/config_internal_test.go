package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/funder/internal/core/domain"
)

const legacyToml = `
[blockchain_interface]
interface_type = "WoC"
network_type = "stn"

[web_interface]
address = "0.0.0.0"
port = 9090

[[client]]
client_id = "id1"
wif_key = "cNpxQaWe36eHdfU3fo2jHVkWXVt5CakPDrZSYguoZiRHSz9rq8nF"

[[client]]
client_id = "id2"
wif_key = "cW1Y1ZqZeZHFfSZL8r1vxtKpbmvh4Q4CCMdFpbM37wEdWgwNZ2ie"

[dynamic_config]
filename = "wallets.toml"
`

const legacyJson = `{
	"blockchain_interface": {"interface_type": "Test", "network_type": "mainnet"},
	"web_interface": {"address": "127.0.0.1", "port": 8000},
	"client": [{"client_id": "id1", "wif_key": "key1"}]
}`

func TestConfigFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "funder.toml")
	err := os.WriteFile(filename, []byte(legacyToml), 0600)
	require.NoError(t, err)

	f, err := readConfigFile(filename, "")
	require.NoError(t, err)

	v := viper.New()
	v.SetDefault(GatewayTypeKey, "test")
	v.SetDefault(PortKey, 8080)
	applyConfigFile(v, f)

	require.Equal(t, "woc", v.GetString(GatewayTypeKey))
	require.Equal(t, "stn", v.GetString(NetworkKey))
	require.Equal(t, "0.0.0.0", v.GetString(AddressKey))
	require.Equal(t, 9090, v.GetInt(PortKey))
	require.Equal(t, "wallets.toml", v.GetString(WalletStoreFilenameKey))
	require.False(t, v.IsSet(GatewayUrlKey))

	clients, err := staticClients(f)
	require.NoError(t, err)
	require.Equal(t, []domain.WalletKey{
		{ClientID: "id1", WifKey: "cNpxQaWe36eHdfU3fo2jHVkWXVt5CakPDrZSYguoZiRHSz9rq8nF"},
		{ClientID: "id2", WifKey: "cW1Y1ZqZeZHFfSZL8r1vxtKpbmvh4Q4CCMdFpbM37wEdWgwNZ2ie"},
	}, clients)
}

func TestConfigFileFromEnv(t *testing.T) {
	// The env document wins over the file, which is never read.
	f, err := readConfigFile("/not/existing.toml", legacyJson)
	require.NoError(t, err)

	v := viper.New()
	applyConfigFile(v, f)
	require.Equal(t, "test", v.GetString(GatewayTypeKey))
	require.Equal(t, "mainnet", v.GetString(NetworkKey))
	require.Equal(t, 8000, v.GetInt(PortKey))

	clients, err := staticClients(f)
	require.NoError(t, err)
	require.Len(t, clients, 1)
}

func TestConfigFileEnvVarsWin(t *testing.T) {
	t.Setenv("FUNDERTEST_PORT", "7070")

	f, err := readConfigFile("", legacyJson)
	require.NoError(t, err)

	v := viper.New()
	v.SetEnvPrefix("FUNDERTEST")
	v.AutomaticEnv()
	applyConfigFile(v, f)
	require.Equal(t, 7070, v.GetInt(PortKey))
	require.Equal(t, "mainnet", v.GetString(NetworkKey))
}

func TestConfigFileFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := readConfigFile(filepath.Join(t.TempDir(), "none.toml"), "")
		require.Error(t, err)
	})

	t.Run("invalid env document", func(t *testing.T) {
		_, err := readConfigFile("", "{not json")
		require.Error(t, err)
	})

	t.Run("no config", func(t *testing.T) {
		f, err := readConfigFile("", "")
		require.NoError(t, err)
		clients, err := staticClients(f)
		require.NoError(t, err)
		require.Empty(t, clients)
	})

	t.Run("client without key", func(t *testing.T) {
		f, err := readConfigFile(
			"", `{"client": [{"client_id": "id1"}]}`,
		)
		require.NoError(t, err)
		_, err = staticClients(f)
		require.Error(t, err)
	})
}
