package domain

// WalletKey is the persisted form of a wallet: the client identity and the
// WIF encoded key it spends with.
type WalletKey struct {
	ClientID string `json:"client_id" toml:"client_id" mapstructure:"client_id"`
	WifKey   string `json:"wif_key" toml:"wif_key" mapstructure:"wif_key"`
}
