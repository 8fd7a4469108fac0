package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Stn     Network = "stn"
)

var chainParamsByNetwork = map[Network]*chaincfg.Params{
	Mainnet: &chaincfg.MainNetParams,
	Testnet: &chaincfg.TestNet3Params,
	// The scaling test network shares testnet address and key prefixes.
	Stn: &chaincfg.TestNet3Params,
}

// Network identifies one of the BSV networks the funder can serve.
type Network string

func ParseNetwork(name string) (Network, error) {
	net := Network(name)
	if _, ok := chainParamsByNetwork[net]; !ok {
		return "", fmt.Errorf("%w '%s'", ErrUnknownNetwork, name)
	}
	return net, nil
}

// ChainParams returns the params used to encode addresses and WIF keys.
func (n Network) ChainParams() *chaincfg.Params {
	return chainParamsByNetwork[n]
}

func (n Network) String() string {
	return string(n)
}
