package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Key is a single private key together with the pay-to-pubkey-hash address
// and locking script it controls on a given network.
type Key struct {
	prvkey     *btcec.PrivateKey
	pubkey     *btcec.PublicKey
	compressed bool
	address    *btcutil.AddressPubKeyHash
	script     []byte
}

type NewKeyFromWifArgs struct {
	Wif     string
	Network *chaincfg.Params
}

func (a NewKeyFromWifArgs) validate() error {
	if len(a.Wif) <= 0 {
		return ErrMissingWif
	}
	if a.Network == nil {
		return ErrMissingNetwork
	}
	return nil
}

// NewKeyFromWif decodes the given WIF string and derives the P2PKH address
// for the network. The compression flag encoded in the WIF is honoured.
func NewKeyFromWif(args NewKeyFromWifArgs) (*Key, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	wif, err := btcutil.DecodeWIF(args.Wif)
	if err != nil {
		return nil, fmt.Errorf("failed to decode wif: %w", err)
	}
	if !wif.IsForNet(args.Network) {
		return nil, ErrNetworkMismatch
	}

	pubkeyBytes := wif.SerializePubKey()
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubkeyBytes), args.Network,
	)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	return &Key{
		prvkey:     wif.PrivKey,
		pubkey:     wif.PrivKey.PubKey(),
		compressed: wif.CompressPubKey,
		address:    addr,
		script:     script,
	}, nil
}

// Address returns the base58 P2PKH address.
func (k *Key) Address() string {
	return k.address.EncodeAddress()
}

// PubKeyHash returns the hash160 of the serialized public key.
func (k *Key) PubKeyHash() []byte {
	return append([]byte{}, k.address.ScriptAddress()...)
}

// LockingScript returns the P2PKH output script paying to this key.
func (k *Key) LockingScript() []byte {
	return append([]byte{}, k.script...)
}

// SerializedPubKey returns the public key in the same encoding used to
// derive the address.
func (k *Key) SerializedPubKey() []byte {
	if k.compressed {
		return k.pubkey.SerializeCompressed()
	}
	return k.pubkey.SerializeUncompressed()
}
