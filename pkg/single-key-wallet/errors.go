package wallet

import "errors"

var (
	ErrMissingWif         = errors.New("missing wif key")
	ErrMissingNetwork     = errors.New("missing network")
	ErrMissingTx          = errors.New("missing transaction")
	ErrMissingPrevScript  = errors.New("missing previous output script")
	ErrMissingSigScript   = errors.New("missing signature script")
	ErrNetworkMismatch    = errors.New("wif key does not belong to the given network")
	ErrInvalidPrevValue   = errors.New("previous output value must be positive")
	ErrInvalidSignature   = errors.New("signature verification failed")
	ErrPubKeyHashMismatch = errors.New(
		"public key does not match the previous output script",
	)
	ErrNotPayToPubKeyHash = errors.New(
		"previous output script is not pay-to-pubkey-hash",
	)
)
