package exchange

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"cexdexarb/internal/config"
)

// DEXAuth signs DEX (Hyperliquid-shaped) orders with the wallet's private
// key via EIP-712 typed-data signing, applied to every order rather than a
// one-time key-derivation message.
type DEXAuth struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewDEXAuth builds a DEXAuth from config.
func NewDEXAuth(cfg config.DEXConfig) (*DEXAuth, error) {
	keyHex := cfg.PrivateKey
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse dex private key: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	expected := common.HexToAddress(cfg.WalletAddr)
	if expected != (common.Address{}) && expected != address {
		return nil, fmt.Errorf("dex wallet_address %s does not match key-derived address %s", cfg.WalletAddr, address.Hex())
	}

	chainID := big.NewInt(1337) // Hyperliquid-shaped L1 chain id used for its EIP-712 domain
	return &DEXAuth{privateKey: privateKey, address: address, chainID: chainID}, nil
}

// Address returns the signer's Ethereum address.
func (a *DEXAuth) Address() common.Address {
	return a.address
}

// SignOrder produces an EIP-712 signature over an order action, following
// the Hyperliquid-shaped "Agent" typed-data scheme: a hash of the action
// payload (which already folds in the request nonce) is wrapped in a fixed
// Agent struct and signed.
func (a *DEXAuth) SignOrder(actionHash [32]byte) (r, s [32]byte, v byte, err error) {
	sig, err := a.signTypedData(
		&apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           (*ethmath.HexOrDecimal256)(new(big.Int).Set(a.chainID)),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		apitypes.TypedDataMessage{
			"source":       "a",
			"connectionId": actionHash,
		},
		"Agent",
	)
	if err != nil {
		return r, s, 0, err
	}

	copy(r[:], sig[0:32])
	copy(s[:], sig[32:64])
	v = sig[64]
	return r, s, v, nil
}

// signTypedData signs EIP-712 typed data and adjusts V to 27/28.
func (a *DEXAuth) signTypedData(
	domain *apitypes.TypedDataDomain,
	typesDef apitypes.Types,
	message apitypes.TypedDataMessage,
	primaryType string,
) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: primaryType,
		Domain:      *domain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, a.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}

	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}
