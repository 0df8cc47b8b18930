// Package account resolves the node's configured signer
// (core.Account: keystore or raw private key) into a go-ethereum
// *bind.TransactOpts and the matching chain address, the same shape
// ethchain.EthClient expects at construction time.
package account

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// Resolve builds a *bind.TransactOpts for chainID from cfg's configured
// signer source. Exactly one of Keystore or PrivateKey must be set; HD
// wallet derivation is not supported (no bip32/bip39 derivation library
// ships in this node's dependency set — see the design notes).
func Resolve(cfg *core.Account, chainID *big.Int) (*bind.TransactOpts, common.Address, error) {
	switch {
	case cfg.PrivateKey != nil:
		return resolvePrivateKey(cfg, chainID)
	case cfg.Keystore != nil:
		return resolveKeystore(cfg, chainID)
	case cfg.HDWallet != nil:
		return nil, common.Address{}, fmt.Errorf("account: hdwallet signer is not supported by this build")
	default:
		return nil, common.Address{}, core.ErrLackOfAccount
	}
}

func resolvePrivateKey(cfg *core.Account, chainID *big.Int) (*bind.TransactOpts, common.Address, error) {
	raw, err := cfg.ResolvedPrivateKey()
	if err != nil {
		return nil, common.Address{}, err
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("account: parse private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("account: build transactor: %w", err)
	}
	return opts, crypto.PubkeyToAddress(key.PublicKey), nil
}

func resolveKeystore(cfg *core.Account, chainID *big.Int) (*bind.TransactOpts, common.Address, error) {
	password, err := cfg.ResolvedKeystorePassword()
	if err != nil {
		return nil, common.Address{}, err
	}
	raw, err := os.ReadFile(cfg.Keystore.Path)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("account: read keystore %s: %w", cfg.Keystore.Path, err)
	}
	key, err := keystore.DecryptKey(raw, password)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("account: decrypt keystore %s: %w", cfg.Keystore.Path, err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key.PrivateKey, chainID)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("account: build transactor: %w", err)
	}
	return opts, key.Address, nil
}
