package erc4626

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

const vaultABIJSON = `[
	{
		"name": "previewDeposit",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "assets", "type": "uint256"}],
		"outputs": [{"name": "shares", "type": "uint256"}]
	},
	{
		"name": "previewRedeem",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "shares", "type": "uint256"}],
		"outputs": [{"name": "assets", "type": "uint256"}]
	},
	{
		"name": "deposit",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "assets", "type": "uint256"},
			{"name": "receiver", "type": "address"}
		],
		"outputs": [{"name": "shares", "type": "uint256"}]
	},
	{
		"name": "redeem",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "shares", "type": "uint256"},
			{"name": "receiver", "type": "address"},
			{"name": "owner", "type": "address"}
		],
		"outputs": [{"name": "assets", "type": "uint256"}]
	}
]`

var vaultABI = mustParseABI(vaultABIJSON)

// Vault is the hub's accounting collaborator. The settlement trusts its
// reported conversion rate; previews are read-only and a failed read
// degrades to a 1:1 estimate, since the on-chain slippage floor is the
// real safety net.
type Vault struct {
	rpc     *ethclient.Client
	address ecommon.Address
	logger  *logrus.Logger
}

func NewVault(rpc *ethclient.Client, address ecommon.Address, logger *logrus.Logger) *Vault {
	return &Vault{
		rpc:     rpc,
		address: address,
		logger:  logger,
	}
}

func (v *Vault) Address() ecommon.Address {
	return v.address
}

// PreviewDeposit returns the shares minted for depositing assets,
// falling back to assets themselves (1:1) when the call fails.
func (v *Vault) PreviewDeposit(ctx context.Context, assets *big.Int) *big.Int {
	return v.preview(ctx, "previewDeposit", assets)
}

// PreviewRedeem returns the assets released for redeeming shares,
// falling back to shares themselves (1:1) when the call fails.
func (v *Vault) PreviewRedeem(ctx context.Context, shares *big.Int) *big.Int {
	return v.preview(ctx, "previewRedeem", shares)
}

func (v *Vault) preview(ctx context.Context, method string, amount *big.Int) *big.Int {
	data, err := vaultABI.Pack(method, amount)
	if err != nil {
		v.logger.WithError(err).Warnf("failed to pack %s, assuming 1:1", method)
		return new(big.Int).Set(amount)
	}

	ret, err := v.rpc.CallContract(ctx, ethereum.CallMsg{
		To:   &v.address,
		Data: data,
	}, nil)
	if err != nil {
		v.logger.WithError(err).Warnf("%s call failed, assuming 1:1", method)
		return new(big.Int).Set(amount)
	}

	out, err := vaultABI.Unpack(method, ret)
	if err != nil {
		v.logger.WithError(err).Warnf("failed to unpack %s result, assuming 1:1", method)
		return new(big.Int).Set(amount)
	}

	return out[0].(*big.Int)
}

// PackDeposit builds calldata for the local deposit executed when the
// settlement originates on the hub.
func (v *Vault) PackDeposit(assets *big.Int, receiver ecommon.Address) ([]byte, error) {
	data, err := vaultABI.Pack("deposit", assets, receiver)
	if err != nil {
		return nil, fmt.Errorf("failed to pack deposit: %w", err)
	}
	return data, nil
}

// PackRedeem builds calldata for the local redeem executed when the
// settlement originates on the hub.
func (v *Vault) PackRedeem(shares *big.Int, receiver, owner ecommon.Address) ([]byte, error) {
	data, err := vaultABI.Pack("redeem", shares, receiver, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack redeem: %w", err)
	}
	return data, nil
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
