package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ZeroAddress marks the chain's native currency wherever a token
// address is expected.
var ZeroAddress = ecommon.Address{}

// IsNative reports whether the token address stands for the native
// currency rather than an ERC20 contract.
func IsNative(token ecommon.Address) bool {
	return token == ZeroAddress
}

const erc20ABIJSON = `[
	{
		"name": "decimals",
		"type": "function",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint8"}]
	},
	{
		"name": "balanceOf",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "account", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"name": "allowance",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"name": "approve",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

// ERC20 reads the standard token surface. Decimals are re-read per
// asset, never assumed.
type ERC20 struct {
	rpc *ethclient.Client
}

func NewERC20(rpc *ethclient.Client) *ERC20 {
	return &ERC20{
		rpc: rpc,
	}
}

func (e *ERC20) Decimals(ctx context.Context, token ecommon.Address) (uint8, error) {
	if IsNative(token) {
		return 18, nil
	}

	out, err := e.call(ctx, token, "decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to get decimals for token %s: %w", token.Hex(), err)
	}
	return out[0].(uint8), nil
}

func (e *ERC20) BalanceOf(ctx context.Context, token, owner ecommon.Address) (*big.Int, error) {
	if IsNative(token) {
		return e.NativeBalance(ctx, owner)
	}

	out, err := e.call(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get ERC20 balance: %w", err)
	}
	return out[0].(*big.Int), nil
}

func (e *ERC20) Allowance(ctx context.Context, token, owner, spender ecommon.Address) (*big.Int, error) {
	out, err := e.call(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to check allowance: %w", err)
	}
	return out[0].(*big.Int), nil
}

func (e *ERC20) PackApprove(spender ecommon.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve: %w", err)
	}
	return data, nil
}

func (e *ERC20) NativeBalance(ctx context.Context, owner ecommon.Address) (*big.Int, error) {
	balance, err := e.rpc.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	return balance, nil
}

func (e *ERC20) call(ctx context.Context, token ecommon.Address, method string, args ...any) ([]any, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	ret, err := e.rpc.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	out, err := erc20ABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return out, nil
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
