package oft

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Transport is one token contract handling a hop: the OFT (or adapter)
// on the hop's source chain.
type Transport struct {
	rpc     *ethclient.Client
	address ecommon.Address
}

func NewTransport(rpc *ethclient.Client, address ecommon.Address) *Transport {
	return &Transport{
		rpc:     rpc,
		address: address,
	}
}

func (t *Transport) Address() ecommon.Address {
	return t.address
}

// QuoteSend asks the contract to price the hop. Fees are paid in the
// chain's native currency, never in the messaging layer's own token.
func (t *Transport) QuoteSend(ctx context.Context, param SendParam) (MessagingFee, error) {
	data, err := oftABI.Pack("quoteSend", param, false)
	if err != nil {
		return MessagingFee{}, fmt.Errorf("failed to pack quoteSend: %w", err)
	}

	ret, err := t.rpc.CallContract(ctx, ethereum.CallMsg{
		To:   &t.address,
		Data: data,
	}, nil)
	if err != nil {
		return MessagingFee{}, fmt.Errorf("quoteSend call failed: %w", err)
	}

	out, err := oftABI.Unpack("quoteSend", ret)
	if err != nil {
		return MessagingFee{}, fmt.Errorf("failed to unpack quoteSend result: %w", err)
	}

	fee := *abi.ConvertType(out[0], new(MessagingFee)).(*MessagingFee)
	if fee.NativeFee == nil {
		fee.NativeFee = big.NewInt(0)
	}
	if fee.LzTokenFee == nil {
		fee.LzTokenFee = big.NewInt(0)
	}
	return fee, nil
}

// PackSend builds the calldata for the top-level send transaction.
func (t *Transport) PackSend(param SendParam, fee MessagingFee, refund ecommon.Address) ([]byte, error) {
	data, err := oftABI.Pack("send", param, fee, refund)
	if err != nil {
		return nil, fmt.Errorf("failed to pack send: %w", err)
	}
	return data, nil
}
