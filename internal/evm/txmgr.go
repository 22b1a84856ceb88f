package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// gas estimates get 20% headroom: estimation runs against the current
// state, execution runs against a later one.
const gasHeadroomBps = 2_000

// TxManager signs and submits transactions for one key on one chain.
type TxManager struct {
	rpc     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    ecommon.Address
	logger  *logrus.Logger
}

func NewTxManager(ctx context.Context, rpc *ethclient.Client, key *ecdsa.PrivateKey, logger *logrus.Logger) (*TxManager, error) {
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	return &TxManager{
		rpc:     rpc,
		chainID: chainID,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		logger:  logger,
	}, nil
}

func (m *TxManager) From() ecommon.Address {
	return m.from
}

// Send signs and broadcasts a transaction, logging its hash as soon as
// the transport accepts it so the caller has a tracking handle before
// confirmation.
func (m *TxManager) Send(ctx context.Context, to ecommon.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	nonce, err := m.rpc.PendingNonceAt(ctx, m.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	tip, err := m.rpc.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip: %w", err)
	}

	head, err := m.rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get head: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	gas, err := m.rpc.EstimateGas(ctx, ethereum.CallMsg{
		From:  m.from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas += gas * gasHeadroomBps / 10_000

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   m.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(m.chainID), m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}

	if err := m.rpc.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send tx: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"tx_hash": signed.Hash().Hex(),
		"to":      to.Hex(),
		"value":   value.String(),
	}).Info("transaction submitted")

	return signed, nil
}

// WaitMined polls for the receipt until the transaction is mined or the
// context expires.
func (m *TxManager) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := m.rpc.TransactionReceipt(ctx, tx.Hash())
			if errors.Is(err, ethereum.NotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to get receipt: %w", err)
			}
			return receipt, nil
		}
	}
}
