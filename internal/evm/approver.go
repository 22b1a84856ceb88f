package evm

import (
	"context"
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// allowanceReader is the slice of ERC20 the approver needs.
type allowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender ecommon.Address) (*big.Int, error)
	PackApprove(spender ecommon.Address, amount *big.Int) ([]byte, error)
}

// txSender is the slice of TxManager the approver needs.
type txSender interface {
	From() ecommon.Address
	Send(ctx context.Context, to ecommon.Address, value *big.Int, data []byte) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Approver makes sure a spender's allowance covers the amount before a
// transfer, submitting an approval only when the current allowance
// falls short. Approval is a precondition for everything downstream, so
// any failure here is fatal to the attempt.
type Approver struct {
	erc20  allowanceReader
	txmgr  txSender
	logger *logrus.Logger
}

func NewApprover(erc20 allowanceReader, txmgr txSender, logger *logrus.Logger) *Approver {
	return &Approver{
		erc20:  erc20,
		txmgr:  txmgr,
		logger: logger,
	}
}

// EnsureAllowance returns whether an approval transaction was actually
// submitted. Native currency has no allowance concept and always
// passes. The allowance probe itself is load-bearing: a failed read is
// an error, never treated as "no approval needed".
func (a *Approver) EnsureAllowance(ctx context.Context, token, spender ecommon.Address, amount *big.Int) (bool, error) {
	if IsNative(token) {
		return false, nil
	}

	owner := a.txmgr.From()
	current, err := a.erc20.Allowance(ctx, token, owner, spender)
	if err != nil {
		return false, err
	}

	if current.Cmp(amount) >= 0 {
		a.logger.WithFields(logrus.Fields{
			"token":     token.Hex(),
			"spender":   spender.Hex(),
			"allowance": current.String(),
		}).Debug("allowance already sufficient")
		return false, nil
	}

	data, err := a.erc20.PackApprove(spender, amount)
	if err != nil {
		return false, err
	}

	tx, err := a.txmgr.Send(ctx, token, big.NewInt(0), data)
	if err != nil {
		return false, fmt.Errorf("failed to send approve tx: %w", err)
	}

	receipt, err := a.txmgr.WaitMined(ctx, tx)
	if err != nil {
		return false, fmt.Errorf("approve tx %s not confirmed: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return false, fmt.Errorf("approve tx %s reverted", tx.Hash().Hex())
	}

	a.logger.WithFields(logrus.Fields{
		"token":   token.Hex(),
		"spender": spender.Hex(),
		"amount":  amount.String(),
		"tx_hash": tx.Hash().Hex(),
	}).Info("approval confirmed")

	return true, nil
}
