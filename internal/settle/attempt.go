package settle

import (
	"context"
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/omnivault/settle/internal/chains"
	"github.com/omnivault/settle/internal/evm"
	"github.com/omnivault/settle/internal/oft"
	"github.com/omnivault/settle/internal/route"
)

// State tracks the attempt through its lifecycle. There is no retried
// state: a failure terminates the attempt and the caller constructs a
// brand-new one if it wants another try.
type State string

const (
	StatePlanned   State = "planned"
	StateQuoted    State = "quoted"
	StateApproved  State = "approved"
	StateSubmitted State = "submitted"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// TxSender signs, submits and awaits transactions on the source chain.
type TxSender interface {
	From() ecommon.Address
	Send(ctx context.Context, to ecommon.Address, value *big.Int, data []byte) (*ethtypes.Transaction, error)
	WaitMined(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error)
}

// Approver ensures a spender's allowance, idempotently.
type Approver interface {
	EnsureAllowance(ctx context.Context, token, spender ecommon.Address, amount *big.Int) (bool, error)
}

// BalanceReader serves the pre-flight balance checks.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, owner ecommon.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, owner ecommon.Address) (*big.Int, error)
}

// VaultExecutor performs the local conversion when the settlement
// originates on the hub.
type VaultExecutor interface {
	Address() ecommon.Address
	PackDeposit(assets *big.Int, receiver ecommon.Address) ([]byte, error)
	PackRedeem(shares *big.Int, receiver, owner ecommon.Address) ([]byte, error)
}

// Request is one settlement to attempt.
type Request struct {
	Source      chains.Location
	Destination chains.Location
	Conversion  route.Conversion
	Params      Params
}

// Receipt reports the attempt's outcome. TxHash is set as soon as the
// transaction is submitted, even when confirmation later fails.
type Receipt struct {
	State  State
	TxHash ecommon.Hash
	Fee    oft.MessagingFee
	Plan   *Plan
}

// Attempt is a single-shot settlement: plan, quote, approve, submit,
// confirm. All entities it constructs live exactly as long as the
// attempt. Nothing persists.
type Attempt struct {
	logger   *logrus.Logger
	hub      chains.Hub
	builder  *Builder
	quoter   *oft.Quoter
	approver Approver
	balances BalanceReader
	vault    VaultExecutor
	txmgr    TxSender
	state    State
}

func NewAttempt(
	logger *logrus.Logger,
	hub chains.Hub,
	builder *Builder,
	quoter *oft.Quoter,
	approver Approver,
	balances BalanceReader,
	vault VaultExecutor,
	txmgr TxSender,
) *Attempt {
	return &Attempt{
		logger:   logger,
		hub:      hub,
		builder:  builder,
		quoter:   quoter,
		approver: approver,
		balances: balances,
		vault:    vault,
		txmgr:    txmgr,
		state:    StatePlanned,
	}
}

func (a *Attempt) State() State {
	return a.state
}

// Run drives the attempt to completion. Every stage strictly depends on
// the previous one, so the pipeline is sequential; only the read-only
// pre-flight queries run concurrently.
func (a *Attempt) Run(ctx context.Context, req Request) (*Receipt, error) {
	rt, err := route.Plan(req.Source, a.hub, req.Destination, req.Conversion)
	if err != nil {
		return a.fail(err)
	}

	if len(rt.Legs) == 0 {
		a.logger.Info("source, hub and destination coincide, nothing to settle")
		return &Receipt{State: StatePlanned, Plan: &Plan{Route: rt}}, nil
	}

	spendTok := spendToken(rt, req.Source)
	owner := a.txmgr.From()

	var tokenBalance, nativeBalance *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tokenBalance, err = a.balances.BalanceOf(gctx, spendTok, owner)
		return err
	})
	g.Go(func() error {
		var err error
		nativeBalance, err = a.balances.NativeBalance(gctx, owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return a.fail(fmt.Errorf("pre-flight reads failed: %w", err))
	}

	if tokenBalance.Cmp(req.Params.Amount) < 0 {
		return a.fail(fmt.Errorf("%w: have %s, need %s of token %s",
			ErrInsufficientBalance, tokenBalance, req.Params.Amount, spendTok.Hex()))
	}

	plan, err := a.builder.Build(ctx, rt, req.Params)
	if err != nil {
		return a.fail(err)
	}
	first := plan.Hops[0]

	a.logger.WithFields(logrus.Fields{
		"legs":       len(plan.Hops),
		"conversion": rt.Conversion,
		"dst_eid":    first.Param.DstEid,
		"amount":     first.Param.AmountLD.String(),
		"min_amount": first.Param.MinAmountLD.String(),
	}).Info("route planned")

	// The outer quote is load-bearing: it prices the transaction about
	// to be paid for, so a failure is fatal, never defaulted.
	fee, err := a.quoter.Outer(ctx, first.Transport, first.Param)
	if err != nil {
		return a.fail(fmt.Errorf("%w: %v", ErrQuoteFailed, err))
	}
	a.state = StateQuoted

	hopTok := legToken(req.Source, first.Leg.Token)
	value := new(big.Int).Set(fee.NativeFee)
	if evm.IsNative(hopTok) {
		// Native transfers move value with the call itself.
		value.Add(value, first.Param.AmountLD)
	}

	if nativeBalance.Cmp(value) < 0 {
		return a.fail(fmt.Errorf("%w: have %s native, need %s for fee and value",
			ErrInsufficientBalance, nativeBalance, value))
	}

	if rt.LocalConversion {
		if err := a.convertLocally(ctx, rt.Conversion, req.Params.Amount, owner); err != nil {
			return a.fail(err)
		}
	}

	if !evm.IsNative(hopTok) {
		approved, err := a.approver.EnsureAllowance(ctx, hopTok, first.Transport.Address(), first.Param.AmountLD)
		if err != nil {
			return a.fail(fmt.Errorf("%w: %v", ErrApprovalFailed, err))
		}
		if approved {
			a.logger.Debug("spending allowance granted")
		}
	}
	a.state = StateApproved

	data, err := first.Transport.PackSend(first.Param, fee, req.Params.Refund)
	if err != nil {
		return a.fail(fmt.Errorf("%w: %v", ErrSubmissionFailed, err))
	}

	tx, err := a.txmgr.Send(ctx, first.Transport.Address(), value, data)
	if err != nil {
		return a.fail(fmt.Errorf("%w: %v", ErrSubmissionFailed, err))
	}
	a.state = StateSubmitted

	result := &Receipt{
		State:  StateSubmitted,
		TxHash: tx.Hash(),
		Fee:    fee,
		Plan:   plan,
	}

	mined, err := a.txmgr.WaitMined(ctx, tx)
	if err != nil {
		a.state = StateFailed
		result.State = StateFailed
		return result, fmt.Errorf("%w: tx %s not confirmed: %v", ErrSubmissionFailed, tx.Hash().Hex(), err)
	}
	if mined.Status != ethtypes.ReceiptStatusSuccessful {
		a.state = StateFailed
		result.State = StateFailed
		return result, fmt.Errorf("%w: tx %s reverted", ErrSubmissionFailed, tx.Hash().Hex())
	}

	a.state = StateConfirmed
	result.State = StateConfirmed

	a.logger.WithFields(logrus.Fields{
		"tx_hash": tx.Hash().Hex(),
		"fee":     fee.NativeFee.String(),
	}).Info("settlement confirmed")

	return result, nil
}

// convertLocally runs the hub-side deposit/redeem that precedes a hop
// departing the hub. An already-sent approval from an abandoned attempt
// is benign and reused.
func (a *Attempt) convertLocally(ctx context.Context, kind route.Conversion, amount *big.Int, owner ecommon.Address) error {
	var data []byte
	var err error

	switch kind {
	case route.ConversionDeposit:
		if _, err := a.approver.EnsureAllowance(ctx, a.hub.AssetToken, a.vault.Address(), amount); err != nil {
			return fmt.Errorf("%w: vault allowance: %v", ErrApprovalFailed, err)
		}
		data, err = a.vault.PackDeposit(amount, owner)
	case route.ConversionRedeem:
		data, err = a.vault.PackRedeem(amount, owner, owner)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	tx, err := a.txmgr.Send(ctx, a.vault.Address(), big.NewInt(0), data)
	if err != nil {
		return fmt.Errorf("local %s failed: %w", kind, err)
	}

	mined, err := a.txmgr.WaitMined(ctx, tx)
	if err != nil {
		return fmt.Errorf("local %s tx %s not confirmed: %w", kind, tx.Hash().Hex(), err)
	}
	if mined.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("local %s tx %s reverted", kind, tx.Hash().Hex())
	}

	a.logger.WithFields(logrus.Fields{
		"conversion": kind,
		"tx_hash":    tx.Hash().Hex(),
	}).Info("local conversion confirmed")

	return nil
}

func (a *Attempt) fail(err error) (*Receipt, error) {
	a.state = StateFailed
	return &Receipt{State: StateFailed}, err
}

// spendToken is the token the caller actually parts with on the source
// chain: for a hub-local conversion that is the pre-conversion token,
// otherwise whatever the first leg moves.
func spendToken(rt route.Route, src chains.Location) ecommon.Address {
	token := route.TokenAsset
	if len(rt.Legs) > 0 {
		token = rt.Legs[0].Token
	}
	if rt.LocalConversion {
		if rt.Conversion == route.ConversionDeposit {
			token = route.TokenAsset
		} else {
			token = route.TokenShare
		}
	}
	return tokenAddress(src, token)
}

func legToken(src chains.Location, token route.Token) ecommon.Address {
	return tokenAddress(src, token)
}

func tokenAddress(loc chains.Location, token route.Token) ecommon.Address {
	if token == route.TokenShare {
		return loc.ShareToken
	}
	return loc.AssetToken
}
