package settle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ecommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/omnivault/settle/internal/oft"
	"github.com/omnivault/settle/internal/route"
)

type fakeBalances struct {
	token  *big.Int
	native *big.Int
}

func (f *fakeBalances) BalanceOf(_ context.Context, _, _ ecommon.Address) (*big.Int, error) {
	return new(big.Int).Set(f.token), nil
}

func (f *fakeBalances) NativeBalance(_ context.Context, _ ecommon.Address) (*big.Int, error) {
	return new(big.Int).Set(f.native), nil
}

type fakeApprover struct {
	calls int
	err   error
}

func (f *fakeApprover) EnsureAllowance(_ context.Context, _, _ ecommon.Address, _ *big.Int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.calls++
	return true, nil
}

type fakeVaultExec struct {
	deposits int
	redeems  int
}

func (f *fakeVaultExec) Address() ecommon.Address {
	return testHub.Vault
}

func (f *fakeVaultExec) PackDeposit(_ *big.Int, _ ecommon.Address) ([]byte, error) {
	f.deposits++
	return []byte{0x01}, nil
}

func (f *fakeVaultExec) PackRedeem(_ *big.Int, _, _ ecommon.Address) ([]byte, error) {
	f.redeems++
	return []byte{0x02}, nil
}

type sentTx struct {
	to    ecommon.Address
	value *big.Int
}

type fakeSender struct {
	sent          []sentTx
	sendErr       error
	waitErr       error
	receiptStatus uint64
}

func (f *fakeSender) From() ecommon.Address {
	return ecommon.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
}

func (f *fakeSender) Send(_ context.Context, to ecommon.Address, value *big.Int, data []byte) (*ethtypes.Transaction, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentTx{to: to, value: new(big.Int).Set(value)})
	return ethtypes.NewTx(&ethtypes.LegacyTx{Nonce: uint64(len(f.sent)), To: &to, Value: value, Data: data}), nil
}

func (f *fakeSender) WaitMined(_ context.Context, _ *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return &ethtypes.Receipt{Status: f.receiptStatus}, nil
}

func newTestAttempt(t *testing.T, sender *fakeSender, balances *fakeBalances, approver *fakeApprover) *Attempt {
	t.Helper()
	builder, _ := newTestBuilder(t, nil)
	return NewAttempt(
		quietLogger(),
		testHub,
		builder,
		oft.NewQuoter(quietLogger()),
		approver,
		balances,
		&fakeVaultExec{},
		sender,
	)
}

func TestRunConfirmsTwoHopSettlement(t *testing.T) {
	sender := &fakeSender{receiptStatus: ethtypes.ReceiptStatusSuccessful}
	balances := &fakeBalances{token: big.NewInt(2_000_000), native: big.NewInt(1_000_000)}
	approver := &fakeApprover{}
	attempt := newTestAttempt(t, sender, balances, approver)

	receipt, err := attempt.Run(context.Background(), Request{
		Source:      spokeA,
		Destination: spokeB,
		Conversion:  route.ConversionDeposit,
		Params:      defaultParams(1_000_000),
	})
	require.NoError(t, err)
	require.Equal(t, StateConfirmed, receipt.State)
	require.Equal(t, StateConfirmed, attempt.State())
	require.NotEqual(t, ecommon.Hash{}, receipt.TxHash)
	require.Equal(t, 1, approver.calls, "one approval for the asset adapter")
	require.Len(t, sender.sent, 1, "exactly one top-level transaction")

	// value attached = outer native fee only (asset is ERC20)
	require.Zero(t, sender.sent[0].value.Cmp(big.NewInt(5_000)))
	require.Len(t, receipt.Plan.Hops, 2)
}

func TestRunNativeAssetAddsAmountToValue(t *testing.T) {
	nativeSpoke := spokeA
	nativeSpoke.AssetToken = ecommon.Address{}

	sender := &fakeSender{receiptStatus: ethtypes.ReceiptStatusSuccessful}
	balances := &fakeBalances{token: big.NewInt(10_000_000), native: big.NewInt(10_000_000)}
	approver := &fakeApprover{}
	attempt := newTestAttempt(t, sender, balances, approver)

	receipt, err := attempt.Run(context.Background(), Request{
		Source:      nativeSpoke,
		Destination: spokeB,
		Conversion:  route.ConversionDeposit,
		Params:      defaultParams(1_000_000),
	})
	require.NoError(t, err)
	require.Equal(t, StateConfirmed, receipt.State)
	require.Equal(t, 0, approver.calls, "native currency needs no approval")
	// fee 5000 + transferred amount 1,000,000
	require.Zero(t, sender.sent[0].value.Cmp(big.NewInt(1_005_000)))
}

func TestRunInsufficientTokenBalance(t *testing.T) {
	sender := &fakeSender{receiptStatus: ethtypes.ReceiptStatusSuccessful}
	balances := &fakeBalances{token: big.NewInt(999_999), native: big.NewInt(1_000_000)}
	attempt := newTestAttempt(t, sender, balances, &fakeApprover{})

	_, err := attempt.Run(context.Background(), Request{
		Source:      spokeA,
		Destination: spokeB,
		Conversion:  route.ConversionNone,
		Params:      defaultParams(1_000_000),
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, StateFailed, attempt.State())
	require.Empty(t, sender.sent, "no transaction may be sent")
}

func TestRunInsufficientNativeForFee(t *testing.T) {
	sender := &fakeSender{receiptStatus: ethtypes.ReceiptStatusSuccessful}
	balances := &fakeBalances{token: big.NewInt(2_000_000), native: big.NewInt(100)}
	attempt := newTestAttempt(t, sender, balances, &fakeApprover{})

	_, err := attempt.Run(context.Background(), Request{
		Source:      spokeA,
		Destination: spokeB,
		Conversion:  route.ConversionDeposit,
		Params:      defaultParams(1_000_000),
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRunApprovalFailureIsFatal(t *testing.T) {
	sender := &fakeSender{receiptStatus: ethtypes.ReceiptStatusSuccessful}
	balances := &fakeBalances{token: big.NewInt(2_000_000), native: big.NewInt(1_000_000)}
	attempt := newTestAttempt(t, sender, balances, &fakeApprover{err: errors.New("approve reverted")})

	_, err := attempt.Run(context.Background(), Request{
		Source:      spokeA,
		Destination: spokeB,
		Conversion:  route.ConversionDeposit,
		Params:      defaultParams(1_000_000),
	})
	require.ErrorIs(t, err, ErrApprovalFailed)
	require.Empty(t, sender.sent)
}

func TestRunRevertReportsHash(t *testing.T) {
	sender := &fakeSender{receiptStatus: ethtypes.ReceiptStatusFailed}
	balances := &fakeBalances{token: big.NewInt(2_000_000), native: big.NewInt(1_000_000)}
	attempt := newTestAttempt(t, sender, balances, &fakeApprover{})

	receipt, err := attempt.Run(context.Background(), Request{
		Source:      spokeA,
		Destination: spokeB,
		Conversion:  route.ConversionDeposit,
		Params:      defaultParams(1_000_000),
	})
	require.ErrorIs(t, err, ErrSubmissionFailed)
	require.Equal(t, StateFailed, receipt.State)
	require.NotEqual(t, ecommon.Hash{}, receipt.TxHash, "hash still reported for diagnostics")
}

func TestRunBadRouteBeforeAnyNetworkCall(t *testing.T) {
	sender := &fakeSender{}
	attempt := newTestAttempt(t, sender, &fakeBalances{token: big.NewInt(1), native: big.NewInt(1)}, &fakeApprover{})

	_, err := attempt.Run(context.Background(), Request{
		Source:      testHub.Location,
		Destination: testHub.Location,
		Conversion:  route.ConversionDeposit,
		Params:      defaultParams(1),
	})
	require.ErrorIs(t, err, route.ErrBadRoute)
	require.Empty(t, sender.sent)
}

func TestRunNothingToSettle(t *testing.T) {
	sender := &fakeSender{}
	attempt := newTestAttempt(t, sender, &fakeBalances{token: big.NewInt(1), native: big.NewInt(1)}, &fakeApprover{})

	receipt, err := attempt.Run(context.Background(), Request{
		Source:      testHub.Location,
		Destination: testHub.Location,
		Conversion:  route.ConversionNone,
		Params:      defaultParams(1),
	})
	require.NoError(t, err)
	require.Empty(t, receipt.Plan.Hops)
	require.Empty(t, sender.sent)
}

func TestRunLocalConversionPrecedesHop(t *testing.T) {
	sender := &fakeSender{receiptStatus: ethtypes.ReceiptStatusSuccessful}
	balances := &fakeBalances{token: big.NewInt(2_000_000), native: big.NewInt(1_000_000)}
	approver := &fakeApprover{}

	builder, _ := newTestBuilder(t, nil)
	vault := &fakeVaultExec{}
	attempt := NewAttempt(quietLogger(), testHub, builder, oft.NewQuoter(quietLogger()), approver, balances, vault, sender)

	hub := testHub.Location
	hub.AssetToken = ecommon.HexToAddress("0x00000000000000000000000000000000000000ca")
	hub.ShareToken = ecommon.HexToAddress("0x00000000000000000000000000000000000000cb")

	receipt, err := attempt.Run(context.Background(), Request{
		Source:      hub,
		Destination: spokeB,
		Conversion:  route.ConversionDeposit,
		Params:      defaultParams(1_000_000),
	})
	require.NoError(t, err)
	require.Equal(t, StateConfirmed, receipt.State)
	require.Equal(t, 1, vault.deposits, "local deposit executed once")
	// vault tx first, then the hop
	require.Len(t, sender.sent, 2)
	require.Equal(t, testHub.Vault, sender.sent[0].to)
}
