package settle

import (
	"context"
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/omnivault/settle/internal/chains"
	"github.com/omnivault/settle/internal/compose"
	"github.com/omnivault/settle/internal/oft"
	"github.com/omnivault/settle/internal/route"
)

// Transport is the token contract handling one hop.
type Transport interface {
	Address() ecommon.Address
	QuoteSend(ctx context.Context, param oft.SendParam) (oft.MessagingFee, error)
	PackSend(param oft.SendParam, fee oft.MessagingFee, refund ecommon.Address) ([]byte, error)
}

// Previewer is the vault's read-only conversion estimate.
type Previewer interface {
	PreviewDeposit(ctx context.Context, assets *big.Int) *big.Int
	PreviewRedeem(ctx context.Context, shares *big.Int) *big.Int
}

type transportKey struct {
	eid   uint32
	token route.Token
}

// Transports resolves the transport for a leg by its departure endpoint
// and the token it moves.
type Transports struct {
	m map[transportKey]Transport
}

func NewTransports() *Transports {
	return &Transports{
		m: map[transportKey]Transport{},
	}
}

func (t *Transports) Register(eid uint32, token route.Token, transport Transport) {
	t.m[transportKey{eid: eid, token: token}] = transport
}

func (t *Transports) For(leg route.Leg) (Transport, error) {
	transport, ok := t.m[transportKey{eid: leg.From.EndpointID, token: leg.Token}]
	if !ok {
		return nil, fmt.Errorf("no %s transport for endpoint %d (%s)", leg.Token, leg.From.EndpointID, leg.From.Name)
	}
	return transport, nil
}

// Params are the per-attempt inputs. Amount is in the source token's
// smallest units. MinAmount, when set, is the caller's explicit floor
// for the terminal hop and bypasses the slippage calculator;
// intermediate hops always use SlippageBps.
type Params struct {
	Amount      *big.Int
	Recipient   ecommon.Address
	Refund      ecommon.Address
	SlippageBps uint64
	MinAmount   *big.Int
	ReceiveGas  uint64
	ComposeGas  uint64
}

// Hop pairs a planned leg with its wire-level parameters. Only the
// first hop of a plan is submitted directly; a second hop rides inside
// the first hop's compose payload.
type Hop struct {
	Leg       route.Leg
	Transport Transport
	Param     oft.SendParam
}

type Plan struct {
	Route route.Route
	Hops  []Hop

	// ExpectedOut is the terminal amount before the slippage floor.
	ExpectedOut *big.Int

	// ComposeValue is the native value pre-funded for the second hop's
	// execution on the hub; zero for single-hop plans.
	ComposeValue *big.Int
}

// Builder turns a planned route into submittable hop parameters,
// consulting the vault for conversion output, the quoter for inner-hop
// funding, and the slippage calculator for minimums.
type Builder struct {
	logger     *logrus.Logger
	hub        chains.Hub
	transports *Transports
	vault      Previewer
	quoter     *oft.Quoter
}

func NewBuilder(logger *logrus.Logger, hub chains.Hub, transports *Transports, vault Previewer, quoter *oft.Quoter) *Builder {
	return &Builder{
		logger:     logger,
		hub:        hub,
		transports: transports,
		vault:      vault,
		quoter:     quoter,
	}
}

func (b *Builder) Build(ctx context.Context, rt route.Route, p Params) (*Plan, error) {
	if p.Amount == nil || p.Amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}

	switch len(rt.Legs) {
	case 0:
		return &Plan{
			Route:        rt,
			ExpectedOut:  new(big.Int).Set(p.Amount),
			ComposeValue: big.NewInt(0),
		}, nil
	case 1:
		return b.buildSingle(ctx, rt, p)
	default:
		return b.buildComposed(ctx, rt, p)
	}
}

func (b *Builder) buildSingle(ctx context.Context, rt route.Route, p Params) (*Plan, error) {
	leg := rt.Legs[0]

	amount := new(big.Int).Set(p.Amount)
	if rt.LocalConversion {
		amount = b.previewConversion(ctx, rt.Conversion, amount)
	}

	min, err := b.terminalMin(amount, p)
	if err != nil {
		return nil, err
	}

	recipient := oft.AddressToBytes32(p.Recipient)
	opts := oft.NewOptions().WithExecutorLzReceive(p.ReceiveGas, nil)
	if leg.ToComposer {
		recipient = oft.AddressToBytes32(b.hub.Composer)
		opts = opts.WithExecutorLzCompose(0, p.ComposeGas, nil)
	}
	optBytes, err := opts.Bytes()
	if err != nil {
		return nil, err
	}

	transport, err := b.transports.For(leg)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Route: rt,
		Hops: []Hop{
			{
				Leg:       leg,
				Transport: transport,
				Param: oft.SendParam{
					DstEid:       leg.To.EndpointID,
					To:           recipient,
					AmountLD:     amount,
					MinAmountLD:  min,
					ExtraOptions: optBytes,
				},
			},
		},
		ExpectedOut:  amount,
		ComposeValue: big.NewInt(0),
	}, nil
}

func (b *Builder) buildComposed(ctx context.Context, rt route.Route, p Params) (*Plan, error) {
	first, second := rt.Legs[0], rt.Legs[1]

	// The second hop is assembled first: its parameters, funding and
	// encoding all nest inside the first hop's payload.
	expectedOut := b.previewConversion(ctx, rt.Conversion, p.Amount)
	minOut, err := b.terminalMin(expectedOut, p)
	if err != nil {
		return nil, err
	}

	secondOpts, err := oft.NewOptions().WithExecutorLzReceive(p.ReceiveGas, nil).Bytes()
	if err != nil {
		return nil, err
	}

	secondParam := oft.SendParam{
		DstEid:       second.To.EndpointID,
		To:           oft.AddressToBytes32(p.Recipient),
		AmountLD:     expectedOut,
		MinAmountLD:  minOut,
		ExtraOptions: secondOpts,
	}

	secondTransport, err := b.transports.For(second)
	if err != nil {
		return nil, err
	}

	composeValue := b.quoter.Inner(ctx, secondTransport, secondParam)

	composeMsg, err := compose.Encode(compose.Message{
		DstEid:         secondParam.DstEid,
		Recipient:      secondParam.To,
		Amount:         secondParam.AmountLD,
		MinAmount:      secondParam.MinAmountLD,
		ExecutionValue: composeValue,
		ExtraOptions:   secondParam.ExtraOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode compose payload: %w", err)
	}

	firstMin, err := MinAfterSlippage(p.Amount, p.SlippageBps)
	if err != nil {
		return nil, err
	}

	firstOpts, err := oft.NewOptions().
		WithExecutorLzReceive(p.ReceiveGas, nil).
		WithExecutorLzCompose(0, p.ComposeGas, composeValue).
		Bytes()
	if err != nil {
		return nil, err
	}

	firstTransport, err := b.transports.For(first)
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(logrus.Fields{
		"amount":        p.Amount.String(),
		"expected_out":  expectedOut.String(),
		"min_out":       minOut.String(),
		"compose_value": composeValue.String(),
	}).Debug("built composed plan")

	return &Plan{
		Route: rt,
		Hops: []Hop{
			{
				Leg:       first,
				Transport: firstTransport,
				Param: oft.SendParam{
					DstEid:       first.To.EndpointID,
					To:           oft.AddressToBytes32(b.hub.Composer),
					AmountLD:     new(big.Int).Set(p.Amount),
					MinAmountLD:  firstMin,
					ExtraOptions: firstOpts,
					ComposeMsg:   composeMsg,
				},
			},
			{
				Leg:       second,
				Transport: secondTransport,
				Param:     secondParam,
			},
		},
		ExpectedOut:  expectedOut,
		ComposeValue: composeValue,
	}, nil
}

// terminalMin applies the caller's explicit floor verbatim when given,
// otherwise the slippage calculator. An expected output already below
// the explicit floor is caught here, before any gas is spent.
func (b *Builder) terminalMin(expected *big.Int, p Params) (*big.Int, error) {
	if p.MinAmount == nil {
		return MinAfterSlippage(expected, p.SlippageBps)
	}
	if expected.Cmp(p.MinAmount) < 0 {
		return nil, fmt.Errorf("%w: expected %s, minimum %s", ErrSlippageViolation, expected, p.MinAmount)
	}
	return new(big.Int).Set(p.MinAmount), nil
}

func (b *Builder) previewConversion(ctx context.Context, kind route.Conversion, amount *big.Int) *big.Int {
	switch kind {
	case route.ConversionDeposit:
		return b.vault.PreviewDeposit(ctx, amount)
	case route.ConversionRedeem:
		return b.vault.PreviewRedeem(ctx, amount)
	default:
		return new(big.Int).Set(amount)
	}
}
